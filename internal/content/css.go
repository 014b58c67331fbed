package content

import (
	"embed"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// DefaultTemplate is the style used when none is requested or the requested
// one does not exist.
const DefaultTemplate = "default"

//go:embed templates/*.css
var builtinTemplates embed.FS

var templateNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// CSSProvider resolves named styles. Files named {name}.css in the search
// directories take precedence over the built-in templates.
type CSSProvider struct {
	dirs   []string
	logger *slog.Logger
}

// NewCSSProvider creates a provider that searches dirs in order.
func NewCSSProvider(searchDirs []string, logger *slog.Logger) *CSSProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSSProvider{
		dirs:   slices.Clone(searchDirs),
		logger: logger,
	}
}

// Template returns the sanitized CSS for name. Unknown names resolve to the
// default template.
func (p *CSSProvider) Template(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultTemplate
	}

	if templateNameRe.MatchString(name) {
		for _, dir := range p.dirs {
			path := filepath.Join(dir, name+".css")
			data, err := os.ReadFile(path)
			if err == nil {
				p.logger.Debug("using css override", "template", name, "path", path)
				return SanitizeCSS(string(data))
			}
			if !errors.Is(err, fs.ErrNotExist) {
				p.logger.Warn("failed to read css override", "path", path, "error", err)
			}
		}
	}

	if css, ok := lookupBuiltin(name); ok {
		return css
	}
	p.logger.Debug("unknown css template, using default", "template", name)
	return builtinTemplate(DefaultTemplate)
}

// Names lists the built-in templates and any overrides found on disk.
func (p *CSSProvider) Names() []string {
	names := []string{"default", "minimal", "modern"}
	for _, dir := range p.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			base, ok := strings.CutSuffix(e.Name(), ".css")
			if !ok || e.IsDir() || !templateNameRe.MatchString(base) {
				continue
			}
			names = append(names, base)
		}
	}
	slices.Sort(names)
	return slices.Compact(names)
}

func lookupBuiltin(name string) (string, bool) {
	data, err := builtinTemplates.ReadFile("templates/" + name + ".css")
	if err != nil {
		return "", false
	}
	return SanitizeCSS(string(data)), true
}

func builtinTemplate(name string) string {
	if css, ok := lookupBuiltin(name); ok {
		return css
	}
	css, _ := lookupBuiltin(DefaultTemplate)
	return css
}

var (
	importRuleRe     = regexp.MustCompile(`(?i)@import\s+[^;]*;?`)
	declPartsRe      = regexp.MustCompile(`(?s)^\s*([\w-]+)\s*:\s*(.*?)\s*$`)
	negativeNumberRe = regexp.MustCompile(`(^|[\s(])-\d`)
	lengthRe         = regexp.MustCompile(`(\d+(?:\.\d+)?)(px|pt)\b`)
)

// SanitizeCSS drops declarations e-readers mishandle (fixed or absolute
// positioning, transforms, transitions, animations, negative margins and
// @import rules) and converts px/pt lengths to em. Comments and string
// literals pass through untouched.
func SanitizeCSS(css string) string {
	css = importRuleRe.ReplaceAllString(css, "")

	var b strings.Builder
	b.Grow(len(css))
	for pos := 0; pos < len(css); {
		switch {
		case strings.HasPrefix(css[pos:], "/*"):
			end := strings.Index(css[pos+2:], "*/")
			if end < 0 {
				b.WriteString(css[pos:])
				return b.String()
			}
			end += pos + 4
			b.WriteString(css[pos:end])
			pos = end
		case css[pos] == '{' || css[pos] == '}' || css[pos] == ';':
			b.WriteByte(css[pos])
			pos++
		default:
			end := scanDeclaration(css, pos)
			segment := css[pos:end]
			pos = end
			m := declPartsRe.FindStringSubmatch(segment)
			if m == nil {
				b.WriteString(segment)
				continue
			}
			if droppedDeclaration(m[1], m[2]) {
				if pos < len(css) && css[pos] == ';' {
					pos++
				}
				continue
			}
			b.WriteString(lengthsToEm(segment))
		}
	}
	return b.String()
}

// scanDeclaration returns the end of the segment starting at pos, stopping
// before a separator or comment and skipping quoted strings.
func scanDeclaration(css string, pos int) int {
	for i := pos; i < len(css); i++ {
		switch css[i] {
		case ';', '{', '}':
			return i
		case '/':
			if i+1 < len(css) && css[i+1] == '*' {
				return i
			}
		case '"', '\'':
			quote := css[i]
			for i++; i < len(css) && css[i] != quote; i++ {
				if css[i] == '\\' {
					i++
				}
			}
		}
	}
	return len(css)
}

func droppedDeclaration(property, value string) bool {
	property = strings.ToLower(property)
	value = strings.ToLower(strings.TrimSpace(value))

	switch {
	case property == "position":
		return value == "fixed" || value == "absolute"
	case property == "transform", property == "transition", property == "animation":
		return true
	case strings.HasPrefix(property, "transition-"), strings.HasPrefix(property, "animation-"):
		return true
	case property == "margin", strings.HasPrefix(property, "margin-"):
		return negativeNumberRe.MatchString(value)
	}
	return false
}

// lengthsToEm converts px and pt lengths outside quoted strings.
func lengthsToEm(s string) string {
	var b strings.Builder
	for s != "" {
		i := strings.IndexAny(s, `"'`)
		if i < 0 {
			b.WriteString(convertLengths(s))
			break
		}
		b.WriteString(convertLengths(s[:i]))
		end := quotedEnd(s, i)
		b.WriteString(s[i:end])
		s = s[end:]
	}
	return b.String()
}

// quotedEnd returns the index just past the string literal opening at i.
func quotedEnd(s string, i int) int {
	quote := s[i]
	j := i + 1
	for j < len(s) && s[j] != quote {
		if s[j] == '\\' {
			j++
		}
		j++
	}
	if j < len(s) {
		j++
	}
	return min(j, len(s))
}

func convertLengths(s string) string {
	return lengthRe.ReplaceAllStringFunc(s, func(match string) string {
		m := lengthRe.FindStringSubmatch(match)
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return match
		}
		if m[2] == "px" {
			v /= 16
		} else {
			v /= 12
		}
		return strconv.FormatFloat(v, 'f', -1, 64) + "em"
	})
}

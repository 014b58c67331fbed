package content

import (
	"net/url"
	"regexp"
	"strings"
)

// Format is the detected kind of clipboard text.
type Format string

const (
	FormatURL      Format = "url"
	FormatRTF      Format = "rtf"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
	FormatPlain    Format = "plain"

	// FormatImage marks books built from image data. DetectFormat never
	// returns it.
	FormatImage Format = "image"
)

// ParseFormat maps a format tag to a Format. Unknown tags map to FormatPlain.
func ParseFormat(s string) Format {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatURL:
		return FormatURL
	case FormatRTF:
		return FormatRTF
	case FormatHTML:
		return FormatHTML
	case FormatMarkdown:
		return FormatMarkdown
	case FormatImage:
		return FormatImage
	default:
		return FormatPlain
	}
}

func (f Format) String() string {
	return string(f)
}

// htmlTagPatterns are tag openings that mark text as HTML on their own.
var htmlTagPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<html[^>]*>`),
	regexp.MustCompile(`(?i)<body[^>]*>`),
	regexp.MustCompile(`(?i)<div[^>]*>`),
	regexp.MustCompile(`(?i)<p[^>]*>`),
	regexp.MustCompile(`(?i)<span[^>]*>`),
	regexp.MustCompile(`(?i)<h[1-6][^>]*>`),
}

var tagLikeRe = regexp.MustCompile(`<[^>]+>`)

// markdownHeadingRe is sufficient evidence of Markdown by itself.
var markdownHeadingRe = regexp.MustCompile(`(?m)^#{1,6}\s+\S+`)

// markdownSignals are scored at most once each; two or more means Markdown.
var markdownSignals = [][]*regexp.Regexp{
	{regexp.MustCompile(`(?m)^#{1,6}\s+`)},
	{regexp.MustCompile(`\*\*[^*]+\*\*`), regexp.MustCompile(`__[^_]+__`)},
	{regexp.MustCompile(`\*[^*]+\*`), regexp.MustCompile(`_[^_]+_`)},
	{regexp.MustCompile(`(?m)^\s*[-*+]\s+`)},
	{regexp.MustCompile(`(?m)^\s*\d+\.\s+`)},
	{regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)},
	{regexp.MustCompile(`!\[([^\]]*)\]\(([^)]+)\)`)},
	{regexp.MustCompile("(?m)^```")},
	{regexp.MustCompile("`[^`]+`")},
	{regexp.MustCompile(`(?m)^>\s+`)},
}

// DetectFormat classifies text. The checks run in a fixed priority order and
// the first match wins, so the result is always one of the Format constants.
func DetectFormat(text string) Format {
	text = strings.TrimSpace(text)
	if text == "" {
		return FormatPlain
	}
	if isURL(text) {
		return FormatURL
	}
	if strings.HasPrefix(text, `{\rtf`) {
		return FormatRTF
	}
	if isHTML(text) {
		return FormatHTML
	}
	if isMarkdown(text) {
		return FormatMarkdown
	}
	return FormatPlain
}

func isURL(text string) bool {
	if strings.ContainsAny(text, "\r\n") {
		return false
	}
	u, err := url.Parse(text)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func isHTML(text string) bool {
	for _, re := range htmlTagPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return len(tagLikeRe.FindAllStringIndex(text, 3)) >= 3
}

func isMarkdown(text string) bool {
	if markdownHeadingRe.MatchString(text) {
		return true
	}
	score := 0
	for _, group := range markdownSignals {
		for _, re := range group {
			if re.MatchString(text) {
				score++
				break
			}
		}
	}
	return score >= 2
}

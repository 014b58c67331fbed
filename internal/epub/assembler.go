package epub

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/moby/sys/atomicwriter"

	"github.com/yuanying/clip2epub/internal/content"
)

const (
	DefaultAuthor   = "Unknown Author"
	DefaultLanguage = "en"
	maxTitleInName  = 100
	fileTimeLayout  = "20060102_150405"
)

// ErrNoChapters is returned when there is nothing to put in the spine.
var ErrNoChapters = errors.New("processed content has no chapters")

// Config configures an Assembler. Zero values use the defaults.
type Config struct {
	OutputDir       string
	DefaultAuthor   string
	DefaultLanguage string
	Now             func() time.Time
	Logger          *slog.Logger
}

// Overrides take precedence over the extracted metadata.
type Overrides struct {
	Title       string
	Authors     []string
	Language    string
	Description string
	Source      string
}

// Assembler packages processed content into EPUB 3 files.
type Assembler struct {
	outputDir       string
	defaultAuthor   string
	defaultLanguage string
	now             func() time.Time
	newID           func() string
	logger          *slog.Logger
}

// NewAssembler creates an Assembler.
func NewAssembler(cfg Config) *Assembler {
	a := &Assembler{
		outputDir:       cfg.OutputDir,
		defaultAuthor:   cfg.DefaultAuthor,
		defaultLanguage: cfg.DefaultLanguage,
		now:             cfg.Now,
		newID:           func() string { return "urn:uuid:" + uuid.NewString() },
		logger:          cfg.Logger,
	}
	if a.outputDir == "" {
		a.outputDir = "."
	}
	if a.defaultAuthor == "" {
		a.defaultAuthor = DefaultAuthor
	}
	if a.defaultLanguage == "" {
		a.defaultLanguage = DefaultLanguage
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Output describes a written EPUB.
type Output struct {
	Path       string
	Identifier string
	Title      string
	Authors    []string
	Chapters   int
	Size       int64
}

// Assemble writes processed as an EPUB into the output directory and returns
// its path. The file appears atomically or not at all.
func (a *Assembler) Assemble(processed *content.Processed, ov Overrides) (string, error) {
	out, err := a.Write(processed, ov)
	if err != nil {
		return "", err
	}
	return out.Path, nil
}

// Write is Assemble returning the resolved book details as well.
func (a *Assembler) Write(processed *content.Processed, ov Overrides) (*Output, error) {
	book, err := a.Build(processed, ov)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := book.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to build epub: %w", err)
	}

	if err := os.MkdirAll(a.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	path := uniquePath(filepath.Join(a.outputDir, book.FileName()))
	if err := atomicwriter.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write epub: %w", err)
	}

	a.logger.Info("assembled epub",
		"path", path,
		"title", book.Title,
		"chapters", len(book.Chapters),
		"bytes", buf.Len(),
	)
	return &Output{
		Path:       path,
		Identifier: book.Identifier,
		Title:      book.Title,
		Authors:    book.Authors,
		Chapters:   len(book.Chapters),
		Size:       int64(buf.Len()),
	}, nil
}

// Build resolves metadata and documents without touching the filesystem.
// processed is not modified.
func (a *Assembler) Build(processed *content.Processed, ov Overrides) (*Book, error) {
	if processed == nil || len(processed.Chapters) == 0 {
		return nil, ErrNoChapters
	}
	now := a.now()
	md := processed.Metadata

	book := &Book{
		Identifier:  a.newID(),
		Title:       firstNonEmpty(ov.Title, md.Title, "Clipboard_"+now.Format(fileTimeLayout)),
		Language:    firstNonEmpty(ov.Language, md.Language, a.defaultLanguage),
		Date:        xmlSafe(md.PublishDate),
		Description: firstNonEmpty(ov.Description, md.Description),
		Source:      firstNonEmpty(ov.Source, md.Source),
		Type:        "clipboard_" + string(processed.Format),
		Modified:    now,
		CSS:         xmlSafe(processed.CSS),
		TOC:         xmlSafe(processed.TOCHTML),
		Chapters:    make([]content.Chapter, len(processed.Chapters)),
		Resources:   append([]content.Resource(nil), processed.Resources...),
	}
	for i, ch := range processed.Chapters {
		book.Chapters[i] = content.Chapter{Title: xmlSafe(ch.Title), Content: xmlSafe(ch.Content)}
	}
	book.Authors = nonEmpty(ov.Authors)
	if len(book.Authors) == 0 {
		book.Authors = nonEmpty(md.Authors)
	}
	if len(book.Authors) == 0 {
		book.Authors = []string{a.defaultAuthor}
	}
	if processed.Format == content.FormatImage && len(book.Resources) > 0 {
		book.CoverHref = book.Resources[0].Href
	}
	return book, nil
}

// SanitizeFileName keeps letters, digits, spaces, '-' and '_', trims the
// result and cuts it to 100 runes.
func SanitizeFileName(title string) string {
	var b strings.Builder
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if runes := []rune(out); len(runes) > maxTitleInName {
		out = strings.TrimSpace(string(runes[:maxTitleInName]))
	}
	if out == "" {
		out = "clipboard"
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(xmlSafe(v)); v != "" {
			return v
		}
	}
	return ""
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(xmlSafe(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// uniquePath appends _2, _3... before the extension while p is taken.
func uniquePath(p string) string {
	if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
		return p
	}
	ext := filepath.Ext(p)
	base := strings.TrimSuffix(p, ext)
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, ext)
		if _, err := os.Stat(candidate); errors.Is(err, fs.ErrNotExist) {
			return candidate
		}
	}
}

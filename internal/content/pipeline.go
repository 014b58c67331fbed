package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ErrNoContent is returned for empty or whitespace-only input.
var ErrNoContent = errors.New("no content to convert")

// Options controls one pipeline run.
type Options struct {
	SplitChapters   bool   `json:"split_chapters"`
	WordsPerChapter int    `json:"words_per_chapter"`
	CSSTemplate     string `json:"css_template"`
	ForceTOC        bool   `json:"force_toc"`
}

// DefaultOptions returns the options used when the caller sets none.
func DefaultOptions() Options {
	return Options{
		SplitChapters:   true,
		WordsPerChapter: DefaultWordsPerChapter,
		CSSTemplate:     DefaultTemplate,
	}
}

// Normalize fills unset numeric and string fields with their defaults.
func (o Options) Normalize() Options {
	if o.WordsPerChapter <= 0 {
		o.WordsPerChapter = DefaultWordsPerChapter
	}
	o.CSSTemplate = strings.TrimSpace(o.CSSTemplate)
	if o.CSSTemplate == "" {
		o.CSSTemplate = DefaultTemplate
	}
	return o
}

// ProcessorConfig configures a Processor.
type ProcessorConfig struct {
	Converter *Converter
	CSS       *CSSProvider
	Logger    *slog.Logger
	Now       func() time.Time
}

// Processor runs detection, conversion, splitting, anchoring and styling.
type Processor struct {
	converter *Converter
	css       *CSSProvider
	logger    *slog.Logger
	now       func() time.Time
}

// NewProcessor creates a Processor. Nil collaborators get defaults.
func NewProcessor(cfg ProcessorConfig) *Processor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	conv := cfg.Converter
	if conv == nil {
		conv = NewConverter(ConverterOptions{Logger: logger})
	}
	css := cfg.CSS
	if css == nil {
		css = NewCSSProvider(nil, logger)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Processor{converter: conv, css: css, logger: logger, now: now}
}

// Process converts clipboard text into chapters, metadata and CSS.
func (p *Processor) Process(ctx context.Context, text string, opts Options) (*Processed, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoContent
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts = opts.Normalize()

	format := DetectFormat(text)
	p.logger.Debug("detected format", "format", format)

	conv := p.converter.Convert(ctx, text, format)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("conversion interrupted: %w", err)
	}
	md := conv.Metadata
	md.DetectedFormat = format
	md.ProcessingDate = p.now().Format(time.RFC3339)

	var chapters []Chapter
	if opts.SplitChapters {
		chapters = NewSplitter(opts.WordsPerChapter).Split(conv.HTML, md.Title)
	} else {
		chapters = []Chapter{{Title: firstNonEmpty(md.Title, "Content"), Content: conv.HTML}}
	}

	out := &Processed{
		Chapters: chapters,
		Metadata: md,
		CSS:      p.css.Template(opts.CSSTemplate),
		Format:   format,
	}
	if len(chapters) > 1 || opts.ForceTOC {
		out.Chapters = AddAnchors(chapters)
		out.TOCHTML = GenerateTOCHTML(out.Chapters, DefaultTOCTitle)
	}

	p.logger.Info("processed content",
		"format", format,
		"chapters", len(out.Chapters),
		"warnings", len(conv.Warnings),
	)
	return out, nil
}

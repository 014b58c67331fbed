package content

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const defaultFetchTimeout = 10 * time.Second

// Warning records a converter that fell back to a degraded path. Warnings
// never fail a conversion.
type Warning struct {
	Format  Format
	Message string
	Err     error
}

func (w Warning) String() string {
	if w.Err != nil {
		return fmt.Sprintf("%s: %s: %v", w.Format, w.Message, w.Err)
	}
	return fmt.Sprintf("%s: %s", w.Format, w.Message)
}

// Conversion is the styled HTML document produced for one input together
// with the metadata the converter could extract.
type Conversion struct {
	HTML     string
	Metadata Metadata
	Warnings []Warning
}

// ConverterOptions configures a Converter.
type ConverterOptions struct {
	// Fetcher extracts articles from URLs. Defaults to an HTTPFetcher.
	Fetcher Fetcher
	// HTTPClient is used for raw page fetches and by the default Fetcher.
	HTTPClient *http.Client
	// FetchTimeout bounds a single URL fetch (default 10s).
	FetchTimeout time.Duration
	// CSS is embedded by the styling step. Defaults to the built-in default template.
	CSS    string
	Logger *slog.Logger
}

// Converter turns clipboard text of a known Format into an HTML document.
type Converter struct {
	fetcher  Fetcher
	scraper  *HTTPFetcher
	markdown *markdownRenderer
	css      string
	logger   *slog.Logger
}

// NewConverter creates a Converter.
func NewConverter(opts ConverterOptions) *Converter {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	scraper := NewHTTPFetcher(opts.HTTPClient, timeout)
	var fetcher Fetcher = scraper
	if opts.Fetcher != nil {
		fetcher = opts.Fetcher
	}
	css := opts.CSS
	if css == "" {
		css = builtinTemplate(DefaultTemplate)
	}
	return &Converter{
		fetcher:  fetcher,
		scraper:  scraper,
		markdown: newMarkdownRenderer(),
		css:      css,
		logger:   logger,
	}
}

// Convert converts text as format f and applies styling. It never fails:
// converter problems degrade the output and are reported as Warnings.
func (c *Converter) Convert(ctx context.Context, text string, f Format) Conversion {
	var (
		fragment string
		md       Metadata
		warn     *Warning
	)

	switch f {
	case FormatURL:
		fragment, md, warn = c.convertURL(ctx, text)
	case FormatRTF:
		fragment, md, warn = convertRTF(text)
	case FormatHTML:
		fragment, md, warn = convertHTML(text)
	case FormatMarkdown:
		fragment, md, warn = c.convertMarkdown(text)
	default:
		fragment, md = convertPlain(text)
	}

	out := Conversion{Metadata: md}
	if warn != nil {
		out.Warnings = append(out.Warnings, *warn)
		c.logger.Warn("conversion degraded", "format", f, "warning", warn.String())
	}

	styled, err := ApplyStyling(fragment, c.css)
	if err != nil {
		w := Warning{Format: f, Message: "styling failed, using unstyled fragment", Err: err}
		out.Warnings = append(out.Warnings, w)
		c.logger.Warn("conversion degraded", "format", f, "warning", w.String())
		styled = fragment
	}
	out.HTML = styled
	return out
}

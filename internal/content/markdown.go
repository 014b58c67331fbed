package content

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

type markdownRenderer struct {
	md goldmark.Markdown
}

func newMarkdownRenderer() *markdownRenderer {
	return &markdownRenderer{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.Footnote,
				extension.Typographer,
			),
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
			goldmark.WithRendererOptions(
				gmhtml.WithUnsafe(),
				gmhtml.WithXHTML(),
			),
		),
	}
}

func (r *markdownRenderer) render(text string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(text), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (c *Converter) convertMarkdown(text string) (string, Metadata, *Warning) {
	md := Metadata{Type: string(FormatMarkdown)}

	out, err := c.markdown.render(text)
	if err != nil {
		frag, _ := convertPlain(text)
		return frag, md, &Warning{Format: FormatMarkdown, Message: "markdown rendering failed, wrapped as plain text", Err: err}
	}

	// raw html is rendered, so it gets the same policy as html input
	out = fragmentPolicy.Sanitize(out)
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(out)); err == nil {
		if h1 := doc.Find("h1").First(); h1.Length() > 0 {
			md.Title = strings.TrimSpace(h1.Text())
		}
	}
	return out, md, nil
}

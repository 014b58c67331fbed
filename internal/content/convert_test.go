package content

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTextToParagraphs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"single", "hello", "<p>hello</p>"},
		{"escaped", "a < b & c", "<p>a &lt; b &amp; c</p>"},
		{"line break", "one\ntwo", "<p>one<br/>two</p>"},
		{"paragraphs", "one\n\ntwo\r\n\r\nthree", "<p>one</p>\n<p>two</p>\n<p>three</p>"},
		{"extra blank lines", "one\n\n\n\ntwo", "<p>one</p>\n<p>two</p>"},
		{"blank", "  \n\n ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := textToParagraphs(tt.in); got != tt.want {
				t.Fatalf("textToParagraphs(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRTFToText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{\rtf1\ansi Hello world}`, "Hello world"},
		{"font table skipped", `{\rtf1\ansi{\fonttbl{\f0 Arial;}}\f0 Hello {\b bold} text}`, "Hello bold text"},
		{"paragraphs", `{\rtf1 One\par Two\par\par\par Three}`, "One\n\nTwo\n\nThree"},
		{"code page escape", `{\rtf1 Caf\'e9}`, "Café"},
		{"unicode escape skips fallback", `{\rtf1 Price \u8364? 5}`, "Price € 5"},
		{"negative unicode", `{\rtf1 \uc1\u-3913 ?}`, "\uf0b7"},
		{"surrogate pair", `{\rtf1\ansi\uc1 Smile \u-10179?\u-8704? done}`, "Smile \U0001F600 done"},
		{"surrogate pair without fallback", `{\rtf1\uc0 \u55357\u56832}`, "\U0001F600"},
		{"lone high surrogate", `{\rtf1 a\u-10179? b}`, "a\uFFFD b"},
		{"escaped braces", `{\rtf1 a \{b\} c\\d}`, `a {b} c\d`},
		{"ignorable destination", `{\rtf1 {\*\generator Word;}Text}`, "Text"},
		{"symbols", `{\rtf1 \ldblquote hi\rdblquote\emdash ok}`, "“hi”—ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := rtfToText(tt.in)
			if err != nil {
				t.Fatalf("rtfToText() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("rtfToText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRTFToText_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"unclosed group", `{\rtf1 Hello`, ErrRTFUnbalanced},
		{"extra close", `{\rtf1 Hello}}`, ErrRTFUnbalanced},
		{"trailing backslash", `{\rtf1 Hello\`, ErrRTFTruncated},
		{"short hex escape", `{\rtf1 \'e`, ErrRTFTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := rtfToText(tt.in); !errors.Is(err, tt.want) {
				t.Fatalf("rtfToText(%q) error = %v, want %v", tt.in, err, tt.want)
			}
		})
	}
}

func TestConvertRTF_FallsBack(t *testing.T) {
	frag, md, warn := convertRTF(`{\rtf1 broken <tag>`)
	if warn == nil || !errors.Is(warn.Err, ErrRTFUnbalanced) {
		t.Fatalf("warning = %v, want unbalanced", warn)
	}
	if md.Type != "rtf" {
		t.Errorf("Type = %q", md.Type)
	}
	if !strings.Contains(frag, `&lt;tag&gt;`) {
		t.Errorf("raw text should be escaped, got %q", frag)
	}
}

func TestConvertHTML(t *testing.T) {
	in := `<html lang="de"><head><title> Page Title </title>
<meta name="author" content="Ann Author"><meta name="description" content="About things">
<style>p { color: red }</style></head>
<body><p onclick="steal()">Hello <b>there</b></p><script>alert(1)</script>
<noscript>enable js</noscript><a href="https://example.com">link</a></body></html>`

	frag, md, warn := convertHTML(in)
	if warn != nil {
		t.Fatalf("unexpected warning: %v", warn)
	}
	if md.Title != "Page Title" || md.Language != "de" || md.Description != "About things" {
		t.Errorf("metadata = %+v", md)
	}
	if len(md.Authors) != 1 || md.Authors[0] != "Ann Author" {
		t.Errorf("authors = %v", md.Authors)
	}
	if !strings.Contains(frag, "<p>Hello <b>there</b></p>") {
		t.Errorf("body lost, got %q", frag)
	}
	for _, bad := range []string{"script", "alert", "onclick", "enable js", "color: red"} {
		if strings.Contains(frag, bad) {
			t.Errorf("fragment should not contain %q: %q", bad, frag)
		}
	}
	if strings.Contains(frag, "nofollow") {
		t.Errorf("links should not be rewritten, got %q", frag)
	}
}

func TestConvertMarkdown(t *testing.T) {
	c := NewConverter(ConverterOptions{Logger: quietLogger()})
	frag, md, warn := c.convertMarkdown("# The Title\n\nSome *emphasis* and a table:\n\n| a | b |\n|---|---|\n| 1 | 2 |\n")
	if warn != nil {
		t.Fatalf("unexpected warning: %v", warn)
	}
	if md.Title != "The Title" || md.Type != "markdown" {
		t.Errorf("metadata = %+v", md)
	}
	for _, want := range []string{"<h1", "<em>emphasis</em>", "<table>"} {
		if !strings.Contains(frag, want) {
			t.Errorf("fragment missing %q: %q", want, frag)
		}
	}
}

func TestConvertMarkdown_RawHTMLIsSanitized(t *testing.T) {
	c := NewConverter(ConverterOptions{Logger: quietLogger()})
	src := "# Notes\n\n<script>alert('x < y && z')</script>\n\n<style>p { color: red }</style>\n\n" +
		"Text with <b onclick=\"steal()\">inline html</b>.\n\n<div class=\"box\">kept</div>\n"
	frag, md, warn := c.convertMarkdown(src)
	if warn != nil {
		t.Fatalf("unexpected warning: %v", warn)
	}
	if md.Title != "Notes" {
		t.Errorf("Title = %q", md.Title)
	}
	for _, bad := range []string{"<script", "alert(", "<style", "color: red", "onclick"} {
		if strings.Contains(frag, bad) {
			t.Errorf("fragment still holds %q: %q", bad, frag)
		}
	}
	for _, want := range []string{"<b>inline html</b>", `<div class="box">kept</div>`, `id="notes"`} {
		if !strings.Contains(frag, want) {
			t.Errorf("fragment missing %q: %q", want, frag)
		}
	}
}

func TestApplyStyling(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"fragment", "<p>hello</p>"},
		{"document with style", "<html><head><style>old {}</style></head><body><p>hello</p></body></html>"},
		{"document without head", "<html><body><p>hello</p></body></html>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ApplyStyling(tt.in, "p { color: navy; } /* </style> */")
			if err != nil {
				t.Fatalf("ApplyStyling() error = %v", err)
			}
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(out))
			if err != nil {
				t.Fatalf("output does not parse: %v", err)
			}
			styles := doc.Find("head style")
			if styles.Length() != 1 {
				t.Fatalf("got %d style elements in head, want 1: %s", styles.Length(), out)
			}
			if !strings.Contains(styles.Text(), "color: navy") || strings.Contains(out, "old {}") {
				t.Errorf("style = %q", styles.Text())
			}
			if doc.Find("body p").Text() != "hello" {
				t.Errorf("body lost: %s", out)
			}
		})
	}
}

func TestConverter_Convert(t *testing.T) {
	c := NewConverter(ConverterOptions{CSS: "body { margin: 0; }", Logger: quietLogger()})
	ctx := context.Background()

	tests := []struct {
		format   Format
		text     string
		wantType string
		wantBody string
	}{
		{FormatPlain, "hello\n\nworld", "plain", "<p>world</p>"},
		{FormatHTML, "<p>hi <i>you</i></p>", "html", "<i>you</i>"},
		{FormatMarkdown, "# Head\n\n**bold**", "markdown", "<strong>bold</strong>"},
		{FormatRTF, `{\rtf1 Rich text}`, "rtf", "<p>Rich text</p>"},
	}
	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			conv := c.Convert(ctx, tt.text, tt.format)
			if len(conv.Warnings) != 0 {
				t.Fatalf("warnings = %v", conv.Warnings)
			}
			if conv.Metadata.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", conv.Metadata.Type, tt.wantType)
			}
			if !strings.Contains(conv.HTML, tt.wantBody) {
				t.Errorf("HTML missing %q: %s", tt.wantBody, conv.HTML)
			}
			if strings.Count(conv.HTML, "<style>") != 1 || !strings.Contains(conv.HTML, "margin: 0") {
				t.Errorf("HTML should embed the css once: %s", conv.HTML)
			}
		})
	}
}

func TestConverter_ConvertWarnsInsteadOfFailing(t *testing.T) {
	c := NewConverter(ConverterOptions{Logger: quietLogger()})
	conv := c.Convert(context.Background(), `{\rtf1 never closed`, FormatRTF)
	if len(conv.Warnings) != 1 || conv.Warnings[0].Format != FormatRTF {
		t.Fatalf("warnings = %v", conv.Warnings)
	}
	if !strings.Contains(conv.Warnings[0].String(), "rtf:") {
		t.Errorf("String() = %q", conv.Warnings[0].String())
	}
	if !strings.Contains(conv.HTML, "never closed") {
		t.Errorf("fallback should keep the raw text: %s", conv.HTML)
	}
}

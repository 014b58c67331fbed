package epub

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	xhtml "golang.org/x/net/html"

	"github.com/yuanying/clip2epub/internal/content"
)

const (
	nsXHTML = "http://www.w3.org/1999/xhtml"
	nsEPUB  = "http://www.idpf.org/2007/ops"
	nsXLink = "http://www.w3.org/1999/xlink"
)

var (
	xmlNameRe     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9._-]*(:[A-Za-z_][A-Za-z0-9._-]*)?$`)
	chapterLinkRe = regexp.MustCompile(`^#chapter_(\d+)$`)
)

// skeleton wraps a body fragment in a minimal XHTML document.
func skeleton(title, body string) string {
	return fmt.Sprintf(`<!DOCTYPE html><html><head><meta charset="UTF-8"/><title>%s</title>`+
		`<link rel="stylesheet" type="text/css" href="%s"/></head><body>%s</body></html>`,
		html.EscapeString(title), styleHref, body)
}

// chapterDocument renders one chapter as a standalone XHTML file. Complete
// documents keep their own structure; fragments get the skeleton and a title
// heading unless they already open with one.
func chapterDocument(ch content.Chapter, lang string) ([]byte, error) {
	body := xmlSafe(ch.Content)
	src := body
	if !isDocument(body) {
		heading := ""
		if !opensWithTitle(body, ch.Title) {
			heading = "<h1>" + html.EscapeString(ch.Title) + "</h1>"
		}
		src = skeleton(ch.Title, heading+body)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("failed to parse chapter: %w", err)
	}
	return finishDocument(doc, ch.Title, lang)
}

// tocDocument renders the generated table of contents. In-document anchors
// are pointed at the chapter files they live in.
func tocDocument(toc, title, lang string) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(skeleton(title, xmlSafe(toc))))
	if err != nil {
		return nil, err
	}
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if m := chapterLinkRe.FindStringSubmatch(href); m != nil {
			n, _ := strconv.Atoi(m[1])
			a.SetAttr("href", content.ChapterHref(n)+href)
		}
	})
	return finishDocument(doc, title, lang)
}

// navDocument renders the EPUB 3 navigation document.
func (b *Book) navDocument() ([]byte, error) {
	var s strings.Builder
	s.WriteString(`<nav epub:type="toc" id="toc"><h1>` + html.EscapeString(b.Title) + `</h1><ol>`)
	for _, e := range b.navEntries() {
		fmt.Fprintf(&s, `<li><a href="%s">%s</a></li>`, html.EscapeString(e.Href), html.EscapeString(e.Label))
	}
	s.WriteString(`</ol></nav>`)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(skeleton(b.Title, s.String())))
	if err != nil {
		return nil, fmt.Errorf("failed to parse navigation: %w", err)
	}
	return finishDocument(doc, b.Title, b.Language)
}

// finishDocument makes doc serialisable as XML: namespaces on the root,
// a title and the stylesheet link in head, no comments and no attributes
// that are not XML names.
func finishDocument(doc *goquery.Document, title, lang string) ([]byte, error) {
	root := doc.Find("html").First()
	root.SetAttr("xmlns", nsXHTML)
	root.SetAttr("xmlns:epub", nsEPUB)
	if lang != "" {
		if _, ok := root.Attr("lang"); !ok {
			root.SetAttr("lang", lang)
		}
		if _, ok := root.Attr("xml:lang"); !ok {
			root.SetAttr("xml:lang", lang)
		}
	}

	head := doc.Find("head").First()
	if head.Find("title").Length() == 0 {
		head.AppendHtml("<title>" + html.EscapeString(title) + "</title>")
	}
	if head.Find(`link[href="` + styleHref + `"]`).Length() == 0 {
		head.AppendHtml(`<link rel="stylesheet" type="text/css" href="` + styleHref + `"/>`)
	}

	usesXLink := false
	for _, n := range doc.Nodes {
		cleanTree(n, &usesXLink)
	}
	if usesXLink {
		root.SetAttr("xmlns:xlink", nsXLink)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if err := xhtml.Render(&buf, doc.Nodes[0]); err != nil {
		return nil, fmt.Errorf("failed to render xhtml: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func cleanTree(n *xhtml.Node, usesXLink *bool) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == xhtml.CommentNode {
			n.RemoveChild(c)
		} else {
			cleanTree(c, usesXLink)
		}
		c = next
	}
	if n.Type != xhtml.ElementNode {
		return
	}
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		switch {
		case a.Namespace == "xlink":
			*usesXLink = true
		case a.Namespace != "":
		case !xmlNameRe.MatchString(a.Key):
			continue
		case strings.Contains(a.Key, ":") && !knownPrefix(a.Key):
			continue
		}
		kept = append(kept, a)
	}
	n.Attr = kept
}

func knownPrefix(key string) bool {
	prefix, _, _ := strings.Cut(key, ":")
	return prefix == "xml" || prefix == "xmlns" || prefix == "epub"
}

// opensWithTitle reports whether the first element of fragment is a heading
// whose text is title.
func opensWithTitle(fragment, title string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return false
	}
	first := doc.Find("body").Children().First()
	switch goquery.NodeName(first) {
	case "h1", "h2", "h3":
		return strings.Join(strings.Fields(first.Text()), " ") == strings.Join(strings.Fields(title), " ")
	}
	return false
}

func isDocument(s string) bool {
	head := strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(head, "<!doctype") || strings.HasPrefix(head, "<html")
}

// xmlSafe drops invalid UTF-8 and every rune outside the XML 1.0 Char
// production.
func xmlSafe(s string) string {
	return strings.Map(func(r rune) rune {
		if isXMLChar(r) {
			return r
		}
		return -1
	}, strings.ToValidUTF8(s, ""))
}

func isXMLChar(r rune) bool {
	switch {
	case r == 0x09 || r == 0x0A || r == 0x0D:
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	}
	return false
}

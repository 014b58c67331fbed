package content

import (
	"encoding/xml"
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultTOCTitle heads generated tables of contents.
const DefaultTOCTitle = "Table of Contents"

// AnchorID is the element id that marks the start of chapter n (1-based).
func AnchorID(n int) string {
	return fmt.Sprintf("chapter_%d", n)
}

// ChapterHref is the document name of chapter n (1-based).
func ChapterHref(n int) string {
	return fmt.Sprintf("chapter_%d.xhtml", n)
}

// GenerateTOCHTML builds a navigation block linking every chapter anchor.
func GenerateTOCHTML(chapters []Chapter, title string) string {
	if title == "" {
		title = DefaultTOCTitle
	}
	var b strings.Builder
	b.WriteString(`<div class="toc">`)
	fmt.Fprintf(&b, "<h1>%s</h1><nav><ul>", html.EscapeString(title))
	for i, ch := range chapters {
		label := ch.Title
		if label == "" {
			label = fmt.Sprintf("Chapter %d", i+1)
		}
		fmt.Fprintf(&b, `<li><a href="#%s">%s</a></li>`, AnchorID(i+1), html.EscapeString(label))
	}
	b.WriteString("</ul></nav></div>")
	return b.String()
}

// AddAnchors returns copies of chapters in which the first h1, h2 or h3 of
// chapter n carries id chapter_{n}. Chapters without such a heading are
// wrapped in a div with that id. Running it again on its own output changes
// nothing.
func AddAnchors(chapters []Chapter) []Chapter {
	out := make([]Chapter, len(chapters))
	for i, ch := range chapters {
		out[i] = Chapter{Title: ch.Title, Content: anchorChapter(ch.Content, AnchorID(i+1))}
	}
	return out
}

func anchorChapter(content, id string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return fmt.Sprintf(`<div id="%s">%s</div>`, id, content)
	}
	body := doc.Find("body").First()

	if heading := body.Find("h1, h2, h3").First(); heading.Length() > 0 {
		heading.SetAttr("id", id)
	} else if !isAnchorWrapper(body, id) {
		inner, err := body.Html()
		if err != nil {
			return fmt.Sprintf(`<div id="%s">%s</div>`, id, content)
		}
		body.SetHtml(fmt.Sprintf(`<div id="%s">%s</div>`, id, strings.TrimSpace(inner)))
	}

	if looksLikeDocument(content) {
		if rendered, err := goquery.OuterHtml(doc.Selection); err == nil {
			return rendered
		}
		return content
	}
	inner, err := body.Html()
	if err != nil {
		return content
	}
	return strings.TrimSpace(inner)
}

// isAnchorWrapper reports whether body holds nothing but a div with id.
func isAnchorWrapper(body *goquery.Selection, id string) bool {
	children := body.Children()
	if children.Length() != 1 || goquery.NodeName(children) != "div" {
		return false
	}
	if got, _ := children.Attr("id"); got != id {
		return false
	}
	for n := body.Get(0).FirstChild; n != nil; n = n.NextSibling {
		if n != children.Get(0) && !isBlank(n) {
			return false
		}
	}
	return true
}

func looksLikeDocument(s string) bool {
	head := strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(head, "<!doctype") || strings.HasPrefix(head, "<html")
}

// NavEntry is one navigation target in an NCX document.
type NavEntry struct {
	Label string
	Href  string
}

type ncxDocument struct {
	XMLName   xml.Name      `xml:"http://www.daisy.org/z3986/2005/ncx/ ncx"`
	Version   string        `xml:"version,attr"`
	Meta      []ncxMeta     `xml:"head>meta"`
	DocTitle  string        `xml:"docTitle>text"`
	NavPoints []ncxNavPoint `xml:"navMap>navPoint"`
}

type ncxMeta struct {
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

type ncxNavPoint struct {
	ID        string     `xml:"id,attr"`
	PlayOrder int        `xml:"playOrder,attr"`
	Label     string     `xml:"navLabel>text"`
	Content   ncxContent `xml:"content"`
}

type ncxContent struct {
	Src string `xml:"src,attr"`
}

const ncxDoctype = `<!DOCTYPE ncx PUBLIC "-//NISO//DTD ncx 2005-1//EN" "http://www.daisy.org/z3986/2005/ncx-2005-1.dtd">` + "\n"

// GenerateNCX builds an NCX document with one navPoint per chapter pointing
// at chapter_{n}.xhtml.
func GenerateNCX(chapters []Chapter, bookTitle, bookID string) (string, error) {
	entries := make([]NavEntry, len(chapters))
	for i, ch := range chapters {
		entries[i] = NavEntry{Label: ch.Title, Href: ChapterHref(i + 1)}
	}
	return RenderNCX(entries, bookTitle, bookID)
}

// RenderNCX builds an NCX document for entries in order. playOrder follows
// the entry position.
func RenderNCX(entries []NavEntry, bookTitle, bookID string) (string, error) {
	doc := ncxDocument{
		Version: "2005-1",
		Meta: []ncxMeta{
			{Name: "dtb:uid", Content: bookID},
			{Name: "dtb:depth", Content: "1"},
			{Name: "dtb:totalPageCount", Content: "0"},
			{Name: "dtb:maxPageNumber", Content: "0"},
		},
		DocTitle: bookTitle,
	}
	for i, e := range entries {
		label := e.Label
		if label == "" {
			label = fmt.Sprintf("Chapter %d", i+1)
		}
		doc.NavPoints = append(doc.NavPoints, ncxNavPoint{
			ID:        fmt.Sprintf("navpoint-%d", i+1),
			PlayOrder: i + 1,
			Label:     label,
			Content:   ncxContent{Src: e.Href},
		})
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal ncx: %w", err)
	}
	return xml.Header + ncxDoctype + string(body) + "\n", nil
}

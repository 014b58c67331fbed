package content

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// strippedElements are removed from HTML input together with their content.
const strippedElements = "script, style, meta, link, noscript"

var fragmentPolicy = newFragmentPolicy()

func newFragmentPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Globally()
	p.RequireNoFollowOnLinks(false)
	return p
}

func convertHTML(text string) (string, Metadata, *Warning) {
	md := Metadata{Type: string(FormatHTML)}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return textToParagraphs(text), md, &Warning{Format: FormatHTML, Message: "unparseable html, wrapped as plain text", Err: err}
	}

	if title := doc.Find("head title, title").First(); title.Length() > 0 {
		md.Title = strings.TrimSpace(title.Text())
	}
	if desc, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		md.Description = strings.TrimSpace(desc)
	}
	if author, ok := doc.Find(`meta[name="author"]`).First().Attr("content"); ok && strings.TrimSpace(author) != "" {
		md.Authors = []string{strings.TrimSpace(author)}
	}
	if lang, ok := doc.Find("html").First().Attr("lang"); ok {
		md.Language = strings.TrimSpace(lang)
	}

	doc.Find(strippedElements).Remove()

	body, err := doc.Find("body").First().Html()
	if err != nil {
		return textToParagraphs(doc.Text()), md, &Warning{Format: FormatHTML, Message: "failed to render body, wrapped text only", Err: err}
	}
	return fragmentPolicy.Sanitize(body), md, nil
}

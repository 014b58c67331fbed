package epub

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Content is a parsed XHTML document from the spine.
type Content struct {
	ID        string
	Path      string
	Document  *goquery.Document
	CSSLinks  []string // archive paths
	ImageRefs []string // archive paths
	IDs       map[string]bool
}

// LoadContent parses an XHTML document and collects the references it makes.
// docPath is the document's archive path and resolves relative links.
func LoadContent(id, docPath string, data []byte) (*Content, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse XHTML: %w", err)
	}

	c := &Content{ID: id, Path: docPath, Document: doc, IDs: make(map[string]bool)}
	baseDir := path.Dir(docPath)

	doc.Find("link[rel='stylesheet']").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			c.CSSLinks = append(c.CSSLinks, resolvePath(baseDir, href))
		}
	})
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if !strings.Contains(src, ":") {
			c.ImageRefs = append(c.ImageRefs, resolvePath(baseDir, src))
		}
	})
	doc.Find("[id]").Each(func(_ int, s *goquery.Selection) {
		v, _ := s.Attr("id")
		c.IDs[v] = true
	})
	return c, nil
}

// Title is the document title or, failing that, its first heading.
func (c *Content) Title() string {
	if t := strings.TrimSpace(c.Document.Find("head > title").First().Text()); t != "" {
		return t
	}
	return strings.TrimSpace(c.Document.Find("h1, h2, h3").First().Text())
}

// resolvePath resolves rel against baseDir ("text" + "../images/a.jpg" ->
// "images/a.jpg").
func resolvePath(baseDir, rel string) string {
	if baseDir == "" || baseDir == "." {
		return path.Clean(rel)
	}
	return path.Clean(path.Join(baseDir, rel))
}

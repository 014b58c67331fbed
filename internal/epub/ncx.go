package epub

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// NavPoint is one flat navigation target from toc.ncx or nav.xhtml.
type NavPoint struct {
	Label       string
	ContentPath string // archive path without fragment
	Fragment    string // without '#'
}

type ncxFile struct {
	DocTitle  string         `xml:"docTitle>text"`
	Meta      []ncxHeadMeta  `xml:"head>meta"`
	NavPoints []ncxNavPointR `xml:"navMap>navPoint"`
}

type ncxHeadMeta struct {
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

type ncxNavPointR struct {
	Label   string `xml:"navLabel>text"`
	Content struct {
		Src string `xml:"src,attr"`
	} `xml:"content"`
	Children []ncxNavPointR `xml:"navPoint"`
}

// NCX is a parsed toc.ncx with its navPoints flattened in document order.
type NCX struct {
	UID       string
	DocTitle  string
	NavPoints []NavPoint
}

// ParseNCX parses an NCX document. baseDir resolves content sources.
func ParseNCX(data []byte, baseDir string) (*NCX, error) {
	var f ncxFile
	if err := xml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse NCX: %w", err)
	}

	out := &NCX{DocTitle: strings.TrimSpace(f.DocTitle)}
	for _, m := range f.Meta {
		if m.Name == "dtb:uid" {
			out.UID = m.Content
		}
	}
	var walk func([]ncxNavPointR)
	walk = func(points []ncxNavPointR) {
		for _, p := range points {
			out.NavPoints = append(out.NavPoints, newNavPoint(p.Label, p.Content.Src, baseDir))
			walk(p.Children)
		}
	}
	walk(f.NavPoints)
	return out, nil
}

// ParseNav reads the links of the toc nav element of an EPUB 3 navigation
// document.
func ParseNav(data []byte, baseDir string) ([]NavPoint, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse navigation document: %w", err)
	}

	var points []NavPoint
	doc.Find("nav").EachWithBreak(func(_ int, nav *goquery.Selection) bool {
		kind, _ := nav.Attr("epub:type")
		if !containsToken(kind, "toc") {
			return true
		}
		nav.Find("li > a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			points = append(points, newNavPoint(a.Text(), href, baseDir))
		})
		return false
	})
	return points, nil
}

func newNavPoint(label, src, baseDir string) NavPoint {
	p, frag := splitFragment(src)
	if p != "" {
		p = joinPath(baseDir, p)
	}
	return NavPoint{Label: strings.Join(strings.Fields(label), " "), ContentPath: p, Fragment: frag}
}

func containsToken(list, token string) bool {
	for _, t := range strings.Fields(list) {
		if t == token {
			return true
		}
	}
	return false
}

// splitFragment splits "file.xhtml#id" into its path and fragment.
func splitFragment(src string) (path, fragment string) {
	path, fragment, _ = strings.Cut(src, "#")
	return path, fragment
}

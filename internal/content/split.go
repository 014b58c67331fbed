package content

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultWordsPerChapter is the word-count split threshold.
const DefaultWordsPerChapter = 3000

// containerTags are unwrapped when they hold block content, so chapter
// boundaries can fall inside them.
var containerTags = map[atom.Atom]bool{
	atom.Div:     true,
	atom.Section: true,
	atom.Article: true,
	atom.Main:    true,
	atom.Header:  true,
	atom.Footer:  true,
	atom.Aside:   true,
	atom.Nav:     true,
	atom.Figure:  true,
}

var blockTags = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Blockquote: true, atom.Ul: true, atom.Ol: true,
	atom.Pre: true, atom.Table: true, atom.Section: true, atom.Article: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
}

// Splitter partitions an HTML document into chapters.
type Splitter struct {
	wordsPerChapter int
}

// NewSplitter creates a Splitter. A non-positive threshold uses DefaultWordsPerChapter.
func NewSplitter(wordsPerChapter int) *Splitter {
	if wordsPerChapter <= 0 {
		wordsPerChapter = DefaultWordsPerChapter
	}
	return &Splitter{wordsPerChapter: wordsPerChapter}
}

// Split returns at least one chapter. Documents with more than one h1/h2
// are split at those headings, anything else by word count.
func (s *Splitter) Split(document, suggestedTitle string) []Chapter {
	single := firstNonEmpty(suggestedTitle, "Chapter 1")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return []Chapter{{Title: single, Content: document}}
	}
	body := doc.Find("body").First()
	if body.Length() == 0 {
		return []Chapter{{Title: single, Content: document}}
	}

	if body.Find("h1, h2").Length() > 1 {
		return splitByHeadings(body.Get(0), suggestedTitle)
	}
	return s.splitByWords(body.Get(0), single)
}

func isTrackedHeading(n *html.Node) bool {
	return n.Type == html.ElementNode && (n.DataAtom == atom.H1 || n.DataAtom == atom.H2)
}

func containsTrackedHeading(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isTrackedHeading(c) || containsTrackedHeading(c) {
			return true
		}
	}
	return false
}

// headingSequence flattens n into the sibling sequence that heading-based
// splitting walks, unwrapping any element that contains a tracked heading.
func headingSequence(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && !isTrackedHeading(c) && containsTrackedHeading(c) {
			out = append(out, headingSequence(c)...)
			continue
		}
		if isBlank(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func splitByHeadings(body *html.Node, suggestedTitle string) []Chapter {
	var (
		chapters []Chapter
		leading  []string
		parts    []string
		open     bool
	)
	flush := func() {
		if open {
			chapters[len(chapters)-1].Content = strings.Join(parts, "\n")
		}
		parts = nil
	}

	for _, n := range headingSequence(body) {
		if isTrackedHeading(n) {
			flush()
			chapters = append(chapters, Chapter{Title: collapseSpaces(nodeText(n))})
			open = true
			continue
		}
		if !open {
			leading = append(leading, renderNode(n))
			continue
		}
		parts = append(parts, renderNode(n))
	}
	flush()

	if len(leading) > 0 {
		intro := Chapter{Title: firstNonEmpty(suggestedTitle, "Introduction"), Content: strings.Join(leading, "\n")}
		chapters = append([]Chapter{intro}, chapters...)
	}

	for _, ch := range chapters {
		if strings.TrimSpace(ch.Content) != "" {
			return chapters
		}
	}
	return []Chapter{{Title: "Chapter 1", Content: innerHTML(body)}}
}

func hasBlockDescendant(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (blockTags[c.DataAtom] || hasBlockDescendant(c)) {
			return true
		}
	}
	return false
}

// wordSequence flattens n into the outermost units counted by word-count
// splitting. Containers holding block elements are unwrapped.
func wordSequence(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && containerTags[c.DataAtom] && hasBlockDescendant(c) {
			out = append(out, wordSequence(c)...)
			continue
		}
		if isBlank(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (s *Splitter) splitByWords(body *html.Node, singleTitle string) []Chapter {
	if nodeWords(body) <= s.wordsPerChapter {
		return []Chapter{{Title: singleTitle, Content: innerHTML(body)}}
	}

	var (
		chapters []Chapter
		parts    []string
		words    int
	)
	closeChapter := func() {
		chapters = append(chapters, Chapter{
			Title:   fmt.Sprintf("Chapter %d", len(chapters)+1),
			Content: strings.Join(parts, "\n"),
		})
		parts = nil
		words = 0
	}

	for _, n := range wordSequence(body) {
		w := nodeWords(n)
		if words+w > s.wordsPerChapter && len(parts) > 0 {
			closeChapter()
		}
		parts = append(parts, renderNode(n))
		words += w
	}
	if len(parts) > 0 {
		closeChapter()
	}
	if len(chapters) == 0 {
		return []Chapter{{Title: singleTitle, Content: innerHTML(body)}}
	}
	return chapters
}

func countWords(s string) int {
	return len(strings.Fields(s))
}

// wordBreaks are elements whose edges separate words even when the markup
// has no whitespace between them.
var wordBreaks = map[atom.Atom]bool{
	atom.Li: true, atom.Br: true, atom.Tr: true, atom.Td: true, atom.Th: true,
	atom.Dt: true, atom.Dd: true, atom.Hr: true,
}

// nodeWords counts the words of n, treating block edges as separators.
func nodeWords(n *html.Node) int {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if n.DataAtom == atom.Script || n.DataAtom == atom.Style {
				return
			}
		}
		brk := n.Type == html.ElementNode && (blockTags[n.DataAtom] || wordBreaks[n.DataAtom])
		if brk {
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if brk {
			b.WriteByte(' ')
		}
	}
	walk(n)
	return countWords(b.String())
}

func isBlank(n *html.Node) bool {
	switch n.Type {
	case html.CommentNode:
		return true
	case html.TextNode:
		return strings.TrimSpace(n.Data) == ""
	}
	return false
}

func nodeText(n *html.Node) string {
	return goquery.NewDocumentFromNode(n).Text()
}

func renderNode(n *html.Node) string {
	var b strings.Builder
	if err := html.Render(&b, n); err != nil {
		return ""
	}
	return b.String()
}

func innerHTML(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			continue
		}
	}
	return strings.TrimSpace(b.String())
}

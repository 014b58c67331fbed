package content

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html/charset"
)

const (
	maxPageBytes     = 10 << 20
	minArticleParas  = 2
	minArticleWords  = 25
	defaultUserAgent = "clip2epub/1.0 (+https://github.com/yuanying/clip2epub)"
)

// ErrNoArticle is returned when a page has no recognisable article body.
var ErrNoArticle = errors.New("no article content found")

// Article is the main content extracted from a web page.
type Article struct {
	Title       string
	Authors     []string
	PublishDate string
	Text        string
}

// Fetcher extracts the article at a URL. Errors trigger the fallback tiers.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Article, error)
}

// HTTPFetcher downloads pages over HTTP and extracts articles with
// go-readability.
type HTTPFetcher struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTPFetcher creates an HTTPFetcher. A nil client uses a client with the
// given timeout.
func NewHTTPFetcher(client *http.Client, timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPFetcher{client: client, timeout: timeout}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Article, error) {
	doc, err := f.document(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return extractArticle(doc, rawURL)
}

// document downloads rawURL and parses it, decoding the declared charset.
func (f *HTTPFetcher) document(ctx context.Context, rawURL string) (*goquery.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("failed to fetch %s: HTTP %d", rawURL, resp.StatusCode)
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, maxPageBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", rawURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", rawURL, err)
	}
	return doc, nil
}

func extractArticle(doc *goquery.Document, rawURL string) (*Article, error) {
	a := &Article{
		Title:       metaContent(doc, `meta[property="og:title"]`),
		Authors:     articleAuthors(doc),
		PublishDate: publishDate(doc),
	}
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse url: %w", err)
	}

	parsed, err := readability.FromDocument(doc.Get(0), pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoArticle, err)
	}
	a.Title = firstNonEmpty(a.Title, parsed.Title, doc.Find("title").First().Text())
	if len(a.Authors) == 0 {
		if byline := collapseSpaces(strings.TrimPrefix(strings.TrimSpace(parsed.Byline), "By ")); byline != "" {
			a.Authors = []string{byline}
		}
	}

	var paras []string
	if parsed.Node != nil {
		goquery.NewDocumentFromNode(parsed.Node).Find("p, pre, blockquote, li").Each(func(_ int, s *goquery.Selection) {
			if s.ParentsFiltered("p, pre, blockquote, li").Length() > 0 {
				return
			}
			if text := collapseSpaces(s.Text()); text != "" {
				paras = append(paras, text)
			}
		})
	}
	if len(paras) == 0 {
		for _, line := range strings.Split(parsed.TextContent, "\n") {
			if line = collapseSpaces(line); line != "" {
				paras = append(paras, line)
			}
		}
	}

	words := 0
	for _, p := range paras {
		words += len(strings.Fields(p))
	}
	if len(paras) < minArticleParas || words < minArticleWords {
		return nil, ErrNoArticle
	}
	a.Text = strings.Join(paras, "\n\n")
	return a, nil
}

func articleAuthors(doc *goquery.Document) []string {
	var authors []string
	seen := make(map[string]bool)
	push := func(name string) {
		name = collapseSpaces(name)
		if name == "" || seen[strings.ToLower(name)] {
			return
		}
		seen[strings.ToLower(name)] = true
		authors = append(authors, name)
	}
	doc.Find(`meta[name="author"], meta[property="article:author"]`).Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("content"); ok && !strings.HasPrefix(v, "http") {
			push(v)
		}
	})
	doc.Find(`[rel="author"], [itemprop="author"]`).Each(func(_ int, s *goquery.Selection) {
		push(s.Text())
	})
	return authors
}

func publishDate(doc *goquery.Document) string {
	if v := firstNonEmpty(
		metaContent(doc, `meta[property="article:published_time"]`),
		metaContent(doc, `meta[itemprop="datePublished"]`),
		metaContent(doc, `meta[name="date"]`),
	); v != "" {
		return v
	}
	if v, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func metaContent(doc *goquery.Document, selector string) string {
	v, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func (c *Converter) convertURL(ctx context.Context, rawURL string) (string, Metadata, *Warning) {
	rawURL = strings.TrimSpace(rawURL)
	md := Metadata{Type: "web_article", Source: rawURL}

	article, err := c.fetcher.Fetch(ctx, rawURL)
	if err == nil {
		md.Title = article.Title
		md.Authors = article.Authors
		md.PublishDate = article.PublishDate
		return articleHTML(rawURL, article), md, nil
	}
	tier1Err := err

	title, text, err := c.scrape(ctx, rawURL)
	if err == nil {
		md.Title = title
		return scrapedHTML(rawURL, title, text), md, &Warning{Format: FormatURL, Message: "article extraction failed, used raw page text", Err: tier1Err}
	}

	return errorPageHTML(rawURL, err), md, &Warning{Format: FormatURL, Message: "url could not be loaded", Err: errors.Join(tier1Err, err)}
}

// scrape is the raw fallback: page title and whitespace-normalised text.
func (c *Converter) scrape(ctx context.Context, rawURL string) (string, string, error) {
	doc, err := c.scraper.document(ctx, rawURL)
	if err != nil {
		return "", "", err
	}

	title := firstNonEmpty(doc.Find("title").First().Text(), "Web Page")
	doc.Find("script, style, noscript").Remove()

	var lines []string
	for _, line := range strings.Split(doc.Find("body").Text(), "\n") {
		for _, phrase := range strings.Split(line, "  ") {
			if phrase = strings.TrimSpace(phrase); phrase != "" {
				lines = append(lines, phrase)
			}
		}
	}
	if len(lines) == 0 {
		return "", "", fmt.Errorf("failed to scrape %s: %w", rawURL, ErrNoArticle)
	}
	return collapseSpaces(title), strings.Join(lines, "\n\n"), nil
}

func articleHTML(rawURL string, a *Article) string {
	title := a.Title
	if title == "" {
		title = "Untitled Article"
	}
	u := html.EscapeString(rawURL)

	var b strings.Builder
	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(title))
	b.WriteString("<div class=\"article-meta\">\n")
	fmt.Fprintf(&b, "<p>Source: <a href=\"%s\">%s</a></p>\n", u, u)
	if len(a.Authors) > 0 {
		fmt.Fprintf(&b, "<p>Authors: %s</p>\n", html.EscapeString(strings.Join(a.Authors, ", ")))
	}
	if a.PublishDate != "" {
		fmt.Fprintf(&b, "<p>Published: %s</p>\n", html.EscapeString(a.PublishDate))
	}
	b.WriteString("</div>\n<div class=\"article-content\">\n")
	b.WriteString(textToParagraphs(a.Text))
	b.WriteString("\n</div>")
	return b.String()
}

func scrapedHTML(rawURL, title, text string) string {
	u := html.EscapeString(rawURL)
	return fmt.Sprintf("<h1>%s</h1>\n<p class=\"source\">Source: <a href=\"%s\">%s</a></p>\n<div class=\"content\">\n%s\n</div>",
		html.EscapeString(title), u, u, textToParagraphs(text))
}

func errorPageHTML(rawURL string, err error) string {
	u := html.EscapeString(rawURL)
	return fmt.Sprintf("<h1>Error Loading URL</h1>\n<p>Could not load content from: <a href=\"%s\">%s</a></p>\n<p>Error: %s</p>",
		u, u, html.EscapeString(err.Error()))
}

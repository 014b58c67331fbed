package content

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var htmlOpenTagRe = regexp.MustCompile(`(?i)<html[^>]*>`)

const styledShell = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
</head>
<body>
%s
</body>
</html>`

// ApplyStyling embeds css into a standalone HTML document. Fragments are
// wrapped in a minimal document; documents keep their structure and get a
// <head> when they lack one. Existing <style> elements are replaced, so the
// result always holds exactly one.
func ApplyStyling(fragment, css string) (string, error) {
	src := fragment
	if !htmlOpenTagRe.MatchString(fragment) {
		src = fmt.Sprintf(styledShell, fragment)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return "", fmt.Errorf("failed to parse html for styling: %w", err)
	}

	doc.Find("style").Remove()
	head := doc.Find("head").First()
	if head.Length() == 0 {
		doc.Find("html").First().PrependHtml("<head></head>")
		head = doc.Find("head").First()
	}
	head.AppendHtml("<style>\n" + strings.ReplaceAll(css, "</style", "<\\/style") + "\n</style>")

	out, err := goquery.OuterHtml(doc.Selection)
	if err != nil {
		return "", fmt.Errorf("failed to render styled html: %w", err)
	}
	return out, nil
}

package content

import (
	"html"
	"strings"
)

func convertPlain(text string) (string, Metadata) {
	return textToParagraphs(text), Metadata{Type: string(FormatPlain)}
}

// textToParagraphs escapes text and wraps each blank-line separated block in
// a <p>, turning single newlines into <br/>.
func textToParagraphs(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	escaped := html.EscapeString(text)

	var paras []string
	for _, para := range strings.Split(escaped, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		paras = append(paras, "<p>"+strings.ReplaceAll(para, "\n", "<br/>")+"</p>")
	}
	return strings.Join(paras, "\n")
}

// Package imagebook turns clipboard images into single-chapter books.
package imagebook

import (
	"fmt"
	"html"
	"time"

	"github.com/yuanying/clip2epub/internal/content"
)

const imageCSS = `body {
    margin: 0;
    padding: 0;
    text-align: center;
}

.clip-image {
    margin: 0;
    padding: 0;
}

.clip-image img {
    max-width: 100%;
    height: auto;
    display: block;
    margin: 0 auto;
}
`

// Build wraps img in a processed book with one chapter. An empty title is
// derived from now.
func Build(img Image, title string, now time.Time) *content.Processed {
	if title == "" {
		title = "Clipboard Image " + now.Format("2006-01-02 15:04:05")
	}
	href := "images/clip." + img.Ext

	chapter := content.Chapter{
		Title: title,
		Content: fmt.Sprintf(`<div class="clip-image"><img src="%s" alt="%s" width="%d" height="%d"/></div>`,
			href, html.EscapeString(title), img.Width, img.Height),
	}

	return &content.Processed{
		Chapters: []content.Chapter{chapter},
		Metadata: content.Metadata{
			Type:           "image",
			Title:          title,
			DetectedFormat: content.FormatImage,
			ProcessingDate: now.Format(time.RFC3339),
		},
		CSS:    content.SanitizeCSS(imageCSS),
		Format: content.FormatImage,
		Resources: []content.Resource{{
			Href:      href,
			MediaType: img.MediaType,
			Data:      img.Data,
		}},
	}
}

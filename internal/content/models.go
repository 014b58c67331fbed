package content

// Metadata describes converted content. Type is always set by a converter.
type Metadata struct {
	Type           string   `json:"type"`
	Title          string   `json:"title,omitempty"`
	Authors        []string `json:"authors,omitempty"`
	Source         string   `json:"source,omitempty"`
	PublishDate    string   `json:"publish_date,omitempty"`
	Description    string   `json:"description,omitempty"`
	Language       string   `json:"language,omitempty"`
	DetectedFormat Format   `json:"detected_format,omitempty"`
	ProcessingDate string   `json:"processing_date,omitempty"`
}

// Chapter is one titled HTML fragment. Its 1-based position in a chapter
// list determines its anchor id (chapter_{n}) and its document name.
type Chapter struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Resource is a binary item carried alongside the chapters, such as an image.
type Resource struct {
	Href      string `json:"href"`
	MediaType string `json:"media_type"`
	Data      []byte `json:"data"`
}

// Processed is the output of one pipeline run.
type Processed struct {
	Chapters  []Chapter  `json:"chapters"`
	Metadata  Metadata   `json:"metadata"`
	CSS       string     `json:"css"`
	Format    Format     `json:"format"`
	TOCHTML   string     `json:"toc_html,omitempty"`
	Resources []Resource `json:"resources,omitempty"`
}

// Clone returns a deep copy so callers can adjust the result without
// affecting a shared or cached value.
func (p *Processed) Clone() *Processed {
	if p == nil {
		return nil
	}
	out := *p
	out.Chapters = append([]Chapter(nil), p.Chapters...)
	out.Metadata.Authors = append([]string(nil), p.Metadata.Authors...)
	if len(p.Resources) > 0 {
		out.Resources = make([]Resource, len(p.Resources))
		for i, r := range p.Resources {
			r.Data = append([]byte(nil), r.Data...)
			out.Resources[i] = r
		}
	}
	return &out
}

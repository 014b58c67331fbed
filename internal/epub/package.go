package epub

import (
	"encoding/xml"
	"fmt"
)

const (
	nsOPF = "http://www.idpf.org/2007/opf"
	nsDC  = "http://purl.org/dc/elements/1.1/"
)

// The writer side uses literal prefixed names. The reader in opf.go resolves
// the same document through namespace URLs.
type pkgDocument struct {
	XMLName  xml.Name    `xml:"package"`
	Xmlns    string      `xml:"xmlns,attr"`
	Version  string      `xml:"version,attr"`
	UniqueID string      `xml:"unique-identifier,attr"`
	Metadata pkgMetadata `xml:"metadata"`
	Items    []pkgItem   `xml:"manifest>item"`
	Spine    pkgSpine    `xml:"spine"`
}

type pkgMetadata struct {
	XmlnsDC     string    `xml:"xmlns:dc,attr"`
	Identifier  pkgText   `xml:"dc:identifier"`
	Title       string    `xml:"dc:title"`
	Language    string    `xml:"dc:language"`
	Creators    []pkgText `xml:"dc:creator"`
	Date        string    `xml:"dc:date,omitempty"`
	Description string    `xml:"dc:description,omitempty"`
	Source      string    `xml:"dc:source,omitempty"`
	Type        string    `xml:"dc:type"`
	Meta        []pkgMeta `xml:"meta"`
}

type pkgText struct {
	ID    string `xml:"id,attr,omitempty"`
	Value string `xml:",chardata"`
}

type pkgMeta struct {
	Name     string `xml:"name,attr,omitempty"`
	Content  string `xml:"content,attr,omitempty"`
	Property string `xml:"property,attr,omitempty"`
	Refines  string `xml:"refines,attr,omitempty"`
	Scheme   string `xml:"scheme,attr,omitempty"`
	Value    string `xml:",chardata"`
}

type pkgItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr,omitempty"`
}

type pkgSpine struct {
	Toc      string       `xml:"toc,attr"`
	ItemRefs []pkgItemRef `xml:"itemref"`
}

type pkgItemRef struct {
	IDRef string `xml:"idref,attr"`
}

// packageDocument renders content.opf for the given manifest.
func (b *Book) packageDocument(items []item) ([]byte, error) {
	doc := pkgDocument{
		Xmlns:    nsOPF,
		Version:  "3.0",
		UniqueID: "pub-id",
		Metadata: pkgMetadata{
			XmlnsDC:     nsDC,
			Identifier:  pkgText{ID: "pub-id", Value: b.Identifier},
			Title:       b.Title,
			Language:    b.Language,
			Date:        b.Date,
			Description: b.Description,
			Source:      b.Source,
			Type:        b.Type,
		},
		Spine: pkgSpine{Toc: "ncx"},
	}

	md := &doc.Metadata
	for i, author := range b.Authors {
		id := fmt.Sprintf("creator-%d", i+1)
		md.Creators = append(md.Creators, pkgText{ID: id, Value: author})
		md.Meta = append(md.Meta, pkgMeta{Refines: "#" + id, Property: "role", Scheme: "marc:relators", Value: "aut"})
	}
	md.Meta = append(md.Meta, pkgMeta{Property: "dcterms:modified", Value: b.Modified.UTC().Format("2006-01-02T15:04:05Z")})

	for _, it := range items {
		doc.Items = append(doc.Items, pkgItem{ID: it.ID, Href: it.Href, MediaType: it.MediaType, Properties: it.Properties})
		if it.InSpine {
			doc.Spine.ItemRefs = append(doc.Spine.ItemRefs, pkgItemRef{IDRef: it.ID})
		}
		if it.Properties == "cover-image" {
			md.Meta = append(md.Meta, pkgMeta{Name: "cover", Content: it.ID})
		}
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal package document: %w", err)
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}

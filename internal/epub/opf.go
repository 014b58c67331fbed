package epub

import (
	"encoding/xml"
	"fmt"
	"path"
	"strings"
)

type opfPackage struct {
	XMLName  xml.Name    `xml:"package"`
	Version  string      `xml:"version,attr"`
	UniqueID string      `xml:"unique-identifier,attr"`
	Metadata opfMetadata `xml:"metadata"`
	Manifest opfManifest `xml:"manifest"`
	Spine    opfSpine    `xml:"spine"`
}

type opfMetadata struct {
	Title       []string        `xml:"http://purl.org/dc/elements/1.1/ title"`
	Creator     []opfCreator    `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Language    []string        `xml:"http://purl.org/dc/elements/1.1/ language"`
	Identifier  []opfIdentifier `xml:"http://purl.org/dc/elements/1.1/ identifier"`
	Date        []string        `xml:"http://purl.org/dc/elements/1.1/ date"`
	Description []string        `xml:"http://purl.org/dc/elements/1.1/ description"`
	Source      []string        `xml:"http://purl.org/dc/elements/1.1/ source"`
	Type        []string        `xml:"http://purl.org/dc/elements/1.1/ type"`
	Meta        []opfMeta       `xml:"meta"`
}

type opfCreator struct {
	Name string `xml:",chardata"`
	Role string `xml:"http://www.idpf.org/2007/opf role,attr"`
	ID   string `xml:"id,attr"`
}

type opfIdentifier struct {
	Value string `xml:",chardata"`
	ID    string `xml:"id,attr"`
}

// opfMeta covers both the EPUB 2 (name/content) and EPUB 3 (property/text)
// forms.
type opfMeta struct {
	Name     string `xml:"name,attr"`
	Content  string `xml:"content,attr"`
	Value    string `xml:",chardata"`
	Property string `xml:"property,attr"`
	Refines  string `xml:"refines,attr"`
}

type opfManifest struct {
	Items []opfManifestItem `xml:"item"`
}

type opfManifestItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

type opfSpine struct {
	Toc      string       `xml:"toc,attr"`
	ItemRefs []opfItemRef `xml:"itemref"`
}

type opfItemRef struct {
	IDRef  string `xml:"idref,attr"`
	Linear string `xml:"linear,attr"`
}

// ParseOPF parses a package document. opfDir is the directory holding it
// (e.g. "OEBPS"); manifest hrefs are joined to it.
func ParseOPF(data []byte, opfDir string) (*OPF, error) {
	var pkg opfPackage
	if err := xml.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("failed to parse OPF XML: %w", err)
	}

	opf := &OPF{
		Metadata: parseMetadata(&pkg.Metadata, pkg.UniqueID),
		Manifest: make(map[string]ManifestItem, len(pkg.Manifest.Items)),
	}

	for _, it := range pkg.Manifest.Items {
		mi := ManifestItem{
			ID:         it.ID,
			Href:       joinPath(opfDir, it.Href),
			MediaType:  it.MediaType,
			Properties: strings.Fields(it.Properties),
		}
		opf.Manifest[it.ID] = mi
		opf.ManifestOrder = append(opf.ManifestOrder, it.ID)
		if mi.HasProperty("nav") && opf.NavPath == "" {
			opf.NavPath = mi.Href
		}
	}

	for _, ref := range pkg.Spine.ItemRefs {
		opf.Spine = append(opf.Spine, SpineItem{IDRef: ref.IDRef, Linear: ref.Linear != "no"})
	}

	if ncx, ok := opf.Manifest[pkg.Spine.Toc]; ok && pkg.Spine.Toc != "" {
		opf.NCXPath = ncx.Href
	}
	return opf, nil
}

func parseMetadata(meta *opfMetadata, uniqueID string) Metadata {
	md := Metadata{
		Title:       first(meta.Title),
		Language:    first(meta.Language),
		Date:        first(meta.Date),
		Description: first(meta.Description),
		Source:      first(meta.Source),
		Type:        first(meta.Type),
	}

	for _, id := range meta.Identifier {
		if id.ID == uniqueID {
			md.Identifier = strings.TrimSpace(id.Value)
			break
		}
	}
	if md.Identifier == "" && len(meta.Identifier) > 0 {
		md.Identifier = strings.TrimSpace(meta.Identifier[0].Value)
	}

	roles := make(map[string]string)
	for _, m := range meta.Meta {
		switch {
		case m.Property == "role" && m.Refines != "":
			roles[strings.TrimPrefix(m.Refines, "#")] = firstNonEmpty(m.Value, m.Content)
		case m.Property == "dcterms:modified":
			md.Modified = strings.TrimSpace(m.Value)
		case m.Name == "cover" && md.CoverID == "":
			md.CoverID = m.Content
		}
	}

	for _, c := range meta.Creator {
		role := c.Role
		if r, ok := roles[c.ID]; ok && c.ID != "" {
			role = r
		}
		md.Creators = append(md.Creators, Creator{Name: strings.TrimSpace(c.Name), Role: role})
	}
	return md
}

// Authors returns the names of creators with role "aut" or no role.
func (m Metadata) Authors() []string {
	var out []string
	for _, c := range m.Creators {
		if c.Role == "" || c.Role == "aut" {
			out = append(out, c.Name)
		}
	}
	return out
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func joinPath(base, rel string) string {
	if base == "" || base == "." {
		return rel
	}
	return path.Join(base, rel)
}

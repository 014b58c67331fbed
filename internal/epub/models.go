package epub

// OPF is a parsed package document. Hrefs are resolved against the
// package directory so they can be passed to Reader.ReadFile.
type OPF struct {
	Metadata      Metadata
	Manifest      map[string]ManifestItem // id -> item
	ManifestOrder []string
	Spine         []SpineItem
	NCXPath       string
	NavPath       string
}

// Metadata is the Dublin Core block plus the few EPUB meta values we read.
type Metadata struct {
	Identifier  string
	Title       string
	Language    string
	Creators    []Creator
	Date        string
	Description string
	Source      string
	Type        string
	Modified    string
	CoverID     string // from meta name="cover"
}

// Creator is a dc:creator with its refined role.
type Creator struct {
	Name string
	Role string // e.g. "aut"
}

// ManifestItem is one manifest entry.
type ManifestItem struct {
	ID         string
	Href       string
	MediaType  string
	Properties []string
}

// HasProperty reports whether the item declares prop.
func (m ManifestItem) HasProperty(prop string) bool {
	for _, p := range m.Properties {
		if p == prop {
			return true
		}
	}
	return false
}

// SpineItem is one itemref.
type SpineItem struct {
	IDRef  string
	Linear bool
}

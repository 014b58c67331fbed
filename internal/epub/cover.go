package epub

// CoverInfo describes the detected cover image.
type CoverInfo struct {
	ManifestID      string
	Href            string
	MediaType       string
	DetectionMethod string // "properties" or "meta"
}

// DetectCover finds the cover image, preferring the EPUB 3 cover-image
// property over the EPUB 2 meta name="cover". Returns nil without one.
func (opf *OPF) DetectCover() *CoverInfo {
	for _, id := range opf.ManifestOrder {
		item := opf.Manifest[id]
		if item.HasProperty("cover-image") {
			return &CoverInfo{ManifestID: item.ID, Href: item.Href, MediaType: item.MediaType, DetectionMethod: "properties"}
		}
	}
	if item, ok := opf.Manifest[opf.Metadata.CoverID]; ok && opf.Metadata.CoverID != "" {
		return &CoverInfo{ManifestID: item.ID, Href: item.Href, MediaType: item.MediaType, DetectionMethod: "meta"}
	}
	return nil
}

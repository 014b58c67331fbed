package epub

import (
	"archive/zip"
	"fmt"
	"io"
	"time"

	"github.com/yuanying/clip2epub/internal/content"
)

const (
	opfDir       = "OEBPS/"
	styleHref    = "style.css"
	navHref      = "nav.xhtml"
	ncxHref      = "toc.ncx"
	tocHref      = "toc.xhtml"
	mediaXHTML   = "application/xhtml+xml"
	containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>
`
)

// Book is the resolved content of one EPUB before it is written.
type Book struct {
	Identifier  string
	Title       string
	Authors     []string
	Language    string
	Date        string
	Description string
	Source      string
	Type        string
	Modified    time.Time
	CSS         string
	TOC         string
	CoverHref   string
	Chapters    []content.Chapter
	Resources   []content.Resource
}

// FileName is the sanitized title followed by the modification timestamp.
func (b *Book) FileName() string {
	return fmt.Sprintf("%s_%s.epub", SanitizeFileName(b.Title), b.Modified.Format(fileTimeLayout))
}

// item is one manifest entry with its payload.
type item struct {
	ID         string
	Href       string
	MediaType  string
	Properties string
	Data       []byte
	InSpine    bool
}

// items lists the manifest in archive order. The spine is the in-spine
// subset in the same order: nav, toc, chapters.
func (b *Book) items() ([]item, error) {
	nav, err := b.navDocument()
	if err != nil {
		return nil, err
	}
	ncx, err := content.RenderNCX(b.navEntries(), b.Title, b.Identifier)
	if err != nil {
		return nil, err
	}

	items := []item{
		{ID: "nav", Href: navHref, MediaType: mediaXHTML, Properties: "nav", Data: nav, InSpine: true},
		{ID: "ncx", Href: ncxHref, MediaType: "application/x-dtbncx+xml", Data: []byte(ncx)},
		{ID: "style", Href: styleHref, MediaType: "text/css", Data: []byte(b.CSS)},
	}
	if b.TOC != "" {
		toc, err := tocDocument(b.TOC, content.DefaultTOCTitle, b.Language)
		if err != nil {
			return nil, fmt.Errorf("failed to render table of contents: %w", err)
		}
		items = append(items, item{ID: "toc", Href: tocHref, MediaType: mediaXHTML, Data: toc, InSpine: true})
	}
	for i, ch := range b.Chapters {
		doc, err := chapterDocument(ch, b.Language)
		if err != nil {
			return nil, fmt.Errorf("failed to render chapter %d: %w", i+1, err)
		}
		items = append(items, item{
			ID:        fmt.Sprintf("chapter_%d", i+1),
			Href:      content.ChapterHref(i + 1),
			MediaType: mediaXHTML,
			Data:      doc,
			InSpine:   true,
		})
	}
	for i, r := range b.Resources {
		it := item{ID: fmt.Sprintf("resource_%d", i+1), Href: r.Href, MediaType: r.MediaType, Data: r.Data}
		if r.Href == b.CoverHref {
			it.ID = "cover-image"
			it.Properties = "cover-image"
		}
		items = append(items, it)
	}
	return items, nil
}

// navEntries is what nav.xhtml and toc.ncx list: the table of contents
// document when present, then every chapter.
func (b *Book) navEntries() []content.NavEntry {
	var entries []content.NavEntry
	if b.TOC != "" {
		entries = append(entries, content.NavEntry{Label: content.DefaultTOCTitle, Href: tocHref})
	}
	for i, ch := range b.Chapters {
		entries = append(entries, content.NavEntry{Label: ch.Title, Href: content.ChapterHref(i + 1)})
	}
	return entries
}

// Write streams the archive to w. The mimetype entry comes first and is
// stored uncompressed.
func (b *Book) Write(w io.Writer) error {
	items, err := b.items()
	if err != nil {
		return err
	}
	pkg, err := b.packageDocument(items)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(w)
	if err := writeMimetype(zw); err != nil {
		return err
	}
	if err := writeEntry(zw, "META-INF/container.xml", []byte(containerXML)); err != nil {
		return err
	}
	if err := writeEntry(zw, opfDir+"content.opf", pkg); err != nil {
		return err
	}
	for _, it := range items {
		if err := writeEntry(zw, opfDir+it.Href, it.Data); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return nil
}

func writeMimetype(zw *zip.Writer) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:   "mimetype",
		Method: zip.Store,
	})
	if err != nil {
		return fmt.Errorf("failed to create mimetype: %w", err)
	}
	if _, err := io.WriteString(w, "application/epub+zip"); err != nil {
		return fmt.Errorf("failed to write mimetype: %w", err)
	}
	return nil
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

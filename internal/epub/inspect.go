package epub

import (
	"fmt"
	"path"
)

// Report summarises an EPUB and lists structural problems found in it.
type Report struct {
	Path      string
	Metadata  Metadata
	Spine     []string // archive paths in reading order
	Nav       []NavPoint
	NCX       []NavPoint
	Cover     *CoverInfo
	Resources int
	Problems  []string
}

// Valid reports whether no problems were found.
func (r *Report) Valid() bool {
	return len(r.Problems) == 0
}

// Inspect opens the EPUB at p and checks that the archive, the package
// document, the spine documents and both navigation documents agree.
// Structural errors that prevent reading return an error; everything else
// is listed in Report.Problems.
func Inspect(p string) (*Report, error) {
	r, err := Open(p)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	opf, err := r.Package()
	if err != nil {
		return nil, err
	}

	rep := &Report{Path: p, Metadata: opf.Metadata, Cover: opf.DetectCover()}
	problem := func(format string, args ...any) {
		rep.Problems = append(rep.Problems, fmt.Sprintf(format, args...))
	}

	if names := r.Names(); len(names) == 0 || names[0] != "mimetype" {
		problem("mimetype is not the first archive entry")
	}

	for _, id := range opf.ManifestOrder {
		item := opf.Manifest[id]
		if !r.Has(item.Href) {
			problem("manifest item %q points at missing %s", id, item.Href)
		}
		if item.MediaType != mediaXHTML && item.MediaType != "text/css" && item.MediaType != "application/x-dtbncx+xml" {
			rep.Resources++
		}
	}

	docs := make(map[string]*Content)
	for _, ref := range opf.Spine {
		item, ok := opf.Manifest[ref.IDRef]
		if !ok {
			problem("spine references unknown item %q", ref.IDRef)
			continue
		}
		rep.Spine = append(rep.Spine, item.Href)
		data, err := r.ReadFile(item.Href)
		if err != nil {
			continue
		}
		c, err := LoadContent(item.ID, item.Href, data)
		if err != nil {
			problem("%s: %v", item.Href, err)
			continue
		}
		docs[item.Href] = c
		for _, css := range c.CSSLinks {
			if !r.Has(css) {
				problem("%s links missing stylesheet %s", item.Href, css)
			}
		}
		for _, img := range c.ImageRefs {
			if !r.Has(img) {
				problem("%s references missing image %s", item.Href, img)
			}
		}
	}

	if opf.NavPath == "" {
		problem("no navigation document in manifest")
	} else if data, err := r.ReadFile(opf.NavPath); err == nil {
		if rep.Nav, err = ParseNav(data, path.Dir(opf.NavPath)); err != nil {
			problem("%s: %v", opf.NavPath, err)
		}
	}
	if opf.NCXPath != "" {
		if data, err := r.ReadFile(opf.NCXPath); err == nil {
			ncx, err := ParseNCX(data, path.Dir(opf.NCXPath))
			if err != nil {
				problem("%s: %v", opf.NCXPath, err)
			} else {
				rep.NCX = ncx.NavPoints
				if ncx.UID != "" && ncx.UID != opf.Metadata.Identifier {
					problem("ncx uid %q does not match identifier %q", ncx.UID, opf.Metadata.Identifier)
				}
			}
		}
	}

	for _, np := range rep.Nav {
		checkTarget(np, docs, problem)
	}
	if rep.NCX != nil && len(rep.NCX) != len(rep.Nav) {
		problem("nav lists %d entries, ncx lists %d", len(rep.Nav), len(rep.NCX))
	}
	for i := 0; i < len(rep.NCX) && i < len(rep.Nav); i++ {
		if rep.NCX[i].ContentPath != rep.Nav[i].ContentPath {
			problem("nav entry %d points at %s, ncx at %s", i+1, rep.Nav[i].ContentPath, rep.NCX[i].ContentPath)
		}
	}
	return rep, nil
}

func checkTarget(np NavPoint, docs map[string]*Content, problem func(string, ...any)) {
	doc, ok := docs[np.ContentPath]
	if !ok {
		problem("navigation entry %q points outside the spine: %s", np.Label, np.ContentPath)
		return
	}
	if np.Fragment != "" && !doc.IDs[np.Fragment] {
		problem("navigation entry %q targets missing anchor #%s", np.Label, np.Fragment)
	}
}

package document

import (
	"fmt"
	"strings"

	"github.com/jvillegas/metasweep/core"
	"github.com/jvillegas/metasweep/core/xmlprop"
)

const partEPUBContainer = "META-INF/container.xml"

// epubOPFFields maps the Dublin Core entries of the package document.
var epubOPFFields = []struct {
	label     string
	keys      []string
	sensitive bool
}{
	{"Title", []string{"dc:title"}, false},
	{"Creator", []string{"dc:creator"}, true},
	{"Contributor", []string{"dc:contributor"}, true},
	{"Publisher", []string{"dc:publisher"}, true},
	{"Date", []string{"dc:date"}, true},
	{"Identifier", []string{"dc:identifier"}, true},
	{"Language", []string{"dc:language"}, false},
	{"Rights", []string{"dc:rights"}, false},
	{"Description", []string{"dc:description"}, false},
	{"Subject", []string{"dc:subject"}, false},
}

// DecodeEPUB resolves the OPF package document through the container
// manifest and reads its Dublin Core metadata and spine size.
func DecodeEPUB(path string) *core.ReportSection {
	s := core.NewSection("EPUB")

	parts, err := ReadArchiveParts(path, partEPUBContainer)
	if err != nil {
		s.SetNotice("cannot open package", core.LevelError)
		return s
	}
	opfPath := epubRootfile(parts[partEPUBContainer])
	if opfPath == "" {
		s.SetNotice("no package document found", core.LevelError)
		return s
	}

	opfParts, err := ReadArchiveParts(path, opfPath)
	if err != nil {
		s.SetNotice("cannot open package", core.LevelError)
		return s
	}
	data, ok := opfParts[opfPath]
	if !ok {
		s.SetNotice("package document missing", core.LevelError)
		return s
	}

	tree, err := xmlprop.Parse(data)
	if err != nil || tree.Root == nil {
		s.SetNotice("package document not well-formed", core.LevelError)
		return s
	}

	for _, f := range epubOPFFields {
		v := xmlprop.Resolve(tree.Root, f.keys...)
		if v == "" {
			continue
		}
		if f.sensitive {
			s.AddRisk(f.label, v)
		} else {
			s.Add(f.label, v, core.LevelInfo)
		}
	}

	counts := tree.Root.CountElements("item", "itemref")
	if n := counts["item"]; n > 0 {
		s.Add("ManifestItems", fmt.Sprintf("%d", n), core.LevelMuted)
	}
	if n := counts["itemref"]; n > 0 {
		s.Add("SpineItems", fmt.Sprintf("%d", n), core.LevelInfo)
	}

	if len(s.Risks()) > 0 {
		s.SetNotice("identifying metadata found", core.LevelWarning)
	} else {
		s.SetNotice("no identifying metadata found", core.LevelSuccess)
	}
	return s
}

// epubRootfile returns the full-path attribute of the first rootfile entry
// in container.xml.
func epubRootfile(data []byte) string {
	if data == nil {
		return ""
	}
	tree, err := xmlprop.Parse(data)
	if err != nil || tree.Root == nil {
		return ""
	}
	var path string
	tree.Root.Walk(func(n *xmlprop.Node) {
		if path != "" || !strings.EqualFold(n.Local, "rootfile") {
			return
		}
		for _, a := range n.Attrs {
			if strings.EqualFold(a.Local, "full-path") {
				path = a.Value
			}
		}
	})
	return path
}

package document

import (
	"fmt"
	"strings"

	"github.com/jvillegas/metasweep/core"
	"github.com/jvillegas/metasweep/core/xmlprop"
)

// ODF namespace URIs.
const (
	nsODFMeta     = "urn:oasis:names:tc:opendocument:xmlns:meta:1.0"
	nsODFManifest = "urn:oasis:names:tc:opendocument:xmlns:manifest:1.0"
)

// ODF package part names.
const (
	partODFMeta     = "meta.xml"
	partODFContent  = "content.xml"
	partODFManifest = "META-INF/manifest.xml"
)

// odfMetaFields maps meta.xml properties to report labels.
var odfMetaFields = []struct {
	label     string
	local     string
	namespace string
	sensitive bool
}{
	{"Title", "title", nsDC, false},
	{"Subject", "subject", nsDC, false},
	{"Description", "description", nsDC, false},
	{"InitialCreator", "initial-creator", nsODFMeta, true},
	{"Creator", "creator", nsDC, true},
	{"CreationDate", "creation-date", nsODFMeta, true},
	{"Date", "date", nsDC, true},
	{"EditingCycles", "editing-cycles", nsODFMeta, true},
	{"EditingDuration", "editing-duration", nsODFMeta, true},
	{"Generator", "generator", nsODFMeta, true},
	{"Keyword", "keyword", nsODFMeta, false},
	{"Language", "language", nsDC, false},
}

// DecodeODF reads meta.xml for properties, content.xml for structural
// statistics, and the manifest for the package inventory.
func DecodeODF(path string) *core.ReportSection {
	s := core.NewSection("OpenDocument")

	parts, err := ReadArchiveParts(path, partODFMeta, partODFContent, partODFManifest)
	if err != nil {
		s.SetNotice("cannot open package", core.LevelError)
		return s
	}

	if data, ok := parts[partODFMeta]; ok {
		decodeODFMeta(data, s)
	}
	if data, ok := parts[partODFContent]; ok {
		decodeODFContent(data, s)
	}
	if data, ok := parts[partODFManifest]; ok {
		decodeODFManifest(data, s)
	}

	if len(s.Risks()) > 0 {
		s.SetNotice("identifying metadata found", core.LevelWarning)
	} else {
		s.SetNotice("no identifying metadata found", core.LevelSuccess)
	}
	return s
}

func decodeODFMeta(data []byte, s *core.ReportSection) {
	tree, err := xmlprop.Parse(data)
	if err != nil || tree.Root == nil {
		return
	}
	for _, f := range odfMetaFields {
		v := xmlprop.ResolveNS(tree.Root, f.local, f.namespace)
		if v == "" {
			continue
		}
		if f.sensitive {
			s.AddRisk(f.label, v)
		} else {
			s.Add(f.label, v, core.LevelInfo)
		}
	}
	// User-defined properties carry a name attribute and free-form text.
	tree.Root.Walk(func(n *xmlprop.Node) {
		if !strings.EqualFold(n.Local, "user-defined") {
			return
		}
		var name string
		for _, a := range n.Attrs {
			if strings.EqualFold(a.Local, "name") {
				name = a.Value
			}
		}
		if name != "" {
			s.AddRisk("UserDefined:"+name, strings.TrimSpace(n.Text))
		}
	})
}

func decodeODFContent(data []byte, s *core.ReportSection) {
	tree, err := xmlprop.Parse(data)
	if err != nil || tree.Root == nil {
		return
	}
	counts := tree.Root.CountElements("table", "p", "page", "a", "frame")
	if n := counts["table"]; n > 0 {
		s.Add("Tables", fmt.Sprintf("%d", n), core.LevelInfo)
	}
	if n := counts["page"]; n > 0 {
		s.Add("Pages", fmt.Sprintf("%d", n), core.LevelInfo)
	}
	if n := counts["p"]; n > 0 {
		s.Add("Paragraphs", fmt.Sprintf("%d", n), core.LevelMuted)
	}
	if n := counts["a"]; n > 0 {
		s.Add("Hyperlinks", fmt.Sprintf("%d", n), core.LevelInfo)
	}
	if n := counts["frame"]; n > 0 {
		s.Add("Frames", fmt.Sprintf("%d", n), core.LevelMuted)
	}
}

func decodeODFManifest(data []byte, s *core.ReportSection) {
	tree, err := xmlprop.Parse(data)
	if err != nil || tree.Root == nil {
		return
	}
	entries := 0
	tree.Root.Walk(func(n *xmlprop.Node) {
		if strings.EqualFold(n.Local, "file-entry") {
			entries++
		}
	})
	if entries > 0 {
		s.Add("ManifestEntries", fmt.Sprintf("%d", entries), core.LevelMuted)
	}
}

package document

import (
	"fmt"
	"strings"

	"github.com/jvillegas/metasweep/core"
	"github.com/jvillegas/metasweep/core/xmlprop"
)

// OOXML namespace URIs.
const (
	nsDC      = "http://purl.org/dc/elements/1.1/"
	nsDCTerms = "http://purl.org/dc/terms/"
	nsCP      = "http://schemas.openxmlformats.org/package/2006/metadata/core-properties"
	nsExtProp = "http://schemas.openxmlformats.org/officeDocument/2006/extended-properties"
	nsCustom  = "http://schemas.openxmlformats.org/officeDocument/2006/custom-properties"
)

// OOXML package part names.
const (
	partCoreProps   = "docProps/core.xml"
	partAppProps    = "docProps/app.xml"
	partCustomProps = "docProps/custom.xml"
)

// coreXMLFields maps core.xml properties to report labels; the sensitive
// ones name people or revision history.
var coreXMLFields = []struct {
	label     string
	local     string
	namespace string
	sensitive bool
}{
	{"Title", "title", nsDC, false},
	{"Subject", "subject", nsDC, false},
	{"Creator", "creator", nsDC, true},
	{"Keywords", "keywords", nsCP, false},
	{"Description", "description", nsDC, false},
	{"LastModifiedBy", "lastModifiedBy", nsCP, true},
	{"Revision", "revision", nsCP, true},
	{"Created", "created", nsDCTerms, true},
	{"Modified", "modified", nsDCTerms, true},
	{"Category", "category", nsCP, false},
	{"ContentStatus", "contentStatus", nsCP, false},
}

// appXMLFields maps app.xml properties; Company/Manager identify the
// organization, TotalTime leaks editing history.
var appXMLFields = []struct {
	label     string
	local     string
	sensitive bool
}{
	{"Application", "Application", false},
	{"AppVersion", "AppVersion", false},
	{"Company", "Company", true},
	{"Manager", "Manager", true},
	{"TotalTime", "TotalTime", true},
	{"Template", "Template", false},
	{"Pages", "Pages", false},
	{"Words", "Words", false},
	{"Characters", "Characters", false},
	{"Slides", "Slides", false},
	{"HiddenSlides", "HiddenSlides", false},
}

// DecodeOOXML reads the well-known property parts of an OPC package and
// computes per-document-type structural statistics.
func DecodeOOXML(path string, format core.FormatID) *core.ReportSection {
	title := map[core.FormatID]string{
		core.FmtDOCX: "DOCX",
		core.FmtXLSX: "XLSX",
		core.FmtPPTX: "PPTX",
	}[format]
	if title == "" {
		title = "OOXML"
	}
	s := core.NewSection(title)

	parts, err := ReadArchiveParts(path, partCoreProps, partAppProps, partCustomProps)
	if err != nil {
		s.SetNotice("cannot open package", core.LevelError)
		return s
	}

	if data, ok := parts[partCoreProps]; ok {
		decodeCoreProps(data, s)
	}
	if data, ok := parts[partAppProps]; ok {
		decodeAppProps(data, s)
	}
	if data, ok := parts[partCustomProps]; ok {
		decodeCustomProps(data, s)
	}

	switch format {
	case core.FmtDOCX:
		decodeDOCXStructure(path, s)
	case core.FmtXLSX:
		decodeXLSXStructure(path, s)
	case core.FmtPPTX:
		decodePPTXStructure(path, s)
	}
	decodeMacroPresence(path, s)

	if len(s.Risks()) > 0 {
		s.SetNotice("identifying metadata found", core.LevelWarning)
	} else {
		s.SetNotice("no identifying metadata found", core.LevelSuccess)
	}
	return s
}

func decodeCoreProps(data []byte, s *core.ReportSection) {
	tree, err := xmlprop.Parse(data)
	if err != nil || tree.Root == nil {
		return
	}
	for _, f := range coreXMLFields {
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
}

func decodeAppProps(data []byte, s *core.ReportSection) {
	tree, err := xmlprop.Parse(data)
	if err != nil || tree.Root == nil {
		return
	}
	for _, f := range appXMLFields {
		v := xmlprop.ResolveNS(tree.Root, f.local, nsExtProp)
		if v == "" {
			continue
		}
		if f.sensitive {
			s.AddRisk(f.label, v)
		} else {
			s.Add(f.label, v, core.LevelInfo)
		}
	}
}

// decodeCustomProps reports every user-defined property as a risk; custom
// properties exist only because someone deliberately attached them.
func decodeCustomProps(data []byte, s *core.ReportSection) {
	tree, err := xmlprop.Parse(data)
	if err != nil || tree.Root == nil {
		return
	}
	tree.Root.Walk(func(n *xmlprop.Node) {
		if !strings.EqualFold(n.Local, "property") {
			return
		}
		var name string
		for _, a := range n.Attrs {
			if strings.EqualFold(a.Local, "name") {
				name = a.Value
			}
		}
		if name == "" {
			return
		}
		var value string
		for _, c := range n.Children {
			if t := strings.TrimSpace(c.Text); t != "" {
				value = t
				break
			}
		}
		s.AddRisk("Custom:"+name, value)
	})
}

func decodeDOCXStructure(path string, s *core.ReportSection) {
	parts, err := ReadArchiveParts(path, "word/document.xml")
	if err != nil {
		return
	}
	data, ok := parts["word/document.xml"]
	if !ok {
		return
	}
	tree, err := xmlprop.Parse(data)
	if err != nil || tree.Root == nil {
		return
	}
	counts := tree.Root.CountElements("tbl", "hyperlink", "p")
	if n := counts["p"]; n > 0 {
		s.Add("Paragraphs", fmt.Sprintf("%d", n), core.LevelMuted)
	}
	if n := counts["tbl"]; n > 0 {
		s.Add("Tables", fmt.Sprintf("%d", n), core.LevelInfo)
	}
	if n := counts["hyperlink"]; n > 0 {
		s.Add("Hyperlinks", fmt.Sprintf("%d", n), core.LevelInfo)
	}
}

func decodeXLSXStructure(path string, s *core.ReportSection) {
	parts, err := ReadArchiveParts(path, "xl/workbook.xml")
	if err != nil {
		return
	}
	data, ok := parts["xl/workbook.xml"]
	if !ok {
		return
	}
	tree, err := xmlprop.Parse(data)
	if err != nil || tree.Root == nil {
		return
	}
	sheets := 0
	hidden := 0
	var hiddenNames []string
	tree.Root.Walk(func(n *xmlprop.Node) {
		if !strings.EqualFold(n.Local, "sheet") {
			return
		}
		sheets++
		var name, state string
		for _, a := range n.Attrs {
			switch strings.ToLower(a.Local) {
			case "name":
				name = a.Value
			case "state":
				state = a.Value
			}
		}
		if state == "hidden" || state == "veryHidden" {
			hidden++
			hiddenNames = append(hiddenNames, name)
		}
	})
	s.Add("Sheets", fmt.Sprintf("%d", sheets), core.LevelInfo)
	if hidden > 0 {
		s.AddRisk("HiddenSheets", strings.Join(hiddenNames, ", "))
	}
	decodeXLSXFormulas(path, s)
}

// decodeXLSXFormulas counts formula elements across every worksheet part.
func decodeXLSXFormulas(path string, s *core.ReportSection) {
	entries, err := ListArchiveEntries(path)
	if err != nil {
		return
	}
	var sheetParts []string
	for _, name := range entries {
		if strings.HasPrefix(name, "xl/worksheets/") && strings.HasSuffix(name, ".xml") {
			sheetParts = append(sheetParts, name)
		}
	}
	if len(sheetParts) == 0 {
		return
	}
	parts, err := ReadArchiveParts(path, sheetParts...)
	if err != nil {
		return
	}
	formulas := 0
	for _, data := range parts {
		tree, err := xmlprop.Parse(data)
		if err != nil || tree.Root == nil {
			continue
		}
		formulas += tree.Root.CountElements("f")["f"]
	}
	if formulas > 0 {
		s.Add("Formulas", fmt.Sprintf("%d", formulas), core.LevelInfo)
	}
}

func decodePPTXStructure(path string, s *core.ReportSection) {
	entries, err := ListArchiveEntries(path)
	if err != nil {
		return
	}
	slides := 0
	for _, name := range entries {
		if strings.HasPrefix(name, "ppt/slides/slide") && strings.HasSuffix(name, ".xml") {
			slides++
		}
	}
	if slides > 0 {
		s.Add("Slides", fmt.Sprintf("%d", slides), core.LevelInfo)
	}
}

// decodeMacroPresence flags an embedded VBA project anywhere in the
// package.
func decodeMacroPresence(path string, s *core.ReportSection) {
	entries, err := ListArchiveEntries(path)
	if err != nil {
		return
	}
	for _, name := range entries {
		if strings.HasSuffix(name, "vbaProject.bin") {
			s.AddRisk("Macros", "embedded VBA project ("+name+")")
			return
		}
	}
}

package image

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jvillegas/metasweep/core"
	"github.com/jvillegas/metasweep/core/xmlprop"
)

// DecodeSVG parses the document tree and reports descriptive text, embedded
// scripts, external references and font usage. SVG is text, so authorship
// tends to hide in <title>, <desc> and editor-specific attributes.
func DecodeSVG(data []byte) *core.ReportSection {
	s := core.NewSection("SVG")
	tree, err := xmlprop.Parse(data)
	if err != nil {
		s.SetNotice("not well-formed XML", core.LevelError)
		return s
	}
	root := tree.Root
	if root == nil || !strings.EqualFold(root.Local, "svg") {
		s.SetNotice("root element is not <svg>", core.LevelError)
		return s
	}

	for _, a := range root.Attrs {
		switch strings.ToLower(a.Local) {
		case "width":
			s.Add("Width", a.Value, core.LevelInfo)
		case "height":
			s.Add("Height", a.Value, core.LevelInfo)
		case "viewbox":
			s.Add("ViewBox", a.Value, core.LevelInfo)
		}
	}

	scripts := 0
	elements := 0
	remoteRefs := map[string]bool{}
	dataURIs := 0
	fonts := map[string]bool{}

	root.Walk(func(n *xmlprop.Node) {
		elements++
		switch strings.ToLower(n.Local) {
		case "title":
			if t := strings.TrimSpace(n.Text); t != "" {
				s.AddRisk("Title", t)
			}
		case "desc":
			if t := strings.TrimSpace(n.Text); t != "" {
				s.AddRisk("Description", t)
			}
		case "metadata":
			decodeSVGMetadata(n, s)
		case "script":
			scripts++
		case "text", "tspan":
			// visible text is content, not metadata
		}
		for _, a := range n.Attrs {
			local := strings.ToLower(a.Local)
			if local == "href" {
				switch {
				case strings.HasPrefix(a.Value, "data:"):
					dataURIs++
				case strings.HasPrefix(a.Value, "http://"), strings.HasPrefix(a.Value, "https://"), strings.HasPrefix(a.Value, "//"):
					remoteRefs[a.Value] = true
				}
			}
			if local == "font-family" {
				for _, f := range strings.Split(a.Value, ",") {
					if f = strings.TrimSpace(f); f != "" {
						fonts[f] = true
					}
				}
			}
			if local == "style" {
				for _, f := range fontsFromStyle(a.Value) {
					fonts[f] = true
				}
			}
		}
	})

	s.Add("Elements", fmt.Sprintf("%d", elements), core.LevelMuted)
	if scripts > 0 {
		s.AddRisk("Scripts", fmt.Sprintf("%d embedded script element(s)", scripts))
	}
	if dataURIs > 0 {
		s.Add("EmbeddedDataURIs", fmt.Sprintf("%d", dataURIs), core.LevelInfo)
	}
	if len(remoteRefs) > 0 {
		refs := make([]string, 0, len(remoteRefs))
		for ref := range remoteRefs {
			refs = append(refs, ref)
		}
		sort.Strings(refs)
		s.AddRisk("RemoteReferences", strings.Join(refs, ", "))
	}
	if len(fonts) > 0 {
		names := make([]string, 0, len(fonts))
		for f := range fonts {
			names = append(names, f)
		}
		sort.Strings(names)
		s.Add("Fonts", strings.Join(names, ", "), core.LevelInfo)
	}

	if len(s.Risks()) > 0 {
		s.SetNotice("identifying content found", core.LevelWarning)
	} else {
		s.SetNotice("no identifying metadata found", core.LevelSuccess)
	}
	return s
}

// decodeSVGMetadata resolves the RDF/Dublin Core properties editors like
// Inkscape embed under <metadata>.
func decodeSVGMetadata(n *xmlprop.Node, s *core.ReportSection) {
	for _, key := range []struct {
		label string
		keys  []string
	}{
		{"Creator", []string{"dc:creator", "creator"}},
		{"Contributor", []string{"dc:contributor", "contributor"}},
		{"Rights", []string{"dc:rights", "rights"}},
		{"Date", []string{"dc:date", "date"}},
		{"Publisher", []string{"dc:publisher", "publisher"}},
	} {
		if v := xmlprop.Resolve(n, key.keys...); v != "" {
			s.AddRisk(key.label, v)
		}
	}
	if v := xmlprop.Resolve(n, "dc:format", "format"); v != "" {
		s.Add("Format", v, core.LevelMuted)
	}
	if v := xmlprop.Resolve(n, "cc:license", "license"); v != "" {
		s.Add("License", v, core.LevelInfo)
	}
}

// fontsFromStyle pulls font-family declarations out of an inline style
// attribute.
func fontsFromStyle(style string) []string {
	var out []string
	for _, decl := range strings.Split(style, ";") {
		k, v, found := strings.Cut(decl, ":")
		if !found || strings.TrimSpace(strings.ToLower(k)) != "font-family" {
			continue
		}
		for _, f := range strings.Split(v, ",") {
			f = strings.Trim(strings.TrimSpace(f), `'"`)
			if f != "" {
				out = append(out, f)
			}
		}
	}
	return out
}

package xmlprop

import (
	"bytes"

	"github.com/jvillegas/metasweep/core"
)

// xmpScanWindow bounds the packet scan when XMP is not found in a
// dedicated container field.
const xmpScanWindow = 2 << 20 // 2 MiB

// xmpField maps a report label to its candidate qualified keys and its
// sensitivity classification. Fixed table, preserved as configuration.
type xmpField struct {
	label     string
	keys      []string
	sensitive bool
}

var xmpFields = []xmpField{
	{"Creator", []string{"dc:creator", "creator"}, true},
	{"CreatorTool", []string{"xmp:CreatorTool", "CreatorTool"}, true},
	{"Title", []string{"dc:title", "title"}, false},
	{"Description", []string{"dc:description", "description"}, false},
	{"Subject", []string{"dc:subject", "subject"}, false},
	{"Rights", []string{"dc:rights", "rights"}, true},
	{"CreateDate", []string{"xmp:CreateDate", "CreateDate"}, true},
	{"ModifyDate", []string{"xmp:ModifyDate", "ModifyDate"}, true},
	{"MetadataDate", []string{"xmp:MetadataDate", "MetadataDate"}, false},
	{"DocumentID", []string{"xmpMM:DocumentID", "DocumentID"}, true},
	{"InstanceID", []string{"xmpMM:InstanceID", "InstanceID"}, false},
	{"OriginalDocumentID", []string{"xmpMM:OriginalDocumentID"}, false},
	{"HistorySoftwareAgent", []string{"stEvt:softwareAgent", "softwareAgent"}, true},
	{"Producer", []string{"pdf:Producer", "Producer"}, false},
	{"Lens", []string{"aux:Lens", "Lens"}, false},
	{"SerialNumber", []string{"aux:SerialNumber"}, true},
	{"City", []string{"photoshop:City", "City"}, true},
	{"Country", []string{"photoshop:Country", "Country"}, true},
	{"Credit", []string{"photoshop:Credit", "Credit"}, true},
	{"Label", []string{"xmp:Label"}, false},
	{"Rating", []string{"xmp:Rating"}, false},
}

// DecodeXMP parses an XMP/RDF packet and writes the curated fields into
// the section. Returns false when no parsable packet is present.
func DecodeXMP(packet []byte, s *core.ReportSection) bool {
	packet = trimXMPPacket(packet)
	if len(packet) == 0 {
		return false
	}
	tree, err := Parse(packet)
	if err != nil {
		return false
	}
	found := false
	for _, f := range xmpFields {
		v := Resolve(tree.Root, f.keys...)
		if v == "" {
			continue
		}
		found = true
		if f.sensitive {
			s.AddRisk("XMP "+f.label, v)
		} else {
			s.Add("XMP "+f.label, v, core.LevelInfo)
		}
	}
	return found
}

// ExtractXMPPacket locates an XMP packet by its <x:xmpmeta> or <rdf:RDF>
// markers inside raw bytes, scanning at most the first 2 MiB.
func ExtractXMPPacket(data []byte) []byte {
	if len(data) > xmpScanWindow {
		data = data[:xmpScanWindow]
	}
	start := bytes.Index(data, []byte("<x:xmpmeta"))
	endTag := []byte("</x:xmpmeta>")
	if start < 0 {
		start = bytes.Index(data, []byte("<rdf:RDF"))
		endTag = []byte("</rdf:RDF>")
	}
	if start < 0 {
		return nil
	}
	end := bytes.Index(data[start:], endTag)
	if end < 0 {
		return nil
	}
	return data[start : start+end+len(endTag)]
}

// trimXMPPacket cuts xpacket wrappers and leading junk down to the
// xmpmeta/RDF element so the XML parser sees a single root.
func trimXMPPacket(data []byte) []byte {
	if p := ExtractXMPPacket(data); p != nil {
		return p
	}
	return nil
}

package image

import (
	"bytes"
	"encoding/binary"

	"github.com/jvillegas/metasweep/core"
)

// iptcFieldNames maps IIM record-2 dataset numbers to labels.
var iptcFieldNames = map[byte]string{
	0x05: "ObjectName",
	0x0F: "Category",
	0x14: "SupplementalCategory",
	0x19: "Keywords",
	0x1E: "DateCreated",
	0x1F: "TimeCreated",
	0x28: "SpecialInstructions",
	0x37: "DigitalCreationDate",
	0x3C: "Byline",
	0x3E: "BylineTitle",
	0x46: "City",
	0x4E: "Province",
	0x55: "Country",
	0x67: "OriginalTransmissionReference",
	0x69: "Headline",
	0x6E: "Credit",
	0x73: "Source",
	0x74: "CopyrightNotice",
	0x76: "Contact",
	0x78: "Caption",
	0x7A: "CaptionWriter",
}

// iptcSensitive flags the IIM datasets that identify people or places.
var iptcSensitive = map[byte]bool{
	0x3C: true, // Byline
	0x3E: true, // BylineTitle
	0x46: true, // City
	0x4E: true, // Province
	0x55: true, // Country
	0x6E: true, // Credit
	0x73: true, // Source
	0x74: true, // CopyrightNotice
	0x76: true, // Contact
	0x7A: true, // CaptionWriter
}

// decodeIPTC walks Photoshop 8BIM resource blocks looking for the IPTC
// resource (0x0404) and decodes its IIM records.
func decodeIPTC(data []byte, s *core.ReportSection) {
	i := 0
	for i+8 < len(data) {
		if !bytes.Equal(data[i:i+4], []byte("8BIM")) {
			i++
			continue
		}
		resType := binary.BigEndian.Uint16(data[i+4 : i+6])
		nameLen := int(data[i+6])
		if nameLen%2 == 0 {
			nameLen++
		}
		i += 7 + nameLen
		if i+4 > len(data) {
			break
		}
		blockLen := int(binary.BigEndian.Uint32(data[i : i+4]))
		i += 4
		if resType == 0x0404 && blockLen >= 0 && i+blockLen <= len(data) {
			decodeIPTCBlock(data[i:i+blockLen], s)
		}
		i += blockLen
		if blockLen%2 != 0 {
			i++
		}
	}
}

func decodeIPTCBlock(data []byte, s *core.ReportSection) {
	i := 0
	for i+5 < len(data) {
		if data[i] != 0x1C {
			i++
			continue
		}
		dataset := data[i+2]
		length := int(binary.BigEndian.Uint16(data[i+3 : i+5]))
		i += 5
		if i+length > len(data) {
			break
		}
		val := string(data[i : i+length])
		if name, ok := iptcFieldNames[dataset]; ok {
			if iptcSensitive[dataset] {
				s.AddRisk("IPTC "+name, val)
			} else {
				s.Add("IPTC "+name, val, core.LevelInfo)
			}
		}
		i += length
	}
}

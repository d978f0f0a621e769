package image

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/jvillegas/metasweep/core"
)

// DecodeHEIF walks the ISOBMFF box tree of a HEIF/AVIF file: brands from
// ftyp, item info from meta→iinf, properties from meta→iprp→ipco, and the
// EXIF item payload located through iloc.
func DecodeHEIF(data []byte) *core.ReportSection {
	s := core.NewSection("HEIC/HEIF")
	r := core.NewReader(data)

	sawFtyp := false
	core.WalkBoxes(r, 0, r.Len(), func(depth int, b core.Box) bool {
		if depth != 0 {
			return false
		}
		switch b.Type {
		case "ftyp":
			sawFtyp = true
			decodeFtyp(r, b, s)
		case "meta":
			// meta is a full box: 4 bytes of version/flags precede the
			// child boxes.
			decodeHEIFMeta(r, b.Payload.Offset+4, b.Payload.Offset+b.Payload.Length, s)
		}
		return false
	})

	if !sawFtyp {
		s.SetNotice("not a valid ISOBMFF container", core.LevelError)
		return s
	}
	if len(s.Risks()) > 0 {
		s.SetNotice("sensitive metadata found", core.LevelWarning)
	} else {
		s.SetNotice("no identifying metadata found", core.LevelSuccess)
	}
	return s
}

func decodeFtyp(r *core.Reader, b core.Box, s *core.ReportSection) {
	payload, ok := r.Slice(b.Payload.Offset, b.Payload.Length)
	if !ok || len(payload) < 4 {
		return
	}
	s.Add("MajorBrand", fourCC(payload[0:4]), core.LevelInfo)
	var compat []string
	for i := 8; i+4 <= len(payload); i += 4 {
		if c := fourCC(payload[i : i+4]); c != "" {
			compat = append(compat, c)
		}
	}
	if len(compat) > 0 {
		s.Add("CompatibleBrands", strings.Join(compat, ", "), core.LevelMuted)
	}
}

func decodeHEIFMeta(r *core.Reader, start, end int64, s *core.ReportSection) {
	var exifItemID uint32
	var ilocBox core.Box
	haveIloc := false
	core.WalkBoxes(r, start, end, func(depth int, b core.Box) bool {
		if depth > 0 {
			return false
		}
		switch b.Type {
		case "iinf":
			exifItemID = decodeItemInfo(r, b, s)
		case "iprp":
			decodeItemProperties(r, b.Payload.Offset, b.Payload.Offset+b.Payload.Length, s)
		case "iref":
			decodeItemReferences(r, b, s)
		case "iloc":
			// Resolved after the walk so iinf order does not matter.
			ilocBox = b
			haveIloc = true
		}
		return false
	})
	if haveIloc && exifItemID != 0 {
		if payload := locateItem(r, ilocBox, exifItemID); payload != nil {
			decodeEXIF(exifItemPayload(payload), s)
		}
	}
}

// decodeItemInfo reads the iinf item table: count, item types, and the id
// of the Exif item when present.
func decodeItemInfo(r *core.Reader, b core.Box, s *core.ReportSection) uint32 {
	be := binary.BigEndian
	c := r.NewCursor(b.Payload.Offset)
	verFlags, ok := c.U32(be)
	if !ok {
		return 0
	}
	version := byte(verFlags >> 24)
	var count uint32
	if version == 0 {
		n, ok := c.U16(be)
		if !ok {
			return 0
		}
		count = uint32(n)
	} else {
		n, ok := c.U32(be)
		if !ok {
			return 0
		}
		count = n
	}
	s.Add("ItemCount", fmt.Sprintf("%d", count), core.LevelInfo)

	var exifID uint32
	typeCounts := map[string]int{}
	core.WalkBoxes(r, c.Pos(), b.Payload.Offset+b.Payload.Length, func(depth int, infe core.Box) bool {
		if depth > 0 || infe.Type != "infe" {
			return false
		}
		p, ok := r.Slice(infe.Payload.Offset, infe.Payload.Length)
		if !ok || len(p) < 4 {
			return false
		}
		ver := p[0]
		var itemID uint32
		var itemType string
		switch {
		case ver == 2 && len(p) >= 12:
			itemID = uint32(be.Uint16(p[4:6]))
			itemType = fourCC(p[8:12])
		case ver >= 3 && len(p) >= 14:
			itemID = be.Uint32(p[4:8])
			itemType = fourCC(p[10:14])
		}
		if itemType != "" {
			typeCounts[itemType]++
			if itemType == "Exif" {
				exifID = itemID
			}
		}
		return false
	})
	for _, t := range []string{"grid", "Exif", "mime", "tmap"} {
		if n := typeCounts[t]; n > 0 {
			s.Add("Items("+t+")", fmt.Sprintf("%d", n), core.LevelInfo)
		}
	}
	return exifID
}

// decodeItemReferences reports thumbnail/auxiliary relationships.
func decodeItemReferences(r *core.Reader, b core.Box, s *core.ReportSection) {
	counts := map[string]int{}
	core.WalkBoxes(r, b.Payload.Offset+4, b.Payload.Offset+b.Payload.Length, func(depth int, ref core.Box) bool {
		if depth == 0 {
			counts[ref.Type]++
		}
		return false
	})
	for _, t := range []string{"thmb", "auxl", "dimg", "cdsc"} {
		if n := counts[t]; n > 0 {
			s.Add("References("+t+")", fmt.Sprintf("%d", n), core.LevelMuted)
		}
	}
}

// decodeItemProperties walks iprp→ipco for ispe, irot, imir, colr.
func decodeItemProperties(r *core.Reader, start, end int64, s *core.ReportSection) {
	be := binary.BigEndian
	core.WalkBoxes(r, start, end, func(depth int, b core.Box) bool {
		if b.Type == "ipco" {
			return true
		}
		switch b.Type {
		case "ispe":
			p, ok := r.Slice(b.Payload.Offset, b.Payload.Length)
			if ok && len(p) >= 12 {
				w := be.Uint32(p[4:8])
				h := be.Uint32(p[8:12])
				s.Add("Dimensions", fmt.Sprintf("%d x %d", w, h), core.LevelInfo)
			}
		case "irot":
			if p, ok := r.Slice(b.Payload.Offset, b.Payload.Length); ok && len(p) >= 1 {
				s.Add("Rotation", fmt.Sprintf("%d°", int(p[0]&0x03)*90), core.LevelInfo)
			}
		case "imir":
			if p, ok := r.Slice(b.Payload.Offset, b.Payload.Length); ok && len(p) >= 1 {
				axis := "vertical"
				if p[0]&0x01 == 1 {
					axis = "horizontal"
				}
				s.Add("Mirror", axis, core.LevelInfo)
			}
		case "colr":
			decodeColr(r, b, s)
		}
		return false
	})
}

func decodeColr(r *core.Reader, b core.Box, s *core.ReportSection) {
	p, ok := r.Slice(b.Payload.Offset, b.Payload.Length)
	if !ok || len(p) < 4 {
		return
	}
	be := binary.BigEndian
	switch string(p[0:4]) {
	case "prof", "rICC":
		decodeICCProfile(p[4:], s)
	case "nclx":
		if len(p) >= 10 {
			s.Add("ColorParameters", fmt.Sprintf("primaries=%d transfer=%d matrix=%d",
				be.Uint16(p[4:6]), be.Uint16(p[6:8]), be.Uint16(p[8:10])), core.LevelInfo)
		}
	}
}

// locateItem resolves an item's first extent through the iloc table and
// returns its payload bytes.
func locateItem(r *core.Reader, b core.Box, wantID uint32) []byte {
	be := binary.BigEndian
	c := r.NewCursor(b.Payload.Offset)
	verFlags, ok := c.U32(be)
	if !ok {
		return nil
	}
	version := byte(verFlags >> 24)
	sizes, ok := c.U16(be)
	if !ok {
		return nil
	}
	offsetSize := int64(sizes >> 12)
	lengthSize := int64((sizes >> 8) & 0xF)
	baseOffsetSize := int64((sizes >> 4) & 0xF)
	indexSize := int64(0)
	if version == 1 || version == 2 {
		indexSize = int64(sizes & 0xF)
	}

	var itemCount uint32
	if version < 2 {
		n, ok := c.U16(be)
		if !ok {
			return nil
		}
		itemCount = uint32(n)
	} else {
		n, ok := c.U32(be)
		if !ok {
			return nil
		}
		itemCount = n
	}

	readSized := func(size int64) (uint64, bool) {
		switch size {
		case 0:
			return 0, true
		case 4:
			v, ok := c.U32(be)
			return uint64(v), ok
		case 8:
			return c.U64(be)
		}
		return 0, false
	}

	for i := uint32(0); i < itemCount && i < 4096; i++ {
		var itemID uint32
		if version < 2 {
			v, ok := c.U16(be)
			if !ok {
				return nil
			}
			itemID = uint32(v)
		} else {
			v, ok := c.U32(be)
			if !ok {
				return nil
			}
			itemID = v
		}
		if version == 1 || version == 2 {
			c.Skip(2) // construction method
		}
		c.Skip(2) // data reference index
		baseOffset, ok := readSized(baseOffsetSize)
		if !ok {
			return nil
		}
		extentCount, ok := c.U16(be)
		if !ok {
			return nil
		}
		for e := uint16(0); e < extentCount; e++ {
			if indexSize > 0 {
				if _, ok := readSized(indexSize); !ok {
					return nil
				}
			}
			extOffset, ok := readSized(offsetSize)
			if !ok {
				return nil
			}
			extLength, ok := readSized(lengthSize)
			if !ok {
				return nil
			}
			if itemID == wantID && e == 0 {
				payload, ok := r.Slice(int64(baseOffset+extOffset), int64(extLength))
				if ok {
					return payload
				}
				return nil
			}
		}
	}
	return nil
}

// exifItemPayload skips the 4-byte tiff-header offset prefix of a HEIF
// Exif item.
func exifItemPayload(p []byte) []byte {
	if len(p) < 4 {
		return p
	}
	skip := binary.BigEndian.Uint32(p[0:4])
	if int(4+skip) <= len(p) {
		return p[4+skip:]
	}
	return p[4:]
}

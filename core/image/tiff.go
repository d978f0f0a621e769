package image

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/jvillegas/metasweep/core"
)

// maxIFDChain caps "next IFD" traversal so a maliciously looping chain
// still terminates.
const maxIFDChain = 16

// tiffTypeSizes maps TIFF field type codes to their byte widths.
var tiffTypeSizes = map[uint16]int64{
	1: 1, 2: 1, 3: 2, 4: 4, 5: 8, 6: 1,
	7: 1, 8: 2, 9: 4, 10: 8, 11: 4, 12: 8,
	16: 8, 17: 8, // BigTIFF LONG8 / SLONG8
}

// tiffTagNames is the curated tag table the walker reports; sensitive
// authorship/device tags carry the risk flag.
var tiffTagNames = map[uint16]struct {
	name      string
	sensitive bool
}{
	0x0100: {"ImageWidth", false},
	0x0101: {"ImageLength", false},
	0x0102: {"BitsPerSample", false},
	0x0103: {"Compression", false},
	0x010E: {"ImageDescription", true},
	0x010F: {"Make", true},
	0x0110: {"Model", true},
	0x0112: {"Orientation", false},
	0x011A: {"XResolution", false},
	0x011B: {"YResolution", false},
	0x0131: {"Software", true},
	0x0132: {"DateTime", true},
	0x013B: {"Artist", true},
	0x8298: {"Copyright", true},
	0xA431: {"BodySerialNumber", true},
	0xA435: {"LensSerialNumber", true},
}

const (
	tagExifIFD = 0x8769
	tagGPSIFD  = 0x8825
)

type tiffLayout struct {
	bo         binary.ByteOrder
	big        bool  // BigTIFF: 8-byte offsets, 20-byte records
	recordSize int64 // 12 classic, 20 BigTIFF
	inlineSize int64 // pointer width: 4 classic, 8 BigTIFF
}

// parseTIFFHeader reads the byte order and version, distinguishing classic
// TIFF from BigTIFF, and returns the first IFD offset.
func parseTIFFHeader(r *core.Reader) (tiffLayout, int64, bool) {
	magic, ok := r.Slice(0, 2)
	if !ok {
		return tiffLayout{}, 0, false
	}
	var bo binary.ByteOrder
	switch string(magic) {
	case "II":
		bo = binary.LittleEndian
	case "MM":
		bo = binary.BigEndian
	default:
		return tiffLayout{}, 0, false
	}
	version, ok := r.U16(2, bo)
	if !ok {
		return tiffLayout{}, 0, false
	}
	switch version {
	case 42:
		off, ok := r.U32(4, bo)
		if !ok {
			return tiffLayout{}, 0, false
		}
		return tiffLayout{bo: bo, recordSize: 12, inlineSize: 4}, int64(off), true
	case 43:
		// BigTIFF: offset size (8) and a reserved word precede the offset.
		off, ok := r.U64(8, bo)
		if !ok {
			return tiffLayout{}, 0, false
		}
		return tiffLayout{bo: bo, big: true, recordSize: 20, inlineSize: 8}, int64(off), true
	}
	return tiffLayout{}, 0, false
}

// DecodeTIFF walks the IFD chain, resolving each tag's value inline or by
// offset using the type-size table.
func DecodeTIFF(data []byte) *core.ReportSection {
	s := core.NewSection("TIFF")
	r := core.NewReader(data)
	layout, first, ok := parseTIFFHeader(r)
	if !ok {
		s.SetNotice("not a valid TIFF stream", core.LevelError)
		return s
	}
	if layout.big {
		s.Add("Variant", "BigTIFF", core.LevelInfo)
	}
	if layout.bo == binary.LittleEndian {
		s.Add("ByteOrder", "little-endian", core.LevelMuted)
	} else {
		s.Add("ByteOrder", "big-endian", core.LevelMuted)
	}

	visited := map[int64]bool{}
	ifds := 0
	offset := first
	for offset > 0 && ifds < maxIFDChain && !visited[offset] {
		visited[offset] = true
		ifds++
		next := walkIFD(r, layout, offset, s, true)
		offset = next
	}
	s.Add("IFDCount", fmt.Sprintf("%d", ifds), core.LevelMuted)

	if len(s.Risks()) > 0 {
		s.SetNotice("sensitive metadata found", core.LevelWarning)
	} else if s.Len() <= 4 {
		s.SetNotice("no identifying metadata found", core.LevelSuccess)
	}
	return s
}

// walkIFD reads one IFD's records into the section and returns the next
// IFD offset (0 when the chain ends or the IFD is truncated).
func walkIFD(r *core.Reader, layout tiffLayout, offset int64, s *core.ReportSection, followSub bool) int64 {
	var count int64
	var recordsStart int64
	if layout.big {
		c, ok := r.U64(offset, layout.bo)
		if !ok {
			return 0
		}
		count = int64(c)
		recordsStart = offset + 8
	} else {
		c, ok := r.U16(offset, layout.bo)
		if !ok {
			return 0
		}
		count = int64(c)
		recordsStart = offset + 2
	}
	if count < 0 || count > 4096 {
		return 0
	}

	for i := int64(0); i < count; i++ {
		rec, ok := r.Slice(recordsStart+i*layout.recordSize, layout.recordSize)
		if !ok {
			return 0
		}
		tag := layout.bo.Uint16(rec[0:2])
		typ := layout.bo.Uint16(rec[2:4])
		var valCount int64
		if layout.big {
			valCount = int64(layout.bo.Uint64(rec[4:12]))
		} else {
			valCount = int64(layout.bo.Uint32(rec[4:8]))
		}
		typeSize, known := tiffTypeSizes[typ]
		if !known || valCount < 0 {
			continue
		}
		// A BigTIFF count can be large enough to wrap the size product
		// negative; no honest record describes more bytes than the buffer.
		if valCount > r.Len()/typeSize {
			continue
		}
		totalSize := typeSize * valCount

		// Values fitting inside the pointer width are stored inline,
		// larger ones live at the recorded offset.
		var valueBytes []byte
		inlineStart := layout.recordSize - layout.inlineSize
		if totalSize <= layout.inlineSize {
			valueBytes = rec[inlineStart : inlineStart+totalSize]
		} else {
			var valOff int64
			if layout.big {
				valOff = int64(layout.bo.Uint64(rec[inlineStart:]))
			} else {
				valOff = int64(layout.bo.Uint32(rec[inlineStart:]))
			}
			valueBytes, ok = r.Slice(valOff, totalSize)
			if !ok {
				continue
			}
		}

		if followSub && (tag == tagExifIFD || tag == tagGPSIFD) {
			if subOff, ok := tiffScalar(valueBytes, typ, layout.bo); ok {
				// One level of sub-IFD; sub-IFDs never chain further here.
				walkIFD(r, layout, int64(subOff), s, false)
			}
			continue
		}

		info, wanted := tiffTagNames[tag]
		if !wanted {
			continue
		}
		val := formatTIFFValue(valueBytes, typ, layout.bo)
		if val == "" {
			continue
		}
		if info.sensitive {
			s.AddRisk(info.name, val)
		} else {
			s.Add(info.name, val, core.LevelInfo)
		}
	}

	nextOff := recordsStart + count*layout.recordSize
	if layout.big {
		next, ok := r.U64(nextOff, layout.bo)
		if !ok {
			return 0
		}
		return int64(next)
	}
	next, ok := r.U32(nextOff, layout.bo)
	if !ok {
		return 0
	}
	return int64(next)
}

// tiffScalar reads the first value of an integer-typed field.
func tiffScalar(b []byte, typ uint16, bo binary.ByteOrder) (uint64, bool) {
	switch typ {
	case 1, 6, 7:
		if len(b) >= 1 {
			return uint64(b[0]), true
		}
	case 3, 8:
		if len(b) >= 2 {
			return uint64(bo.Uint16(b)), true
		}
	case 4, 9:
		if len(b) >= 4 {
			return uint64(bo.Uint32(b)), true
		}
	case 16, 17:
		if len(b) >= 8 {
			return bo.Uint64(b), true
		}
	}
	return 0, false
}

// formatTIFFValue renders ASCII, integer and rational values for display.
func formatTIFFValue(b []byte, typ uint16, bo binary.ByteOrder) string {
	switch typ {
	case 2: // ASCII
		return strings.TrimSpace(strings.TrimRight(string(b), "\x00"))
	case 5, 10: // RATIONAL / SRATIONAL
		if len(b) >= 8 {
			num := bo.Uint32(b[0:4])
			den := bo.Uint32(b[4:8])
			if den == 0 {
				return ""
			}
			return fmt.Sprintf("%g", float64(num)/float64(den))
		}
	default:
		if v, ok := tiffScalar(b, typ, bo); ok {
			return fmt.Sprintf("%d", v)
		}
	}
	return ""
}

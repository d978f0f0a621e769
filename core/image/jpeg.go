package image

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/jvillegas/metasweep/core"
	"github.com/jvillegas/metasweep/core/xmlprop"
)

// jpegSegment is one marker segment of a JPEG stream. Marker 0x00 holds
// the entropy-coded scan data trailing the SOS segment.
type jpegSegment struct {
	marker byte
	data   []byte
}

const (
	markerSOI  = 0xD8
	markerEOI  = 0xD9
	markerSOS  = 0xDA
	markerCOM  = 0xFE
	markerAPP0 = 0xE0
	markerAPP1 = 0xE1
	markerAPP2 = 0xE2
)

var (
	exifPrefix = []byte("Exif\x00\x00")
	xmpPrefix  = []byte("http://ns.adobe.com/xap/1.0/\x00")
	iccPrefix  = []byte("ICC_PROFILE\x00")
	iptcPrefix = []byte("Photoshop 3.0\x00")
)

// parseJPEGSegments splits a JPEG stream into its marker segments. Walks
// until EOI or truncation; whatever parsed up to that point is returned.
func parseJPEGSegments(data []byte) ([]jpegSegment, error) {
	if len(data) < 2 || data[0] != 0xFF || data[1] != markerSOI {
		return nil, core.ErrNotAContainer
	}
	var segs []jpegSegment
	segs = append(segs, jpegSegment{marker: markerSOI})

	i := 2
	for i < len(data) {
		if data[i] != 0xFF {
			// Entropy-coded data after SOS.
			segs = append(segs, jpegSegment{marker: 0x00, data: data[i:]})
			break
		}
		i++
		if i >= len(data) {
			break
		}
		marker := data[i]
		i++
		if marker == markerSOI || marker == markerEOI || (marker >= 0xD0 && marker <= 0xD7) {
			segs = append(segs, jpegSegment{marker: marker})
			if marker == markerEOI {
				break
			}
			continue
		}
		if i+2 > len(data) {
			break
		}
		segLen := int(binary.BigEndian.Uint16(data[i:i+2])) - 2
		i += 2
		if segLen < 0 || i+segLen > len(data) {
			break
		}
		segs = append(segs, jpegSegment{marker: marker, data: data[i : i+segLen]})
		i += segLen
	}
	return segs, nil
}

func writeJPEGSegments(segs []jpegSegment) []byte {
	var buf bytes.Buffer
	for _, seg := range segs {
		switch seg.marker {
		case markerSOI, markerEOI:
			buf.Write([]byte{0xFF, seg.marker})
		case 0x00:
			buf.Write(seg.data)
		default:
			buf.WriteByte(0xFF)
			buf.WriteByte(seg.marker)
			length := uint16(len(seg.data) + 2)
			buf.WriteByte(byte(length >> 8))
			buf.WriteByte(byte(length))
			buf.Write(seg.data)
		}
	}
	return buf.Bytes()
}

// DecodeJPEG walks the marker segments and reports dimensions, sampling,
// EXIF, XMP, ICC, IPTC and comment findings.
func DecodeJPEG(data []byte) *core.ReportSection {
	s := core.NewSection("JPEG")
	segs, err := parseJPEGSegments(data)
	if err != nil {
		s.SetNotice("not a valid JPEG stream", core.LevelError)
		return s
	}

	iccParts := map[int][]byte{}
	iccTotal := 0
	comments := 0

	for _, seg := range segs {
		switch {
		case seg.marker >= 0xC0 && seg.marker <= 0xC3:
			decodeJPEGFrame(seg, s)
		case seg.marker == markerAPP1 && bytes.HasPrefix(seg.data, exifPrefix):
			decodeEXIF(seg.data[len(exifPrefix):], s)
		case seg.marker == markerAPP1 && bytes.HasPrefix(seg.data, xmpPrefix):
			xmlprop.DecodeXMP(seg.data[len(xmpPrefix):], s)
		case seg.marker == markerAPP2 && bytes.HasPrefix(seg.data, iccPrefix):
			seq, total, chunk := splitICCSegment(seg.data[len(iccPrefix):])
			if seq > 0 {
				if _, dup := iccParts[seq]; !dup {
					iccParts[seq] = chunk
				}
				if total > iccTotal {
					iccTotal = total
				}
			}
		case seg.marker == 0xED && bytes.HasPrefix(seg.data, iptcPrefix):
			decodeIPTC(seg.data[len(iptcPrefix):], s)
		case seg.marker == markerCOM:
			comments++
			s.AddRisk(fmt.Sprintf("Comment %d", comments), printableString(seg.data))
		}
	}

	if profile := reassembleICC(iccParts, iccTotal); profile != nil {
		decodeICCProfile(profile, s)
	}

	if s.Len() == 0 {
		s.SetNotice("no metadata found", core.LevelSuccess)
	} else if len(s.Risks()) > 0 {
		s.SetNotice("sensitive metadata found", core.LevelWarning)
	}
	return s
}

// decodeJPEGFrame reads a SOF0-SOF3 segment: precision, dimensions, and
// the per-component sampling factors from which chroma subsampling is
// derived.
func decodeJPEGFrame(seg jpegSegment, s *core.ReportSection) {
	d := seg.data
	if len(d) < 6 {
		return
	}
	height := binary.BigEndian.Uint16(d[1:3])
	width := binary.BigEndian.Uint16(d[3:5])
	components := int(d[5])
	s.Add("Dimensions", fmt.Sprintf("%d x %d", width, height), core.LevelInfo)
	s.Add("BitDepth", fmt.Sprintf("%d", d[0]), core.LevelInfo)
	s.Add("Components", fmt.Sprintf("%d", components), core.LevelInfo)
	if seg.marker == 0xC2 {
		s.Add("Encoding", "progressive", core.LevelInfo)
	} else {
		s.Add("Encoding", "baseline", core.LevelInfo)
	}
	if components >= 3 && len(d) >= 6+3*components {
		// First component's sampling factors relative to chroma.
		h := d[7] >> 4
		v := d[7] & 0x0F
		if sub := chromaSubsampling(h, v); sub != "" {
			s.Add("ChromaSubsampling", sub, core.LevelInfo)
		}
	}
}

// chromaSubsampling derives the 4:x:x notation from the luma component's
// horizontal/vertical sampling ratios.
func chromaSubsampling(h, v byte) string {
	switch {
	case h == 1 && v == 1:
		return "4:4:4"
	case h == 2 && v == 1:
		return "4:2:2"
	case h == 2 && v == 2:
		return "4:2:0"
	case h == 1 && v == 2:
		return "4:4:0"
	}
	return ""
}

// splitICCSegment separates the (sequence, total) counters from an APP2
// ICC chunk payload.
func splitICCSegment(d []byte) (seq, total int, chunk []byte) {
	if len(d) < 2 {
		return 0, 0, nil
	}
	return int(d[0]), int(d[1]), d[2:]
}

// reassembleICC concatenates the profile only when every sequence number
// 1..total is present; a missing part means the profile is treated as
// absent rather than decoded from a hole-ridden buffer.
func reassembleICC(parts map[int][]byte, total int) []byte {
	if total == 0 || len(parts) == 0 {
		return nil
	}
	seqs := make([]int, 0, len(parts))
	for seq := range parts {
		seqs = append(seqs, seq)
	}
	sort.Ints(seqs)
	if len(seqs) != total {
		return nil
	}
	for i, seq := range seqs {
		if seq != i+1 {
			return nil
		}
	}
	var buf bytes.Buffer
	for i := 1; i <= total; i++ {
		buf.Write(parts[i])
	}
	return buf.Bytes()
}

// printableString renders segment bytes for display, replacing control
// characters.
func printableString(b []byte) string {
	out := make([]rune, 0, len(b))
	for _, r := range string(b) {
		if r == '\n' || r == '\t' || r >= 0x20 {
			out = append(out, r)
		} else {
			out = append(out, '.')
		}
	}
	s := string(out)
	if len(s) > 512 {
		s = s[:512] + "…"
	}
	return s
}

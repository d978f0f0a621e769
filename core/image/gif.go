package image

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/jvillegas/metasweep/core"
)

const (
	gifBlockImage     = 0x2C
	gifBlockExtension = 0x21
	gifBlockTrailer   = 0x3B

	gifExtGraphicControl = 0xF9
	gifExtComment        = 0xFE
	gifExtPlainText      = 0x01
	gifExtApplication    = 0xFF
)

// DecodeGIF parses the logical screen descriptor and iterates the block
// stream, reporting comments, application extensions and frame counts.
func DecodeGIF(data []byte) *core.ReportSection {
	s := core.NewSection("GIF")
	if len(data) < 13 || (!bytes.HasPrefix(data, []byte("GIF87a")) && !bytes.HasPrefix(data, []byte("GIF89a"))) {
		s.SetNotice("not a valid GIF stream", core.LevelError)
		return s
	}

	s.Add("Version", string(data[:6]), core.LevelInfo)
	w := binary.LittleEndian.Uint16(data[6:8])
	h := binary.LittleEndian.Uint16(data[8:10])
	s.Add("Dimensions", fmt.Sprintf("%d x %d", w, h), core.LevelInfo)

	i := 13
	if data[10]&0x80 != 0 {
		tableSize := 3 * (1 << (int(data[10]&0x07) + 1))
		s.Add("GlobalColorTable", fmt.Sprintf("%d colors", 1<<(int(data[10]&0x07)+1)), core.LevelMuted)
		i += tableSize
	}

	frames := 0
	comments := 0
	for i < len(data) {
		switch data[i] {
		case gifBlockTrailer:
			i = len(data)
		case gifBlockImage:
			frames++
			// Image descriptor is 9 bytes after the separator, plus an
			// optional local color table, then LZW sub-blocks.
			if i+10 > len(data) {
				i = len(data)
				break
			}
			flags := data[i+9]
			i += 10
			if flags&0x80 != 0 {
				i += 3 * (1 << (int(flags&0x07) + 1))
			}
			i++ // LZW minimum code size
			i = skipGIFSubBlocks(data, i)
		case gifBlockExtension:
			if i+2 > len(data) {
				i = len(data)
				break
			}
			label := data[i+1]
			i += 2
			switch label {
			case gifExtComment:
				payload, next := readGIFSubBlocks(data, i)
				i = next
				if len(payload) > 0 {
					comments++
					s.AddRisk(fmt.Sprintf("Comment %d", comments), printableString(payload))
				}
			case gifExtApplication:
				payload, next := readGIFSubBlocks(data, i)
				i = next
				decodeGIFApplication(payload, s)
			case gifExtPlainText:
				payload, next := readGIFSubBlocks(data, i)
				i = next
				if len(payload) > 12 {
					s.Add("PlainText", printableString(payload[12:]), core.LevelInfo)
				}
			default:
				// Graphic control and unknown extensions: skip sub-blocks.
				_, i = readGIFSubBlocks(data, i)
			}
		default:
			i++
		}
	}

	s.Add("Frames", fmt.Sprintf("%d", frames), core.LevelInfo)
	if comments > 0 {
		s.SetNotice("comment blocks found", core.LevelWarning)
	} else {
		s.SetNotice("no textual metadata found", core.LevelSuccess)
	}
	return s
}

// decodeGIFApplication special-cases the Netscape loop-count payload;
// other application identifiers are reported verbatim.
func decodeGIFApplication(payload []byte, s *core.ReportSection) {
	if len(payload) < 11 {
		return
	}
	ident := string(payload[:11])
	if ident == "NETSCAPE2.0" || ident == "ANIMEXTS1.0" {
		if len(payload) >= 14 && payload[11] == 1 {
			loops := binary.LittleEndian.Uint16(payload[12:14])
			val := fmt.Sprintf("%d", loops)
			if loops == 0 {
				val = "infinite"
			}
			s.Add("LoopCount", val, core.LevelInfo)
		}
		return
	}
	s.Add("ApplicationExtension", printableString(payload[:11]), core.LevelInfo)
	if ident == "XMP DataXMP" && len(payload) > 11 {
		// XMP rides in an application extension with a magic trailer.
		decodePNGXMP(payload[11:], s)
	}
}

// readGIFSubBlocks concatenates a sub-block sequence, returning the data
// and the offset just past the terminator.
func readGIFSubBlocks(data []byte, i int) ([]byte, int) {
	var out []byte
	for i < len(data) {
		size := int(data[i])
		i++
		if size == 0 {
			break
		}
		if i+size > len(data) {
			return out, len(data)
		}
		out = append(out, data[i:i+size]...)
		i += size
	}
	return out, i
}

func skipGIFSubBlocks(data []byte, i int) int {
	for i < len(data) {
		size := int(data[i])
		i++
		if size == 0 {
			break
		}
		i += size
	}
	return i
}

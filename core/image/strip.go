package image

import (
	"bytes"
	"encoding/binary"

	"github.com/jvillegas/metasweep/core"
)

// jpegMetaMarkers lists the segments a full strip removes.
var jpegMetaMarkers = map[byte]bool{
	0xE1: true, // APP1  — EXIF / XMP
	0xE2: true, // APP2  — ICC profile / FlashPix
	0xEC: true, // APP12 — Picture Info
	0xED: true, // APP13 — IPTC / Photoshop
	0xEE: true, // APP14 — Adobe
	0xFE: true, // COM   — comment
}

// pngMetaChunks lists the ancillary chunks a full strip removes. Critical
// chunks (IHDR, PLTE, IDAT, IEND) and transparency stay.
var pngMetaChunks = map[string]bool{
	"tEXt": true,
	"iTXt": true,
	"zTXt": true,
	"eXIf": true,
	"tIME": true,
	"iCCP": true,
	"sPLT": true,
	"hIST": true,
}

// StripJPEG drops the metadata segments from a JPEG stream. Returns the
// rewritten bytes and whether anything was removed.
func StripJPEG(data []byte) ([]byte, bool, error) {
	segments, err := parseJPEGSegments(data)
	if err != nil {
		return nil, false, err
	}
	var kept []jpegSegment
	changed := false
	for _, seg := range segments {
		if jpegMetaMarkers[seg.marker] {
			changed = true
			continue
		}
		kept = append(kept, seg)
	}
	if !changed {
		return data, false, nil
	}
	return writeJPEGSegments(kept), true, nil
}

// StripPNG drops textual, timestamp and profile chunks, recomputing CRCs
// for the remainder.
func StripPNG(data []byte) ([]byte, bool, error) {
	chunks := readPNGChunks(data)
	if chunks == nil {
		return nil, false, core.ErrNotAContainer
	}
	var kept []pngChunk
	changed := false
	for _, c := range chunks {
		if pngMetaChunks[c.typ] {
			changed = true
			continue
		}
		kept = append(kept, c)
	}
	if !changed {
		return data, false, nil
	}
	return writePNGChunks(kept), true, nil
}

// StripGIF removes comment extensions and XMP application extensions while
// copying every other block verbatim. The walk follows the block structure
// (image descriptors with their color table and LZW sub-blocks pass through
// as one unit) so pixel data is never scanned for extension introducers.
// The Netscape loop extension stays so animations keep looping.
func StripGIF(data []byte) ([]byte, bool, error) {
	if len(data) < 13 || (!bytes.HasPrefix(data, []byte("GIF87a")) && !bytes.HasPrefix(data, []byte("GIF89a"))) {
		return nil, false, core.ErrNotAContainer
	}

	var out bytes.Buffer
	out.Write(data[:13])
	i := 13
	if data[10]&0x80 != 0 {
		ctSize := 3 * (1 << (int(data[10]&0x07) + 1))
		if i+ctSize > len(data) {
			return nil, false, core.ErrNotAContainer
		}
		out.Write(data[i : i+ctSize])
		i += ctSize
	}

	changed := false
	for i < len(data) {
		switch data[i] {
		case gifBlockTrailer:
			out.WriteByte(gifBlockTrailer)
			i = len(data)
		case gifBlockImage:
			if i+10 > len(data) {
				out.Write(data[i:])
				i = len(data)
				break
			}
			start := i
			flags := data[i+9]
			i += 10
			if flags&0x80 != 0 {
				i += 3 * (1 << (int(flags&0x07) + 1))
			}
			i++ // LZW minimum code size
			i = skipGIFSubBlocks(data, i)
			if i > len(data) {
				i = len(data)
			}
			out.Write(data[start:i])
		case gifBlockExtension:
			if i+2 > len(data) {
				out.Write(data[i:])
				i = len(data)
				break
			}
			start := i
			switch data[i+1] {
			case gifExtComment:
				changed = true
				i = skipGIFSubBlocks(data, i+2)
			case gifExtApplication:
				payload, next := readGIFSubBlocks(data, i+2)
				if len(payload) >= 11 && string(payload[:11]) == "XMP DataXMP" {
					changed = true
				} else {
					out.Write(data[start:next])
				}
				i = next
			default:
				i = skipGIFSubBlocks(data, i+2)
				if i > len(data) {
					i = len(data)
				}
				out.Write(data[start:i])
			}
		default:
			// Unknown introducer: pass the remainder through untouched.
			out.Write(data[i:])
			i = len(data)
		}
	}

	if !changed {
		return data, false, nil
	}
	return out.Bytes(), true, nil
}

// webpMetaChunks lists the RIFF chunks a full strip removes.
var webpMetaChunks = map[string]bool{
	"EXIF": true,
	"XMP ": true,
	"ICCP": true,
}

// StripWebP rebuilds the RIFF container without metadata chunks, clearing
// the corresponding VP8X feature bits and fixing the RIFF size field.
func StripWebP(data []byte) ([]byte, bool, error) {
	if len(data) < 12 || !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WEBP")) {
		return nil, false, core.ErrNotAContainer
	}

	var body bytes.Buffer
	changed := false
	for _, c := range walkRIFF(data) {
		if webpMetaChunks[c.id] {
			changed = true
			continue
		}
		chunk := c.data
		if c.id == "VP8X" && len(chunk) >= 1 {
			cleared := make([]byte, len(chunk))
			copy(cleared, chunk)
			cleared[0] &^= 0x20 | 0x08 | 0x04 // ICC, EXIF, XMP bits
			if cleared[0] != chunk[0] {
				changed = true
			}
			chunk = cleared
		}
		body.WriteString(c.id)
		var size [4]byte
		binary.LittleEndian.PutUint32(size[:], uint32(len(chunk)))
		body.Write(size[:])
		body.Write(chunk)
		if len(chunk)%2 != 0 {
			body.WriteByte(0)
		}
	}
	if !changed {
		return data, false, nil
	}

	var out bytes.Buffer
	out.WriteString("RIFF")
	var total [4]byte
	binary.LittleEndian.PutUint32(total[:], uint32(body.Len()+4))
	out.Write(total[:])
	out.WriteString("WEBP")
	out.Write(body.Bytes())
	return out.Bytes(), true, nil
}

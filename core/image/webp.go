package image

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/jvillegas/metasweep/core"
	"github.com/jvillegas/metasweep/core/xmlprop"
)

// riffChunk is one chunk of a RIFF container.
type riffChunk struct {
	id   string
	data []byte
}

// walkRIFF iterates chunks after the 12-byte RIFF header. Odd-length
// chunks are padded to an even boundary; skipping the pad byte is what
// keeps every subsequent chunk aligned.
func walkRIFF(data []byte) []riffChunk {
	var chunks []riffChunk
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		offset += 8
		if size < 0 || offset+size > len(data) {
			break
		}
		chunks = append(chunks, riffChunk{id: id, data: data[offset : offset+size]})
		offset += size
		if size%2 != 0 {
			offset++
		}
	}
	return chunks
}

// DecodeWebP iterates the RIFF chunks of a WebP container.
func DecodeWebP(data []byte) *core.ReportSection {
	s := core.NewSection("WebP")
	if len(data) < 12 || !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WEBP")) {
		s.SetNotice("not a valid WebP container", core.LevelError)
		return s
	}

	animFrames := 0
	for _, c := range walkRIFF(data) {
		switch c.id {
		case "VP8X":
			decodeVP8X(c.data, s)
		case "VP8 ":
			s.Add("Encoding", "VP8 (lossy)", core.LevelInfo)
			if len(c.data) >= 10 {
				w := binary.LittleEndian.Uint16(c.data[6:8]) & 0x3FFF
				h := binary.LittleEndian.Uint16(c.data[8:10]) & 0x3FFF
				s.Add("Dimensions", fmt.Sprintf("%d x %d", w, h), core.LevelInfo)
			}
		case "VP8L":
			s.Add("Encoding", "VP8L (lossless)", core.LevelInfo)
			if len(c.data) >= 5 && c.data[0] == 0x2F {
				bits := binary.LittleEndian.Uint32(c.data[1:5])
				w := (bits & 0x3FFF) + 1
				h := ((bits >> 14) & 0x3FFF) + 1
				s.Add("Dimensions", fmt.Sprintf("%d x %d", w, h), core.LevelInfo)
			}
		case "ANIM":
			if len(c.data) >= 6 {
				loops := binary.LittleEndian.Uint16(c.data[4:6])
				val := fmt.Sprintf("%d", loops)
				if loops == 0 {
					val = "infinite"
				}
				s.Add("LoopCount", val, core.LevelInfo)
			}
		case "ANMF":
			animFrames++
		case "EXIF":
			decodeEXIF(exifPayload(c.data), s)
		case "XMP ":
			xmlprop.DecodeXMP(c.data, s)
		case "ICCP":
			decodeICCProfile(c.data, s)
		}
	}
	if animFrames > 0 {
		s.Add("AnimationFrames", fmt.Sprintf("%d", animFrames), core.LevelInfo)
	}

	if len(s.Risks()) > 0 {
		s.SetNotice("sensitive metadata found", core.LevelWarning)
	} else {
		s.SetNotice("no identifying metadata found", core.LevelSuccess)
	}
	return s
}

// decodeVP8X reports the extended-format feature flags and canvas size.
func decodeVP8X(d []byte, s *core.ReportSection) {
	if len(d) < 10 {
		return
	}
	flags := d[0]
	var features []string
	for _, f := range []struct {
		bit  byte
		name string
	}{
		{0x20, "ICC"},
		{0x10, "alpha"},
		{0x08, "EXIF"},
		{0x04, "XMP"},
		{0x02, "animation"},
	} {
		if flags&f.bit != 0 {
			features = append(features, f.name)
		}
	}
	if len(features) > 0 {
		s.Add("Features", fmt.Sprintf("%v", features), core.LevelInfo)
	}
	w := (uint32(d[4]) | uint32(d[5])<<8 | uint32(d[6])<<16) + 1
	h := (uint32(d[7]) | uint32(d[8])<<8 | uint32(d[9])<<16) + 1
	s.Add("Dimensions", fmt.Sprintf("%d x %d", w, h), core.LevelInfo)
}

// exifPayload strips the optional Exif\0\0 prefix some writers include
// inside the RIFF EXIF chunk.
func exifPayload(d []byte) []byte {
	if bytes.HasPrefix(d, exifPrefix) {
		return d[len(exifPrefix):]
	}
	return d
}

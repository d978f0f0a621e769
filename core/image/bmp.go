package image

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/jvillegas/metasweep/core"
)

// bmpCompressionNames covers the BITMAPINFOHEADER compression values seen
// in practice.
var bmpCompressionNames = map[uint32]string{
	0: "none (BI_RGB)",
	1: "RLE8",
	2: "RLE4",
	3: "bitfields",
	4: "JPEG",
	5: "PNG",
}

// DecodeBMP reads the file and DIB headers. BMP carries no embedded
// metadata blocks, so the report is purely structural.
func DecodeBMP(data []byte) *core.ReportSection {
	s := core.NewSection("BMP")
	if len(data) < 54 || !bytes.HasPrefix(data, []byte("BM")) {
		s.SetNotice("not a valid BMP stream", core.LevelError)
		return s
	}
	le := binary.LittleEndian

	s.Add("FileSize", fmt.Sprintf("%d bytes", le.Uint32(data[2:6])), core.LevelMuted)
	headerSize := le.Uint32(data[14:18])
	s.Add("DIBHeaderSize", fmt.Sprintf("%d", headerSize), core.LevelMuted)

	if headerSize >= 40 {
		w := int32(le.Uint32(data[18:22]))
		h := int32(le.Uint32(data[22:26]))
		topDown := h < 0
		if topDown {
			h = -h
		}
		s.Add("Dimensions", fmt.Sprintf("%d x %d", w, h), core.LevelInfo)
		if topDown {
			s.Add("RowOrder", "top-down", core.LevelMuted)
		}
		s.Add("BitsPerPixel", fmt.Sprintf("%d", le.Uint16(data[28:30])), core.LevelInfo)
		comp := le.Uint32(data[30:34])
		name := bmpCompressionNames[comp]
		if name == "" {
			name = fmt.Sprintf("unknown (%d)", comp)
		}
		s.Add("Compression", name, core.LevelInfo)
		xppm := le.Uint32(data[38:42])
		yppm := le.Uint32(data[42:46])
		if xppm > 0 || yppm > 0 {
			s.Add("Resolution", fmt.Sprintf("%d x %d px/m", xppm, yppm), core.LevelMuted)
		}
	}

	s.SetNotice("format carries no embedded metadata", core.LevelSuccess)
	return s
}

package image

import (
	"encoding/binary"
	"testing"

	"github.com/jvillegas/metasweep/core"
)

func buildBMP(width, height int32, bpp uint16, compression uint32) []byte {
	b := make([]byte, 54)
	copy(b, "BM")
	le := binary.LittleEndian
	le.PutUint32(b[2:6], 54)
	le.PutUint32(b[14:18], 40)
	le.PutUint32(b[18:22], uint32(width))
	le.PutUint32(b[22:26], uint32(height))
	le.PutUint16(b[26:28], 1)
	le.PutUint16(b[28:30], bpp)
	le.PutUint32(b[30:34], compression)
	le.PutUint32(b[38:42], 2835)
	le.PutUint32(b[42:46], 2835)
	return b
}

func TestDecodeBMP(t *testing.T) {
	s := DecodeBMP(buildBMP(640, 480, 24, 0))
	got := map[string]string{}
	for _, e := range s.Entries {
		got[e.Label] = e.Value
	}
	if got["Dimensions"] != "640 x 480" {
		t.Fatalf("Dimensions = %q", got["Dimensions"])
	}
	if got["BitsPerPixel"] != "24" {
		t.Fatalf("BitsPerPixel = %q", got["BitsPerPixel"])
	}
	if got["Compression"] != "none (BI_RGB)" {
		t.Fatalf("Compression = %q", got["Compression"])
	}
	if got["Resolution"] != "2835 x 2835 px/m" {
		t.Fatalf("Resolution = %q", got["Resolution"])
	}
	if len(s.Risks()) != 0 {
		t.Fatalf("risks = %+v, format carries none", s.Risks())
	}
	if s.Notice == nil || s.Notice.Level != core.LevelSuccess {
		t.Fatalf("notice = %+v", s.Notice)
	}
}

func TestDecodeBMPTopDown(t *testing.T) {
	s := DecodeBMP(buildBMP(8, -8, 32, 3))
	got := map[string]string{}
	for _, e := range s.Entries {
		got[e.Label] = e.Value
	}
	if got["Dimensions"] != "8 x 8" || got["RowOrder"] != "top-down" {
		t.Fatalf("entries = %v", got)
	}
	if got["Compression"] != "bitfields" {
		t.Fatalf("Compression = %q", got["Compression"])
	}
}

func TestDecodeBMPTruncated(t *testing.T) {
	s := DecodeBMP([]byte("BM too short"))
	if s.Notice == nil || s.Notice.Message != "not a valid BMP stream" {
		t.Fatalf("notice = %+v", s.Notice)
	}
}

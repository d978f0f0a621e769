package image

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/jvillegas/metasweep/core"
)

func buildGIF(blocks ...[]byte) []byte {
	out := []byte("GIF89a")
	out = append(out, 2, 0, 2, 0, 0x00, 0, 0) // screen descriptor, no color table
	for _, b := range blocks {
		out = append(out, b...)
	}
	return append(out, gifBlockTrailer)
}

func gifComment(text string) []byte {
	b := []byte{gifBlockExtension, gifExtComment, byte(len(text))}
	b = append(b, text...)
	return append(b, 0)
}

func gifApplication(ident string, extra []byte) []byte {
	b := []byte{gifBlockExtension, gifExtApplication, byte(len(ident))}
	b = append(b, ident...)
	if len(extra) > 0 {
		b = append(b, byte(len(extra)))
		b = append(b, extra...)
	}
	return append(b, 0)
}

func TestStripGIFDropsCommentsKeepsLoop(t *testing.T) {
	src := buildGIF(
		gifComment("made by alice"),
		gifApplication("NETSCAPE2.0", []byte{1, 0, 0}),
		gifApplication("XMP DataXMP", []byte("<x:xmpmeta/>")),
	)
	out, changed, err := StripGIF(src)
	if err != nil || !changed {
		t.Fatalf("strip: changed=%v err=%v", changed, err)
	}
	if bytes.Contains(out, []byte("alice")) || bytes.Contains(out, []byte("XMP Data")) {
		t.Fatal("comment or XMP survived the strip")
	}
	if !bytes.Contains(out, []byte("NETSCAPE2.0")) {
		t.Fatal("loop extension must survive the strip")
	}
	if out[len(out)-1] != gifBlockTrailer {
		t.Fatal("trailer lost")
	}

	_, changed, err = StripGIF(out)
	if err != nil || changed {
		t.Fatalf("second strip: changed=%v err=%v", changed, err)
	}
}

// gifImage builds an image block: descriptor, LZW minimum code size, one
// data sub-block, terminator.
func gifImage(pixels []byte) []byte {
	b := []byte{gifBlockImage, 0, 0, 0, 0, 2, 0, 2, 0, 0x00}
	b = append(b, 2, byte(len(pixels)))
	b = append(b, pixels...)
	return append(b, 0)
}

func TestStripGIFLeavesPixelDataIntact(t *testing.T) {
	// The compressed image data happens to contain the bytes of a comment
	// extension introducer; the strip must not interpret pixel bytes as
	// blocks.
	pixels := []byte{0x21, 0xFE, 0x05, 0x99}
	src := buildGIF(gifImage(pixels))

	out, changed, err := StripGIF(src)
	if err != nil {
		t.Fatalf("strip: %v", err)
	}
	if changed {
		t.Fatal("metadata-free GIF reported as changed")
	}
	if !bytes.Equal(out, src) {
		t.Fatalf("output differs from input:\n got %x\nwant %x", out, src)
	}
}

func TestStripGIFDropsCommentBeforeImage(t *testing.T) {
	pixels := []byte{0x21, 0xFE, 0x05, 0x99}
	src := buildGIF(gifComment("device serial 441"), gifImage(pixels))

	out, changed, err := StripGIF(src)
	if err != nil || !changed {
		t.Fatalf("strip: changed=%v err=%v", changed, err)
	}
	if bytes.Contains(out, []byte("serial")) {
		t.Fatal("comment survived the strip")
	}
	if !bytes.Contains(out, pixels) {
		t.Fatal("pixel data lost")
	}
	if out[len(out)-1] != gifBlockTrailer {
		t.Fatal("trailer lost")
	}
	if want := buildGIF(gifImage(pixels)); !bytes.Equal(out, want) {
		t.Fatalf("output = %x, want %x", out, want)
	}
}

func TestStripGIFNotAGIF(t *testing.T) {
	if _, _, err := StripGIF([]byte("PNG?")); !errors.Is(err, core.ErrNotAContainer) {
		t.Fatalf("err = %v, want ErrNotAContainer", err)
	}
}

func webpChunk(id string, data []byte) []byte {
	b := []byte(id)
	var size [4]byte
	binary.LittleEndian.PutUint32(size[:], uint32(len(data)))
	b = append(b, size[:]...)
	b = append(b, data...)
	if len(data)%2 != 0 {
		b = append(b, 0)
	}
	return b
}

func buildWebP(chunks ...[]byte) []byte {
	var body []byte
	for _, c := range chunks {
		body = append(body, c...)
	}
	out := []byte("RIFF")
	var size [4]byte
	binary.LittleEndian.PutUint32(size[:], uint32(len(body)+4))
	out = append(out, size[:]...)
	out = append(out, "WEBP"...)
	return append(out, body...)
}

func TestStripWebPClearsChunksAndFeatureBits(t *testing.T) {
	vp8x := make([]byte, 10)
	vp8x[0] = 0x20 | 0x08 | 0x04 // ICC, EXIF, XMP present
	src := buildWebP(
		webpChunk("VP8X", vp8x),
		webpChunk("ICCP", []byte("profilebytes")),
		webpChunk("VP8 ", []byte{0, 1, 2, 3}),
		webpChunk("EXIF", []byte("MM\x00\x2A")),
		webpChunk("XMP ", []byte("<x/>")),
	)
	out, changed, err := StripWebP(src)
	if err != nil || !changed {
		t.Fatalf("strip: changed=%v err=%v", changed, err)
	}
	var ids []string
	var gotVP8X []byte
	for _, c := range walkRIFF(out) {
		ids = append(ids, c.id)
		if c.id == "VP8X" {
			gotVP8X = c.data
		}
	}
	if len(ids) != 2 || ids[0] != "VP8X" || ids[1] != "VP8 " {
		t.Fatalf("surviving chunks = %v", ids)
	}
	if gotVP8X[0] != 0 {
		t.Fatalf("VP8X feature bits not cleared: %#x", gotVP8X[0])
	}
	if want := uint32(len(out) - 8); binary.LittleEndian.Uint32(out[4:8]) != want {
		t.Fatalf("RIFF size = %d, want %d", binary.LittleEndian.Uint32(out[4:8]), want)
	}

	_, changed, err = StripWebP(out)
	if err != nil || changed {
		t.Fatalf("second strip: changed=%v err=%v", changed, err)
	}
}

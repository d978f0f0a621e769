package image

import (
	"bytes"
	"encoding/binary"
	"reflect"
	"testing"
)

func pngIHDR(w, h uint32) pngChunk {
	d := make([]byte, 13)
	binary.BigEndian.PutUint32(d[0:4], w)
	binary.BigEndian.PutUint32(d[4:8], h)
	d[8] = 8
	return pngChunk{typ: "IHDR", data: d}
}

func textChunk(key, val string) pngChunk {
	return pngChunk{typ: "tEXt", data: append(append([]byte(key), 0), val...)}
}

func buildPNG(chunks ...pngChunk) []byte {
	all := append([]pngChunk{pngIHDR(4, 4)}, chunks...)
	all = append(all, pngChunk{typ: "IDAT", data: []byte{0}}, pngChunk{typ: "IEND"})
	return writePNGChunks(all)
}

func TestPNGChunkRoundTrip(t *testing.T) {
	src := buildPNG(textChunk("Software", "paintbox 1.0"))
	chunks := readPNGChunks(src)
	want := []string{"IHDR", "tEXt", "IDAT", "IEND"}
	var got []string
	for _, c := range chunks {
		got = append(got, c.typ)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("chunk types = %v, want %v", got, want)
	}
	if out := writePNGChunks(chunks); !bytes.Equal(out, src) {
		t.Fatal("write(read(x)) != x")
	}
}

func TestReadPNGChunksRejectsBadSignature(t *testing.T) {
	if got := readPNGChunks([]byte("not a png at all")); got != nil {
		t.Fatalf("expected nil for non-PNG input, got %d chunks", len(got))
	}
}

func TestDecodePNGAuthorKeywordIsRisk(t *testing.T) {
	src := buildPNG(textChunk("Author", "Jane Doe"), textChunk("Palette", "warm"))
	s := DecodePNG(src)
	risks := s.Risks()
	if len(risks) != 1 {
		t.Fatalf("risks = %+v, want exactly the Author entry", risks)
	}
	if risks[0].Label != "Author" || risks[0].Value != "Jane Doe" {
		t.Fatalf("risk = %+v", risks[0])
	}
}

func TestDecodePNGModificationTimeIsRisk(t *testing.T) {
	src := buildPNG(pngChunk{typ: "tIME", data: []byte{0x07, 0xE8, 3, 14, 9, 26, 53}})
	s := DecodePNG(src)
	risks := s.Risks()
	if len(risks) != 1 || risks[0].Value != "2024-03-14 09:26:53" {
		t.Fatalf("risks = %+v", risks)
	}
}

func TestStripPNGRemovesTextualChunks(t *testing.T) {
	src := buildPNG(
		textChunk("Author", "Jane Doe"),
		pngChunk{typ: "tIME", data: []byte{0x07, 0xE8, 1, 1, 0, 0, 0}},
	)
	out, changed, err := StripPNG(src)
	if err != nil || !changed {
		t.Fatalf("strip: changed=%v err=%v", changed, err)
	}
	var got []string
	for _, c := range readPNGChunks(out) {
		got = append(got, c.typ)
	}
	if !reflect.DeepEqual(got, []string{"IHDR", "IDAT", "IEND"}) {
		t.Fatalf("surviving chunks = %v", got)
	}

	_, changed, err = StripPNG(out)
	if err != nil || changed {
		t.Fatalf("second strip: changed=%v err=%v", changed, err)
	}
}

func TestStripPNGNotAPNG(t *testing.T) {
	if _, _, err := StripPNG([]byte("GIF89a")); err == nil {
		t.Fatal("expected an error for non-PNG input")
	}
}

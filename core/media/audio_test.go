package media

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/jvillegas/metasweep/core"
)

func riffChunk(id string, data []byte) []byte {
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

func buildWAV(chunks ...[]byte) []byte {
	var body []byte
	for _, c := range chunks {
		body = append(body, c...)
	}
	out := []byte("RIFF")
	var size [4]byte
	binary.LittleEndian.PutUint32(size[:], uint32(len(body)+4))
	out = append(out, size[:]...)
	out = append(out, "WAVE"...)
	return append(out, body...)
}

func TestStripWAVDropsInfoAndID3(t *testing.T) {
	info := append([]byte("INFO"), riffChunk("IART", []byte("Jane Doe\x00"))...)
	src := buildWAV(
		riffChunk("fmt ", make([]byte, 16)),
		riffChunk("LIST", info),
		riffChunk("data", []byte{1, 2, 3, 4}),
		riffChunk("id3 ", []byte("ID3\x04\x00junk")),
	)
	out, changed, err := StripWAV(src)
	if err != nil || !changed {
		t.Fatalf("strip: changed=%v err=%v", changed, err)
	}
	if bytes.Contains(out, []byte("Jane Doe")) || bytes.Contains(out, []byte("id3 ")) {
		t.Fatal("metadata chunks survived")
	}
	if !bytes.Contains(out, []byte("fmt ")) || !bytes.Contains(out, []byte("data")) {
		t.Fatal("audio chunks must survive")
	}
	if want := uint32(len(out) - 8); binary.LittleEndian.Uint32(out[4:8]) != want {
		t.Fatalf("RIFF size = %d, want %d", binary.LittleEndian.Uint32(out[4:8]), want)
	}

	_, changed, err = StripWAV(out)
	if err != nil || changed {
		t.Fatalf("second strip: changed=%v err=%v", changed, err)
	}
}

func TestStripWAVKeepsNonInfoLists(t *testing.T) {
	adtl := append([]byte("adtl"), riffChunk("labl", []byte("cue one\x00"))...)
	src := buildWAV(
		riffChunk("fmt ", make([]byte, 16)),
		riffChunk("LIST", adtl),
		riffChunk("data", []byte{1, 2}),
	)
	_, changed, err := StripWAV(src)
	if err != nil || changed {
		t.Fatalf("adtl list must pass through: changed=%v err=%v", changed, err)
	}
}

func TestStripWAVNotAWAV(t *testing.T) {
	if _, _, err := StripWAV([]byte("RIFF\x00\x00\x00\x00AVI ")); !errors.Is(err, core.ErrNotAContainer) {
		t.Fatalf("err = %v, want ErrNotAContainer", err)
	}
}

func TestHasMP3Tags(t *testing.T) {
	if !HasMP3Tags([]byte("ID3\x04\x00rest")) {
		t.Fatal("ID3v2 header not detected")
	}
	trailer := append(make([]byte, 200), []byte("TAG")...)
	trailer = append(trailer, make([]byte, 125)...)
	if !HasMP3Tags(trailer) {
		t.Fatal("ID3v1 trailer not detected")
	}
	if HasMP3Tags([]byte("\xFF\xFBplain mpeg frames")) {
		t.Fatal("tag-free stream misreported")
	}
	if HasMP3Tags([]byte("TAG")) {
		t.Fatal("short stream cannot hold an ID3v1 trailer")
	}
}

package core

import (
	"encoding/binary"
	"reflect"
	"testing"
)

// iccLikeLayout parses 12-byte records: 4-byte signature, u32 offset,
// u32 length, big-endian.
var iccLikeLayout = RecordLayout{
	RecordSize: 12,
	Parse: func(rec []byte) (string, Region, bool) {
		return string(rec[0:4]), Region{
			Offset: int64(binary.BigEndian.Uint32(rec[4:8])),
			Length: int64(binary.BigEndian.Uint32(rec[8:12])),
		}, true
	},
}

func record(sig string, off, length uint32) []byte {
	rec := make([]byte, 12)
	copy(rec, sig)
	binary.BigEndian.PutUint32(rec[4:8], off)
	binary.BigEndian.PutUint32(rec[8:12], length)
	return rec
}

func TestDirectoryFirstOccurrenceWins(t *testing.T) {
	var buf []byte
	buf = append(buf, record("desc", 36, 4)...)
	buf = append(buf, record("cprt", 40, 4)...)
	buf = append(buf, record("desc", 44, 4)...) // duplicate, must be ignored
	buf = append(buf, []byte("AAAABBBBCCCC")...)

	d := ReadDirectory(NewReader(buf), 0, 3, iccLikeLayout)
	if d.Len() != 2 {
		t.Fatalf("Len = %d, want 2", d.Len())
	}
	if got := d.Signatures(); !reflect.DeepEqual(got, []string{"desc", "cprt"}) {
		t.Fatalf("Signatures = %v", got)
	}
	payload, ok := d.Bytes("desc")
	if !ok || string(payload) != "AAAA" {
		t.Fatalf("Bytes(desc) = %q, %v; first occurrence must win", payload, ok)
	}
}

func TestDirectoryStopsOnTruncation(t *testing.T) {
	var buf []byte
	buf = append(buf, record("rTRC", 0, 0)...)
	buf = append(buf, []byte{0x01, 0x02}...) // second record cut short

	d := ReadDirectory(NewReader(buf), 0, 5, iccLikeLayout)
	if d.Len() != 1 {
		t.Fatalf("Len = %d, want 1 after truncation", d.Len())
	}
}

func TestDirectoryBytesBoundsValidated(t *testing.T) {
	buf := record("wtpt", 100, 20) // region points past the buffer
	d := ReadDirectory(NewReader(buf), 0, 1, iccLikeLayout)
	if _, ok := d.Bytes("wtpt"); ok {
		t.Fatal("out-of-range region must not resolve")
	}
}

func box(typ string, payload []byte) []byte {
	b := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint32(b[0:4], uint32(8+len(payload)))
	copy(b[4:8], typ)
	copy(b[8:], payload)
	return b
}

func TestWalkBoxesNestedAndSized(t *testing.T) {
	inner := box("ispe", []byte{0, 0, 0, 0, 0, 0, 0, 10, 0, 0, 0, 20})
	outer := box("ipco", inner)
	stream := append(box("ftyp", []byte("heic....")), outer...)

	var visited []string
	WalkBoxes(NewReader(stream), 0, int64(len(stream)), func(depth int, b Box) bool {
		visited = append(visited, b.Type)
		return b.Type == "ipco"
	})
	want := []string{"ftyp", "ipco", "ispe"}
	if !reflect.DeepEqual(visited, want) {
		t.Fatalf("visited = %v, want %v", visited, want)
	}
}

func TestWalkBoxesMalformedSizeTerminates(t *testing.T) {
	stream := box("moov", nil)
	binary.BigEndian.PutUint32(stream[0:4], 4) // size smaller than header

	count := 0
	WalkBoxes(NewReader(stream), 0, int64(len(stream)), func(depth int, b Box) bool {
		count++
		return false
	})
	if count != 0 {
		t.Fatalf("visited %d boxes from malformed stream, want 0", count)
	}
}

func TestWalkBoxesHuge64BitSizeTerminates(t *testing.T) {
	// A 64-bit box size near MaxInt64 would wrap pos+size negative if the
	// bound were checked by addition; the walk must stop at that box.
	stream := make([]byte, 16)
	binary.BigEndian.PutUint32(stream[0:4], 1) // size escapes to 64 bits
	copy(stream[4:8], "mdat")
	binary.BigEndian.PutUint64(stream[8:16], 1<<63-1)
	stream = append(stream, box("moov", nil)...)

	count := 0
	WalkBoxes(NewReader(stream), 0, int64(len(stream)), func(depth int, b Box) bool {
		count++
		return false
	})
	if count != 0 {
		t.Fatalf("visited %d boxes past an overflowing size, want 0", count)
	}
}

func TestWalkBoxesDepthCapped(t *testing.T) {
	// Nest deeper than the recursion cap; the walk must terminate and
	// never visit below the cap.
	payload := []byte{}
	for i := 0; i < 12; i++ {
		payload = box("nest", payload)
	}
	maxDepth := 0
	WalkBoxes(NewReader(payload), 0, int64(len(payload)), func(depth int, b Box) bool {
		if depth > maxDepth {
			maxDepth = depth
		}
		return true
	})
	if maxDepth > maxBoxDepth {
		t.Fatalf("visited depth %d beyond cap %d", maxDepth, maxBoxDepth)
	}
}

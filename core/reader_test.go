package core

import (
	"encoding/binary"
	"testing"
)

func TestReaderBoundedReads(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02, 0x03, 0x04})

	if v, ok := r.U16(0, binary.BigEndian); !ok || v != 0x0102 {
		t.Fatalf("U16(0) = %#x, %v; want 0x0102, true", v, ok)
	}
	if v, ok := r.U16(2, binary.LittleEndian); !ok || v != 0x0403 {
		t.Fatalf("U16(2) LE = %#x, %v; want 0x0403, true", v, ok)
	}
	if _, ok := r.U16(3, binary.BigEndian); ok {
		t.Fatal("U16 straddling the end must report absence")
	}
	if _, ok := r.U32(1, binary.BigEndian); ok {
		t.Fatal("U32 past the end must report absence")
	}
	if _, ok := r.U64(0, binary.BigEndian); ok {
		t.Fatal("U64 on a 4-byte buffer must report absence")
	}
	if _, ok := r.Slice(2, 3); ok {
		t.Fatal("Slice overrunning the buffer must report absence")
	}
	if _, ok := r.Slice(-1, 2); ok {
		t.Fatal("Slice with negative offset must report absence")
	}
	if b, ok := r.Slice(1, 2); !ok || b[0] != 0x02 || b[1] != 0x03 {
		t.Fatalf("Slice(1,2) = %v, %v", b, ok)
	}
}

func TestReaderRejectsOverflowingRanges(t *testing.T) {
	// Lengths and offsets near MaxInt64 must report absence rather than
	// wrapping the bounds check around and panicking.
	r := NewReader(make([]byte, 200))
	huge := int64(1<<63 - 1)

	if _, ok := r.Slice(100, huge); ok {
		t.Fatal("Slice with length near MaxInt64 must report absence")
	}
	if _, ok := r.Slice(huge, 8); ok {
		t.Fatal("Slice with offset near MaxInt64 must report absence")
	}
	if _, ok := r.U16(huge-1, binary.BigEndian); ok {
		t.Fatal("U16 at offset near MaxInt64 must report absence")
	}
	if _, ok := r.U64(huge-4, binary.BigEndian); ok {
		t.Fatal("U64 at offset near MaxInt64 must report absence")
	}
}

func TestCursorAdvancesAndStops(t *testing.T) {
	r := NewReader([]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE})
	c := r.NewCursor(0)

	if v, ok := c.U8(); !ok || v != 0xAA {
		t.Fatalf("U8 = %#x, %v", v, ok)
	}
	if v, ok := c.U16(binary.BigEndian); !ok || v != 0xBBCC {
		t.Fatalf("U16 = %#x, %v", v, ok)
	}
	if c.Pos() != 3 {
		t.Fatalf("Pos = %d, want 3", c.Pos())
	}
	if c.Remaining() != 2 {
		t.Fatalf("Remaining = %d, want 2", c.Remaining())
	}
	if _, ok := c.U32(binary.BigEndian); ok {
		t.Fatal("U32 with 2 bytes left must report absence")
	}
	// A failed read does not advance; the remaining bytes stay readable.
	if v, ok := c.U16(binary.BigEndian); !ok || v != 0xDDEE {
		t.Fatalf("U16 after failed U32 = %#x, %v", v, ok)
	}
}

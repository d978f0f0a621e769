package core

import "encoding/binary"

// Reader is a bounded, endian-aware read primitive over a byte buffer.
// Every accessor reports ok=false instead of panicking when the requested
// range exceeds the buffer, so truncated or hostile input degrades to
// "field not found" in every decoder built on top of it.
type Reader struct {
	buf []byte
}

// NewReader wraps a byte buffer.
func NewReader(buf []byte) *Reader { return &Reader{buf: buf} }

// Len returns the buffer length.
func (r *Reader) Len() int64 { return int64(len(r.buf)) }

// U8 reads one byte at off.
func (r *Reader) U8(off int64) (byte, bool) {
	if off < 0 || r.Len()-off < 1 {
		return 0, false
	}
	return r.buf[off], true
}

// U16 reads a 16-bit integer at off with the given byte order.
func (r *Reader) U16(off int64, bo binary.ByteOrder) (uint16, bool) {
	if off < 0 || r.Len()-off < 2 {
		return 0, false
	}
	return bo.Uint16(r.buf[off : off+2]), true
}

// U32 reads a 32-bit integer at off with the given byte order.
func (r *Reader) U32(off int64, bo binary.ByteOrder) (uint32, bool) {
	if off < 0 || r.Len()-off < 4 {
		return 0, false
	}
	return bo.Uint32(r.buf[off : off+4]), true
}

// U64 reads a 64-bit integer at off with the given byte order.
func (r *Reader) U64(off int64, bo binary.ByteOrder) (uint64, bool) {
	if off < 0 || r.Len()-off < 8 {
		return 0, false
	}
	return bo.Uint64(r.buf[off : off+8]), true
}

// Slice returns n bytes starting at off. The slice aliases the underlying
// buffer; callers must not mutate it. The bound is checked by subtraction
// so that lengths near MaxInt64 cannot wrap the comparison around.
func (r *Reader) Slice(off, n int64) ([]byte, bool) {
	if off < 0 || n < 0 || n > r.Len()-off {
		return nil, false
	}
	return r.buf[off : off+n], true
}

// Cursor is a thin sequential wrapper over a Reader that advances its
// position after each bounded read. Reads past the end leave the position
// unchanged and report ok=false.
type Cursor struct {
	r   *Reader
	pos int64
}

// NewCursor starts a cursor at off.
func (r *Reader) NewCursor(off int64) *Cursor { return &Cursor{r: r, pos: off} }

// Pos returns the current position.
func (c *Cursor) Pos() int64 { return c.pos }

// Seek moves the cursor to an absolute offset.
func (c *Cursor) Seek(off int64) { c.pos = off }

// Skip advances the cursor by n bytes.
func (c *Cursor) Skip(n int64) { c.pos += n }

// Remaining returns the bytes left between the position and the buffer end.
func (c *Cursor) Remaining() int64 {
	if c.pos > c.r.Len() {
		return 0
	}
	return c.r.Len() - c.pos
}

// U8 reads one byte and advances.
func (c *Cursor) U8() (byte, bool) {
	v, ok := c.r.U8(c.pos)
	if ok {
		c.pos++
	}
	return v, ok
}

// U16 reads a 16-bit integer and advances.
func (c *Cursor) U16(bo binary.ByteOrder) (uint16, bool) {
	v, ok := c.r.U16(c.pos, bo)
	if ok {
		c.pos += 2
	}
	return v, ok
}

// U32 reads a 32-bit integer and advances.
func (c *Cursor) U32(bo binary.ByteOrder) (uint32, bool) {
	v, ok := c.r.U32(c.pos, bo)
	if ok {
		c.pos += 4
	}
	return v, ok
}

// U64 reads a 64-bit integer and advances.
func (c *Cursor) U64(bo binary.ByteOrder) (uint64, bool) {
	v, ok := c.r.U64(c.pos, bo)
	if ok {
		c.pos += 8
	}
	return v, ok
}

// Slice reads n bytes and advances.
func (c *Cursor) Slice(n int64) ([]byte, bool) {
	b, ok := c.r.Slice(c.pos, n)
	if ok {
		c.pos += n
	}
	return b, ok
}

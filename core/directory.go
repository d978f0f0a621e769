package core

import "encoding/binary"

// Region locates a tag payload inside a byte buffer.
type Region struct {
	Offset int64
	Length int64
}

// Directory maps a signature to the region holding its payload. ICC tag
// tables, TIFF/EXIF IFDs, and ISOBMFF box trees all resolve through this
// one abstraction. When a signature repeats, the first occurrence wins;
// later duplicates are ignored for compatibility with readers that behave
// the same way.
type Directory struct {
	r       *Reader
	order   []string
	regions map[string]Region
}

// RecordLayout parameterizes the directory walk with the record size and a
// parser that extracts (signature, region) from one raw record.
type RecordLayout struct {
	RecordSize int64
	Parse      func(rec []byte) (sig string, reg Region, ok bool)
}

// ReadDirectory iterates count fixed-size records starting at start,
// building the signature map. It stops early on truncation rather than
// failing the whole decode.
func ReadDirectory(r *Reader, start int64, count uint32, layout RecordLayout) *Directory {
	d := &Directory{r: r, regions: make(map[string]Region)}
	for i := uint32(0); i < count; i++ {
		rec, ok := r.Slice(start+int64(i)*layout.RecordSize, layout.RecordSize)
		if !ok {
			break
		}
		sig, reg, ok := layout.Parse(rec)
		if !ok {
			continue
		}
		d.add(sig, reg)
	}
	return d
}

func (d *Directory) add(sig string, reg Region) {
	if _, dup := d.regions[sig]; dup {
		return
	}
	d.regions[sig] = reg
	d.order = append(d.order, sig)
}

// Signatures returns the signatures in record order (first occurrences).
func (d *Directory) Signatures() []string { return d.order }

// Lookup returns the region for a signature.
func (d *Directory) Lookup(sig string) (Region, bool) {
	reg, ok := d.regions[sig]
	return reg, ok
}

// Bytes resolves a signature to its payload, bounds-validated against the
// underlying buffer.
func (d *Directory) Bytes(sig string) ([]byte, bool) {
	reg, ok := d.regions[sig]
	if !ok {
		return nil, false
	}
	return d.r.Slice(reg.Offset, reg.Length)
}

// Len returns the number of distinct signatures.
func (d *Directory) Len() int { return len(d.order) }

// Box is one length-prefixed, typed record of an ISOBMFF tree.
type Box struct {
	Type string
	// Offset and Length bound the box payload (header excluded).
	Payload Region
}

// maxBoxDepth caps recursion into nested box containers.
const maxBoxDepth = 8

// WalkBoxes iterates the boxes in [start,end) and calls fn for each.
// Returning true from fn recurses into the box payload as a child box
// sequence. Malformed sizes terminate the walk instead of failing it.
func WalkBoxes(r *Reader, start, end int64, fn func(depth int, b Box) bool) {
	walkBoxes(r, start, end, 0, fn)
}

func walkBoxes(r *Reader, start, end int64, depth int, fn func(depth int, b Box) bool) {
	if depth > maxBoxDepth {
		return
	}
	if end > r.Len() {
		end = r.Len()
	}
	pos := start
	for pos+8 <= end {
		size32, ok := r.U32(pos, binary.BigEndian)
		if !ok {
			return
		}
		typBytes, ok := r.Slice(pos+4, 4)
		if !ok {
			return
		}
		size := int64(size32)
		headerLen := int64(8)
		switch size32 {
		case 0:
			// Box extends to the end of the enclosing space.
			size = end - pos
		case 1:
			size64, ok := r.U64(pos+8, binary.BigEndian)
			if !ok {
				return
			}
			size = int64(size64)
			headerLen = 16
		}
		// Checked by subtraction: a hostile 64-bit size near MaxInt64
		// would wrap pos+size negative and slip past an addition check.
		if size < headerLen || size > end-pos {
			return
		}
		b := Box{
			Type:    string(typBytes),
			Payload: Region{Offset: pos + headerLen, Length: size - headerLen},
		}
		if fn(depth, b) {
			walkBoxes(r, b.Payload.Offset, b.Payload.Offset+b.Payload.Length, depth+1, fn)
		}
		pos += size
	}
}

package image

import (
	"encoding/binary"
	"testing"
)

func heifBox(typ string, payload []byte) []byte {
	b := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint32(b[0:4], uint32(8+len(payload)))
	copy(b[4:8], typ)
	copy(b[8:], payload)
	return b
}

func heifInfe(id uint16, typ string) []byte {
	p := make([]byte, 12)
	p[0] = 2 // version
	binary.BigEndian.PutUint16(p[4:6], id)
	copy(p[8:12], typ)
	return heifBox("infe", p)
}

// buildHEIC assembles ftyp + meta(iinf, iprp, iloc) + mdat, with the iloc
// extent pointing at the Exif item inside mdat.
func buildHEIC(t *testing.T, exifItem []byte) []byte {
	t.Helper()
	be := binary.BigEndian

	ftypPayload := []byte("heic\x00\x00\x00\x00mif1heic")
	ftyp := heifBox("ftyp", ftypPayload)

	buildMeta := func(exifOffset uint32) []byte {
		var iinfPayload []byte
		iinfPayload = append(iinfPayload, 0, 0, 0, 0) // version/flags
		iinfPayload = append(iinfPayload, 0, 2)       // entry count
		iinfPayload = append(iinfPayload, heifInfe(1, "hvc1")...)
		iinfPayload = append(iinfPayload, heifInfe(2, "Exif")...)
		iinf := heifBox("iinf", iinfPayload)

		ispePayload := make([]byte, 12)
		be.PutUint32(ispePayload[4:8], 4032)
		be.PutUint32(ispePayload[8:12], 3024)
		ipco := heifBox("ipco", append(heifBox("ispe", ispePayload), heifBox("irot", []byte{1})...))
		iprp := heifBox("iprp", ipco)

		var ilocPayload []byte
		ilocPayload = append(ilocPayload, 0, 0, 0, 0) // version 0, flags
		ilocPayload = append(ilocPayload, 0x44, 0x00) // offset/length 4 bytes, no base offset
		ilocPayload = append(ilocPayload, 0, 1)       // item count
		ilocPayload = append(ilocPayload, 0, 2)       // item id 2
		ilocPayload = append(ilocPayload, 0, 0)       // data reference index
		ilocPayload = append(ilocPayload, 0, 1)       // extent count
		var off, length [4]byte
		be.PutUint32(off[:], exifOffset)
		be.PutUint32(length[:], uint32(len(exifItem)))
		ilocPayload = append(ilocPayload, off[:]...)
		ilocPayload = append(ilocPayload, length[:]...)
		iloc := heifBox("iloc", ilocPayload)

		metaPayload := append([]byte{0, 0, 0, 0}, iinf...)
		metaPayload = append(metaPayload, iprp...)
		metaPayload = append(metaPayload, iloc...)
		return heifBox("meta", metaPayload)
	}

	metaLen := len(buildMeta(0))
	exifOffset := uint32(len(ftyp) + metaLen + 8)
	meta := buildMeta(exifOffset)

	out := append([]byte{}, ftyp...)
	out = append(out, meta...)
	out = append(out, heifBox("mdat", exifItem)...)
	return out
}

func TestDecodeHEIFStructure(t *testing.T) {
	// Exif item: 4-byte tiff-header offset prefix, then an empty TIFF.
	exifItem := append([]byte{0, 0, 0, 0}, 'I', 'I', 42, 0, 8, 0, 0, 0, 0, 0, 0, 0)
	s := DecodeHEIF(buildHEIC(t, exifItem))

	got := map[string]string{}
	for _, e := range s.Entries {
		got[e.Label] = e.Value
	}
	if got["MajorBrand"] != "heic" {
		t.Fatalf("MajorBrand = %q", got["MajorBrand"])
	}
	if got["CompatibleBrands"] != "mif1, heic" {
		t.Fatalf("CompatibleBrands = %q", got["CompatibleBrands"])
	}
	if got["ItemCount"] != "2" {
		t.Fatalf("ItemCount = %q", got["ItemCount"])
	}
	if got["Items(Exif)"] != "1" {
		t.Fatalf("Items(Exif) = %q", got["Items(Exif)"])
	}
	if got["Dimensions"] != "4032 x 3024" {
		t.Fatalf("Dimensions = %q", got["Dimensions"])
	}
	if got["Rotation"] != "90°" {
		t.Fatalf("Rotation = %q", got["Rotation"])
	}
}

func TestDecodeHEIFNoFtyp(t *testing.T) {
	s := DecodeHEIF(heifBox("mdat", []byte("xx")))
	if s.Notice == nil || s.Notice.Message != "not a valid ISOBMFF container" {
		t.Fatalf("notice = %+v", s.Notice)
	}
}

func TestExifItemPayloadSkipsPrefix(t *testing.T) {
	p := append([]byte{0, 0, 0, 6}, "ignoreMM\x00*"...)
	if got := string(exifItemPayload(p)); got != "MM\x00*" {
		t.Fatalf("payload = %q", got)
	}
	// Out-of-range prefix falls back to skipping just the length field.
	p = []byte{0, 0, 0, 99, 'a', 'b'}
	if got := string(exifItemPayload(p)); got != "ab" {
		t.Fatalf("payload = %q", got)
	}
}

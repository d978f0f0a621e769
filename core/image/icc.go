package image

import (
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/unicode"

	"github.com/jvillegas/metasweep/core"
)

// iccHeaderLen is the fixed ICC profile header size; the tag table
// follows immediately after.
const iccHeaderLen = 128

var iccColorSpaces = map[string]string{
	"XYZ ": "XYZ", "Lab ": "Lab", "Luv ": "Luv", "YCbr": "YCbCr",
	"RGB ": "RGB", "GRAY": "Grayscale", "HSV ": "HSV", "HLS ": "HLS",
	"CMYK": "CMYK", "CMY ": "CMY",
}

var iccDeviceClasses = map[string]string{
	"scnr": "Input (scanner/camera)",
	"mntr": "Display (monitor)",
	"prtr": "Output (printer)",
	"link": "DeviceLink",
	"spac": "ColorSpace conversion",
	"abst": "Abstract",
	"nmcl": "Named color",
}

var iccRenderingIntents = map[uint32]string{
	0: "Perceptual",
	1: "Media-relative colorimetric",
	2: "Saturation",
	3: "ICC-absolute colorimetric",
}

// decodeICCProfile reads the 128-byte header, then resolves the tag table
// through the generic directory and decodes the text-bearing tag types.
func decodeICCProfile(profile []byte, s *core.ReportSection) {
	r := core.NewReader(profile)
	if r.Len() < iccHeaderLen {
		return
	}
	be := binary.BigEndian

	if cmm, ok := r.Slice(4, 4); ok {
		if t := fourCC(cmm); t != "" {
			s.Add("ICC CMMType", t, core.LevelInfo)
		}
	}
	if ver, ok := r.U32(8, be); ok {
		s.Add("ICC Version", fmt.Sprintf("%d.%d", ver>>24, (ver>>20)&0xF), core.LevelInfo)
	}
	if class, ok := r.Slice(12, 4); ok {
		if name, found := iccDeviceClasses[string(class)]; found {
			s.Add("ICC DeviceClass", name, core.LevelInfo)
		}
	}
	if cs, ok := r.Slice(16, 4); ok {
		if name, found := iccColorSpaces[string(cs)]; found {
			s.Add("ICC ColorSpace", name, core.LevelInfo)
		}
	}
	if intent, ok := r.U32(64, be); ok {
		if name, found := iccRenderingIntents[intent]; found {
			s.Add("ICC RenderingIntent", name, core.LevelInfo)
		}
	}
	// XYZ illuminant: three s15Fixed16 values at offset 68.
	if x, ok := r.U32(68, be); ok {
		if y, ok2 := r.U32(72, be); ok2 {
			if z, ok3 := r.U32(76, be); ok3 {
				s.Add("ICC Illuminant", fmt.Sprintf("X=%.4f Y=%.4f Z=%.4f",
					s15Fixed16(x), s15Fixed16(y), s15Fixed16(z)), core.LevelInfo)
			}
		}
	}

	count, ok := r.U32(iccHeaderLen, be)
	if !ok || count > 1024 {
		return
	}
	dir := core.ReadDirectory(r, iccHeaderLen+4, count, core.RecordLayout{
		RecordSize: 12,
		Parse: func(rec []byte) (string, core.Region, bool) {
			return string(rec[0:4]), core.Region{
				Offset: int64(be.Uint32(rec[4:8])),
				Length: int64(be.Uint32(rec[8:12])),
			}, true
		},
	})

	s.Add("ICC TagCount", fmt.Sprintf("%d", dir.Len()), core.LevelInfo)
	if desc, ok := dir.Bytes("desc"); ok {
		if v := iccText(desc); v != "" {
			s.Add("ICC Description", v, core.LevelInfo)
		}
	}
	if cprt, ok := dir.Bytes("cprt"); ok {
		if v := iccText(cprt); v != "" {
			s.Add("ICC Copyright", v, core.LevelInfo)
		}
	}
	if dmnd, ok := dir.Bytes("dmnd"); ok {
		if v := iccText(dmnd); v != "" {
			s.AddRisk("ICC DeviceManufacturerDesc", v)
		}
	}
	if dmdd, ok := dir.Bytes("dmdd"); ok {
		if v := iccText(dmdd); v != "" {
			s.AddRisk("ICC DeviceModelDesc", v)
		}
	}
	for _, sig := range []string{"rTRC", "gTRC", "bTRC", "kTRC"} {
		if curv, ok := dir.Bytes(sig); ok {
			if g, found := iccGamma(curv); found {
				s.Add("ICC Gamma ("+sig+")", fmt.Sprintf("%.2f", g), core.LevelInfo)
				break
			}
		}
	}
}

// iccText decodes a desc/text/mluc tag payload to a string.
func iccText(tag []byte) string {
	if len(tag) < 8 {
		return ""
	}
	be := binary.BigEndian
	switch string(tag[0:4]) {
	case "desc":
		// ASCII count at offset 8, string at 12.
		if len(tag) < 12 {
			return ""
		}
		n := int(be.Uint32(tag[8:12]))
		if n <= 0 || 12+n > len(tag) {
			return ""
		}
		return strings.TrimRight(string(tag[12:12+n]), "\x00")
	case "text":
		return strings.TrimRight(string(tag[8:]), "\x00")
	case "mluc":
		return iccMLUC(tag)
	}
	return ""
}

// iccMLUC decodes the first record of a multi-locale Unicode tag
// (UTF-16BE payload, offsets relative to the tag start).
func iccMLUC(tag []byte) string {
	be := binary.BigEndian
	if len(tag) < 16 {
		return ""
	}
	count := int(be.Uint32(tag[8:12]))
	recSize := int(be.Uint32(tag[12:16]))
	if count <= 0 || recSize < 12 {
		return ""
	}
	rec := tag[16:]
	if len(rec) < recSize {
		return ""
	}
	strLen := int(be.Uint32(rec[4:8]))
	strOff := int(be.Uint32(rec[8:12]))
	if strOff < 0 || strLen < 0 || strOff+strLen > len(tag) {
		return ""
	}
	dec := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
	out, err := dec.Bytes(tag[strOff : strOff+strLen])
	if err != nil {
		return ""
	}
	return strings.TrimRight(string(out), "\x00")
}

// iccGamma interprets a curv tag with a single 16-bit entry as a gamma
// value encoded as raw/256.
func iccGamma(tag []byte) (float64, bool) {
	be := binary.BigEndian
	if len(tag) < 14 || string(tag[0:4]) != "curv" {
		return 0, false
	}
	if be.Uint32(tag[8:12]) != 1 {
		return 0, false
	}
	return float64(be.Uint16(tag[12:14])) / 256.0, true
}

func s15Fixed16(v uint32) float64 {
	return float64(int32(v)) / 65536.0
}

// fourCC renders a 4-byte signature, empty when unprintable or blank.
func fourCC(b []byte) string {
	s := strings.TrimSpace(strings.TrimRight(string(b), "\x00"))
	for _, c := range s {
		if c < 0x20 || c > 0x7E {
			return ""
		}
	}
	return s
}

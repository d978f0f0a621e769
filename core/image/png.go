package image

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"strings"

	"github.com/klauspost/compress/zlib"

	"github.com/jvillegas/metasweep/core"
	"github.com/jvillegas/metasweep/core/xmlprop"
)

var pngSignature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

type pngChunk struct {
	typ  string
	data []byte
}

// pngSensitiveKeywords flags textual chunk keywords that identify a person
// or tool. Fixed table, compared case-insensitively.
var pngSensitiveKeywords = map[string]bool{
	"author":        true,
	"artist":        true,
	"copyright":     true,
	"creator":       true,
	"source":        true,
	"software":      true,
	"comment":       true,
	"creation time": true,
	"contact":       true,
	"email":         true,
}

// readPNGChunks walks the raw chunk stream, stopping at IEND or on
// truncation. Everything parsed so far is returned either way.
func readPNGChunks(data []byte) []pngChunk {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil
	}
	r := core.NewReader(data)
	c := r.NewCursor(int64(len(pngSignature)))
	var chunks []pngChunk
	for {
		length, ok := c.U32(binary.BigEndian)
		if !ok {
			break
		}
		typBytes, ok := c.Slice(4)
		if !ok {
			break
		}
		payload, ok := c.Slice(int64(length))
		if !ok {
			break
		}
		c.Skip(4) // CRC
		typ := string(typBytes)
		chunks = append(chunks, pngChunk{typ: typ, data: payload})
		if typ == "IEND" {
			break
		}
	}
	return chunks
}

func writePNGChunks(chunks []pngChunk) []byte {
	var buf bytes.Buffer
	buf.Write(pngSignature)
	for _, c := range chunks {
		var hdr [4]byte
		binary.BigEndian.PutUint32(hdr[:], uint32(len(c.data)))
		buf.Write(hdr[:])
		buf.WriteString(c.typ)
		buf.Write(c.data)
		crc := crc32.ChecksumIEEE(append([]byte(c.typ), c.data...))
		binary.BigEndian.PutUint32(hdr[:], crc)
		buf.Write(hdr[:])
	}
	return buf.Bytes()
}

// DecodePNG re-walks the raw chunk stream to recover ordering, per-type
// counts, and the payloads (tIME, pHYs, cHRM, iCCP) that generic chunk
// libraries do not expose.
func DecodePNG(data []byte) *core.ReportSection {
	s := core.NewSection("PNG")
	chunks := readPNGChunks(data)
	if chunks == nil {
		s.SetNotice("not a valid PNG stream", core.LevelError)
		return s
	}

	counts := map[string]int{}
	var order []string
	textIndex := 0
	for _, c := range chunks {
		if counts[c.typ] == 0 {
			order = append(order, c.typ)
		}
		counts[c.typ]++

		switch c.typ {
		case "IHDR":
			decodePNGHeader(c.data, s)
		case "tEXt":
			textIndex++
			key, val := splitPNGText(c.data)
			addPNGText(s, key, val, textIndex)
		case "iTXt":
			textIndex++
			key, val := splitPNGIntlText(c.data)
			if strings.EqualFold(key, "XML:com.adobe.xmp") {
				decodePNGXMP([]byte(val), s)
			} else {
				addPNGText(s, key, val, textIndex)
			}
		case "zTXt":
			textIndex++
			key, val := splitPNGCompressedText(c.data)
			addPNGText(s, key, val, textIndex)
		case "tIME":
			if len(c.data) == 7 {
				year := binary.BigEndian.Uint16(c.data[0:2])
				s.AddRisk("LastModified", fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d",
					year, c.data[2], c.data[3], c.data[4], c.data[5], c.data[6]))
			}
		case "pHYs":
			if len(c.data) == 9 {
				x := binary.BigEndian.Uint32(c.data[0:4])
				y := binary.BigEndian.Uint32(c.data[4:8])
				unit := "unknown unit"
				if c.data[8] == 1 {
					unit = "per meter"
				}
				s.Add("PixelDensity", fmt.Sprintf("%d x %d %s", x, y, unit), core.LevelInfo)
			}
		case "cHRM":
			if len(c.data) == 32 {
				wx := binary.BigEndian.Uint32(c.data[0:4])
				wy := binary.BigEndian.Uint32(c.data[4:8])
				s.Add("WhitePoint", fmt.Sprintf("%.4f, %.4f",
					float64(wx)/100000, float64(wy)/100000), core.LevelInfo)
			}
		case "iCCP":
			name, profile := splitPNGICCP(c.data)
			if name != "" {
				s.Add("ICCProfileName", name, core.LevelInfo)
			}
			if profile != nil {
				decodeICCProfile(profile, s)
			}
		case "eXIf":
			decodeEXIF(c.data, s)
		case "gAMA":
			if len(c.data) == 4 {
				g := binary.BigEndian.Uint32(c.data)
				s.Add("Gamma", fmt.Sprintf("%.4f", float64(g)/100000), core.LevelInfo)
			}
		}
	}

	s.Add("ChunkOrder", strings.Join(order, " "), core.LevelMuted)
	for _, typ := range []string{"IDAT", "tEXt", "iTXt", "zTXt"} {
		if n := counts[typ]; n > 1 {
			s.Add(typ+"Count", fmt.Sprintf("%d", n), core.LevelMuted)
		}
	}

	if len(s.Risks()) > 0 {
		s.SetNotice("sensitive metadata found", core.LevelWarning)
	} else if textIndex == 0 && counts["eXIf"] == 0 {
		s.SetNotice("no textual metadata found", core.LevelSuccess)
	}
	return s
}

func decodePNGHeader(d []byte, s *core.ReportSection) {
	if len(d) < 13 {
		return
	}
	w := binary.BigEndian.Uint32(d[0:4])
	h := binary.BigEndian.Uint32(d[4:8])
	s.Add("Dimensions", fmt.Sprintf("%d x %d", w, h), core.LevelInfo)
	s.Add("BitDepth", fmt.Sprintf("%d", d[8]), core.LevelInfo)
	interlace := "none"
	if d[12] == 1 {
		interlace = "Adam7"
	}
	s.Add("Interlace", interlace, core.LevelMuted)
}

// addPNGText maps the textual keyword to a semantic label; an authorship
// keyword becomes a creator risk entry.
func addPNGText(s *core.ReportSection, key, val string, index int) {
	if key == "" {
		return
	}
	label := key
	if val == "" {
		return
	}
	if pngSensitiveKeywords[strings.ToLower(key)] {
		s.AddRisk(label, val)
	} else {
		s.Add(label, val, core.LevelInfo)
	}
}

func decodePNGXMP(packet []byte, s *core.ReportSection) {
	xmlprop.DecodeXMP(packet, s)
}

// splitPNGText splits a tEXt payload: keyword\0value.
func splitPNGText(d []byte) (string, string) {
	null := bytes.IndexByte(d, 0)
	if null <= 0 {
		return "", ""
	}
	key := string(d[:null])
	val := ""
	if null+1 < len(d) {
		val = string(d[null+1:])
	}
	return key, val
}

// splitPNGIntlText splits an iTXt payload:
// keyword\0compressionFlag\0compressionMethod\0language\0translated\0text.
func splitPNGIntlText(d []byte) (string, string) {
	null := bytes.IndexByte(d, 0)
	if null <= 0 || null+3 > len(d) {
		return "", ""
	}
	key := string(d[:null])
	compressed := d[null+1] == 1
	rest := d[null+3:]
	for i := 0; i < 2; i++ {
		n := bytes.IndexByte(rest, 0)
		if n < 0 {
			return key, ""
		}
		rest = rest[n+1:]
	}
	if compressed {
		return key, string(inflateZlib(rest))
	}
	return key, string(rest)
}

// splitPNGCompressedText splits a zTXt payload: keyword\0method\0zlib-data.
func splitPNGCompressedText(d []byte) (string, string) {
	null := bytes.IndexByte(d, 0)
	if null <= 0 || null+2 > len(d) {
		return "", ""
	}
	return string(d[:null]), string(inflateZlib(d[null+2:]))
}

// splitPNGICCP splits an iCCP payload: name\0method\0zlib-profile.
func splitPNGICCP(d []byte) (string, []byte) {
	null := bytes.IndexByte(d, 0)
	if null <= 0 || null+2 > len(d) {
		return "", nil
	}
	return string(d[:null]), inflateZlib(d[null+2:])
}

// inflateZlib decompresses a zlib stream, capping output at 8 MiB.
func inflateZlib(d []byte) []byte {
	zr, err := zlib.NewReader(bytes.NewReader(d))
	if err != nil {
		return nil
	}
	defer zr.Close()
	out, err := io.ReadAll(io.LimitReader(zr, 8<<20))
	if err != nil && len(out) == 0 {
		return nil
	}
	return out
}

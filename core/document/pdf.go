package document

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/klauspost/compress/zlib"

	"github.com/jvillegas/metasweep/core"
	"github.com/jvillegas/metasweep/core/xmlprop"
)

// pdfInfoFields are the classic Info dictionary keys; all of them identify
// people, tools or timestamps.
var pdfInfoFields = []string{
	"Title", "Author", "Subject", "Keywords",
	"Creator", "Producer", "CreationDate", "ModDate",
}

var (
	pdfObjRe     = regexp.MustCompile(`(?m)^\s*(\d+)\s+(\d+)\s+obj\b`)
	pdfInfoRefRe = regexp.MustCompile(`/Info\s+(\d+)\s+(\d+)\s+R`)
	pdfRootRefRe = regexp.MustCompile(`/Root\s+(\d+)\s+(\d+)\s+R`)
	pdfMetaRefRe = regexp.MustCompile(`/Metadata\s+(\d+)\s+(\d+)\s+R`)
	pdfPageRe    = regexp.MustCompile(`/Type\s*/Page[\s/>\]]`)
)

// DecodePDF reads the trailer's Info dictionary (dereferencing indirect
// values), the catalog's XMP Metadata stream, page count and encryption
// flag. Streams other than Metadata are never touched.
func DecodePDF(data []byte) *core.ReportSection {
	s := core.NewSection("PDF")
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		s.SetNotice("not a valid PDF", core.LevelError)
		return s
	}
	if eol := bytes.IndexAny(data[:min(32, len(data))], "\r\n"); eol > 5 {
		s.Add("Version", string(data[5:eol]), core.LevelInfo)
	}

	objects := indexPDFObjects(data)

	if m := pdfInfoRefRe.FindSubmatch(data); m != nil {
		num, _ := strconv.Atoi(string(m[1]))
		if body := objects[num]; body != nil {
			decodePDFInfo(body, objects, s)
		}
	}

	decodedXMP := false
	if m := pdfRootRefRe.FindSubmatch(data); m != nil {
		num, _ := strconv.Atoi(string(m[1]))
		if catalog := objects[num]; catalog != nil {
			if mm := pdfMetaRefRe.FindSubmatch(catalog); mm != nil {
				metaNum, _ := strconv.Atoi(string(mm[1]))
				if stream := pdfStreamPayload(objects[metaNum]); stream != nil {
					decodedXMP = xmlprop.DecodeXMP(stream, s)
				}
			}
		}
	}
	if !decodedXMP {
		// Fallback: scan the head of the file for a bare packet.
		if packet := xmlprop.ExtractXMPPacket(data); packet != nil {
			xmlprop.DecodeXMP(packet, s)
		}
	}

	if n := len(pdfPageRe.FindAllIndex(data, -1)); n > 0 {
		s.Add("Pages", fmt.Sprintf("%d", n), core.LevelInfo)
	}
	if bytes.Contains(data, []byte("/Encrypt")) {
		s.Add("Encrypted", "yes", core.LevelWarning)
	}

	if len(s.Risks()) > 0 {
		s.SetNotice("identifying metadata found", core.LevelWarning)
	} else {
		s.SetNotice("no identifying metadata found", core.LevelSuccess)
	}
	return s
}

// indexPDFObjects maps object numbers to their body bytes (obj..endobj).
// The last definition of a number wins, matching incremental updates.
func indexPDFObjects(data []byte) map[int][]byte {
	objects := map[int][]byte{}
	for _, loc := range pdfObjRe.FindAllSubmatchIndex(data, -1) {
		num, err := strconv.Atoi(string(data[loc[2]:loc[3]]))
		if err != nil {
			continue
		}
		bodyStart := loc[1]
		end := bytes.Index(data[bodyStart:], []byte("endobj"))
		if end < 0 {
			continue
		}
		objects[num] = data[bodyStart : bodyStart+end]
	}
	return objects
}

// decodePDFInfo extracts the classic keys from an Info dictionary body,
// following one level of indirect reference for string values.
func decodePDFInfo(body []byte, objects map[int][]byte, s *core.ReportSection) {
	for _, key := range pdfInfoFields {
		val := pdfValueForKey(body, key)
		if val == "" {
			// The value may be an indirect reference to a string object.
			refRe := regexp.MustCompile(`/` + key + `\s+(\d+)\s+(\d+)\s+R`)
			if m := refRe.FindSubmatch(body); m != nil {
				num, _ := strconv.Atoi(string(m[1]))
				if ref := objects[num]; ref != nil {
					val = pdfFirstString(ref)
				}
			}
		}
		if val == "" {
			continue
		}
		s.AddRisk(key, val)
	}
}

// pdfValueForKey reads a literal or hex string value directly following
// /Key in a dictionary body.
func pdfValueForKey(body []byte, key string) string {
	litRe := regexp.MustCompile(`/` + key + `\s*\(`)
	if m := litRe.FindIndex(body); m != nil {
		return decodePDFLiteral(body[m[1]-1:])
	}
	hexRe := regexp.MustCompile(`/` + key + `\s*<([0-9a-fA-F\s]*)>`)
	if m := hexRe.FindSubmatch(body); m != nil {
		return decodePDFHex(string(m[1]))
	}
	return ""
}

func pdfFirstString(body []byte) string {
	if i := bytes.IndexByte(body, '('); i >= 0 {
		return decodePDFLiteral(body[i:])
	}
	if m := regexp.MustCompile(`<([0-9a-fA-F\s]+)>`).FindSubmatch(body); m != nil {
		return decodePDFHex(string(m[1]))
	}
	return ""
}

// decodePDFLiteral parses a literal string starting at '(' with balanced
// parentheses and backslash escapes.
func decodePDFLiteral(b []byte) string {
	if len(b) == 0 || b[0] != '(' {
		return ""
	}
	var out []byte
	depth := 1
	for i := 1; i < len(b); i++ {
		c := b[i]
		switch c {
		case '\\':
			if i+1 >= len(b) {
				return printablePDF(out)
			}
			i++
			switch b[i] {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			default:
				out = append(out, b[i])
			}
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				return printablePDF(out)
			}
			out = append(out, c)
		default:
			out = append(out, c)
		}
	}
	return printablePDF(out)
}

func decodePDFHex(h string) string {
	h = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
			return -1
		}
		return r
	}, h)
	if len(h)%2 != 0 {
		h += "0"
	}
	raw := make([]byte, 0, len(h)/2)
	for i := 0; i+2 <= len(h); i += 2 {
		v, err := strconv.ParseUint(h[i:i+2], 16, 8)
		if err != nil {
			return ""
		}
		raw = append(raw, byte(v))
	}
	return printablePDF(raw)
}

// printablePDF renders text-string bytes, decoding the UTF-16BE form when
// the BOM is present.
func printablePDF(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		u := make([]uint16, 0, (len(b)-2)/2)
		for i := 2; i+2 <= len(b); i += 2 {
			u = append(u, uint16(b[i])<<8|uint16(b[i+1]))
		}
		return strings.TrimSpace(string(utf16.Decode(u)))
	}
	return strings.TrimSpace(string(b))
}

// pdfStreamPayload returns the decoded bytes of a stream object,
// inflating FlateDecode content.
func pdfStreamPayload(body []byte) []byte {
	if body == nil {
		return nil
	}
	start := bytes.Index(body, []byte("stream"))
	if start < 0 {
		return nil
	}
	start += len("stream")
	if start < len(body) && body[start] == '\r' {
		start++
	}
	if start < len(body) && body[start] == '\n' {
		start++
	}
	end := bytes.LastIndex(body, []byte("endstream"))
	if end < start {
		return nil
	}
	payload := body[start:end]
	if bytes.Contains(body[:start], []byte("/FlateDecode")) {
		zr, err := zlib.NewReader(bytes.NewReader(payload))
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
	return payload
}

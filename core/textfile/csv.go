// Package textfile inspects plain-text and CSV files: encoding and BOM
// detection, line-ending tallies, delimiter and header heuristics, and
// per-column type inference.
package textfile

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"

	"github.com/jvillegas/metasweep/core"
)

// Encoding is the detected text encoding of a file.
type Encoding string

const (
	EncUTF8    Encoding = "UTF-8"
	EncUTF8BOM Encoding = "UTF-8 with BOM"
	EncUTF16LE Encoding = "UTF-16 LE"
	EncUTF16BE Encoding = "UTF-16 BE"
	EncUTF32LE Encoding = "UTF-32 LE"
	EncUTF32BE Encoding = "UTF-32 BE"
)

// DetectEncoding sniffs the byte-order mark. UTF-32 marks are checked
// before UTF-16: the UTF-32 LE BOM starts with the UTF-16 LE BOM bytes.
func DetectEncoding(data []byte) Encoding {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE, 0x00, 0x00}):
		return EncUTF32LE
	case bytes.HasPrefix(data, []byte{0x00, 0x00, 0xFE, 0xFF}):
		return EncUTF32BE
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		return EncUTF16LE
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		return EncUTF16BE
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		return EncUTF8BOM
	}
	return EncUTF8
}

// decodeToUTF8 converts the raw bytes to UTF-8 according to the detected
// encoding, consuming the BOM.
func decodeToUTF8(data []byte, enc Encoding) []byte {
	switch enc {
	case EncUTF8BOM:
		return data[3:]
	case EncUTF16LE:
		out, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder().Bytes(data)
		if err != nil {
			return nil
		}
		return out
	case EncUTF16BE:
		out, err := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder().Bytes(data)
		if err != nil {
			return nil
		}
		return out
	case EncUTF32LE:
		out, err := utf32.UTF32(utf32.LittleEndian, utf32.UseBOM).NewDecoder().Bytes(data)
		if err != nil {
			return nil
		}
		return out
	case EncUTF32BE:
		out, err := utf32.UTF32(utf32.BigEndian, utf32.UseBOM).NewDecoder().Bytes(data)
		if err != nil {
			return nil
		}
		return out
	}
	return data
}

// csvDelimiters is the candidate separator set, highest frequency wins.
var csvDelimiters = []rune{',', ';', '\t', '|'}

// ColumnType is the inferred type of one CSV column.
type ColumnType string

const (
	TypeString ColumnType = "String"
	TypeFloat  ColumnType = "Float"
	TypeInt    ColumnType = "Int"
	TypeBool   ColumnType = "Bool"
	TypeDate   ColumnType = "Date"
	TypeEmpty  ColumnType = "Empty"
)

// DecodeText reports encoding and line endings, plus delimiter, header
// presence and per-column types when the content looks delimited.
func DecodeText(data []byte, format core.FormatID) *core.ReportSection {
	title := "Text"
	if format == core.FmtCSV {
		title = "CSV"
	}
	s := core.NewSection(title)

	enc := DetectEncoding(data)
	s.Add("Encoding", string(enc), core.LevelInfo)
	text := decodeToUTF8(data, enc)
	if text == nil {
		s.SetNotice("undecodable content", core.LevelError)
		return s
	}

	lf, crlf, cr := tallyLineEndings(text)
	switch {
	case crlf > lf && crlf > cr:
		s.Add("LineEndings", fmt.Sprintf("CRLF (%d)", crlf), core.LevelInfo)
	case cr > lf && cr > crlf:
		s.Add("LineEndings", fmt.Sprintf("CR (%d)", cr), core.LevelInfo)
	case lf > 0:
		s.Add("LineEndings", fmt.Sprintf("LF (%d)", lf), core.LevelInfo)
	}
	if lf > 0 && crlf > 0 {
		s.Add("MixedLineEndings", "yes", core.LevelWarning)
	}

	lines := splitLines(string(text))
	s.Add("Lines", fmt.Sprintf("%d", len(lines)), core.LevelInfo)
	if len(lines) == 0 {
		s.SetNotice("empty file", core.LevelSuccess)
		return s
	}

	delim, found := detectDelimiter(lines)
	if format == core.FmtCSV || found {
		decodeDelimited(lines, delim, s)
	}

	s.SetNotice("plain text carries no embedded metadata", core.LevelSuccess)
	return s
}

// tallyLineEndings counts bare LF, CRLF pairs, and bare CR.
func tallyLineEndings(data []byte) (lf, crlf, cr int) {
	for i := 0; i < len(data); i++ {
		switch data[i] {
		case '\r':
			if i+1 < len(data) && data[i+1] == '\n' {
				crlf++
				i++
			} else {
				cr++
			}
		case '\n':
			lf++
		}
	}
	return
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// detectDelimiter picks the candidate with the highest total frequency
// across the first rows; zero frequency means the file is not delimited.
func detectDelimiter(lines []string) (rune, bool) {
	sample := lines
	if len(sample) > 32 {
		sample = sample[:32]
	}
	best := ','
	bestCount := 0
	for _, d := range csvDelimiters {
		count := 0
		for _, l := range sample {
			count += strings.Count(l, string(d))
		}
		if count > bestCount {
			best, bestCount = d, count
		}
	}
	return best, bestCount > 0
}

func decodeDelimited(lines []string, delim rune, s *core.ReportSection) {
	name := string(delim)
	switch delim {
	case '\t':
		name = "tab"
	case '|':
		name = "pipe"
	case ';':
		name = "semicolon"
	case ',':
		name = "comma"
	}
	s.Add("Delimiter", name, core.LevelInfo)

	rows := make([][]string, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, splitFields(l, delim))
	}
	s.Add("Columns", fmt.Sprintf("%d", len(rows[0])), core.LevelInfo)

	hasHeader := detectHeader(rows)
	if hasHeader {
		s.Add("Header", "present", core.LevelInfo)
	} else {
		s.Add("Header", "absent", core.LevelInfo)
	}

	dataRows := rows
	var header []string
	if hasHeader && len(rows) > 1 {
		header = rows[0]
		dataRows = rows[1:]
	}
	types := inferColumnTypes(dataRows)
	var rendered []string
	for i, t := range types {
		label := fmt.Sprintf("col%d", i+1)
		if header != nil && i < len(header) && strings.TrimSpace(header[i]) != "" {
			label = strings.TrimSpace(header[i])
		}
		rendered = append(rendered, label+":"+string(t))
	}
	if len(rendered) > 0 {
		s.Add("ColumnTypes", strings.Join(rendered, ", "), core.LevelInfo)
	}
}

// splitFields splits one row, honoring double-quoted fields.
func splitFields(line string, delim rune) []string {
	var fields []string
	var cur strings.Builder
	inQuotes := false
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == delim && !inQuotes:
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	fields = append(fields, cur.String())
	return fields
}

// detectHeader treats row 1 as a header when row 2 is more numeric.
func detectHeader(rows [][]string) bool {
	if len(rows) < 2 {
		return false
	}
	return numericCount(rows[1]) > numericCount(rows[0])
}

func numericCount(fields []string) int {
	n := 0
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if _, err := strconv.ParseFloat(f, 64); err == nil {
			n++
		}
	}
	return n
}

// csvDateLayouts are the accepted date shapes for the Date column type.
var csvDateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"01/02/2006",
	time.RFC3339,
}

// inferColumnTypes merges per-cell classifications across rows. String
// beats Float beats Int; Bool and Date hold only while every seen value
// matches.
func inferColumnTypes(rows [][]string) []ColumnType {
	if len(rows) == 0 {
		return nil
	}
	width := len(rows[0])
	types := make([]ColumnType, width)
	for i := range types {
		types[i] = TypeEmpty
	}
	for _, row := range rows {
		for i := 0; i < width && i < len(row); i++ {
			v := strings.TrimSpace(row[i])
			if v == "" {
				continue
			}
			types[i] = mergeColumnType(types[i], classifyValue(v))
		}
	}
	return types
}

func classifyValue(v string) ColumnType {
	if _, err := strconv.ParseInt(v, 10, 64); err == nil {
		return TypeInt
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return TypeFloat
	}
	switch strings.ToLower(v) {
	case "true", "false", "yes", "no":
		return TypeBool
	}
	for _, layout := range csvDateLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return TypeDate
		}
	}
	return TypeString
}

func mergeColumnType(have, next ColumnType) ColumnType {
	if have == TypeEmpty {
		return next
	}
	if have == next {
		return have
	}
	// Bool and Date survive only unanimous columns.
	if have == TypeBool || have == TypeDate || next == TypeBool || next == TypeDate {
		return TypeString
	}
	if have == TypeString || next == TypeString {
		return TypeString
	}
	// Remaining mix is Int and Float.
	return TypeFloat
}

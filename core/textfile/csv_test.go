package textfile

import (
	"reflect"
	"testing"

	"github.com/jvillegas/metasweep/core"
)

func TestDetectEncodingBOMOrder(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want Encoding
	}{
		{"utf8", []byte("plain"), EncUTF8},
		{"utf8-bom", []byte{0xEF, 0xBB, 0xBF, 'a'}, EncUTF8BOM},
		{"utf16-le", []byte{0xFF, 0xFE, 'a', 0x00}, EncUTF16LE},
		{"utf16-be", []byte{0xFE, 0xFF, 0x00, 'a'}, EncUTF16BE},
		// The UTF-32 LE BOM begins with the UTF-16 LE BOM bytes; it must
		// still be recognized as UTF-32.
		{"utf32-le", []byte{0xFF, 0xFE, 0x00, 0x00, 'a', 0, 0, 0}, EncUTF32LE},
		{"utf32-be", []byte{0x00, 0x00, 0xFE, 0xFF, 0, 0, 0, 'a'}, EncUTF32BE},
	}
	for _, tc := range cases {
		if got := DetectEncoding(tc.data); got != tc.want {
			t.Errorf("%s: DetectEncoding = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestDecodeToUTF8UTF16(t *testing.T) {
	data := []byte{0xFF, 0xFE, 'h', 0, 'i', 0}
	if got := decodeToUTF8(data, EncUTF16LE); string(got) != "hi" {
		t.Fatalf("decoded = %q", got)
	}
}

func TestDetectDelimiter(t *testing.T) {
	cases := []struct {
		lines []string
		want  rune
		found bool
	}{
		{[]string{"a,b,c", "1,2,3"}, ',', true},
		{[]string{"a;b;c", "1;2;3"}, ';', true},
		{[]string{"a\tb", "1\t2"}, '\t', true},
		{[]string{"a|b", "1|2"}, '|', true},
		{[]string{"no delimiters here"}, ',', false},
	}
	for _, tc := range cases {
		got, found := detectDelimiter(tc.lines)
		if got != tc.want || found != tc.found {
			t.Errorf("detectDelimiter(%q) = %q %v, want %q %v", tc.lines, got, found, tc.want, tc.found)
		}
	}
}

func TestSplitFieldsQuoted(t *testing.T) {
	got := splitFields(`a,"b,c",d`, ',')
	if !reflect.DeepEqual(got, []string{"a", "b,c", "d"}) {
		t.Fatalf("fields = %q", got)
	}
}

func TestDetectHeader(t *testing.T) {
	if !detectHeader([][]string{{"name", "age"}, {"alice", "3"}}) {
		t.Fatal("numeric second row must imply a header")
	}
	if detectHeader([][]string{{"1", "2"}, {"3", "4"}}) {
		t.Fatal("all-numeric rows have no header")
	}
	if detectHeader([][]string{{"only one row"}}) {
		t.Fatal("single row has no header")
	}
}

func TestInferColumnTypes(t *testing.T) {
	rows := [][]string{
		{"1", "1.5", "true", "2024-01-05", "abc", ""},
		{"2", "2", "false", "2024-02-11", "3", ""},
	}
	got := inferColumnTypes(rows)
	want := []ColumnType{TypeInt, TypeFloat, TypeBool, TypeDate, TypeString, TypeEmpty}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("types = %v, want %v", got, want)
	}
}

func TestMergeColumnType(t *testing.T) {
	cases := []struct {
		have, next, want ColumnType
	}{
		{TypeInt, TypeFloat, TypeFloat},
		{TypeFloat, TypeInt, TypeFloat},
		{TypeBool, TypeInt, TypeString},
		{TypeDate, TypeString, TypeString},
		{TypeEmpty, TypeDate, TypeDate},
		{TypeInt, TypeInt, TypeInt},
	}
	for _, tc := range cases {
		if got := mergeColumnType(tc.have, tc.next); got != tc.want {
			t.Errorf("merge(%s,%s) = %s, want %s", tc.have, tc.next, got, tc.want)
		}
	}
}

func TestDecodeTextCSV(t *testing.T) {
	data := []byte("name,age,joined\r\nalice,3,2024-01-05\r\nbob,5,2024-02-11\r\n")
	s := DecodeText(data, core.FmtCSV)

	want := map[string]string{
		"Encoding":    "UTF-8",
		"LineEndings": "CRLF (3)",
		"Lines":       "3",
		"Delimiter":   "comma",
		"Columns":     "3",
		"Header":      "present",
		"ColumnTypes": "name:String, age:Int, joined:Date",
	}
	got := map[string]string{}
	for _, e := range s.Entries {
		got[e.Label] = e.Value
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
}

func TestDecodeTextMixedLineEndings(t *testing.T) {
	s := DecodeText([]byte("one\ntwo\r\nthree\n"), core.FmtText)
	found := false
	for _, e := range s.Entries {
		if e.Label == "MixedLineEndings" {
			found = true
		}
	}
	if !found {
		t.Fatal("mixed line endings not flagged")
	}
}

package document

import (
	"archive/zip"
	"path/filepath"
	"testing"

	"github.com/jvillegas/metasweep/core"
)

const testCustomXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/custom-properties" xmlns:vt="http://schemas.openxmlformats.org/officeDocument/2006/docPropsVTypes">
<property fmtid="{D5CDD505-2E9C-101B-9397-08002B2CF9AE}" pid="2" name="ClientCode"><vt:lpwstr>ACME-42</vt:lpwstr></property>
</Properties>`

func TestDecodeOOXMLReportsProperties(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.docx")
	entries := testDOCXEntries()
	entries = append(entries, zipEntry{name: partCustomProps, data: testCustomXML, method: zip.Deflate})
	entries = append(entries, zipEntry{name: "word/vbaProject.bin", data: "\x00\x01", method: zip.Deflate})
	writeTestDOCX(t, path, entries)

	s := DecodeOOXML(path, core.FmtDOCX)
	risks := map[string]string{}
	for _, r := range s.Risks() {
		risks[r.Label] = r.Value
	}

	if risks["Creator"] != "Alice Smith" {
		t.Fatalf("Creator = %q", risks["Creator"])
	}
	if risks["LastModifiedBy"] != "Bob Jones" {
		t.Fatalf("LastModifiedBy = %q", risks["LastModifiedBy"])
	}
	if risks["Revision"] != "6" {
		t.Fatalf("Revision = %q", risks["Revision"])
	}
	if risks["Company"] != "Initech" {
		t.Fatalf("Company = %q", risks["Company"])
	}
	if risks["Custom:ClientCode"] != "ACME-42" {
		t.Fatalf("custom property = %q", risks["Custom:ClientCode"])
	}
	if _, ok := risks["Macros"]; !ok {
		t.Fatal("embedded VBA project not flagged")
	}

	entriesByLabel := map[string]string{}
	for _, e := range s.Entries {
		entriesByLabel[e.Label] = e.Value
	}
	// Title is informational, Paragraphs come from the document body.
	if entriesByLabel["Title"] != "Quarterly Report" {
		t.Fatalf("Title = %q", entriesByLabel["Title"])
	}
	if entriesByLabel["Paragraphs"] != "1" {
		t.Fatalf("Paragraphs = %q", entriesByLabel["Paragraphs"])
	}
	if s.Notice == nil || s.Notice.Level != core.LevelWarning {
		t.Fatalf("notice = %+v, want warning", s.Notice)
	}
}

func TestDecodeOOXMLMissingPackage(t *testing.T) {
	s := DecodeOOXML(filepath.Join(t.TempDir(), "absent.docx"), core.FmtDOCX)
	if s.Notice == nil || s.Notice.Message != "cannot open package" {
		t.Fatalf("notice = %+v", s.Notice)
	}
}

func TestDecodeXLSXHiddenSheets(t *testing.T) {
	workbook := `<?xml version="1.0"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
<sheets>
<sheet name="Summary" sheetId="1"/>
<sheet name="Salaries" sheetId="2" state="hidden"/>
<sheet name="Keys" sheetId="3" state="veryHidden"/>
</sheets>
</workbook>`
	sheet := `<?xml version="1.0"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
<sheetData><row><c><f>SUM(A1:A9)</f></c><c><f>NOW()</f></c></row></sheetData>
</worksheet>`

	dir := t.TempDir()
	path := filepath.Join(dir, "book.xlsx")
	writeTestDOCX(t, path, []zipEntry{
		{name: "xl/workbook.xml", data: workbook, method: zip.Deflate},
		{name: "xl/worksheets/sheet1.xml", data: sheet, method: zip.Deflate},
	})

	s := DecodeOOXML(path, core.FmtXLSX)
	got := map[string]string{}
	for _, e := range s.Entries {
		got[e.Label] = e.Value
	}
	if got["Sheets"] != "3" {
		t.Fatalf("Sheets = %q", got["Sheets"])
	}
	if got["HiddenSheets"] != "Salaries, Keys" {
		t.Fatalf("HiddenSheets = %q", got["HiddenSheets"])
	}
	if got["Formulas"] != "2" {
		t.Fatalf("Formulas = %q", got["Formulas"])
	}
}

package document

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jvillegas/metasweep/core"
	"github.com/jvillegas/metasweep/core/xmlprop"
)

const testCoreXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
<dc:creator>Alice Smith</dc:creator>
<cp:lastModifiedBy>Bob Jones</cp:lastModifiedBy>
<cp:revision>6</cp:revision>
<dc:title>Quarterly Report</dc:title>
<dcterms:created>2024-01-05T10:00:00Z</dcterms:created>
<dcterms:modified>2024-02-11T15:30:00Z</dcterms:modified>
</cp:coreProperties>`

const testAppXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties">
<Company>Initech</Company>
<TotalTime>95</TotalTime>
<Pages>12</Pages>
</Properties>`

const testDocumentXML = `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p>hello</w:p></w:body></w:document>`

type zipEntry struct {
	name   string
	data   string
	method uint16
}

func writeTestDOCX(t *testing.T, path string, entries []zipEntry) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	w := zip.NewWriter(f)
	for _, e := range entries {
		fw, err := w.CreateHeader(&zip.FileHeader{Name: e.name, Method: e.method})
		if err != nil {
			t.Fatalf("create header %s: %v", e.name, err)
		}
		if _, err := fw.Write([]byte(e.data)); err != nil {
			t.Fatalf("write %s: %v", e.name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
}

func testDOCXEntries() []zipEntry {
	return []zipEntry{
		{name: partCoreProps, data: testCoreXML, method: zip.Deflate},
		{name: partAppProps, data: testAppXML, method: zip.Deflate},
		{name: "word/document.xml", data: testDocumentXML, method: zip.Store},
	}
}

func resolvePart(t *testing.T, path, part, local, namespace string) string {
	t.Helper()
	parts, err := ReadArchiveParts(path, part)
	if err != nil {
		t.Fatalf("read parts: %v", err)
	}
	tree, err := xmlprop.Parse(parts[part])
	if err != nil {
		t.Fatalf("parse %s: %v", part, err)
	}
	return xmlprop.ResolveNS(tree.Root, local, namespace)
}

func TestOOXMLSanitizeBlanksIdentifyingFields(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "report.docx")
	dst := filepath.Join(dir, "report_clean.docx")
	writeTestDOCX(t, src, testDOCXEntries())

	changed, err := RewriteArchive(src, dst, OOXMLSanitizeTransform())
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if !changed {
		t.Fatal("rewrite must report a change")
	}

	if got := resolvePart(t, dst, partCoreProps, "creator", nsDC); got != "" {
		t.Fatalf("creator = %q, want blank", got)
	}
	if got := resolvePart(t, dst, partCoreProps, "revision", nsCP); got != "1" {
		t.Fatalf("revision = %q, want 1", got)
	}
	if got := resolvePart(t, dst, partAppProps, "Company", nsExtProp); got != "" {
		t.Fatalf("Company = %q, want blank", got)
	}
	if got := resolvePart(t, dst, partAppProps, "TotalTime", nsExtProp); got != "0" {
		t.Fatalf("TotalTime = %q, want 0", got)
	}

	if err := VerifySanitized(dst, core.FmtDOCX); err != nil {
		t.Fatalf("verify sanitized output: %v", err)
	}
	if err := VerifySanitized(src, core.FmtDOCX); !errors.Is(err, core.ErrVerifyFailed) {
		t.Fatalf("verify on original = %v, want ErrVerifyFailed", err)
	}
}

func TestOOXMLSanitizeLeavesContentUntouched(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "report.docx")
	dst := filepath.Join(dir, "report_clean.docx")
	writeTestDOCX(t, src, testDOCXEntries())

	if _, err := RewriteArchive(src, dst, OOXMLSanitizeTransform()); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	parts, err := ReadArchiveParts(dst, "word/document.xml")
	if err != nil {
		t.Fatalf("read parts: %v", err)
	}
	if !bytes.Equal(parts["word/document.xml"], []byte(testDocumentXML)) {
		t.Fatal("document body must pass through byte-identical")
	}

	// Compression method and entry order survive the rewrite.
	r, err := zip.OpenReader(dst)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()
	if len(r.File) != 3 {
		t.Fatalf("entries = %d, want 3", len(r.File))
	}
	for i, want := range testDOCXEntries() {
		if r.File[i].Name != want.name {
			t.Fatalf("entry %d = %s, want %s", i, r.File[i].Name, want.name)
		}
		if r.File[i].Method != want.method {
			t.Fatalf("entry %s method = %d, want %d", want.name, r.File[i].Method, want.method)
		}
	}
}

func TestOOXMLSanitizeIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "report.docx")
	once := filepath.Join(dir, "once.docx")
	twice := filepath.Join(dir, "twice.docx")
	writeTestDOCX(t, src, testDOCXEntries())

	if _, err := RewriteArchive(src, once, OOXMLSanitizeTransform()); err != nil {
		t.Fatalf("first rewrite: %v", err)
	}
	changed, err := RewriteArchive(once, twice, OOXMLSanitizeTransform())
	if err != nil {
		t.Fatalf("second rewrite: %v", err)
	}
	if changed {
		t.Fatal("second pass must not report changes")
	}
}

func TestOOXMLSanitizePassesThroughMalformedPart(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "broken.docx")
	dst := filepath.Join(dir, "broken_clean.docx")
	writeTestDOCX(t, src, []zipEntry{
		{name: partCoreProps, data: "<not <valid xml", method: zip.Deflate},
		{name: "word/document.xml", data: testDocumentXML, method: zip.Deflate},
	})

	changed, err := RewriteArchive(src, dst, OOXMLSanitizeTransform())
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if changed {
		t.Fatal("malformed part must pass through unchanged")
	}
	parts, err := ReadArchiveParts(dst, partCoreProps)
	if err != nil {
		t.Fatalf("read parts: %v", err)
	}
	if string(parts[partCoreProps]) != "<not <valid xml" {
		t.Fatal("malformed part bytes must survive verbatim")
	}
}

func TestEditTransformSetsOneField(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "report.docx")
	dst := filepath.Join(dir, "report_edit.docx")
	writeTestDOCX(t, src, testDOCXEntries())

	tf, err := EditTransform(core.FmtDOCX, "Author", "C. Doe")
	if err != nil {
		t.Fatalf("edit transform: %v", err)
	}
	if _, err := RewriteArchive(src, dst, tf); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if got := resolvePart(t, dst, partCoreProps, "creator", nsDC); got != "C. Doe" {
		t.Fatalf("creator = %q", got)
	}
	// The rest of core.xml stays as it was.
	if got := resolvePart(t, dst, partCoreProps, "title", nsDC); got != "Quarterly Report" {
		t.Fatalf("title = %q", got)
	}
	if err := VerifyEdited(dst, core.FmtDOCX, "author", "C. Doe"); err != nil {
		t.Fatalf("verify edited: %v", err)
	}
}

func TestEditTransformRejectsUnknownField(t *testing.T) {
	if _, err := EditTransform(core.FmtDOCX, "serialnumber", "x"); err == nil {
		t.Fatal("unknown field must be rejected")
	}
	if _, err := EditTransform(core.FmtPDF, "title", "x"); !errors.Is(err, core.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestODFSanitizeTransform(t *testing.T) {
	metaXML := `<?xml version="1.0" encoding="UTF-8"?>
<office:document-meta xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" xmlns:meta="urn:oasis:names:tc:opendocument:xmlns:meta:1.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
<office:meta>
<meta:initial-creator>Alice</meta:initial-creator>
<dc:creator>Alice</dc:creator>
<meta:editing-cycles>14</meta:editing-cycles>
<meta:generator>Writer/7.4</meta:generator>
</office:meta>
</office:document-meta>`

	dir := t.TempDir()
	src := filepath.Join(dir, "notes.odt")
	dst := filepath.Join(dir, "notes_clean.odt")
	writeTestDOCX(t, src, []zipEntry{
		{name: "mimetype", data: "application/vnd.oasis.opendocument.text", method: zip.Store},
		{name: partODFMeta, data: metaXML, method: zip.Deflate},
	})

	changed, err := RewriteArchive(src, dst, ODFSanitizeTransform())
	if err != nil || !changed {
		t.Fatalf("rewrite: changed=%v err=%v", changed, err)
	}
	if got := resolvePart(t, dst, partODFMeta, "creator", nsDC); got != "" {
		t.Fatalf("creator = %q, want blank", got)
	}
	if got := resolvePart(t, dst, partODFMeta, "editing-cycles", nsODFMeta); got != "1" {
		t.Fatalf("editing-cycles = %q, want 1", got)
	}
	if err := VerifySanitized(dst, core.FmtODF); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

package core

import "testing"

func TestSectionDuplicateLabelsSuppressed(t *testing.T) {
	s := NewSection("test")
	s.Add("Width", "100", LevelInfo)
	s.Add("Width", "999", LevelInfo)
	if s.Len() != 1 || s.Entries[0].Value != "100" {
		t.Fatalf("entries = %+v, first value must win", s.Entries)
	}
	s.AddRisk("Author", "a")
	s.AddRisk("Author", "b")
	if len(s.Risks()) != 1 {
		t.Fatalf("risks = %+v", s.Risks())
	}
}

func TestReportHoistsSectionRisks(t *testing.T) {
	s := NewSection("EXIF")
	s.Add("Dimensions", "1 x 1", LevelInfo)
	s.AddRisk("Artist", "Jane")

	r := &MetadataReport{Path: "x.jpg"}
	r.AddSystem("Size", "12 bytes", LevelInfo)
	r.AddSection(s)

	if len(r.Internal) != 1 {
		t.Fatalf("sections = %d", len(r.Internal))
	}
	if len(r.Risks) != 1 || r.Risks[0].Label != "Artist" {
		t.Fatalf("hoisted risks = %+v", r.Risks)
	}
}

func TestParseKV(t *testing.T) {
	k, v, ok := ParseKV("Author=Jane Doe")
	if !ok || k != "Author" || v != "Jane Doe" {
		t.Fatalf("ParseKV = %q %q %v", k, v, ok)
	}
	if _, _, ok := ParseKV("novalue"); ok {
		t.Fatal("missing separator must not parse")
	}
	if _, _, ok := ParseKV("=bare"); ok {
		t.Fatal("empty key must not parse")
	}
	k, v, ok = ParseKV("Title=a=b")
	if !ok || k != "Title" || v != "a=b" {
		t.Fatalf("ParseKV = %q %q %v, value keeps later separators", k, v, ok)
	}
}

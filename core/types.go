// Package core defines the shared types, the format registry, and the
// top-level inspect/sanitize entry points for metasweep.
package core

import "errors"

// Level classifies a report entry for display and risk triage.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelSuccess
	LevelError
	LevelMuted
)

// String returns the lowercase name used in JSON output.
func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelSuccess:
		return "success"
	case LevelError:
		return "error"
	case LevelMuted:
		return "muted"
	}
	return "info"
}

// ReportEntry is a single labelled metadata finding. Immutable once created.
type ReportEntry struct {
	Label string
	Value string
	Level Level
}

// SectionNotice summarises a section ("no metadata found", "sensitive data
// found"). At most one per section.
type SectionNotice struct {
	Message string
	Level   Level
}

// ReportSection groups the entries produced by one decoder invocation.
// Entries are appended in decode order; duplicate labels are suppressed.
type ReportSection struct {
	Title   string
	Entries []ReportEntry
	Notice  *SectionNotice

	labels map[string]bool
	risks  []ReportEntry
}

// NewSection creates an empty section with the given title.
func NewSection(title string) *ReportSection {
	return &ReportSection{Title: title, labels: make(map[string]bool)}
}

// Add appends an entry unless the label was already used in this section.
func (s *ReportSection) Add(label, value string, level Level) {
	if label == "" || s.labels[label] {
		return
	}
	s.labels[label] = true
	s.Entries = append(s.Entries, ReportEntry{Label: label, Value: value, Level: level})
}

// AddRisk appends a Warning-level entry and duplicates it into the risk list.
func (s *ReportSection) AddRisk(label, value string) {
	if label == "" || s.labels[label] {
		return
	}
	s.labels[label] = true
	e := ReportEntry{Label: label, Value: value, Level: LevelWarning}
	s.Entries = append(s.Entries, e)
	s.risks = append(s.risks, e)
}

// SetNotice sets the section notice, replacing any previous one.
func (s *ReportSection) SetNotice(message string, level Level) {
	s.Notice = &SectionNotice{Message: message, Level: level}
}

// Risks returns the entries flagged as privacy-sensitive during decoding.
func (s *ReportSection) Risks() []ReportEntry { return s.risks }

// Len returns the number of entries in the section.
func (s *ReportSection) Len() int { return len(s.Entries) }

// MetadataReport is the normalized findings container built once per
// inspected file and read-only afterward.
type MetadataReport struct {
	Path     string
	Format   string
	System   []ReportEntry
	Internal []*ReportSection
	Risks    []ReportEntry
	Errors   []string
}

// AddSystem appends a system-level entry (file name, size, format).
func (r *MetadataReport) AddSystem(label, value string, level Level) {
	r.System = append(r.System, ReportEntry{Label: label, Value: value, Level: level})
}

// AddSection appends a decoder section and hoists its risks into the
// flattened risk view.
func (r *MetadataReport) AddSection(s *ReportSection) {
	if s == nil {
		return
	}
	r.Internal = append(r.Internal, s)
	r.Risks = append(r.Risks, s.risks...)
}

// AddError records a non-fatal decode error message.
func (r *MetadataReport) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// Sentinel errors surfaced by the sanitize/edit entry points.
var (
	ErrUnsupportedFormat   = errors.New("unsupported format")
	ErrUnsupportedSanitize = errors.New("format does not support metadata removal")
	ErrVerifyFailed        = errors.New("verification of rewritten file failed")
	ErrNotAContainer       = errors.New("stream is not a recognized container")
)

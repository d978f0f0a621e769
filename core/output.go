package core

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Printer handles all display output for the CLI.
type Printer struct {
	JSON    bool
	Verbose bool
	Writer  *os.File
}

// NewPrinter creates a default Printer writing to stdout.
func NewPrinter(jsonMode, verbose bool) *Printer {
	return &Printer{JSON: jsonMode, Verbose: verbose, Writer: os.Stdout}
}

// PrintReport renders a MetadataReport to the configured output.
func (p *Printer) PrintReport(r *MetadataReport) {
	if p.JSON {
		p.printJSON(r)
		return
	}
	p.printText(r)
}

func (p *Printer) printText(r *MetadataReport) {
	fmt.Fprintf(p.Writer, "File  : %s\n", r.Path)
	fmt.Fprintf(p.Writer, "Format: %s\n", r.Format)
	fmt.Fprintln(p.Writer)

	if len(r.System) > 0 {
		fmt.Fprintln(p.Writer, "── System ──")
		for _, e := range r.System {
			if e.Level == LevelMuted && !p.Verbose {
				continue
			}
			fmt.Fprintf(p.Writer, "  %-24s %s\n", e.Label+":", e.Value)
		}
		fmt.Fprintln(p.Writer)
	}

	for _, s := range r.Internal {
		fmt.Fprintf(p.Writer, "── %s ──\n", s.Title)
		for _, e := range s.Entries {
			if e.Level == LevelMuted && !p.Verbose {
				continue
			}
			mark := " "
			if e.Level == LevelWarning {
				mark = "!"
			}
			fmt.Fprintf(p.Writer, " %s %-24s %s\n", mark, e.Label+":", e.Value)
		}
		if s.Notice != nil {
			fmt.Fprintf(p.Writer, "  (%s)\n", s.Notice.Message)
		}
		fmt.Fprintln(p.Writer)
	}

	if len(r.Risks) > 0 {
		fmt.Fprintf(p.Writer, "── Privacy Risks (%d) ──\n", len(r.Risks))
		for _, e := range r.Risks {
			fmt.Fprintf(p.Writer, " ! %-24s %s\n", e.Label+":", e.Value)
		}
		fmt.Fprintln(p.Writer)
	}

	for _, msg := range r.Errors {
		fmt.Fprintf(p.Writer, "  warning: %s\n", msg)
	}
}

func (p *Printer) printJSON(r *MetadataReport) {
	type jsonEntry struct {
		Label string `json:"label"`
		Value string `json:"value"`
		Level string `json:"level"`
	}
	type jsonSection struct {
		Title   string      `json:"title"`
		Entries []jsonEntry `json:"entries"`
		Notice  string      `json:"notice,omitempty"`
	}
	type jsonOutput struct {
		Path     string        `json:"file"`
		Format   string        `json:"format"`
		System   []jsonEntry   `json:"system"`
		Sections []jsonSection `json:"sections"`
		Risks    []jsonEntry   `json:"risks"`
		Errors   []string      `json:"errors,omitempty"`
	}

	conv := func(entries []ReportEntry) []jsonEntry {
		out := make([]jsonEntry, 0, len(entries))
		for _, e := range entries {
			out = append(out, jsonEntry{Label: e.Label, Value: e.Value, Level: e.Level.String()})
		}
		return out
	}

	out := jsonOutput{
		Path:   r.Path,
		Format: r.Format,
		System: conv(r.System),
		Risks:  conv(r.Risks),
		Errors: r.Errors,
	}
	for _, s := range r.Internal {
		js := jsonSection{Title: s.Title, Entries: conv(s.Entries)}
		if s.Notice != nil {
			js.Notice = s.Notice.Message
		}
		out.Sections = append(out.Sections, js)
	}

	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Fprintln(p.Writer, string(b))
}

// PrintSuccess prints a success message.
func (p *Printer) PrintSuccess(msg string) {
	fmt.Fprintln(p.Writer, "✓ "+msg)
}

// PrintInfo prints an info line (suppressed in JSON mode).
func (p *Printer) PrintInfo(msg string) {
	if !p.JSON {
		fmt.Fprintln(p.Writer, msg)
	}
}

// PrintError prints an error to stderr.
func PrintError(msg string) {
	fmt.Fprintln(os.Stderr, "✗ Error: "+msg)
}

// ParseKV parses a "Key=Value" string.
func ParseKV(s string) (key, value string, ok bool) {
	idx := strings.Index(s, "=")
	if idx < 1 {
		return "", "", false
	}
	return strings.TrimSpace(s[:idx]), strings.TrimSpace(s[idx+1:]), true
}

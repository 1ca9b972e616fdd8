// Package export renders filtered event lists to JSON or CSV.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hooktail-systems/hooktail/internal/models"
)

// Format selects the export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat validates a format selector.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatCSV:
		return Format(s), nil
	default:
		return "", fmt.Errorf("export: unsupported format %q", s)
	}
}

// ContentType returns the MIME type for HTTP responses.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/json"
}

// Extension returns the file extension without a dot.
func (f Format) Extension() string {
	return string(f)
}

// csvHeader is the fixed CSV column order.
var csvHeader = []string{
	"ID", "Hook Type", "Timestamp", "Session ID", "Sequence",
	"Status", "Execution Time (ms)", "Platform", "Git Branch", "Git Status",
	"Project Type", "Prompt", "Tool Name", "Tool Input", "Tool Response",
	"Message",
}

// Write renders events to w in the given format. JSON output is a
// pretty-printed array of canonical events.
func Write(w io.Writer, events []models.CanonicalEvent, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, events)
	case FormatCSV:
		return writeCSV(w, events)
	default:
		return fmt.Errorf("export: unsupported format %q", format)
	}
}

// WriteFile renders events into a new file at path and returns the path.
func WriteFile(path string, events []models.CanonicalEvent, format Format) (string, error) {
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("export: create %s: %w", path, err)
	}

	if err := Write(f, events, format); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("export: close %s: %w", path, err)
	}
	return path, nil
}

func writeJSON(w io.Writer, events []models.CanonicalEvent) error {
	if events == nil {
		events = []models.CanonicalEvent{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(events); err != nil {
		return fmt.Errorf("export: encode json: %w", err)
	}
	return nil
}

func writeCSV(w io.Writer, events []models.CanonicalEvent) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("export: write csv header: %w", err)
	}

	for _, e := range events {
		row := []string{
			e.ID,
			string(e.Type),
			e.Timestamp.UTC().Format(time.RFC3339),
			e.SessionID(),
			e.Meta(models.MetaSequence),
			e.Meta(models.MetaStatus),
			e.Meta(models.MetaExecutionTimeMS),
			e.Meta(models.MetaPlatform),
			e.Meta(models.MetaGitBranch),
			e.Meta(models.MetaGitStatus),
			projectType(e),
			e.Meta(models.MetaPrompt),
			e.Meta(models.MetaToolName),
			e.Meta(models.MetaToolInput),
			e.Meta(models.MetaToolResponse),
			e.Message,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("export: write csv row %s: %w", e.ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export: flush csv: %w", err)
	}
	return nil
}

// projectType derives a coarse project label from the working directory,
// kept for layout compatibility with older exports.
func projectType(e models.CanonicalEvent) string {
	if cwd := e.Meta(models.MetaCwd); cwd != "" {
		return "directory"
	}
	return ""
}

// Filename builds a timestamped export file name.
func Filename(format Format, now time.Time) string {
	return "hooktail-events-" + now.UTC().Format("20060102-150405") +
		"." + format.Extension()
}

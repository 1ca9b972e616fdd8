package export_test

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hooktail-systems/hooktail/internal/export"
	"github.com/hooktail-systems/hooktail/internal/models"
)

func sampleEvents() []models.CanonicalEvent {
	return []models.CanonicalEvent{
		{
			ID:        "ev-1",
			Type:      models.HookPreToolUse,
			Title:     "Tool Use: Bash",
			Message:   "go test ./...",
			Timestamp: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
			Source:    "Tool: Bash",
			Severity:  models.SeverityInfo,
			Metadata: map[string]string{
				models.MetaSessionID:       "s1",
				models.MetaSequence:        "1",
				models.MetaStatus:          "success",
				models.MetaExecutionTimeMS: "80",
				models.MetaToolName:        "Bash",
				models.MetaToolInput:       "go test ./...",
				models.MetaCwd:             "/src/app",
			},
		},
		{
			ID:        "ev-2",
			Type:      models.HookNotification,
			Title:     "Notification: idle",
			Message:   "waiting, for input",
			Timestamp: time.Date(2025, 6, 1, 10, 5, 0, 0, time.UTC),
			Source:    "Agent Runtime",
			Severity:  models.SeverityWarning,
			Metadata: map[string]string{
				models.MetaSessionID: "s1",
				models.MetaSequence:  "2",
				models.MetaStatus:    "success",
			},
		},
	}
}

func TestParseFormat(t *testing.T) {
	testCases := []struct {
		raw     string
		want    export.Format
		wantErr bool
	}{
		{raw: "json", want: export.FormatJSON},
		{raw: "csv", want: export.FormatCSV},
		{raw: "xml", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tc := range testCases {
		t.Run("format "+tc.raw, func(t *testing.T) {
			got, err := export.ParseFormat(tc.raw)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestWriteJSON(t *testing.T) {
	t.Run("round trips the canonical fields", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, export.Write(&buf, sampleEvents(), export.FormatJSON))

		var decoded []models.CanonicalEvent
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		require.Len(t, decoded, 2)
		assert.Equal(t, sampleEvents(), decoded)
	})

	t.Run("output is indented", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, export.Write(&buf, sampleEvents(), export.FormatJSON))
		assert.Contains(t, buf.String(), "\n  {")
	})

	t.Run("empty input encodes as an empty array", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, export.Write(&buf, nil, export.FormatJSON))
		assert.Equal(t, "[]\n", buf.String())
	})
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.Write(&buf, sampleEvents(), export.FormatCSV))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus one row per event")

	t.Run("header", func(t *testing.T) {
		assert.Equal(t, []string{
			"ID", "Hook Type", "Timestamp", "Session ID", "Sequence",
			"Status", "Execution Time (ms)", "Platform", "Git Branch", "Git Status",
			"Project Type", "Prompt", "Tool Name", "Tool Input", "Tool Response",
			"Message",
		}, rows[0])
	})

	t.Run("row values", func(t *testing.T) {
		row := rows[1]
		assert.Equal(t, "ev-1", row[0])
		assert.Equal(t, "PRE_TOOL_USE", row[1])
		assert.Equal(t, "2025-06-01T10:00:00Z", row[2])
		assert.Equal(t, "s1", row[3])
		assert.Equal(t, "1", row[4])
		assert.Equal(t, "success", row[5])
		assert.Equal(t, "80", row[6])
		assert.Equal(t, "directory", row[10], "cwd collapses to a project type label")
		assert.Equal(t, "Bash", row[12])
	})

	t.Run("absent metadata leaves cells empty", func(t *testing.T) {
		row := rows[2]
		assert.Equal(t, "", row[6], "no execution time")
		assert.Equal(t, "", row[10], "no cwd")
		assert.Equal(t, "waiting, for input", row[15], "comma survives quoting")
	})
}

func TestWriteFile(t *testing.T) {
	t.Run("creates the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.json")
		got, err := export.WriteFile(path, sampleEvents(), export.FormatJSON)
		require.NoError(t, err)
		assert.Equal(t, path, got)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "ev-1")
	})

	t.Run("unsupported format leaves no file behind", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.bin")
		_, err := export.WriteFile(path, sampleEvents(), export.Format("bin"))
		require.Error(t, err)
		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr))
	})
}

func TestFilename(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 30, 5, 0, time.UTC)
	assert.Equal(t, "hooktail-events-20250601-093005.json", export.Filename(export.FormatJSON, now))
	assert.Equal(t, "hooktail-events-20250601-093005.csv", export.Filename(export.FormatCSV, now))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/json", export.FormatJSON.ContentType())
	assert.Equal(t, "text/csv", export.FormatCSV.ContentType())
}

package output_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hooktail-systems/hooktail/internal/output"
)

func TestTable(t *testing.T) {
	t.Run("aligns columns under the headers", func(t *testing.T) {
		table := output.NewTable("SESSION", "EVENTS")
		table.AddRow("a1b2c3d4", "12")
		table.AddRow("e5f6", "7")

		var sb strings.Builder
		table.Fprint(&sb)

		lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
		require.Len(t, lines, 4)
		assert.Contains(t, lines[0], "SESSION")
		assert.Contains(t, lines[1], "-------")
		assert.Equal(t, strings.Index(lines[0], "EVENTS"), strings.Index(lines[2], "12"))
		assert.Equal(t, strings.Index(lines[0], "EVENTS"), strings.Index(lines[3], "7"))
	})

	t.Run("truncates oversized cells", func(t *testing.T) {
		long := strings.Repeat("x", 200)
		table := output.NewTable("TOOL INPUT")
		table.AddRow(long)

		var sb strings.Builder
		table.Fprint(&sb)

		assert.NotContains(t, sb.String(), long)
		assert.Contains(t, sb.String(), strings.Repeat("x", 57)+"...")
	})

	t.Run("short cells pass through untouched", func(t *testing.T) {
		table := output.NewTable("MESSAGE")
		table.AddRow("waiting for input")

		var sb strings.Builder
		table.Fprint(&sb)
		assert.Contains(t, sb.String(), "waiting for input")
	})
}

package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hooktail-systems/hooktail/internal/cache"
	"github.com/hooktail-systems/hooktail/internal/models"
	"github.com/hooktail-systems/hooktail/internal/normalizer"
	"github.com/hooktail-systems/hooktail/internal/output"
	"github.com/hooktail-systems/hooktail/internal/stats"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show dashboard statistics and session summaries from the cache",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "emit JSON instead of tables")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer store.Close()

	records, err := store.Query(cmd.Context(), cache.Query{})
	if err != nil {
		return fmt.Errorf("query cache: %w", err)
	}

	norm := normalizer.New()
	events := make([]models.CanonicalEvent, 0, len(records))
	for _, rec := range records {
		events = append(events, norm.Rehydrate(rec))
	}

	now := time.Now()
	dash := stats.CalculateDashboardStats(events, now)
	sessions := stats.BuildSessionSummaries(events, now)

	if statsJSON {
		return output.JSON(map[string]interface{}{
			"dashboard": dash,
			"sessions":  sessions,
		})
	}

	output.Info("Events: %d  Critical: %d  Warnings: %d  Success rate: %.1f%%",
		dash.TotalEvents, dash.CriticalCount, dash.WarningCount, dash.SuccessRate)
	output.Info("Active sessions: %d  Hook types seen: %d",
		len(dash.ActiveSessions), dash.ActiveHookTypes)
	if len(sessions) == 0 {
		output.Warn("cache is empty")
		return nil
	}

	table := output.NewTable("SESSION", "EVENTS", "AVG MS", "LAST SEEN", "ACTIVE")
	for _, s := range sessions {
		last := ""
		if s.EndTime != nil {
			last = s.EndTime.Format(time.RFC3339)
		}
		table.AddRow(
			shortID(s.SessionID),
			strconv.Itoa(s.TotalEvents),
			fmt.Sprintf("%.1f", s.AverageExecutionTimeMS),
			last,
			strings.ToUpper(strconv.FormatBool(s.IsActive)),
		)
	}
	table.Render()
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

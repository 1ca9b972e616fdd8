package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hooktail-systems/hooktail/internal/cache"
	"github.com/hooktail-systems/hooktail/internal/export"
	"github.com/hooktail-systems/hooktail/internal/filter"
	"github.com/hooktail-systems/hooktail/internal/models"
	"github.com/hooktail-systems/hooktail/internal/normalizer"
	"github.com/hooktail-systems/hooktail/internal/output"
)

var (
	exportFormat   string
	exportOut      string
	exportTypes    []string
	exportSessions []string
	exportSearch   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export cached events to a JSON or CSV file",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "export format: json or csv")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default: timestamped name in the working directory)")
	exportCmd.Flags().StringSliceVar(&exportTypes, "types", nil, "hook types to include")
	exportCmd.Flags().StringSliceVar(&exportSessions, "sessions", nil, "session ids to include")
	exportCmd.Flags().StringVar(&exportSearch, "search", "", "relevance search query")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	format, err := export.ParseFormat(exportFormat)
	if err != nil {
		return err
	}

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

	criteria := models.FilterCriteria{
		SessionIDs:  exportSessions,
		SearchQuery: strings.TrimSpace(exportSearch),
	}
	for _, raw := range exportTypes {
		criteria.Types = append(criteria.Types, normalizer.ParseHookType(raw))
	}
	events = filter.Apply(events, criteria)

	out := exportOut
	if out == "" {
		out = export.Filename(format, time.Now())
	}
	path, err := export.WriteFile(out, events, format)
	if err != nil {
		return err
	}
	output.Success("exported %d events to %s", len(events), path)
	return nil
}

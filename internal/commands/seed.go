package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hooktail-systems/hooktail/internal/output"
	"github.com/hooktail-systems/hooktail/internal/seeder"
	"github.com/hooktail-systems/hooktail/pkg/messaging/nats"
)

var (
	seedCount    int
	seedSessions int
	seedInterval time.Duration
	seedSeed     int64
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Publish synthetic hook events to the stream",
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().IntVar(&seedCount, "count", 100, "number of events to publish")
	seedCmd.Flags().IntVar(&seedSessions, "sessions", 3, "number of distinct sessions")
	seedCmd.Flags().DurationVar(&seedInterval, "interval", 0, "pause between events (0 publishes as fast as possible)")
	seedCmd.Flags().Int64Var(&seedSeed, "seed", 0, "random seed (0 uses the clock)")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	client, err := nats.NewClient(nats.Config{
		URL:     cfg.NATS.URL,
		Name:    cfg.NATS.Name + "-seeder",
		Timeout: cfg.NATS.ConnectTimeout,
	})
	if err != nil {
		return fmt.Errorf("connect stream: %w", err)
	}
	defer client.Close()

	s := seeder.New(client, seeder.Config{
		Subject:  cfg.NATS.Subject,
		Count:    seedCount,
		Sessions: seedSessions,
		Interval: seedInterval,
		Seed:     seedSeed,
	}, log)

	if err := s.Run(cmd.Context()); err != nil {
		return err
	}
	output.Success("published %d events on %s", seedCount, cfg.NATS.Subject)
	return nil
}

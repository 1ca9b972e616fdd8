// Package commands defines the hooktail CLI.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hooktail-systems/hooktail/internal/config"
	"github.com/hooktail-systems/hooktail/internal/logging"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "hooktail",
	Short: "Hook event observability for agent runtimes",
	Long: `hooktail ingests hook events from an agent runtime over NATS,
normalizes them, and keeps a queryable local cache.

Run the daemon with "hooktail serve", inspect the cache with
"hooktail stats" and "hooktail export", and generate demo traffic
with "hooktail seed".`,
	Version: "0.1.0",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.hooktail/config.yaml)")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load config: %v\n", err)
		os.Exit(1)
	}
	log = logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefault(log)
}

// Package commands implements the pgweave command line interface.
package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/pgweave/pgweave/cli/internal/config"
	"github.com/pgweave/pgweave/cli/internal/ui"
	"github.com/pgweave/pgweave/cli/internal/version"
	"github.com/pgweave/pgweave/internal/debug"
	"github.com/pgweave/pgweave/telemetry"
)

var (
	cfg       *config.Config
	collector *telemetry.Collector

	flagDebug  bool
	flagDBURL  string
	flagSchema string
)

var rootCmd = &cobra.Command{
	Use:   "pgweave",
	Short: "Vocabulary generator and toolbox for the pgweave query engine",
	Long: `pgweave reads table, column and unique-constraint names out of a live
PostgreSQL database and emits them as a Go vocabulary file consumed by
the pgweave statement builders.

The database URL is resolved from --database-url, then DATABASE_URL
(environment, .env, .env.local), then .pgweave.yaml.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		debug.Init(flagDebug)

		var err error
		if cfg, err = config.Load(); err != nil {
			return err
		}
		if flagDBURL != "" {
			cfg.DatabaseURL = flagDBURL
		}
		if flagSchema != "" {
			cfg.Schema = flagSchema
		}

		collector = telemetry.New(version.Get().Version)
		collector.Record(telemetry.Event{Kind: "command", Command: cmd.Name()})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagDBURL, "database-url", "", "PostgreSQL connection string")
	rootCmd.PersistentFlags().StringVarP(&flagSchema, "schema", "s", "", "database schema to read")
}

// Execute runs the CLI, reports any failure, and flushes pending
// telemetry before returning. The exit code is the caller's concern.
func Execute() error {
	start := time.Now()
	err := rootCmd.Execute()
	if err != nil {
		ui.PrintError("%v", err)
	}
	if collector != nil {
		ev := telemetry.Event{Kind: "run", Duration: time.Since(start)}
		if err != nil {
			ev.Error = err.Error()
		}
		collector.Record(ev)
		collector.Close()
	}
	return err
}

// Command triad detects triadic closures in a co-authorship event log.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "triad",
		Short: "Streaming triadic closure detection over collaboration networks",
		Long: `triad replays a co-authorship event log date by date, grows the
collaboration network and records every triangle the first time it closes,
classified as triadic closure, broker, initiation link or instant, each with
a simplicial variant.

Environment:
  TRIAD_DB           SQLite database path (default: triad.db)
  TRIAD_SINK         motif sink: sqlite or badger
  TRIAD_BADGER_DIR   Badger data directory for the badger sink
  TRIAD_EAGER        load the event log into memory once (true/false)
  TRIAD_LOG_LEVEL    debug, info, warn or error
  TRIAD_LOG_FORMAT   text or json`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "YAML config file")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides config and TRIAD_DB)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "triad v%s (%s)\n", version, commit)
		},
	})
	rootCmd.AddCommand(
		newInitCmd(),
		newImportCmd(),
		newCountCmd(),
		newMotifsCmd(),
		newStatsCmd(),
		newConfigCmd(),
	)
	return rootCmd
}

package main

import (
	"fmt"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/daviddao/triadic/pkg/collector"
	"github.com/daviddao/triadic/pkg/engine"
	"github.com/daviddao/triadic/pkg/stream"
)

func newCountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Run triadic closure detection over the event log",
		Long: `Replay every collaboration date in order and record each closed
triangle once. Motifs already in the sink are kept, so re-running over the
same log inserts nothing new. Interrupting the run drops the motifs of the
date in progress.

With --dry-run motifs are kept in memory only: no sink is opened and no run
is recorded.`,
		Example: `
# Full run into the SQLite database
triad count

# First 100 dates, event log held in memory, motifs into Badger
triad count --stop-after 100 --eager --sink badger --badger-dir ./motifs

# Detect without writing anything
triad count --dry-run
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.applySinkFlags(cmd); err != nil {
				return err
			}
			if cmd.Flags().Changed("eager") {
				a.cfg.Stream.Eager, _ = cmd.Flags().GetBool("eager")
			}
			if cmd.Flags().Changed("stop-after") {
				a.cfg.Run.StopAfter, _ = cmd.Flags().GetInt("stop-after")
			}
			if cmd.Flags().Changed("progress-every") {
				a.cfg.Run.ProgressEvery, _ = cmd.Flags().GetInt("progress-every")
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			jsonOut, _ := cmd.Flags().GetBool("json")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var (
				sink   collector.Sink
				mem    *collector.MemorySink
				ledger engine.RunLedger = a.store
			)
			sinkName := a.cfg.Sink.Kind
			if dryRun {
				mem = collector.NewMemorySink()
				sink, ledger, sinkName = mem, nil, "memory"
			} else {
				s, closeSink, err := a.openSink()
				if err != nil {
					return err
				}
				defer closeSink()
				sink = s
			}

			src, err := stream.New(ctx, a.store, stream.Options{Eager: a.cfg.Stream.Eager})
			if err != nil {
				return err
			}
			a.logger.Info("event source ready", "eager", src.Eager(), "actors", src.Lookup().Len())
			eng, err := engine.New(src, sink, engine.Options{
				Logger:        a.logger,
				Ledger:        ledger,
				ProgressEvery: a.cfg.Run.ProgressEvery,
			})
			if err != nil {
				return err
			}

			sum, runErr := eng.Run(ctx, engine.RunOptions{StopAfter: a.cfg.Run.StopAfter})
			if jsonOut {
				printJSON(a.out, sum)
				return runErr
			}
			if sum.RunID != "" {
				fmt.Fprintf(a.out, "run %s\n", sum.RunID)
			}
			fmt.Fprintf(a.out, "  dates:     %d\n", sum.Batches)
			fmt.Fprintf(a.out, "  actors:    %d\n", sum.Nodes)
			fmt.Fprintf(a.out, "  edges:     %d (max degree %d)\n", sum.Edges, sum.MaxDegree)
			fmt.Fprintf(a.out, "  by attr:   %s\n", attributeCounts(sum.Attributes))
			fmt.Fprintf(a.out, "  closed:    %d\n", sum.Closed)
			fmt.Fprintf(a.out, "  inserted:  %d (sink: %s)\n", sum.Inserted, sinkName)
			fmt.Fprintf(a.out, "  open:      %d pairs, %d wedges\n",
				sum.Collector.PendingPairs, sum.Collector.PendingWedges)
			if mem != nil {
				simplicial := 0
				for _, m := range mem.Motifs() {
					if m.Type.Simplicial() {
						simplicial++
					}
				}
				fmt.Fprintf(a.out, "  dry run:   %d motifs held in memory (%d simplicial), nothing written\n",
					mem.Len(), simplicial)
			}
			if sum.Stopped {
				fmt.Fprintf(a.out, "  stopped after %d dates\n", sum.Batches)
			}
			return runErr
		},
	}
	cmd.Flags().Int("stop-after", 0, "Stop after exactly N dates (0 = all)")
	cmd.Flags().Bool("eager", false, "Load the event log into memory once")
	cmd.Flags().Int("progress-every", 0, "Log progress every N dates")
	cmd.Flags().Bool("dry-run", false, "Keep motifs in memory, write nothing")
	cmd.Flags().Bool("json", false, "JSON output")
	addSinkFlags(cmd)
	return cmd
}

// attributeCounts renders per-attribute actor counts in ascending
// attribute order, e.g. "0=1 1=1 2=2".
func attributeCounts(counts map[int64]int) string {
	parts := make([]string, 0, len(counts))
	for _, attr := range slices.Sorted(maps.Keys(counts)) {
		parts = append(parts, fmt.Sprintf("%d=%d", attr, counts[attr]))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}

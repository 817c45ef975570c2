package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/daviddao/triadic/pkg/model"
	"github.com/daviddao/triadic/pkg/store"
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show table sizes, motif counts by type and recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			runLimit, _ := cmd.Flags().GetInt("runs")
			runID, _ := cmd.Flags().GetString("run")

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			if runID != "" {
				run, err := a.store.GetRun(ctx, runID)
				if err != nil {
					return err
				}
				if jsonOut {
					printJSON(a.out, run)
					return nil
				}
				printRun(a.out, *run)
				return nil
			}
			if err := a.applySinkFlags(cmd); err != nil {
				return err
			}
			sink, closeSink, err := a.openSink()
			if err != nil {
				return err
			}
			defer closeSink()

			counts, err := a.store.Counts(ctx)
			if err != nil {
				return err
			}
			byType, err := sink.CountByType(ctx)
			if err != nil {
				return err
			}
			total, err := sink.CountMotifs(ctx)
			if err != nil {
				return err
			}
			runs, err := a.store.ListRuns(ctx, runLimit)
			if err != nil {
				return err
			}

			if jsonOut {
				printJSON(a.out, struct {
					Tables store.Counts              `json:"tables"`
					Sink   string                    `json:"sink"`
					Motifs map[model.MotifType]int64 `json:"motifs"`
					Runs   []model.Run               `json:"runs"`
				}{counts, a.cfg.Sink.Kind, byType, runs})
				return nil
			}

			fmt.Fprintln(a.out, "tables:")
			fmt.Fprintf(a.out, "  actors:          %d\n", counts.Actors)
			fmt.Fprintf(a.out, "  projects:        %d\n", counts.Projects)
			fmt.Fprintf(a.out, "  collaborations:  %d\n", counts.Collaborations)
			fmt.Fprintf(a.out, "motifs (%s):\n", a.cfg.Sink.Kind)
			for _, typ := range model.MotifTypes {
				fmt.Fprintf(a.out, "  %-28s %d\n", typ, byType[typ])
			}
			fmt.Fprintf(a.out, "  %-28s %d\n", "total", total)
			if len(runs) > 0 {
				fmt.Fprintln(a.out, "runs:")
				for _, r := range runs {
					fmt.Fprintf(a.out, "  %s  %s  %-9s dates=%d motifs=%d",
						r.ID[:8], r.StartedAt.Local().Format(time.DateTime), r.Status, r.Batches, r.Motifs)
					if r.Error != "" {
						fmt.Fprintf(a.out, "  error=%q", r.Error)
					}
					fmt.Fprintln(a.out)
				}
			}
			return nil
		},
	}
	cmd.Flags().Int("runs", 5, "Number of recent runs to show")
	cmd.Flags().String("run", "", "Show a single run by ID")
	cmd.Flags().Bool("json", false, "JSON output")
	addSinkFlags(cmd)
	return cmd
}

func printRun(w io.Writer, r model.Run) {
	fmt.Fprintf(w, "run %s\n", r.ID)
	fmt.Fprintf(w, "  status:    %s\n", r.Status)
	fmt.Fprintf(w, "  started:   %s\n", r.StartedAt.Local().Format(time.DateTime))
	if !r.FinishedAt.IsZero() {
		fmt.Fprintf(w, "  finished:  %s (%s)\n",
			r.FinishedAt.Local().Format(time.DateTime), r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintf(w, "  dates:     %d\n", r.Batches)
	fmt.Fprintf(w, "  motifs:    %d\n", r.Motifs)
	if r.Error != "" {
		fmt.Fprintf(w, "  error:     %s\n", r.Error)
	}
}

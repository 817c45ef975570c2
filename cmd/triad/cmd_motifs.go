package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/daviddao/triadic/pkg/model"
)

func newMotifsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "motifs",
		Short: "List recorded motifs",
		Example: `
# First 20 brokers
triad motifs --type broker --limit 20

# Everything in the Badger sink as JSON
triad motifs --sink badger --badger-dir ./motifs --limit 1000 --json
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, _ := cmd.Flags().GetString("type")
			limit, _ := cmd.Flags().GetInt("limit")
			jsonOut, _ := cmd.Flags().GetBool("json")
			if typ != "" && !model.MotifType(typ).Valid() {
				return fmt.Errorf("unknown motif type %q", typ)
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.applySinkFlags(cmd); err != nil {
				return err
			}
			sink, closeSink, err := a.openSink()
			if err != nil {
				return err
			}
			defer closeSink()

			motifs, err := sink.ListMotifs(cmd.Context(), model.MotifType(typ), limit)
			if err != nil {
				return err
			}
			if jsonOut {
				printJSON(a.out, motifs)
				return nil
			}
			if len(motifs) == 0 {
				fmt.Fprintln(a.out, "(no motifs)")
				return nil
			}
			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "A\tB\tC\tP_AB\tP_BC\tP_AC\tTYPE\tOPEN\tCLOSE")
			for _, m := range motifs {
				fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\t%d\t%s\t%s\t%s\n",
					m.A, m.B, m.C, m.ProjectAB, m.ProjectBC, m.ProjectAC,
					m.Type, days(m.OpenDuration), days(m.CloseDuration))
			}
			return w.Flush()
		},
	}
	cmd.Flags().String("type", "", "Filter by motif type")
	cmd.Flags().Int("limit", 100, "Maximum number of motifs")
	cmd.Flags().Bool("json", false, "JSON output")
	addSinkFlags(cmd)
	return cmd
}

func days(d *time.Duration) string {
	if d == nil {
		return "-"
	}
	return fmt.Sprintf("%dd", int64(*d/(24*time.Hour)))
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			counts, err := a.store.Counts(cmd.Context())
			if err != nil {
				return fmt.Errorf("init: database error: %w", err)
			}
			fmt.Fprintf(a.out, "initialized triad (db: %s)\n", a.cfg.Database.Path)
			fmt.Fprintf(a.out, "  actors: %d  projects: %d  collaborations: %d  motifs: %d\n",
				counts.Actors, counts.Projects, counts.Collaborations, counts.Motifs)
			return nil
		},
	}
}

package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/daviddao/triadic/pkg/model"
)

// importChunk is the number of rows written per transaction.
const importChunk = 5000

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load actors, projects and collaborations from CSV",
		Long: `Load the event log from CSV files with a header row. Extra columns are
ignored.

  actors          id, gender
  projects        id, timestamp   (YYYY-MM-DD, RFC 3339 or Unix seconds)
  collaborations  id, id_collaborator, id_project

Re-importing is safe: actors and projects are upserted, existing
collaboration IDs are kept.`,
		Example: `
# Load the three tables
triad import --actors actors.csv --projects projects.csv --collaborations collaborations.csv
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			actorsPath, _ := cmd.Flags().GetString("actors")
			projectsPath, _ := cmd.Flags().GetString("projects")
			collabsPath, _ := cmd.Flags().GetString("collaborations")
			if actorsPath == "" && projectsPath == "" && collabsPath == "" {
				return errors.New("import: nothing to do, pass --actors, --projects or --collaborations")
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			if actorsPath != "" {
				n, err := importActors(ctx, a, actorsPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "imported %d actors from %s\n", n, actorsPath)
			}
			if projectsPath != "" {
				n, err := importProjects(ctx, a, projectsPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "imported %d projects from %s\n", n, projectsPath)
			}
			if collabsPath != "" {
				n, err := importCollaborations(ctx, a, collabsPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "imported %d collaborations from %s\n", n, collabsPath)
			}
			return nil
		},
	}
	cmd.Flags().String("actors", "", "actors CSV file")
	cmd.Flags().String("projects", "", "projects CSV file")
	cmd.Flags().String("collaborations", "", "collaborations CSV file")
	return cmd
}

func importActors(ctx context.Context, a *app, path string) (int, error) {
	var batch []model.Actor
	n, err := readCSV(path, []string{"id", "gender"}, func(rec []string) error {
		id, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			return fmt.Errorf("id: %w", err)
		}
		gender, err := strconv.ParseInt(rec[1], 10, 64)
		if err != nil {
			return fmt.Errorf("gender: %w", err)
		}
		batch = append(batch, model.Actor{ID: model.ActorID(id), Attribute: gender})
		if len(batch) == importChunk {
			err = a.store.InsertActors(ctx, batch)
			batch = batch[:0]
		}
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, a.store.InsertActors(ctx, batch)
}

func importProjects(ctx context.Context, a *app, path string) (int, error) {
	var batch []model.Project
	n, err := readCSV(path, []string{"id", "timestamp"}, func(rec []string) error {
		id, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			return fmt.Errorf("id: %w", err)
		}
		ts, err := parseTimestamp(rec[1])
		if err != nil {
			return err
		}
		batch = append(batch, model.Project{ID: model.ProjectID(id), Timestamp: ts})
		if len(batch) == importChunk {
			err = a.store.InsertProjects(ctx, batch)
			batch = batch[:0]
		}
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, a.store.InsertProjects(ctx, batch)
}

func importCollaborations(ctx context.Context, a *app, path string) (int, error) {
	var batch []model.Collaboration
	n, err := readCSV(path, []string{"id", "id_collaborator", "id_project"}, func(rec []string) error {
		var ids [3]int64
		for i, field := range rec {
			v, err := strconv.ParseInt(field, 10, 64)
			if err != nil {
				return err
			}
			ids[i] = v
		}
		batch = append(batch, model.Collaboration{
			ID:        model.CollaborationID(ids[0]),
			ActorID:   model.ActorID(ids[1]),
			ProjectID: model.ProjectID(ids[2]),
		})
		if len(batch) == importChunk {
			err := a.store.InsertCollaborations(ctx, batch)
			batch = batch[:0]
			return err
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, a.store.InsertCollaborations(ctx, batch)
}

// readCSV streams the rows of a CSV file with a header, passing fn the
// columns named by want in that order. It returns the number of rows read.
func readCSV(path string, want []string, fn func(rec []string) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.ReuseRecord = true
	header, err := r.Read()
	if err != nil {
		return 0, fmt.Errorf("%s: read header: %w", path, err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	idx := make([]int, len(want))
	for i, name := range want {
		j, ok := col[name]
		if !ok {
			return 0, fmt.Errorf("%s: missing column %q", path, name)
		}
		idx[i] = j
	}

	rec := make([]string, len(want))
	n := 0
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("%s: %w", path, err)
		}
		for i, j := range idx {
			rec[i] = row[j]
		}
		line, _ := r.FieldPos(0)
		if err := fn(rec); err != nil {
			return n, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		n++
	}
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.DateOnly, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("timestamp %q: unrecognized format", s)
}

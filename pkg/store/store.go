// Package store manages SQLite persistence for triadic.
//
// One database holds the input event log (actors, projects, collaborations),
// the detected motifs and the run ledger. The motif table carries a unique
// index on the canonical (a, b, c) triple so that repeated runs over the
// same log never duplicate a closure.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/daviddao/triadic/pkg/model"

	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned when a run ID is not in the ledger.
var ErrRunNotFound = errors.New("store: run not found")

// timeLayout is fixed width so that stored times sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store manages all SQLite operations with WAL mode for concurrent access.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database and initializes the schema.
func New(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// retryOnContention runs fn under the default retry policy. Every write
// goes through it.
func retryOnContention(ctx context.Context, fn func() error) error {
	return retryOp(ctx, defaultRetryConfig, fn)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS actor (
		id     INTEGER PRIMARY KEY,
		gender INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS project (
		id        INTEGER PRIMARY KEY,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_project_timestamp ON project(timestamp, id);

	CREATE TABLE IF NOT EXISTS collaboration (
		id              INTEGER PRIMARY KEY,
		id_collaborator INTEGER NOT NULL,
		id_project      INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_collaboration_project ON collaboration(id_project, id_collaborator);

	CREATE TABLE IF NOT EXISTS triadic_closure_motif (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		id_collaborator_a INTEGER NOT NULL,
		id_collaborator_b INTEGER NOT NULL,
		id_collaborator_c INTEGER NOT NULL,
		id_project_ab     INTEGER NOT NULL,
		id_project_bc     INTEGER NOT NULL,
		id_project_ac     INTEGER NOT NULL,
		motif_type        TEXT NOT NULL,
		open_duration     INTEGER,
		close_duration    INTEGER
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_collaborator_motif_triplet
		ON triadic_closure_motif(id_collaborator_a, id_collaborator_b, id_collaborator_c);
	CREATE INDEX IF NOT EXISTS idx_motif_type ON triadic_closure_motif(motif_type);

	CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		started_at  TEXT NOT NULL,
		finished_at TEXT,
		batches     INTEGER NOT NULL DEFAULT 0,
		motifs      INTEGER NOT NULL DEFAULT 0,
		status      TEXT NOT NULL,
		error       TEXT
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ---------------------------------------------------------------------------
// Event log
// ---------------------------------------------------------------------------

// InsertActors upserts actors. Re-importing an actor updates its attribute.
func (s *Store) InsertActors(ctx context.Context, actors []model.Actor) error {
	return s.execBatch(ctx,
		`INSERT INTO actor (id, gender) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET gender = excluded.gender`,
		len(actors), func(i int) []any {
			return []any{int64(actors[i].ID), actors[i].Attribute}
		})
}

// InsertProjects upserts projects. Timestamps are stored as Unix seconds.
func (s *Store) InsertProjects(ctx context.Context, projects []model.Project) error {
	return s.execBatch(ctx,
		`INSERT INTO project (id, timestamp) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET timestamp = excluded.timestamp`,
		len(projects), func(i int) []any {
			return []any{int64(projects[i].ID), projects[i].Timestamp.Unix()}
		})
}

// InsertCollaborations adds authorship rows. Existing IDs are left as is.
// The Timestamp field is ignored; it is derived from the project.
func (s *Store) InsertCollaborations(ctx context.Context, collabs []model.Collaboration) error {
	return s.execBatch(ctx,
		`INSERT INTO collaboration (id, id_collaborator, id_project) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		len(collabs), func(i int) []any {
			c := collabs[i]
			return []any{int64(c.ID), int64(c.ActorID), int64(c.ProjectID)}
		})
}

// execBatch runs one prepared statement n times inside a transaction.
func (s *Store) execBatch(ctx context.Context, query string, n int, args func(i int) []any) error {
	if n == 0 {
		return nil
	}
	return retryOnContention(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i := 0; i < n; i++ {
			if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// ListActors returns every actor ordered by ID.
func (s *Store) ListActors(ctx context.Context) ([]model.Actor, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, gender FROM actor ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actors []model.Actor
	for rows.Next() {
		var a model.Actor
		if err := rows.Scan(&a.ID, &a.Attribute); err != nil {
			return nil, err
		}
		actors = append(actors, a)
	}
	return actors, rows.Err()
}

// ListCollaborations returns the event log ordered by (timestamp, project,
// actor). A collaboration whose project is missing is returned with a zero
// Timestamp, and sorts first.
func (s *Store) ListCollaborations(ctx context.Context) ([]model.Collaboration, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.id_collaborator, c.id_project, p.timestamp
		 FROM collaboration c LEFT JOIN project p ON p.id = c.id_project
		 ORDER BY p.timestamp ASC, c.id_project ASC, c.id_collaborator ASC, c.id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Collaboration
	for rows.Next() {
		var c model.Collaboration
		var ts sql.NullInt64
		if err := rows.Scan(&c.ID, &c.ActorID, &c.ProjectID, &ts); err != nil {
			return nil, err
		}
		if ts.Valid {
			c.Timestamp = time.Unix(ts.Int64, 0).UTC()
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Counts reports the size of each table.
type Counts struct {
	Actors         int64 `json:"actors"`
	Projects       int64 `json:"projects"`
	Collaborations int64 `json:"collaborations"`
	Motifs         int64 `json:"motifs"`
	Runs           int64 `json:"runs"`
}

// Counts returns the row count of every table.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	for _, q := range []struct {
		table string
		dst   *int64
	}{
		{"actor", &c.Actors},
		{"project", &c.Projects},
		{"collaboration", &c.Collaborations},
		{"triadic_closure_motif", &c.Motifs},
		{"runs", &c.Runs},
	} {
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+q.table).Scan(q.dst); err != nil {
			return Counts{}, fmt.Errorf("count %s: %w", q.table, err)
		}
	}
	return c, nil
}

// ---------------------------------------------------------------------------
// Motifs
// ---------------------------------------------------------------------------

// InsertMotifs writes a batch in one transaction. Rows whose (a, b, c)
// triple already exists are skipped; the return value counts new rows.
func (s *Store) InsertMotifs(ctx context.Context, motifs []model.Motif) (int, error) {
	if len(motifs) == 0 {
		return 0, nil
	}
	var inserted int
	err := retryOnContention(ctx, func() error {
		inserted = 0
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO triadic_closure_motif
			   (id_collaborator_a, id_collaborator_b, id_collaborator_c,
			    id_project_ab, id_project_bc, id_project_ac,
			    motif_type, open_duration, close_duration)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id_collaborator_a, id_collaborator_b, id_collaborator_c) DO NOTHING`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, m := range motifs {
			res, err := stmt.ExecContext(ctx,
				int64(m.A), int64(m.B), int64(m.C),
				int64(m.ProjectAB), int64(m.ProjectBC), int64(m.ProjectAC),
				string(m.Type), seconds(m.OpenDuration), seconds(m.CloseDuration))
			if err != nil {
				return fmt.Errorf("insert motif (%d,%d,%d): %w", m.A, m.B, m.C, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			inserted += int(n)
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// ListMotifs returns stored motifs in insertion order. An empty typ matches
// every type; limit <= 0 defaults to 100.
func (s *Store) ListMotifs(ctx context.Context, typ model.MotifType, limit int) ([]model.Motif, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id_collaborator_a, id_collaborator_b, id_collaborator_c,
		        id_project_ab, id_project_bc, id_project_ac,
		        motif_type, open_duration, close_duration
		 FROM triadic_closure_motif
		 WHERE (? = '' OR motif_type = ?)
		 ORDER BY id ASC LIMIT ?`,
		string(typ), string(typ), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMotifs(rows)
}

// CountMotifs returns the number of stored motifs.
func (s *Store) CountMotifs(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM triadic_closure_motif`).Scan(&n)
	return n, err
}

// CountByType returns the number of stored motifs per type. Types with no
// motifs are absent from the map.
func (s *Store) CountByType(ctx context.Context) (map[model.MotifType]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT motif_type, COUNT(*) FROM triadic_closure_motif GROUP BY motif_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.MotifType]int64)
	for rows.Next() {
		var typ string
		var n int64
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		counts[model.MotifType(typ)] = n
	}
	return counts, rows.Err()
}

func scanMotifs(rows *sql.Rows) ([]model.Motif, error) {
	var motifs []model.Motif
	for rows.Next() {
		var m model.Motif
		var typ string
		var open, closing sql.NullInt64
		if err := rows.Scan(&m.A, &m.B, &m.C, &m.ProjectAB, &m.ProjectBC, &m.ProjectAC,
			&typ, &open, &closing); err != nil {
			return nil, err
		}
		m.Type = model.MotifType(typ)
		m.OpenDuration = duration(open)
		m.CloseDuration = duration(closing)
		motifs = append(motifs, m)
	}
	return motifs, rows.Err()
}

// ---------------------------------------------------------------------------
// Run ledger
// ---------------------------------------------------------------------------

// StartRun records a new run in the running state.
func (s *Store) StartRun(ctx context.Context) (*model.Run, error) {
	run := &model.Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Status:    model.RunRunning,
	}
	err := retryOnContention(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO runs (id, started_at, status) VALUES (?, ?, ?)`,
			run.ID, run.StartedAt.Format(timeLayout), string(run.Status))
		return err
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

// FinishRun persists the final counters and status of run.
func (s *Store) FinishRun(ctx context.Context, run *model.Run) error {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}
	return retryOnContention(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE runs SET finished_at = ?, batches = ?, motifs = ?, status = ?, error = ?
			 WHERE id = ?`,
			run.FinishedAt.Format(timeLayout), run.Batches, run.Motifs,
			string(run.Status), nullString(run.Error), run.ID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("finish run %s: %w", run.ID, ErrRunNotFound)
		}
		return nil
	})
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*model.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, COALESCE(finished_at,''), batches, motifs, status, COALESCE(error,'')
		 FROM runs WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("run %s: %w", id, ErrRunNotFound)
	}
	return &runs[0], nil
}

// ListRuns returns the most recent runs first. limit <= 0 defaults to 20.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, COALESCE(finished_at,''), batches, motifs, status, COALESCE(error,'')
		 FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRuns(rows)
}

func scanRuns(rows *sql.Rows) ([]model.Run, error) {
	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var startStr, finishStr, status string
		if err := rows.Scan(&r.ID, &startStr, &finishStr, &r.Batches, &r.Motifs, &status, &r.Error); err != nil {
			return nil, err
		}
		r.Status = model.RunStatus(status)
		var parseErr error
		r.StartedAt, parseErr = time.Parse(timeLayout, startStr)
		if parseErr != nil {
			return nil, fmt.Errorf("parse started_at for run %s: %w", r.ID, parseErr)
		}
		if finishStr != "" {
			r.FinishedAt, parseErr = time.Parse(timeLayout, finishStr)
			if parseErr != nil {
				return nil, fmt.Errorf("parse finished_at for run %s: %w", r.ID, parseErr)
			}
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func seconds(d *time.Duration) any {
	if d == nil {
		return nil
	}
	return int64(*d / time.Second)
}

func duration(v sql.NullInt64) *time.Duration {
	if !v.Valid {
		return nil
	}
	d := time.Duration(v.Int64) * time.Second
	return &d
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

package store

import (
	"context"

	"github.com/daviddao/triadic/pkg/model"
)

// EventLog is the input side of the store: the actor population and the
// ordered collaboration stream consumed by pkg/stream.
type EventLog interface {
	InsertActors(ctx context.Context, actors []model.Actor) error
	InsertProjects(ctx context.Context, projects []model.Project) error
	InsertCollaborations(ctx context.Context, collabs []model.Collaboration) error

	// ListActors returns every actor ordered by ID.
	ListActors(ctx context.Context) ([]model.Actor, error)

	// ListCollaborations returns events ordered by (timestamp, project, actor).
	ListCollaborations(ctx context.Context) ([]model.Collaboration, error)
}

// MotifStore is a motif sink that can also be queried. Both the SQLite
// store and the Badger store in pkg/kvstore implement it.
type MotifStore interface {
	// InsertMotifs writes motifs whose (a, b, c) triple is new and returns
	// how many were written.
	InsertMotifs(ctx context.Context, motifs []model.Motif) (int, error)

	ListMotifs(ctx context.Context, typ model.MotifType, limit int) ([]model.Motif, error)
	CountMotifs(ctx context.Context) (int64, error)
	CountByType(ctx context.Context) (map[model.MotifType]int64, error)
}

// RunLedger records the lifecycle of detection runs.
type RunLedger interface {
	StartRun(ctx context.Context) (*model.Run, error)
	FinishRun(ctx context.Context, run *model.Run) error
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)
}

// Compile-time checks that *Store implements every facet.
var (
	_ EventLog   = (*Store)(nil)
	_ MotifStore = (*Store)(nil)
	_ RunLedger  = (*Store)(nil)
)

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/daviddao/triadic/pkg/model"
)

var day0 = time.Date(1993, 7, 1, 0, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New(%q): %v", dbPath, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func durPtr(days int) *time.Duration {
	d := time.Duration(days) * 24 * time.Hour
	return &d
}

func sampleMotif(a, b, c int64, typ model.MotifType) model.Motif {
	return model.Motif{
		A: model.ActorID(a), B: model.ActorID(b), C: model.ActorID(c),
		ProjectAB: 10, ProjectBC: 11, ProjectAC: 12,
		Type: typ,
	}
}

// --- Event log ---

func seedLog(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	if err := s.InsertActors(ctx, []model.Actor{
		{ID: 3, Attribute: model.AttributeMale},
		{ID: 1, Attribute: model.AttributeFemale},
		{ID: 2},
	}); err != nil {
		t.Fatalf("InsertActors: %v", err)
	}
	if err := s.InsertProjects(ctx, []model.Project{
		{ID: 20, Timestamp: day0.AddDate(0, 0, 1)},
		{ID: 30, Timestamp: day0},
		{ID: 10, Timestamp: day0},
	}); err != nil {
		t.Fatalf("InsertProjects: %v", err)
	}
	if err := s.InsertCollaborations(ctx, []model.Collaboration{
		{ID: 1, ActorID: 3, ProjectID: 20},
		{ID: 2, ActorID: 2, ProjectID: 30},
		{ID: 3, ActorID: 1, ProjectID: 30},
		{ID: 4, ActorID: 2, ProjectID: 10},
		{ID: 5, ActorID: 1, ProjectID: 20},
	}); err != nil {
		t.Fatalf("InsertCollaborations: %v", err)
	}
}

func TestListActors_Ordered(t *testing.T) {
	s := newTestStore(t)
	seedLog(t, s)

	actors, err := s.ListActors(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(actors) != 3 {
		t.Fatalf("got %d actors, want 3", len(actors))
	}
	for i, want := range []model.Actor{{ID: 1, Attribute: 1}, {ID: 2}, {ID: 3, Attribute: 2}} {
		if actors[i] != want {
			t.Errorf("actors[%d] = %+v, want %+v", i, actors[i], want)
		}
	}
}

func TestInsertActors_Upsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.InsertActors(ctx, []model.Actor{{ID: 1, Attribute: 0}}); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertActors(ctx, []model.Actor{{ID: 1, Attribute: model.AttributeFemale}}); err != nil {
		t.Fatal(err)
	}
	actors, err := s.ListActors(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(actors) != 1 || actors[0].Attribute != model.AttributeFemale {
		t.Fatalf("got %+v, want single actor with attribute 1", actors)
	}
}

func TestListCollaborations_StreamOrder(t *testing.T) {
	s := newTestStore(t)
	seedLog(t, s)

	events, err := s.ListCollaborations(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var ids []model.CollaborationID
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	// day0: project 10 (actor 2), project 30 (actors 1, 2); day1: project 20 (actors 1, 3)
	want := []model.CollaborationID{4, 3, 2, 5, 1}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}
	if !events[0].Timestamp.Equal(day0) {
		t.Errorf("timestamp = %v, want %v", events[0].Timestamp, day0)
	}
	if events[0].Timestamp.Location() != time.UTC {
		t.Errorf("timestamp not in UTC: %v", events[0].Timestamp.Location())
	}
}

func TestListCollaborations_MissingProject(t *testing.T) {
	s := newTestStore(t)
	seedLog(t, s)
	ctx := context.Background()
	if err := s.InsertCollaborations(ctx, []model.Collaboration{{ID: 9, ActorID: 1, ProjectID: 999}}); err != nil {
		t.Fatal(err)
	}
	events, err := s.ListCollaborations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if events[0].ID != 9 || !events[0].Timestamp.IsZero() {
		t.Fatalf("orphan collaboration should sort first with zero timestamp, got %+v", events[0])
	}
}

func TestInsertCollaborations_KeepsExisting(t *testing.T) {
	s := newTestStore(t)
	seedLog(t, s)
	ctx := context.Background()
	if err := s.InsertCollaborations(ctx, []model.Collaboration{{ID: 1, ActorID: 2, ProjectID: 10}}); err != nil {
		t.Fatal(err)
	}
	c, err := s.Counts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if c.Collaborations != 5 {
		t.Errorf("collaborations = %d, want 5", c.Collaborations)
	}
}

func TestCounts(t *testing.T) {
	s := newTestStore(t)
	seedLog(t, s)
	c, err := s.Counts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := Counts{Actors: 3, Projects: 3, Collaborations: 5}
	if c != want {
		t.Errorf("Counts = %+v, want %+v", c, want)
	}
}

// --- Motifs ---

func TestInsertMotifs_InsertIfAbsent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := sampleMotif(1, 2, 3, model.MotifTriadicClosure)
	first.OpenDuration, first.CloseDuration = durPtr(2), durPtr(5)

	n, err := s.InsertMotifs(ctx, []model.Motif{first, sampleMotif(2, 3, 4, model.MotifInstant)})
	if err != nil {
		t.Fatalf("InsertMotifs: %v", err)
	}
	if n != 2 {
		t.Fatalf("inserted %d, want 2", n)
	}

	// same triple with a different type must be dropped
	n, err = s.InsertMotifs(ctx, []model.Motif{sampleMotif(1, 2, 3, model.MotifBroker), sampleMotif(4, 5, 6, model.MotifBroker)})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("inserted %d on replay, want 1", n)
	}

	total, err := s.CountMotifs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Fatalf("CountMotifs = %d, want 3", total)
	}

	got, err := s.ListMotifs(ctx, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Type != model.MotifTriadicClosure {
		t.Errorf("first motif type = %s, want the first-inserted triadic_closure", got[0].Type)
	}
	if got[0].OpenDuration == nil || *got[0].OpenDuration != *durPtr(2) {
		t.Errorf("open duration = %v, want 48h", got[0].OpenDuration)
	}
	if got[0].CloseDuration == nil || *got[0].CloseDuration != *durPtr(5) {
		t.Errorf("close duration = %v, want 120h", got[0].CloseDuration)
	}
	if got[1].OpenDuration != nil || got[1].CloseDuration != nil {
		t.Errorf("instant motif should have null durations, got %v/%v", got[1].OpenDuration, got[1].CloseDuration)
	}
}

func TestInsertMotifs_Empty(t *testing.T) {
	s := newTestStore(t)
	n, err := s.InsertMotifs(context.Background(), nil)
	if err != nil || n != 0 {
		t.Fatalf("InsertMotifs(nil) = %d, %v", n, err)
	}
}

func TestListMotifs_FilterAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.InsertMotifs(ctx, []model.Motif{
		sampleMotif(1, 2, 3, model.MotifBroker),
		sampleMotif(1, 2, 4, model.MotifInstant),
		sampleMotif(1, 2, 5, model.MotifBroker),
		sampleMotif(1, 2, 6, model.MotifBroker),
	}); err != nil {
		t.Fatal(err)
	}

	brokers, err := s.ListMotifs(ctx, model.MotifBroker, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(brokers) != 2 || brokers[0].C != 3 || brokers[1].C != 5 {
		t.Fatalf("got %+v, want brokers (1,2,3) and (1,2,5)", brokers)
	}

	counts, err := s.CountByType(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[model.MotifBroker] != 3 || counts[model.MotifInstant] != 1 {
		t.Errorf("CountByType = %v", counts)
	}
	if _, ok := counts[model.MotifTriadicClosure]; ok {
		t.Error("types without motifs should be absent")
	}
}

func TestInsertMotifs_Cancelled(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.InsertMotifs(ctx, []model.Motif{sampleMotif(1, 2, 3, model.MotifInstant)}); err == nil {
		t.Fatal("expected error on cancelled context")
	}
	n, err := s.CountMotifs(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("cancelled batch wrote %d rows", n)
	}
}

// --- Run ledger ---

func TestRunLedger(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.StartRun(ctx)
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if run.ID == "" || run.Status != model.RunRunning {
		t.Fatalf("StartRun = %+v", run)
	}

	run.Batches, run.Motifs, run.Status = 7, 3, model.RunCompleted
	if err := s.FinishRun(ctx, run); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Batches != 7 || got.Motifs != 3 || got.Status != model.RunCompleted || got.Error != "" {
		t.Errorf("GetRun = %+v", got)
	}
	if got.FinishedAt.IsZero() {
		t.Error("FinishedAt not persisted")
	}

	second, err := s.StartRun(ctx)
	if err != nil {
		t.Fatal(err)
	}
	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != second.ID {
		t.Fatalf("ListRuns should return newest first, got %+v", runs)
	}
	if !runs[0].FinishedAt.IsZero() {
		t.Error("running run should have no finish time")
	}
}

func TestRunLedger_FailedRunKeepsError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	run, err := s.StartRun(ctx)
	if err != nil {
		t.Fatal(err)
	}
	run.Status, run.Error = model.RunFailed, "stream: event out of order"
	if err := s.FinishRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Error != run.Error {
		t.Errorf("error = %q, want %q", got.Error, run.Error)
	}
}

func TestRunLedger_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.GetRun(ctx, "nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun: got %v, want ErrRunNotFound", err)
	}
	if err := s.FinishRun(ctx, &model.Run{ID: "nope", Status: model.RunFailed}); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("FinishRun: got %v, want ErrRunNotFound", err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.InsertMotifs(context.Background(), []model.Motif{sampleMotif(1, 2, 3, model.MotifInstant)}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s2, err := New(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	n, err := s2.CountMotifs(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("CountMotifs after reopen = %d, want 1", n)
	}
}

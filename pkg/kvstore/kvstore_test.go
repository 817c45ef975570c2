package kvstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daviddao/triadic/pkg/model"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func motif(a, b, c int64, typ model.MotifType) model.Motif {
	return model.Motif{
		A: model.ActorID(a), B: model.ActorID(b), C: model.ActorID(c),
		ProjectAB: 1, ProjectBC: 2, ProjectAC: 3,
		Type: typ,
	}
}

func TestInsertMotifs_InsertIfAbsent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	open := 72 * time.Hour
	first := motif(1, 2, 3, model.MotifInitiationLink)
	first.OpenDuration = &open

	n, err := s.InsertMotifs(ctx, []model.Motif{first, motif(1, 2, 3, model.MotifBroker), motif(2, 3, 4, model.MotifInstant)})
	require.NoError(t, err)
	assert.Equal(t, 2, n, "repeat within a batch is dropped")

	n, err = s.InsertMotifs(ctx, []model.Motif{motif(1, 2, 3, model.MotifInstant)})
	require.NoError(t, err)
	assert.Zero(t, n)

	stored, err := s.ListMotifs(ctx, model.MotifInitiationLink, 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	got := stored[0]
	assert.Equal(t, [3]model.ActorID{1, 2, 3}, [3]model.ActorID{got.A, got.B, got.C})
	require.NotNil(t, got.OpenDuration)
	assert.Equal(t, open, *got.OpenDuration)
	assert.Nil(t, got.CloseDuration)

	brokers, err := s.ListMotifs(ctx, model.MotifBroker, 0)
	require.NoError(t, err)
	assert.Empty(t, brokers, "rejected duplicates must not reach the type index")
	instants, err := s.ListMotifs(ctx, model.MotifInstant, 0)
	require.NoError(t, err)
	require.Len(t, instants, 1)
	assert.Equal(t, model.ActorID(2), instants[0].A)
}

func TestListMotifs_KeyOrderAndFilter(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.InsertMotifs(ctx, []model.Motif{
		motif(10, 2, 3, model.MotifBroker),
		motif(9, 2, 3, model.MotifInstant),
		motif(2, 3, 100, model.MotifBroker),
	})
	require.NoError(t, err)

	all, err := s.ListMotifs(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	// zero padding keeps numeric order: 2 < 9 < 10
	assert.Equal(t, []model.ActorID{2, 9, 10}, []model.ActorID{all[0].A, all[1].A, all[2].A})

	brokers, err := s.ListMotifs(ctx, model.MotifBroker, 0)
	require.NoError(t, err)
	require.Len(t, brokers, 2)
	assert.Equal(t, model.ActorID(2), brokers[0].A)
	assert.Equal(t, model.ActorID(10), brokers[1].A)

	limited, err := s.ListMotifs(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestCountByType(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.InsertMotifs(ctx, []model.Motif{
		motif(1, 2, 3, model.MotifBroker),
		motif(1, 2, 4, model.MotifSimplicialBroker),
		motif(1, 2, 5, model.MotifSimplicialBroker),
		motif(1, 2, 6, model.MotifTriadicClosure),
	})
	require.NoError(t, err)

	counts, err := s.CountByType(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[model.MotifType]int64{
		model.MotifBroker:           1,
		model.MotifSimplicialBroker: 2,
		model.MotifTriadicClosure:   1,
	}, counts)

	total, err := s.CountMotifs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
}

func TestInsertMotifs_LargeBatchSpansTransactions(t *testing.T) {
	s := newStore(t)
	var batch []model.Motif
	for i := int64(0); i < maxBatch*2+5; i++ {
		batch = append(batch, motif(1, 2, 3+i, model.MotifInstant))
	}
	n, err := s.InsertMotifs(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, len(batch), n)

	total, err := s.CountMotifs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(len(batch)), total)
}

func TestInsertMotifs_RejectsUnknownType(t *testing.T) {
	s := newStore(t)
	_, err := s.InsertMotifs(context.Background(), []model.Motif{motif(1, 2, 3, "square")})
	assert.True(t, errors.Is(err, ErrInvalidMotif))

	total, err := s.CountMotifs(context.Background())
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestClosed(t *testing.T) {
	s, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "double close is a no-op")

	_, err = s.InsertMotifs(context.Background(), []model.Motif{motif(1, 2, 3, model.MotifInstant)})
	assert.True(t, errors.Is(err, ErrClosed))
	_, err = s.ListMotifs(context.Background(), "", 0)
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(Options{Dir: dir})
	require.NoError(t, err)
	_, err = s.InsertMotifs(context.Background(), []model.Motif{motif(1, 2, 3, model.MotifInstant)})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := Open(Options{Dir: dir})
	require.NoError(t, err)
	defer s2.Close()
	n, err := s2.CountMotifs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestOpenRequiresDir(t *testing.T) {
	_, err := Open(Options{})
	assert.Error(t, err)
}

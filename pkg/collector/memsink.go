package collector

import (
	"context"
	"sync"

	"github.com/daviddao/triadic/pkg/model"
)

// MemorySink is an in-memory Sink with the same insert-if-absent contract
// as the persistent sinks. It backs dry runs and tests.
type MemorySink struct {
	mu     sync.Mutex
	seen   map[[3]model.ActorID]struct{}
	motifs []model.Motif
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{seen: make(map[[3]model.ActorID]struct{})}
}

// InsertMotifs stores every motif whose unordered actor triple is new.
func (s *MemorySink) InsertMotifs(_ context.Context, motifs []model.Motif) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range motifs {
		key := m.Triple()
		if _, ok := s.seen[key]; ok {
			continue
		}
		s.seen[key] = struct{}{}
		s.motifs = append(s.motifs, m)
		n++
	}
	return n, nil
}

// Motifs returns a copy of the stored motifs in insertion order.
func (s *MemorySink) Motifs() []model.Motif {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Motif(nil), s.motifs...)
}

// Len returns the number of stored motifs.
func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.motifs)
}

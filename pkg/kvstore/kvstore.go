// Package kvstore is a motif sink backed by BadgerDB.
//
// Each motif is stored once under its canonical triple:
//
//	m/<a>/<b>/<c>          -> JSON-encoded model.Motif
//	t/<type>/<a>/<b>/<c>   -> m/<a>/<b>/<c> (type index)
//
// Actor IDs are zero-padded to 20 digits so that keys sort numerically.
// Inserts follow the same insert-if-absent contract as the SQLite sink: a
// triple already present is left untouched.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/daviddao/triadic/pkg/model"
)

const (
	prefixMotif = "m/"
	prefixType  = "t/"

	// maxBatch bounds the writes per transaction to stay below Badger's
	// transaction size limit.
	maxBatch = 1000
)

var (
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("kvstore: closed")

	// ErrInvalidMotif is returned for a motif with an unknown type.
	ErrInvalidMotif = errors.New("kvstore: invalid motif")
)

// Options configures a Store.
type Options struct {
	// Dir is the data directory. Required unless InMemory is set.
	Dir string

	// InMemory keeps all data in RAM. Used by tests.
	InMemory bool

	// SyncWrites fsyncs after every commit.
	SyncWrites bool

	// Logger receives Badger's internal log lines. Nil silences them.
	Logger badger.Logger
}

// Store is a Badger-backed motif store. It is safe for concurrent use.
type Store struct {
	db     *badger.DB
	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) a store with opts.
func Open(opts Options) (*Store, error) {
	if opts.Dir == "" && !opts.InMemory {
		return nil, errors.New("kvstore: data directory is required")
	}
	bopts := badger.DefaultOptions(opts.Dir).
		WithInMemory(opts.InMemory).
		WithSyncWrites(opts.SyncWrites).
		WithLogger(opts.Logger).
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2).
		WithBlockCacheSize(32 << 20).
		WithIndexCacheSize(16 << 20)
	if opts.InMemory {
		bopts.Dir, bopts.ValueDir = "", ""
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database. Further calls return ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) check() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func motifKey(a, b, c model.ActorID) []byte {
	return fmt.Appendf(nil, "%s%020d/%020d/%020d", prefixMotif, a, b, c)
}

func typeKey(typ model.MotifType, a, b, c model.ActorID) []byte {
	return fmt.Appendf(nil, "%s%s/%020d/%020d/%020d", prefixType, typ, a, b, c)
}

func typePrefix(typ model.MotifType) []byte {
	return []byte(prefixType + string(typ) + "/")
}

// InsertMotifs stores every motif whose (A, B, C) key is absent and returns
// how many were written.
func (s *Store) InsertMotifs(ctx context.Context, motifs []model.Motif) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	inserted := 0
	for start := 0; start < len(motifs); start += maxBatch {
		if err := ctx.Err(); err != nil {
			return inserted, err
		}
		chunk := motifs[start:min(start+maxBatch, len(motifs))]
		n := 0
		err := s.db.Update(func(txn *badger.Txn) error {
			n = 0
			for _, m := range chunk {
				if !m.Type.Valid() {
					return fmt.Errorf("motif (%d,%d,%d) type %q: %w", m.A, m.B, m.C, m.Type, ErrInvalidMotif)
				}
				// Get sees this transaction's pending writes, so repeats
				// within the chunk are skipped too.
				key := motifKey(m.A, m.B, m.C)
				_, err := txn.Get(key)
				if err == nil {
					continue
				}
				if !errors.Is(err, badger.ErrKeyNotFound) {
					return err
				}
				data, err := json.Marshal(m)
				if err != nil {
					return fmt.Errorf("encode motif: %w", err)
				}
				if err := txn.Set(key, data); err != nil {
					return err
				}
				if err := txn.Set(typeKey(m.Type, m.A, m.B, m.C), key); err != nil {
					return err
				}
				n++
			}
			return nil
		})
		if err != nil {
			return inserted, err
		}
		inserted += n
	}
	return inserted, nil
}

// ListMotifs returns stored motifs in key order, that is by ascending
// (A, B, C). A non-empty typ walks the type index instead of the motif
// keys. limit <= 0 defaults to 100.
func (s *Store) ListMotifs(ctx context.Context, typ model.MotifType, limit int) ([]model.Motif, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	var motifs []model.Motif
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(prefixMotif)
		if typ != "" {
			prefix = typePrefix(typ)
		}
		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(motifs) < limit; it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			if typ != "" {
				ref, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				if item, err = txn.Get(ref); err != nil {
					return fmt.Errorf("resolve %s: %w", ref, err)
				}
			}
			var m model.Motif
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", item.Key(), err)
			}
			motifs = append(motifs, m)
		}
		return nil
	})
	return motifs, err
}

// CountMotifs returns the number of stored motifs.
func (s *Store) CountMotifs(ctx context.Context) (int64, error) {
	counts, err := s.CountByType(ctx)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	return total, nil
}

// CountByType returns the number of stored motifs per type, scanning only
// the type index keys.
func (s *Store) CountByType(ctx context.Context) (map[model.MotifType]int64, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	counts := make(map[model.MotifType]int64)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		for _, typ := range model.MotifTypes {
			if err := ctx.Err(); err != nil {
				return err
			}
			prefix := typePrefix(typ)
			it := txn.NewIterator(opts)
			var n int64
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				n++
			}
			it.Close()
			if n > 0 {
				counts[typ] = n
			}
		}
		return nil
	})
	return counts, err
}

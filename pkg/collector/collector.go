// Package collector tracks open wedges on a growing network and records
// every triadic closure exactly once.
//
// The collector follows three rules:
//
//   - Currency: a wedge opens at the FIRST link between apex and far actor,
//     however many co-occurrences that pair accumulated since.
//   - Recurrence: once a pair closes, its wedge set is consumed and the
//     triangle is never reported again.
//   - Simplicial dominance: a closure whose three actors co-occur in any
//     project published on the closing date is tagged simplicial.
//
// Closed motifs accumulate per date and are flushed to the Sink as one
// batch when the date completes.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/daviddao/triadic/pkg/model"
	"github.com/daviddao/triadic/pkg/motif"
	"github.com/daviddao/triadic/pkg/network"
	"github.com/daviddao/triadic/pkg/order"
)

// Sink persists motif batches. Inserts are insert-if-absent on the
// canonical (A, B, C) triple; inserted reports how many rows were new.
type Sink interface {
	InsertMotifs(ctx context.Context, motifs []model.Motif) (inserted int, err error)
}

// openWedge is a pending wedge keyed by its apex: the apex was first linked
// to far at firstAt (via projectFar) and completed the wedge by linking to
// the other outer actor at secondAt (via projectNear).
type openWedge struct {
	far         model.ActorID
	projectFar  model.ProjectID
	projectNear model.ProjectID
	firstAt     time.Time
	secondAt    time.Time
}

type phase uint8

const (
	phaseAbsent phase = iota
	phasePending
	phaseConsumed
)

// wedgeState is the state of one outer pair. A missing map entry is the
// absent phase.
type wedgeState struct {
	phase phase
	open  map[model.ActorID]openWedge // apex -> wedge, only while pending
}

// Stats summarizes the collector's transient state.
type Stats struct {
	PendingPairs  int   `json:"pending_pairs"`
	PendingWedges int   `json:"pending_wedges"`
	ConsumedPairs int   `json:"consumed_pairs"`
	Closed        int64 `json:"closed"`
	Inserted      int64 `json:"inserted"`
	Flushes       int64 `json:"flushes"`
}

// Config configures a Collector.
type Config struct {
	// Sink receives the motifs of each completed date. Required.
	Sink Sink

	// Logger for flush events. Defaults to slog.Default().
	Logger *slog.Logger
}

// Collector is the open-wedge state machine. It subscribes to a network's
// hooks and must only be attached to one network.
type Collector struct {
	net    *network.Network
	sink   Sink
	logger *slog.Logger

	wedges map[order.Pair]*wedgeState

	currentProject model.ProjectID
	currentDate    model.DateBatch

	pending []model.Motif
	flushed []model.Motif

	closed, inserted, flushes int64
}

// New creates a collector and registers its handlers on net.
func New(net *network.Network, cfg Config) (*Collector, error) {
	if cfg.Sink == nil {
		return nil, fmt.Errorf("collector: sink is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	c := &Collector{
		net:    net,
		sink:   cfg.Sink,
		logger: cfg.Logger,
		wedges: make(map[order.Pair]*wedgeState),
	}
	for _, hook := range []network.Hook{
		network.LinkAddAfter,
		network.LinkAddBefore,
		network.ProjectAddBefore,
		network.DateAddBefore,
		network.DateAddAfter,
	} {
		net.Register(hook, c)
	}
	return c, nil
}

// Handle dispatches network events. It implements network.Handler.
func (c *Collector) Handle(ctx context.Context, ev network.Event) error {
	switch e := ev.(type) {
	case network.LinkEvent:
		if e.Pair.Self() {
			return nil
		}
		if e.At == network.LinkAddBefore {
			return c.closeWedges(e.Pair, e.Link)
		}
		return c.openWedges(e.Pair, e.Link)
	case network.ProjectEvent:
		c.currentProject = e.Project.ID
	case network.DateEvent:
		if e.At == network.DateAddBefore {
			c.currentDate = e.Batch
			return nil
		}
		return c.flush(ctx)
	}
	return nil
}

// openWedges registers, for the just-formed link u–v, every wedge it
// completes: w adjacent to u but not v opens pair (v, w) under apex u, and
// symmetrically for v.
func (c *Collector) openWedges(pair order.Pair, link model.Link) error {
	for _, side := range [2][2]model.ActorID{{pair.U, pair.V}, {pair.V, pair.U}} {
		apex, near := side[0], side[1]
		for _, w := range c.net.Neighbors(apex) {
			if w == near || c.net.Adjacent(near, w) {
				continue
			}
			key := order.NewPair(near, w)
			st := c.wedges[key]
			if st == nil {
				st = &wedgeState{phase: phaseAbsent}
				c.wedges[key] = st
			}
			switch st.phase {
			case phaseConsumed:
				continue
			case phaseAbsent:
				st.phase = phasePending
				st.open = make(map[model.ActorID]openWedge)
			}
			if _, ok := st.open[apex]; ok {
				continue
			}
			first, ok := c.net.FirstLink(order.NewPair(apex, w))
			if !ok {
				return fmt.Errorf("wedge %s apex %d: no link history for (%d,%d)", key, apex, apex, w)
			}
			st.open[apex] = openWedge{
				far:         w,
				projectFar:  first.Project,
				projectNear: link.Project,
				firstAt:     first.Timestamp,
				secondAt:    link.Timestamp,
			}
		}
	}
	return nil
}

// closeWedges runs before link u–v is applied. Every pending apex of the
// pair closes a triangle; the pair is then consumed.
func (c *Collector) closeWedges(pair order.Pair, link model.Link) error {
	st := c.wedges[pair]
	if st == nil || st.phase != phasePending {
		return nil
	}
	for _, apex := range slices.Sorted(maps.Keys(st.open)) {
		w := st.open[apex]
		m := motif.Classify(
			[3]model.ActorID{w.far, apex, pair.Other(w.far)},
			[3]model.ProjectID{w.projectFar, w.projectNear, c.currentProject},
			w.secondAt.Sub(w.firstAt),
			link.Timestamp.Sub(w.secondAt),
			c.currentDate.Contains(pair.U, apex, pair.V),
		)
		c.pending = append(c.pending, m)
		c.closed++
	}
	st.phase = phaseConsumed
	st.open = nil
	return nil
}

func (c *Collector) flush(ctx context.Context) error {
	c.flushed = c.flushed[:0]
	if len(c.pending) == 0 {
		return nil
	}
	n, err := c.sink.InsertMotifs(ctx, c.pending)
	if err != nil {
		return fmt.Errorf("flush %d motifs for %s: %w",
			len(c.pending), c.currentDate.Timestamp.Format(time.DateOnly), err)
	}
	c.logger.Debug("motifs flushed",
		"date", c.currentDate.Timestamp.Format(time.DateOnly),
		"motifs", len(c.pending),
		"inserted", n)
	c.inserted += int64(n)
	c.flushes++
	c.flushed = append(c.flushed, c.pending...)
	c.pending = c.pending[:0]
	return nil
}

// Flushed returns the motifs written by the most recent date flush. The
// slice is reused by the next flush.
func (c *Collector) Flushed() []model.Motif { return c.flushed }

// Discard drops motifs accumulated for the date in progress.
func (c *Collector) Discard() int {
	n := len(c.pending)
	c.pending = c.pending[:0]
	return n
}

// Stats returns a snapshot of the collector state.
func (c *Collector) Stats() Stats {
	s := Stats{Closed: c.closed, Inserted: c.inserted, Flushes: c.flushes}
	for _, st := range c.wedges {
		switch st.phase {
		case phasePending:
			s.PendingPairs++
			s.PendingWedges += len(st.open)
		case phaseConsumed:
			s.ConsumedPairs++
		}
	}
	return s
}

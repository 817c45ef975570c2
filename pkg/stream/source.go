// Package stream turns persisted collaboration events into an ordered,
// restartable sequence of date batches.
//
// Events must arrive ordered by (timestamp, project ID, actor ID). The
// source verifies the order while it groups events and fails the iteration
// on the first violation: the detection algorithm silently miscounts on a
// reordered stream, so a violation is never skipped.
package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/daviddao/triadic/pkg/model"
	"github.com/daviddao/triadic/pkg/order"
)

var (
	// ErrOutOfOrder indicates an event sorting before its predecessor.
	ErrOutOfOrder = errors.New("stream: event out of order")

	// ErrUnknownActor indicates an event whose actor is not in the lookup.
	ErrUnknownActor = errors.New("stream: unknown actor")

	// ErrUnknownProject indicates an event whose project has no timestamp.
	ErrUnknownProject = errors.New("stream: unknown project")
)

// EventReader supplies the actor population and the ordered event log.
// The concrete *store.Store satisfies it.
type EventReader interface {
	// ListActors returns every actor with its attribute.
	ListActors(ctx context.Context) ([]model.Actor, error)

	// ListCollaborations returns all events ordered by (timestamp,
	// project ID, actor ID).
	ListCollaborations(ctx context.Context) ([]model.Collaboration, error)
}

// Options configures a Source.
type Options struct {
	// Eager loads the event log once at construction and replays it from
	// memory on every restart. Otherwise each restart re-queries the reader.
	Eager bool
}

// Source yields date batches. Each call to Batches starts a new pass over
// the same ordered log.
type Source struct {
	reader EventReader
	opts   Options
	lookup *Lookup
	events []model.Collaboration // eager mode only
}

// New builds the attribute lookup and, in eager mode, loads the event log.
func New(ctx context.Context, reader EventReader, opts Options) (*Source, error) {
	actors, err := reader.ListActors(ctx)
	if err != nil {
		return nil, fmt.Errorf("load actors: %w", err)
	}
	s := &Source{reader: reader, opts: opts, lookup: newLookup(actors)}
	if opts.Eager {
		s.events, err = reader.ListCollaborations(ctx)
		if err != nil {
			return nil, fmt.Errorf("load collaborations: %w", err)
		}
	}
	return s, nil
}

// Lookup returns the actor attribute lookup built at construction.
func (s *Source) Lookup() *Lookup { return s.lookup }

// Eager reports whether the source replays from memory.
func (s *Source) Eager() bool { return s.opts.Eager }

// Batches starts a new pass over the event log.
func (s *Source) Batches(ctx context.Context) *Cursor {
	c := &Cursor{ctx: ctx, src: s}
	if s.opts.Eager {
		c.events = s.events
		c.loaded = true
	}
	return c
}

// Cursor is a pull iterator over date batches:
//
//	cur := src.Batches(ctx)
//	for cur.Next() {
//		b := cur.Batch()
//		...
//	}
//	if err := cur.Err(); err != nil { ... }
type Cursor struct {
	ctx    context.Context
	src    *Source
	events []model.Collaboration
	loaded bool

	pos   int
	last  model.Collaboration
	seen  bool
	batch model.DateBatch
	err   error
}

// Next advances to the next date batch. It returns false when the log is
// exhausted or an error occurred.
func (c *Cursor) Next() bool {
	if c.err != nil {
		return false
	}
	if err := c.ctx.Err(); err != nil {
		c.err = err
		return false
	}
	if !c.loaded {
		events, err := c.src.reader.ListCollaborations(c.ctx)
		if err != nil {
			c.err = fmt.Errorf("load collaborations: %w", err)
			return false
		}
		c.events, c.loaded = events, true
	}
	if c.pos >= len(c.events) {
		return false
	}

	ts := c.events[c.pos].Timestamp
	b := model.DateBatch{Timestamp: ts, Actors: make(map[model.ActorID]model.ActorActivity)}
	var group *model.ProjectGroup
	for ; c.pos < len(c.events); c.pos++ {
		ev := c.events[c.pos]
		if ev.Timestamp.IsZero() {
			c.err = fmt.Errorf("collaboration %d (project %d): %w", ev.ID, ev.ProjectID, ErrUnknownProject)
			return false
		}
		if !ev.Timestamp.Equal(ts) {
			if ev.Timestamp.Before(ts) {
				c.err = c.orderErr(ev)
				return false
			}
			break
		}
		if c.seen {
			if order.SameSlot(ev, c.last) {
				// repeated authorship row: the first collaboration ID wins
				continue
			}
			if order.EventLess(ev, c.last) {
				c.err = c.orderErr(ev)
				return false
			}
		}
		attr, ok := c.src.lookup.Attribute(ev.ActorID)
		if !ok {
			c.err = fmt.Errorf("collaboration %d (actor %d): %w", ev.ID, ev.ActorID, ErrUnknownActor)
			return false
		}
		c.last, c.seen = ev, true

		if group == nil || group.ID != ev.ProjectID {
			b.Projects = append(b.Projects, model.ProjectGroup{ID: ev.ProjectID, Timestamp: ts})
			group = &b.Projects[len(b.Projects)-1]
		}
		group.Participants = append(group.Participants, model.Participant{
			Actor:         ev.ActorID,
			Collaboration: ev.ID,
		})
		act := b.Actors[ev.ActorID]
		act.Attribute = attr
		act.ProjectCount++
		b.Actors[ev.ActorID] = act
	}
	c.batch = b
	return true
}

func (c *Cursor) orderErr(ev model.Collaboration) error {
	return fmt.Errorf("collaboration %d (%s, project %d, actor %d) after (%s, project %d, actor %d): %w",
		ev.ID, ev.Timestamp.Format(time.RFC3339), ev.ProjectID, ev.ActorID,
		c.last.Timestamp.Format(time.RFC3339), c.last.ProjectID, c.last.ActorID,
		ErrOutOfOrder)
}

// Batch returns the batch produced by the last successful Next.
func (c *Cursor) Batch() model.DateBatch { return c.batch }

// Err returns the error that stopped the iteration, if any.
func (c *Cursor) Err() error { return c.err }

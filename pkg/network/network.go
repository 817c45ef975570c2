// Package network implements the growing temporal collaboration network.
//
// The network owns its graph state exclusively. All mutation goes through
// four operations (AddNode, AddLink, AddProject, AddDate); each fires a
// Before and an After hook to the handlers registered for it, synchronously
// and in registration order. Edges are never removed: repeated
// co-occurrences append to the edge's link history.
//
// Note: Network is not goroutine-safe. A detection run drives one network
// from a single goroutine.
package network

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/daviddao/triadic/pkg/model"
	"github.com/daviddao/triadic/pkg/order"
)

var (
	// ErrUnknownActor indicates a link referenced an actor never added.
	ErrUnknownActor = errors.New("network: unknown actor")

	// ErrDuplicateNode indicates AddNode was called twice for one actor.
	ErrDuplicateNode = errors.New("network: actor already present")

	// ErrSelfLink indicates a link between an actor and itself.
	ErrSelfLink = errors.New("network: self link")

	// ErrOutOfOrder indicates a date batch older than its predecessor.
	ErrOutOfOrder = errors.New("network: date batch out of temporal order")
)

// Network is the mutable collaboration graph.
type Network struct {
	adj   map[model.ActorID]map[model.ActorID]struct{}
	attrs map[model.ActorID]int64
	edges map[order.Pair][]model.Link

	handlers map[Hook][]Handler

	last    time.Time
	started bool
}

// New returns an empty network.
func New() *Network {
	return &Network{
		adj:      make(map[model.ActorID]map[model.ActorID]struct{}),
		attrs:    make(map[model.ActorID]int64),
		edges:    make(map[order.Pair][]model.Link),
		handlers: make(map[Hook][]Handler),
	}
}

// Register appends h to the handlers of hook.
func (n *Network) Register(hook Hook, h Handler) {
	n.handlers[hook] = append(n.handlers[hook], h)
}

func (n *Network) fire(ctx context.Context, ev Event) error {
	for _, h := range n.handlers[ev.Hook()] {
		if err := h.Handle(ctx, ev); err != nil {
			return fmt.Errorf("%s: %w", ev.Hook(), err)
		}
	}
	return nil
}

// AddNode registers actor with its attribute. Callers must not re-add an
// actor; doing so returns ErrDuplicateNode.
func (n *Network) AddNode(ctx context.Context, actor model.ActorID, attribute int64) error {
	if n.HasNode(actor) {
		return fmt.Errorf("add node %d: %w", actor, ErrDuplicateNode)
	}
	if err := n.fire(ctx, NodeEvent{At: NodeAddBefore, Actor: actor, Attribute: attribute}); err != nil {
		return err
	}
	n.adj[actor] = make(map[model.ActorID]struct{})
	n.attrs[actor] = attribute
	return n.fire(ctx, NodeEvent{At: NodeAddAfter, Actor: actor, Attribute: attribute})
}

// AddLink appends link to the history of pair. On the pair's first
// occurrence both directions of adjacency are marked.
func (n *Network) AddLink(ctx context.Context, pair order.Pair, link model.Link) error {
	pair = order.NewPair(pair.U, pair.V)
	if pair.Self() {
		return fmt.Errorf("add link %s: %w", pair, ErrSelfLink)
	}
	if !n.HasNode(pair.U) || !n.HasNode(pair.V) {
		return fmt.Errorf("add link %s: %w", pair, ErrUnknownActor)
	}
	if err := n.fire(ctx, LinkEvent{At: LinkAddBefore, Pair: pair, Link: link}); err != nil {
		return err
	}
	n.edges[pair] = append(n.edges[pair], link)
	n.adj[pair.U][pair.V] = struct{}{}
	n.adj[pair.V][pair.U] = struct{}{}
	return n.fire(ctx, LinkEvent{At: LinkAddAfter, Pair: pair, Link: link})
}

// AddProject forms the clique among the project's participants. Pairs are
// visited in ascending participant order (i < j).
func (n *Network) AddProject(ctx context.Context, project model.ProjectGroup) error {
	if err := n.fire(ctx, ProjectEvent{At: ProjectAddBefore, Project: project}); err != nil {
		return err
	}
	ps := slices.SortedFunc(slices.Values(project.Participants), func(a, b model.Participant) int {
		return cmp.Compare(a.Actor, b.Actor)
	})
	for i := 0; i < len(ps); i++ {
		for j := i + 1; j < len(ps); j++ {
			if ps[i].Actor == ps[j].Actor {
				continue
			}
			pair := order.NewPair(ps[i].Actor, ps[j].Actor)
			cu, cv := ps[i].Collaboration, ps[j].Collaboration
			if pair.U != ps[i].Actor {
				cu, cv = cv, cu
			}
			link := model.Link{
				Project:        project.ID,
				CollaborationU: cu,
				CollaborationV: cv,
				Timestamp:      project.Timestamp,
			}
			if err := n.AddLink(ctx, pair, link); err != nil {
				return fmt.Errorf("project %d: %w", project.ID, err)
			}
		}
	}
	return n.fire(ctx, ProjectEvent{At: ProjectAddAfter, Project: project})
}

// AddDate adds every unseen actor of the batch, then every project, both in
// ascending ID order.
func (n *Network) AddDate(ctx context.Context, batch model.DateBatch) error {
	if n.started && batch.Timestamp.Before(n.last) {
		return fmt.Errorf("date %s after %s: %w",
			batch.Timestamp.Format(time.RFC3339), n.last.Format(time.RFC3339), ErrOutOfOrder)
	}
	if err := n.fire(ctx, DateEvent{At: DateAddBefore, Batch: batch}); err != nil {
		return err
	}
	for _, actor := range slices.Sorted(maps.Keys(batch.Actors)) {
		if n.HasNode(actor) {
			continue
		}
		if err := n.AddNode(ctx, actor, batch.Actors[actor].Attribute); err != nil {
			return err
		}
	}
	projects := slices.SortedFunc(slices.Values(batch.Projects), func(a, b model.ProjectGroup) int {
		return cmp.Compare(a.ID, b.ID)
	})
	for _, p := range projects {
		if p.Timestamp.IsZero() {
			p.Timestamp = batch.Timestamp
		}
		if err := n.AddProject(ctx, p); err != nil {
			return err
		}
	}
	n.last = batch.Timestamp
	n.started = true
	return n.fire(ctx, DateEvent{At: DateAddAfter, Batch: batch})
}

// ---------------------------------------------------------------------------
// Read access
// ---------------------------------------------------------------------------

// HasNode reports whether actor has been added.
func (n *Network) HasNode(actor model.ActorID) bool {
	_, ok := n.adj[actor]
	return ok
}

// Attribute returns the attribute actor was added with.
func (n *Network) Attribute(actor model.ActorID) (int64, bool) {
	a, ok := n.attrs[actor]
	return a, ok
}

// Adjacent reports whether an edge between u and v exists.
func (n *Network) Adjacent(u, v model.ActorID) bool {
	_, ok := n.adj[u][v]
	return ok
}

// Neighbors returns the actors adjacent to u in ascending order.
func (n *Network) Neighbors(u model.ActorID) []model.ActorID {
	return slices.Sorted(maps.Keys(n.adj[u]))
}

// Nodes returns every actor in ascending ID order.
func (n *Network) Nodes() []model.ActorID { return slices.Sorted(maps.Keys(n.adj)) }

// Degree returns the number of actors adjacent to u.
func (n *Network) Degree(u model.ActorID) int { return len(n.adj[u]) }

// Links returns the link history of pair, oldest first. The returned slice
// must not be modified.
func (n *Network) Links(pair order.Pair) []model.Link {
	return n.edges[order.NewPair(pair.U, pair.V)]
}

// FirstLink returns the earliest link of pair.
func (n *Network) FirstLink(pair order.Pair) (model.Link, bool) {
	links := n.Links(pair)
	if len(links) == 0 {
		return model.Link{}, false
	}
	return links[0], true
}

// NumNodes returns the number of actors in the network.
func (n *Network) NumNodes() int { return len(n.adj) }

// NumEdges returns the number of distinct actor pairs linked so far.
func (n *Network) NumEdges() int { return len(n.edges) }

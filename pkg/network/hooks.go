package network

import (
	"context"

	"github.com/daviddao/triadic/pkg/model"
	"github.com/daviddao/triadic/pkg/order"
)

// Hook names a notification point. Every mutation fires its Before hook
// while the network still holds the old state and its After hook once the
// state is updated.
type Hook string

const (
	NodeAddBefore    Hook = "node_add_before"
	NodeAddAfter     Hook = "node_add_after"
	LinkAddBefore    Hook = "link_add_before"
	LinkAddAfter     Hook = "link_add_after"
	ProjectAddBefore Hook = "project_add_before"
	ProjectAddAfter  Hook = "project_add_after"
	DateAddBefore    Hook = "date_add_before"
	DateAddAfter     Hook = "date_add_after"
)

// Event is the payload delivered to a handler. Concrete payloads are
// NodeEvent, LinkEvent, ProjectEvent and DateEvent.
type Event interface {
	Hook() Hook
}

// Handler observes network mutations. Handlers may read the network but
// must not mutate it. A non-nil error aborts the operation in progress.
type Handler interface {
	Handle(ctx context.Context, ev Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, ev Event) error

// Handle calls f(ctx, ev).
func (f HandlerFunc) Handle(ctx context.Context, ev Event) error { return f(ctx, ev) }

// NodeEvent is fired around AddNode.
type NodeEvent struct {
	At        Hook
	Actor     model.ActorID
	Attribute int64
}

func (e NodeEvent) Hook() Hook { return e.At }

// LinkEvent is fired around AddLink.
type LinkEvent struct {
	At   Hook
	Pair order.Pair
	Link model.Link
}

func (e LinkEvent) Hook() Hook { return e.At }

// ProjectEvent is fired around AddProject.
type ProjectEvent struct {
	At      Hook
	Project model.ProjectGroup
}

func (e ProjectEvent) Hook() Hook { return e.At }

// DateEvent is fired around AddDate.
type DateEvent struct {
	At    Hook
	Batch model.DateBatch
}

func (e DateEvent) Hook() Hook { return e.At }

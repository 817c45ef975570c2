// Package order defines the total orders the detection pipeline relies on.
//
// Two rules govern the stream:
//
//	O1 (events): collaborations arrive ordered by (timestamp, project ID,
//	   actor ID), ascending. Wedge currency (first link wins) only holds
//	   under this exact order.
//	O2 (pairs): an unordered actor pair is always stored as (min, max), so
//	   both directions of a link map to one edge and one wedge key.
//
// EventLess breaks timestamp ties deterministically by project and then by
// actor, giving every run the same ordering.
package order

import (
	"fmt"
	"time"

	"github.com/daviddao/triadic/pkg/model"
)

// Pair is an unordered actor pair in canonical (U < V) form. The zero value
// is not a valid pair.
type Pair struct {
	U, V model.ActorID
}

// NewPair returns the canonical form of {a, b}.
func NewPair(a, b model.ActorID) Pair {
	if b < a {
		a, b = b, a
	}
	return Pair{U: a, V: b}
}

// Self reports whether both endpoints are the same actor.
func (p Pair) Self() bool { return p.U == p.V }

// Other returns the endpoint of p that is not a. The result is undefined if
// a is not an endpoint.
func (p Pair) Other(a model.ActorID) model.ActorID {
	if a == p.U {
		return p.V
	}
	return p.U
}

func (p Pair) String() string { return fmt.Sprintf("(%d,%d)", p.U, p.V) }

// EventLess reports whether collaboration a sorts strictly before b:
//
//	tsA < tsB, or
//	tsA == tsB and projectA < projectB, or
//	both equal and actorA < actorB
func EventLess(a, b model.Collaboration) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	if a.ProjectID != b.ProjectID {
		return a.ProjectID < b.ProjectID
	}
	return a.ActorID < b.ActorID
}

// SameSlot reports whether a and b share timestamp, project and actor.
func SameSlot(a, b model.Collaboration) bool {
	return a.Timestamp.Equal(b.Timestamp) && a.ProjectID == b.ProjectID && a.ActorID == b.ActorID
}

// Days returns the number of whole days in d, truncated toward zero.
// Timing classes are decided at day granularity.
func Days(d time.Duration) int64 { return int64(d / (24 * time.Hour)) }

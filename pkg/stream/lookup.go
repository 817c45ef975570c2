package stream

import "github.com/daviddao/triadic/pkg/model"

// Lookup maps actor IDs to their attribute. It is immutable after
// construction and safe for concurrent reads.
type Lookup struct {
	attrs map[model.ActorID]int64
}

func newLookup(actors []model.Actor) *Lookup {
	l := &Lookup{attrs: make(map[model.ActorID]int64, len(actors))}
	for _, a := range actors {
		l.attrs[a.ID] = a.Attribute
	}
	return l
}

// Attribute returns the attribute of id, or false if id is unknown.
func (l *Lookup) Attribute(id model.ActorID) (int64, bool) {
	attr, ok := l.attrs[id]
	return attr, ok
}

// Len returns the number of known actors.
func (l *Lookup) Len() int { return len(l.attrs) }

// Package motif assigns a canonical motif type and role ordering to a
// closed triangle.
//
// A closing triangle arrives as (far, apex, closer): far is the outer actor
// the apex was linked to first, closer the outer actor whose link to the
// apex completed the wedge. Timing class:
//
//	open  > 0, close > 0   triadic_closure
//	open == 0, close > 0   broker
//	open  > 0, close == 0  initiation_link
//	open == 0, close == 0  instant
//
// Durations are compared in whole days. Where a class leaves roles
// interchangeable, those positions are ordered by ascending actor ID and
// each project keeps the position of its actor.
package motif

import (
	"time"

	"github.com/daviddao/triadic/pkg/model"
	"github.com/daviddao/triadic/pkg/order"
)

// Classify returns the motif record for a triangle closing with the given
// durations. actors is (far, apex, closer); projects is (far–apex link,
// apex–closer link, closing link).
func Classify(actors [3]model.ActorID, projects [3]model.ProjectID, open, close time.Duration, simplicial bool) model.Motif {
	opened := order.Days(open) > 0
	closed := order.Days(close) > 0

	var (
		pos [3]int
		typ model.MotifType
	)
	switch {
	case opened && closed:
		pos = [3]int{0, 1, 2}
		typ = pick(simplicial, model.MotifTriadicClosure, model.MotifSimplicialTriadicClosure)
	case closed:
		// far and closer both hang off the apex from the same instant.
		a, c := sortPositions(actors, 0, 2)
		pos = [3]int{a, 1, c}
		typ = pick(simplicial, model.MotifBroker, model.MotifSimplicialBroker)
	case opened:
		// closer joins far and apex at once.
		a, b := sortPositions(actors, 0, 1)
		pos = [3]int{a, b, 2}
		typ = pick(simplicial, model.MotifInitiationLink, model.MotifSimplicialInitiationLink)
	default:
		pos = sortAll(actors)
		typ = pick(simplicial, model.MotifInstant, model.MotifSimplicialInstant)
	}

	m := model.Motif{
		A:         actors[pos[0]],
		B:         actors[pos[1]],
		C:         actors[pos[2]],
		ProjectAB: projects[pos[0]],
		ProjectBC: projects[pos[1]],
		ProjectAC: projects[pos[2]],
		Type:      typ,
	}
	if typ.HasOpen() {
		d := open
		m.OpenDuration = &d
	}
	if typ.HasClose() {
		d := close
		m.CloseDuration = &d
	}
	return m
}

func pick(simplicial bool, plain, simp model.MotifType) model.MotifType {
	if simplicial {
		return simp
	}
	return plain
}

func sortPositions(actors [3]model.ActorID, i, j int) (int, int) {
	if actors[j] < actors[i] {
		return j, i
	}
	return i, j
}

func sortAll(actors [3]model.ActorID) [3]int {
	p := [3]int{0, 1, 2}
	for i := 1; i < 3; i++ {
		for k := i; k > 0 && actors[p[k]] < actors[p[k-1]]; k-- {
			p[k], p[k-1] = p[k-1], p[k]
		}
	}
	return p
}

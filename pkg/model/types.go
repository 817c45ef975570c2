// Package model defines the core domain types for triadic.
//
// Triadic rebuilds a collaboration network from a stream of co-authorship
// events and records every triadic closure it observes:
//
//   - An actor (collaborator) is a node. A project (publication) is the unit
//     of co-occurrence: every actor listed on a project is linked to every
//     other actor on it, at the project's timestamp.
//
//   - A wedge is two edges that share an apex actor whose outer actors are
//     not yet linked. When the missing edge forms, the triangle closes and a
//     Motif is recorded, classified by how long the wedge took to open and
//     to close, and by whether all three actors co-occur in one project on
//     the closing date (a simplicial closure).
package model

import (
	"slices"
	"time"
)

// ActorID identifies a collaborator.
type ActorID int64

// ProjectID identifies a project (publication).
type ProjectID int64

// CollaborationID identifies a single (actor, project) authorship row.
type CollaborationID int64

// Actor attribute values for the gender category carried by the APS data.
const (
	AttributeUnknown int64 = 0
	AttributeFemale  int64 = 1
	AttributeMale    int64 = 2
)

// Actor is a collaborator with a descriptive attribute fixed at load time.
type Actor struct {
	ID        ActorID `json:"id"`
	Attribute int64   `json:"attribute"`
}

// Project is a publication with an immutable timestamp.
type Project struct {
	ID        ProjectID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// Collaboration is the atomic stream event: actor ActorID appears on
// project ProjectID, published at Timestamp.
type Collaboration struct {
	ID        CollaborationID `json:"id"`
	ActorID   ActorID         `json:"actor_id"`
	ProjectID ProjectID       `json:"project_id"`
	Timestamp time.Time       `json:"timestamp"`
}

// Participant is one actor listed on a project, with the authorship row
// that introduced it.
type Participant struct {
	Actor         ActorID         `json:"actor"`
	Collaboration CollaborationID `json:"collaboration"`
}

// ProjectGroup lists all participants of one project. The stream emits
// them ordered by actor ID; other callers may pass any order.
type ProjectGroup struct {
	ID           ProjectID     `json:"id"`
	Timestamp    time.Time     `json:"timestamp"`
	Participants []Participant `json:"participants"`
}

// Has reports whether every given actor participates in the project,
// whatever the participant order.
func (g ProjectGroup) Has(actors ...ActorID) bool {
	for _, a := range actors {
		if !slices.ContainsFunc(g.Participants, func(p Participant) bool { return p.Actor == a }) {
			return false
		}
	}
	return true
}

// ActorActivity describes an actor active on a given date.
type ActorActivity struct {
	Attribute    int64 `json:"attribute"`
	ProjectCount int   `json:"project_count"`
}

// DateBatch holds every collaboration sharing one exact timestamp, grouped
// by project in ascending project ID, plus the actors active that date.
type DateBatch struct {
	Timestamp time.Time                 `json:"timestamp"`
	Actors    map[ActorID]ActorActivity `json:"actors"`
	Projects  []ProjectGroup            `json:"projects"`
}

// Contains reports whether some project of the batch lists all given actors.
func (b DateBatch) Contains(actors ...ActorID) bool {
	for _, g := range b.Projects {
		if g.Has(actors...) {
			return true
		}
	}
	return false
}

// Link is one co-occurrence of an actor pair, appended to the pair's edge
// history. CollaborationU belongs to the lower actor ID of the pair.
type Link struct {
	Project        ProjectID       `json:"project"`
	CollaborationU CollaborationID `json:"collaboration_u"`
	CollaborationV CollaborationID `json:"collaboration_v"`
	Timestamp      time.Time       `json:"timestamp"`
}

// MotifType enumerates the closed-triangle classes.
type MotifType string

const (
	MotifTriadicClosure           MotifType = "triadic_closure"
	MotifSimplicialTriadicClosure MotifType = "simplicial_triadic_closure"
	MotifBroker                   MotifType = "broker"
	MotifSimplicialBroker         MotifType = "simplicial_broker"
	MotifInitiationLink           MotifType = "initiation_link"
	MotifSimplicialInitiationLink MotifType = "simplicial_initiation_link"
	MotifInstant                  MotifType = "instant"
	MotifSimplicialInstant        MotifType = "simplicial_instant"
)

// MotifTypes lists every motif type in a stable order.
var MotifTypes = []MotifType{
	MotifTriadicClosure, MotifSimplicialTriadicClosure,
	MotifBroker, MotifSimplicialBroker,
	MotifInitiationLink, MotifSimplicialInitiationLink,
	MotifInstant, MotifSimplicialInstant,
}

// Valid reports whether t is one of the known motif types.
func (t MotifType) Valid() bool { return slices.Contains(MotifTypes, t) }

// Simplicial reports whether t is a simplicial variant.
func (t MotifType) Simplicial() bool {
	switch t {
	case MotifSimplicialTriadicClosure, MotifSimplicialBroker,
		MotifSimplicialInitiationLink, MotifSimplicialInstant:
		return true
	}
	return false
}

// HasOpen reports whether motifs of type t carry an open duration.
func (t MotifType) HasOpen() bool {
	switch t {
	case MotifTriadicClosure, MotifSimplicialTriadicClosure,
		MotifInitiationLink, MotifSimplicialInitiationLink:
		return true
	}
	return false
}

// HasClose reports whether motifs of type t carry a close duration.
func (t MotifType) HasClose() bool {
	switch t {
	case MotifTriadicClosure, MotifSimplicialTriadicClosure,
		MotifBroker, MotifSimplicialBroker:
		return true
	}
	return false
}

// Motif is a classified closed triangle with canonical role assignment.
// ProjectAB is the project of the A–B link, ProjectBC of the B–C link and
// ProjectAC of the closing A–C link.
type Motif struct {
	A             ActorID        `json:"id_collaborator_a"`
	B             ActorID        `json:"id_collaborator_b"`
	C             ActorID        `json:"id_collaborator_c"`
	ProjectAB     ProjectID      `json:"id_project_ab"`
	ProjectBC     ProjectID      `json:"id_project_bc"`
	ProjectAC     ProjectID      `json:"id_project_ac"`
	Type          MotifType      `json:"motif_type"`
	OpenDuration  *time.Duration `json:"open_duration,omitempty"`
	CloseDuration *time.Duration `json:"close_duration,omitempty"`
}

// Triple returns the motif's actors in ascending order, identifying the
// unordered triangle.
func (m Motif) Triple() [3]ActorID {
	t := [3]ActorID{m.A, m.B, m.C}
	slices.Sort(t[:])
	return t
}

// RunStatus is the outcome of a detection run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunStopped   RunStatus = "stopped"
	RunFailed    RunStatus = "failed"
)

// Run is one entry of the run ledger.
type Run struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Batches    int64     `json:"batches"`
	Motifs     int64     `json:"motifs"`
	Status     RunStatus `json:"status"`
	Error      string    `json:"error,omitempty"`
}

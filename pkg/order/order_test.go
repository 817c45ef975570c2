package order

import (
	"testing"
	"time"

	"github.com/daviddao/triadic/pkg/model"
)

var day0 = time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)

func ev(day int, project, actor int64) model.Collaboration {
	return model.Collaboration{
		ActorID:   model.ActorID(actor),
		ProjectID: model.ProjectID(project),
		Timestamp: day0.AddDate(0, 0, day),
	}
}

func TestNewPair_Canonical(t *testing.T) {
	p := NewPair(7, 3)
	if p.U != 3 || p.V != 7 {
		t.Fatalf("NewPair(7,3) = %v, want (3,7)", p)
	}
	if NewPair(3, 7) != p {
		t.Fatal("both directions should map to the same pair")
	}
}

func TestPair_SelfOtherHas(t *testing.T) {
	if !NewPair(4, 4).Self() {
		t.Fatal("(4,4) should be a self pair")
	}
	p := NewPair(1, 2)
	if p.Self() {
		t.Fatal("(1,2) is not a self pair")
	}
	if p.Other(1) != 2 || p.Other(2) != 1 {
		t.Fatalf("Other: got %d/%d, want 2/1", p.Other(1), p.Other(2))
	}
	if p.String() != "(1,2)" {
		t.Fatalf("String() = %q", p.String())
	}
}

func TestEventLess_DifferentTimestamps(t *testing.T) {
	if !EventLess(ev(0, 9, 9), ev(1, 1, 1)) {
		t.Fatal("expected day 0 < day 1 regardless of project/actor")
	}
	if EventLess(ev(1, 1, 1), ev(0, 9, 9)) {
		t.Fatal("expected day 1 NOT < day 0")
	}
}

func TestEventLess_SameTimestamp_TieBreakByProjectThenActor(t *testing.T) {
	if !EventLess(ev(0, 1, 9), ev(0, 2, 1)) {
		t.Fatal("expected project 1 < project 2 on the same day")
	}
	if !EventLess(ev(0, 1, 1), ev(0, 1, 2)) {
		t.Fatal("expected actor 1 < actor 2 on the same project")
	}
	if EventLess(ev(0, 1, 2), ev(0, 1, 1)) {
		t.Fatal("expected actor 2 NOT < actor 1")
	}
}

func TestEventLess_EqualIsStrict(t *testing.T) {
	if EventLess(ev(3, 4, 5), ev(3, 4, 5)) {
		t.Fatal("EventLess must be strict")
	}
	if !SameSlot(ev(3, 4, 5), ev(3, 4, 5)) {
		t.Fatal("SameSlot should hold for identical slots")
	}
}

func TestDays(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want int64
	}{
		{0, 0},
		{12 * time.Hour, 0},
		{24 * time.Hour, 1},
		{5*24*time.Hour + time.Hour, 5},
	}
	for _, tc := range cases {
		if got := Days(tc.d); got != tc.want {
			t.Fatalf("Days(%v) = %d, want %d", tc.d, got, tc.want)
		}
	}
}

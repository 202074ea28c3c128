package schedule

import (
	"math"
	"testing"
)

type fakeChannel struct {
	id string
}

func (c *fakeChannel) ID() string { return c.id }
func (c *fakeChannel) Schedule(self, cargo any, clock float64, source any) float64 {
	return clock + 1
}
func (c *fakeChannel) Fire(self, cargo any, clock float64, eventTime float64) bool { return false }

func TestNewRejectsEventTimeBeforeInit(t *testing.T) {
	a := &fakeChannel{"a"}
	_, err := New[*fakeChannel](5.0, map[*fakeChannel]float64{a: 4.0}, nil)
	if err == nil {
		t.Fatalf("expected error for event time before t_init")
	}
}

func TestNewRejectsNaNClock(t *testing.T) {
	a := &fakeChannel{"a"}
	_, err := New[*fakeChannel](math.NaN(), map[*fakeChannel]float64{a: 0}, nil)
	if err == nil {
		t.Fatalf("expected error for NaN clock")
	}
}

func TestSetRejectsTimeBeforeClock(t *testing.T) {
	a := &fakeChannel{"a"}
	s, err := New[*fakeChannel](0, map[*fakeChannel]float64{a: 1.0}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.SetClock(5.0)
	if err := s.Set(a, 4.0); err == nil {
		t.Fatalf("expected SchedulingError for time before clock")
	}
}

func TestEarliestInvariant(t *testing.T) {
	a, b, c := &fakeChannel{"a"}, &fakeChannel{"b"}, &fakeChannel{"c"}
	s, err := New[*fakeChannel](0, map[*fakeChannel]float64{a: 5, b: 1, c: 3}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ch, tm, err := s.Earliest()
	if err != nil {
		t.Fatalf("Earliest: %v", err)
	}
	if ch != b || tm != 1 {
		t.Fatalf("expected b@1, got %v@%v", ch.ID(), tm)
	}

	// Writing invalidates the cache; channels always satisfy time >= clock.
	if err := s.Set(b, 10); err != nil {
		t.Fatalf("Set: %v", err)
	}
	ch, tm, err = s.Earliest()
	if err != nil {
		t.Fatalf("Earliest: %v", err)
	}
	if ch != c || tm != 3 {
		t.Fatalf("expected c@3 after update, got %v@%v", ch.ID(), tm)
	}
	for _, ch := range s.Channels() {
		got, _ := s.Get(ch)
		if got < s.Clock() {
			t.Fatalf("invariant violated: channel %s has time %g < clock %g", ch.ID(), got, s.Clock())
		}
	}
}

func TestCloneIntoMirrorsDependencyGraph(t *testing.T) {
	a, b := &fakeChannel{"a"}, &fakeChannel{"b"}
	dep := map[*fakeChannel][]*fakeChannel{a: {b}}
	s, err := New[*fakeChannel](0, map[*fakeChannel]float64{a: 1, b: 2}, dep)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cloneFn := func(ch *fakeChannel) *fakeChannel { return &fakeChannel{id: ch.id} }
	clone, subst := s.CloneInto(cloneFn)

	if clone.Clock() != s.Clock() {
		t.Fatalf("clone clock mismatch")
	}
	cb := subst[b]
	deps := clone.Dependents(subst[a])
	if len(deps) != 1 || deps[0] != cb {
		t.Fatalf("expected cloned dependency graph to point at cloned b")
	}
	tOrig, _ := s.Get(a)
	tClone, _ := clone.Get(subst[a])
	if tOrig != tClone {
		t.Fatalf("expected cloned timetable to mirror original event times")
	}
}

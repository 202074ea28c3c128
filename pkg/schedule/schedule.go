// Package schedule implements the per-entity channel schedule and the
// Scheduler that owns it together with an entity's dependency graphs and
// clock. It is generic over the channel kind (agent or world) via
// channel.Schedulable so the same bookkeeping code serves both.
package schedule

import (
	"fmt"
	"math"

	"agentsim/pkg/channel"
	"agentsim/pkg/simerr"
)

// schedulable is the constraint on a scheduler's channel type: a
// channel.Schedulable that can also key a map by identity.
type schedulable interface {
	comparable
	channel.Schedulable
}

// timetable is a map channel -> event_time with a cached minimum,
// invalidated on every write. A linear scan recomputes it on demand; this
// is the right tradeoff given the small number of channels a real entity
// carries (tens, not thousands).
type timetable[C schedulable] struct {
	times   map[C]float64
	dirty   bool
	minCh   C
	minTime float64
}

func newTimetable[C schedulable](initial map[C]float64) *timetable[C] {
	tt := &timetable[C]{times: make(map[C]float64, len(initial)), dirty: true}
	for ch, t := range initial {
		tt.times[ch] = t
	}
	return tt
}

func (tt *timetable[C]) set(ch C, t float64) {
	tt.times[ch] = t
	tt.dirty = true
}

func (tt *timetable[C]) get(ch C) (float64, bool) {
	t, ok := tt.times[ch]
	return t, ok
}

func (tt *timetable[C]) delete(ch C) {
	delete(tt.times, ch)
	tt.dirty = true
}

// earliest recomputes the cached minimum by linear scan iff dirty, then
// returns it. When two channels tie on event time, the one returned is
// unspecified (map iteration order), matching the documented tie-break
// policy of ChannelSchedule in the spec.
func (tt *timetable[C]) earliest() (C, float64, error) {
	var zero C
	if len(tt.times) == 0 {
		return zero, 0, fmt.Errorf("schedule: no channels registered")
	}
	if tt.dirty {
		first := true
		for ch, t := range tt.times {
			if first || t < tt.minTime {
				tt.minCh, tt.minTime = ch, t
				first = false
			}
		}
		tt.dirty = false
	}
	return tt.minCh, tt.minTime, nil
}

// Scheduler manages the simulation channels assigned to one entity: an
// updatable event schedule mapping channels to their event times, the
// channels' internal dependency graph, and the entity's clock.
type Scheduler[C schedulable] struct {
	clock       float64
	enabled     bool
	timetable   *timetable[C]
	channelDict map[string]C
	depGraph    map[C][]C
}

// New builds a Scheduler from an initial clock time and timetable. It
// fails if any initial event time precedes tInit, or tInit is NaN.
func New[C schedulable](tInit float64, initial map[C]float64, depGraph map[C][]C) (*Scheduler[C], error) {
	if math.IsNaN(tInit) {
		return nil, simerr.NewSimulationError("clock time cannot be NaN")
	}
	for ch, t := range initial {
		if t < tInit {
			return nil, simerr.NewSimulationError(
				"cannot create scheduler: channel %q event time %g precedes t_init %g", ch.ID(), t, tInit)
		}
	}
	channelDict := make(map[string]C, len(initial))
	for ch := range initial {
		channelDict[ch.ID()] = ch
	}
	dg := make(map[C][]C, len(depGraph))
	for ch, deps := range depGraph {
		dg[ch] = append([]C(nil), deps...)
	}
	return &Scheduler[C]{
		clock:       tInit,
		enabled:     true,
		timetable:   newTimetable(initial),
		channelDict: channelDict,
		depGraph:    dg,
	}, nil
}

// Clock returns the entity's current clock time.
func (s *Scheduler[C]) Clock() float64 { return s.clock }

// SetClock advances (or, during synchronization, sets) the clock directly.
// Callers outside pkg/entity should not normally need this.
func (s *Scheduler[C]) SetClock(t float64) { s.clock = t }

// Enabled reports whether the owning entity is still active.
func (s *Scheduler[C]) Enabled() bool { return s.enabled }

// SetEnabled flips the entity's enabled flag.
func (s *Scheduler[C]) SetEnabled(v bool) { s.enabled = v }

// Contains reports whether channel ch is registered.
func (s *Scheduler[C]) Contains(ch C) bool {
	_, ok := s.timetable.get(ch)
	return ok
}

// Channels returns every registered channel, in unspecified order.
func (s *Scheduler[C]) Channels() []C {
	out := make([]C, 0, len(s.timetable.times))
	for ch := range s.timetable.times {
		out = append(out, ch)
	}
	return out
}

// ChannelByName looks up a registered channel by its ID.
func (s *Scheduler[C]) ChannelByName(name string) (C, bool) {
	ch, ok := s.channelDict[name]
	return ch, ok
}

// Dependents returns the internal dependency list for ch (channels whose
// event times may need recomputation after ch fires and modifies state).
func (s *Scheduler[C]) Dependents(ch C) []C {
	return s.depGraph[ch]
}

// Get returns the current event time of ch.
func (s *Scheduler[C]) Get(ch C) (float64, error) {
	t, ok := s.timetable.get(ch)
	if !ok {
		return 0, simerr.NewSimulationError("channel %q is not registered on this scheduler", ch.ID())
	}
	return t, nil
}

// Set writes a new event time for ch. It fails if t precedes the clock.
func (s *Scheduler[C]) Set(ch C, t float64) error {
	if t < s.clock {
		return &simerr.SchedulingError{ChannelID: ch.ID(), Clock: s.clock, Attempted: t}
	}
	s.timetable.set(ch, t)
	return nil
}

// SetUnchecked writes a new event time for ch without validating it against
// the clock, unlike Set.
func (s *Scheduler[C]) SetUnchecked(ch C, t float64) {
	s.timetable.set(ch, t)
}

// Earliest returns the channel with the smallest event time and that time.
func (s *Scheduler[C]) Earliest() (C, float64, error) {
	return s.timetable.earliest()
}

// NextEventTime is a convenience wrapper around Earliest that discards the
// channel and swallows the empty-schedule error (returning +Inf), mirroring
// the spec's next_event_time property.
func (s *Scheduler[C]) NextEventTime() float64 {
	_, t, err := s.Earliest()
	if err != nil {
		return math.Inf(1)
	}
	return t
}

// CloneInto builds a new Scheduler holding freshly cloned channels (via
// cloneFn) that mirror this scheduler's timetable, channel dict and
// dependency graph by substituting each original channel for its clone. The
// returned substitution map lets a caller (e.g. Agent.Clone) mirror any
// additional cross-entity graphs that reference the same channel set.
func (s *Scheduler[C]) CloneInto(cloneFn func(C) C) (*Scheduler[C], map[C]C) {
	subst := make(map[C]C, len(s.timetable.times))
	for ch := range s.timetable.times {
		subst[ch] = cloneFn(ch)
	}

	newTimes := make(map[C]float64, len(s.timetable.times))
	for ch, t := range s.timetable.times {
		newTimes[subst[ch]] = t
	}

	newDepGraph := make(map[C][]C, len(s.depGraph))
	for ch, deps := range s.depGraph {
		substDeps := make([]C, len(deps))
		for i, d := range deps {
			substDeps[i] = subst[d]
		}
		newDepGraph[subst[ch]] = substDeps
	}

	newChannelDict := make(map[string]C, len(s.channelDict))
	for name, ch := range s.channelDict {
		newChannelDict[name] = subst[ch]
	}

	other := &Scheduler[C]{
		clock:       s.clock,
		enabled:     s.enabled,
		timetable:   newTimetable(newTimes),
		channelDict: newChannelDict,
		depGraph:    newDepGraph,
	}
	return other, subst
}

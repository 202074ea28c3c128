// Package entity implements the World and Agent entities and the common
// event-firing protocol they share: selecting the next channel to fire,
// advancing the clock, draining newly cloned/killed agents, and rescheduling
// the fired channel and its dependents.
package entity

import (
	"math"

	"agentsim/pkg/channel"
	"agentsim/pkg/logging"
	"agentsim/pkg/schedule"
	"agentsim/pkg/simerr"
)

// Driver is the minimal surface the simulator exposes back to entities so
// the firing protocol can enqueue births/deaths and drain them at the right
// point without pkg/entity importing pkg/simulator (which itself must import
// pkg/entity to hold the population).
type Driver interface {
	// IsFM reports whether the driver processes the agent queue after every
	// single event (First-Method) rather than only at synchronization
	// barriers (Asynchronous-Method).
	IsFM() bool
	// World returns the simulation's unique World entity.
	World() *World
	// Agents returns the live agent population, in unspecified order.
	Agents() []*Agent
	// EnqueueAdd queues a freshly cloned agent for insertion into the
	// population once the agent queue is next drained.
	EnqueueAdd(agent *Agent, key float64) error
	// EnqueueDelete queues a live agent for removal from the population.
	EnqueueDelete(agent *Agent, key float64) error
	// ProcessAgentQueue drains every pending ADD/DELETE action.
	ProcessAgentQueue() error
}

// World is the unique global entity holding shared state visible to every
// agent channel as cargo.
type World struct {
	state         *State
	sched         *schedule.Scheduler[channel.WorldChannel]
	driver        Driver
	isModified    bool
	currChannel   channel.WorldChannel
	currEventTime float64
	size          float64

	// TS and SizeSeries accumulate the world's trajectory: TS[i] is the
	// clock time at which SizeSeries[i] (population size) was sampled.
	// Appended to by the simulator driver after each agent-queue drain.
	TS         []float64
	SizeSeries []float64
}

// NewWorld constructs a World over the given variable names and channel
// scheduler. driver is supplied by the simulator after construction via
// SetDriver, since the driver itself typically needs the World to exist
// first.
func NewWorld(varNames []string, sched *schedule.Scheduler[channel.WorldChannel]) *World {
	return &World{state: NewState(varNames), sched: sched}
}

// SetDriver wires the world to its owning simulator.
func (w *World) SetDriver(d Driver) { w.driver = d }

// State exposes the underlying variable bag.
func (w *World) State() *State { return w.state }

// Get returns a named world variable.
func (w *World) Get(name string) any { return w.state.Get(name) }

// Set assigns a named world variable.
func (w *World) Set(name string, v any) { w.state.Set(name, v) }

// Names returns the declared world variable names (Snapshotter).
func (w *World) Names() []string { return w.state.Names() }

// Size returns the current (possibly virtually scaled) population size.
func (w *World) Size() float64 { return w.size }

// SetSize records the current population size, maintained by the simulator.
func (w *World) SetSize(n float64) { w.size = n }

// Clock returns the world's current clock time.
func (w *World) Clock() float64 { return w.sched.Clock() }

// NextEventTime returns the time of the world's next scheduled event, or
// +Inf if no channel is registered.
func (w *World) NextEventTime() float64 { return w.sched.NextEventTime() }

// Enabled reports whether the world is still active (it is disabled only by
// Stop, typically at the end of a fixed-duration run).
func (w *World) Enabled() bool { return w.sched.Enabled() }

// Stop disables the world, ending the run on the next driver check.
func (w *World) Stop() { w.sched.SetEnabled(false) }

// IsModified reports whether the most recently fired world channel changed
// world state.
func (w *World) IsModified() bool { return w.isModified }

// CurrChannel returns the channel currently (or most recently) fired.
func (w *World) CurrChannel() channel.WorldChannel { return w.currChannel }

// Scheduler exposes the underlying channel scheduler for registration and
// inspection by pkg/model and pkg/simulator.
func (w *World) Scheduler() *schedule.Scheduler[channel.WorldChannel] { return w.sched }

// ScheduleAllChannels computes an initial event time for every registered
// world channel and returns the earliest of them.
func (w *World) ScheduleAllChannels() (float64, error) {
	tmin := math.Inf(1)
	for _, ch := range w.sched.Channels() {
		t := ch.Schedule(w, w.driver.Agents(), w.sched.Clock(), nil)
		if err := w.sched.Set(ch, t); err != nil {
			return 0, err
		}
		if t < tmin {
			tmin = t
		}
	}
	return tmin, nil
}

// ProcessNextChannel fires the world's single earliest-scheduled channel,
// drains the agent queue (the world always drains immediately, regardless of
// driver kind), and reschedules the fired channel and, if it reported a
// state change, its dependents.
func (w *World) ProcessNextChannel() error {
	ch, eventTime, err := w.sched.Earliest()
	if err != nil {
		return err
	}
	w.currChannel = ch
	w.currEventTime = eventTime

	modified := ch.Fire(w, w.driver.Agents(), w.sched.Clock(), eventTime)
	w.isModified = modified
	w.sched.SetClock(eventTime)

	if err := w.driver.ProcessAgentQueue(); err != nil {
		return err
	}

	newTime := ch.Schedule(w, w.driver.Agents(), w.sched.Clock(), nil)
	if err := w.sched.Set(ch, newTime); err != nil {
		return err
	}
	if modified {
		for _, dep := range w.sched.Dependents(ch) {
			t := dep.Schedule(w, w.driver.Agents(), w.sched.Clock(), nil)
			if err := w.sched.Set(dep, t); err != nil {
				return err
			}
		}
	}
	return nil
}

// FireNested manually fires a named world channel outside the normal
// scheduling loop, optionally rescheduling it and its dependents.
func (w *World) FireNested(channelName string, eventTime float64, doReschedule bool, source any) (bool, error) {
	ch, ok := w.sched.ChannelByName(channelName)
	if !ok {
		return false, simerr.NewSimulationError("world has no channel named %q", channelName)
	}
	if eventTime < w.sched.Clock() {
		return false, &simerr.FiringError{ChannelID: channelName, Clock: w.sched.Clock(), FireTime: eventTime}
	}
	agents := w.driver.Agents()
	modified := ch.Fire(w, agents, w.sched.Clock(), eventTime)
	w.isModified = modified

	if err := w.driver.ProcessAgentQueue(); err != nil {
		return modified, err
	}

	if doReschedule {
		w.sched.SetClock(eventTime)
		t := ch.Schedule(w, w.driver.Agents(), w.sched.Clock(), source)
		if err := w.sched.Set(ch, t); err != nil {
			return modified, err
		}
		if modified {
			for _, dep := range w.sched.Dependents(ch) {
				td := dep.Schedule(w, w.driver.Agents(), w.sched.Clock(), source)
				if err := w.sched.Set(dep, td); err != nil {
					return modified, err
				}
			}
		}
	}
	return modified, nil
}

// Reschedule recomputes channelName's event time (and, if withDependents,
// its dependents') without firing it.
func (w *World) Reschedule(channelName string, withDependents bool, source any) error {
	ch, ok := w.sched.ChannelByName(channelName)
	if !ok {
		return simerr.NewSimulationError("world has no channel named %q", channelName)
	}
	agents := w.driver.Agents()
	t := ch.Schedule(w, agents, w.sched.Clock(), source)
	if err := w.sched.Set(ch, t); err != nil {
		return err
	}
	if withDependents {
		for _, dep := range w.sched.Dependents(ch) {
			td := dep.Schedule(w, agents, w.sched.Clock(), source)
			if err := w.sched.Set(dep, td); err != nil {
				return err
			}
		}
	}
	return nil
}

// CrossScheduleFromAgent reschedules the world channels that depend on the
// channel most recently fired by source, iff source reported a state change.
// This is the First-Method per-event cross-schedule.
func (w *World) CrossScheduleFromAgent(source *Agent) error {
	for _, wch := range source.DependentWorldChannels() {
		t := wch.Schedule(w, w.driver.Agents(), w.sched.Clock(), source)
		if err := w.sched.Set(wch, t); err != nil {
			return err
		}
	}
	return nil
}

// CrossScheduleFromAgentsAsync reschedules the accumulated set of world
// channels flagged dependent by any agent fire (ordinary or sync) that
// modified state during an Asynchronous-Method barrier.
func (w *World) CrossScheduleFromAgentsAsync(worldChannels []channel.WorldChannel) error {
	for _, wch := range worldChannels {
		t := wch.Schedule(w, w.driver.Agents(), w.sched.Clock(), nil)
		if err := w.sched.Set(wch, t); err != nil {
			return err
		}
	}
	return nil
}

// Agent is one member of the simulated population.
type Agent struct {
	state         *State
	sched         *schedule.AgentScheduler
	driver        Driver
	isModified    bool
	currChannel   channel.AgentChannel
	currEventTime float64

	// parent is non-nil iff this agent was cloned but not yet finalized by
	// the driver (see FinalizePrevEvent). The AgentQueue enforces that ADD
	// actions carry a non-nil parent and DELETE actions carry a nil one.
	parent *Agent

	// pendingWorldDeps accumulates the world channels a modified fire has
	// flagged dependent (via L2G) while running under the Asynchronous-
	// Method driver, which defers cross-scheduling until the barrier
	// instead of firing it immediately the way First-Method does.
	pendingWorldDeps []channel.WorldChannel

	// Logger is non-nil for agents participating in lineage logging. A
	// plain (non-logged) agent leaves this nil.
	Logger *logging.LoggerNode
}

// NewAgent constructs an Agent over the given variable names and channel
// scheduler. logger may be nil.
func NewAgent(varNames []string, sched *schedule.AgentScheduler, logger *logging.LoggerNode) *Agent {
	return &Agent{state: NewState(varNames), sched: sched, Logger: logger}
}

// SetDriver wires the agent to its owning simulator.
func (a *Agent) SetDriver(d Driver) { a.driver = d }

// State exposes the underlying variable bag.
func (a *Agent) State() *State { return a.state }

// Get returns a named agent variable.
func (a *Agent) Get(name string) any { return a.state.Get(name) }

// Set assigns a named agent variable.
func (a *Agent) Set(name string, v any) { a.state.Set(name, v) }

// Names returns the declared agent variable names (Snapshotter).
func (a *Agent) Names() []string { return a.state.Names() }

// Clock returns the agent's current clock time.
func (a *Agent) Clock() float64 { return a.sched.Clock() }

// NextEventTime returns the time of the agent's next scheduled event.
func (a *Agent) NextEventTime() float64 { return a.sched.NextEventTime() }

// Enabled reports whether the agent is still live.
func (a *Agent) Enabled() bool { return a.sched.Enabled() }

// SetEnabled flips the agent's live flag. Exposed for pkg/queue, which must
// disable an agent the instant its DELETE action is enqueued.
func (a *Agent) SetEnabled(v bool) { a.sched.SetEnabled(v) }

// IsModified reports whether the most recently fired channel changed agent
// state.
func (a *Agent) IsModified() bool { return a.isModified }

// CurrChannel returns the channel currently (or most recently) fired.
func (a *Agent) CurrChannel() channel.AgentChannel { return a.currChannel }

// Parent returns the source agent this one was cloned from, or nil if this
// agent was not produced by a clone, or has already been finalized.
func (a *Agent) Parent() *Agent { return a.parent }

// Scheduler exposes the underlying agent scheduler.
func (a *Agent) Scheduler() *schedule.AgentScheduler { return a.sched }

// DependentWorldChannels returns the world channels that must reschedule
// because this agent's most recently fired channel changed its state. Empty
// if the agent was not modified.
func (a *Agent) DependentWorldChannels() []channel.WorldChannel {
	if !a.isModified || a.currChannel == nil {
		return nil
	}
	return a.sched.L2G[a.currChannel]
}

// DrainPendingWorldDeps returns and clears the world channels accumulated
// via pendingWorldDeps since the last drain, for the Asynchronous-Method
// driver to reschedule once per barrier.
func (a *Agent) DrainPendingWorldDeps() []channel.WorldChannel {
	pending := a.pendingWorldDeps
	a.pendingWorldDeps = nil
	return pending
}

// ScheduleAllChannels computes an initial event time for every registered
// agent channel and returns the earliest of them.
func (a *Agent) ScheduleAllChannels(world *World) (float64, error) {
	tmin := math.Inf(1)
	for _, ch := range a.sched.Channels() {
		t := ch.Schedule(a, world, a.sched.Clock(), nil)
		if err := a.sched.Set(ch, t); err != nil {
			return 0, err
		}
		if t < tmin {
			tmin = t
		}
	}
	return tmin, nil
}

// ProcessNextChannel fires the agent's single earliest-scheduled channel. In
// First-Method mode the agent queue is drained immediately after firing;
// in Asynchronous-Method mode draining is deferred to the next barrier.
func (a *Agent) ProcessNextChannel() error {
	ch, eventTime, err := a.sched.Earliest()
	if err != nil {
		return err
	}
	a.currChannel = ch
	a.currEventTime = eventTime

	world := a.driver.World()
	modified := ch.Fire(a, world, a.sched.Clock(), eventTime)
	a.isModified = modified
	a.sched.SetClock(eventTime)

	if a.driver.IsFM() {
		if err := a.driver.ProcessAgentQueue(); err != nil {
			return err
		}
	}

	newTime := ch.Schedule(a, world, a.sched.Clock(), nil)
	if err := a.sched.Set(ch, newTime); err != nil {
		return err
	}
	if modified {
		for _, dep := range a.sched.Dependents(ch) {
			td := dep.Schedule(a, world, a.sched.Clock(), nil)
			if err := a.sched.Set(dep, td); err != nil {
				return err
			}
		}
		if !a.driver.IsFM() {
			a.pendingWorldDeps = append(a.pendingWorldDeps, a.sched.L2G[ch]...)
		}
	}

	if a.Logger != nil {
		a.Logger.Record(a.sched.Clock(), ch.ID(), a.state)
	}
	return nil
}

// FireNested manually fires a named agent channel outside the normal
// scheduling loop, optionally rescheduling it and its dependents. Note that
// unlike ProcessNextChannel, this does not update CurrChannel: a nested fire
// happens in the middle of processing whatever channel is already current,
// and any subsequent lineage record still attributes to that outer channel.
func (a *Agent) FireNested(channelName string, eventTime float64, doReschedule bool, source any) (bool, error) {
	ch, ok := a.sched.ChannelByName(channelName)
	if !ok {
		return false, simerr.NewSimulationError("agent has no channel named %q", channelName)
	}
	if eventTime < a.sched.Clock() {
		return false, &simerr.FiringError{ChannelID: channelName, Clock: a.sched.Clock(), FireTime: eventTime}
	}
	world := a.driver.World()
	modified := ch.Fire(a, world, a.sched.Clock(), eventTime)
	a.isModified = modified

	if a.driver.IsFM() {
		if err := a.driver.ProcessAgentQueue(); err != nil {
			return modified, err
		}
	}

	if doReschedule {
		a.sched.SetClock(eventTime)
		t := ch.Schedule(a, world, a.sched.Clock(), source)
		if err := a.sched.Set(ch, t); err != nil {
			return modified, err
		}
		if modified {
			for _, dep := range a.sched.Dependents(ch) {
				td := dep.Schedule(a, world, a.sched.Clock(), source)
				if err := a.sched.Set(dep, td); err != nil {
					return modified, err
				}
			}
		}
	}

	if a.Logger != nil {
		a.Logger.Record(a.sched.Clock(), a.currChannel.ID(), a.state)
	}
	return modified, nil
}

// Reschedule recomputes channelName's event time (and, if withDependents,
// its dependents') without firing it.
func (a *Agent) Reschedule(channelName string, withDependents bool, source any) error {
	ch, ok := a.sched.ChannelByName(channelName)
	if !ok {
		return simerr.NewSimulationError("agent has no channel named %q", channelName)
	}
	world := a.driver.World()
	t := ch.Schedule(a, world, a.sched.Clock(), source)
	if err := a.sched.Set(ch, t); err != nil {
		return err
	}
	if withDependents {
		for _, dep := range a.sched.Dependents(ch) {
			td := dep.Schedule(a, world, a.sched.Clock(), source)
			if err := a.sched.Set(dep, td); err != nil {
				return err
			}
		}
	}
	return nil
}

// CrossScheduleFromWorld reschedules the agent channels that depend on the
// world's most recently fired channel, iff the world reported a state
// change. This is the First-Method per-event cross-schedule.
func (a *Agent) CrossScheduleFromWorld(world *World) error {
	if !world.IsModified() {
		return nil
	}
	wch := world.CurrChannel()
	for _, ach := range a.sched.G2L[wch] {
		t := ach.Schedule(a, world, a.sched.Clock(), world)
		if err := a.sched.Set(ach, t); err != nil {
			return err
		}
	}
	return nil
}

// Synchronize fires every one of the agent's synchronization channels at the
// shared barrier time tbarrier, in registration order, advancing the clock
// to tbarrier first. Every sync channel fire uses the pre-barrier clock as
// its `clock` argument (all sync channels fire as of the same instant), and,
// in First-Method mode, immediately cross-schedules the world if it modified
// agent state.
func (a *Agent) Synchronize(tbarrier float64) error {
	t0 := a.sched.Clock()
	a.sched.SetClock(tbarrier)
	world := a.driver.World()

	for _, sc := range a.sched.Sync {
		modified := sc.Fire(a, world, t0, tbarrier)
		a.isModified = modified
		a.currChannel = sc
		a.currEventTime = tbarrier

		if a.driver.IsFM() {
			if err := a.driver.ProcessAgentQueue(); err != nil {
				return err
			}
		}

		newTime := sc.Schedule(a, world, a.sched.Clock(), nil)
		if err := a.sched.Set(sc, newTime); err != nil {
			return err
		}
		if modified {
			for _, dep := range a.sched.Dependents(sc) {
				td := dep.Schedule(a, world, a.sched.Clock(), nil)
				if err := a.sched.Set(dep, td); err != nil {
					return err
				}
			}
		}
		if modified {
			if a.driver.IsFM() {
				if err := world.CrossScheduleFromAgent(a); err != nil {
					return err
				}
			} else {
				a.pendingWorldDeps = append(a.pendingWorldDeps, a.sched.L2G[sc]...)
			}
		}
	}
	return nil
}

// clone deep-copies the agent: a fresh state bag, an independently cloned
// scheduler (with its own channel instances mirroring this agent's event
// times and dependency graphs), and, if this agent is logged, a freshly
// branched logger. The result carries isModified=false and a nil parent —
// CloneAgent is responsible for setting parent once it decides this clone is
// a birth.
func (a *Agent) clone() *Agent {
	other := &Agent{
		state:  a.state.Clone(),
		sched:  a.sched.Clone(func(ch channel.AgentChannel) channel.AgentChannel { return ch.Clone() }),
		driver: a.driver,
	}
	if a.currChannel != nil {
		if ch, ok := other.sched.ChannelByName(a.currChannel.ID()); ok {
			other.currChannel = ch
		}
	}
	if a.Logger != nil {
		left, right := a.Logger.Branch()
		a.Logger = left
		other.Logger = right
	}
	return other
}

// Copy returns a plain deep copy of the agent — no parent marker, not
// enqueued anywhere. Used by the constant-number population driver to mask
// a death by duplicating a randomly chosen surviving agent over the dying
// one's slot; unlike CloneAgent, this never represents a birth.
func (a *Agent) Copy() *Agent {
	return a.clone()
}

// CloneAgent produces a new agent that is a copy of a, marks a as its
// parent, and enqueues it for insertion into the population at eventTime
// (the event time of the channel currently firing on a). If a is logged, the
// new agent's first lineage record captures its state at the moment of
// division.
func (a *Agent) CloneAgent(eventTime float64) (*Agent, error) {
	child := a.clone()
	child.parent = a
	if child.Logger != nil && child.currChannel != nil {
		child.Logger.Record(a.sched.Clock(), child.currChannel.ID(), child.state)
	}
	if err := a.driver.EnqueueAdd(child, eventTime); err != nil {
		return nil, err
	}
	return child, nil
}

// FinalizePrevEvent is called by the driver immediately after dequeuing an
// ADD action, once the clone is actually joining the live population: it
// re-reads the cached earliest (channel, event_time) the cloned scheduler
// mirrored from its source, advances the clock to that time, and clears the
// parent marker.
func (a *Agent) FinalizePrevEvent() error {
	ch, eventTime, err := a.sched.Earliest()
	if err != nil {
		return err
	}
	a.currChannel = ch
	a.currEventTime = eventTime
	a.sched.SetClock(eventTime)
	a.parent = nil
	return nil
}

// KillAgent disables the agent immediately. If remove is true it is also
// enqueued for removal from the population once the agent queue is next
// drained; if false the agent is simply left disabled (and will be dropped
// silently the next time a driver skips disabled entities), matching the
// two distinct teardown paths a channel may choose between.
func (a *Agent) KillAgent(eventTime float64, remove bool) error {
	a.sched.SetEnabled(false)
	if remove {
		return a.driver.EnqueueDelete(a, eventTime)
	}
	return nil
}

package entity

import (
	"testing"

	"agentsim/pkg/channel"
	"agentsim/pkg/schedule"
)

// fakeDriver is a minimal entity.Driver for testing the firing protocol in
// isolation, without pulling in pkg/simulator.
type fakeDriver struct {
	fm     bool
	world  *World
	agents []*Agent
	added  []*Agent
	killed []*Agent
}

func (d *fakeDriver) IsFM() bool       { return d.fm }
func (d *fakeDriver) World() *World    { return d.world }
func (d *fakeDriver) Agents() []*Agent { return d.agents }
func (d *fakeDriver) EnqueueAdd(agent *Agent, key float64) error {
	d.added = append(d.added, agent)
	return nil
}
func (d *fakeDriver) EnqueueDelete(agent *Agent, key float64) error {
	d.killed = append(d.killed, agent)
	return nil
}
func (d *fakeDriver) ProcessAgentQueue() error {
	for _, a := range d.added {
		if err := a.FinalizePrevEvent(); err != nil {
			return err
		}
		d.agents = append(d.agents, a)
	}
	d.added = nil
	d.killed = nil
	return nil
}

// growthChannel fires once per call, always reporting modified, and
// schedules itself one tick later.
type growthChannel struct{ fired int }

func (c *growthChannel) ID() string { return "growth" }
func (c *growthChannel) Schedule(self, cargo any, clock float64, source any) float64 {
	return clock + 1
}
func (c *growthChannel) Fire(self, cargo any, clock, eventTime float64) bool {
	c.fired++
	return true
}
func (c *growthChannel) Clone() channel.AgentChannel { return &growthChannel{} }

// divisionChannel clones the firing agent every time it fires.
type divisionChannel struct{}

func (c *divisionChannel) ID() string { return "division" }
func (c *divisionChannel) Schedule(self, cargo any, clock float64, source any) float64 {
	return clock + 5
}
func (c *divisionChannel) Fire(self, cargo any, clock, eventTime float64) bool {
	a := self.(*Agent)
	if _, err := a.CloneAgent(eventTime); err != nil {
		panic(err)
	}
	return true
}
func (c *divisionChannel) Clone() channel.AgentChannel { return &divisionChannel{} }

func newTestAgent(t *testing.T, ch channel.AgentChannel) *Agent {
	t.Helper()
	sched, err := schedule.NewAgentScheduler(0,
		map[channel.AgentChannel]float64{ch: 0},
		nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewAgentScheduler: %v", err)
	}
	return NewAgent([]string{"x"}, sched, nil)
}

func TestAgentProcessNextChannelAdvancesClockAndReschedules(t *testing.T) {
	ch := &growthChannel{}
	a := newTestAgent(t, ch)
	world := NewWorld(nil, mustWorldScheduler(t))
	d := &fakeDriver{fm: true, world: world, agents: []*Agent{a}}
	a.SetDriver(d)
	world.SetDriver(d)

	if _, err := a.ScheduleAllChannels(world); err != nil {
		t.Fatalf("ScheduleAllChannels: %v", err)
	}
	if err := a.ProcessNextChannel(); err != nil {
		t.Fatalf("ProcessNextChannel: %v", err)
	}
	if a.Clock() != 0 {
		t.Fatalf("expected clock at first event time 0, got %g", a.Clock())
	}
	if ch.fired != 1 {
		t.Fatalf("expected channel fired once, got %d", ch.fired)
	}
	if !a.IsModified() {
		t.Fatalf("expected agent to be modified")
	}
	if a.NextEventTime() != 1 {
		t.Fatalf("expected rescheduled event at t=1, got %g", a.NextEventTime())
	}
}

func TestAgentCloneAndFinalizeRoundTrip(t *testing.T) {
	ch := &divisionChannel{}
	a := newTestAgent(t, ch)
	world := NewWorld(nil, mustWorldScheduler(t))
	d := &fakeDriver{fm: false, world: world, agents: []*Agent{a}}
	a.SetDriver(d)
	world.SetDriver(d)

	if _, err := a.ScheduleAllChannels(world); err != nil {
		t.Fatalf("ScheduleAllChannels: %v", err)
	}
	if err := a.ProcessNextChannel(); err != nil {
		t.Fatalf("ProcessNextChannel: %v", err)
	}
	if len(d.added) != 1 {
		t.Fatalf("expected one agent queued for birth, got %d", len(d.added))
	}
	child := d.added[0]
	if child.Parent() != a {
		t.Fatalf("expected child's parent to be the source agent before finalize")
	}

	wantClock := a.Clock()
	if err := child.FinalizePrevEvent(); err != nil {
		t.Fatalf("FinalizePrevEvent: %v", err)
	}
	if child.Parent() != nil {
		t.Fatalf("expected parent marker cleared after finalize")
	}
	if child.Clock() != wantClock {
		t.Fatalf("expected finalized clock %g to mirror source's clock at clone time, got %g", wantClock, child.Clock())
	}
}

func TestKillAgentDisablesAndEnqueuesDelete(t *testing.T) {
	ch := &growthChannel{}
	a := newTestAgent(t, ch)
	world := NewWorld(nil, mustWorldScheduler(t))
	d := &fakeDriver{world: world, agents: []*Agent{a}}
	a.SetDriver(d)

	if err := a.KillAgent(3.0, true); err != nil {
		t.Fatalf("KillAgent: %v", err)
	}
	if a.Enabled() {
		t.Fatalf("expected agent disabled after kill")
	}
	if len(d.killed) != 1 || d.killed[0] != a {
		t.Fatalf("expected agent enqueued for deletion")
	}
}

func mustWorldScheduler(t *testing.T) *schedule.Scheduler[channel.WorldChannel] {
	t.Helper()
	s, err := schedule.New[channel.WorldChannel](0, nil, nil)
	if err != nil {
		t.Fatalf("schedule.New world scheduler: %v", err)
	}
	return s
}

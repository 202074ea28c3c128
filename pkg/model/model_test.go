package model

import (
	"testing"

	"agentsim/pkg/channel"
	"agentsim/pkg/simulator"
)

// tickChannel fires every 1.0 time unit and always reports modified, purely
// to exercise scheduling plumbing end to end.
type tickChannel struct{ id string }

func (c *tickChannel) ID() string { return c.id }
func (c *tickChannel) Schedule(self, cargo any, clock float64, source any) float64 {
	return clock + 1.0
}
func (c *tickChannel) Fire(self, cargo any, clock, eventTime float64) bool { return true }
func (c *tickChannel) Clone() channel.AgentChannel                        { return &tickChannel{id: c.id} }

type worldTickChannel struct{ id string }

func (c *worldTickChannel) ID() string { return c.id }
func (c *worldTickChannel) Schedule(self, cargo any, clock float64, source any) float64 {
	return clock + 2.0
}
func (c *worldTickChannel) Fire(self, cargo any, clock, eventTime float64) bool { return false }
func (c *worldTickChannel) Clone() channel.WorldChannel                        { return &worldTickChannel{id: c.id} }

func TestBuildConfigProducesIndependentAgentChannels(t *testing.T) {
	m, err := New(3, 10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.AddAgentChannel(&tickChannel{id: "tick"}, nil, nil, false); err != nil {
		t.Fatalf("AddAgentChannel: %v", err)
	}
	if err := m.AddWorldChannel(&worldTickChannel{id: "wtick"}, nil, nil); err != nil {
		t.Fatalf("AddWorldChannel: %v", err)
	}

	agents, err := CreateAgents(m, 0)
	if err != nil {
		t.Fatalf("CreateAgents: %v", err)
	}
	if len(agents) != 3 {
		t.Fatalf("expected 3 agents, got %d", len(agents))
	}
	ch0, ok := agents[0].Scheduler().ChannelByName("tick")
	if !ok {
		t.Fatalf("expected agent 0 to carry a tick channel")
	}
	ch1, ok := agents[1].Scheduler().ChannelByName("tick")
	if !ok {
		t.Fatalf("expected agent 1 to carry a tick channel")
	}
	if ch0 == ch1 {
		t.Fatalf("expected each agent to own an independent channel clone")
	}
}

func TestFMSimulatorRunsToCompletionOnTrivialModel(t *testing.T) {
	m, err := New(2, 5)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.AddAgentChannel(&tickChannel{id: "tick"}, nil, nil, false); err != nil {
		t.Fatalf("AddAgentChannel: %v", err)
	}
	if err := m.AddWorldChannel(&worldTickChannel{id: "wtick"}, nil, nil); err != nil {
		t.Fatalf("AddWorldChannel: %v", err)
	}

	cfg, err := BuildConfig(m, 0)
	if err != nil {
		t.Fatalf("BuildConfig: %v", err)
	}
	sim, err := simulator.NewFMSimulator(cfg)
	if err != nil {
		t.Fatalf("NewFMSimulator: %v", err)
	}
	if err := sim.Run(10); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sim.NumAgents() != 2 {
		t.Fatalf("expected population to remain at 2 (no births/deaths registered), got %d", sim.NumAgents())
	}
}

func TestAddLoggerRejectsIndexOutsideInitialPopulation(t *testing.T) {
	m, err := New(2, 10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.AddLogger(1, []string{"x"}, nil); err != nil {
		t.Fatalf("AddLogger(1, ...): expected index within n0=2 to be accepted, got %v", err)
	}
	if err := m.AddLogger(5, []string{"x"}, nil); err == nil {
		t.Fatalf("AddLogger(5, ...): expected an error for an index beyond n0=2 even though nmax=10")
	}
}

func TestAMSimulatorRunsToCompletionOnTrivialModel(t *testing.T) {
	m, err := New(2, 5)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.AddAgentChannel(&tickChannel{id: "tick"}, nil, nil, false); err != nil {
		t.Fatalf("AddAgentChannel: %v", err)
	}
	if err := m.AddWorldChannel(&worldTickChannel{id: "wtick"}, nil, nil); err != nil {
		t.Fatalf("AddWorldChannel: %v", err)
	}

	cfg, err := BuildConfig(m, 0)
	if err != nil {
		t.Fatalf("BuildConfig: %v", err)
	}
	sim, err := simulator.NewAMSimulator(cfg)
	if err != nil {
		t.Fatalf("NewAMSimulator: %v", err)
	}
	if err := sim.Run(10); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sim.NumAgents() != 2 {
		t.Fatalf("expected population to remain at 2 (no births/deaths registered), got %d", sim.NumAgents())
	}
}

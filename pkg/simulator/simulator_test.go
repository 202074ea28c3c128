package simulator

import (
	"math"
	"testing"

	"agentsim/pkg/channel"
	"agentsim/pkg/entity"
	"agentsim/pkg/schedule"
)

// birthChannel fires once at t=1 and clones its agent, then goes dormant.
type birthChannel struct{ fired bool }

func (c *birthChannel) ID() string { return "birth" }
func (c *birthChannel) Schedule(self, cargo any, clock float64, source any) float64 {
	if c.fired {
		return math.Inf(1)
	}
	return 1
}
func (c *birthChannel) Fire(self, cargo any, clock, eventTime float64) bool {
	c.fired = true
	a := self.(*entity.Agent)
	if _, err := a.CloneAgent(eventTime); err != nil {
		panic(err)
	}
	return true
}
func (c *birthChannel) Clone() channel.AgentChannel { return &birthChannel{} }

// idleChannel never fires again, a placeholder second channel so an agent
// carries more than one channel without interacting with the birth test.
type idleChannel struct{}

func (c *idleChannel) ID() string                                                  { return "idle" }
func (c *idleChannel) Schedule(self, cargo any, clock float64, source any) float64 { return math.Inf(1) }
func (c *idleChannel) Fire(self, cargo any, clock, eventTime float64) bool         { return false }
func (c *idleChannel) Clone() channel.AgentChannel                                { return &idleChannel{} }

func newWorld(t *testing.T) *entity.World {
	t.Helper()
	sched, err := schedule.New[channel.WorldChannel](0, nil, nil)
	if err != nil {
		t.Fatalf("schedule.New: %v", err)
	}
	return entity.NewWorld(nil, sched)
}

func newBirthAgent(t *testing.T) *entity.Agent {
	t.Helper()
	ch := &birthChannel{}
	sched, err := schedule.NewAgentScheduler(0,
		map[channel.AgentChannel]float64{ch: 1, &idleChannel{}: math.Inf(1)},
		nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewAgentScheduler: %v", err)
	}
	return entity.NewAgent(nil, sched, nil)
}

func TestFMSimulatorNormalModeBirthGrowsPopulation(t *testing.T) {
	cfg := Config{
		World:        newWorld(t),
		Agents:       []*entity.Agent{newBirthAgent(t), newBirthAgent(t)},
		NumAgentsMax: 10,
	}
	sim, err := NewFMSimulator(cfg)
	if err != nil {
		t.Fatalf("NewFMSimulator: %v", err)
	}
	if err := sim.Run(5); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sim.NumAgents() != 4 {
		t.Fatalf("expected 2 births to grow population from 2 to 4, got %d", sim.NumAgents())
	}
	if sim.Births() != 2 {
		t.Fatalf("expected 2 births recorded, got %d", sim.Births())
	}
	if sim.Mode() != Normal {
		t.Fatalf("expected mode to remain Normal below numAgentsMax, got %v", sim.Mode())
	}
}

func TestFMSimulatorSwitchesToConstantNumberAtCapacity(t *testing.T) {
	cfg := Config{
		World:        newWorld(t),
		Agents:       []*entity.Agent{newBirthAgent(t), newBirthAgent(t)},
		NumAgentsMax: 3,
	}
	sim, err := NewFMSimulator(cfg)
	if err != nil {
		t.Fatalf("NewFMSimulator: %v", err)
	}
	if err := sim.Run(1); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sim.NumAgents() != 3 {
		t.Fatalf("expected population capped at numAgentsMax=3, got %d", sim.NumAgents())
	}
	if sim.Mode() != ConstantNumber {
		t.Fatalf("expected mode to switch to ConstantNumber at capacity, got %v", sim.Mode())
	}
}

func TestAMSimulatorNormalModeBirthGrowsPopulation(t *testing.T) {
	cfg := Config{
		World:        newWorld(t),
		Agents:       []*entity.Agent{newBirthAgent(t), newBirthAgent(t)},
		NumAgentsMax: 10,
	}
	sim, err := NewAMSimulator(cfg)
	if err != nil {
		t.Fatalf("NewAMSimulator: %v", err)
	}
	if err := sim.Run(5); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sim.NumAgents() != 4 {
		t.Fatalf("expected 2 births to grow population from 2 to 4, got %d", sim.NumAgents())
	}
}

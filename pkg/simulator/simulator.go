// Package simulator implements the two simulation drivers: the First-Method
// (FM) driver, which keeps one global time-ordered queue over every agent
// and compares the world's next event time against it, and the
// Asynchronous-Method (AM) driver, which advances the
// population in barrier-synchronized batches between world events. Both
// drivers share population bookkeeping (NORMAL vs CONSTANT_NUMBER mode,
// birth/death accounting, world-size trajectory) via the embedded base type.
package simulator

import (
	"math/rand"

	"agentsim/pkg/entity"
	"agentsim/pkg/logging"
	"agentsim/pkg/queue"
	"agentsim/pkg/simerr"
)

// Mode selects how the population responds to births once it first reaches
// its configured maximum size.
type Mode int

const (
	// Normal lets births grow the population until NumAgentsMax, at which
	// point the driver switches to ConstantNumber.
	Normal Mode = iota
	// ConstantNumber holds population size fixed: a birth replaces the
	// agent in a randomly chosen population slot (which may hold an agent
	// already disabled), and a death is masked by copying a
	// randomly chosen other agent over the dying one's slot.
	ConstantNumber
)

// Config is everything a model assembles (see pkg/model) to build either
// driver: the initial population, registered loggers/recorders, and the
// user-supplied state initializer run once before the first event.
type Config struct {
	World            *entity.World
	Agents           []*entity.Agent
	NumAgentsMax     int
	StateInitializer func(world *entity.World, agents []*entity.Agent)
	Loggers          []*logging.LoggerNode
	Recorders        []*logging.Recorder
}

// base holds the state and bookkeeping shared by FMSimulator and AMSimulator.
// It implements everything of entity.Driver except IsFM and
// ProcessAgentQueue, which differ enough between the two drivers that each
// defines its own.
type base struct {
	world      *entity.World
	agents     []*entity.Agent
	agentQueue *queue.AgentQueue
	loggers    []*logging.LoggerNode
	recorders  []*logging.Recorder

	stateInitializer func(world *entity.World, agents []*entity.Agent)

	numAgents    int
	numAgentsMax int
	mode         Mode
	sizeThreshHi int
	sizeThreshLo int

	nBirths int
	nDeaths int
}

func newBase(cfg Config) base {
	return base{
		world:            cfg.World,
		agents:           append([]*entity.Agent(nil), cfg.Agents...),
		agentQueue:       queue.New(),
		loggers:          cfg.Loggers,
		recorders:        cfg.Recorders,
		stateInitializer: cfg.StateInitializer,
		numAgents:        len(cfg.Agents),
		numAgentsMax:     cfg.NumAgentsMax,
	}
}

// World implements entity.Driver.
func (b *base) World() *entity.World { return b.world }

// Agents implements entity.Driver.
func (b *base) Agents() []*entity.Agent { return b.agents }

// EnqueueAdd implements entity.Driver.
func (b *base) EnqueueAdd(agent *entity.Agent, key float64) error {
	return b.agentQueue.Enqueue(queue.Add, agent, key)
}

// EnqueueDelete implements entity.Driver.
func (b *base) EnqueueDelete(agent *entity.Agent, key float64) error {
	return b.agentQueue.Enqueue(queue.Delete, agent, key)
}

// NumAgents returns the live population size.
func (b *base) NumAgents() int { return b.numAgents }

// Births returns the cumulative number of agents born so far.
func (b *base) Births() int { return b.nBirths }

// Deaths returns the cumulative number of agents that have died so far.
func (b *base) Deaths() int { return b.nDeaths }

// Mode returns the driver's current population mode.
func (b *base) Mode() Mode { return b.mode }

func (b *base) recordSnapshot() {
	if len(b.recorders) == 0 {
		return
	}
	snap := snapshotAgents(b.agents)
	for _, rec := range b.recorders {
		rec.Record(b.world.Clock(), b.world, snap)
	}
}

func snapshotAgents(agents []*entity.Agent) []logging.Snapshotter {
	out := make([]logging.Snapshotter, len(agents))
	for i, a := range agents {
		out[i] = a.State()
	}
	return out
}

func indexOfAgent(agents []*entity.Agent, target *entity.Agent) int {
	for i, a := range agents {
		if a == target {
			return i
		}
	}
	return -1
}

// processNormal implements the NORMAL-mode population update shared by both
// drivers' agent-queue processing: a birth appends the new agent, a death
// removes the target. It does not touch any driver-specific index (the FM
// global timetable, the AM not-done set) — callers layer that on top.
func processNormal(b *base, action queue.Action, agent *entity.Agent) (float64, error) {
	switch action {
	case queue.Add:
		if err := agent.FinalizePrevEvent(); err != nil {
			return 0, err
		}
		b.agents = append(b.agents, agent)
		b.numAgents++
		b.nBirths++
		return 1, nil
	case queue.Delete:
		idx := indexOfAgent(b.agents, agent)
		if idx < 0 {
			return 0, simerr.NewSimulationError("agent not found in population")
		}
		b.agents = append(b.agents[:idx:idx], b.agents[idx+1:]...)
		b.numAgents--
		if b.numAgents == 0 {
			return 0, &simerr.ZeroPopulationError{Time: b.world.Clock()}
		}
		b.nDeaths++
		return -1, nil
	default:
		return 0, simerr.NewSimulationError("agent queue: unknown action")
	}
}

// pickReplacementIndex returns a uniformly random index in [0, n) other than
// exclude (n must be > 1).
func pickReplacementIndex(n, exclude int) int {
	i := exclude
	for i == exclude {
		i = rand.Intn(n)
	}
	return i
}

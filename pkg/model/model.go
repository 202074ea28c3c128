// Package model lets a caller declaratively assemble an agent-based
// population model — its initial/maximum size, state initializer, world and
// agent channels (with their dependency graphs), lineage loggers and
// population recorders — and turn it into a ready-to-run simulator.Config.
package model

import (
	"agentsim/pkg/channel"
	"agentsim/pkg/entity"
	"agentsim/pkg/logging"
	"agentsim/pkg/schedule"
	"agentsim/pkg/simerr"
	"agentsim/pkg/simulator"
)

type loggedSpec struct {
	names []string
	fn    logging.LoggingFunc
}

type worldEntry struct {
	channel channel.WorldChannel
	wcDeps  []channel.WorldChannel
	acDeps  []channel.AgentChannel
}

type agentEntry struct {
	channel channel.AgentChannel
	wcDeps  []channel.WorldChannel
	acDeps  []channel.AgentChannel
	sync    bool
}

// Model is the declarative description of a population: how many agents to
// start and cap at, which channels drive the world and each agent, and how
// to initialize, log, and record it. Build it up with the Add* methods, then
// call BuildConfig to obtain entities ready for simulator.NewFMSimulator or
// simulator.NewAMSimulator.
type Model struct {
	N0, NMax int

	WorldVars []string
	AgentVars []string

	Initializer func(world *entity.World, agents []*entity.Agent)
	Recorders   []*logging.Recorder

	logged map[int]loggedSpec

	worldOrder    []string
	worldChannels map[string]worldEntry
	agentOrder    []string
	agentChannels map[string]agentEntry
}

// New creates a Model for a population starting at n0 agents, capped at
// nmax.
func New(n0, nmax int) (*Model, error) {
	if n0 > nmax {
		return nil, simerr.NewSimulationError("initial agent count %d exceeds maximum %d", n0, nmax)
	}
	return &Model{
		N0:            n0,
		NMax:          nmax,
		Initializer:   func(*entity.World, []*entity.Agent) {},
		logged:        make(map[int]loggedSpec),
		worldChannels: make(map[string]worldEntry),
		agentChannels: make(map[string]agentEntry),
	}, nil
}

// AddInitializer registers the world/agent variable names and the function
// that assigns their initial values once, before the first event fires.
func (m *Model) AddInitializer(worldVars, agentVars []string, fn func(world *entity.World, agents []*entity.Agent)) {
	m.WorldVars = worldVars
	m.AgentVars = agentVars
	m.Initializer = fn
}

// AddWorldChannel registers a world channel. wcDeps lists other world
// channels that must reschedule whenever this one fires and modifies world
// state; acDeps lists agent channels (shared across the whole population)
// that must do the same.
func (m *Model) AddWorldChannel(ch channel.WorldChannel, wcDeps []channel.WorldChannel, acDeps []channel.AgentChannel) error {
	name := ch.ID()
	if _, exists := m.worldChannels[name]; exists {
		return simerr.NewSimulationError("a world channel named %q is already registered", name)
	}
	m.worldChannels[name] = worldEntry{channel: ch, wcDeps: wcDeps, acDeps: acDeps}
	m.worldOrder = append(m.worldOrder, name)
	return nil
}

// AddAgentChannel registers an agent channel template: every agent in the
// population, including ones born later, receives its own Clone of it.
// wcDeps lists world channels that must reschedule whenever this channel
// fires and modifies the owning agent's state; acDeps lists other agent
// channels (on the same agent) that must do the same. sync marks this as a
// synchronization channel, fired once per agent at every AM barrier (and,
// for an FM driver, whenever the world becomes the earliest entity). A sync
// channel is also entered in the agent's timetable like any other channel,
// so it additionally fires at the times its own Schedule returns.
func (m *Model) AddAgentChannel(ch channel.AgentChannel, wcDeps []channel.WorldChannel, acDeps []channel.AgentChannel, sync bool) error {
	name := ch.ID()
	if _, exists := m.agentChannels[name]; exists {
		return simerr.NewSimulationError("an agent channel named %q is already registered", name)
	}
	m.agentChannels[name] = agentEntry{channel: ch, wcDeps: wcDeps, acDeps: acDeps, sync: sync}
	m.agentOrder = append(m.agentOrder, name)
	return nil
}

// AddLogger attaches a lineage logger to one of the n0 initial agents
// (identified by its index among them); the logger follows that agent's
// descendants through every clone for the life of the run.
func (m *Model) AddLogger(agentIndex int, names []string, fn logging.LoggingFunc) error {
	if agentIndex < 0 || agentIndex >= m.N0 {
		return simerr.NewSimulationError("logged agent index %d out of range [0,%d)", agentIndex, m.N0)
	}
	m.logged[agentIndex] = loggedSpec{names: names, fn: fn}
	return nil
}

// AddRecorder registers a population-level recorder; the driver samples it
// at the start of the run and again every time a world channel invokes it.
func (m *Model) AddRecorder(r *logging.Recorder) {
	m.Recorders = append(m.Recorders, r)
}

// CreateWorld builds the unique World entity from the model's registered
// world channels, each initially scheduled at tInit.
func CreateWorld(m *Model, tInit float64) (*entity.World, error) {
	initial := make(map[channel.WorldChannel]float64, len(m.worldOrder))
	depGraph := make(map[channel.WorldChannel][]channel.WorldChannel, len(m.worldOrder))
	for _, name := range m.worldOrder {
		e := m.worldChannels[name]
		initial[e.channel] = tInit
		depGraph[e.channel] = e.wcDeps
	}
	sched, err := schedule.New[channel.WorldChannel](tInit, initial, depGraph)
	if err != nil {
		return nil, err
	}
	return entity.NewWorld(m.WorldVars, sched), nil
}

// CreateAgents builds the n0 initial Agent entities. Every agent receives
// its own Clone of each registered agent-channel template, so that internal
// dependency graphs, the L2G/G2L cross-entity graphs, and the sync list are
// all rebuilt against that agent's own channel instances.
func CreateAgents(m *Model, tInit float64) ([]*entity.Agent, error) {
	agents := make([]*entity.Agent, m.N0)
	for i := 0; i < m.N0; i++ {
		subst := make(map[channel.AgentChannel]channel.AgentChannel, len(m.agentOrder))
		for _, name := range m.agentOrder {
			tmpl := m.agentChannels[name].channel
			subst[tmpl] = tmpl.Clone()
		}

		initial := make(map[channel.AgentChannel]float64, len(m.agentOrder))
		depGraph := make(map[channel.AgentChannel][]channel.AgentChannel, len(m.agentOrder))
		l2g := make(map[channel.AgentChannel][]channel.WorldChannel, len(m.agentOrder))
		var sync []channel.AgentChannel
		for _, name := range m.agentOrder {
			e := m.agentChannels[name]
			cloned := subst[e.channel]
			initial[cloned] = tInit
			deps := make([]channel.AgentChannel, len(e.acDeps))
			for j, d := range e.acDeps {
				deps[j] = subst[d]
			}
			depGraph[cloned] = deps
			l2g[cloned] = e.wcDeps
			if e.sync {
				sync = append(sync, cloned)
			}
		}

		g2l := make(map[channel.WorldChannel][]channel.AgentChannel, len(m.worldOrder))
		for _, name := range m.worldOrder {
			e := m.worldChannels[name]
			deps := make([]channel.AgentChannel, len(e.acDeps))
			for j, d := range e.acDeps {
				deps[j] = subst[d]
			}
			g2l[e.channel] = deps
		}

		sched, err := schedule.NewAgentScheduler(tInit, initial, depGraph, l2g, g2l, sync)
		if err != nil {
			return nil, err
		}

		var logger *logging.LoggerNode
		if spec, ok := m.logged[i]; ok {
			logger = logging.NewLoggerNode(spec.names, spec.fn)
		}
		agents[i] = entity.NewAgent(m.AgentVars, sched, logger)
	}
	return agents, nil
}

// BuildConfig creates the world and initial agent population and packages
// them with the model's bookkeeping into a simulator.Config.
func BuildConfig(m *Model, tInit float64) (simulator.Config, error) {
	world, err := CreateWorld(m, tInit)
	if err != nil {
		return simulator.Config{}, err
	}
	agents, err := CreateAgents(m, tInit)
	if err != nil {
		return simulator.Config{}, err
	}
	var loggers []*logging.LoggerNode
	for _, a := range agents {
		if a.Logger != nil {
			loggers = append(loggers, a.Logger)
		}
	}
	return simulator.Config{
		World:            world,
		Agents:           agents,
		NumAgentsMax:     m.NMax,
		StateInitializer: m.Initializer,
		Loggers:          loggers,
		Recorders:        m.Recorders,
	}, nil
}

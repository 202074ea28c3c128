package simulator

import (
	"math/rand"

	"agentsim/pkg/channel"
	"agentsim/pkg/entity"
	"agentsim/pkg/queue"
	"agentsim/pkg/simerr"
)

// AMSimulator is the Asynchronous-Method driver: agents run ahead
// independently up to a shared barrier time (the world's next event time, or
// the run's stop time), with agent-to-agent ordering within a barrier left
// unspecified. The agent queue is drained only between barriers, in
// repeated passes until no agent has new work pending.
type AMSimulator struct {
	base
	doSync   bool
	replaced map[*entity.Agent]bool
}

// NewAMSimulator builds and initializes an AM driver from cfg.
func NewAMSimulator(cfg Config) (*AMSimulator, error) {
	s := &AMSimulator{base: newBase(cfg), replaced: make(map[*entity.Agent]bool)}
	s.world.SetDriver(s)
	for _, a := range s.agents {
		a.SetDriver(s)
	}
	if err := s.initialize(); err != nil {
		return nil, err
	}
	return s, nil
}

// IsFM implements entity.Driver: the AM driver never drains the agent queue
// from inside an individual agent's firing protocol.
func (s *AMSimulator) IsFM() bool { return false }

// ProcessAgentQueue implements entity.Driver. Only the world's firing
// protocol calls it under this driver; agents born there join the
// population and run at the next barrier.
func (s *AMSimulator) ProcessAgentQueue() error {
	_, err := s.drainAgentQueue()
	return err
}

func (s *AMSimulator) initialize() error {
	s.mode = Normal
	if s.numAgents >= s.numAgentsMax {
		s.mode = ConstantNumber
	}
	s.sizeThreshHi = s.numAgentsMax
	s.sizeThreshLo = -1

	s.world.SetSize(float64(s.numAgents))
	s.world.TS = []float64{s.world.Clock()}
	s.world.SizeSeries = []float64{float64(s.numAgents)}

	if s.stateInitializer != nil {
		s.stateInitializer(s.world, s.agents)
	}

	if _, err := s.world.ScheduleAllChannels(); err != nil {
		return err
	}
	for _, a := range s.agents {
		if _, err := a.ScheduleAllChannels(s.world); err != nil {
			return err
		}
	}

	for _, a := range s.agents {
		if len(a.Scheduler().Sync) > 0 {
			s.doSync = true
			break
		}
	}

	s.recordSnapshot()
	return nil
}

// Run advances the simulation up to and including tstop in barrier steps.
func (s *AMSimulator) Run(tstop float64) error {
	tsync := s.world.NextEventTime()

	for tsync <= tstop {
		deps, err := s.runAgentsToBarrier(tsync)
		if err != nil {
			return err
		}
		if len(deps) > 0 {
			if err := s.world.CrossScheduleFromAgentsAsync(deps); err != nil {
				return err
			}
		}

		if err := s.world.ProcessNextChannel(); err != nil {
			return err
		}
		if !s.world.Enabled() {
			return nil
		}
		if s.world.IsModified() {
			for _, a := range s.agents {
				if err := a.CrossScheduleFromWorld(s.world); err != nil {
					return err
				}
			}
		}
		tsync = s.world.NextEventTime()
	}

	if tsync > tstop {
		if _, err := s.runAgentsToBarrier(tstop); err != nil {
			return err
		}
	}
	return nil
}

// runAgentsToBarrier keeps firing each agent's next event while the agent's
// clock is at or before barrier, so the last event it fires may lie past
// barrier (even at +Inf when nothing else is scheduled); it then fires sync
// channels if any are registered, then drains the agent
// queue and repeats over any newly added agents until none remain pending —
// mirroring the original's repeated not_done loop. It returns the
// deduplicated set of world channels that any agent's l2g_graph flagged
// dependent during the pass, for the caller to reschedule once immediately
// before the world fires at this barrier.
func (s *AMSimulator) runAgentsToBarrier(barrier float64) ([]channel.WorldChannel, error) {
	seen := make(map[channel.WorldChannel]bool)
	var accumulated []channel.WorldChannel
	accumulate := func(a *entity.Agent) {
		for _, wch := range a.DrainPendingWorldDeps() {
			if !seen[wch] {
				seen[wch] = true
				accumulated = append(accumulated, wch)
			}
		}
	}

	notDone := s.agents
	for len(notDone) > 0 {
		for _, a := range notDone {
			for a.Enabled() && a.Clock() <= barrier {
				if err := a.ProcessNextChannel(); err != nil {
					return nil, err
				}
			}
			accumulate(a)
			if s.doSync {
				if err := a.Synchronize(barrier); err != nil {
					return nil, err
				}
				accumulate(a)
			}
		}
		next, err := s.drainAgentQueue()
		if err != nil {
			return nil, err
		}
		notDone = next
	}
	return accumulated, nil
}

// drainAgentQueue implements the AM variant of queue draining: it returns
// the set of agents freshly added to the population this pass, so the
// caller can advance them to the barrier too before checking the queue
// again.
func (s *AMSimulator) drainAgentQueue() ([]*entity.Agent, error) {
	var notDone []*entity.Agent
	size := s.world.Size()

	for s.agentQueue.Len() > 0 {
		action, agent, err := s.agentQueue.Dequeue()
		if err != nil {
			return nil, err
		}
		var delta float64
		if s.mode == Normal {
			delta, err = s.processNormal(action, agent, &notDone)
		} else {
			delta, err = s.processConstantNumber(action, agent, &notDone)
		}
		if err != nil {
			return nil, err
		}
		size += delta

		if s.mode == Normal && s.numAgents == s.sizeThreshHi {
			s.mode = ConstantNumber
		} else if s.mode == ConstantNumber && size <= float64(s.sizeThreshLo) {
			size = float64(s.sizeThreshLo)
			s.mode = Normal
		}
	}

	s.world.SetSize(size)
	s.world.TS = append(s.world.TS, s.world.Clock())
	s.world.SizeSeries = append(s.world.SizeSeries, size)

	if len(s.replaced) > 0 {
		s.replaced = make(map[*entity.Agent]bool)
	}
	return notDone, nil
}

func (s *AMSimulator) processNormal(action queue.Action, agent *entity.Agent, notDone *[]*entity.Agent) (float64, error) {
	delta, err := processNormal(&s.base, action, agent)
	if err != nil {
		return 0, err
	}
	if action == queue.Add {
		*notDone = append(*notDone, agent)
	}
	return delta, nil
}

// processConstantNumber mirrors the original's replace-on-birth,
// copy-on-death logic, with one extra wrinkle: a birth whose parent has
// already been replaced this pass by some other agent's birth is discarded
// rather than clobbering that newer substitution.
func (s *AMSimulator) processConstantNumber(action queue.Action, agent *entity.Agent, notDone *[]*entity.Agent) (float64, error) {
	switch action {
	case queue.Add:
		parent := agent.Parent()
		if err := agent.FinalizePrevEvent(); err != nil {
			return 0, err
		}
		if s.replaced[parent] {
			return 0, nil
		}
		idx := rand.Intn(len(s.agents))
		s.replaced[s.agents[idx]] = true
		s.agents[idx] = agent
		s.nBirths++
		*notDone = append(*notDone, agent)
		return s.world.Size() / float64(s.numAgentsMax), nil

	case queue.Delete:
		if s.replaced[agent] {
			return 0, nil
		}
		if s.numAgents == 1 {
			return 0, simerr.NewSimulationError("cannot remove the last agent while in constant-number mode")
		}
		idx := indexOfAgent(s.agents, agent)
		if idx < 0 {
			return 0, simerr.NewSimulationError("agent not found in population")
		}
		srcIdx := idx
		for srcIdx == idx || !s.agents[srcIdx].Enabled() {
			srcIdx = rand.Intn(s.numAgents)
		}
		s.agents[idx] = s.agents[srcIdx].Copy()
		s.nDeaths++
		return -(s.world.Size() / float64(s.numAgentsMax)), nil

	default:
		return 0, simerr.NewSimulationError("agent queue: unknown action")
	}
}

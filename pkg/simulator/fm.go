package simulator

import (
	"math/rand"

	"agentsim/pkg/entity"
	"agentsim/pkg/ipq"
	"agentsim/pkg/queue"
	"agentsim/pkg/simerr"
)

// FMSimulator is the First-Method driver: a single global indexed priority
// queue orders every agent by next event time, the world's next event time
// is compared against the queue's minimum separately, and each event is
// fired one at a time in strict time order.
type FMSimulator struct {
	base
	timetable *ipq.IPQ[*entity.Agent]
	doSync    bool
}

// NewFMSimulator builds and initializes an FM driver from cfg: it applies
// the state initializer, schedules every channel, builds the global
// timetable, and takes the first recorder snapshot.
func NewFMSimulator(cfg Config) (*FMSimulator, error) {
	s := &FMSimulator{base: newBase(cfg)}
	s.world.SetDriver(s)
	for _, a := range s.agents {
		a.SetDriver(s)
	}
	if err := s.initialize(); err != nil {
		return nil, err
	}
	return s, nil
}

// IsFM implements entity.Driver.
func (s *FMSimulator) IsFM() bool { return true }

func (s *FMSimulator) initialize() error {
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

	items := make([]*entity.Agent, len(s.agents))
	keys := make([]float64, len(s.agents))
	for i, a := range s.agents {
		items[i] = a
		keys[i] = a.NextEventTime()
	}
	tt, err := ipq.New(items, keys)
	if err != nil {
		return err
	}
	s.timetable = tt

	for _, a := range s.agents {
		if len(a.Scheduler().Sync) > 0 {
			s.doSync = true
			break
		}
	}

	s.recordSnapshot()
	return nil
}

// Run advances the simulation from its current clock up to and including
// tstop, firing events in strict global time order.
func (s *FMSimulator) Run(tstop float64) error {
	emin, tmin, err := s.earliest()
	if err != nil {
		return err
	}

	for tmin <= tstop {
		switch {
		case emin == nil: // the world is the earliest entity
			if s.doSync {
				for _, a := range s.agents {
					if err := a.Synchronize(tmin); err != nil {
						return err
					}
					if s.timetable.Contains(a) {
						if err := s.timetable.UpdateKey(a, a.NextEventTime()); err != nil {
							return err
						}
					}
				}
				emin, tmin, err = s.earliest()
				if err != nil {
					return err
				}
				if emin != nil {
					continue
				}
			}

			if err := s.world.ProcessNextChannel(); err != nil {
				return err
			}
			if s.world.IsModified() {
				for _, a := range s.agents {
					if err := a.CrossScheduleFromWorld(s.world); err != nil {
						return err
					}
					if s.timetable.Contains(a) {
						if err := s.timetable.UpdateKey(a, a.NextEventTime()); err != nil {
							return err
						}
					}
				}
			}
			if !s.world.Enabled() {
				return nil
			}

		case !emin.Enabled():
			if err := s.timetable.Remove(emin); err != nil {
				return err
			}

		default:
			if err := emin.ProcessNextChannel(); err != nil {
				return err
			}
			if s.timetable.Contains(emin) {
				if !emin.Enabled() {
					if err := s.timetable.Remove(emin); err != nil {
						return err
					}
				} else {
					if err := s.timetable.UpdateKey(emin, emin.NextEventTime()); err != nil {
						return err
					}
					if emin.IsModified() {
						if err := s.world.CrossScheduleFromAgent(emin); err != nil {
							return err
						}
					}
				}
			}
		}

		emin, tmin, err = s.earliest()
		if err != nil {
			return err
		}
	}
	return nil
}

// earliest returns (nil, worldTime) when the world is the next entity to
// fire, or (agent, agentTime) when an agent is, with ties going to the
// world (agent earliest only wins on strictly-less time).
func (s *FMSimulator) earliest() (*entity.Agent, float64, error) {
	tWorld := s.world.NextEventTime()
	if s.timetable.Len() == 0 {
		return nil, tWorld, nil
	}
	agent, tAgent, err := s.timetable.Peek()
	if err != nil {
		return nil, 0, err
	}
	if tAgent < tWorld {
		return agent, tAgent, nil
	}
	return nil, tWorld, nil
}

// ProcessAgentQueue implements entity.Driver: it drains every pending
// ADD/DELETE action immediately, updating the global timetable in lockstep
// with the population, then appends one world-trajectory sample.
func (s *FMSimulator) ProcessAgentQueue() error {
	size := s.world.Size()
	for s.agentQueue.Len() > 0 {
		action, agent, err := s.agentQueue.Dequeue()
		if err != nil {
			return err
		}
		var delta float64
		if s.mode == Normal {
			delta, err = s.processNormal(action, agent)
		} else {
			delta, err = s.processConstantNumber(action, agent)
		}
		if err != nil {
			return err
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
	return nil
}

func (s *FMSimulator) processNormal(action queue.Action, agent *entity.Agent) (float64, error) {
	delta, err := processNormal(&s.base, action, agent)
	if err != nil {
		return 0, err
	}
	if action == queue.Add {
		if err := s.timetable.Add(agent, agent.NextEventTime()); err != nil {
			return 0, err
		}
	} else {
		if err := s.timetable.Remove(agent); err != nil {
			return 0, err
		}
	}
	return delta, nil
}

func (s *FMSimulator) processConstantNumber(action queue.Action, agent *entity.Agent) (float64, error) {
	switch action {
	case queue.Add:
		if err := agent.FinalizePrevEvent(); err != nil {
			return 0, err
		}
		idx := rand.Intn(len(s.agents))
		target := s.agents[idx]
		s.agents[idx] = agent
		if s.timetable.Contains(target) {
			key := agent.NextEventTime()
			if err := s.timetable.ReplaceItem(target, agent, &key); err != nil {
				return 0, err
			}
		} else {
			// target was already disabled and lazily dropped from the
			// timetable; the new agent still needs its own slot.
			if err := s.timetable.Add(agent, agent.NextEventTime()); err != nil {
				return 0, err
			}
		}
		s.nBirths++
		return s.world.Size() / float64(s.numAgentsMax), nil

	case queue.Delete:
		if s.numAgents <= 1 {
			return 0, simerr.NewSimulationError("cannot remove the last agent while in constant-number mode")
		}
		idx := indexOfAgent(s.agents, agent)
		if idx < 0 {
			return 0, simerr.NewSimulationError("agent not found in population")
		}
		srcIdx := pickReplacementIndex(s.numAgents, idx)
		replacement := s.agents[srcIdx].Copy()
		s.agents[idx] = replacement
		if replacement.Enabled() {
			key := replacement.NextEventTime()
			if err := s.timetable.ReplaceItem(agent, replacement, &key); err != nil {
				return 0, err
			}
		}
		s.nDeaths++
		return -(s.world.Size() / float64(s.numAgentsMax)), nil

	default:
		return 0, simerr.NewSimulationError("agent queue: unknown action")
	}
}

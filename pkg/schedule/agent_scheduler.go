package schedule

import (
	"agentsim/pkg/channel"
	"agentsim/pkg/simerr"
)

// AgentScheduler wraps a Scheduler[AgentChannel] with the two cross-entity
// dependency graphs and the ordered list of synchronization channels that
// only an agent's scheduler carries: L2G maps an agent channel to the world
// channels it must trigger a reschedule of when it fires and modifies state;
// G2L is the mirror image, keyed by world channel.
type AgentScheduler struct {
	*Scheduler[channel.AgentChannel]

	L2G  map[channel.AgentChannel][]channel.WorldChannel
	G2L  map[channel.WorldChannel][]channel.AgentChannel
	Sync []channel.AgentChannel
}

// NewAgentScheduler builds an AgentScheduler, rejecting any sync channel
// that lists another sync channel as one of its internal dependents — firing
// order among sync channels within one barrier is the registration order,
// and a dependency between two of them would make that order ambiguous.
func NewAgentScheduler(
	tInit float64,
	initial map[channel.AgentChannel]float64,
	depGraph map[channel.AgentChannel][]channel.AgentChannel,
	l2g map[channel.AgentChannel][]channel.WorldChannel,
	g2l map[channel.WorldChannel][]channel.AgentChannel,
	sync []channel.AgentChannel,
) (*AgentScheduler, error) {
	base, err := New(tInit, initial, depGraph)
	if err != nil {
		return nil, err
	}
	syncSet := make(map[channel.AgentChannel]bool, len(sync))
	for _, sc := range sync {
		syncSet[sc] = true
	}
	for _, sc := range sync {
		for _, dep := range base.Dependents(sc) {
			if syncSet[dep] {
				return nil, simerr.NewSimulationError(
					"sync channel %q may not list sync channel %q as a dependent", sc.ID(), dep.ID())
			}
		}
	}
	return &AgentScheduler{
		Scheduler: base,
		L2G:       l2g,
		G2L:       g2l,
		Sync:      append([]channel.AgentChannel(nil), sync...),
	}, nil
}

// Clone produces an independent AgentScheduler for a newly cloned agent: the
// timetable, internal dependency graph, and sync list are rebuilt over freshly
// cloned channels via cloneFn; L2G/G2L continue to reference the shared
// (uncloned) world channels, matching the original design where world
// channels are never copied.
func (as *AgentScheduler) Clone(cloneFn func(channel.AgentChannel) channel.AgentChannel) *AgentScheduler {
	newBase, subst := as.Scheduler.CloneInto(cloneFn)

	newL2G := make(map[channel.AgentChannel][]channel.WorldChannel, len(as.L2G))
	for ch, deps := range as.L2G {
		newL2G[subst[ch]] = append([]channel.WorldChannel(nil), deps...)
	}

	newG2L := make(map[channel.WorldChannel][]channel.AgentChannel, len(as.G2L))
	for wch, deps := range as.G2L {
		substDeps := make([]channel.AgentChannel, len(deps))
		for i, d := range deps {
			substDeps[i] = subst[d]
		}
		newG2L[wch] = substDeps
	}

	newSync := make([]channel.AgentChannel, len(as.Sync))
	for i, sc := range as.Sync {
		newSync[i] = subst[sc]
	}

	return &AgentScheduler{Scheduler: newBase, L2G: newL2G, G2L: newG2L, Sync: newSync}
}

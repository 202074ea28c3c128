// Package queue implements the time-priority queue of pending agent
// insertions and removals that a simulator drains between (or immediately
// after) entity events.
package queue

import (
	"container/heap"

	"agentsim/pkg/entity"
	"agentsim/pkg/simerr"
)

// Action distinguishes a population insertion from a removal.
type Action int

const (
	Add Action = iota
	Delete
)

func (a Action) String() string {
	if a == Add {
		return "ADD"
	}
	return "DELETE"
}

type qEntry struct {
	action Action
	agent  *entity.Agent
	key    float64
	seq    uint64
}

type innerHeap []qEntry

func (h innerHeap) Len() int { return len(h) }
func (h innerHeap) Less(i, j int) bool {
	if h[i].key != h[j].key {
		return h[i].key < h[j].key
	}
	return h[i].seq < h[j].seq
}
func (h innerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *innerHeap) Push(x any)   { *h = append(*h, x.(qEntry)) }
func (h *innerHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// AgentQueue is a FIFO-within-ties min-priority queue of pending ADD/DELETE
// actions, keyed by the event time of the channel that triggered them. It
// doesn't need the indexed decrease-key support pkg/ipq provides — an
// agent's queue entry is never looked up or rekeyed after being enqueued —
// so it's built directly on container/heap rather than duplicating the IPQ.
type AgentQueue struct {
	h       innerHeap
	nextSeq uint64
}

// New returns an empty AgentQueue.
func New() *AgentQueue { return &AgentQueue{} }

// Len reports the number of pending actions.
func (q *AgentQueue) Len() int { return len(q.h) }

// Enqueue validates and queues one action. ADD requires the agent to carry
// a non-nil parent marker (it must be a freshly cloned, not-yet-finalized
// agent); DELETE requires a nil parent marker, and immediately disables the
// agent regardless of when it is actually dequeued.
func (q *AgentQueue) Enqueue(action Action, agent *entity.Agent, key float64) error {
	switch action {
	case Add:
		if agent.Parent() == nil {
			return simerr.NewSimulationError(
				"cannot enqueue ADD: agent has no parent marker set (not a freshly cloned agent)")
		}
	case Delete:
		if agent.Parent() != nil {
			return simerr.NewSimulationError(
				"cannot enqueue DELETE: agent still carries a parent marker (unfinalized clone)")
		}
		agent.SetEnabled(false)
	default:
		return simerr.NewSimulationError("agent queue: unknown action %d", action)
	}
	heap.Push(&q.h, qEntry{action: action, agent: agent, key: key, seq: q.nextSeq})
	q.nextSeq++
	return nil
}

// Dequeue pops the action with the smallest key (ties broken by enqueue
// order), returning an error if the queue is empty.
func (q *AgentQueue) Dequeue() (Action, *entity.Agent, error) {
	if len(q.h) == 0 {
		return 0, nil, simerr.NewSimulationError("agent queue: dequeue on empty queue")
	}
	e := heap.Pop(&q.h).(qEntry)
	return e.action, e.agent, nil
}

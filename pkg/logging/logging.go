// Package logging implements the lineage logger binary tree and the
// population-level Recorder used to capture trajectories during a run.
package logging

// Snapshotter is the minimal surface a LoggerNode needs from whatever it is
// recording — satisfied structurally by *entity.State without pkg/logging
// ever importing pkg/entity.
type Snapshotter interface {
	Names() []string
	Get(name string) any
}

// LoggingFunc appends a snapshot of entity's named variables into log, keyed
// by name. The default implementation below is a drop-in substitute for the
// original's default_loggingfcn.
type LoggingFunc func(log map[string][]any, time float64, entity Snapshotter)

func defaultLoggingFunc(log map[string][]any, _ float64, entity Snapshotter) {
	for _, name := range entity.Names() {
		log[name] = append(log[name], entity.Get(name))
	}
}

// LoggerNode keeps a log of events and recorded state over one agent's
// lifetime, and links to the logs of its progeny. Nodes form a binary tree:
// a clone event branches the firing agent's node into a left child (the
// parent's continuation) and a right child (the new agent).
type LoggerNode struct {
	Parent *LoggerNode
	Lchild *LoggerNode
	Rchild *LoggerNode

	names      []string
	loggingFcn LoggingFunc
	Log        map[string][]any
}

// NewLoggerNode creates a root logger node for the given variable names. A
// nil loggingFcn uses the default per-name snapshot behavior.
func NewLoggerNode(names []string, loggingFcn LoggingFunc) *LoggerNode {
	return newLoggerNode(names, loggingFcn, nil)
}

func newLoggerNode(names []string, loggingFcn LoggingFunc, parent *LoggerNode) *LoggerNode {
	if loggingFcn == nil {
		loggingFcn = defaultLoggingFunc
	}
	log := make(map[string][]any, len(names)+2)
	for _, n := range names {
		log[n] = nil
	}
	log["time"] = nil
	log["channel"] = nil
	return &LoggerNode{Parent: parent, names: names, loggingFcn: loggingFcn, Log: log}
}

// Children returns the node's two slots (either may be nil).
func (n *LoggerNode) Children() []*LoggerNode { return []*LoggerNode{n.Lchild, n.Rchild} }

// Record appends one event: the firing time, the channel that fired, and a
// snapshot of entity's current variables.
func (n *LoggerNode) Record(time float64, channelID string, entity Snapshotter) {
	n.Log["time"] = append(n.Log["time"], time)
	n.Log["channel"] = append(n.Log["channel"], channelID)
	n.loggingFcn(n.Log, time, entity)
}

// Branch splits this node into a left (parent-continuation) and right
// (new-agent) child, both fresh nodes sharing this node's variable names and
// logging function.
func (n *LoggerNode) Branch() (left, right *LoggerNode) {
	left = newLoggerNode(n.names, n.loggingFcn, n)
	n.Lchild = left
	right = newLoggerNode(n.names, n.loggingFcn, n)
	n.Rchild = right
	return left, right
}

// TraverseBFS visits the tree rooted at n in level order.
func (n *LoggerNode) TraverseBFS() []*LoggerNode {
	if n == nil {
		return nil
	}
	var out []*LoggerNode
	observed := map[*LoggerNode]bool{nil: true}
	queue := []*LoggerNode{n}
	observed[n] = true
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		out = append(out, node)
		for _, child := range node.Children() {
			if !observed[child] {
				observed[child] = true
				queue = append(queue, child)
			}
		}
	}
	return out
}

// TraverseDFSPreorder visits the tree rooted at n, parent before children.
func (n *LoggerNode) TraverseDFSPreorder() []*LoggerNode {
	var out []*LoggerNode
	var walk func(*LoggerNode)
	walk = func(node *LoggerNode) {
		if node == nil {
			return
		}
		out = append(out, node)
		walk(node.Lchild)
		walk(node.Rchild)
	}
	walk(n)
	return out
}

// TraverseDFSPostorder visits the tree rooted at n, children before parent.
func (n *LoggerNode) TraverseDFSPostorder() []*LoggerNode {
	var out []*LoggerNode
	var walk func(*LoggerNode)
	walk = func(node *LoggerNode) {
		if node == nil {
			return
		}
		walk(node.Lchild)
		walk(node.Rchild)
		out = append(out, node)
	}
	walk(n)
	return out
}

// AdjacencyList returns every (parent, child) pair in the tree rooted at n,
// in DFS preorder.
func (n *LoggerNode) AdjacencyList() [][2]*LoggerNode {
	nodes := n.TraverseDFSPreorder()
	out := make([][2]*LoggerNode, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, [2]*LoggerNode{node.Parent, node})
	}
	return out
}

// WorldSnapshotter and AgentsSnapshotter let Recorder stay decoupled from
// pkg/entity the same way Snapshotter does for LoggerNode.
type WorldSnapshotter interface {
	Snapshotter
	Size() float64
}

// RecordingFunc appends one population snapshot into log.
type RecordingFunc func(log map[string][]any, time float64, world WorldSnapshotter, agents []Snapshotter)

// Recorder records a sequence of whole-population snapshots: the clock,
// world size, and every declared world/agent variable at each sampled time.
type Recorder struct {
	worldNames []string
	agentNames []string
	recordFcn  RecordingFunc
	Log        map[string][]any
}

// NewRecorder builds a Recorder over the given world and agent variable
// names. A nil recordingFcn uses the default per-variable snapshot behavior.
func NewRecorder(worldNames, agentNames []string, recordingFcn RecordingFunc) *Recorder {
	r := &Recorder{worldNames: worldNames, agentNames: agentNames, recordFcn: recordingFcn}
	if r.recordFcn == nil {
		r.recordFcn = r.defaultRecord
	}
	names := make([]string, 0, len(worldNames)+len(agentNames)+2)
	names = append(names, "time", "size")
	names = append(names, worldNames...)
	names = append(names, agentNames...)
	log := make(map[string][]any, len(names))
	for _, n := range names {
		log[n] = nil
	}
	r.Log = log
	return r
}

// Record samples one snapshot of the population at time.
func (r *Recorder) Record(time float64, world WorldSnapshotter, agents []Snapshotter) {
	r.Log["time"] = append(r.Log["time"], time)
	r.Log["size"] = append(r.Log["size"], world.Size())
	r.recordFcn(r.Log, time, world, agents)
}

func (r *Recorder) defaultRecord(log map[string][]any, _ float64, world WorldSnapshotter, agents []Snapshotter) {
	for _, name := range r.agentNames {
		vals := make([]any, len(agents))
		for i, a := range agents {
			vals[i] = a.Get(name)
		}
		log[name] = append(log[name], vals)
	}
	for _, name := range r.worldNames {
		log[name] = append(log[name], world.Get(name))
	}
}

package logging

import "agentsim/pkg/channel"

// RecordingChannel is a ready-made world channel that samples a Recorder
// every tstep time units and never itself modifies world state. toAgents
// converts the driver's opaque agent-population cargo into the Snapshotter
// view Recorder.Record needs, keeping this package decoupled from
// pkg/entity the same way the rest of the channel callback contract is.
type RecordingChannel struct {
	id       string
	tstep    float64
	recorder *Recorder
	toAgents func(cargo any) []Snapshotter
}

// NewRecordingChannel builds a RecordingChannel identified by id, sampling
// recorder every tstep time units.
func NewRecordingChannel(id string, tstep float64, recorder *Recorder, toAgents func(cargo any) []Snapshotter) *RecordingChannel {
	return &RecordingChannel{id: id, tstep: tstep, recorder: recorder, toAgents: toAgents}
}

func (c *RecordingChannel) ID() string { return c.id }

func (c *RecordingChannel) Schedule(self, cargo any, clock float64, source any) float64 {
	return clock + c.tstep
}

func (c *RecordingChannel) Fire(self, cargo any, clock, eventTime float64) bool {
	world := self.(WorldSnapshotter)
	c.recorder.Record(eventTime, world, c.toAgents(cargo))
	return false
}

func (c *RecordingChannel) Clone() channel.WorldChannel {
	return &RecordingChannel{id: c.id, tstep: c.tstep, recorder: c.recorder, toAgents: c.toAgents}
}

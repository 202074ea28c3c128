// Package simerr defines the fatal error taxonomy the simulator core raises.
// Every error here aborts the current Run call; none are retried by the
// driver. The core returns them unwrapped, so callers can recover the
// classified error with errors.As.
package simerr

import "fmt"

// SchedulingError is raised when a channel's Schedule callback returns an
// event time earlier than the entity's current clock.
type SchedulingError struct {
	ChannelID string
	Clock     float64
	Attempted float64
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("scheduling error: channel %q returned event time %g, but clock is at %g",
		e.ChannelID, e.Attempted, e.Clock)
}

// FiringError is raised when a manual (nested) fire is requested at a time
// preceding the entity's current clock.
type FiringError struct {
	ChannelID string
	Clock     float64
	FireTime  float64
}

func (e *FiringError) Error() string {
	return fmt.Sprintf("firing error: channel %q was fired at t=%g, but clock is at %g",
		e.ChannelID, e.FireTime, e.Clock)
}

// SimulationError covers invariant violations: invalid mode transitions, an
// agent missing from the population, a constant-number delete with only one
// agent left, queue misuse, duplicate channel registration, a sync channel
// with sync-channel dependents, and an initial event time preceding t_init.
type SimulationError struct {
	Msg string
}

func (e *SimulationError) Error() string { return "simulation error: " + e.Msg }

// NewSimulationError builds a SimulationError with a formatted message.
func NewSimulationError(format string, args ...any) *SimulationError {
	return &SimulationError{Msg: fmt.Sprintf(format, args...)}
}

// ZeroPopulationError is raised when the last agent is removed while the
// simulator is in NORMAL mode.
type ZeroPopulationError struct {
	Time float64
}

func (e *ZeroPopulationError) Error() string {
	return fmt.Sprintf("zero population error: the population crashed at t=%g", e.Time)
}

// LoggingError is raised when a lineage logging function produces a
// wrong-arity record.
type LoggingError struct {
	Msg string
}

func (e *LoggingError) Error() string { return "logging error: " + e.Msg }

// Package statemachine implements the four-state buffer hysteresis FSM
// that drives the realtime control loop.
package statemachine

import (
	"github.com/wms-platform/scheduler-core/internal/platform/events"
)

// State is one of the four buffer occupancy regimes.
type State string

const (
	Normal   State = "Normal"
	Low      State = "Low"
	Critical State = "Critical"
	Overflow State = "Overflow"
)

// Thresholds configures the FSM's level boundaries and dead-band.
type Thresholds struct {
	Critical float64 // Tcrit
	Low      float64 // Tlow
	High     float64 // Thigh
	DeadBand float64 // δ
}

// ForkliftCount returns the recommended active-forklift count for s,
// given the total fleet size, per spec.md §4.1.
func (s State) ForkliftCount(total int) int {
	switch s {
	case Critical:
		return total
	case Low:
		return max(2, total-1)
	case Normal:
		return max(1, total/2)
	case Overflow:
		return 1
	default:
		return max(1, total/2)
	}
}

// DeliveryPriority returns the delivery priority associated with s.
func (s State) DeliveryPriority() int {
	switch s {
	case Critical:
		return 100
	case Low:
		return 75
	case Normal:
		return 50
	case Overflow:
		return 10
	default:
		return 50
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// BufferFSM tracks the current buffer state and applies hysteresis
// transitions as new fill levels arrive.
type BufferFSM struct {
	thresholds Thresholds
	current    State
	bus        *events.Bus
}

// New creates a buffer FSM starting in Normal state. bus may be nil; if
// set, every state change publishes a BufferLevelChanged event.
func New(thresholds Thresholds, bus *events.Bus) *BufferFSM {
	return &BufferFSM{thresholds: thresholds, current: Normal, bus: bus}
}

// State returns the current state.
func (f *BufferFSM) State() State { return f.current }

// StateChange records a from/to transition, published on BufferLevelChanged.
type StateChange struct {
	From  State
	To    State
	Level float64
}

// Update feeds a new fill level through the transition table in
// spec.md §4.1 and returns the resulting state. Transitions fire in
// priority order: the Critical-entry guard always wins regardless of
// current state; otherwise the table is evaluated for the current
// state only.
func (f *BufferFSM) Update(level float64) State {
	t := f.thresholds
	prev := f.current
	next := prev

	switch {
	case level < t.Critical:
		next = Critical
	case prev == Normal && level < t.Low:
		next = Low
	case prev == Normal && level > t.High+t.DeadBand:
		next = Overflow
	case prev == Low && level > t.Low+t.DeadBand:
		next = Normal
	case prev == Critical && level > t.Critical+t.DeadBand:
		next = Low
	case prev == Overflow && level < t.High:
		next = Normal
	}

	if next != prev {
		f.current = next
		if f.bus != nil {
			f.bus.Publish(events.BufferLevelChanged, StateChange{From: prev, To: next, Level: level})
		}
	}
	return f.current
}

// Package controller implements the hysteresis controller (C2) that
// turns a buffer FSM state into delivery-rate and forklift-count
// recommendations.
package controller

import (
	"github.com/wms-platform/scheduler-core/internal/domain"
	"github.com/wms-platform/scheduler-core/internal/statemachine"
)

// gain returns the required-delivery-rate multiplier per spec.md §4.2.
func gain(s statemachine.State) float64 {
	switch s {
	case statemachine.Critical:
		return 3.0
	case statemachine.Low:
		return 1.5
	case statemachine.Normal:
		return 1.0
	case statemachine.Overflow:
		return 0.5
	default:
		return 1.0
	}
}

// palletFloor returns the per-state floor on pallets_to_request.
func palletFloor(s statemachine.State) float64 {
	switch s {
	case statemachine.Critical:
		return 5
	case statemachine.Low:
		return 3
	case statemachine.Normal:
		return 1
	case statemachine.Overflow:
		return 0
	default:
		return 1
	}
}

// Controller wraps a BufferFSM and a BufferZone to produce the
// recommendations the realtime loop dispatches on.
type Controller struct {
	fsm    *statemachine.BufferFSM
	thresh statemachine.Thresholds

	level float64
}

// New creates a controller over the given FSM and thresholds.
func New(fsm *statemachine.BufferFSM, thresh statemachine.Thresholds) *Controller {
	return &Controller{fsm: fsm, thresh: thresh}
}

// Update feeds the buffer's current fill level through the FSM and
// remembers it for the derived operations below.
func (c *Controller) Update(buffer *domain.BufferZone, consumptionRate float64) statemachine.State {
	c.level = buffer.FillLevel()
	return c.fsm.Update(c.level)
}

// targetLevel is the midpoint of Tlow and Thigh.
func (c *Controller) targetLevel() float64 {
	return (c.thresh.Low + c.thresh.High) / 2
}

// RequiredDeliveryRate computes consumption·gain(state) + (target −
// level)·consumption·2, floored at 0.
func (c *Controller) RequiredDeliveryRate(consumptionRate float64) float64 {
	state := c.fsm.State()
	rate := consumptionRate*gain(state) + (c.targetLevel()-c.level)*consumptionRate*2
	if rate < 0 {
		return 0
	}
	return rate
}

// PalletsToRequest computes (target − level)·capacity, floored at the
// current state's per-state minimum.
func (c *Controller) PalletsToRequest(capacity int) float64 {
	state := c.fsm.State()
	deficit := (c.targetLevel() - c.level) * float64(capacity)
	floor := palletFloor(state)
	if deficit < floor {
		return floor
	}
	return deficit
}

// RecommendedForkliftCount delegates to the FSM's state-to-count mapping.
func (c *Controller) RecommendedForkliftCount(total int) int {
	return c.fsm.State().ForkliftCount(total)
}

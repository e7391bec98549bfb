package domain

import "time"

// BufferSnapshot is a point-in-time observation of the buffer used by
// the realtime loop, the historical repository, and backtest replay.
type BufferSnapshot struct {
	Timestamp       time.Time
	FillLevel       float64
	Count           int
	Capacity        int
	DeliveryRate    float64 // pallets/hour arriving
	ConsumptionRate float64 // pallets/hour leaving
	State           string  // buffer FSM state at capture time
}

// NetFlowRate is DeliveryRate minus ConsumptionRate: positive means the
// buffer is filling, negative means it is draining.
func (s BufferSnapshot) NetFlowRate() float64 {
	return s.DeliveryRate - s.ConsumptionRate
}

package domain

// PickerState tracks a picker's current activity (spec.md §3).
type PickerState string

const (
	PickerIdle    PickerState = "idle"
	PickerPicking PickerState = "picking"
	PickerWaiting PickerState = "waiting" // waiting on a stalled buffer
	PickerBreak   PickerState = "break"
	PickerOffline PickerState = "offline"
)

// Picker drains the buffer into orders. Invariant: a picker never owns
// pallets beyond the one it is currently picking from.
type Picker struct {
	ID                    string
	Name                  string
	State                 PickerState
	AvgRate               float64 // historical lines/minute
	CurrentRate           float64 // current-shift observed rate
	PalletConsumptionRate float64 // pallets/hour this picker drains from the buffer
}

// NewPicker creates an Idle picker.
func NewPicker(id, name string, avgRate float64) *Picker {
	return &Picker{ID: id, Name: name, State: PickerIdle, AvgRate: avgRate, CurrentRate: avgRate}
}

// IsIdle reports whether the picker is available to start picking.
func (p *Picker) IsIdle() bool { return p.State == PickerIdle }

package domain

import "math"

// ForkliftState tracks the forklift's current activity (spec.md §3).
type ForkliftState string

const (
	ForkliftIdle           ForkliftState = "idle"
	ForkliftMovingToPallet ForkliftState = "moving_to_pallet"
	ForkliftLoading        ForkliftState = "loading"
	ForkliftMovingToBuffer ForkliftState = "moving_to_buffer"
	ForkliftUnloading      ForkliftState = "unloading"
	ForkliftOffline        ForkliftState = "offline"
)

// Forklift replenishes the buffer from storage. Invariant: at most one
// task at a time; any non-Idle, non-Offline state implies CurrentTaskID != "".
type Forklift struct {
	ID              string
	Name            string
	SpeedMPerS      float64
	LoadUnloadS     float64
	CurrentPosition float64
	State           ForkliftState
	CurrentTaskID   string
}

// NewForklift creates an Idle forklift at position 0.
func NewForklift(id, name string, speedMPerS, loadUnloadS float64) *Forklift {
	return &Forklift{ID: id, Name: name, SpeedMPerS: speedMPerS, LoadUnloadS: loadUnloadS, State: ForkliftIdle}
}

// IsAvailable reports whether the forklift can accept a new task: Idle
// and not already bound to one.
func (f *Forklift) IsAvailable() bool {
	return f.State == ForkliftIdle && f.CurrentTaskID == ""
}

// EstimateDeliveryTime computes spec.md §4.3's delivery time estimator:
// |distance_to_pallet|/speed + load_unload + distance_back/speed + load_unload,
// where distance_back is the distance from the pallet back to the buffer.
func (f *Forklift) EstimateDeliveryTime(palletDistanceFromForklift, palletDistanceToBuffer float64) float64 {
	if f.SpeedMPerS <= 0 {
		return math.Inf(1)
	}
	toPallet := math.Abs(palletDistanceFromForklift) / f.SpeedMPerS
	backToBuffer := math.Abs(palletDistanceToBuffer) / f.SpeedMPerS
	return toPallet + f.LoadUnloadS + backToBuffer + f.LoadUnloadS
}

// BindTask assigns a task id and transitions to MovingToPallet, per
// spec.md §4.3 step 2.
func (f *Forklift) BindTask(taskID string) {
	f.CurrentTaskID = taskID
	f.State = ForkliftMovingToPallet
}

// ReleaseTask clears the binding and returns the forklift to Idle (unless
// it went Offline while holding the task).
func (f *Forklift) ReleaseTask() {
	f.CurrentTaskID = ""
	if f.State != ForkliftOffline {
		f.State = ForkliftIdle
	}
}

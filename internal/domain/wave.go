package domain

import "time"

// WaveStatus tracks a wave's lifecycle.
type WaveStatus string

const (
	WavePending    WaveStatus = "pending"
	WaveActive     WaveStatus = "active"
	WaveCompleted  WaveStatus = "completed"
	WaveOverdue    WaveStatus = "overdue"
)

// Wave batches a set of streams released together for picking, bounded
// by a planned duration and a safety margin (spec.md §4.7).
type Wave struct {
	ID                string
	StreamIDs         []string
	Status            WaveStatus
	PlannedDuration   time.Duration
	SafetyMargin      time.Duration
	StartedAt         *time.Time
	CompletedAt       *time.Time
	MaxPallets        int
}

// NewWave creates a Pending wave with the given duration budget.
func NewWave(id string, plannedDuration, safetyMargin time.Duration, maxPallets int) *Wave {
	return &Wave{ID: id, Status: WavePending, PlannedDuration: plannedDuration, SafetyMargin: safetyMargin, MaxPallets: maxPallets}
}

// Start transitions Pending -> Active, stamping the start time.
func (w *Wave) Start(now time.Time) {
	w.Status = WaveActive
	w.StartedAt = &now
}

// Complete transitions Active -> Completed, stamping the completion time.
func (w *Wave) Complete(now time.Time) {
	w.Status = WaveCompleted
	w.CompletedAt = &now
}

// Deadline returns the wall-clock time by which the wave must finish:
// start + planned duration + safety margin. Zero if not yet started.
func (w *Wave) Deadline() time.Time {
	if w.StartedAt == nil {
		return time.Time{}
	}
	return w.StartedAt.Add(w.PlannedDuration).Add(w.SafetyMargin)
}

// CheckOverdue marks the wave Overdue if it is still Active past its
// deadline, returning whether the transition occurred.
func (w *Wave) CheckOverdue(now time.Time) bool {
	if w.Status != WaveActive || w.StartedAt == nil {
		return false
	}
	if now.After(w.Deadline()) {
		w.Status = WaveOverdue
		return true
	}
	return false
}

// LeadTime returns the elapsed time between start and completion, or
// zero if the wave has not completed.
func (w *Wave) LeadTime() time.Duration {
	if w.StartedAt == nil || w.CompletedAt == nil {
		return 0
	}
	return w.CompletedAt.Sub(*w.StartedAt)
}

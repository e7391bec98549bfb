package backtest

import "time"

// FactEvent is one observed action on the fact timeline, per worker.
type FactEvent struct {
	WorkerID  string
	Role      string
	StartedAt time.Time
	EndedAt   time.Time
	Product   string
	FromBin   string
	ToBin     string
	WeightKg  float64
}

// WorkerTotals summarizes one worker's fact-timeline activity.
type WorkerTotals struct {
	WorkerID       string
	WallClock      time.Duration
	ActiveDuration time.Duration
	TaskCount      int
}

// ActiveConstraint names the binding constraint behind a decision, per
// the minimum enumeration from spec.md §4.11: buffer_full, precedence,
// wave_deadline, or none.
type ActiveConstraint string

const (
	ConstraintBufferFull    ActiveConstraint = "buffer_full"
	ConstraintPrecedence    ActiveConstraint = "precedence"
	ConstraintWaveDeadline  ActiveConstraint = "wave_deadline"
	ConstraintNone          ActiveConstraint = "none"
)

// DecisionType enumerates the optimizer/scheduler choices logged during replay.
type DecisionType string

const (
	DecisionAssignReplay     DecisionType = "assign_repl"
	DecisionAssignDistinct   DecisionType = "assign_dist"
	DecisionSkipNoCapacity   DecisionType = "skip_no_capacity"
	DecisionSkipNoWorker     DecisionType = "skip_no_worker"
	DecisionBufferWait       DecisionType = "buffer_wait"
)

// Decision is one ordered entry in the replay decision log.
type Decision struct {
	Sequence       int
	SimulatedAt    time.Time
	Type           DecisionType
	WorkerID       string
	Priority       int
	DurationSec    float64
	WeightKg       float64
	BufferBefore   float64
	BufferAfter    float64
	Constraint     ActiveConstraint
	Reason         string
}

// ScheduleEvent is one Gantt row shared by the fact and optimized timelines.
type ScheduleEvent struct {
	WorkerID        string
	Role            string
	WorkerName      string
	StartedAt       time.Time
	EndedAt         time.Time
	DurationSec     float64
	Product         string
	FromBin         string
	ToBin           string
	WeightKg        float64
	BufferAtStart   float64
	TransitionSec   float64
}

// Summary is the replay's top-line comparison.
type Summary struct {
	OriginalDays       int
	OptimizedDays      int
	DaysSaved          int
	ImprovementPercent float64
	DurationSources    map[string]int
	PerDay             []DaySummary
	PerWorker          []WorkerTotals
}

// DaySummary is one day's row in the per-day breakdown.
type DaySummary struct {
	Date             string
	Workers          int
	FactPallets      int
	OptimizedPallets int
	Delta            int
	BufferLevelEnd   float64
	FactActiveSec    float64
	OptimizedActiveSec float64
	ImprovementPercent float64
}

// Result bundles every artifact produced by one wave's replay.
type Result struct {
	RunID         string
	WaveNumber    int
	GeneratedAt   time.Time
	FactTimeline  []FactEvent
	OptimizedPlan []ScheduleEvent
	DecisionLog   []Decision
	FactSchedule  []ScheduleEvent
	Summary       Summary
}

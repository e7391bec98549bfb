package historical

import "time"

// TaskActionRecord is one append-only log line: a forklift or picker
// action taken against a task.
type TaskActionRecord struct {
	ID             string    `bson:"_id" json:"id"`
	TaskID         string    `bson:"task_id" json:"taskId"`
	Role           string    `bson:"role" json:"role"` // "forklift" | "picker"
	WorkerID       string    `bson:"worker_id" json:"workerId"`
	WorkerName     string    `bson:"worker_name,omitempty" json:"workerName,omitempty"`
	WaveNumber     int       `bson:"wave_number" json:"waveNumber"`
	FromSlot       string    `bson:"from_slot" json:"fromSlot"`
	ToSlot         string    `bson:"to_slot" json:"toSlot"`
	ProductSKU     string    `bson:"product_sku" json:"productSku"`
	WeightKg       float64   `bson:"weight_kg" json:"weightKg"`
	Quantity       int       `bson:"quantity" json:"quantity"`
	Status         string    `bson:"status" json:"status"`
	DurationSec    float64   `bson:"duration_sec" json:"durationSec"`
	FailureReason  string    `bson:"failure_reason,omitempty" json:"failureReason,omitempty"`
	StartedAt      time.Time `bson:"started_at" json:"startedAt"`
	CompletedAt    time.Time `bson:"completed_at" json:"completedAt"`
}

// WorkerRecord is the aggregated per-worker performance table.
type WorkerRecord struct {
	WorkerID          string    `bson:"_id" json:"workerId"`
	Role              string    `bson:"role" json:"role"`
	TaskCount         int       `bson:"task_count" json:"taskCount"`
	AvgDurationSec    float64   `bson:"avg_duration_sec" json:"avgDurationSec"`
	MedianDurationSec float64   `bson:"median_duration_sec" json:"medianDurationSec"`
	StdDevSec         float64   `bson:"stddev_sec" json:"stddevSec"`
	P90DurationSec    float64   `bson:"p90_duration_sec" json:"p90DurationSec"`
	TasksPerHour      float64   `bson:"tasks_per_hour" json:"tasksPerHour"`
	FirstActivity     time.Time `bson:"first_activity" json:"firstActivity"`
	LastActivity      time.Time `bson:"last_activity" json:"lastActivity"`
}

// RouteStatistics is the IQR-trimmed (from_zone, to_zone) duration table.
type RouteStatistics struct {
	FromZone       string  `bson:"from_zone" json:"fromZone"`
	ToZone         string  `bson:"to_zone" json:"toZone"`
	AvgDurationSec float64 `bson:"avg_duration_sec" json:"avgDurationSec"`
	MedianSec      float64 `bson:"median_sec" json:"medianSec"`
	StdDevSec      float64 `bson:"stddev_sec" json:"stddevSec"`
	LowerBoundSec  float64 `bson:"lower_bound_sec" json:"lowerBoundSec"`
	UpperBoundSec  float64 `bson:"upper_bound_sec" json:"upperBoundSec"`
	OutliersRemoved int    `bson:"outliers_removed" json:"outliersRemoved"`
	PredictedSec   float64 `bson:"predicted_sec" json:"predictedSec"` // trimmed median
	Confidence     float64 `bson:"confidence" json:"confidence"`
	TrimmedTrips   int     `bson:"trimmed_trips" json:"trimmedTrips"`
}

// PickerProductStats is the per-(picker, product) rate table.
type PickerProductStats struct {
	PickerID        string  `bson:"picker_id" json:"pickerId"`
	ProductSKU      string  `bson:"product_sku" json:"productSku"`
	LinesPerMinute  float64 `bson:"lines_per_minute" json:"linesPerMinute"`
	UnitsPerMinute  float64 `bson:"units_per_minute" json:"unitsPerMinute"`
	KgPerMinute     float64 `bson:"kg_per_minute" json:"kgPerMinute"`
	Confidence      float64 `bson:"confidence" json:"confidence"`
	ObservedLines   int     `bson:"observed_lines" json:"observedLines"`
}

// TransitionStats is the median same-day inter-action gap for a worker.
type TransitionStats struct {
	WorkerID         string  `bson:"worker_id" json:"workerId"`
	Role             string  `bson:"role" json:"role"`
	MedianGapSec     float64 `bson:"median_gap_sec" json:"medianGapSec"`
	ObservationCount int     `bson:"observation_count" json:"observationCount"`
}

// BufferSnapshotRecord is the persisted form of domain.BufferSnapshot,
// upserted by timestamp.
type BufferSnapshotRecord struct {
	Timestamp       time.Time `bson:"_id" json:"timestamp"`
	FillLevel       float64   `bson:"fill_level" json:"fillLevel"`
	Count           int       `bson:"count" json:"count"`
	Capacity        int       `bson:"capacity" json:"capacity"`
	DeliveryRate    float64   `bson:"delivery_rate" json:"deliveryRate"`
	ConsumptionRate float64   `bson:"consumption_rate" json:"consumptionRate"`
	State           string    `bson:"state" json:"state"`
}

// BacktestArtifact is a persisted replay result, one document per wave.
type BacktestArtifact struct {
	RunID              string    `bson:"run_id" json:"runId"`
	WaveNumber         int       `bson:"wave_number" json:"waveNumber"`
	GeneratedAt        time.Time `bson:"generated_at" json:"generatedAt"`
	ObjectiveSec       float64   `bson:"objective_sec" json:"objectiveSec"`
	OriginalDays       int       `bson:"original_days" json:"originalDays"`
	OptimizedDays      int       `bson:"optimized_days" json:"optimizedDays"`
	DaysSaved          int       `bson:"days_saved" json:"daysSaved"`
	ImprovementPercent float64   `bson:"improvement_percent" json:"improvementPercent"`
	ReportPath         string    `bson:"report_path,omitempty" json:"reportPath,omitempty"`
	Summary            string    `bson:"summary" json:"summary"`
}

// TrainingFeatureVector is one flattened row fed to the predictor's
// offline training pipeline.
type TrainingFeatureVector struct {
	FromZone    string  `json:"fromZone"`
	ToZone      string  `json:"toZone"`
	WeightKg    float64 `json:"weightKg"`
	HourOfDay   int     `json:"hourOfDay"`
	DayOfWeek   int     `json:"dayOfWeek"`
	DurationSec float64 `json:"durationSec"`
}

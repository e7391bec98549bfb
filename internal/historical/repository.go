// Package historical implements the historical repository (C8): an
// append-only task action log plus derived aggregate tables, backed by
// MongoDB.
package historical

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/montanaflynn/stats"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/scheduler-core/internal/platform/logging"
	"github.com/wms-platform/scheduler-core/internal/platform/metrics"
)

// defaultMinTripsForTrust below this count, a route's confidence is scaled
// down rather than reported at face value.
const defaultMinTripsForTrust = 20

// Repository is the Mongo-backed historical store.
type Repository struct {
	db       *mongo.Database
	logger   *logging.Logger
	metrics  *metrics.Metrics
	iqrFactor float64
	minTrips  int
}

// Config tunes repository-level statistics behavior.
type Config struct {
	IQRFactor       float64
	MinTripsForTrust int
}

// New creates a historical repository over db.
func New(db *mongo.Database, logger *logging.Logger, m *metrics.Metrics, cfg Config) *Repository {
	if cfg.IQRFactor <= 0 {
		cfg.IQRFactor = 1.5
	}
	if cfg.MinTripsForTrust <= 0 {
		cfg.MinTripsForTrust = defaultMinTripsForTrust
	}
	return &Repository{db: db, logger: logger, metrics: m, iqrFactor: cfg.IQRFactor, minTrips: cfg.MinTripsForTrust}
}

func (r *Repository) timed(ctx context.Context, collection, op string, fn func() (int64, error)) error {
	start := time.Now()
	rows, err := fn()
	duration := time.Since(start)
	if r.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		r.metrics.RecordStoreOperation(collection, op, status, duration)
	}
	if r.logger != nil {
		r.logger.DatabaseQuery(ctx, collection, op, duration, err == nil, rows)
	}
	return err
}

// SaveTaskBatch is idempotent on _id; on conflict it updates only the
// mutable fields (status/duration/failure_reason/timestamps).
func (r *Repository) SaveTaskBatch(ctx context.Context, records []TaskActionRecord) error {
	coll := r.db.Collection("task_actions")
	return r.timed(ctx, "task_actions", "bulkUpsert", func() (int64, error) {
		var n int64
		for _, rec := range records {
			update := bson.M{
				"$set": bson.M{
					"status":         rec.Status,
					"duration_sec":   rec.DurationSec,
					"failure_reason": rec.FailureReason,
					"started_at":     rec.StartedAt,
					"completed_at":   rec.CompletedAt,
				},
				"$setOnInsert": bson.M{
					"_id": rec.ID, "task_id": rec.TaskID, "role": rec.Role, "worker_id": rec.WorkerID,
					"from_slot": rec.FromSlot, "to_slot": rec.ToSlot, "product_sku": rec.ProductSKU,
					"weight_kg": rec.WeightKg, "quantity": rec.Quantity,
				},
			}
			res, err := coll.UpdateByID(ctx, rec.ID, update, options.Update().SetUpsert(true))
			if err != nil {
				return n, err
			}
			n += res.ModifiedCount + res.UpsertedCount
		}
		return n, nil
	})
}

// TruncateTasks administratively wipes the task action log.
func (r *Repository) TruncateTasks(ctx context.Context) error {
	coll := r.db.Collection("task_actions")
	return r.timed(ctx, "task_actions", "deleteMany", func() (int64, error) {
		res, err := coll.DeleteMany(ctx, bson.M{})
		if err != nil {
			return 0, err
		}
		return res.DeletedCount, nil
	})
}

func (r *Repository) fetchTaskActions(ctx context.Context, filter bson.M) ([]TaskActionRecord, error) {
	coll := r.db.Collection("task_actions")
	cur, err := coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []TaskActionRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AggregateWorkersFromTasks recomputes the WorkerRecord table from the
// task action log.
func (r *Repository) AggregateWorkersFromTasks(ctx context.Context) ([]WorkerRecord, error) {
	records, err := r.fetchTaskActions(ctx, bson.M{"status": "completed"})
	if err != nil {
		return nil, err
	}

	byWorker := make(map[string][]TaskActionRecord)
	for _, rec := range records {
		byWorker[rec.WorkerID] = append(byWorker[rec.WorkerID], rec)
	}

	out := make([]WorkerRecord, 0, len(byWorker))
	for workerID, recs := range byWorker {
		durations := make(stats.Float64Data, len(recs))
		first, last := recs[0].StartedAt, recs[0].CompletedAt
		for i, rec := range recs {
			durations[i] = rec.DurationSec
			if rec.StartedAt.Before(first) {
				first = rec.StartedAt
			}
			if rec.CompletedAt.After(last) {
				last = rec.CompletedAt
			}
		}
		avg, _ := durations.Mean()
		median, _ := durations.Median()
		stddev, _ := durations.StandardDeviation()
		p90, _ := durations.Percentile(90)

		span := last.Sub(first).Hours()
		perHour := 0.0
		if span > 0 {
			perHour = float64(len(recs)) / span
		}

		out = append(out, WorkerRecord{
			WorkerID: workerID, Role: recs[0].Role, TaskCount: len(recs),
			AvgDurationSec: avg, MedianDurationSec: median, StdDevSec: stddev, P90DurationSec: p90,
			TasksPerHour: perHour, FirstActivity: first, LastActivity: last,
		})
	}

	if err := r.saveWorkerRecords(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) saveWorkerRecords(ctx context.Context, records []WorkerRecord) error {
	coll := r.db.Collection("worker_stats")
	return r.timed(ctx, "worker_stats", "bulkReplace", func() (int64, error) {
		var n int64
		for _, rec := range records {
			_, err := coll.ReplaceOne(ctx, bson.M{"_id": rec.WorkerID}, rec, options.Replace().SetUpsert(true))
			if err != nil {
				return n, err
			}
			n++
		}
		return n, nil
	})
}

// AggregateRoutes groups forklift task durations by (from_zone,
// to_zone), trims outliers via the IQR rule, and produces
// RouteStatistics with a trust-weighted confidence.
func (r *Repository) AggregateRoutes(ctx context.Context) ([]RouteStatistics, error) {
	records, err := r.fetchTaskActions(ctx, bson.M{"status": "completed", "role": "forklift"})
	if err != nil {
		return nil, err
	}

	type key struct{ from, to string }
	byRoute := make(map[key][]float64)
	for _, rec := range records {
		k := key{ZoneOf(rec.FromSlot), ZoneOf(rec.ToSlot)}
		byRoute[k] = append(byRoute[k], rec.DurationSec)
	}

	out := make([]RouteStatistics, 0, len(byRoute))
	for k, durations := range byRoute {
		trimmed, lower, upper, removed := iqrTrim(durations, r.iqrFactor)
		data := stats.Float64Data(trimmed)
		avg, _ := data.Mean()
		median, _ := data.Median()
		stddev, _ := data.StandardDeviation()

		confidence := 1.0
		if r.minTrips > 0 {
			confidence = min1(float64(len(trimmed)) / float64(r.minTrips))
		}

		out = append(out, RouteStatistics{
			FromZone: k.from, ToZone: k.to, AvgDurationSec: avg, MedianSec: median, StdDevSec: stddev,
			LowerBoundSec: lower, UpperBoundSec: upper, OutliersRemoved: removed,
			PredictedSec: median, Confidence: confidence, TrimmedTrips: len(trimmed),
		})
	}

	if err := r.saveRouteStatistics(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) saveRouteStatistics(ctx context.Context, routes []RouteStatistics) error {
	coll := r.db.Collection("route_statistics")
	return r.timed(ctx, "route_statistics", "bulkReplace", func() (int64, error) {
		var n int64
		for _, rt := range routes {
			id := rt.FromZone + "->" + rt.ToZone
			_, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, rt, options.Replace().SetUpsert(true))
			if err != nil {
				return n, err
			}
			n++
		}
		return n, nil
	})
}

// iqrTrim removes values outside [Q1 − factor·IQR, Q3 + factor·IQR].
func iqrTrim(data []float64, factor float64) (trimmed []float64, lower, upper float64, removed int) {
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)
	q, err := stats.Quartile(stats.Float64Data(sorted))
	if err != nil {
		return sorted, 0, 0, 0
	}
	iqr := q.Q3 - q.Q1
	lower = q.Q1 - factor*iqr
	upper = q.Q3 + factor*iqr
	for _, v := range sorted {
		if v < lower || v > upper {
			removed++
			continue
		}
		trimmed = append(trimmed, v)
	}
	if len(trimmed) == 0 {
		trimmed = sorted
		removed = 0
	}
	return trimmed, lower, upper, removed
}

func min1(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}

// AggregatePickerProduct groups picker-role rows by (picker, product)
// and derives per-minute rates.
func (r *Repository) AggregatePickerProduct(ctx context.Context) ([]PickerProductStats, error) {
	records, err := r.fetchTaskActions(ctx, bson.M{"status": "completed", "role": "picker"})
	if err != nil {
		return nil, err
	}

	type key struct{ picker, sku string }
	type agg struct {
		lines, qty  int
		kg, minutes float64
	}
	byPair := make(map[key]*agg)
	for _, rec := range records {
		k := key{rec.WorkerID, rec.ProductSKU}
		a, ok := byPair[k]
		if !ok {
			a = &agg{}
			byPair[k] = a
		}
		a.lines++
		a.qty += rec.Quantity
		a.kg += rec.WeightKg * float64(rec.Quantity)
		a.minutes += rec.DurationSec / 60
	}

	out := make([]PickerProductStats, 0, len(byPair))
	for k, a := range byPair {
		if a.minutes <= 0 {
			continue
		}
		confidence := min1(float64(a.lines) / float64(r.minTrips))
		out = append(out, PickerProductStats{
			PickerID: k.picker, ProductSKU: k.sku,
			LinesPerMinute: float64(a.lines) / a.minutes,
			UnitsPerMinute: float64(a.qty) / a.minutes,
			KgPerMinute:    a.kg / a.minutes,
			Confidence:     confidence,
			ObservedLines:  a.lines,
		})
	}

	if err := r.savePickerProductStats(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) savePickerProductStats(ctx context.Context, rows []PickerProductStats) error {
	coll := r.db.Collection("picker_product_stats")
	return r.timed(ctx, "picker_product_stats", "bulkReplace", func() (int64, error) {
		var n int64
		for _, row := range rows {
			id := row.PickerID + "|" + row.ProductSKU
			_, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, row, options.Replace().SetUpsert(true))
			if err != nil {
				return n, err
			}
			n++
		}
		return n, nil
	})
}

// WorkerTransitionStats computes, per worker of the given role, the
// median same-day gap between successive actions constrained to
// 0 < gap < 10 minutes.
func (r *Repository) WorkerTransitionStats(ctx context.Context, role string) ([]TransitionStats, error) {
	records, err := r.fetchTaskActions(ctx, bson.M{"role": role, "status": "completed"})
	if err != nil {
		return nil, err
	}

	byWorker := make(map[string][]TaskActionRecord)
	for _, rec := range records {
		byWorker[rec.WorkerID] = append(byWorker[rec.WorkerID], rec)
	}

	out := make([]TransitionStats, 0, len(byWorker))
	for workerID, recs := range byWorker {
		sort.Slice(recs, func(i, j int) bool { return recs[i].StartedAt.Before(recs[j].StartedAt) })
		var gaps []float64
		for i := 1; i < len(recs); i++ {
			if recs[i].StartedAt.YearDay() != recs[i-1].CompletedAt.YearDay() {
				continue
			}
			gap := recs[i].StartedAt.Sub(recs[i-1].CompletedAt).Seconds()
			if gap > 0 && gap < 600 {
				gaps = append(gaps, gap)
			}
		}
		if len(gaps) == 0 {
			continue
		}
		median, _ := stats.Float64Data(gaps).Median()
		out = append(out, TransitionStats{WorkerID: workerID, Role: role, MedianGapSec: median, ObservationCount: len(gaps)})
	}
	return out, nil
}

// TaskActionsForWave returns every completed task action logged against
// waveNumber, ordered by start time, for backtest replay.
func (r *Repository) TaskActionsForWave(ctx context.Context, waveNumber int) ([]TaskActionRecord, error) {
	records, err := r.fetchTaskActions(ctx, bson.M{"status": "completed", "wave_number": waveNumber})
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool { return records[i].StartedAt.Before(records[j].StartedAt) })
	return records, nil
}

// BufferSnapshot upserts a point-in-time buffer observation keyed by
// its timestamp.
func (r *Repository) BufferSnapshot(ctx context.Context, snap BufferSnapshotRecord) error {
	coll := r.db.Collection("buffer_snapshots")
	return r.timed(ctx, "buffer_snapshots", "upsert", func() (int64, error) {
		_, err := coll.ReplaceOne(ctx, bson.M{"_id": snap.Timestamp}, snap, options.Replace().SetUpsert(true))
		if err != nil {
			return 0, err
		}
		return 1, nil
	})
}

// SnapshotsBetween returns buffer snapshots in [from, to), ordered by
// timestamp, used by aggregation's demand forecast and backtest replay.
func (r *Repository) SnapshotsBetween(ctx context.Context, from, to time.Time) ([]BufferSnapshotRecord, error) {
	coll := r.db.Collection("buffer_snapshots")
	cur, err := coll.Find(ctx, bson.M{"_id": bson.M{"$gte": from, "$lt": to}}, options.Find().SetSort(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []BufferSnapshotRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveBacktestArtifact persists one wave's replay result, keyed by
// wave_number alone: a repeated backtest of the same wave (a fresh
// RunID every time, per domain.NewID) replaces the prior artifact atomically
// rather than accumulating one document per run.
func (r *Repository) SaveBacktestArtifact(ctx context.Context, artifact BacktestArtifact) error {
	coll := r.db.Collection("backtest_artifacts")
	return r.timed(ctx, "backtest_artifacts", "upsert", func() (int64, error) {
		id := strconv.Itoa(artifact.WaveNumber)
		_, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, artifact, options.Replace().SetUpsert(true))
		if err != nil {
			return 0, err
		}
		return 1, nil
	})
}

// ExportTrainingRoutes projects completed forklift task actions into
// flat feature vectors for the offline predictor trainer.
func (r *Repository) ExportTrainingRoutes(ctx context.Context) ([]TrainingFeatureVector, error) {
	records, err := r.fetchTaskActions(ctx, bson.M{"status": "completed", "role": "forklift"})
	if err != nil {
		return nil, err
	}
	out := make([]TrainingFeatureVector, 0, len(records))
	for _, rec := range records {
		out = append(out, TrainingFeatureVector{
			FromZone: ZoneOf(rec.FromSlot), ToZone: ZoneOf(rec.ToSlot), WeightKg: rec.WeightKg,
			HourOfDay: rec.StartedAt.Hour(), DayOfWeek: int(rec.StartedAt.Weekday()), DurationSec: rec.DurationSec,
		})
	}
	return out, nil
}

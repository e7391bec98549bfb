package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/scheduler-core/internal/domain"
	"github.com/wms-platform/scheduler-core/internal/historical"
	"github.com/wms-platform/scheduler-core/internal/predictor"
)

type fakeForecaster struct {
	routes map[string]historical.RouteStatistics
}

func (f fakeForecaster) RouteDurationForecast(fromZone, toZone string) (historical.RouteStatistics, bool) {
	rt, ok := f.routes[fromZone+">"+toZone]
	return rt, ok
}

func (f fakeForecaster) PickerProductForecast(string, string) (historical.PickerProductStats, bool) {
	return historical.PickerProductStats{}, false
}

func ts(offsetSec int) time.Time {
	return time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC).Add(time.Duration(offsetSec) * time.Second)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, clamp(-5, 0, 10))
	assert.Equal(t, 10.0, clamp(15, 0, 10))
	assert.Equal(t, 5.0, clamp(5, 0, 10))
}

func TestBuildFactTimeline_SortsByStartTime(t *testing.T) {
	records := []historical.TaskActionRecord{
		{WorkerID: "w2", Role: "forklift", StartedAt: ts(100), CompletedAt: ts(150)},
		{WorkerID: "w1", Role: "forklift", StartedAt: ts(10), CompletedAt: ts(50)},
	}
	out := buildFactTimeline(records)
	require.Len(t, out, 2)
	assert.Equal(t, "w1", out[0].WorkerID)
	assert.Equal(t, "w2", out[1].WorkerID)
}

func TestComputeWorkerTotals_WallClockAndActiveDurationAcrossDays(t *testing.T) {
	day1Start := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	day2Start := time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC)
	events := []FactEvent{
		{WorkerID: "w1", StartedAt: day1Start, EndedAt: day1Start.Add(time.Hour)},
		{WorkerID: "w1", StartedAt: day2Start, EndedAt: day2Start.Add(2 * time.Hour)},
	}
	totals := computeWorkerTotals(events)
	require.Len(t, totals, 1)
	assert.Equal(t, "w1", totals[0].WorkerID)
	assert.Equal(t, day2Start.Add(2*time.Hour).Sub(day1Start), totals[0].WallClock)
	assert.Equal(t, time.Hour+2*time.Hour, totals[0].ActiveDuration)
	assert.Equal(t, 2, totals[0].TaskCount)
}

func TestBuildFactSchedule_ForkliftFillsBufferPickerDrains(t *testing.T) {
	records := []historical.TaskActionRecord{
		{WorkerID: "w1", Role: "forklift", StartedAt: ts(0), CompletedAt: ts(30)},
		{WorkerID: "w1", Role: "picker", Quantity: 20, StartedAt: ts(40), CompletedAt: ts(60)},
	}
	out := buildFactSchedule(records, 10)
	require.Len(t, out, 2)
	assert.Greater(t, out[0].BufferAtStart, 5.0, "forklift delivery should have lifted the level above the 5.0 starting midpoint before this event was recorded")
	assert.Equal(t, 0.0, out[0].TransitionSec, "first event for a worker has no prior task to measure a transition from")
	assert.Equal(t, 10.0, out[1].TransitionSec)
}

func TestConsumptionRate_DefaultsWhenNoPickerRecords(t *testing.T) {
	assert.Equal(t, 0.05, consumptionRate(nil))
	assert.Equal(t, 0.05, consumptionRate([]historical.TaskActionRecord{
		{Role: "forklift", StartedAt: ts(0), CompletedAt: ts(10)},
	}))
}

func TestConsumptionRate_DerivedFromPickerThroughput(t *testing.T) {
	records := []historical.TaskActionRecord{
		{Role: "picker", Quantity: 100, StartedAt: ts(0), CompletedAt: ts(100)},
	}
	// qty/10 units-as-pallets over a 100s span => 0.1 pallets/sec
	assert.InDelta(t, 0.1, consumptionRate(records), 1e-9)
}

func TestEarliestStart_FindsMinimum(t *testing.T) {
	records := []historical.TaskActionRecord{
		{StartedAt: ts(50)},
		{StartedAt: ts(10)},
		{StartedAt: ts(30)},
	}
	assert.Equal(t, ts(10), earliestStart(records))
}

func TestEarliestStart_EmptyReturnsUnixEpoch(t *testing.T) {
	assert.Equal(t, time.Unix(0, 0).UTC(), earliestStart(nil))
}

func TestToDeliveryTasks_PreservesTaskIDAndDerivesWeight(t *testing.T) {
	records := []historical.TaskActionRecord{
		{TaskID: "task-1", ProductSKU: "SKU-1", WeightKg: 20, Quantity: 2, FromSlot: "01A1-01-01-01", StartedAt: ts(0)},
	}
	tasks, byID := toDeliveryTasks(records)
	require.Len(t, tasks, 1)
	assert.Equal(t, "task-1", tasks[0].ID)
	assert.Equal(t, 10.0, tasks[0].Pallet.Product.WeightKg) // 20kg / qty 2
	assert.Equal(t, 2, tasks[0].Pallet.Quantity)
	assert.Contains(t, byID, "task-1")
}

func TestDistanceFromSlot_Deterministic(t *testing.T) {
	a := distanceFromSlot("01A1-01-01-01")
	b := distanceFromSlot("01A1-01-01-01")
	assert.Equal(t, a, b)
	assert.GreaterOrEqual(t, a, 10.0)
}

func TestCountDays_CountsDistinctCalendarDays(t *testing.T) {
	events := []ScheduleEvent{
		{StartedAt: time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)},
		{StartedAt: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)},
		{StartedAt: time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC)},
	}
	assert.Equal(t, 2, countDays(events))
}

func TestPredictEstimates_UsesActualDurationWhenPresent(t *testing.T) {
	e := &Engine{predictor: predictor.New(fakeForecaster{}, predictor.Config{})}
	records := []historical.TaskActionRecord{
		{TaskID: "task-1", WorkerID: "w1", DurationSec: 42, FromSlot: "01A1-01-01-01", ToSlot: "01B1-01-01-01", StartedAt: ts(0)},
	}
	tasks, byID := toDeliveryTasks(records)
	estimates := e.predictEstimates(tasks, byID)
	require.Contains(t, estimates, "task-1")
	assert.Equal(t, 42.0, estimates["task-1"].DurationSec)
	assert.Equal(t, predictor.SourceActual, estimates["task-1"].Source)
}

func TestPredictEstimates_FallsBackToRouteStatsWhenNoActual(t *testing.T) {
	forecaster := fakeForecaster{routes: map[string]historical.RouteStatistics{
		"A1>B1": {PredictedSec: 90, Confidence: 0.9},
	}}
	e := &Engine{predictor: predictor.New(forecaster, predictor.Config{})}
	records := []historical.TaskActionRecord{
		{TaskID: "task-1", WorkerID: "w1", FromSlot: "01A1-01-01-01", ToSlot: "01B1-01-01-01", StartedAt: ts(0)},
	}
	tasks, byID := toDeliveryTasks(records)
	estimates := e.predictEstimates(tasks, byID)
	require.Contains(t, estimates, "task-1")
	assert.Equal(t, 90.0, estimates["task-1"].DurationSec)
	assert.Equal(t, predictor.SourceRouteStats, estimates["task-1"].Source)
}

func TestCostFn_UsesPredictedEstimateOverForkliftFallback(t *testing.T) {
	estimates := map[string]predictor.Estimate{"task-1": {DurationSec: 33, Source: predictor.SourceActual}}
	fn := costFn(estimates)
	task := domain.NewDeliveryTask("task-1", domain.NewPallet("task-1", domain.Product{}, 1, 500), ts(0))
	fk := domain.NewForklift("fk-1", "fk-1", 1, 5)
	assert.Equal(t, 33.0, fn(task, fk))
}

func TestDurationSources_TalliesByTier(t *testing.T) {
	estimates := map[string]predictor.Estimate{
		"t1": {Source: predictor.SourceActual},
		"t2": {Source: predictor.SourceActual},
		"t3": {Source: predictor.SourceRouteStats},
	}
	sources := durationSources(estimates)
	assert.Equal(t, 2, sources["actual"])
	assert.Equal(t, 1, sources["route_stats"])
}

func TestBuildSummary_FallsBackToActiveDurationWhenNoDaysSaved(t *testing.T) {
	day := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	fact := []ScheduleEvent{{WorkerID: "w1", StartedAt: day, DurationSec: 200}}
	optimized := []ScheduleEvent{{WorkerID: "w1", StartedAt: day, DurationSec: 120}}

	summary := buildSummary(fact, optimized, map[string]int{"actual": 1}, nil)
	assert.Equal(t, 0, summary.DaysSaved)
	assert.InDelta(t, 40.0, summary.ImprovementPercent, 1e-9) // (200-120)/200*100
}

func TestBuildSummary_UsesDayCountWhenDaysSaved(t *testing.T) {
	fact := []ScheduleEvent{
		{StartedAt: time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC), DurationSec: 100},
		{StartedAt: time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC), DurationSec: 100},
	}
	optimized := []ScheduleEvent{
		{StartedAt: time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC), DurationSec: 180},
	}
	summary := buildSummary(fact, optimized, map[string]int{"actual": 2}, nil)
	assert.Equal(t, 1, summary.DaysSaved)
	assert.InDelta(t, 50.0, summary.ImprovementPercent, 1e-9) // 1/2*100
}

func TestBuildDaySummaries_ComparesFactAndOptimizedPerDay(t *testing.T) {
	day := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	fact := []ScheduleEvent{
		{WorkerID: "w1", StartedAt: day, DurationSec: 100},
		{WorkerID: "w1", StartedAt: day.Add(time.Hour), DurationSec: 100},
	}
	optimized := []ScheduleEvent{
		{WorkerID: "w1", StartedAt: day, DurationSec: 80, BufferAtStart: 7},
	}
	summaries := buildDaySummaries(fact, optimized)
	require.Len(t, summaries, 1)
	s := summaries[0]
	assert.Equal(t, "2026-01-01", s.Date)
	assert.Equal(t, 2, s.FactPallets)
	assert.Equal(t, 1, s.OptimizedPallets)
	assert.Equal(t, -1, s.Delta)
	assert.Equal(t, 7.0, s.BufferLevelEnd)
	assert.InDelta(t, 60.0, s.ImprovementPercent, 1e-9) // (200-80)/200*100
}

// Package aggregation implements the periodic aggregation worker (C9):
// it recomputes the historical repository's derived tables on a fixed
// cadence and caches the results for fast predictor lookup.
package aggregation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wms-platform/scheduler-core/internal/historical"
	"github.com/wms-platform/scheduler-core/internal/platform/logging"
)

// Config tunes the aggregation cadence. Either Interval or CronExpr may
// be set; CronExpr (a standard five-field cron expression) takes
// precedence when present, resolved to a duration once at construction
// time from the gap between its next two scheduled firings.
type Config struct {
	Interval time.Duration
	CronExpr string
}

// DefaultConfig returns the spec-documented 5 minute default cadence.
func DefaultConfig() Config {
	return Config{Interval: 5 * time.Minute}
}

// resolveInterval turns cfg into a concrete ticker period, parsing
// CronExpr with the standard five-field parser when set.
func resolveInterval(cfg Config, logger *logging.Logger) time.Duration {
	if cfg.CronExpr == "" {
		if cfg.Interval <= 0 {
			return DefaultConfig().Interval
		}
		return cfg.Interval
	}
	schedule, err := cron.ParseStandard(cfg.CronExpr)
	if err != nil {
		if logger != nil {
			logger.WithError(err).Event(context.Background(), "aggregation_cron_parse_failed", map[string]any{"expr": cfg.CronExpr})
		}
		if cfg.Interval > 0 {
			return cfg.Interval
		}
		return DefaultConfig().Interval
	}
	first := schedule.Next(time.Now())
	second := schedule.Next(first)
	if d := second.Sub(first); d > 0 {
		return d
	}
	return DefaultConfig().Interval
}

// demandBucket keys the hourly demand pattern by (hour_of_day, day_of_week).
type demandBucket struct {
	hour int
	dow  time.Weekday
}

// Service is the background aggregation worker. It is safe for
// concurrent cache reads while a cycle is recomputing.
type Service struct {
	repo   *historical.Repository
	logger *logging.Logger
	config Config

	mu               sync.RWMutex
	running          bool
	stopChan         chan struct{}
	workers          map[string]historical.WorkerRecord
	routes           map[string]historical.RouteStatistics
	pickerProduct    map[string]historical.PickerProductStats
	demandByBucket   map[demandBucket]float64
	globalPickerRate float64
}

// New creates an aggregation service over repo.
func New(repo *historical.Repository, logger *logging.Logger, config Config) *Service {
	config.Interval = resolveInterval(config, logger)
	return &Service{
		repo: repo, logger: logger, config: config,
		workers: make(map[string]historical.WorkerRecord), routes: make(map[string]historical.RouteStatistics),
		pickerProduct: make(map[string]historical.PickerProductStats), demandByBucket: make(map[demandBucket]float64),
	}
}

// Start launches the background ticker loop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("aggregation service already running")
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go s.run(ctx)
	return nil
}

// Stop halts the ticker loop.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		close(s.stopChan)
		s.running = false
	}
}

// IsRunning reports whether the loop is active.
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Service) run(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

func (s *Service) runCycle(ctx context.Context) {
	workers, err := s.repo.AggregateWorkersFromTasks(ctx)
	if err != nil {
		s.logErr(ctx, "aggregate_workers", err)
		return
	}
	routes, err := s.repo.AggregateRoutes(ctx)
	if err != nil {
		s.logErr(ctx, "aggregate_routes", err)
		return
	}
	pickerProduct, err := s.repo.AggregatePickerProduct(ctx)
	if err != nil {
		s.logErr(ctx, "aggregate_picker_product", err)
		return
	}
	demand, global, err := s.computeDemand(ctx)
	if err != nil {
		s.logErr(ctx, "compute_demand", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers = indexByWorker(workers)
	s.routes = indexByRoute(routes)
	s.pickerProduct = indexByPickerProduct(pickerProduct)
	s.demandByBucket = demand
	s.globalPickerRate = global
}

func (s *Service) computeDemand(ctx context.Context) (map[demandBucket]float64, float64, error) {
	to := time.Now()
	from := to.Add(-30 * 24 * time.Hour)
	snaps, err := s.repo.SnapshotsBetween(ctx, from, to)
	if err != nil {
		return nil, 0, err
	}
	sums := make(map[demandBucket]float64)
	counts := make(map[demandBucket]int)
	var total float64
	for _, snap := range snaps {
		b := demandBucket{hour: snap.Timestamp.Hour(), dow: snap.Timestamp.Weekday()}
		sums[b] += snap.DeliveryRate
		counts[b]++
		total += snap.DeliveryRate
	}
	out := make(map[demandBucket]float64, len(sums))
	for b, sum := range sums {
		out[b] = sum / float64(counts[b])
	}
	global := 0.0
	if len(snaps) > 0 {
		global = total / float64(len(snaps))
	}
	return out, global, nil
}

func (s *Service) logErr(ctx context.Context, stage string, err error) {
	if s.logger != nil {
		s.logger.WithError(err).Event(ctx, "aggregation_cycle_failed", map[string]any{"stage": stage})
	}
}

// PickerSpeedForecast returns the worker's overall tasks/hour average
// (hour is not used), falling back to the mean tasks/hour across all
// picker-role workers if the worker is unknown (0 when there are none).
func (s *Service) PickerSpeedForecast(pickerID string, hour int) (float64, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if w, ok := s.workers[pickerID]; ok {
		return w.TasksPerHour, "worker_average"
	}
	var sum float64
	var n int
	for _, w := range s.workers {
		if w.Role == "picker" {
			sum += w.TasksPerHour
			n++
		}
	}
	if n == 0 {
		return 0, "global_average"
	}
	return sum / float64(n), "global_average"
}

// RouteDurationForecast returns the trimmed predicted duration for
// (fromZone, toZone) if known.
func (s *Service) RouteDurationForecast(fromZone, toZone string) (historical.RouteStatistics, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rt, ok := s.routes[fromZone+"->"+toZone]
	return rt, ok
}

// PickerProductForecast returns the cached rate table entry for
// (picker, product), if any.
func (s *Service) PickerProductForecast(pickerID, sku string) (historical.PickerProductStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pickerProduct[pickerID+"|"+sku]
	return p, ok
}

// DemandForecast returns the historical average delivery rate observed
// at the given time's (hour, day-of-week) bucket, falling back to the
// global average when the bucket has no observations.
func (s *Service) DemandForecast(at time.Time) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b := demandBucket{hour: at.Hour(), dow: at.Weekday()}
	if v, ok := s.demandByBucket[b]; ok {
		return v
	}
	return s.globalPickerRate
}

func indexByWorker(rows []historical.WorkerRecord) map[string]historical.WorkerRecord {
	out := make(map[string]historical.WorkerRecord, len(rows))
	for _, r := range rows {
		out[r.WorkerID] = r
	}
	return out
}

func indexByRoute(rows []historical.RouteStatistics) map[string]historical.RouteStatistics {
	out := make(map[string]historical.RouteStatistics, len(rows))
	for _, r := range rows {
		out[r.FromZone+"->"+r.ToZone] = r
	}
	return out
}

func indexByPickerProduct(rows []historical.PickerProductStats) map[string]historical.PickerProductStats {
	out := make(map[string]historical.PickerProductStats, len(rows))
	for _, r := range rows {
		out[r.PickerID+"|"+r.ProductSKU] = r
	}
	return out
}

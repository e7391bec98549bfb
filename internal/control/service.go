// Package control implements the control service (C11): the
// long-running composition of the realtime, tactical, and historical
// loops documented in SPEC_FULL.md §4.10.
package control

import (
	"context"
	"sync"
	"time"

	"github.com/wms-platform/scheduler-core/internal/aggregation"
	"github.com/wms-platform/scheduler-core/internal/config"
	"github.com/wms-platform/scheduler-core/internal/controller"
	"github.com/wms-platform/scheduler-core/internal/dispatch"
	"github.com/wms-platform/scheduler-core/internal/domain"
	"github.com/wms-platform/scheduler-core/internal/historical"
	"github.com/wms-platform/scheduler-core/internal/optimizer"
	"github.com/wms-platform/scheduler-core/internal/platform/events"
	"github.com/wms-platform/scheduler-core/internal/platform/logging"
	"github.com/wms-platform/scheduler-core/internal/platform/metrics"
	"github.com/wms-platform/scheduler-core/internal/rules"
	"github.com/wms-platform/scheduler-core/internal/statemachine"
	"github.com/wms-platform/scheduler-core/internal/wms"
)

// StatsSnapshot is a point-in-time, lock-free copy of the facade.
type StatsSnapshot struct {
	BufferState          statemachine.State
	FillLevel            float64
	RequiredDelivery     float64
	RecommendedCount     int
	LastSolverResult     optimizer.Result
	LastSolverObjective  float64
	LastWorkloadVariance float64
	DispatchStats        dispatch.Stats
	LastCycleAt          map[string]time.Time
}

// Stats is the lock-protected observability facade the three loops
// share, per §4.10's "no mutable state except via a small facade".
type Stats struct {
	mu   sync.RWMutex
	data StatsSnapshot
}

func newStats() *Stats {
	return &Stats{data: StatsSnapshot{LastCycleAt: make(map[string]time.Time)}}
}

// Snapshot returns a copy of the current facade values.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := s.data
	cp.LastCycleAt = make(map[string]time.Time, len(s.data.LastCycleAt))
	for k, v := range s.data.LastCycleAt {
		cp.LastCycleAt[k] = v
	}
	return cp
}

func (s *Stats) recordCycle(loop string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.LastCycleAt[loop] = time.Now()
}

func (s *Stats) update(fn func(*StatsSnapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.data)
}

// Service composes the three cooperative loops over shared domain
// state, the dispatcher, the optimizer, and the historical repository.
type Service struct {
	cfg     *config.Config
	adapter wms.Adapter
	repo    *historical.Repository
	agg     *aggregation.Service
	bus     *events.Bus
	logger  *logging.Logger
	metrics *metrics.Metrics

	buffer     *domain.BufferZone
	forklifts  []*domain.Forklift
	pickers    []*domain.Picker
	fsm        *statemachine.BufferFSM
	controller *controller.Controller
	dispatcher *dispatch.Dispatcher
	engine     *rules.Engine

	stats *Stats

	mu               sync.Mutex
	running          bool
	cancel           context.CancelFunc
	wg               sync.WaitGroup
	lastWarmStart    map[string]string
	consumptionRate  float64
	maxTasksPerCycle int

	activeTasks map[string]*domain.DeliveryTask // known Pending/Assigned tasks, keyed by ID
	taskCursor  string
}

// New builds a control service wired against the given adapter and
// repository, seeded with the configured forklift/picker fleet.
func New(cfg *config.Config, adapter wms.Adapter, repo *historical.Repository, agg *aggregation.Service, bus *events.Bus, logger *logging.Logger, m *metrics.Metrics) *Service {
	thresholds := statemachine.Thresholds{
		Critical: cfg.Buffer.CriticalThreshold, Low: cfg.Buffer.LowThreshold,
		High: cfg.Buffer.HighThreshold, DeadBand: cfg.Buffer.DeadBand,
	}
	fsm := statemachine.New(thresholds, bus)
	buffer := domain.NewBufferZone(cfg.Buffer.Capacity)

	forklifts := make([]*domain.Forklift, cfg.Workers.ForkliftsCount)
	for i := range forklifts {
		forklifts[i] = domain.NewForklift(domain.NewID(), "", 1.5, 15)
	}
	pickers := make([]*domain.Picker, cfg.Workers.PickersCount)
	for i := range pickers {
		pickers[i] = domain.NewPicker(domain.NewID(), "", 40)
	}

	return &Service{
		cfg: cfg, adapter: adapter, repo: repo, agg: agg, bus: bus, logger: logger, metrics: m,
		buffer: buffer, forklifts: forklifts, pickers: pickers,
		fsm: fsm, controller: controller.New(fsm, thresholds),
		dispatcher: dispatch.New(bus, time.Now), engine: rules.New(),
		stats: newStats(), lastWarmStart: make(map[string]string), maxTasksPerCycle: 10,
		activeTasks: make(map[string]*domain.DeliveryTask),
	}
}

// Start launches the three cooperative loops.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	s.wg.Add(3)
	go s.runLoop(loopCtx, "realtime", s.cfg.Timing.RealtimeCycle, s.realtimeCycle)
	go s.runLoop(loopCtx, "tactical", s.cfg.Timing.TacticalCycle, s.tacticalCycle)
	go s.runLoop(loopCtx, "historical", s.cfg.Timing.HistoricalCycle, s.historicalCycle)
	return nil
}

// Stop cancels all loops and waits for them to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

// IsRunning reports whether the loops are active.
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stats returns the current observability facade snapshot.
func (s *Service) Stats() StatsSnapshot {
	return s.stats.Snapshot()
}

func (s *Service) runLoop(ctx context.Context, name string, period time.Duration, fn func(context.Context)) {
	defer s.wg.Done()
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			fn(ctx)
			if s.metrics != nil {
				s.metrics.LoopCycles.WithLabelValues(name).Inc()
				s.metrics.LoopCycleSeconds.WithLabelValues(name).Observe(time.Since(start).Seconds())
			}
			s.stats.recordCycle(name)
		}
	}
}

// realtimeCycle implements §4.10's realtime loop: read current state,
// update the FSM and controller, evaluate rules, issue urgent task
// creation (capped), and dispatch idle forklifts.
func (s *Service) realtimeCycle(ctx context.Context) {
	bufStatus, err := s.adapter.CurrentBuffer(ctx)
	if err != nil {
		s.logLoopError(ctx, "realtime", err)
		return
	}
	idleForklifts := 0
	for _, f := range s.forklifts {
		if f.IsAvailable() {
			idleForklifts++
		}
	}

	state := s.controller.Update(s.buffer, s.consumptionRate)
	requiredRate := s.controller.RequiredDeliveryRate(s.consumptionRate)
	recommendedCount := s.controller.RecommendedForkliftCount(len(s.forklifts))

	fact := rules.BufferFact{
		FillLevel: s.buffer.FillLevel(), State: state,
		PendingTasks: bufStatus.Count, IdleForklifts: idleForklifts, ConsumptionRate: s.consumptionRate,
	}
	actions := s.engine.Evaluate(fact)

	issued := 0
	for _, action := range actions {
		if action.Type != rules.UrgentDelivery && action.Type != rules.RequestPallets {
			continue
		}
		for i := 0; i < action.Pallets && issued < s.maxTasksPerCycle; i++ {
			if _, err := s.adapter.CreateTask(ctx, "", "", "", "", "", wms.PriorityUrgent); err != nil {
				s.logLoopError(ctx, "realtime", err)
				break
			}
			issued++
		}
	}

	s.dispatcher.Dispatch(s.forklifts, func(p *domain.Pallet) float64 { return p.StorageDistanceM }, func(f *domain.Forklift) float64 { return f.CurrentPosition })
	s.completeFinishedTasks(ctx)
	s.reportAssignments(ctx)

	dispatchStats := s.dispatcher.Stats()
	s.stats.update(func(d *StatsSnapshot) {
		d.BufferState = state
		d.FillLevel = fact.FillLevel
		d.RequiredDelivery = requiredRate
		d.RecommendedCount = recommendedCount
		d.DispatchStats = dispatchStats
	})

	if s.metrics != nil {
		s.metrics.BufferFillLevel.Set(fact.FillLevel)
		s.metrics.DeliveryRateGauge.Set(requiredRate)
	}
}

// completeFinishedTasks releases any forklift whose bound task has
// reached its estimated completion time, reporting the task and pallet
// back to the WMS, per §6's adapter contract.
func (s *Service) completeFinishedTasks(ctx context.Context) {
	now := time.Now()
	for _, f := range s.forklifts {
		if f.CurrentTaskID == "" {
			continue
		}
		task, ok := s.activeTasks[f.CurrentTaskID]
		if !ok || task.EstimatedCompletion == nil || now.Before(*task.EstimatedCompletion) {
			continue
		}
		s.dispatcher.CompleteTask(task, f)
		if err := s.adapter.UpdateTaskStatus(ctx, task.ID, int(domain.TaskCompleted)); err != nil {
			s.logLoopError(ctx, "realtime", err)
		}
		if err := s.adapter.ConfirmPalletDelivery(ctx, task.Pallet.ID, now); err != nil {
			s.logLoopError(ctx, "realtime", err)
		}
		if err := s.adapter.UpdateForkliftStatus(ctx, f.ID, string(f.State)); err != nil {
			s.logLoopError(ctx, "realtime", err)
		}
	}
}

// reportAssignments tells the WMS about every forklift still working a
// task after this tick's dispatch pass, per §6's adapter contract: the
// assignment half of the control loop's data flow that previously only
// ever mutated local state.
func (s *Service) reportAssignments(ctx context.Context) {
	for _, f := range s.forklifts {
		if f.State == domain.ForkliftIdle || f.State == domain.ForkliftOffline {
			continue
		}
		if err := s.adapter.UpdateForkliftStatus(ctx, f.ID, string(f.State)); err != nil {
			s.logLoopError(ctx, "realtime", err)
			continue
		}
		if f.CurrentTaskID == "" {
			continue
		}
		if err := s.adapter.UpdateTaskStatus(ctx, f.CurrentTaskID, int(domain.TaskAssigned)); err != nil {
			s.logLoopError(ctx, "realtime", err)
		}
	}
}

// ingestTasks pages newly created tasks from the WMS adapter, wraps
// each Pending one in a singleton stream for the dispatcher (spec.md
// §4.3 step 3), and tracks it in activeTasks for the tactical loop's
// optimizer snapshot.
func (s *Service) ingestTasks(ctx context.Context) {
	page, err := s.adapter.PageTasks(ctx, s.taskCursor, s.maxTasksPerCycle)
	if err != nil {
		s.logLoopError(ctx, "tactical", err)
		return
	}
	now := time.Now()
	for _, rec := range page.Items {
		if rec.Status != int(domain.TaskPending) {
			continue
		}
		if _, known := s.activeTasks[rec.ID]; known {
			continue
		}
		product := domain.NewProduct(rec.ProductSKU, "", weightPerUnit(rec))
		qty := rec.Quantity
		if qty <= 0 {
			qty = 1
		}
		pallet := domain.NewPallet(rec.PalletID, product, qty, distanceFromSlot(rec.FromSlot))
		task := domain.NewDeliveryTask(rec.ID, pallet, now)
		s.activeTasks[rec.ID] = task
		s.dispatcher.EnqueueTask(rec.ID, task, int(rec.Priority))
	}
	if page.HasMore {
		s.taskCursor = page.LastID
	}
}

func weightPerUnit(r wms.TaskRecord) float64 {
	if r.Quantity <= 0 {
		return r.WeightKg
	}
	return r.WeightKg / float64(r.Quantity)
}

// distanceFromSlot derives a deterministic storage-to-buffer distance
// from a slot code when the adapter reports none directly.
func distanceFromSlot(slot string) float64 {
	sum := 0
	for _, c := range slot {
		sum += int(c)
	}
	return float64(10 + sum%90)
}

// pendingTasks prunes terminal tasks out of activeTasks and returns the
// remaining Pending ones for the optimizer snapshot.
func (s *Service) pendingTasks() []*domain.DeliveryTask {
	pending := make([]*domain.DeliveryTask, 0, len(s.activeTasks))
	for id, t := range s.activeTasks {
		switch t.Status {
		case domain.TaskCompleted, domain.TaskCancelled, domain.TaskFailed:
			delete(s.activeTasks, id)
		case domain.TaskPending:
			pending = append(pending, t)
		}
	}
	return pending
}

// tacticalCycle implements §4.10's tactical loop: snapshot Pending
// tasks and available forklifts, run the optimizer, and reconcile.
func (s *Service) tacticalCycle(ctx context.Context) {
	s.ingestTasks(ctx)
	tasks := s.pendingTasks()

	result := optimizer.Solve(ctx, optimizer.Config{
		MaxSolverTime: s.cfg.Optimization.MaxSolverTime, BalanceLambda: s.cfg.Optimization.WorkloadBalanceLambda,
		WarmStartEnabled: s.cfg.Optimization.WarmStartEnabled,
	}, tasks, s.forklifts, func(t *domain.DeliveryTask, f *domain.Forklift) float64 {
		return f.EstimateDeliveryTime(f.CurrentPosition-t.Pallet.StorageDistanceM, t.Pallet.StorageDistanceM)
	}, func(t *domain.DeliveryTask) (time.Time, bool) { return time.Time{}, false }, time.Now(), s.lastWarmStart)

	s.lastWarmStart = make(map[string]string, len(result.Assignments))
	for _, a := range result.Assignments {
		s.lastWarmStart[a.TaskID] = a.ForkliftID
	}

	s.stats.update(func(d *StatsSnapshot) {
		d.LastSolverResult = result.Result
		d.LastSolverObjective = result.ObjectiveSec
		d.LastWorkloadVariance = result.WorkloadVariance
	})

	if s.metrics != nil {
		s.metrics.SolverRuns.WithLabelValues(string(result.Result)).Inc()
		s.metrics.SolverSeconds.Observe(result.SolverTime.Seconds())
		s.metrics.SolverObjective.Set(result.ObjectiveSec)
		s.metrics.WorkloadVariance.Set(result.WorkloadVariance)
	}

	if result.Result == optimizer.Infeasible && s.logger != nil {
		s.logger.Event(ctx, "optimizer_infeasible", map[string]any{"infeasible_tasks": len(result.InfeasibleTasks)})
	}
}

// historicalCycle implements §4.10's historical loop: persist a buffer
// snapshot on the shorter cadence; the aggregation service itself runs
// on its own coarser cadence as a separate background worker in the same
// process (internal/aggregation).
func (s *Service) historicalCycle(ctx context.Context) {
	snap := historical.BufferSnapshotRecord{
		Timestamp: time.Now(), FillLevel: s.buffer.FillLevel(), Count: s.buffer.Count(),
		Capacity: s.buffer.Capacity(), DeliveryRate: s.stats.Snapshot().RequiredDelivery,
		ConsumptionRate: s.consumptionRate, State: string(s.fsm.State()),
	}
	if err := s.repo.BufferSnapshot(ctx, snap); err != nil {
		s.logLoopError(ctx, "historical", err)
	}
}

func (s *Service) logLoopError(ctx context.Context, loop string, err error) {
	if s.metrics != nil {
		s.metrics.LoopErrors.WithLabelValues(loop).Inc()
	}
	if s.logger != nil {
		s.logger.WithError(err).Event(ctx, "loop_cycle_failed", map[string]any{"loop": loop})
	}
}

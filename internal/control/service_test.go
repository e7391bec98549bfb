package control

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/scheduler-core/internal/config"
	"github.com/wms-platform/scheduler-core/internal/dispatch"
	"github.com/wms-platform/scheduler-core/internal/domain"
	"github.com/wms-platform/scheduler-core/internal/wms"
)

func newTestService(adapter wms.Adapter) *Service {
	cfg := &config.Config{
		Buffer:       config.Buffer{Capacity: 100, LowThreshold: 0.3, HighThreshold: 0.7, CriticalThreshold: 0.15, DeadBand: 0.05},
		Timing:       config.Timing{RealtimeCycle: 200 * time.Millisecond, TacticalCycle: 2 * time.Second, HistoricalCycle: 60 * time.Second},
		Workers:      config.Workers{ForkliftsCount: 1, PickersCount: 0},
		Optimization: config.Optimization{WorkloadBalanceLambda: 0.25, MaxSolverTime: 500 * time.Millisecond},
	}
	return New(cfg, adapter, nil, nil, nil, nil, nil)
}

// TestCompleteFinishedTasks_ReleasesForkliftAndReportsToWMS covers the
// control loop's WMS-mutation wiring: once a bound task's estimated
// completion has elapsed, the forklift is released, the dispatcher's
// completed counter advances, and the task/pallet state is reported
// back to the adapter.
func TestCompleteFinishedTasks_ReleasesForkliftAndReportsToWMS(t *testing.T) {
	adapter := wms.NewInMemory()
	s := newTestService(adapter)
	s.dispatcher = dispatch.New(nil, func() time.Time { return time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC) })

	forklift := s.forklifts[0]
	adapter.SeedForklifts([]wms.ForkliftStatus{{ID: forklift.ID, State: "moving_to_pallet"}})

	product := domain.NewProduct("SKU-1", "", 10)
	pallet := domain.NewPallet("pallet-1", product, 1, 20)
	task := domain.NewDeliveryTask("task-1", pallet, time.Now())
	past := time.Now().Add(-time.Minute)
	task.Assign(forklift.ID, time.Now().Add(-2*time.Minute), past)
	forklift.BindTask(task.ID)
	s.activeTasks[task.ID] = task

	s.completeFinishedTasks(context.Background())

	assert.Equal(t, domain.TaskCompleted, task.Status)
	assert.True(t, forklift.IsAvailable(), "forklift must be released back to idle once its task completes")
	assert.Equal(t, 1, s.dispatcher.Stats().TasksCompleted)

	forklifts, err := adapter.CurrentForklifts(context.Background())
	require.NoError(t, err)
	require.Len(t, forklifts, 1)
	assert.Equal(t, string(domain.ForkliftIdle), forklifts[0].State, "released forklift's idle state must be reported back to the WMS")
}

// TestCompleteFinishedTasks_LeavesInProgressTasksAlone ensures a task
// whose estimated completion hasn't elapsed yet is left bound.
func TestCompleteFinishedTasks_LeavesInProgressTasksAlone(t *testing.T) {
	adapter := wms.NewInMemory()
	s := newTestService(adapter)

	forklift := s.forklifts[0]
	product := domain.NewProduct("SKU-1", "", 10)
	pallet := domain.NewPallet("pallet-1", product, 1, 20)
	task := domain.NewDeliveryTask("task-1", pallet, time.Now())
	future := time.Now().Add(time.Hour)
	task.Assign(forklift.ID, time.Now(), future)
	forklift.BindTask(task.ID)
	s.activeTasks[task.ID] = task

	s.completeFinishedTasks(context.Background())

	assert.Equal(t, domain.TaskAssigned, task.Status)
	assert.False(t, forklift.IsAvailable())
}

// TestReportAssignments_ReportsActiveForkliftsAndTheirTasks covers the
// other half of the WMS adapter contract: a forklift still bound to a
// task gets both its own status and its task's status reported.
func TestReportAssignments_ReportsActiveForkliftsAndTheirTasks(t *testing.T) {
	adapter := wms.NewInMemory()
	s := newTestService(adapter)

	forklift := s.forklifts[0]
	adapter.SeedForklifts([]wms.ForkliftStatus{{ID: forklift.ID, State: "idle"}})
	forklift.BindTask("task-1")

	s.reportAssignments(context.Background())

	forklifts, err := adapter.CurrentForklifts(context.Background())
	require.NoError(t, err)
	require.Len(t, forklifts, 1)
	assert.Equal(t, string(domain.ForkliftMovingToPallet), forklifts[0].State)
}

// TestReportAssignments_SkipsIdleForklifts ensures idle fleet members
// (nothing to reconcile) don't generate adapter calls.
func TestReportAssignments_SkipsIdleForklifts(t *testing.T) {
	adapter := wms.NewInMemory()
	s := newTestService(adapter)

	forklift := s.forklifts[0]
	adapter.SeedForklifts([]wms.ForkliftStatus{{ID: forklift.ID, State: "stale"}})

	s.reportAssignments(context.Background())

	forklifts, err := adapter.CurrentForklifts(context.Background())
	require.NoError(t, err)
	require.Len(t, forklifts, 1)
	assert.Equal(t, "stale", forklifts[0].State, "idle forklifts must not be reported, leaving the seeded value untouched")
}

package optimizer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/scheduler-core/internal/domain"
	"github.com/wms-platform/scheduler-core/internal/testkit"
)

func flatCost(task *domain.DeliveryTask, forklift *domain.Forklift) float64 {
	return 10 + task.Weight()
}

func noDeadline(*domain.DeliveryTask) (time.Time, bool) { return time.Time{}, false }

func TestSolve_AssignsEveryTaskWhenCapacitySuffices(t *testing.T) {
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	tasks := []*domain.DeliveryTask{
		testkit.NewTask("t1", 5, 10, now),
		testkit.NewTask("t2", 8, 10, now),
	}
	forklifts := []*domain.Forklift{testkit.NewForklift("fk-1", 1.5), testkit.NewForklift("fk-2", 1.5)}

	plan := Solve(context.Background(), Config{}, tasks, forklifts, flatCost, noDeadline, now, nil)

	assert.Equal(t, Optimal, plan.Result)
	assert.Len(t, plan.Assignments, 2)
	assert.Empty(t, plan.InfeasibleTasks)
}

func TestSolve_OfflineForkliftsExcludedFromAssignment(t *testing.T) {
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	tasks := []*domain.DeliveryTask{testkit.NewTask("t1", 5, 10, now)}
	offline := testkit.NewForklift("fk-1", 1.5)
	offline.State = domain.ForkliftOffline
	online := testkit.NewForklift("fk-2", 1.5)

	plan := Solve(context.Background(), Config{}, tasks, []*domain.Forklift{offline, online}, flatCost, noDeadline, now, nil)

	require.Len(t, plan.Assignments, 1)
	assert.Equal(t, "fk-2", plan.Assignments[0].ForkliftID)
}

func TestSolve_ZeroForkliftsReportsInfeasible(t *testing.T) {
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	tasks := []*domain.DeliveryTask{testkit.NewTask("t1", 5, 10, now)}

	plan := Solve(context.Background(), Config{}, tasks, nil, flatCost, noDeadline, now, nil)

	assert.Equal(t, Infeasible, plan.Result)
	assert.Equal(t, []string{"t1"}, plan.InfeasibleTasks)
}

func TestSolve_DeadlineMissExcludesTaskButKeepsOthersFeasible(t *testing.T) {
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	tight := testkit.NewTask("urgent", 5, 10, now)
	relaxed := testkit.NewTask("relaxed", 5, 10, now)
	tasks := []*domain.DeliveryTask{tight, relaxed}
	forklifts := []*domain.Forklift{testkit.NewForklift("fk-1", 1.5)}

	deadlineOf := func(task *domain.DeliveryTask) (time.Time, bool) {
		if task.ID == "urgent" {
			return now.Add(1 * time.Second), true // unmeetable given flatCost >= 10s
		}
		return time.Time{}, false
	}

	plan := Solve(context.Background(), Config{}, tasks, forklifts, flatCost, deadlineOf, now, nil)

	assert.Equal(t, Feasible, plan.Result)
	assert.Contains(t, plan.InfeasibleTasks, "urgent")
	require.Len(t, plan.Assignments, 1)
	assert.Equal(t, "relaxed", plan.Assignments[0].TaskID)
}

func TestSolve_CriticalPriorityOrdersAheadOfEqualSequence(t *testing.T) {
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	normal := testkit.NewTask("normal", 5, 10, now)
	critical := testkit.NewTask("critical", 200, 10, now) // weight*10 priority >= 100
	require.GreaterOrEqual(t, critical.Priority(), 100)

	ordered := topoSort([]*domain.DeliveryTask{normal, critical})
	require.Len(t, ordered, 2)
	assert.Equal(t, "critical", ordered[0].ID)
}

// TestSolve_StreamPrecedenceHoldsAcrossForklifts reproduces spec
// scenario S2: a later (lower-priority) stream's task must not start
// before an earlier stream's tasks have all finished, even when the
// later task lands on a different forklift from the earlier stream's
// last-finishing task.
func TestSolve_StreamPrecedenceHoldsAcrossForklifts(t *testing.T) {
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	heavy := testkit.NewTask("heavy", 2.5, 10, now)
	light := testkit.NewTask("light", 0.5, 10, now)
	other := testkit.NewTask("other", 1.5, 10, now)

	stream0 := domain.NewTaskStream("s0", "o0", []*domain.DeliveryTask{light, heavy}, 2)
	stream1 := domain.NewTaskStream("s1", "o1", []*domain.DeliveryTask{other}, 1)
	require.Equal(t, "heavy", stream0.Tasks[0].ID, "heavy-first sort within stream0")

	tasks := append(append([]*domain.DeliveryTask{}, stream0.Tasks...), stream1.Tasks...)
	ordered := topoSort(tasks)
	require.Len(t, ordered, 3)
	assert.Equal(t, []string{"heavy", "light", "other"}, []string{ordered[0].ID, ordered[1].ID, ordered[2].ID},
		"stream0 (higher StreamPriority) must fully precede stream1")

	forklifts := []*domain.Forklift{testkit.NewForklift("fk-1", 1.5), testkit.NewForklift("fk-2", 1.5)}
	plan := Solve(context.Background(), Config{BalanceLambda: 1}, tasks, forklifts, flatCost, noDeadline, now, nil)

	byID := make(map[string]Assignment, len(plan.Assignments))
	for _, a := range plan.Assignments {
		byID[a.TaskID] = a
	}
	require.Len(t, byID, 3)

	heavyEnd := byID["heavy"].EndAt
	lightEnd := byID["light"].EndAt
	streamBarrier := heavyEnd
	if lightEnd.After(streamBarrier) {
		streamBarrier = lightEnd
	}
	assert.NotEqual(t, byID["other"].ForkliftID, byID["heavy"].ForkliftID,
		"the workload-balancing lambda should steer 'other' onto the less busy forklift")
	assert.False(t, byID["other"].StartAt.Before(streamBarrier),
		"a stream1 task must not start before every stream0 task has ended, even on a different forklift from stream0's last-finishing task")
}

func TestSolve_WarmStartPrefersPriorForkliftOnTie(t *testing.T) {
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	task := testkit.NewTask("t1", 5, 10, now)
	fkA := testkit.NewForklift("fk-a", 1.5)
	fkB := testkit.NewForklift("fk-b", 1.5)

	plan := Solve(context.Background(), Config{WarmStartEnabled: true}, []*domain.DeliveryTask{task}, []*domain.Forklift{fkA, fkB}, flatCost, noDeadline, now, map[string]string{"t1": "fk-b"})

	require.Len(t, plan.Assignments, 1)
	assert.Equal(t, "fk-b", plan.Assignments[0].ForkliftID)
}

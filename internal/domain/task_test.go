package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliveryTask_Lifecycle(t *testing.T) {
	now := time.Now()
	task := NewDeliveryTask("t1", pallet("t1", 12), now)
	require.Equal(t, TaskPending, task.Status)

	est := now.Add(90 * time.Second)
	task.Assign("fk-1", now, est)
	assert.Equal(t, TaskAssigned, task.Status)
	assert.Equal(t, "fk-1", task.ForkliftID)
	require.NotNil(t, task.StartedAt)
	require.NotNil(t, task.EstimatedCompletion)
	assert.Equal(t, est, *task.EstimatedCompletion)

	task.Start()
	assert.Equal(t, TaskInProgress, task.Status)

	completedAt := now.Add(2 * time.Minute)
	task.Complete(completedAt)
	assert.Equal(t, TaskCompleted, task.Status)
	require.NotNil(t, task.CompletedAt)
	assert.Equal(t, completedAt, *task.CompletedAt)
}

func TestDeliveryTask_Cancel_OverridesAnyState(t *testing.T) {
	now := time.Now()
	task := NewDeliveryTask("t1", pallet("t1", 12), now)
	task.Assign("fk-1", now, now.Add(time.Minute))
	task.Cancel()
	assert.Equal(t, TaskCancelled, task.Status)
}

func TestDeliveryTask_WeightAndPriority_MirrorPallet(t *testing.T) {
	now := time.Now()
	task := NewDeliveryTask("t1", pallet("t1", 12), now)
	assert.Equal(t, 12.0, task.Weight())
	assert.Equal(t, 120, task.Priority())
}

func TestTaskStatus_String(t *testing.T) {
	cases := map[TaskStatus]string{
		TaskPending:    "Pending",
		TaskAssigned:   "Assigned",
		TaskInProgress: "InProgress",
		TaskCompleted:  "Completed",
		TaskFailed:     "Failed",
		TaskCancelled:  "Cancelled",
		TaskStatus(99): "Unknown",
	}
	for status, want := range cases {
		assert.Equal(t, want, status.String())
	}
}

package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pallet(id string, weightKg float64) *Pallet {
	return NewPallet(id, NewProduct("SKU-"+id, "test", weightKg), 1, 0)
}

func TestNewTaskStream_SortsTasksByDescendingWeight(t *testing.T) {
	now := time.Now()
	light := NewDeliveryTask("light", pallet("light", 5), now)
	heavy := NewDeliveryTask("heavy", pallet("heavy", 40), now)
	medium := NewDeliveryTask("medium", pallet("medium", 15), now)

	s := NewTaskStream("s1", "order-1", []*DeliveryTask{light, heavy, medium}, 50)

	require.Len(t, s.Tasks, 3)
	assert.Equal(t, "heavy", s.Tasks[0].ID)
	assert.Equal(t, "medium", s.Tasks[1].ID)
	assert.Equal(t, "light", s.Tasks[2].ID)
	assert.Equal(t, 0, heavy.SequenceInStream)
	assert.Equal(t, 2, light.SequenceInStream)
	assert.Equal(t, "s1", light.StreamID)
}

func TestTaskStream_NextPending_SkipsNonPendingInSequenceOrder(t *testing.T) {
	now := time.Now()
	heavy := NewDeliveryTask("heavy", pallet("heavy", 40), now)
	light := NewDeliveryTask("light", pallet("light", 5), now)
	s := NewTaskStream("s1", "order-1", []*DeliveryTask{light, heavy}, 50)

	s.Tasks[0].Assign("fk-1", now, now.Add(time.Minute)) // heavy is Tasks[0] after sort

	next := s.NextPending()
	require.NotNil(t, next)
	assert.Equal(t, "light", next.ID)
}

func TestTaskStream_IsComplete_RequiresAllTerminal(t *testing.T) {
	now := time.Now()
	a := NewDeliveryTask("a", pallet("a", 5), now)
	b := NewDeliveryTask("b", pallet("b", 5), now)
	s := NewTaskStream("s1", "order-1", []*DeliveryTask{a, b}, 50)

	assert.False(t, s.IsComplete())
	a.Complete(now)
	assert.False(t, s.IsComplete())
	b.Cancel()
	assert.True(t, s.IsComplete())
}

func TestTaskStream_Refresh_TracksLifecycle(t *testing.T) {
	now := time.Now()
	task := NewDeliveryTask("a", pallet("a", 5), now)
	s := NewTaskStream("s1", "order-1", []*DeliveryTask{task}, 50)

	s.Refresh()
	assert.Equal(t, StreamPending, s.Status)

	task.Assign("fk-1", now, now.Add(time.Minute))
	s.Refresh()
	assert.Equal(t, StreamInProgress, s.Status)

	task.Complete(now)
	s.Refresh()
	assert.Equal(t, StreamCompleted, s.Status)
}

func TestTaskStream_TotalWeight_ExcludesTerminalTasks(t *testing.T) {
	now := time.Now()
	a := NewDeliveryTask("a", pallet("a", 10), now)
	b := NewDeliveryTask("b", pallet("b", 20), now)
	s := NewTaskStream("s1", "order-1", []*DeliveryTask{a, b}, 50)

	assert.Equal(t, 30.0, s.TotalWeight())
	a.Complete(now)
	assert.Equal(t, 20.0, s.TotalWeight())
}

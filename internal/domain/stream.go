package domain

import (
	"errors"
	"sort"
)

// StreamStatus tracks a stream's overall progress.
type StreamStatus string

const (
	StreamPending    StreamStatus = "pending"
	StreamInProgress StreamStatus = "in_progress"
	StreamCompleted  StreamStatus = "completed"
	StreamCancelled  StreamStatus = "cancelled"
)

var ErrStreamEmpty = errors.New("stream has no tasks")

// TaskStream is a strictly ordered run of delivery tasks for a single
// order line. Invariant: iterating in sequence_number order always
// yields tasks sorted by descending weight (heavy-first, for
// heavy-on-bottom stacking).
type TaskStream struct {
	ID       string
	OrderID  string
	Tasks    []*DeliveryTask
	Status   StreamStatus
	Priority int
}

// NewTaskStream builds a stream from the given tasks, sorting them by
// descending weight and assigning sequence numbers accordingly.
func NewTaskStream(id, orderID string, tasks []*DeliveryTask, priority int) *TaskStream {
	sorted := make([]*DeliveryTask, len(tasks))
	copy(sorted, tasks)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Weight() > sorted[j].Weight() })
	for i, t := range sorted {
		t.StreamID = id
		t.SequenceInStream = i
		t.StreamPriority = priority
	}
	return &TaskStream{ID: id, OrderID: orderID, Tasks: sorted, Status: StreamPending, Priority: priority}
}

// Len returns the number of tasks in the stream.
func (s *TaskStream) Len() int { return len(s.Tasks) }

// NextPending returns the earliest-sequenced task still Pending, or nil
// if none remain.
func (s *TaskStream) NextPending() *DeliveryTask {
	for _, t := range s.Tasks {
		if t.Status == TaskPending {
			return t
		}
	}
	return nil
}

// IsComplete reports whether every task has reached a terminal state
// (Completed or Cancelled).
func (s *TaskStream) IsComplete() bool {
	for _, t := range s.Tasks {
		if t.Status != TaskCompleted && t.Status != TaskCancelled {
			return false
		}
	}
	return true
}

// Refresh recomputes Status from the current task states.
func (s *TaskStream) Refresh() {
	if len(s.Tasks) == 0 {
		s.Status = StreamCompleted
		return
	}
	anyStarted := false
	for _, t := range s.Tasks {
		if t.Status == TaskInProgress || t.Status == TaskAssigned || t.Status == TaskCompleted {
			anyStarted = true
		}
	}
	if s.IsComplete() {
		s.Status = StreamCompleted
		return
	}
	if anyStarted {
		s.Status = StreamInProgress
		return
	}
	s.Status = StreamPending
}

// TotalWeight sums the weight of every task still outstanding (not yet
// Completed or Cancelled).
func (s *TaskStream) TotalWeight() float64 {
	var total float64
	for _, t := range s.Tasks {
		if t.Status != TaskCompleted && t.Status != TaskCancelled {
			total += t.Weight()
		}
	}
	return total
}

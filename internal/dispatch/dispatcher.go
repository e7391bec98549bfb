// Package dispatch implements the stream queue and forklift dispatcher
// (C3/C4): the component that binds Pending tasks in the active stream
// to idle forklifts once per realtime tick.
package dispatch

import (
	"sync"
	"time"

	"github.com/wms-platform/scheduler-core/internal/domain"
	"github.com/wms-platform/scheduler-core/internal/platform/events"
)

// Stats summarizes dispatcher throughput for observability.
type Stats struct {
	StreamsQueued    int
	StreamsCompleted int
	TasksDispatched  int
	TasksCompleted   int
}

// Dispatcher holds an ordered stream queue and binds tasks to forklifts
// on each tick. All mutating operations are mutually exclusive.
type Dispatcher struct {
	mu sync.Mutex

	pending []*domain.TaskStream // ordered by sequence_number (queue position)
	current *domain.TaskStream

	nextSeq int
	bus     *events.Bus
	now     func() time.Time

	stats Stats
}

// New creates an empty dispatcher. now defaults to time.Now if nil.
func New(bus *events.Bus, now func() time.Time) *Dispatcher {
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{bus: bus, now: now}
}

// EnqueueStream appends a stream to the pending queue; a stream's queue
// position is its place in that slice. The mutex guarding this method
// keeps that order well defined under concurrent enqueue.
func (d *Dispatcher) EnqueueStream(s *domain.TaskStream) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = append(d.pending, s)
	d.stats.StreamsQueued++
}

// EnqueueTask wraps a single ad-hoc task in a singleton stream and
// enqueues it, per spec.md §4.3 step 3.
func (d *Dispatcher) EnqueueTask(id string, task *domain.DeliveryTask, priority int) *domain.TaskStream {
	s := domain.NewTaskStream(id, "", []*domain.DeliveryTask{task}, priority)
	d.EnqueueStream(s)
	return s
}

// Dispatch runs one cooperative tick: advance the active stream if
// needed, then bind Pending tasks to Idle, unassigned forklifts.
func (d *Dispatcher) Dispatch(forklifts []*domain.Forklift, distanceToBuffer func(*domain.Pallet) float64, positionOf func(*domain.Forklift) float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()

	if d.current == nil || d.current.IsComplete() {
		if d.current != nil {
			d.current.Status = domain.StreamCompleted
			d.stats.StreamsCompleted++
			if d.bus != nil {
				d.bus.Publish(events.TaskStreamCompleted, d.current.ID)
			}
		}
		d.current = nil
		if len(d.pending) > 0 {
			d.current = d.pending[0]
			d.pending = d.pending[1:]
			d.current.Status = domain.StreamInProgress
		}
	}

	if d.current == nil {
		return
	}

	for {
		task := d.current.NextPending()
		if task == nil {
			break
		}
		forklift := firstAvailable(forklifts)
		if forklift == nil {
			break
		}
		dist := distanceToBuffer(task.Pallet)
		fromForklift := positionOf(forklift) - task.Pallet.StorageDistanceM
		est := forklift.EstimateDeliveryTime(fromForklift, dist)
		forklift.BindTask(task.ID)
		task.Assign(forklift.ID, now, now.Add(time.Duration(est*float64(time.Second))))
		d.stats.TasksDispatched++
	}
	d.current.Refresh()
}

// CompleteTask marks a task Completed, releases its forklift, and
// refreshes the owning stream's status.
func (d *Dispatcher) CompleteTask(task *domain.DeliveryTask, forklift *domain.Forklift) {
	d.mu.Lock()
	defer d.mu.Unlock()
	task.Complete(d.now())
	forklift.ReleaseTask()
	d.stats.TasksCompleted++
	if d.current != nil && d.current.ID == task.StreamID {
		d.current.Refresh()
	}
}

// Stats returns a snapshot of dispatcher counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

func firstAvailable(forklifts []*domain.Forklift) *domain.Forklift {
	for _, f := range forklifts {
		if f.IsAvailable() {
			return f
		}
	}
	return nil
}

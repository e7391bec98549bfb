package wms

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wms-platform/scheduler-core/internal/domain"
)

// InMemory is a test double for Adapter, backed by in-process slices.
// It never errors, except that PageTasks returns ctx.Err() when ctx is
// already done; the other methods do not check ctx.
type InMemory struct {
	mu sync.Mutex

	tasks    []TaskRecord
	workers  []WorkerRecord
	zones    []ZoneRecord
	cells    []CellRecord
	products []ProductRecord

	pickers   []PickerStatus
	forklifts []ForkliftStatus
	buffer    BufferStatus

	nextTaskID int
}

// NewInMemory creates an empty test double.
func NewInMemory() *InMemory {
	return &InMemory{}
}

// SeedBuffer sets the current buffer read.
func (m *InMemory) SeedBuffer(status BufferStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffer = status
}

// SeedForklifts sets the current forklift reads.
func (m *InMemory) SeedForklifts(statuses []ForkliftStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forklifts = statuses
}

// SeedPickers sets the current picker reads.
func (m *InMemory) SeedPickers(statuses []PickerStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pickers = statuses
}

func page[T any](items []T, afterID string, limit int, idOf func(T) string) Page[T] {
	start := 0
	if afterID != "" {
		for i, it := range items {
			if idOf(it) == afterID {
				start = i + 1
				break
			}
		}
	}
	end := len(items)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	var slice []T
	if start < end {
		slice = items[start:end]
	}
	lastID := afterID
	if len(slice) > 0 {
		lastID = idOf(slice[len(slice)-1])
	}
	return Page[T]{Items: slice, LastID: lastID, HasMore: end < len(items)}
}

func (m *InMemory) PageTasks(ctx context.Context, afterID string, limit int) (Page[TaskRecord], error) {
	if err := ctx.Err(); err != nil {
		return Page[TaskRecord]{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return page(m.tasks, afterID, limit, func(t TaskRecord) string { return t.ID }), nil
}

func (m *InMemory) PageWorkers(ctx context.Context, afterID string, limit int) (Page[WorkerRecord], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return page(m.workers, afterID, limit, func(w WorkerRecord) string { return w.ID }), nil
}

func (m *InMemory) PageZones(ctx context.Context, afterID string, limit int) (Page[ZoneRecord], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return page(m.zones, afterID, limit, func(z ZoneRecord) string { return z.Code }), nil
}

func (m *InMemory) PageCells(ctx context.Context, afterID string, limit int) (Page[CellRecord], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return page(m.cells, afterID, limit, func(c CellRecord) string { return c.BinCode }), nil
}

func (m *InMemory) PageProducts(ctx context.Context, afterID string, limit int) (Page[ProductRecord], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return page(m.products, afterID, limit, func(p ProductRecord) string { return p.SKU }), nil
}

func (m *InMemory) CurrentPickers(ctx context.Context) ([]PickerStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PickerStatus(nil), m.pickers...), nil
}

func (m *InMemory) CurrentForklifts(ctx context.Context) ([]ForkliftStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ForkliftStatus(nil), m.forklifts...), nil
}

func (m *InMemory) CurrentBuffer(ctx context.Context) (BufferStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buffer, nil
}

func (m *InMemory) CreateTask(ctx context.Context, fromZone, fromSlot, toZone, toSlot, palletID string, priority TaskPriority) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextTaskID++
	id := domain.NewID()
	m.tasks = append(m.tasks, TaskRecord{
		ID: id, FromZone: fromZone, FromSlot: fromSlot, ToZone: toZone, ToSlot: toSlot,
		PalletID: palletID, Priority: priority, Status: 0,
	})
	sort.SliceStable(m.tasks, func(i, j int) bool { return m.tasks[i].ID < m.tasks[j].ID })
	return id, nil
}

func (m *InMemory) UpdateTaskStatus(ctx context.Context, taskID string, status int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.tasks {
		if m.tasks[i].ID == taskID {
			m.tasks[i].Status = status
			return nil
		}
	}
	return nil
}

func (m *InMemory) ConfirmPalletDelivery(ctx context.Context, palletID string, at time.Time) error {
	return nil
}

func (m *InMemory) ConfirmPalletConsumed(ctx context.Context, palletID string, at time.Time) error {
	return nil
}

func (m *InMemory) UpdateForkliftStatus(ctx context.Context, forkliftID, state string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.forklifts {
		if m.forklifts[i].ID == forkliftID {
			m.forklifts[i].State = state
			return nil
		}
	}
	return nil
}

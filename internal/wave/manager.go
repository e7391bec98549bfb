// Package wave implements the wave manager (C7): grouping orders into
// waves, deriving per-order task streams, and tracking wave lifecycle.
package wave

import (
	"sort"
	"sync"
	"time"

	"github.com/wms-platform/scheduler-core/internal/domain"
)

// Manager owns the wave queue and the streams derived from each wave.
type Manager struct {
	mu      sync.Mutex
	waves   []*domain.Wave
	streams map[string]*domain.TaskStream // streamID -> stream

	plannedDuration time.Duration
	safetyMargin    time.Duration
	maxPallets      int
	now             func() time.Time
}

// New creates a wave manager using the given default duration budget.
func New(plannedDuration, safetyMargin time.Duration, maxPallets int, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{streams: make(map[string]*domain.TaskStream), plannedDuration: plannedDuration, safetyMargin: safetyMargin, maxPallets: maxPallets, now: now}
}

// CreateWave allocates one stream per order (heavy-first task ordering
// within each stream per domain.NewTaskStream) from the pallets
// available to satisfy it, and queues the wave Pending.
func (m *Manager) CreateWave(id string, orders []*domain.Order, tasksByOrder map[string][]*domain.DeliveryTask) *domain.Wave {
	m.mu.Lock()
	defer m.mu.Unlock()

	w := domain.NewWave(id, m.plannedDuration, m.safetyMargin, m.maxPallets)
	for i, o := range orders {
		streamID := id + "-" + o.ID
		stream := domain.NewTaskStream(streamID, o.ID, tasksByOrder[o.ID], len(orders)-i)
		m.streams[streamID] = stream
		w.StreamIDs = append(w.StreamIDs, streamID)
		o.Status = domain.OrderWaved
		o.WaveID = id
	}
	m.waves = append(m.waves, w)
	return w
}

// NextPendingWave returns the earliest-queued wave still Pending, or nil.
func (m *Manager) NextPendingWave() *domain.Wave {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.waves {
		if w.Status == domain.WavePending {
			return w
		}
	}
	return nil
}

// Start transitions a wave from Pending to Active.
func (m *Manager) Start(w *domain.Wave) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w.Start(m.now())
}

// UpdateStatuses refreshes every active wave: marks it Completed once
// every stream has completed, or Overdue if its deadline has passed.
// Status is monotone; Completed waves are never revisited.
func (m *Manager) UpdateStatuses() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for _, w := range m.waves {
		if w.Status == domain.WaveCompleted {
			continue
		}
		if w.Status != domain.WaveActive && w.Status != domain.WaveOverdue {
			continue
		}
		allDone := true
		for _, sid := range w.StreamIDs {
			s := m.streams[sid]
			if s == nil {
				continue
			}
			s.Refresh()
			if s.Status != domain.StreamCompleted && s.Status != domain.StreamCancelled {
				allDone = false
			}
		}
		if allDone {
			w.Complete(now)
			continue
		}
		w.CheckOverdue(now)
	}
}

// LeadTime estimates max_distance/avg_speed + safety_margin_seconds for
// the given wave, where max_distance is the farthest storage-to-buffer
// distance among the wave's remaining tasks.
func (m *Manager) LeadTime(w *domain.Wave, forklifts []*domain.Forklift) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	var maxDistance float64
	for _, sid := range w.StreamIDs {
		s := m.streams[sid]
		if s == nil {
			continue
		}
		for _, t := range s.Tasks {
			if t.Status == domain.TaskCompleted || t.Status == domain.TaskCancelled {
				continue
			}
			if t.Pallet.StorageDistanceM > maxDistance {
				maxDistance = t.Pallet.StorageDistanceM
			}
		}
	}

	avgSpeed := averageSpeed(forklifts)
	if avgSpeed <= 0 {
		return w.SafetyMargin
	}
	travel := time.Duration(maxDistance/avgSpeed) * time.Second
	return travel + w.SafetyMargin
}

func averageSpeed(forklifts []*domain.Forklift) float64 {
	if len(forklifts) == 0 {
		return 0
	}
	var sum float64
	for _, f := range forklifts {
		sum += f.SpeedMPerS
	}
	return sum / float64(len(forklifts))
}

// StreamsOf returns the task streams belonging to a wave, ordered by
// the sequence in which CreateWave allocated them.
func (m *Manager) StreamsOf(w *domain.Wave) []*domain.TaskStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.TaskStream, 0, len(w.StreamIDs))
	for _, sid := range w.StreamIDs {
		if s := m.streams[sid]; s != nil {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

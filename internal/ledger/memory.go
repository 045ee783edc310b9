package ledger

import (
	"context"
	"sync"
	"time"

	"stay-booking/internal/data/entity"
	apperrors "stay-booking/internal/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type memorySlot struct {
	mu       sync.Mutex
	total    int
	reserved int
}

type memoryHandle struct {
	lines    []Demand
	released bool
}

// Memory is an in-process ledger with one mutex per slot. Batches lock their
// slots in canonical order, so overlapping batches serialize and disjoint
// ones run in parallel.
type Memory struct {
	capacity CapacitySource
	log      *zap.Logger

	mu      sync.Mutex // guards the maps, never held while waiting on a slot
	slots   map[slotKey]*memorySlot
	handles map[uuid.UUID]*memoryHandle
}

func NewMemory(capacity CapacitySource, log *zap.Logger) *Memory {
	return &Memory{
		capacity: capacity,
		log:      log.With(zap.String("ledger", "memory")),
		slots:    make(map[slotKey]*memorySlot),
		handles:  make(map[uuid.UUID]*memoryHandle),
	}
}

func (m *Memory) Reserve(ctx context.Context, demands []Demand) (*Handle, error) {
	batch, err := Normalize(demands)
	if err != nil {
		return nil, err
	}

	slots := make([]*memorySlot, len(batch))
	for i, d := range batch {
		s, err := m.slot(ctx, d.ResourceID, d.Date)
		if err != nil {
			return nil, err
		}
		slots[i] = s
	}

	for _, s := range slots {
		s.mu.Lock()
	}
	defer func() {
		for i := len(slots) - 1; i >= 0; i-- {
			slots[i].mu.Unlock()
		}
	}()

	for i, d := range batch {
		if avail := available(slots[i].total, slots[i].reserved); d.Count > avail {
			return nil, apperrors.NewCapacityExceededError(d.ResourceID, d.Date, d.Count, avail)
		}
	}
	for i, d := range batch {
		slots[i].reserved += d.Count
	}

	handle := &Handle{ID: uuid.New(), Lines: batch}
	m.mu.Lock()
	m.handles[handle.ID] = &memoryHandle{lines: batch}
	m.mu.Unlock()

	m.log.Debug("Capacity reserved", zap.String("handle_id", handle.ID.String()), zap.Int("slots", len(batch)))
	return handle, nil
}

func (m *Memory) Release(ctx context.Context, handleID uuid.UUID) error {
	m.mu.Lock()
	h, ok := m.handles[handleID]
	if !ok || h.released {
		m.mu.Unlock()
		return nil
	}
	h.released = true
	slots := make([]*memorySlot, len(h.lines))
	for i, d := range h.lines {
		slots[i] = m.slots[keyOf(d)]
	}
	m.mu.Unlock()

	for i, d := range h.lines {
		s := slots[i]
		s.mu.Lock()
		s.reserved -= d.Count
		if s.reserved < 0 {
			m.log.Error("Capacity slot underflow on release",
				zap.String("handle_id", handleID.String()),
				zap.String("resource_id", d.ResourceID.String()),
				zap.Time("date", d.Date))
			s.reserved = 0
		}
		s.mu.Unlock()
	}

	m.log.Debug("Capacity released", zap.String("handle_id", handleID.String()))
	return nil
}

func (m *Memory) AvailableOn(ctx context.Context, resourceID uuid.UUID, date time.Time) (int, error) {
	date = entity.DateOf(date)

	m.mu.Lock()
	s, ok := m.slots[slotKey{resource: resourceID, date: date}]
	m.mu.Unlock()

	if !ok {
		total, err := m.capacity.DefaultCapacity(ctx, resourceID)
		if err != nil {
			return 0, err
		}
		return total, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return available(s.total, s.reserved), nil
}

// slot returns the slot for a key, creating it with the default capacity.
func (m *Memory) slot(ctx context.Context, resourceID uuid.UUID, date time.Time) (*memorySlot, error) {
	key := slotKey{resource: resourceID, date: date}

	m.mu.Lock()
	s, ok := m.slots[key]
	m.mu.Unlock()
	if ok {
		return s, nil
	}

	total, err := m.capacity.DefaultCapacity(ctx, resourceID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.slots[key]; ok {
		return s, nil
	}
	s = &memorySlot{total: total}
	m.slots[key] = s
	return s, nil
}

package store

import (
	"context"
	"sync"

	"github.com/motortwin/motortwin/pkg/types"
)

// Memory is a thread-safe in-memory reading store. Readings are kept in
// timestamp order. It is a retention buffer, not an archive: once capacity
// is reached the oldest reading is dropped.
type Memory struct {
	mu       sync.RWMutex
	data     []types.Reading // ascending by Timestamp
	capacity int
}

// NewMemory creates a Memory store holding at most capacity readings.
// A non-positive capacity means unbounded.
func NewMemory(capacity int) *Memory {
	return &Memory{capacity: capacity}
}

// Append inserts r in timestamp order. Readings with equal timestamps keep
// their arrival order.
func (m *Memory) Append(_ context.Context, r types.Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := len(m.data)
	for i > 0 && m.data[i-1].Timestamp > r.Timestamp {
		i--
	}
	m.data = append(m.data, types.Reading{})
	copy(m.data[i+1:], m.data[i:])
	m.data[i] = r

	if m.capacity > 0 && len(m.data) > m.capacity {
		m.data = m.data[len(m.data)-m.capacity:]
	}
	return nil
}

// Recent returns up to limit readings, newest first.
func (m *Memory) Recent(_ context.Context, limit int) ([]types.Reading, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := min(limit, len(m.data))
	out := make([]types.Reading, 0, n)
	for i := len(m.data) - 1; i >= len(m.data)-n; i-- {
		out = append(out, m.data[i])
	}
	return out, nil
}

// RecentByMotor returns up to limit readings of motorID, newest first.
func (m *Memory) RecentByMotor(_ context.Context, motorID string, limit int) ([]types.Reading, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []types.Reading
	for i := len(m.data) - 1; i >= 0 && len(out) < limit; i-- {
		if m.data[i].MotorID == motorID {
			out = append(out, m.data[i])
		}
	}
	return out, nil
}

// Count returns the number of readings currently held.
func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data), nil
}

func (m *Memory) Close() error { return nil }

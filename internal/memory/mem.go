package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-process Store used by the simulator and tests.
type MemStore struct {
	mu      sync.Mutex
	records []Record
	closed  bool
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (m *MemStore) Add(_ context.Context, text string, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.records = append(m.records, Record{
		ID:        uuid.New().String(),
		Text:      text,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (m *MemStore) Query(_ context.Context, text string, k int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	return rank(m.records, text, k), nil
}

func (m *MemStore) Latest(_ context.Context, k int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	return tail(m.records, k), nil
}

func (m *MemStore) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	return len(m.records), nil
}

func (m *MemStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

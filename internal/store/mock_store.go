package store

import (
	"context"
	"sync"

	"github.com/speechtrack/syncagent/internal/domain"
)

// MockStore is a hand-written, in-memory implementation of Store used in
// unit tests. No mock-generation library needed.
type MockStore struct {
	mu    sync.Mutex
	items []domain.QueueItem

	// Optional error overrides — set in tests to simulate failure paths.
	AppendErr error
	RemoveErr error
	UpdateErr error
	ClearErr  error
}

func NewMockStore(seed ...domain.QueueItem) *MockStore {
	m := &MockStore{}
	m.items = append(m.items, seed...)
	return m
}

func (m *MockStore) GetAll(_ context.Context) []domain.QueueItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.QueueItem, len(m.items))
	copy(out, m.items)
	return out
}

func (m *MockStore) Append(_ context.Context, item domain.QueueItem) error {
	if m.AppendErr != nil {
		return m.AppendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, item)
	return nil
}

func (m *MockStore) Remove(_ context.Context, id string) error {
	if m.RemoveErr != nil {
		return m.RemoveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	filtered := m.items[:0:0]
	for _, it := range m.items {
		if it.ID != id {
			filtered = append(filtered, it)
		}
	}
	m.items = filtered
	return nil
}

func (m *MockStore) UpdateFields(_ context.Context, id string, update domain.ItemUpdate) error {
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id {
			update.Apply(&m.items[i])
			break
		}
	}
	return nil
}

func (m *MockStore) Clear(_ context.Context) error {
	if m.ClearErr != nil {
		return m.ClearErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = nil
	return nil
}

var _ Store = (*MockStore)(nil)

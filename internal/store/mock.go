package store

import (
	"context"
	"sync"

	"github.com/jwebster45206/quest-engine/pkg/objective"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu       sync.Mutex
	progress map[string]objective.Progress

	PingErr error
	SaveErr error
	LoadErr error
}

var _ Store = (*MockStore)(nil)

func NewMockStore() *MockStore {
	return &MockStore{progress: make(map[string]objective.Progress)}
}

func (m *MockStore) Ping(ctx context.Context) error {
	return m.PingErr
}

func (m *MockStore) Close() error {
	return nil
}

func (m *MockStore) LoadProgress(ctx context.Context, actorID, objectiveID string) (*objective.Progress, error) {
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.progress[progressKey(objectiveID, actorID)]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MockStore) LoadAll(ctx context.Context, objectiveID string) (map[string]objective.Progress, error) {
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := progressKey(objectiveID, "")
	result := make(map[string]objective.Progress)
	for key, p := range m.progress {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			result[key[len(prefix):]] = p
		}
	}
	return result, nil
}

func (m *MockStore) SaveProgress(ctx context.Context, actorID, objectiveID string, p objective.Progress) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	m.progress[progressKey(objectiveID, actorID)] = p
	m.mu.Unlock()
	return nil
}

func (m *MockStore) DeleteProgress(ctx context.Context, actorID, objectiveID string) error {
	m.mu.Lock()
	delete(m.progress, progressKey(objectiveID, actorID))
	m.mu.Unlock()
	return nil
}

// Saved reports whether a snapshot exists, for test assertions.
func (m *MockStore) Saved(actorID, objectiveID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.progress[progressKey(objectiveID, actorID)]
	return ok
}

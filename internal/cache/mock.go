package cache

import (
	"context"
	"sync"
	"time"
)

// MockCache is an in-memory Cache implementation for testing.
type MockCache struct {
	mu      sync.Mutex
	values  map[string]mockValue
	sets    map[string]map[string]struct{}
	PingErr error
	SetErr  error
	GetErr  error
}

type mockValue struct {
	value     string
	expiresAt time.Time
	ttl       bool
}

var _ Cache = (*MockCache)(nil)

func NewMockCache() *MockCache {
	return &MockCache{
		values: make(map[string]mockValue),
		sets:   make(map[string]map[string]struct{}),
	}
}

func (m *MockCache) Ping(ctx context.Context) error {
	return m.PingErr
}

func (m *MockCache) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	if m.SetErr != nil {
		return m.SetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v := mockValue{value: value}
	if expiration > 0 {
		v.expiresAt = time.Now().Add(expiration)
		v.ttl = true
	}
	m.values[key] = v
	return nil
}

func (m *MockCache) Get(ctx context.Context, key string) (string, error) {
	if m.GetErr != nil {
		return "", m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", nil
	}
	if v.ttl && time.Now().After(v.expiresAt) {
		delete(m.values, key)
		return "", nil
	}
	return v.value, nil
}

func (m *MockCache) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.values, key)
		delete(m.sets, key)
	}
	return nil
}

func (m *MockCache) AddToSet(ctx context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sets[key]
	if !ok {
		set = make(map[string]struct{})
		m.sets[key] = set
	}
	for _, member := range members {
		set[member] = struct{}{}
	}
	return nil
}

func (m *MockCache) SetMembers(ctx context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	members := make([]string, 0, len(m.sets[key]))
	for member := range m.sets[key] {
		members = append(members, member)
	}
	return members, nil
}

func (m *MockCache) Close() error {
	return nil
}

func (m *MockCache) WaitForConnection(ctx context.Context) error {
	return m.PingErr
}

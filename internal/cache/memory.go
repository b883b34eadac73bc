package cache

import (
	"sync"
	"time"
)

// Memory is the in-process tier-1 cache: short TTL, capacity-bounded,
// explicit eviction. Entries are boolean condition results keyed the same
// way as tier 2.
type Memory struct {
	mu       sync.RWMutex
	entries  map[string]memEntry
	tags     map[string]map[string]struct{}
	capacity int
}

type memEntry struct {
	value     bool
	expiresAt time.Time
	tags      []string
}

// NewMemory creates a tier-1 cache bounded to capacity entries.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 4096
	}
	return &Memory{
		entries:  make(map[string]memEntry),
		tags:     make(map[string]map[string]struct{}),
		capacity: capacity,
	}
}

// Get returns the cached value and whether a live entry exists. Expired
// entries are removed lazily.
func (m *Memory) Get(key string) (bool, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return false, false
	}
	if time.Now().After(e.expiresAt) {
		m.mu.Lock()
		m.removeLocked(key)
		m.mu.Unlock()
		return false, false
	}
	return e.value, true
}

// Set stores a value with a TTL and optional invalidation tags. When the
// cache is at capacity, expired entries are swept first and arbitrary
// entries are evicted after that.
func (m *Memory) Set(key string, value bool, ttl time.Duration, tags ...string) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; exists {
		// Drop the old entry so stale tag associations do not linger.
		m.removeLocked(key)
	} else if len(m.entries) >= m.capacity {
		m.sweepLocked(now)
		for k := range m.entries {
			if len(m.entries) < m.capacity {
				break
			}
			m.removeLocked(k)
		}
	}

	m.entries[key] = memEntry{
		value:     value,
		expiresAt: now.Add(ttl),
		tags:      tags,
	}
	for _, tag := range tags {
		keys, ok := m.tags[tag]
		if !ok {
			keys = make(map[string]struct{})
			m.tags[tag] = keys
		}
		keys[key] = struct{}{}
	}
}

// Delete removes entries by key.
func (m *Memory) Delete(keys ...string) {
	m.mu.Lock()
	for _, key := range keys {
		m.removeLocked(key)
	}
	m.mu.Unlock()
}

// DeleteByTag removes every entry carrying the tag.
func (m *Memory) DeleteByTag(tag string) {
	m.mu.Lock()
	for key := range m.tags[tag] {
		m.removeLocked(key)
	}
	delete(m.tags, tag)
	m.mu.Unlock()
}

// Flush removes all entries.
func (m *Memory) Flush() {
	m.mu.Lock()
	m.entries = make(map[string]memEntry)
	m.tags = make(map[string]map[string]struct{})
	m.mu.Unlock()
}

// Len reports the number of stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) removeLocked(key string) {
	e, ok := m.entries[key]
	if !ok {
		return
	}
	delete(m.entries, key)
	for _, tag := range e.tags {
		if keys, ok := m.tags[tag]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(m.tags, tag)
			}
		}
	}
}

func (m *Memory) sweepLocked(now time.Time) {
	for key, e := range m.entries {
		if now.After(e.expiresAt) {
			m.removeLocked(key)
		}
	}
}

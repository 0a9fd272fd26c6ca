package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is the in-process cache used when Redis is not configured.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *Memory) Get(_ context.Context, namespace, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	full := Key(namespace, key)
	entry, ok := m.entries[full]
	if !ok {
		return nil, false
	}
	if !m.now().Before(entry.expiresAt) {
		delete(m.entries, full)
		return nil, false
	}
	return append([]byte(nil), entry.value...), true
}

func (m *Memory) Set(_ context.Context, namespace, key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[Key(namespace, key)] = memoryEntry{
		value:     append([]byte(nil), value...),
		expiresAt: m.now().Add(effectiveTTL(ttl)),
	}
}

func (m *Memory) Delete(_ context.Context, namespace, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, Key(namespace, key))
}

func (m *Memory) ClearNamespace(_ context.Context, namespace string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := namespacePrefix(namespace)
	removed := 0
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
			removed++
		}
	}
	return removed
}

package memory

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/runestake/settlement/errors"
)

type entry struct {
	owner   string
	expires time.Time
}

// Memory is a single process lock store.
type Memory struct {
	mu    sync.Mutex
	locks map[string]entry
	now   func() time.Time
}

func New() *Memory {
	return &Memory{
		locks: make(map[string]entry),
		now:   time.Now,
	}
}

func (m *Memory) Health(_ context.Context, _ bool) (int, string, error) {
	return http.StatusOK, "Memory lock store", nil
}

// held returns the live entry for key, dropping it if expired. m.mu must be held.
func (m *Memory) held(key string) (entry, bool) {
	e, ok := m.locks[key]
	if !ok {
		return entry{}, false
	}

	if !m.now().Before(e.expires) {
		delete(m.locks, key)
		return entry{}, false
	}

	return e, true
}

func (m *Memory) TryLock(_ context.Context, key string, owner string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.held(key); ok && e.owner != owner {
		return false, nil
	}

	m.locks[key] = entry{owner: owner, expires: m.now().Add(ttl)}

	return true, nil
}

func (m *Memory) Extend(_ context.Context, keys []string, owner string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		if e, ok := m.held(key); !ok || e.owner != owner {
			return errors.NewTransactionExpiredError("lock on %s is no longer held", key)
		}
	}

	expires := m.now().Add(ttl)
	for _, key := range keys {
		m.locks[key] = entry{owner: owner, expires: expires}
	}

	return nil
}

func (m *Memory) Transfer(_ context.Context, keys []string, from string, to string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		if e, ok := m.held(key); !ok || e.owner != from {
			return errors.NewTransactionExpiredError("lock on %s is no longer held by %s", key, from)
		}
	}

	expires := m.now().Add(ttl)
	for _, key := range keys {
		m.locks[key] = entry{owner: to, expires: expires}
	}

	return nil
}

func (m *Memory) Free(_ context.Context, keys []string, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		if e, ok := m.held(key); ok && e.owner == owner {
			delete(m.locks, key)
		}
	}

	return nil
}

func (m *Memory) Exists(_ context.Context, keys []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exists := make(map[string]bool, len(keys))
	for _, key := range keys {
		_, exists[key] = m.held(key)
	}

	return exists, nil
}

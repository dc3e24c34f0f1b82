// Package store provides session and appointment persistence.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/clinicdesk-ai/booking-assistant/internal/model"
)

// Memory is an in-process session store with per-key locking. A turn's
// read-modify-write and the idle sweep contend on the same entry mutex, so
// the sweep can never reclaim a session mid-turn.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

type entry struct {
	mu      sync.Mutex
	session *model.Session
}

// NewMemory creates an empty in-memory session store.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{
		entries: make(map[string]*entry),
		now:     now,
	}
}

// Update runs fn with exclusive access to the session for key, creating the
// session if it does not exist. If fn returns remove=true the session is
// deleted before the lock is released. fn's error is returned unchanged and
// suppresses removal only if fn says so; the session itself keeps any
// mutations fn applied.
func (m *Memory) Update(ctx context.Context, key string, fn func(s *model.Session, created bool) (remove bool, err error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for {
		m.mu.Lock()
		e, ok := m.entries[key]
		created := false
		if !ok {
			e = &entry{session: model.NewSession(key, m.now())}
			m.entries[key] = e
			created = true
		}
		m.mu.Unlock()

		e.mu.Lock()

		// The entry may have been swept between the map and entry locks;
		// retry with a fresh lookup if so.
		m.mu.Lock()
		if m.entries[key] != e {
			m.mu.Unlock()
			e.mu.Unlock()
			continue
		}
		m.mu.Unlock()

		remove, err := fn(e.session, created)
		if remove {
			m.mu.Lock()
			delete(m.entries, key)
			m.mu.Unlock()
		}
		e.mu.Unlock()
		return err
	}
}

// Sweep removes sessions whose last activity is before cutoff and returns
// the number removed.
func (m *Memory) Sweep(cutoff time.Time) int {
	m.mu.Lock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	m.mu.Unlock()

	removed := 0
	for _, key := range keys {
		m.mu.Lock()
		e, ok := m.entries[key]
		m.mu.Unlock()
		if !ok {
			continue
		}

		e.mu.Lock()
		m.mu.Lock()
		if m.entries[key] == e && e.session.LastActive.Before(cutoff) {
			delete(m.entries, key)
			removed++
		}
		m.mu.Unlock()
		e.mu.Unlock()
	}
	return removed
}

// Count returns the number of live sessions.
func (m *Memory) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

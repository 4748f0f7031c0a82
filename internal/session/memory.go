package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryStore is the single-process fallback when no Redis is configured.
// Sessions are stored encoded so callers never share a Cart.
type MemoryStore struct {
	mu         sync.Mutex
	ttl        time.Duration
	now        func() time.Time
	entries    map[string]memEntry
	sweepEvery time.Duration
	lastSweep  time.Time
}

type memEntry struct {
	data    []byte
	expires time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, entries: map[string]memEntry{}, sweepEvery: time.Minute}
}

func (m *MemoryStore) Load(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	e, ok := m.entries[id]
	if ok && !m.now().Before(e.expires) {
		delete(m.entries, id)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	var sess Session
	if err := json.Unmarshal(e.data, &sess); err != nil {
		return nil, err
	}
	if sess.Cart == nil {
		sess.Cart = New().Cart
	}
	return &sess, nil
}

func (m *MemoryStore) Save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maybeSweep()
	m.entries[sess.ID] = memEntry{data: data, expires: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

// maybeSweep drops expired entries at most once per sweepEvery. Load already
// ignores expired entries, so the sweep only bounds memory. Caller holds mu.
func (m *MemoryStore) maybeSweep() {
	now := m.now()
	if now.Sub(m.lastSweep) < m.sweepEvery {
		return
	}
	m.lastSweep = now
	for id, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, id)
		}
	}
}

package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/example/freight-matching/internal/models"
)

// ErrMiss is returned for unknown or expired candidate ids.
var ErrMiss = errors.New("candidate not cached")

// Cache keeps the candidates of recent finder runs so they can be confirmed
// by id. Eviction drops every candidate of a route or load except keepID,
// the confirmed one, which stays resolvable until it expires so a repeated
// confirm is answered as stale rather than unknown.
type Cache interface {
	Put(ctx context.Context, cands []models.Candidate) error
	Get(ctx context.Context, id string) (models.Candidate, error)
	EvictRoute(ctx context.Context, routeID, keepID string) error
	EvictLoad(ctx context.Context, source models.LoadSource, loadID, keepID string) error
}

type entry struct {
	cand    models.Candidate
	expires time.Time
}

type Memory struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry
	now     func() time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, entries: make(map[string]entry), now: time.Now}
}

// Put stores cands and sweeps expired entries, so candidates that are never
// fetched do not pile up.
func (m *Memory) Put(ctx context.Context, cands []models.Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, e := range m.entries {
		if now.After(e.expires) {
			delete(m.entries, id)
		}
	}
	exp := now.Add(m.ttl)
	for _, c := range cands {
		m.entries[c.ID] = entry{cand: c, expires: exp}
	}
	return nil
}

func (m *Memory) Get(ctx context.Context, id string) (models.Candidate, error) {
	m.mu.RLock()
	e, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok {
		return models.Candidate{}, ErrMiss
	}
	if m.now().After(e.expires) {
		m.mu.Lock()
		delete(m.entries, id)
		m.mu.Unlock()
		return models.Candidate{}, ErrMiss
	}
	return e.cand, nil
}

// Len reports how many entries are held, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) EvictRoute(ctx context.Context, routeID, keepID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.entries {
		if id != keepID && e.cand.Route.ID == routeID {
			delete(m.entries, id)
		}
	}
	return nil
}

func (m *Memory) EvictLoad(ctx context.Context, source models.LoadSource, loadID, keepID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.entries {
		if id != keepID && e.cand.Load.Source == source && e.cand.Load.ID == loadID {
			delete(m.entries, id)
		}
	}
	return nil
}

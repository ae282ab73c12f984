package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/freight-matching/internal/models"
)

type loadKey struct {
	source models.LoadSource
	id     string
}

// MemoryStore keeps everything in process. Listing preserves insertion order.
type MemoryStore struct {
	mu         sync.RWMutex
	routes     map[string]*models.Route
	routeOrder []string
	loads      map[loadKey]*models.Load
	loadOrder  []loadKey
	matches    map[string]models.Match
	matchOrder []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		routes:  make(map[string]*models.Route),
		loads:   make(map[loadKey]*models.Load),
		matches: make(map[string]models.Match),
	}
}

// PutRoute inserts or replaces a route.
func (m *MemoryStore) PutRoute(r models.Route) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.routes[r.ID]; !ok {
		m.routeOrder = append(m.routeOrder, r.ID)
	}
	m.routes[r.ID] = &r
}

// PutLoad inserts or replaces a load under its source.
func (m *MemoryStore) PutLoad(l models.Load) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := loadKey{l.Source, l.ID}
	if _, ok := m.loads[k]; !ok {
		m.loadOrder = append(m.loadOrder, k)
	}
	m.loads[k] = &l
}

func (m *MemoryStore) Route(id string) (models.Route, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.routes[id]
	if !ok {
		return models.Route{}, false
	}
	return *r, true
}

func (m *MemoryStore) Load(source models.LoadSource, id string) (models.Load, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.loads[loadKey{source, id}]
	if !ok {
		return models.Load{}, false
	}
	return *l, true
}

// Matches returns all matches in insertion order.
func (m *MemoryStore) Matches() []models.Match {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Match, 0, len(m.matchOrder))
	for _, id := range m.matchOrder {
		out = append(out, m.matches[id])
	}
	return out
}

func (m *MemoryStore) ListRoutes(ctx context.Context, f RouteFilter) ([]models.Route, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Route, 0, len(m.routeOrder))
	for _, id := range m.routeOrder {
		r := m.routes[id]
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func (m *MemoryStore) ListLoads(ctx context.Context, f LoadFilter) ([]models.Load, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !f.Source.Valid() {
		return nil, fmt.Errorf("list loads: unknown source %q", f.Source)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Load, 0)
	for _, k := range m.loadOrder {
		l := m.loads[k]
		if l.Source != f.Source {
			continue
		}
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		out = append(out, *l)
	}
	return out, nil
}

func (m *MemoryStore) UpdateRouteStatus(ctx context.Context, id string, from, to models.RouteStatus) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.routes[id]
	if !ok {
		return ErrNotFound
	}
	if r.Status != from {
		return ErrStatusConflict
	}
	r.Status = to
	return nil
}

func (m *MemoryStore) UpdateLoadStatus(ctx context.Context, id string, source models.LoadSource, from, to models.LoadStatus) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.loads[loadKey{source, id}]
	if !ok {
		return ErrNotFound
	}
	if l.Status != from {
		return ErrStatusConflict
	}
	l.Status = to
	return nil
}

func (m *MemoryStore) InsertMatch(ctx context.Context, rec MatchRecord) (models.Match, error) {
	if err := ctx.Err(); err != nil {
		return models.Match{}, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.matches[rec.CandidateID]; ok {
		return models.Match{}, ErrDuplicateMatch
	}
	match := models.Match{
		ID:             uuid.NewString(),
		CandidateID:    rec.CandidateID,
		RouteID:        rec.RouteID,
		LoadID:         rec.LoadID,
		LoadSource:     rec.LoadSource,
		Status:         rec.Status,
		SuggestedPrice: rec.SuggestedPrice,
		CreatedAt:      time.Now(),
	}
	m.matches[rec.CandidateID] = match
	m.matchOrder = append(m.matchOrder, rec.CandidateID)
	return match, nil
}

func (m *MemoryStore) ListOrphans(ctx context.Context) ([]models.Orphan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	routeMatched := make(map[string]bool)
	loadMatched := make(map[string]bool)
	for _, mt := range m.matches {
		routeMatched[mt.RouteID] = true
		if mt.LoadID != nil {
			loadMatched[*mt.LoadID] = true
		}
	}
	var out []models.Orphan
	for _, id := range m.routeOrder {
		r := m.routes[id]
		if r.Status == models.RoutePartiallyFilled && !routeMatched[id] {
			out = append(out, models.Orphan{Kind: "route", ID: id, Status: string(r.Status)})
		}
	}
	for _, k := range m.loadOrder {
		l := m.loads[k]
		if l.Status != models.LoadMatched {
			continue
		}
		linked := false
		if k.source == models.SourceImmediate {
			linked = loadMatched[k.id]
		} else {
			for _, mt := range m.matches {
				if mt.CandidateID == models.CandidateID(mt.RouteID, k.id) {
					linked = true
					break
				}
			}
		}
		if !linked {
			out = append(out, models.Orphan{Kind: "load", ID: k.id, Source: string(k.source), Status: string(l.Status)})
		}
	}
	return out, nil
}

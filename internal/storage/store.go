package storage

import (
	"context"
	"errors"

	"github.com/example/freight-matching/internal/models"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrStatusConflict = errors.New("status changed since it was read")
	ErrDuplicateMatch = errors.New("match already recorded for candidate")
	// ErrTransient marks failures where the write was definitely not applied.
	ErrTransient = errors.New("transient store failure")
	// ErrAmbiguous marks failures where the write may or may not have been applied.
	ErrAmbiguous = errors.New("store outcome unknown")
)

type RouteFilter struct {
	Status models.RouteStatus
}

type LoadFilter struct {
	Status models.LoadStatus
	Source models.LoadSource
}

// MatchRecord is the insert payload for a new match. CandidateID is the
// idempotency key: a second insert with the same key never creates a row.
type MatchRecord struct {
	CandidateID    string
	RouteID        string
	LoadID         *string
	LoadSource     models.LoadSource
	Status         models.MatchStatus
	SuggestedPrice float64
}

// Store defines persistence operations for routes, loads and matches.
// Status updates are conditional on the expected prior status.
type Store interface {
	ListRoutes(ctx context.Context, f RouteFilter) ([]models.Route, error)
	ListLoads(ctx context.Context, f LoadFilter) ([]models.Load, error)
	UpdateRouteStatus(ctx context.Context, id string, from, to models.RouteStatus) error
	UpdateLoadStatus(ctx context.Context, id string, source models.LoadSource, from, to models.LoadStatus) error
	InsertMatch(ctx context.Context, rec MatchRecord) (models.Match, error)
	ListOrphans(ctx context.Context) ([]models.Orphan, error)
}

// Transactor is implemented by stores that can run several writes atomically.
type Transactor interface {
	InTx(ctx context.Context, fn func(Store) error) error
}

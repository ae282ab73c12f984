package matcher

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/example/freight-matching/internal/models"
	"github.com/example/freight-matching/internal/observability"
	"github.com/example/freight-matching/internal/storage"
)

// MinViableScore is the lowest score a pairing needs to be proposed.
const MinViableScore = 50

// FindMatches scores every route against every load and returns the pairs
// scoring at least minScore, best first. Equal scores keep enumeration order.
// minScore below MinViableScore is raised to it.
func FindMatches(routes []models.Route, loads []models.Load, minScore int) []models.Candidate {
	if minScore < MinViableScore {
		minScore = MinViableScore
	}
	out := make([]models.Candidate, 0)
	for _, r := range routes {
		for _, l := range loads {
			score, reasons := Score(r, l)
			if score < minScore {
				continue
			}
			out = append(out, models.Candidate{
				ID:      models.CandidateID(r.ID, l.ID),
				Route:   r,
				Load:    l,
				Score:   score,
				Reasons: reasons,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// CandidateSink receives every candidate a Finder produces so it can later
// be confirmed by id.
type CandidateSink interface {
	Put(ctx context.Context, cands []models.Candidate) error
}

// Result is one Finder run over a store snapshot.
type Result struct {
	RoutesAvailable int                `json:"routes_available"`
	LoadsSearching  int                `json:"loads_searching"`
	Candidates      []models.Candidate `json:"candidates"`
}

type Finder struct {
	Store    storage.Store
	Sink     CandidateSink // optional
	Timeout  time.Duration
	MinScore int
	Logger   *slog.Logger
}

// Find reads open routes and loads and ranks them. It never writes to the
// store; a read failure or timeout is returned wrapped in ErrRetrieval.
func (f *Finder) Find(ctx context.Context, minScore int) (Result, error) {
	start := time.Now()
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}
	if minScore < f.MinScore {
		minScore = f.MinScore
	}

	routes, loads, err := f.snapshot(ctx)
	if err != nil {
		observability.FinderFailures.Inc()
		return Result{}, err
	}
	cands := FindMatches(routes, loads, minScore)
	if err := ctx.Err(); err != nil {
		observability.FinderFailures.Inc()
		return Result{}, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}

	if f.Sink != nil && len(cands) > 0 {
		if err := f.Sink.Put(ctx, cands); err != nil {
			f.logger().Warn("candidate cache write failed", "error", err, "candidates", len(cands))
		}
	}

	observability.CandidatesFound.Set(float64(len(cands)))
	observability.FinderDuration.Observe(time.Since(start).Seconds())
	f.logger().Debug("finder run",
		"routes", len(routes),
		"loads", len(loads),
		"candidates", len(cands),
		"min_score", minScore,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return Result{RoutesAvailable: len(routes), LoadsSearching: len(loads), Candidates: cands}, nil
}

// snapshot lists available routes, then scheduled and immediate open loads.
func (f *Finder) snapshot(ctx context.Context) ([]models.Route, []models.Load, error) {
	routes, err := f.Store.ListRoutes(ctx, storage.RouteFilter{Status: models.RouteAvailable})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: routes: %w", ErrRetrieval, err)
	}
	var loads []models.Load
	for _, src := range []models.LoadSource{models.SourceScheduled, models.SourceImmediate} {
		ls, err := f.Store.ListLoads(ctx, storage.LoadFilter{Status: src.OpenStatus(), Source: src})
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s loads: %w", ErrRetrieval, src, err)
		}
		loads = append(loads, ls...)
	}
	return routes, loads, nil
}

func (f *Finder) logger() *slog.Logger {
	if f.Logger == nil {
		return slog.Default()
	}
	return f.Logger
}

package matcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/freight-matching/internal/models"
	"github.com/example/freight-matching/internal/storage"
)

func routeAt(id, origin, dest string) models.Route {
	return models.Route{ID: id, Origin: origin, Destination: dest, DepartureDate: "2025-03-10", AvailableCapacityTons: 20, Status: models.RouteAvailable}
}

func loadAt(id, origin, dest, date string) models.Load {
	return models.NewImmediateLoad(models.Load{ID: id, Origin: origin, Destination: dest, PickupDate: date, WeightTons: 5, Status: models.LoadPending})
}

func TestFindMatchesThreshold(t *testing.T) {
	routes := []models.Route{routeAt("r1", "A, X", "B, Y")}
	loads := []models.Load{
		loadAt("fifty", "A, X", "Z", "2025-04-10"),      // 40 + 0 + 10 + 0
		loadAt("fortyfive", "A", "B", "2025-03-13"),     // 20 + 20 + 0 + 5, overweight below
		loadAt("thirtyfive", "A", "Q", "2025-03-13"),    // 20 + 0 + 10 + 5
		loadAt("hundred", "A, X", "B, Y", "2025-03-10"), // 100
	}
	loads[1].WeightTons = 50

	cands := FindMatches(routes, loads, 0)
	ids := make([]string, 0, len(cands))
	for _, c := range cands {
		ids = append(ids, c.Load.ID)
	}
	assert.Equal(t, []string{"hundred", "fifty"}, ids)
	assert.Equal(t, "r1-hundred", cands[0].ID)
	assert.Equal(t, 50, cands[1].Score)
}

func TestFindMatchesRaisedMinScore(t *testing.T) {
	routes := []models.Route{routeAt("r1", "A", "B")}
	loads := []models.Load{
		loadAt("l50", "A", "Z", "2025-04-10"),
		loadAt("l100", "A", "B", "2025-03-10"),
	}
	cands := FindMatches(routes, loads, 60)
	require.Len(t, cands, 1)
	assert.Equal(t, "l100", cands[0].Load.ID)
}

func TestFindMatchesStableRanking(t *testing.T) {
	routes := []models.Route{routeAt("r1", "A", "B"), routeAt("r2", "A", "B")}
	loads := []models.Load{
		loadAt("l1", "A", "Z", "2025-04-10"), // 50
		loadAt("l2", "A", "B", "2025-03-10"), // 100
		loadAt("l3", "A", "Q", "2025-04-10"), // 50
	}
	cands := FindMatches(routes, loads, MinViableScore)
	ids := make([]string, 0, len(cands))
	for _, c := range cands {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"r1-l2", "r2-l2", "r1-l1", "r1-l3", "r2-l1", "r2-l3"}, ids)
}

type recordingSink struct{ got []models.Candidate }

func (s *recordingSink) Put(ctx context.Context, cands []models.Candidate) error {
	s.got = append(s.got, cands...)
	return nil
}

type failingStore struct {
	*storage.MemoryStore
	err   error
	delay time.Duration
}

func (f *failingStore) ListLoads(ctx context.Context, flt storage.LoadFilter) ([]models.Load, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.MemoryStore.ListLoads(ctx, flt)
}

func TestFinderFind(t *testing.T) {
	mem := storage.NewMemoryStore()
	mem.PutRoute(exampleRoute())
	full := exampleRoute()
	full.ID, full.Status = "r-full", models.RouteFull
	mem.PutRoute(full)
	mem.PutLoad(exampleLoad())
	sched := models.NewScheduledLoad(exampleLoad())
	sched.ID, sched.Status = "s1", models.LoadSearching
	mem.PutLoad(sched)
	matched := exampleLoad()
	matched.ID, matched.Status = "l-done", models.LoadMatched
	mem.PutLoad(matched)

	sink := &recordingSink{}
	f := &Finder{Store: mem, Sink: sink, MinScore: MinViableScore}
	res, err := f.Find(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.RoutesAvailable)
	assert.Equal(t, 2, res.LoadsSearching)
	require.Len(t, res.Candidates, 2)
	// scheduled loads are enumerated first
	assert.Equal(t, "r1-s1", res.Candidates[0].ID)
	assert.Equal(t, "r1-l1", res.Candidates[1].ID)
	assert.Len(t, sink.got, 2)
}

func TestFinderRetrievalFailure(t *testing.T) {
	mem := storage.NewMemoryStore()
	mem.PutRoute(exampleRoute())

	t.Run("store error", func(t *testing.T) {
		f := &Finder{Store: &failingStore{MemoryStore: mem, err: errors.New("connection refused")}}
		_, err := f.Find(context.Background(), MinViableScore)
		assert.ErrorIs(t, err, ErrRetrieval)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("timeout", func(t *testing.T) {
		f := &Finder{Store: &failingStore{MemoryStore: mem, delay: time.Second}, Timeout: 10 * time.Millisecond}
		_, err := f.Find(context.Background(), MinViableScore)
		assert.ErrorIs(t, err, ErrRetrieval)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

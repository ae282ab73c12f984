package matcher

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/freight-matching/internal/models"
	"github.com/example/freight-matching/internal/storage"
)

const contenders = 50

// commitAll commits every candidate at once and tallies the outcomes.
func commitAll(t *testing.T, c *Committer, cands []models.Candidate) (ok, stale int) {
	t.Helper()
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	start := make(chan struct{})
	for _, cand := range cands {
		wg.Add(1)
		go func(cand models.Candidate) {
			defer wg.Done()
			<-start
			_, err := c.Commit(context.Background(), cand)
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}(cand)
	}
	close(start)
	wg.Wait()

	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, ErrStaleCandidate):
			stale++
		}
	}
	return ok, stale
}

func TestConcurrentCommitsSameCandidate(t *testing.T) {
	r, l := exampleRoute(), exampleLoad()
	mem := storage.NewMemoryStore()
	mem.PutRoute(r)
	mem.PutLoad(l)

	cands := make([]models.Candidate, contenders)
	for i := range cands {
		cands[i] = candidateFor(r, l)
	}
	ok, stale := commitAll(t, &Committer{Store: mem}, cands)

	assert.Equal(t, 1, ok)
	assert.Equal(t, contenders-1, stale)
	assert.Len(t, mem.Matches(), 1)
}

func TestConcurrentCommitsShareRoute(t *testing.T) {
	r := exampleRoute()
	mem := storage.NewMemoryStore()
	mem.PutRoute(r)

	cands := make([]models.Candidate, contenders)
	for i := range cands {
		l := exampleLoad()
		l.ID = fmt.Sprintf("l%d", i)
		mem.PutLoad(l)
		cands[i] = candidateFor(r, l)
	}
	ok, stale := commitAll(t, &Committer{Store: mem}, cands)

	assert.Equal(t, 1, ok)
	assert.Equal(t, contenders-1, stale)
	require.Len(t, mem.Matches(), 1)

	// Only the winning load left its open status.
	matched := 0
	for i := range cands {
		got, _ := mem.Load(models.SourceImmediate, fmt.Sprintf("l%d", i))
		if got.Status == models.LoadMatched {
			matched++
		}
	}
	assert.Equal(t, 1, matched)
}

func TestConcurrentCommitsShareLoad(t *testing.T) {
	l := models.NewScheduledLoad(exampleLoad())
	l.Status = models.LoadSearching
	mem := storage.NewMemoryStore()
	mem.PutLoad(l)

	cands := make([]models.Candidate, contenders)
	for i := range cands {
		r := exampleRoute()
		r.ID = fmt.Sprintf("r%d", i)
		mem.PutRoute(r)
		cands[i] = candidateFor(r, l)
	}
	ok, stale := commitAll(t, &Committer{Store: mem}, cands)

	assert.Equal(t, 1, ok)
	assert.Equal(t, contenders-1, stale)
	ms := mem.Matches()
	require.Len(t, ms, 1)

	// Losing route claims were released again.
	for i := range cands {
		id := fmt.Sprintf("r%d", i)
		got, _ := mem.Route(id)
		if id == ms[0].RouteID {
			assert.Equal(t, models.RoutePartiallyFilled, got.Status)
			continue
		}
		assert.Equal(t, models.RouteAvailable, got.Status, id)
	}
	orphans, err := mem.ListOrphans(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/freight-matching/internal/models"
)

func cand(routeID, loadID string, src models.LoadSource) models.Candidate {
	return models.Candidate{
		ID:    models.CandidateID(routeID, loadID),
		Route: models.Route{ID: routeID},
		Load:  models.Load{ID: loadID, Source: src},
		Score: 90,
	}
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	m := NewMemory(time.Minute)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Put(ctx, []models.Candidate{
		cand("r1", "l1", models.SourceImmediate),
		cand("r1", "l2", models.SourceScheduled),
		cand("r2", "l2", models.SourceScheduled),
	}))

	got, err := m.Get(ctx, "r1-l1")
	require.NoError(t, err)
	assert.Equal(t, 90, got.Score)

	t.Run("evict route keeps confirmed candidate", func(t *testing.T) {
		require.NoError(t, m.EvictRoute(ctx, "r1", "r1-l1"))
		_, err := m.Get(ctx, "r1-l1")
		assert.NoError(t, err)
		_, err = m.Get(ctx, "r1-l2")
		assert.ErrorIs(t, err, ErrMiss)
		_, err = m.Get(ctx, "r2-l2")
		assert.NoError(t, err)

		require.NoError(t, m.EvictRoute(ctx, "r1", ""))
		_, err = m.Get(ctx, "r1-l1")
		assert.ErrorIs(t, err, ErrMiss)
	})

	t.Run("evict load by source", func(t *testing.T) {
		require.NoError(t, m.EvictLoad(ctx, models.SourceImmediate, "l2", ""))
		_, err := m.Get(ctx, "r2-l2")
		assert.NoError(t, err)
		require.NoError(t, m.EvictLoad(ctx, models.SourceScheduled, "l2", ""))
		_, err = m.Get(ctx, "r2-l2")
		assert.ErrorIs(t, err, ErrMiss)
	})

	t.Run("expiry", func(t *testing.T) {
		require.NoError(t, m.Put(ctx, []models.Candidate{cand("r3", "l3", models.SourceImmediate)}))
		now = now.Add(2 * time.Minute)
		_, err := m.Get(ctx, "r3-l3")
		assert.ErrorIs(t, err, ErrMiss)
	})
}

func TestMemoryPutSweepsExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	m := NewMemory(time.Minute)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Put(ctx, []models.Candidate{
		cand("r1", "l1", models.SourceImmediate),
		cand("r2", "l2", models.SourceImmediate),
	}))
	assert.Equal(t, 2, m.Len())

	now = now.Add(2 * time.Minute)
	require.NoError(t, m.Put(ctx, []models.Candidate{cand("r3", "l3", models.SourceImmediate)}))
	assert.Equal(t, 1, m.Len())
	_, err := m.Get(ctx, "r3-l3")
	assert.NoError(t, err)
}

func TestRedisKeys(t *testing.T) {
	assert.Equal(t, "candidate:r1-l1", candidateKey("r1-l1"))
	assert.Equal(t, "candidate:route:r1", routeIndexKey("r1"))
	assert.Equal(t, "candidate:load:scheduled:l1", loadIndexKey(models.SourceScheduled, "l1"))
}

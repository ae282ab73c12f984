package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/freight-matching/internal/events"
	"github.com/example/freight-matching/internal/models"
)

// fakeEvicter implements Evicter for tests
type fakeEvicter struct {
	failRoute  int // number of times to fail EvictRoute before succeeding
	routeCalls int
	loadCalls  int
	lastSource models.LoadSource
	kept       string
}

func (f *fakeEvicter) EvictRoute(ctx context.Context, routeID, keepID string) error {
	f.routeCalls++
	f.kept = keepID
	if f.routeCalls <= f.failRoute {
		return errors.New("redis fail")
	}
	return nil
}

func (f *fakeEvicter) EvictLoad(ctx context.Context, source models.LoadSource, loadID, keepID string) error {
	f.loadCalls++
	f.lastSource = source
	return nil
}

type fakeForwarder struct {
	posted []any
	err    error
}

func (f *fakeForwarder) Post(ctx context.Context, payload any) error {
	f.posted = append(f.posted, payload)
	return f.err
}

func confirmedEvent() events.MatchEvent {
	return events.MatchEvent{
		Type:        events.TypeMatchConfirmed,
		CandidateID: "r1-s1",
		RouteID:     "r1",
		LoadID:      "s1",
		LoadSource:  string(models.SourceScheduled),
	}
}

func TestEvictWithRetry_SucceedsAfterRetries(t *testing.T) {
	f := &fakeEvicter{failRoute: 1}
	start := time.Now()
	require.NoError(t, evictWithRetry(context.Background(), f, confirmedEvent(), 3, 10*time.Millisecond))
	assert.Equal(t, 2, f.routeCalls)
	assert.Equal(t, models.SourceScheduled, f.lastSource)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestEvictWithRetry_FailsWhenExhausted(t *testing.T) {
	f := &fakeEvicter{failRoute: 5}
	require.Error(t, evictWithRetry(context.Background(), f, confirmedEvent(), 3, time.Millisecond))
	assert.Equal(t, 3, f.routeCalls)
}

func newTestHandler(e Evicter, fwd Forwarder) *handler {
	h := &handler{cache: e, logger: slog.New(slog.NewTextHandler(io.Discard, nil)), attempts: 2, delay: time.Millisecond}
	if fwd != nil {
		h.forward = fwd
	}
	return h
}

func TestHandleConfirmedEvictsAndForwards(t *testing.T) {
	e := &fakeEvicter{}
	fwd := &fakeForwarder{}
	raw, err := json.Marshal(confirmedEvent())
	require.NoError(t, err)

	newTestHandler(e, fwd).handle(context.Background(), raw)

	assert.Equal(t, 1, e.routeCalls)
	assert.Equal(t, 1, e.loadCalls)
	assert.Equal(t, "r1-s1", e.kept)
	require.Len(t, fwd.posted, 1)
	assert.Equal(t, "r1-s1", fwd.posted[0].(events.MatchEvent).CandidateID)
}

func TestHandlePartialForwardsWithoutEviction(t *testing.T) {
	e := &fakeEvicter{}
	fwd := &fakeForwarder{err: errors.New("502")}
	ev := confirmedEvent()
	ev.Type = events.TypeMatchPartial
	ev.Step = "claim_load"
	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	newTestHandler(e, fwd).handle(context.Background(), raw)

	assert.Zero(t, e.routeCalls)
	assert.Len(t, fwd.posted, 1)
}

func TestHandleIgnoresInvalidMessages(t *testing.T) {
	e := &fakeEvicter{}
	fwd := &fakeForwarder{}
	h := newTestHandler(e, fwd)

	h.handle(context.Background(), []byte("not json"))
	h.handle(context.Background(), []byte(`{"type":"match.unknown","route_id":"r1"}`))

	assert.Zero(t, e.routeCalls)
	assert.Empty(t, fwd.posted)
}

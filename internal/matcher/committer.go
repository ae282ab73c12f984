package matcher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/example/freight-matching/internal/models"
	"github.com/example/freight-matching/internal/observability"
	"github.com/example/freight-matching/internal/storage"
)

// Publisher announces commit outcomes to other services.
type Publisher interface {
	MatchConfirmed(ctx context.Context, m models.Match, c models.Candidate) error
	PartialCommit(ctx context.Context, e *CommitError) error
}

// Notifier pushes a notice to one marketplace party.
type Notifier interface {
	Notify(partyID string, n models.MatchNotice) error
}

type Committer struct {
	Store      storage.Store
	Events     Publisher // optional
	Notify     Notifier  // optional
	RetryDelay time.Duration
	Logger     *slog.Logger
}

// SuggestedPrice is the shipper's own price when one was given, otherwise
// the route's unit price times the load weight (0 without a unit price).
func SuggestedPrice(r models.Route, l models.Load) float64 {
	if p, ok := l.PriceHint(); ok {
		return p
	}
	if r.PricePerTon == nil {
		return 0
	}
	return *r.PricePerTon * l.WeightTons
}

// Commit claims the candidate's route and load and records a confirmed
// match. On stores implementing storage.Transactor all writes share one
// transaction; otherwise they run in order with the route claim released
// again if the load claim definitely fails.
func (c *Committer) Commit(ctx context.Context, cand models.Candidate) (models.Match, error) {
	if err := Validate(cand); err != nil {
		return c.fail(ctx, newCommitError(cand, StepValidate, ErrInvalidCandidate, err))
	}

	var (
		m   models.Match
		err error
	)
	if tx, ok := c.Store.(storage.Transactor); ok {
		m, err = c.commitTx(ctx, tx, cand)
	} else {
		m, err = c.apply(ctx, c.Store, cand, false)
	}
	if err != nil {
		var ce *CommitError
		if !errors.As(err, &ce) {
			ce = newCommitError(cand, StepCommitTx, ErrCommitFailed, err)
		}
		return c.fail(ctx, ce)
	}

	observability.CommitsTotal.WithLabelValues("confirmed").Inc()
	c.logger().Info("match confirmed",
		"match_id", m.ID,
		"candidate_id", cand.ID,
		"route_id", cand.Route.ID,
		"load_id", cand.Load.ID,
		"load_source", cand.Load.Source,
		"suggested_price", m.SuggestedPrice,
	)
	if c.Events != nil {
		if err := c.Events.MatchConfirmed(context.WithoutCancel(ctx), m, cand); err != nil {
			c.logger().Warn("publish match confirmed failed", "match_id", m.ID, "error", err)
		}
	}
	c.notifyParties(m, cand)
	return m, nil
}

// commitTx runs the steps inside one transaction. A transient failure rolls
// the whole transaction back, so it is retried once as a unit.
func (c *Committer) commitTx(ctx context.Context, tx storage.Transactor, cand models.Candidate) (models.Match, error) {
	var m models.Match
	run := func() error {
		return tx.InTx(ctx, func(s storage.Store) error {
			var err error
			m, err = c.apply(ctx, s, cand, true)
			return err
		})
	}
	err := run()
	if err != nil && errors.Is(err, storage.ErrTransient) {
		if serr := sleepCtx(ctx, c.RetryDelay); serr == nil {
			err = run()
		}
	}
	if err == nil {
		return m, nil
	}
	var ce *CommitError
	if errors.As(err, &ce) {
		return models.Match{}, ce
	}
	if errors.Is(err, storage.ErrAmbiguous) {
		return models.Match{}, newCommitError(cand, StepCommitTx, ErrPartialCommit, err)
	}
	return models.Match{}, newCommitError(cand, StepCommitTx, ErrCommitFailed, err)
}

// apply performs claim route, claim load, price and insert in that order.
// inTx means a failure is rolled back by the caller, so nothing is partial
// and no step is retried on its own.
func (c *Committer) apply(ctx context.Context, s storage.Store, cand models.Candidate, inTx bool) (models.Match, error) {
	route, load := cand.Route, cand.Load

	err := c.retryOnce(ctx, !inTx, func() error {
		return s.UpdateRouteStatus(ctx, route.ID, models.RouteAvailable, models.RoutePartiallyFilled)
	})
	if err != nil {
		switch {
		case isStale(err):
			return models.Match{}, newCommitError(cand, StepClaimRoute, ErrStaleCandidate, err)
		case errors.Is(err, storage.ErrAmbiguous) && !inTx:
			return models.Match{}, newCommitError(cand, StepClaimRoute, ErrPartialCommit, err)
		}
		return models.Match{}, newCommitError(cand, StepClaimRoute, ErrCommitFailed, err)
	}

	err = c.retryOnce(ctx, !inTx, func() error {
		return s.UpdateLoadStatus(ctx, load.ID, load.Source, load.Source.OpenStatus(), models.LoadMatched)
	})
	if err != nil {
		kind := ErrCommitFailed
		if isStale(err) {
			kind = ErrStaleCandidate
		}
		if inTx {
			return models.Match{}, newCommitError(cand, StepClaimLoad, kind, err)
		}
		if errors.Is(err, storage.ErrAmbiguous) {
			return models.Match{}, newCommitError(cand, StepClaimLoad, ErrPartialCommit, err)
		}
		if rerr := c.releaseRoute(ctx, s, route.ID); rerr != nil {
			return models.Match{}, newCommitError(cand, StepReleaseRoute, ErrPartialCommit, errors.Join(err, rerr))
		}
		return models.Match{}, newCommitError(cand, StepClaimLoad, kind, err)
	}

	rec := storage.MatchRecord{
		CandidateID:    cand.ID,
		RouteID:        route.ID,
		LoadSource:     load.Source,
		Status:         models.MatchConfirmed,
		SuggestedPrice: SuggestedPrice(route, load),
	}
	if load.Source == models.SourceImmediate {
		id := load.ID
		rec.LoadID = &id
	}
	// Never retried: an ambiguous failure could already have inserted the row.
	m, err := s.InsertMatch(ctx, rec)
	if err != nil {
		if inTx {
			kind := ErrCommitFailed
			if errors.Is(err, storage.ErrDuplicateMatch) {
				kind = ErrStaleCandidate
			}
			return models.Match{}, newCommitError(cand, StepInsertMatch, kind, err)
		}
		return models.Match{}, newCommitError(cand, StepInsertMatch, ErrPartialCommit, err)
	}
	return m, nil
}

func (c *Committer) releaseRoute(ctx context.Context, s storage.Store, routeID string) error {
	return c.retryOnce(ctx, true, func() error {
		return s.UpdateRouteStatus(ctx, routeID, models.RoutePartiallyFilled, models.RouteAvailable)
	})
}

// retryOnce runs fn and, when allowed, repeats it a single time after a
// transient failure. Transient failures are guaranteed not to have applied.
func (c *Committer) retryOnce(ctx context.Context, allowed bool, fn func() error) error {
	err := fn()
	if err == nil || !allowed || !errors.Is(err, storage.ErrTransient) {
		return err
	}
	c.logger().Warn("transient store failure, retrying", "error", err)
	if serr := sleepCtx(ctx, c.RetryDelay); serr != nil {
		return err
	}
	return fn()
}

func (c *Committer) fail(ctx context.Context, ce *CommitError) (models.Match, error) {
	switch {
	case errors.Is(ce.Kind, ErrPartialCommit):
		observability.CommitsTotal.WithLabelValues("partial").Inc()
		c.logger().Error("partial commit needs reconciliation",
			"candidate_id", ce.CandidateID,
			"step", ce.Step,
			"route_id", ce.RouteID,
			"load_id", ce.LoadID,
			"load_source", ce.LoadSource,
			"error", ce.Err,
		)
		if c.Events != nil {
			if err := c.Events.PartialCommit(context.WithoutCancel(ctx), ce); err != nil {
				c.logger().Warn("publish partial commit failed", "candidate_id", ce.CandidateID, "error", err)
			}
		}
	case errors.Is(ce.Kind, ErrStaleCandidate):
		observability.CommitsTotal.WithLabelValues("stale").Inc()
		c.logger().Info("stale candidate", "candidate_id", ce.CandidateID, "step", ce.Step)
	case errors.Is(ce.Kind, ErrInvalidCandidate):
		observability.CommitsTotal.WithLabelValues("invalid").Inc()
		c.logger().Info("invalid candidate", "candidate_id", ce.CandidateID, "error", ce.Err)
	default:
		observability.CommitsTotal.WithLabelValues("failed").Inc()
		c.logger().Warn("commit failed", "candidate_id", ce.CandidateID, "step", ce.Step, "error", ce.Err)
	}
	return models.Match{}, ce
}

func (c *Committer) notifyParties(m models.Match, cand models.Candidate) {
	if c.Notify == nil {
		return
	}
	notice := models.MatchNotice{
		MatchID:        m.ID,
		CandidateID:    cand.ID,
		Origin:         cand.Route.Origin,
		Destination:    cand.Route.Destination,
		Date:           cand.Route.DepartureDate,
		SuggestedPrice: m.SuggestedPrice,
	}
	parties := []struct{ id, role string }{
		{cand.Route.DriverID, "driver"},
		{cand.Load.ShipperID, "shipper"},
	}
	for _, p := range parties {
		if p.id == "" {
			continue
		}
		n := notice
		n.Role = p.role
		if err := c.Notify.Notify(p.id, n); err != nil {
			c.logger().Debug("party notice not delivered", "party_id", p.id, "role", p.role, "error", err)
		}
	}
}

func (c *Committer) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func isStale(err error) bool {
	return errors.Is(err, storage.ErrStatusConflict) || errors.Is(err, storage.ErrNotFound)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

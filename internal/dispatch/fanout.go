package dispatch

import (
	"errors"

	"github.com/example/freight-matching/internal/models"
	"github.com/example/freight-matching/internal/observability"
)

type Notifier interface {
	Notify(partyID string, n models.MatchNotice) error
}

type namedNotifier struct {
	name string
	n    Notifier
}

// Fanout delivers a notice through every channel and reports all failures.
type Fanout struct {
	channels []namedNotifier
}

func NewFanout() *Fanout { return &Fanout{} }

func (f *Fanout) With(name string, n Notifier) *Fanout {
	f.channels = append(f.channels, namedNotifier{name, n})
	return f
}

func (f *Fanout) Notify(partyID string, n models.MatchNotice) error {
	var errs []error
	for _, ch := range f.channels {
		if err := ch.n.Notify(partyID, n); err != nil {
			observability.PartyNotices.WithLabelValues(ch.name, "error").Inc()
			errs = append(errs, err)
			continue
		}
		observability.PartyNotices.WithLabelValues(ch.name, "ok").Inc()
	}
	return errors.Join(errs...)
}

package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/freight-matching/internal/matcher"
	"github.com/example/freight-matching/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes match events keyed by route id, so every event of
// one route lands on the same partition.
type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.Hash{}})
	return &KafkaPublisher{writer: w, timeout: 2 * time.Second}
}

func (k *KafkaPublisher) MatchConfirmed(ctx context.Context, m models.Match, c models.Candidate) error {
	return k.publish(ctx, MatchEvent{
		Type:           TypeMatchConfirmed,
		MatchID:        m.ID,
		CandidateID:    c.ID,
		RouteID:        c.Route.ID,
		LoadID:         c.Load.ID,
		LoadSource:     string(c.Load.Source),
		DriverID:       c.Route.DriverID,
		ShipperID:      c.Load.ShipperID,
		SuggestedPrice: m.SuggestedPrice,
		At:             m.CreatedAt,
	})
}

func (k *KafkaPublisher) PartialCommit(ctx context.Context, e *matcher.CommitError) error {
	ev := MatchEvent{
		Type:        TypeMatchPartial,
		CandidateID: e.CandidateID,
		RouteID:     e.RouteID,
		LoadID:      e.LoadID,
		LoadSource:  string(e.LoadSource),
		Step:        string(e.Step),
		At:          time.Now(),
	}
	if e.Err != nil {
		ev.Error = e.Err.Error()
	}
	return k.publish(ctx, ev)
}

func (k *KafkaPublisher) publish(ctx context.Context, ev MatchEvent) error {
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(ev.RouteID), Value: b})
}

func (k *KafkaPublisher) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}

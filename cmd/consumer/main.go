package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"github.com/example/freight-matching/internal/cache"
	"github.com/example/freight-matching/internal/config"
	"github.com/example/freight-matching/internal/dispatch"
	"github.com/example/freight-matching/internal/events"
	"github.com/example/freight-matching/internal/logging"
	"github.com/example/freight-matching/internal/models"
)

var (
	msgsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_consumed_total",
		Help: "Total match events consumed",
	})
	msgsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_invalid_total",
		Help: "Total invalid messages received",
	})
	evictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_cache_evictions_total",
		Help: "Total successful candidate cache evictions",
	})
	evictErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_cache_errors_total",
		Help: "Total candidate cache eviction failures",
	})
	forwardErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_webhook_errors_total",
		Help: "Total events the webhook did not accept",
	})
)

func init() {
	prometheus.MustRegister(msgsConsumed, msgsInvalid, evictions, evictErrors, forwardErrors)
}

func main() {
	cfg, err := config.LoadServerConfig()
	logger := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// allow overriding the metrics address for local runs
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "address to serve prometheus metrics on")
	flag.Parse()

	brokers := cfg.KafkaBrokers
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}
	redisAddr := cfg.RedisAddr
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	rc := cache.NewRedisFromAddr(redisAddr, cfg.RedisPassword, cfg.CandidateTTL)

	// Party notices already go out from the server over NOTIFY_WEBHOOK_URL;
	// the consumer relays whole events to a separate endpoint.
	var fwd Forwarder
	if cfg.EventWebhookURL != "" {
		fwd = dispatch.NewWebhookNotifier(cfg.EventWebhookURL)
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := rc.Ping(r.Context()); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
		})
		logger.Info("metrics/health listening", "addr", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: cfg.KafkaMatchTopic, GroupID: cfg.KafkaGroup, MinBytes: 1, MaxBytes: 10e6})
	defer func() {
		_ = r.Close()
	}()

	logger.Info("consumer listening", "topic", cfg.KafkaMatchTopic, "brokers", brokers, "group", cfg.KafkaGroup)
	h := &handler{cache: rc, forward: fwd, logger: logger, attempts: 3, delay: 200 * time.Millisecond}

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down consumer")
				return
			}
			logger.Warn("kafka read error", "error", err, "backoff", backoff.String())
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second
		h.handle(ctx, m.Value)
	}
}

// Evicter drops cached candidates that reference a claimed route or load.
type Evicter interface {
	EvictRoute(ctx context.Context, routeID, keepID string) error
	EvictLoad(ctx context.Context, source models.LoadSource, loadID, keepID string) error
}

// Forwarder relays an event to an external endpoint.
type Forwarder interface {
	Post(ctx context.Context, payload any) error
}

type handler struct {
	cache    Evicter
	forward  Forwarder // optional
	logger   *slog.Logger
	attempts int
	delay    time.Duration
}

func (h *handler) handle(ctx context.Context, raw []byte) {
	msgsConsumed.Inc()

	var ev events.MatchEvent
	if err := json.Unmarshal(raw, &ev); err != nil || ev.RouteID == "" {
		msgsInvalid.Inc()
		h.logger.Warn("invalid message", "error", err)
		return
	}

	switch ev.Type {
	case events.TypeMatchConfirmed:
		if err := evictWithRetry(ctx, h.cache, ev, h.attempts, h.delay); err != nil {
			evictErrors.Inc()
			h.logger.Error("candidate eviction failed", "candidate_id", ev.CandidateID, "error", err)
		} else {
			evictions.Inc()
		}
	case events.TypeMatchPartial:
		h.logger.Error("partial commit needs reconciliation",
			"candidate_id", ev.CandidateID,
			"route_id", ev.RouteID,
			"load_id", ev.LoadID,
			"load_source", ev.LoadSource,
			"step", ev.Step,
			"error", ev.Error,
		)
	default:
		msgsInvalid.Inc()
		h.logger.Warn("unknown event type", "type", ev.Type)
		return
	}

	if h.forward != nil {
		if err := h.forward.Post(ctx, ev); err != nil {
			forwardErrors.Inc()
			h.logger.Warn("webhook forward failed", "type", ev.Type, "candidate_id", ev.CandidateID, "error", err)
		}
	}
}

// evictWithRetry drops the cached candidates of the event's route and load,
// except the confirmed one, retrying with doubling delay.
func evictWithRetry(ctx context.Context, c Evicter, ev events.MatchEvent, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		err = errors.Join(
			c.EvictRoute(ctx, ev.RouteID, ev.CandidateID),
			c.EvictLoad(ctx, models.LoadSource(ev.LoadSource), ev.LoadID, ev.CandidateID),
		)
		if err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// minViableScore mirrors matcher.MinViableScore; a lower floor is rejected.
const minViableScore = 50

// ServerConfig captures all tunable parameters of the matching processes.
// Values come from the environment, optionally seeded from a .env file,
// with defaults good enough to run locally on in-memory backends.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	CandidateTTL  time.Duration

	KafkaBrokers    []string
	KafkaMatchTopic string
	KafkaGroup      string

	PGDSN string

	MinScore         int
	FinderTimeout    time.Duration
	CommitRetryDelay time.Duration

	// NotifyWebhookURL receives per-party match notices from the server.
	NotifyWebhookURL string
	// EventWebhookURL receives match events relayed by the consumer.
	EventWebhookURL string
	MetricsAddr     string

	LogLevel      string
	RunMigrations bool
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:         ":8080",
		ReadTimeout:      5 * time.Second,
		WriteTimeout:     10 * time.Second,
		IdleTimeout:      120 * time.Second,
		ShutdownTimeout:  15 * time.Second,
		CandidateTTL:     10 * time.Minute,
		KafkaMatchTopic:  "match-events",
		KafkaGroup:       "freight-matching-consumer",
		MinScore:         minViableScore,
		FinderTimeout:    5 * time.Second,
		CommitRetryDelay: 200 * time.Millisecond,
		MetricsAddr:      ":2112",
		LogLevel:         "info",
	}
}

// LoadServerConfig reads .env when present, then the process environment.
// Every invalid value is reported, not just the first.
func LoadServerConfig() (ServerConfig, error) {
	var errs []error
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		errs = append(errs, fmt.Errorf("load .env: %w", err))
	}

	cfg := defaultServerConfig()

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setDurationFromEnv(&cfg.CandidateTTL, "CANDIDATE_TTL", &errs)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaMatchTopic, "KAFKA_MATCH_TOPIC")
	setStringFromEnv(&cfg.KafkaGroup, "KAFKA_GROUP")

	cfg.PGDSN = os.Getenv("PG_DSN")

	setIntFromEnv(&cfg.MinScore, "MATCH_MIN_SCORE", &errs)
	setDurationFromEnv(&cfg.FinderTimeout, "FINDER_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.CommitRetryDelay, "COMMIT_RETRY_DELAY", &errs)

	cfg.NotifyWebhookURL = strings.TrimSpace(os.Getenv("NOTIFY_WEBHOOK_URL"))
	cfg.EventWebhookURL = strings.TrimSpace(os.Getenv("EVENT_WEBHOOK_URL"))
	setStringFromEnv(&cfg.MetricsAddr, "METRICS_ADDR")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if cfg.MinScore < minViableScore || cfg.MinScore > 100 {
		errs = append(errs, fmt.Errorf("MATCH_MIN_SCORE must be within [%d,100]", minViableScore))
	}
	if cfg.CandidateTTL <= 0 {
		errs = append(errs, fmt.Errorf("CANDIDATE_TTL must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/freight-matching/internal/cache"
	"github.com/example/freight-matching/internal/config"
	"github.com/example/freight-matching/internal/dispatch"
	"github.com/example/freight-matching/internal/events"
	httpapi "github.com/example/freight-matching/internal/http"
	"github.com/example/freight-matching/internal/logging"
	"github.com/example/freight-matching/internal/matcher"
	"github.com/example/freight-matching/internal/storage"
)

func main() {
	cfg, err := config.LoadServerConfig()
	logger := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.ServerConfig, logger *slog.Logger) error {
	var ready []httpapi.Pinger

	// env-driven wiring with in-memory fallbacks
	var store storage.Store
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			return err
		}
		defer ps.Close()
		if cfg.RunMigrations {
			if err := ps.Migrate(ctx); err != nil {
				return err
			}
			logger.Info("migration applied")
		}
		store = ps
		ready = append(ready, ps)
	} else {
		logger.Warn("PG_DSN not set; using in-memory store")
		store = storage.NewMemoryStore()
	}

	var cands cache.Cache
	if cfg.RedisAddr != "" {
		rc := cache.NewRedisFromAddr(cfg.RedisAddr, cfg.RedisPassword, cfg.CandidateTTL)
		cands = rc
		ready = append(ready, rc)
	} else {
		cands = cache.NewMemory(cfg.CandidateTTL)
	}

	wsreg := dispatch.NewWSRegistry()
	fanout := dispatch.NewFanout().With("ws", wsreg)
	if cfg.NotifyWebhookURL != "" {
		fanout = fanout.With("webhook", dispatch.NewWebhookNotifier(cfg.NotifyWebhookURL))
	}

	committer := &matcher.Committer{
		Store:      store,
		Notify:     fanout,
		RetryDelay: cfg.CommitRetryDelay,
		Logger:     logger,
	}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaMatchTopic)
		defer kp.Close()
		committer.Events = kp
	}

	srv := httpapi.NewServer(httpapi.Deps{
		Finder: &matcher.Finder{
			Store:    store,
			Sink:     cands,
			Timeout:  cfg.FinderTimeout,
			MinScore: cfg.MinScore,
			Logger:   logger,
		},
		Committer: committer,
		Cache:     cands,
		WSReg:     wsreg,
		Ready:     ready,
	}, logger)

	hs := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("freight-matching listening", "addr", cfg.HTTPAddr)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return hs.Shutdown(shutdownCtx)
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/freight-matching/internal/config"
	"github.com/example/freight-matching/internal/logging"
	"github.com/example/freight-matching/internal/storage"
)

// storeOpener connects to the marketplace store named by cfg.
type storeOpener func(ctx context.Context, cfg config.ServerConfig) (storage.Store, io.Closer, error)

// cli carries what every subcommand shares.
type cli struct {
	open   storeOpener
	cfg    config.ServerConfig
	logger *slog.Logger
	store  storage.Store
	closer io.Closer
}

func newRootCmd(open storeOpener) *cobra.Command {
	c := &cli{open: open}
	root := &cobra.Command{
		Use:           "matchctl",
		Short:         "Operate the freight matching engine against the marketplace store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.closer != nil {
				return c.closer.Close()
			}
			return nil
		},
	}
	root.AddCommand(newFindCmd(c), newConfirmCmd(c), newReconcileCmd(c))
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadServerConfig()
	c.logger = logging.NewLoggerTo(cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg
	c.store, c.closer, err = c.open(cmd.Context(), cfg)
	if err != nil {
		c.logger.Error("open store", "error", err)
		return err
	}
	return nil
}

func openPostgres(ctx context.Context, cfg config.ServerConfig) (storage.Store, io.Closer, error) {
	if cfg.PGDSN == "" {
		return nil, nil, errors.New("PG_DSN is required")
	}
	ps, err := storage.NewPostgresStore(cfg.PGDSN)
	if err != nil {
		return nil, nil, err
	}
	if cfg.RunMigrations {
		if err := ps.Migrate(ctx); err != nil {
			_ = ps.Close()
			return nil, nil, err
		}
	}
	return ps, ps, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

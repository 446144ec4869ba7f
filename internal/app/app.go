package app

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/smirc/smircd/internal/config"
	"github.com/smirc/smircd/internal/core"
	"github.com/smirc/smircd/internal/relay"
	"github.com/smirc/smircd/internal/store"
	"github.com/smirc/smircd/internal/store/sqlite"
	"github.com/smirc/smircd/internal/transport/smstools"
)

// App wires the store, router, relay and transport together.
type App struct {
	store   store.Store
	watcher *smstools.Watcher
	relay   *relay.Relay
	log     *zerolog.Logger
}

// New constructs the application with the provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	if err := checkDirs(cfg); err != nil {
		return nil, err
	}

	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	archiver, err := smstools.NewArchiver(cfg.ResolvedArchiveDir())
	if err != nil {
		st.Close()
		return nil, err
	}

	watcher, err := smstools.NewWatcher(cfg.InboundDir, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("init watcher: %w", err)
	}

	writer := smstools.NewWriter(cfg.OutboundDir, cfg.ServiceNumber, logger)
	router := core.NewRouter(st, logger)

	return &App{
		store:   st,
		watcher: watcher,
		relay:   relay.New(router, writer, archiver, logger),
		log:     logger,
	}, nil
}

// Run drains inbound files until context cancellation. A single worker
// processes one message to completion before looking at the next; an
// in-flight message is never cancelled mid-way, shutdown waits for it.
func (a *App) Run(ctx context.Context) error {
	watcherErr := make(chan error, 1)
	go func() {
		watcherErr <- a.watcher.Run(ctx)
	}()

	for {
		select {
		case path, ok := <-a.watcher.Events():
			if !ok {
				a.cleanup()
				return <-watcherErr
			}
			a.relay.ProcessFile(ctx, path)

		case <-ctx.Done():
			a.log.Info().Msg("shutting down")
			a.cleanup()
			return <-watcherErr
		}
	}
}

// cleanup closes the database and other resources.
func (a *App) cleanup() {
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close store")
	} else {
		a.log.Info().Msg("store closed")
	}
}

// checkDirs verifies the spool directories before the daemon starts, so
// a misconfiguration fails loudly instead of silently relaying nothing.
func checkDirs(cfg config.Config) error {
	for _, dir := range []string{cfg.InboundDir, cfg.OutboundDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("spool directory %s: %w", dir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("spool directory %s is not a directory", dir)
		}
	}
	return nil
}

// Package app wires the service pieces together and runs them.
package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"bhavcast/internal/config"
	"bhavcast/internal/logger"
	"bhavcast/internal/market"
	"bhavcast/internal/pipeline"
	"bhavcast/internal/scheduler"
	"bhavcast/internal/store"
	transporthttp "bhavcast/internal/transport/http"
)

type App struct {
	cfg     *config.Config
	svc     *pipeline.Service
	httpSrv *transporthttp.Server
	sched   *scheduler.Scheduler
	watcher *market.Watcher
	archive *market.Archive
	runs    *store.Store
}

// New builds the application from config without starting anything.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(cfg)
}

// Service exposes the pipeline for one-shot CLI subcommands.
func (a *App) Service() *pipeline.Service {
	if a == nil {
		return nil
	}
	return a.svc
}

// Run starts the HTTP API plus, when enabled, the daily scheduler and the
// bhavcopy directory watcher, and blocks until ctx cancels or one fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.httpSrv.Start(ctx); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if a.sched != nil {
		group.Go(func() error {
			err := a.sched.Run(ctx)
			if err == context.Canceled {
				return nil
			}
			return err
		})
	}

	if a.watcher != nil {
		group.Go(func() error {
			err := a.watcher.Run(ctx)
			if err == context.Canceled {
				return nil
			}
			return err
		})
	}

	return group.Wait()
}

// Close releases store handles. Safe on a partially built app.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.archive != nil {
		if err := a.archive.Close(); err != nil {
			logger.Warnf("close bar archive: %v", err)
		}
	}
	if a.runs != nil {
		if err := a.runs.Close(); err != nil {
			logger.Warnf("close run store: %v", err)
		}
	}
}

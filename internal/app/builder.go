package app

import (
	"context"
	"fmt"
	"time"

	"bhavcast/internal/calendar"
	"bhavcast/internal/config"
	"bhavcast/internal/features"
	"bhavcast/internal/logger"
	"bhavcast/internal/market"
	"bhavcast/internal/pipeline"
	"bhavcast/internal/scheduler"
	"bhavcast/internal/store"
	transporthttp "bhavcast/internal/transport/http"
)

// AppBuilder assembles the App step by step. The Fn fields exist so tests
// can substitute individual stages.
type AppBuilder struct {
	cfg *config.Config

	calendarFn func(*config.Config) *calendar.Calendar
	archiveFn  func(string) (*market.Archive, error)
	storeFn    func(string) (*store.Store, error)
}

func NewAppBuilder(cfg *config.Config) *AppBuilder {
	return &AppBuilder{
		cfg:        cfg,
		calendarFn: buildCalendar,
		archiveFn:  market.NewArchive,
		storeFn:    store.New,
	}
}

func (b *AppBuilder) Build() (*App, error) {
	cfg := b.cfg
	cal := b.calendarFn(cfg)

	preset := features.Daily()
	if cfg.Features.IsWeekly() {
		preset = features.Weekly()
	}
	engine := features.NewEngine(preset)

	archive, err := b.archiveFn(cfg.Data.ArchivePath)
	if err != nil {
		return nil, fmt.Errorf("open bar archive: %w", err)
	}
	runs, err := b.storeFn(cfg.Data.StorePath)
	if err != nil {
		archive.Close()
		return nil, fmt.Errorf("open run store: %w", err)
	}

	closeStores := func() {
		if archive != nil {
			archive.Close()
		}
		runs.Close()
	}

	svc := pipeline.New(cfg, cal, engine, archive, runs)

	httpSrv, err := transporthttp.NewServer(cfg.App.HTTPAddr, svc, runs)
	if err != nil {
		closeStores()
		return nil, err
	}

	a := &App{
		cfg:     cfg,
		svc:     svc,
		httpSrv: httpSrv,
		archive: archive,
		runs:    runs,
	}

	if cfg.Schedule.Enabled {
		loc, err := time.LoadLocation(cfg.Schedule.Timezone)
		if err != nil {
			closeStores()
			return nil, fmt.Errorf("load schedule timezone: %w", err)
		}
		a.sched, err = scheduler.New(cal, cfg.Schedule.RunAt, loc, dailyJob(svc))
		if err != nil {
			closeStores()
			return nil, err
		}
	}
	if cfg.Schedule.Watch {
		a.watcher = market.NewWatcher(cfg.Data.BhavcopyDir, func(path string) {
			ctx := context.Background()
			if err := svc.IngestFile(ctx, path); err != nil {
				logger.Warnf("watcher ingest %s: %v", path, err)
				return
			}
			if _, err := svc.RunForecast(ctx); err != nil {
				logger.Warnf("watcher forecast after %s: %v", path, err)
			}
		})
	}
	return a, nil
}

// dailyJob scores yesterday's recorded forecasts against the bars that
// arrived today, then produces the next batch. The backtest leg is skipped
// quietly until a first forecast run exists.
func dailyJob(svc *pipeline.Service) scheduler.Job {
	return func(ctx context.Context) error {
		if _, err := svc.RunBacktest(ctx); err != nil {
			logger.Warnf("scheduled backtest skipped: %v", err)
		}
		_, err := svc.RunForecast(ctx)
		return err
	}
}

func buildCalendar(cfg *config.Config) *calendar.Calendar {
	if cfg.Calendar.Source == "web" {
		timeout := time.Duration(cfg.Calendar.FetchTimeoutSeconds) * time.Second
		return calendar.New(calendar.NewNSESource(cfg.Data.HolidayDir, timeout))
	}
	return calendar.New(calendar.FileSource{Dir: cfg.Data.HolidayDir})
}

// Package pipeline orchestrates the batch flows: bhavcopy ingest, feature
// derivation, forecasting and backtesting. The CLI, the scheduler and the
// HTTP API all drive the same Service.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"bhavcast/internal/backtest"
	"bhavcast/internal/calendar"
	"bhavcast/internal/config"
	"bhavcast/internal/features"
	"bhavcast/internal/logger"
	"bhavcast/internal/market"
	"bhavcast/internal/model"
	"bhavcast/internal/predict"
	"bhavcast/internal/store"
)

type Service struct {
	cfg     *config.Config
	cal     *calendar.Calendar
	engine  *features.Engine
	archive *market.Archive
	runs    *store.Store

	// Batch runs are strictly sequential: results must not depend on who
	// triggered the run or what else is in flight.
	mu sync.Mutex
}

func New(cfg *config.Config, cal *calendar.Calendar, engine *features.Engine, archive *market.Archive, runs *store.Store) *Service {
	return &Service{cfg: cfg, cal: cal, engine: engine, archive: archive, runs: runs}
}

// ForecastOutcome is the result of one forecast batch. Records may be empty:
// a session where nothing clears the threshold is a valid outcome.
type ForecastOutcome struct {
	RunID      string                   `json:"run_id,omitempty"`
	RunDate    string                   `json:"run_date"`
	Records    []predict.ForecastRecord `json:"records"`
	OutputPath string                   `json:"output_path,omitempty"`
}

// BacktestOutcome pairs the scored result with its run metadata.
type BacktestOutcome struct {
	RunID      string          `json:"run_id,omitempty"`
	RunDate    string          `json:"run_date"`
	Result     backtest.Result `json:"result"`
	OutputPath string          `json:"output_path"`
}

// TrainOutcome reports where a training extract landed.
type TrainOutcome struct {
	Path         string `json:"path"`
	ManifestPath string `json:"manifest_path"`
	Rows         int    `json:"rows"`
}

// RunForecast loads the bhavcopy window, derives forecast-mode features,
// scores them with the configured model and records the surviving forecasts.
func (s *Service) RunForecast(ctx context.Context) (ForecastOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	series, err := s.loadSeries(ctx)
	if err != nil {
		return ForecastOutcome{}, err
	}
	rows, err := s.engine.Derive(series, features.ModeForecast)
	if err != nil {
		return ForecastOutcome{}, err
	}
	clf, err := model.LoadLinearModel(s.cfg.Predict.ModelPath, s.engine.Schema())
	if err != nil {
		return ForecastOutcome{}, err
	}
	records, err := predict.NewEngine(clf, s.cal).Forecast(series, rows, s.cfg.Predict.ConfidenceThreshold)
	if err != nil {
		return ForecastOutcome{}, err
	}

	out := ForecastOutcome{RunDate: series.LatestDate().Format(market.DateLayout), Records: records}
	if len(records) > 0 {
		out.RunDate = records[0].ForecastDate.Format(market.DateLayout)
		path, err := predict.WriteRun(s.cfg.Predict.OutputDir, records)
		if err != nil {
			return ForecastOutcome{}, err
		}
		out.OutputPath = path
		logger.InfoBlock(predict.RenderReport(records, s.Bands(), s.cfg.Predict.TopN))
	} else {
		logger.Infof("no forecast cleared the %.2f confidence threshold for %s",
			s.cfg.Predict.ConfidenceThreshold, out.RunDate)
	}
	if s.runs != nil {
		id, err := s.runs.SaveForecastRun(ctx, store.RunRecord{
			RunDate: out.RunDate,
			Horizon: s.Horizon(),
			Settings: map[string]any{
				"confidence_threshold": s.cfg.Predict.ConfidenceThreshold,
				"model_path":           s.cfg.Predict.ModelPath,
			},
			OutputPath: out.OutputPath,
		}, records)
		if err != nil {
			return ForecastOutcome{}, fmt.Errorf("persist forecast run: %w", err)
		}
		out.RunID = id
		s.pruneRuns(ctx)
	}
	return out, nil
}

// RunBacktest scores the most recent recorded forecast run against the bars
// that have arrived since.
func (s *Service) RunBacktest(ctx context.Context) (BacktestOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	latest, err := predict.LatestRunFile(s.cfg.Predict.OutputDir)
	if err != nil {
		return BacktestOutcome{}, err
	}
	forecasts, err := predict.ReadRun(latest)
	if err != nil {
		return BacktestOutcome{}, err
	}
	runDate, err := predict.RunDate(latest)
	if err != nil {
		return BacktestOutcome{}, err
	}
	series, err := s.realizedSeries(ctx, runDate, forecasts)
	if err != nil {
		return BacktestOutcome{}, err
	}
	res := backtest.Evaluate(forecasts, series, backtest.Options{
		Mode:          s.matchMode(),
		MoveThreshold: s.cfg.Backtest.PercentMoveThreshold,
	})
	out := BacktestOutcome{RunDate: runDate.Format(market.DateLayout), Result: res}
	out.OutputPath, err = backtest.WriteCSV(s.cfg.Backtest.OutputDir, out.RunDate, res)
	if err != nil {
		return BacktestOutcome{}, err
	}
	logger.InfoBlock(backtest.RenderReport(res))
	if s.runs != nil {
		id, err := s.runs.SaveBacktestRun(ctx, store.RunRecord{
			RunDate:    out.RunDate,
			Horizon:    s.Horizon(),
			Settings:   map[string]any{"mode": s.cfg.Backtest.Mode},
			OutputPath: out.OutputPath,
		}, res)
		if err != nil {
			return BacktestOutcome{}, fmt.Errorf("persist backtest run: %w", err)
		}
		out.RunID = id
		s.pruneRuns(ctx)
	}
	return out, nil
}

// BuildTrainingSet derives train-mode features over the full window and
// writes the labeled extract plus a schema manifest for the model trainer.
func (s *Service) BuildTrainingSet(ctx context.Context) (TrainOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	series, err := s.loadSeries(ctx)
	if err != nil {
		return TrainOutcome{}, err
	}
	rows, err := s.engine.Derive(series, features.ModeTrain)
	if err != nil {
		return TrainOutcome{}, err
	}
	schema := s.engine.Schema()
	out := TrainOutcome{
		Path:         filepath.Join(s.cfg.Predict.OutputDir, fmt.Sprintf("training_%s.csv", s.Horizon())),
		ManifestPath: filepath.Join(s.cfg.Predict.OutputDir, fmt.Sprintf("feature_schema_%s.yaml", s.Horizon())),
		Rows:         len(rows),
	}
	if err := features.WriteCSV(out.Path, schema, rows); err != nil {
		return TrainOutcome{}, err
	}
	if err := schema.WriteManifest(out.ManifestPath); err != nil {
		return TrainOutcome{}, err
	}
	logger.Infof("training set: %d rows over %d symbols -> %s", len(rows), len(series.Symbols()), out.Path)
	return out, nil
}

// IngestFile archives the bars from one freshly arrived bhavcopy. Called by
// the directory watcher; derivation still happens on the next batch run.
func (s *Service) IngestFile(ctx context.Context, path string) error {
	bars, err := market.LoadBhavcopyFile(path)
	if err != nil {
		return err
	}
	if s.archive != nil {
		if err := s.archive.UpsertBars(ctx, bars); err != nil {
			return fmt.Errorf("archive %s: %w", filepath.Base(path), err)
		}
	}
	logger.Infof("ingested %s: %d bars", filepath.Base(path), len(bars))
	return nil
}

// LatestForecasts reads back the most recently recorded forecast run.
func (s *Service) LatestForecasts() ([]predict.ForecastRecord, time.Time, error) {
	latest, err := predict.LatestRunFile(s.cfg.Predict.OutputDir)
	if err != nil {
		return nil, time.Time{}, err
	}
	records, err := predict.ReadRun(latest)
	if err != nil {
		return nil, time.Time{}, err
	}
	runDate, err := predict.RunDate(latest)
	if err != nil {
		return nil, time.Time{}, err
	}
	return records, runDate, nil
}

// LatestBacktest returns metadata for the most recent persisted backtest run.
func (s *Service) LatestBacktest(ctx context.Context) (store.RunRecord, bool, error) {
	if s.runs == nil {
		return store.RunRecord{}, false, fmt.Errorf("run store not configured")
	}
	return s.runs.LatestRun(ctx, store.RunKindBacktest)
}

// Bands converts the configured confidence buckets to report bands.
func (s *Service) Bands() []predict.Band {
	bands := make([]predict.Band, 0, len(s.cfg.Predict.Buckets))
	for _, b := range s.cfg.Predict.Buckets {
		bands = append(bands, predict.Band{Low: b.Low, High: b.High})
	}
	return bands
}

func (s *Service) Horizon() string {
	if s.cfg.Features.IsWeekly() {
		return "weekly"
	}
	return "daily"
}

// loadSeries reads the bhavcopy window, archives the daily bars, and
// aggregates to weekly candles when the weekly horizon is active.
func (s *Service) loadSeries(ctx context.Context) (*market.Series, error) {
	series, err := market.LoadBhavcopyDir(s.cfg.Data.BhavcopyDir, s.cfg.Data.LookbackSessions)
	if err != nil {
		return nil, err
	}
	if s.archive != nil {
		if err := s.archive.UpsertBars(ctx, series.AllBars()); err != nil {
			logger.Warnf("bar archive update failed: %v", err)
		}
	}
	if s.cfg.Features.IsWeekly() {
		return market.AggregateWeekly(series)
	}
	return series, nil
}

// realizedSeries sources the bars a backtest scores against. The archive is
// preferred once it holds a session at or past the forecast date, so scoring
// keeps working after the raw CSVs rotate out of the lookback window; the
// bhavcopy tree is the fallback.
func (s *Service) realizedSeries(ctx context.Context, runDate time.Time, forecasts []predict.ForecastRecord) (*market.Series, error) {
	if s.archive == nil {
		return s.loadSeries(ctx)
	}
	latest, ok, err := s.archive.LatestSessionDate(ctx)
	if err != nil {
		logger.Warnf("bar archive unavailable, reading bhavcopy files: %v", err)
		return s.loadSeries(ctx)
	}
	if !ok || latest.Before(runDate) {
		return s.loadSeries(ctx)
	}
	since := runDate
	for _, f := range forecasts {
		if f.OriginDate.Before(since) {
			since = f.OriginDate
		}
	}
	series, err := s.archive.BarsSince(ctx, since)
	if err != nil {
		logger.Warnf("bar archive read failed, reading bhavcopy files: %v", err)
		return s.loadSeries(ctx)
	}
	if s.cfg.Features.IsWeekly() {
		return market.AggregateWeekly(series)
	}
	return series, nil
}

// pruneRuns enforces the configured retention window on persisted runs.
func (s *Service) pruneRuns(ctx context.Context) {
	days := s.cfg.Data.RetainRunDays
	if s.runs == nil || days <= 0 {
		return
	}
	if err := s.runs.PruneRuns(ctx, time.Duration(days)*24*time.Hour); err != nil {
		logger.Warnf("pruning runs older than %dd failed: %v", days, err)
	}
}

func (s *Service) matchMode() backtest.MatchMode {
	if strings.EqualFold(strings.TrimSpace(s.cfg.Backtest.Mode), "nearest") {
		return backtest.MatchNearestFuture
	}
	return backtest.MatchExact
}

// Package store persists forecast and backtest runs using Gorm + SQLite so
// past runs stay queryable after the CSV outputs rotate.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"bhavcast/internal/backtest"
	"bhavcast/internal/market"
	"bhavcast/internal/predict"
)

type RunKind string

const (
	RunKindForecast RunKind = "forecast"
	RunKindBacktest RunKind = "backtest"
)

// RunRecord is one persisted run: a forecast batch or a backtest scoring
// pass, keyed by UUID.
type RunRecord struct {
	ID         string
	Kind       RunKind
	RunDate    string
	Horizon    string
	Records    int
	Settings   map[string]any
	OutputPath string
	CreatedAt  time.Time
}

type Store struct {
	db *gorm.DB
}

// New opens (creating if needed) the run store at path.
func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("run store: path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("run store: create dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&runModel{}, &forecastRowModel{}, &backtestRowModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: a little parallelism for concurrent HTTP reads while
	// keeping lock contention low.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveForecastRun records a completed forecast batch and its rows in one
// transaction. Returns the generated run ID.
func (s *Store) SaveForecastRun(ctx context.Context, rec RunRecord, forecasts []predict.ForecastRecord) (string, error) {
	if s == nil || s.db == nil {
		return "", fmt.Errorf("run store not initialized")
	}
	rec.ID = uuid.NewString()
	rec.Kind = RunKindForecast
	rec.Records = len(forecasts)
	model := newRunModel(rec)
	rows := make([]forecastRowModel, 0, len(forecasts))
	for _, f := range forecasts {
		rows = append(rows, forecastRowModel{
			RunID:          rec.ID,
			Symbol:         f.Symbol,
			OriginDate:     f.OriginDate.Format(market.DateLayout),
			ForecastDate:   f.ForecastDate.Format(market.DateLayout),
			Direction:      string(f.Direction),
			Confidence:     f.Confidence,
			ReferencePrice: f.ReferencePrice,
		})
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

// SaveBacktestRun records a completed backtest: the run row, the scored
// records, and the summary as the run's settings payload.
func (s *Store) SaveBacktestRun(ctx context.Context, rec RunRecord, res backtest.Result) (string, error) {
	if s == nil || s.db == nil {
		return "", fmt.Errorf("run store not initialized")
	}
	rec.ID = uuid.NewString()
	rec.Kind = RunKindBacktest
	rec.Records = len(res.Records)
	if rec.Settings == nil {
		rec.Settings = map[string]any{}
	}
	rec.Settings["summary"] = res.Summary
	rec.Settings["movers"] = res.Movers
	model := newRunModel(rec)
	rows := make([]backtestRowModel, 0, len(res.Records))
	for _, r := range res.Records {
		rows = append(rows, backtestRowModel{
			RunID:          rec.ID,
			Symbol:         r.Symbol,
			ForecastDate:   r.ForecastDate.Format(market.DateLayout),
			RealizedDate:   r.RealizedDate.Format(market.DateLayout),
			Direction:      string(r.Direction),
			ReferencePrice: r.ReferencePrice,
			RealizedPrice:  r.RealizedPrice,
			PercentMove:    r.PercentMove,
			Correct:        r.Correct,
			Confidence:     r.Confidence,
		})
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

// LatestRun returns the most recent run of the given kind, or ok=false when
// none exists yet.
func (s *Store) LatestRun(ctx context.Context, kind RunKind) (RunRecord, bool, error) {
	if s == nil || s.db == nil {
		return RunRecord{}, false, fmt.Errorf("run store not initialized")
	}
	var model runModel
	err := s.db.WithContext(ctx).
		Where("kind = ?", string(kind)).
		Order("created_at DESC, id DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RunRecord{}, false, nil
		}
		return RunRecord{}, false, err
	}
	return runModelToRecord(model), true, nil
}

// ListRuns pages recent runs of a kind, newest first.
func (s *Store) ListRuns(ctx context.Context, kind RunKind, limit int) ([]RunRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("run store not initialized")
	}
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	var models []runModel
	if err := s.db.WithContext(ctx).
		Where("kind = ?", string(kind)).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]RunRecord, 0, len(models))
	for _, m := range models {
		out = append(out, runModelToRecord(m))
	}
	return out, nil
}

// PruneRuns deletes runs (and their rows) older than keep days.
func (s *Store) PruneRuns(ctx context.Context, keep time.Duration) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("run store not initialized")
	}
	cutoff := time.Now().Add(-keep).UnixMilli()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&runModel{}).
			Where("created_at < ?", cutoff).
			Pluck("run_uuid", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("run_id IN ?", ids).Delete(&forecastRowModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("run_id IN ?", ids).Delete(&backtestRowModel{}).Error; err != nil {
			return err
		}
		return tx.Where("run_uuid IN ?", ids).Delete(&runModel{}).Error
	})
}

func newRunModel(rec RunRecord) runModel {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	payload, _ := json.Marshal(rec.Settings)
	return runModel{
		RunUUID:       rec.ID,
		Kind:          string(rec.Kind),
		RunDate:       rec.RunDate,
		Horizon:       rec.Horizon,
		RecordCount:   rec.Records,
		Settings:      datatypes.JSON(payload),
		OutputPath:    rec.OutputPath,
		CreatedAtUnix: rec.CreatedAt.UnixMilli(),
	}
}

func runModelToRecord(m runModel) RunRecord {
	rec := RunRecord{
		ID:         m.RunUUID,
		Kind:       RunKind(m.Kind),
		RunDate:    m.RunDate,
		Horizon:    m.Horizon,
		Records:    m.RecordCount,
		OutputPath: m.OutputPath,
		CreatedAt:  time.UnixMilli(m.CreatedAtUnix),
	}
	if len(m.Settings) > 0 {
		_ = json.Unmarshal(m.Settings, &rec.Settings)
	}
	return rec
}

type runModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	RunUUID       string         `gorm:"column:run_uuid;uniqueIndex"`
	Kind          string         `gorm:"column:kind;index"`
	RunDate       string         `gorm:"column:run_date;index"`
	Horizon       string         `gorm:"column:horizon"`
	RecordCount   int            `gorm:"column:record_count"`
	Settings      datatypes.JSON `gorm:"column:settings"`
	OutputPath    string         `gorm:"column:output_path"`
	CreatedAtUnix int64          `gorm:"column:created_at;index"`
}

func (runModel) TableName() string { return "runs" }

type forecastRowModel struct {
	ID             int64   `gorm:"column:id;primaryKey"`
	RunID          string  `gorm:"column:run_id;index"`
	Symbol         string  `gorm:"column:symbol;index"`
	OriginDate     string  `gorm:"column:origin_date"`
	ForecastDate   string  `gorm:"column:forecast_date;index"`
	Direction      string  `gorm:"column:direction"`
	Confidence     float64 `gorm:"column:confidence"`
	ReferencePrice float64 `gorm:"column:reference_price"`
}

func (forecastRowModel) TableName() string { return "forecast_rows" }

type backtestRowModel struct {
	ID             int64   `gorm:"column:id;primaryKey"`
	RunID          string  `gorm:"column:run_id;index"`
	Symbol         string  `gorm:"column:symbol;index"`
	ForecastDate   string  `gorm:"column:forecast_date;index"`
	RealizedDate   string  `gorm:"column:realized_date"`
	Direction      string  `gorm:"column:direction"`
	ReferencePrice float64 `gorm:"column:reference_price"`
	RealizedPrice  float64 `gorm:"column:realized_price"`
	PercentMove    float64 `gorm:"column:percent_move"`
	Correct        bool    `gorm:"column:correct"`
	Confidence     float64 `gorm:"column:confidence"`
}

func (backtestRowModel) TableName() string { return "backtest_rows" }

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bhavcast/internal/backtest"
	"bhavcast/internal/calendar"
	"bhavcast/internal/config"
	"bhavcast/internal/features"
	"bhavcast/internal/market"
	"bhavcast/internal/predict"
)

func writeSessionFile(t *testing.T, dir string, date time.Time, symbol string, px float64) {
	t.Helper()
	name := fmt.Sprintf("sec_bhavdata_full_%s.csv", date.Format("02012006"))
	content := "SYMBOL, SERIES, OPEN_PRICE, HIGH_PRICE, LOW_PRICE, CLOSE_PRICE, TTL_TRD_QNTY, DELIV_QTY\n" +
		fmt.Sprintf("%s, EQ, %.2f, %.2f, %.2f, %.2f, 1000, 400\n", symbol, px-1, px+2, px-2, px)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func writeModelArtifact(t *testing.T, path string, bias float64) {
	t.Helper()
	schema := features.Daily().BuildSchema()
	artifact := map[string]any{
		"schema_version": schema.Version,
		"horizon":        "daily",
		"feature_names":  schema.Names(),
		"weights":        make([]float64, schema.Len()),
		"bias":           bias,
	}
	raw, err := json.Marshal(artifact)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))
}

func testService(t *testing.T) (*Service, *config.Config) {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{}
	cfg.Data.BhavcopyDir = filepath.Join(root, "bhav")
	cfg.Data.HolidayDir = filepath.Join(root, "holidays")
	cfg.Predict.ModelPath = filepath.Join(root, "model.json")
	cfg.Predict.ConfidenceThreshold = 0.6
	cfg.Predict.OutputDir = filepath.Join(root, "out")
	cfg.Predict.TopN = 5
	cfg.Predict.Buckets = []config.Bucket{{Low: 0.5, High: 1.0}}
	cfg.Backtest.Mode = "exact"
	cfg.Backtest.PercentMoveThreshold = 4
	cfg.Backtest.OutputDir = filepath.Join(root, "bt")
	cfg.Features.Horizon = "daily"

	require.NoError(t, os.MkdirAll(cfg.Data.BhavcopyDir, 0o755))
	require.NoError(t, calendar.WriteHolidayFile(cfg.Data.HolidayDir, 2024, nil))
	writeModelArtifact(t, cfg.Predict.ModelPath, 2.0) // strongly bullish

	// Six weekday sessions ending Monday 2024-06-10.
	closes := []float64{100, 102, 101, 105, 107, 106}
	dates := []string{"2024-06-03", "2024-06-04", "2024-06-05", "2024-06-06", "2024-06-07", "2024-06-10"}
	for i, d := range dates {
		date, err := time.Parse("2006-01-02", d)
		require.NoError(t, err)
		writeSessionFile(t, cfg.Data.BhavcopyDir, date, "ABC", closes[i])
	}

	cal := calendar.New(calendar.FileSource{Dir: cfg.Data.HolidayDir})
	svc := New(cfg, cal, features.NewEngine(features.Daily()), nil, nil)
	return svc, cfg
}

func TestRunForecastProducesDatedRun(t *testing.T) {
	svc, cfg := testService(t)

	out, err := svc.RunForecast(context.Background())
	require.NoError(t, err)
	require.Len(t, out.Records, 1)

	rec := out.Records[0]
	assert.Equal(t, "ABC", rec.Symbol)
	assert.Equal(t, predict.DirectionBullish, rec.Direction)
	assert.Equal(t, "2024-06-10", rec.OriginDate.Format("2006-01-02"))
	assert.Equal(t, "2024-06-11", rec.ForecastDate.Format("2006-01-02"))
	assert.Equal(t, 106.0, rec.ReferencePrice)
	assert.Equal(t, "2024-06-11", out.RunDate)
	assert.FileExists(t, filepath.Join(cfg.Predict.OutputDir, "2024-06-11.csv"))
	assert.FileExists(t, filepath.Join(cfg.Predict.OutputDir, "latest.csv"))

	// Rerunning over identical input reproduces the same records.
	again, err := svc.RunForecast(context.Background())
	require.NoError(t, err)
	assert.Equal(t, out.Records, again.Records)
}

func TestRunBacktestScoresRecordedForecast(t *testing.T) {
	svc, cfg := testService(t)

	_, err := svc.RunForecast(context.Background())
	require.NoError(t, err)

	// The forecast session's bar arrives.
	realized, err := time.Parse("2006-01-02", "2024-06-11")
	require.NoError(t, err)
	writeSessionFile(t, cfg.Data.BhavcopyDir, realized, "ABC", 108)

	out, err := svc.RunBacktest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024-06-11", out.RunDate)
	require.Len(t, out.Result.Records, 1)

	scored := out.Result.Records[0]
	assert.True(t, scored.Correct)
	assert.Equal(t, 108.0, scored.RealizedPrice)
	assert.Equal(t, 1.89, scored.PercentMove) // (108-106)/106, rounded
	assert.Equal(t, 1, out.Result.Summary.Total)
	assert.InDelta(t, 1.0, out.Result.Summary.Accuracy, 1e-9)
	assert.FileExists(t, out.OutputPath)
}

func TestRunBacktestReadsRealizedBarsFromArchive(t *testing.T) {
	svc, cfg := testService(t)
	arc, err := market.NewArchive(filepath.Join(filepath.Dir(cfg.Predict.ModelPath), "bars.db"))
	require.NoError(t, err)
	t.Cleanup(func() { arc.Close() })
	svc.archive = arc

	// The forecast pass mirrors the CSV window into the archive.
	_, err = svc.RunForecast(context.Background())
	require.NoError(t, err)

	// The realized session arrives through ingest only; no CSV is written,
	// so a bhavcopy re-read could not score it.
	realized, err := time.Parse("2006-01-02", "2024-06-11")
	require.NoError(t, err)
	require.NoError(t, arc.UpsertBars(context.Background(), []market.SessionBar{{
		Symbol: "ABC", Date: realized,
		Open: 107, High: 109, Low: 106, Close: 108, Volume: 1200,
	}}))

	out, err := svc.RunBacktest(context.Background())
	require.NoError(t, err)
	require.Len(t, out.Result.Records, 1)
	assert.True(t, out.Result.Records[0].Correct)
	assert.Equal(t, 108.0, out.Result.Records[0].RealizedPrice)
	assert.Zero(t, out.Result.Summary.Unmatched)
}

func TestRunBacktestWithoutForecastRuns(t *testing.T) {
	svc, cfg := testService(t)
	require.NoError(t, os.MkdirAll(cfg.Predict.OutputDir, 0o755))

	_, err := svc.RunBacktest(context.Background())
	assert.ErrorIs(t, err, predict.ErrNoForecastFiles)
}

func TestBuildTrainingSetWritesExtractAndManifest(t *testing.T) {
	svc, _ := testService(t)

	out, err := svc.BuildTrainingSet(context.Background())
	require.NoError(t, err)
	// Six sessions, final one unlabeled.
	assert.Equal(t, 5, out.Rows)
	assert.FileExists(t, out.Path)

	schema, err := features.LoadManifest(out.ManifestPath)
	require.NoError(t, err)
	assert.NoError(t, schema.Check(features.Daily().BuildSchema().Names()))
}

func TestMatchModeSelection(t *testing.T) {
	svc, cfg := testService(t)
	assert.Equal(t, backtest.MatchExact, svc.matchMode())
	cfg.Backtest.Mode = "nearest"
	assert.Equal(t, backtest.MatchNearestFuture, svc.matchMode())
}

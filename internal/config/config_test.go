package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "app:\n  env: test\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.App.Env)
	assert.Equal(t, ":9985", cfg.App.HTTPAddr)
	assert.Equal(t, "daily", cfg.Features.Horizon)
	assert.Equal(t, 0.6, cfg.Predict.ConfidenceThreshold)
	assert.Equal(t, "exact", cfg.Backtest.Mode)
	assert.Equal(t, 4.0, cfg.Backtest.PercentMoveThreshold)
	assert.Equal(t, "Asia/Kolkata", cfg.Schedule.Timezone)
	require.Len(t, cfg.Predict.Buckets, 3)
	assert.Equal(t, Bucket{Low: 0.9, High: 1.0}, cfg.Predict.Buckets[0])
}

func TestLoadOverridesKeepExplicitValues(t *testing.T) {
	content := `
features:
  horizon: weekly
predict:
  confidence_threshold: 0.75
backtest:
  mode: nearest
`
	path := writeConfig(t, t.TempDir(), "config.yaml", content)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Features.IsWeekly())
	assert.Equal(t, 0.75, cfg.Predict.ConfidenceThreshold)
	assert.Equal(t, "nearest", cfg.Backtest.Mode)
}

func TestLoadMergesIncludes(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "base.yaml", "data:\n  bhavcopy_dir: /srv/bhav\n")
	path := writeConfig(t, dir, "config.yaml", "include:\n  - base.yaml\npredict:\n  top_n: 8\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/bhav", cfg.Data.BhavcopyDir)
	assert.Equal(t, 8, cfg.Predict.TopN)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"bad horizon", "features:\n  horizon: hourly\n"},
		{"bad threshold", "predict:\n  confidence_threshold: 1.5\n"},
		{"bad backtest mode", "backtest:\n  mode: fuzzy\n"},
		{"bad run_at", "schedule:\n  enabled: true\n  run_at: \"25:99\"\n"},
		{"bad bucket band", "predict:\n  buckets:\n    - low: 0.9\n      high: 0.8\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), "config.yaml", tc.content)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

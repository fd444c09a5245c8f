package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bhavcast/internal/config"
	"bhavcast/internal/market"
	"bhavcast/internal/store"
)

func builderConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{}
	cfg.App.HTTPAddr = ":0"
	cfg.Data.BhavcopyDir = filepath.Join(root, "bhav")
	cfg.Data.HolidayDir = filepath.Join(root, "holidays")
	cfg.Data.ArchivePath = filepath.Join(root, "bars.db")
	cfg.Data.StorePath = filepath.Join(root, "runs.db")
	cfg.Calendar.Source = "file"
	cfg.Features.Horizon = "daily"
	return cfg
}

// trackingBuilder swaps the store constructor out and keeps a handle on the
// opened archive so tests can observe whether Build released it.
func trackingBuilder(t *testing.T, cfg *config.Config) (*AppBuilder, **market.Archive) {
	t.Helper()
	b := NewAppBuilder(cfg)
	var arc *market.Archive
	b.archiveFn = func(path string) (*market.Archive, error) {
		a, err := market.NewArchive(path)
		arc = a
		return a, err
	}
	b.storeFn = func(string) (*store.Store, error) { return nil, nil }
	return b, &arc
}

func TestBuildClosesArchiveWhenSchedulerSetupFails(t *testing.T) {
	sessionBar := market.SessionBar{
		Symbol: "ABC",
		Date:   time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		Open:   99, High: 102, Low: 98, Close: 100, Volume: 1000,
	}

	t.Run("bad timezone", func(t *testing.T) {
		cfg := builderConfig(t)
		cfg.Schedule.Enabled = true
		cfg.Schedule.RunAt = "18:30"
		cfg.Schedule.Timezone = "Not/AZone"

		b, arc := trackingBuilder(t, cfg)
		_, err := b.Build()
		require.Error(t, err)
		require.NotNil(t, *arc)
		assert.ErrorContains(t, (*arc).UpsertBars(context.Background(), []market.SessionBar{sessionBar}), "closed")
	})

	t.Run("bad run time", func(t *testing.T) {
		cfg := builderConfig(t)
		cfg.Schedule.Enabled = true
		cfg.Schedule.RunAt = "99:99"
		cfg.Schedule.Timezone = "Asia/Kolkata"

		b, arc := trackingBuilder(t, cfg)
		_, err := b.Build()
		require.Error(t, err)
		require.NotNil(t, *arc)
		assert.ErrorContains(t, (*arc).UpsertBars(context.Background(), []market.SessionBar{sessionBar}), "closed")
	})
}

func TestBuildLeavesStoresOpenOnSuccess(t *testing.T) {
	cfg := builderConfig(t)
	b, arc := trackingBuilder(t, cfg)

	a, err := b.Build()
	require.NoError(t, err)
	require.NotNil(t, a.Service())

	bar := market.SessionBar{
		Symbol: "ABC",
		Date:   time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		Open:   99, High: 102, Low: 98, Close: 100, Volume: 1000,
	}
	assert.NoError(t, (*arc).UpsertBars(context.Background(), []market.SessionBar{bar}))

	a.Close()
	assert.ErrorContains(t, (*arc).UpsertBars(context.Background(), []market.SessionBar{bar}), "closed")
}

package predict

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords(forecastDate time.Time) []ForecastRecord {
	origin := forecastDate.AddDate(0, 0, -1)
	return []ForecastRecord{
		{Symbol: "ABC", OriginDate: origin, ForecastDate: forecastDate, Direction: DirectionBullish, Confidence: 0.91, ReferencePrice: 104.35},
		{Symbol: "XYZ", OriginDate: origin, ForecastDate: forecastDate, Direction: DirectionBearish, Confidence: 0.66, ReferencePrice: 58.2},
	}
}

func TestWriteRunAndReadBack(t *testing.T) {
	dir := t.TempDir()
	forecastDate := time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC)
	records := sampleRecords(forecastDate)

	path, err := WriteRun(dir, records)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2024-06-11.csv"), path)

	got, err := ReadRun(path)
	require.NoError(t, err)
	assert.Equal(t, records, got)

	// latest.csv mirrors the dated file.
	latest, err := ReadRun(filepath.Join(dir, "latest.csv"))
	require.NoError(t, err)
	assert.Equal(t, records, latest)
}

func TestWriteRunRefusesEmpty(t *testing.T) {
	_, err := WriteRun(t.TempDir(), nil)
	assert.Error(t, err)
}

func TestLatestRunFilePicksNewestDatedFile(t *testing.T) {
	dir := t.TempDir()
	for _, d := range []string{"2024-06-07", "2024-06-11", "2024-06-10"} {
		date, err := time.Parse("2006-01-02", d)
		require.NoError(t, err)
		_, err = WriteRun(dir, sampleRecords(date))
		require.NoError(t, err)
	}

	latest, err := LatestRunFile(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2024-06-11.csv"), latest)

	runDate, err := RunDate(latest)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC), runDate)
}

func TestLatestRunFileEmptyDir(t *testing.T) {
	_, err := LatestRunFile(t.TempDir())
	assert.True(t, errors.Is(err, ErrNoForecastFiles))
}

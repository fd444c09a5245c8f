package market

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bhavcopyHeader = "SYMBOL, SERIES, DATE1, PREV_CLOSE, OPEN_PRICE, HIGH_PRICE, LOW_PRICE, LAST_PRICE, CLOSE_PRICE, AVG_PRICE, TTL_TRD_QNTY, TURNOVER_LACS, NO_OF_TRADES, DELIV_QTY, DELIV_PER\n"

func writeBhavcopy(t *testing.T, dir, name, rows string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(bhavcopyHeader+rows), 0o644))
	return path
}

func TestLoadBhavcopyFileParsesEquityRows(t *testing.T) {
	rows := "" +
		"ABC, EQ, 11-Jun-2024, 99.5, 100.00, 104.50, 99.00, 103.00, 103.25, 101.10, \"1,21,000\", 1222.1, 4100, \"45,000\", 37.19\n" +
		"BOND, N1, 11-Jun-2024, 99.5, 100.00, 104.50, 99.00, 103.00, 103.25, 101.10, 121000, 1222.1, 4100, 45000, 37.19\n" +
		"BROKEN, EQ, 11-Jun-2024, 99.5, -, 104.50, 99.00, 103.00, 103.25, 101.10, 121000, 1222.1, 4100, 45000, 37.19\n" +
		"NODELIV, EQ, 11-Jun-2024, 99.5, 50.00, 52.00, 49.00, 51.00, 51.50, 50.5, 9000, 46.3, 900, -, -\n"
	path := writeBhavcopy(t, t.TempDir(), "sec_bhavdata_full_11062024.csv", rows)

	bars, err := LoadBhavcopyFile(path)
	require.NoError(t, err)
	// Non-EQ series and malformed price rows are skipped.
	require.Len(t, bars, 2)

	abc := bars[0]
	assert.Equal(t, "ABC", abc.Symbol)
	assert.Equal(t, mustDate(t, "2024-06-11"), abc.Date)
	assert.Equal(t, 100.0, abc.Open)
	assert.Equal(t, 104.5, abc.High)
	assert.Equal(t, 99.0, abc.Low)
	assert.Equal(t, 103.25, abc.Close)
	assert.Equal(t, int64(121000), abc.Volume)
	assert.True(t, abc.HasDeliverable)
	assert.Equal(t, int64(45000), abc.DeliverableQty)

	nodeliv := bars[1]
	assert.Equal(t, "NODELIV", nodeliv.Symbol)
	assert.False(t, nodeliv.HasDeliverable)
}

func TestLoadBhavcopyFileMissingColumn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "11062024.csv")
	require.NoError(t, os.WriteFile(path, []byte("SYMBOL, SERIES\nABC, EQ\n"), 0o644))

	_, err := LoadBhavcopyFile(path)
	assert.ErrorContains(t, err, "missing column")
}

func TestLoadBhavcopyDirOrdersAndLimits(t *testing.T) {
	dir := t.TempDir()
	writeBhavcopy(t, dir, "sec_bhavdata_full_10062024.csv", "ABC, EQ, d, 99, 100.00, 101.00, 99.00, 100.50, 100.00, 100.2, 1000, 10.1, 50, 400, 40.0\n")
	writeBhavcopy(t, dir, "sec_bhavdata_full_12062024.csv", "ABC, EQ, d, 99, 100.00, 101.00, 99.00, 100.50, 102.00, 100.2, 1000, 10.1, 50, 400, 40.0\n")
	writeBhavcopy(t, dir, "sec_bhavdata_full_11062024.csv", "ABC, EQ, d, 99, 100.00, 101.00, 99.00, 100.50, 101.00, 100.2, 1000, 10.1, 50, 400, 40.0\n")

	series, err := LoadBhavcopyDir(dir, 0)
	require.NoError(t, err)
	bars := series.Bars("ABC")
	require.Len(t, bars, 3)
	assert.Equal(t, 100.0, bars[0].Close)
	assert.Equal(t, 101.0, bars[1].Close)
	assert.Equal(t, 102.0, bars[2].Close)

	// Lookback keeps only the newest session files.
	limited, err := LoadBhavcopyDir(dir, 2)
	require.NoError(t, err)
	bars = limited.Bars("ABC")
	require.Len(t, bars, 2)
	assert.Equal(t, 101.0, bars[0].Close)
}

func TestLoadBhavcopyDirEmpty(t *testing.T) {
	_, err := LoadBhavcopyDir(t.TempDir(), 0)
	assert.ErrorIs(t, err, ErrNoBhavcopies)
}

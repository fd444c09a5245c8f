package backtest

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"bhavcast/internal/market"
)

var csvHeader = []string{
	"symbol", "forecast_date", "realized_date", "direction",
	"reference_price", "realized_price", "percent_move", "correct", "confidence",
}

// WriteCSV writes the scored records for one run. The file is named after
// the run's forecast date so successive runs never clobber each other.
func WriteCSV(dir string, runDate string, res Result) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backtest output dir: %w", err)
	}
	path := filepath.Join(dir, runDate+".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create backtest csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return "", err
	}
	for _, r := range res.Records {
		row := []string{
			r.Symbol,
			r.ForecastDate.Format(market.DateLayout),
			r.RealizedDate.Format(market.DateLayout),
			string(r.Direction),
			strconv.FormatFloat(r.ReferencePrice, 'f', -1, 64),
			strconv.FormatFloat(r.RealizedPrice, 'f', -1, 64),
			strconv.FormatFloat(r.PercentMove, 'f', 2, 64),
			strconv.FormatBool(r.Correct),
			strconv.FormatFloat(r.Confidence, 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	return path, w.Error()
}

package predict

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"bhavcast/internal/market"
)

var ErrNoForecastFiles = errors.New("no forecast files found")

const latestFileName = "latest.csv"

var csvHeader = []string{"symbol", "origin_date", "forecast_date", "direction", "confidence", "reference_price"}

// WriteRun persists a forecast run twice: a dated file named after the
// target session, and the latest.csv pointer that always reflects the most
// recent run.
func WriteRun(dir string, records []ForecastRecord) (string, error) {
	if len(records) == 0 {
		return "", fmt.Errorf("refusing to write an empty forecast run")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	dated := filepath.Join(dir, records[0].ForecastDate.Format(market.DateLayout)+".csv")
	if err := writeCSV(dated, records); err != nil {
		return "", err
	}
	if err := writeCSV(filepath.Join(dir, latestFileName), records); err != nil {
		return "", err
	}
	return dated, nil
}

func writeCSV(path string, records []ForecastRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		rec := []string{
			r.Symbol,
			r.OriginDate.Format(market.DateLayout),
			r.ForecastDate.Format(market.DateLayout),
			string(r.Direction),
			strconv.FormatFloat(r.Confidence, 'f', -1, 64),
			strconv.FormatFloat(r.ReferencePrice, 'f', -1, 64),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// LatestRunFile returns the newest dated forecast file in dir, skipping the
// latest.csv pointer.
func LatestRunFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w in %s", ErrNoForecastFiles, dir)
		}
		return "", err
	}
	var dates []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == latestFileName || !strings.HasSuffix(name, ".csv") {
			continue
		}
		if _, err := market.ParseDate(strings.TrimSuffix(name, ".csv")); err != nil {
			continue
		}
		dates = append(dates, name)
	}
	if len(dates) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoForecastFiles, dir)
	}
	sort.Strings(dates) // ISO dates sort chronologically
	return filepath.Join(dir, dates[len(dates)-1]), nil
}

// ReadRun loads a persisted forecast run.
func ReadRun(path string) ([]ForecastRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading forecast header failed: %w", err)
	}
	if len(header) != len(csvHeader) {
		return nil, fmt.Errorf("forecast file %s has %d columns, want %d", path, len(header), len(csvHeader))
	}
	var out []ForecastRecord
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		fr, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("forecast file %s: %w", path, err)
		}
		out = append(out, fr)
	}
	return out, nil
}

func parseRecord(rec []string) (ForecastRecord, error) {
	var (
		fr  ForecastRecord
		err error
	)
	fr.Symbol = rec[0]
	if fr.OriginDate, err = market.ParseDate(rec[1]); err != nil {
		return fr, err
	}
	if fr.ForecastDate, err = market.ParseDate(rec[2]); err != nil {
		return fr, err
	}
	switch Direction(rec[3]) {
	case DirectionBullish, DirectionBearish:
		fr.Direction = Direction(rec[3])
	default:
		return fr, fmt.Errorf("unknown direction %q", rec[3])
	}
	if fr.Confidence, err = strconv.ParseFloat(rec[4], 64); err != nil {
		return fr, err
	}
	if fr.ReferencePrice, err = strconv.ParseFloat(rec[5], 64); err != nil {
		return fr, err
	}
	return fr, nil
}

// RunDate extracts the target session date from a dated forecast file path.
func RunDate(path string) (time.Time, error) {
	return market.ParseDate(strings.TrimSuffix(filepath.Base(path), ".csv"))
}

package market

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"bhavcast/internal/logger"
	"bhavcast/internal/pkg/convert"
)

var ErrNoBhavcopies = errors.New("no bhavcopy files found")

// bhavcopy file names carry the session date as ddmmyyyy. Raw downloads may
// still carry the exchange's sec_bhavdata_full_ prefix.
const fileDateLayout = "02012006"

// SessionFileDate extracts the session date from a bhavcopy file name.
func SessionFileDate(name string) (time.Time, bool) {
	base := strings.TrimSuffix(filepath.Base(name), ".csv")
	base = strings.TrimPrefix(base, "sec_bhavdata_full_")
	t, err := time.Parse(fileDateLayout, base)
	if err != nil {
		return time.Time{}, false
	}
	return Day(t), true
}

// LoadBhavcopyDir reads every bhavcopy CSV under dir, oldest first, and
// assembles a validated Series. lookback > 0 restricts the load to the most
// recent N session files.
func LoadBhavcopyDir(dir string, lookback int) (*Series, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading bhavcopy dir failed: %w", err)
	}
	type sessionFile struct {
		path string
		date time.Time
	}
	var files []sessionFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		date, ok := SessionFileDate(e.Name())
		if !ok {
			logger.Warnf("skipping bhavcopy with unparseable name: %s", e.Name())
			continue
		}
		files = append(files, sessionFile{path: filepath.Join(dir, e.Name()), date: date})
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoBhavcopies, dir)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].date.Before(files[j].date) })
	if lookback > 0 && len(files) > lookback {
		files = files[len(files)-lookback:]
	}
	logger.Infof("loading %d bhavcopy files (%s .. %s)",
		len(files),
		files[0].date.Format(DateLayout),
		files[len(files)-1].date.Format(DateLayout))

	var bars []SessionBar
	for _, f := range files {
		fileBars, err := loadBhavcopyFile(f.path, f.date)
		if err != nil {
			return nil, fmt.Errorf("loading %s failed: %w", f.path, err)
		}
		bars = append(bars, fileBars...)
	}
	return NewSeries(bars)
}

// LoadBhavcopyFile reads a single session file dated by its file name.
func LoadBhavcopyFile(path string) ([]SessionBar, error) {
	date, ok := SessionFileDate(path)
	if !ok {
		return nil, fmt.Errorf("cannot derive session date from file name: %s", path)
	}
	return loadBhavcopyFile(path, date)
}

func loadBhavcopyFile(path string, date time.Time) ([]SessionBar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header failed: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	required := []string{"symbol", "open_price", "high_price", "low_price", "close_price", "ttl_trd_qnty"}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("bhavcopy missing column %q", name)
		}
	}
	seriesIdx, hasSeries := cols["series"]
	delivIdx, hasDeliv := cols["deliv_qty"]

	cell := func(rec []string, idx int) string {
		if idx < 0 || idx >= len(rec) {
			return ""
		}
		return rec[idx]
	}

	var bars []SessionBar
	var skipped int
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		// Only the equity series carries deliverable settlement data the
		// feature engine understands.
		if hasSeries && strings.TrimSpace(cell(rec, seriesIdx)) != "EQ" {
			continue
		}
		symbol := strings.TrimSpace(cell(rec, cols["symbol"]))
		if symbol == "" {
			skipped++
			continue
		}
		open, ok1 := convert.ParsePrice(cell(rec, cols["open_price"]))
		high, ok2 := convert.ParsePrice(cell(rec, cols["high_price"]))
		low, ok3 := convert.ParsePrice(cell(rec, cols["low_price"]))
		closeP, ok4 := convert.ParsePrice(cell(rec, cols["close_price"]))
		volume, ok5 := convert.ParseQty(cell(rec, cols["ttl_trd_qnty"]))
		if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 || closeP <= 0 {
			skipped++
			continue
		}
		bar := SessionBar{
			Symbol: symbol,
			Date:   date,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closeP,
			Volume: volume,
		}
		if hasDeliv {
			if qty, ok := convert.ParseQty(cell(rec, delivIdx)); ok {
				bar.DeliverableQty = qty
				bar.HasDeliverable = true
			}
		}
		bars = append(bars, bar)
	}
	if skipped > 0 {
		logger.Debugf("%s: skipped %d malformed rows", filepath.Base(path), skipped)
	}
	return bars, nil
}

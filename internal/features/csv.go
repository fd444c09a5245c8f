package features

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"bhavcast/internal/market"
)

// WriteCSV persists rows as the processed dataset: symbol, date, the schema
// columns in order, and (when any row carries one) a trailing target column.
// Undefined feature values render as empty cells so a loader cannot mistake
// them for zeros.
func WriteCSV(path string, schema Schema, rows []Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	withTarget := false
	for _, r := range rows {
		if r.Target != nil {
			withTarget = true
			break
		}
	}

	w := csv.NewWriter(f)
	header := append([]string{"symbol", "date"}, schema.Names()...)
	if withTarget {
		header = append(header, "target")
	}
	if err := w.Write(header); err != nil {
		return err
	}
	rec := make([]string, 0, len(header))
	for _, r := range rows {
		rec = rec[:0]
		rec = append(rec, r.Symbol, r.Date.Format(market.DateLayout))
		for _, v := range r.Values {
			rec = append(rec, v.String())
		}
		if withTarget {
			if r.Target != nil {
				rec = append(rec, strconv.Itoa(*r.Target))
			} else {
				rec = append(rec, "")
			}
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

package calendar

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"bhavcast/internal/market"
)

// FileSource reads per-year holiday sets from nse_holidays_<year>.json files
// (a JSON array of ISO dates), the cache layout the web source also writes.
type FileSource struct {
	Dir string
}

func holidayFileName(year int) string {
	return fmt.Sprintf("nse_holidays_%d.json", year)
}

func (s FileSource) path(year int) string {
	return filepath.Join(s.Dir, holidayFileName(year))
}

func (s FileSource) HolidaysFor(year int) (map[string]struct{}, error) {
	raw, err := os.ReadFile(s.path(year))
	if err != nil {
		return nil, err
	}
	return parseHolidayList(raw, year)
}

func parseHolidayList(raw []byte, year int) (map[string]struct{}, error) {
	var dates []string
	if err := json.Unmarshal(raw, &dates); err != nil {
		return nil, fmt.Errorf("holiday file for %d is malformed: %w", year, err)
	}
	set := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		if _, err := market.ParseDate(d); err != nil {
			return nil, fmt.Errorf("holiday file for %d contains bad date %q: %w", year, d, err)
		}
		set[d] = struct{}{}
	}
	return set, nil
}

// WriteHolidayFile persists a holiday set in the file-source layout.
func WriteHolidayFile(dir string, year int, set map[string]struct{}) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	dates := make([]string, 0, len(set))
	for d := range set {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	raw, err := json.MarshalIndent(dates, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, holidayFileName(year)), raw, 0o644)
}

// Package calendar resolves trading-session dates for the exchange,
// accounting for weekends and the per-year holiday set.
package calendar

import (
	"errors"
	"fmt"
	"time"

	"bhavcast/internal/market"
)

// ErrHolidaysUnavailable is wrapped by every failure to obtain a year's
// holiday set. Treating such a year as holiday-free would make resolved
// dates systematically wrong near year boundaries, so lookups fail loudly.
var ErrHolidaysUnavailable = errors.New("holiday data unavailable")

// HolidaySource yields the exchange holiday dates for one calendar year,
// keyed by ISO date string.
type HolidaySource interface {
	HolidaysFor(year int) (map[string]struct{}, error)
}

// Calendar answers next-trading-day queries against a lazily filled per-year
// holiday cache. It is not safe for concurrent use; the pipeline is a
// single-pass batch and shares one instance per run.
type Calendar struct {
	src   HolidaySource
	cache map[int]map[string]struct{}
}

func New(src HolidaySource) *Calendar {
	return &Calendar{src: src, cache: make(map[int]map[string]struct{})}
}

func (c *Calendar) holidays(year int) (map[string]struct{}, error) {
	if set, ok := c.cache[year]; ok {
		return set, nil
	}
	set, err := c.src.HolidaysFor(year)
	if err != nil {
		return nil, fmt.Errorf("%w: year %d: %v", ErrHolidaysUnavailable, year, err)
	}
	if set == nil {
		set = map[string]struct{}{}
	}
	c.cache[year] = set
	return set, nil
}

// NextTradingDay returns the first date strictly after d that is neither a
// weekend nor a holiday of its own calendar year. The holiday set is
// resolved per candidate year, so a holiday run spanning a year boundary is
// handled by loading the new year's set at the rollover.
func (c *Calendar) NextTradingDay(d time.Time) (time.Time, error) {
	day := market.Day(d)
	for i := 0; i < 366; i++ {
		day = day.AddDate(0, 0, 1)
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		set, err := c.holidays(day.Year())
		if err != nil {
			return time.Time{}, err
		}
		if _, isHoliday := set[day.Format(market.DateLayout)]; isHoliday {
			continue
		}
		return day, nil
	}
	return time.Time{}, fmt.Errorf("no trading day found within a year after %s", market.Day(d).Format(market.DateLayout))
}

// IsTradingDay reports whether d itself is a tradable session date.
func (c *Calendar) IsTradingDay(d time.Time) (bool, error) {
	day := market.Day(d)
	if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false, nil
	}
	set, err := c.holidays(day.Year())
	if err != nil {
		return false, err
	}
	_, isHoliday := set[day.Format(market.DateLayout)]
	return !isHoliday, nil
}

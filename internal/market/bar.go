package market

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	ErrNoBars       = errors.New("no session bars")
	ErrOutOfOrder   = errors.New("session bars out of order")
	ErrDuplicateBar = errors.New("duplicate session bar")
)

// SessionBar is one instrument's trade summary for a single trading session.
type SessionBar struct {
	Symbol         string    `json:"symbol"`
	Date           time.Time `json:"date"` // UTC midnight
	Open           float64   `json:"open"`
	High           float64   `json:"high"`
	Low            float64   `json:"low"`
	Close          float64   `json:"close"`
	Volume         int64     `json:"volume"`
	DeliverableQty int64     `json:"deliverable_qty"`
	HasDeliverable bool      `json:"has_deliverable"`
}

// DateLayout is the canonical session date format used everywhere outward
// facing (file names excluded, those follow the exchange's ddmmyyyy scheme).
const DateLayout = "2006-01-02"

// Day normalizes t to UTC midnight.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a canonical ISO session date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}

// Series holds session bars grouped per symbol, date-ascending within each
// symbol. Construction validates the ordering preconditions; a Series that
// exists is safe to run rolling computations over.
type Series struct {
	symbols  []string
	bySymbol map[string][]SessionBar
	latest   time.Time
}

// NewSeries groups bars per symbol and verifies that each symbol's bars are
// strictly ascending by date. Misordered or duplicate (symbol, date) input is
// rejected rather than repaired: silently sorting would mask upstream bugs
// that also corrupt label alignment.
func NewSeries(bars []SessionBar) (*Series, error) {
	if len(bars) == 0 {
		return nil, ErrNoBars
	}
	bySymbol := make(map[string][]SessionBar)
	var latest time.Time
	for _, b := range bars {
		b.Date = Day(b.Date)
		prev := bySymbol[b.Symbol]
		if n := len(prev); n > 0 {
			last := prev[n-1].Date
			if b.Date.Equal(last) {
				return nil, fmt.Errorf("%w: %s @ %s", ErrDuplicateBar, b.Symbol, b.Date.Format(DateLayout))
			}
			if b.Date.Before(last) {
				return nil, fmt.Errorf("%w: %s has %s after %s", ErrOutOfOrder, b.Symbol, b.Date.Format(DateLayout), last.Format(DateLayout))
			}
		}
		bySymbol[b.Symbol] = append(prev, b)
		if b.Date.After(latest) {
			latest = b.Date
		}
	}
	symbols := make([]string, 0, len(bySymbol))
	for sym := range bySymbol {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return &Series{symbols: symbols, bySymbol: bySymbol, latest: latest}, nil
}

// Symbols returns the symbol set in sorted order. Iterating it keeps every
// downstream pass deterministic.
func (s *Series) Symbols() []string {
	return s.symbols
}

// Bars returns the date-ascending bars for one symbol.
func (s *Series) Bars(symbol string) []SessionBar {
	return s.bySymbol[symbol]
}

// LatestDate is the most recent session date across all symbols.
func (s *Series) LatestDate() time.Time {
	return s.latest
}

// Len is the total bar count.
func (s *Series) Len() int {
	n := 0
	for _, bars := range s.bySymbol {
		n += len(bars)
	}
	return n
}

// BarOn returns the bar for symbol on an exact session date.
func (s *Series) BarOn(symbol string, date time.Time) (SessionBar, bool) {
	date = Day(date)
	for _, b := range s.bySymbol[symbol] {
		if b.Date.Equal(date) {
			return b, true
		}
		if b.Date.After(date) {
			break
		}
	}
	return SessionBar{}, false
}

// FirstAfter returns the earliest bar for symbol strictly after the given
// date. Used by the nearest-future backtest alignment.
func (s *Series) FirstAfter(symbol string, date time.Time) (SessionBar, bool) {
	date = Day(date)
	for _, b := range s.bySymbol[symbol] {
		if b.Date.After(date) {
			return b, true
		}
	}
	return SessionBar{}, false
}

// AllBars flattens the series symbol-sorted, date-ascending.
func (s *Series) AllBars() []SessionBar {
	out := make([]SessionBar, 0, s.Len())
	for _, sym := range s.symbols {
		out = append(out, s.bySymbol[sym]...)
	}
	return out
}

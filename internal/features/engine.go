// Package features derives fixed-schema numeric vectors from session bars.
// All rolling computations are causal and scoped per symbol; the only
// forward-looking column is the train-mode label.
package features

import (
	"math"

	"github.com/markcheno/go-talib"

	"bhavcast/internal/market"
)

type Mode int

const (
	ModeTrain Mode = iota
	ModeForecast
)

// Engine derives feature rows for one horizon preset.
type Engine struct {
	preset Preset
	schema Schema
}

func NewEngine(p Preset) *Engine {
	return &Engine{preset: p, schema: p.BuildSchema()}
}

func (e *Engine) Schema() Schema {
	return e.schema
}

func (e *Engine) Preset() Preset {
	return e.preset
}

// Derive computes one schema-ordered row per (symbol, session).
//
// Train mode attaches the label (1 iff the next session's close is strictly
// greater) and drops each symbol's final session, whose label cannot be
// known yet. Forecast mode keeps only rows on the globally latest session
// date, since only the latest session can be forecast forward.
//
// Symbols are visited in sorted order and every computation is pure, so
// identical input yields byte-identical output.
func (e *Engine) Derive(series *market.Series, mode Mode) ([]Row, error) {
	if series == nil {
		return nil, market.ErrNoBars
	}
	latest := series.LatestDate()
	var out []Row
	for _, sym := range series.Symbols() {
		bars := series.Bars(sym)
		rows := e.deriveSymbol(sym, bars)
		switch mode {
		case ModeTrain:
			for i := 0; i+1 < len(bars); i++ {
				target := 0
				if bars[i+1].Close > bars[i].Close {
					target = 1
				}
				rows[i].Target = &target
				out = append(out, rows[i])
			}
		case ModeForecast:
			for _, r := range rows {
				if r.Date.Equal(latest) {
					out = append(out, r)
				}
			}
		}
	}
	return out, nil
}

func (e *Engine) deriveSymbol(symbol string, bars []market.SessionBar) []Row {
	n := len(bars)
	p := e.preset

	opens := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	ranges := make([]float64, n)
	for i, b := range bars {
		opens[i] = b.Open
		highs[i] = b.High
		lows[i] = b.Low
		closes[i] = b.Close
		volumes[i] = float64(b.Volume)
		ranges[i] = b.High - b.Low
	}

	smaClose := rollingMean(closes, p.SMAWindow)
	volAvg := rollingMean(volumes, p.VolumeWindow)
	rangeAvg := rollingMean(ranges, p.RangeWindow)
	atr := rollingMean(ranges, p.ATRWindow)
	bandHigh := rollingMax(highs, p.BandWindow)
	bandLow := rollingMin(lows, p.BandWindow)

	ema := undefinedSeries(n)
	if n >= p.EMAWindow {
		ema = fromTalib(talib.Ema(closes, p.EMAWindow), p.EMAWindow-1)
	}
	slope := undefinedSeries(n)
	if n >= p.SlopeWindow {
		slope = fromTalib(talib.LinearRegSlope(closes, p.SlopeWindow), p.SlopeWindow-1)
	}
	bbWidth := undefinedSeries(n)
	if n >= p.BBWindow {
		upper, middle, lower := talib.BBands(closes, p.BBWindow, 2, 2, talib.SMA)
		for i := p.BBWindow - 1; i < n; i++ {
			if middle[i] != 0 {
				bbWidth[i] = Some((upper[i] - lower[i]) / middle[i])
			}
		}
	}
	adx := undefinedSeries(n)
	if adxLookback := 2*p.ADXWindow - 1; n > adxLookback {
		adx = fromTalib(talib.Adx(highs, lows, closes, p.ADXWindow), adxLookback)
	}

	rows := make([]Row, n)
	for i, b := range bars {
		vals := make([]Value, 0, e.schema.Len())
		push := func(v Value) { vals = append(vals, v) }

		// price_change_t1
		push(lagRatio(closes, i, 1, func(cur, prev float64) float64 { return (cur - prev) / prev }))
		// close_t1, close_t2
		push(lag(closes, i, 1))
		push(lag(closes, i, 2))
		push(smaClose[i])
		// volume_t1, volume_avg, volume_spike_ratio
		push(lag(volumes, i, 1))
		push(volAvg[i])
		push(safeDiv(volumes[i], volAvg[i]))
		// deliv_ratio
		if b.HasDeliverable && b.Volume > 0 {
			push(Some(float64(b.DeliverableQty) / float64(b.Volume)))
		} else {
			push(None())
		}
		// hl_range, range_avg, range_compression_ratio, atr
		push(Some(ranges[i]))
		push(rangeAvg[i])
		push(safeDiv(ranges[i], rangeAvg[i]))
		push(atr[i])
		// gap_pct
		push(lagRatio(closes, i, 1, func(_, prev float64) float64 { return opens[i]/prev - 1 }))
		// body_to_range_ratio
		if ranges[i] != 0 {
			push(Some(math.Abs(closes[i]-opens[i]) / ranges[i]))
		} else {
			push(None())
		}
		// multi-session returns
		push(lagRatio(closes, i, p.ReturnShort, func(cur, prev float64) float64 { return cur/prev - 1 }))
		push(lagRatio(closes, i, p.ReturnLong, func(cur, prev float64) float64 { return cur/prev - 1 }))
		// ema distance
		if ema[i].Valid && ema[i].Float != 0 {
			push(Some(closes[i]/ema[i].Float - 1))
		} else {
			push(None())
		}
		// band position, clipped to [0,1] when the band has width
		if bandHigh[i].Valid && bandLow[i].Valid {
			width := bandHigh[i].Float - bandLow[i].Float
			if width > 0 {
				push(Some(clip01((closes[i] - bandLow[i].Float) / width)))
			} else {
				push(None())
			}
		} else {
			push(None())
		}
		// wick proportions
		if closes[i] != 0 {
			body := math.Max(opens[i], closes[i])
			push(Some((highs[i] - body) / closes[i]))
			body = math.Min(opens[i], closes[i])
			push(Some((body - lows[i]) / closes[i]))
		} else {
			push(None())
			push(None())
		}
		push(slope[i])
		push(bbWidth[i])
		push(adx[i])

		rows[i] = Row{Symbol: symbol, Date: b.Date, Values: vals}
	}
	return rows
}

func lag(vals []float64, i, k int) Value {
	if i < k {
		return None()
	}
	return Some(vals[i-k])
}

// lagRatio applies f(current, k-back) when the lagged value exists and is a
// usable denominator.
func lagRatio(vals []float64, i, k int, f func(cur, prev float64) float64) Value {
	if i < k || vals[i-k] == 0 {
		return None()
	}
	return Some(f(vals[i], vals[i-k]))
}

func safeDiv(num float64, den Value) Value {
	if !den.Valid || den.Float == 0 {
		return None()
	}
	return Some(num / den.Float)
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

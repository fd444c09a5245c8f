// Package backtest reconciles past forecasts against realized session bars
// and scores classification quality.
package backtest

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"bhavcast/internal/logger"
	"bhavcast/internal/market"
	"bhavcast/internal/predict"
)

type MatchMode int

const (
	// MatchExact aligns each forecast with the realized bar on exactly its
	// forecast session date.
	MatchExact MatchMode = iota
	// MatchNearestFuture aligns with the earliest realized bar strictly
	// after the forecast's origin date. Used when upload gaps make the
	// addressed session drift from the next bar that actually arrived.
	MatchNearestFuture
)

// Record is one scored forecast.
type Record struct {
	Symbol         string            `json:"symbol"`
	ForecastDate   time.Time         `json:"forecast_date"`
	RealizedDate   time.Time         `json:"realized_date"`
	Direction      predict.Direction `json:"direction"`
	ReferencePrice float64           `json:"reference_price"`
	RealizedPrice  float64           `json:"realized_price"`
	PercentMove    float64           `json:"percent_move"`
	Correct        bool              `json:"correct"`
	Confidence     float64           `json:"confidence"`
}

// Summary aggregates classification quality over the scored set. Bullish is
// the positive class; ground truth is whether the realized close exceeded
// the reference price.
type Summary struct {
	Total     int     `json:"total"`
	Correct   int     `json:"correct"`
	Unmatched int     `json:"unmatched"`
	Skipped   int     `json:"skipped"`
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`

	BullishTotal   int `json:"bullish_total"`
	BullishCorrect int `json:"bullish_correct"`
	BearishTotal   int `json:"bearish_total"`
	BearishCorrect int `json:"bearish_correct"`
}

// Movers isolates the forecasts whose absolute realized move exceeded the
// configured threshold and reports the weakest confidence among them. A
// monitoring signal, not a gate.
type Movers struct {
	Threshold     float64  `json:"threshold"`
	Count         int      `json:"count"`
	MinConfidence float64  `json:"min_confidence"`
	Symbols       []string `json:"symbols"`
}

type Result struct {
	Records []Record `json:"records"`
	Summary Summary  `json:"summary"`
	Movers  Movers   `json:"movers"`
}

type Options struct {
	Mode          MatchMode
	MoveThreshold float64
}

// Evaluate scores forecasts against realized bars. Forecasts whose session
// has not arrived yet are excluded and counted, never treated as failures.
//
// Correctness is symmetric: a forecast is correct iff its direction matches
// the realized direction, for bullish and bearish alike. A flat close
// (realized == reference) scores bullish as wrong and bearish as right,
// since the bullish call requires a strict rise.
func Evaluate(forecasts []predict.ForecastRecord, bars *market.Series, opts Options) Result {
	var res Result
	for _, f := range forecasts {
		bar, ok := match(f, bars, opts.Mode)
		if !ok {
			res.Summary.Unmatched++
			continue
		}
		// A bad reference price is a data-quality reject, not an
		// alignment miss, so it gets its own tally.
		if f.ReferencePrice <= 0 {
			logger.Warnf("forecast for %s has non-positive reference price, excluded", f.Symbol)
			res.Summary.Skipped++
			continue
		}
		rec := Record{
			Symbol:         f.Symbol,
			ForecastDate:   f.ForecastDate,
			RealizedDate:   bar.Date,
			Direction:      f.Direction,
			ReferencePrice: f.ReferencePrice,
			RealizedPrice:  bar.Close,
			PercentMove:    percentMove(f.ReferencePrice, bar.Close),
			Confidence:     f.Confidence,
		}
		realizedUp := bar.Close > f.ReferencePrice
		rec.Correct = (f.Direction == predict.DirectionBullish) == realizedUp
		res.Records = append(res.Records, rec)
	}
	sort.SliceStable(res.Records, func(i, j int) bool {
		if res.Records[i].Confidence != res.Records[j].Confidence {
			return res.Records[i].Confidence > res.Records[j].Confidence
		}
		return res.Records[i].Symbol < res.Records[j].Symbol
	})
	res.Summary = summarize(res.Records, res.Summary.Unmatched, res.Summary.Skipped)
	res.Movers = movers(res.Records, opts.MoveThreshold)
	return res
}

func match(f predict.ForecastRecord, bars *market.Series, mode MatchMode) (market.SessionBar, bool) {
	switch mode {
	case MatchNearestFuture:
		return bars.FirstAfter(f.Symbol, f.OriginDate)
	default:
		return bars.BarOn(f.Symbol, f.ForecastDate)
	}
}

// percentMove is ((realized - reference) / reference) * 100 rounded to two
// decimal places, computed in decimal so the rounding is exact.
func percentMove(reference, realized float64) float64 {
	ref := decimal.NewFromFloat(reference)
	move := decimal.NewFromFloat(realized).Sub(ref).Div(ref).Mul(decimal.NewFromInt(100)).Round(2)
	f, _ := move.Float64()
	return f
}

func summarize(records []Record, unmatched, skipped int) Summary {
	s := Summary{Total: len(records), Unmatched: unmatched, Skipped: skipped}
	var tp, fp, fn int
	for _, r := range records {
		if r.Correct {
			s.Correct++
		}
		realizedUp := r.RealizedPrice > r.ReferencePrice
		if r.Direction == predict.DirectionBullish {
			s.BullishTotal++
			if r.Correct {
				s.BullishCorrect++
			}
			if realizedUp {
				tp++
			} else {
				fp++
			}
		} else {
			s.BearishTotal++
			if r.Correct {
				s.BearishCorrect++
			}
			if realizedUp {
				fn++
			}
		}
	}
	// Division by zero is special-cased to 0 everywhere: an empty scored set
	// has zero accuracy, not NaN.
	s.Accuracy = ratio(s.Correct, s.Total)
	s.Precision = ratio(tp, tp+fp)
	s.Recall = ratio(tp, tp+fn)
	if s.Precision+s.Recall > 0 {
		s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
	}
	return s
}

func movers(records []Record, threshold float64) Movers {
	m := Movers{Threshold: threshold}
	for _, r := range records {
		move := r.PercentMove
		if move < 0 {
			move = -move
		}
		if move <= threshold {
			continue
		}
		if m.Count == 0 || r.Confidence < m.MinConfidence {
			m.MinConfidence = r.Confidence
		}
		m.Count++
		m.Symbols = append(m.Symbols, r.Symbol)
	}
	return m
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// Package predict turns latest-session feature vectors into dated, ranked
// forecast records.
package predict

import (
	"fmt"
	"sort"
	"time"

	"bhavcast/internal/calendar"
	"bhavcast/internal/features"
	"bhavcast/internal/logger"
	"bhavcast/internal/market"
	"bhavcast/internal/model"
)

// Engine binds the opaque classifier to the trading calendar.
type Engine struct {
	clf     model.Classifier
	cal     *calendar.Calendar
	imputer model.Imputer
}

func NewEngine(clf model.Classifier, cal *calendar.Calendar) *Engine {
	return &Engine{clf: clf, cal: cal, imputer: model.Imputer{Fill: 0}}
}

// Forecast scores the given forecast-mode rows and returns the records that
// clear the confidence threshold, sorted by confidence descending (symbol
// ascending on ties, so ranking is reproducible). An empty result is a valid
// outcome, not an error: it means no forecast was strong enough today.
func (e *Engine) Forecast(series *market.Series, rows []features.Row, threshold float64) ([]ForecastRecord, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	preds, err := e.clf.PredictBatch(e.imputer.Matrix(rows))
	if err != nil {
		return nil, fmt.Errorf("classifier failed: %w", err)
	}

	// Rows for one run share the origin session, so next-day resolution is
	// cached per distinct date.
	nextDay := make(map[time.Time]time.Time)
	resolve := func(origin time.Time) (time.Time, error) {
		if d, ok := nextDay[origin]; ok {
			return d, nil
		}
		d, err := e.cal.NextTradingDay(origin)
		if err != nil {
			return time.Time{}, err
		}
		nextDay[origin] = d
		return d, nil
	}

	var out []ForecastRecord
	for i, row := range rows {
		pred := preds[i]
		if pred.Confidence < threshold {
			continue
		}
		target, err := resolve(row.Date)
		if err != nil {
			return nil, err
		}
		bar, ok := series.BarOn(row.Symbol, row.Date)
		if !ok {
			// The engine derived this row from the same series, so a missing
			// bar means the caller mixed inputs from different loads.
			return nil, fmt.Errorf("no session bar for %s on %s", row.Symbol, row.Date.Format(market.DateLayout))
		}
		out = append(out, ForecastRecord{
			Symbol:         row.Symbol,
			OriginDate:     row.Date,
			ForecastDate:   target,
			Direction:      DirectionForLabel(pred.Label),
			Confidence:     pred.Confidence,
			ReferencePrice: bar.Close,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Symbol < out[j].Symbol
	})
	if len(out) == 0 {
		logger.Infof("no forecasts cleared confidence threshold %.2f", threshold)
	}
	return out, nil
}

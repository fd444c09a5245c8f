package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bhavcast/internal/market"
	"bhavcast/internal/predict"
)

var (
	origin   = time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	target   = time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC)
	dayAfter = time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)
)

func forecast(symbol string, dir predict.Direction, conf, ref float64) predict.ForecastRecord {
	return predict.ForecastRecord{
		Symbol:         symbol,
		OriginDate:     origin,
		ForecastDate:   target,
		Direction:      dir,
		Confidence:     conf,
		ReferencePrice: ref,
	}
}

func realizedSeries(t *testing.T, closes map[string]float64, date time.Time) *market.Series {
	t.Helper()
	bars := make([]market.SessionBar, 0, len(closes))
	for sym, c := range closes {
		bars = append(bars, market.SessionBar{
			Symbol: sym, Date: date,
			Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000,
		})
	}
	s, err := market.NewSeries(bars)
	require.NoError(t, err)
	return s
}

func TestEvaluateSymmetricCorrectness(t *testing.T) {
	forecasts := []predict.ForecastRecord{
		forecast("UPRIGHT", predict.DirectionBullish, 0.9, 100), // rises: correct
		forecast("UPWRONG", predict.DirectionBearish, 0.8, 100), // rises: wrong
		forecast("DNRIGHT", predict.DirectionBearish, 0.7, 100), // falls: correct
		forecast("DNWRONG", predict.DirectionBullish, 0.6, 100), // falls: wrong
		forecast("FLATBULL", predict.DirectionBullish, 0.65, 100),
		forecast("FLATBEAR", predict.DirectionBearish, 0.55, 100),
	}
	series := realizedSeries(t, map[string]float64{
		"UPRIGHT": 103, "UPWRONG": 103,
		"DNRIGHT": 97, "DNWRONG": 97,
		"FLATBULL": 100, "FLATBEAR": 100,
	}, target)

	res := Evaluate(forecasts, series, Options{Mode: MatchExact, MoveThreshold: 4})
	require.Len(t, res.Records, 6)

	byRecord := map[string]bool{}
	for _, r := range res.Records {
		byRecord[r.Symbol] = r.Correct
	}
	assert.True(t, byRecord["UPRIGHT"])
	assert.False(t, byRecord["UPWRONG"])
	assert.True(t, byRecord["DNRIGHT"])
	assert.False(t, byRecord["DNWRONG"])
	// Flat close: the bullish call needed a strict rise, the bearish did not.
	assert.False(t, byRecord["FLATBULL"])
	assert.True(t, byRecord["FLATBEAR"])

	assert.Equal(t, 6, res.Summary.Total)
	assert.Equal(t, 3, res.Summary.Correct)
	assert.InDelta(t, 0.5, res.Summary.Accuracy, 1e-9)
}

func TestEvaluatePrecisionRecallF1(t *testing.T) {
	// Bullish is positive. TP=1 (UPRIGHT), FP=1 (DNWRONG), FN=1 (UPWRONG).
	forecasts := []predict.ForecastRecord{
		forecast("UPRIGHT", predict.DirectionBullish, 0.9, 100),
		forecast("UPWRONG", predict.DirectionBearish, 0.8, 100),
		forecast("DNWRONG", predict.DirectionBullish, 0.7, 100),
		forecast("DNRIGHT", predict.DirectionBearish, 0.6, 100),
	}
	series := realizedSeries(t, map[string]float64{
		"UPRIGHT": 105, "UPWRONG": 105, "DNWRONG": 95, "DNRIGHT": 95,
	}, target)

	res := Evaluate(forecasts, series, Options{Mode: MatchExact})
	s := res.Summary
	assert.InDelta(t, 0.5, s.Precision, 1e-9)
	assert.InDelta(t, 0.5, s.Recall, 1e-9)
	assert.InDelta(t, 0.5, s.F1, 1e-9)
	assert.Equal(t, 2, s.BullishTotal)
	assert.Equal(t, 1, s.BullishCorrect)
	assert.Equal(t, 2, s.BearishTotal)
	assert.Equal(t, 1, s.BearishCorrect)
}

func TestEvaluateUnmatchedAreCountedNotFailed(t *testing.T) {
	forecasts := []predict.ForecastRecord{
		forecast("ABC", predict.DirectionBullish, 0.9, 100),
		forecast("GONE", predict.DirectionBullish, 0.8, 50),
	}
	series := realizedSeries(t, map[string]float64{"ABC": 101}, target)

	res := Evaluate(forecasts, series, Options{Mode: MatchExact})
	assert.Len(t, res.Records, 1)
	assert.Equal(t, 1, res.Summary.Unmatched)
	assert.Equal(t, 1, res.Summary.Total)
}

func TestEvaluateBadReferencePriceIsSkippedNotUnmatched(t *testing.T) {
	forecasts := []predict.ForecastRecord{
		forecast("ABC", predict.DirectionBullish, 0.9, 100),
		forecast("BADREF", predict.DirectionBullish, 0.8, 0),
		forecast("GONE", predict.DirectionBullish, 0.7, 50),
	}
	series := realizedSeries(t, map[string]float64{"ABC": 101, "BADREF": 55}, target)

	res := Evaluate(forecasts, series, Options{Mode: MatchExact})
	assert.Len(t, res.Records, 1)
	assert.Equal(t, 1, res.Summary.Total)
	// The bar for BADREF arrived; only its reference price is unusable.
	assert.Equal(t, 1, res.Summary.Skipped)
	assert.Equal(t, 1, res.Summary.Unmatched)
}

func TestEvaluateEmptyScoredSetHasZeroMetrics(t *testing.T) {
	forecasts := []predict.ForecastRecord{
		forecast("GONE", predict.DirectionBullish, 0.8, 50),
	}
	series := realizedSeries(t, map[string]float64{"OTHER": 10}, target)

	res := Evaluate(forecasts, series, Options{Mode: MatchExact})
	s := res.Summary
	assert.Empty(t, res.Records)
	assert.Equal(t, 1, s.Unmatched)
	assert.Zero(t, s.Accuracy)
	assert.Zero(t, s.Precision)
	assert.Zero(t, s.Recall)
	assert.Zero(t, s.F1)
}

func TestEvaluatePercentMoveRoundsToTwoDecimals(t *testing.T) {
	forecasts := []predict.ForecastRecord{
		forecast("ABC", predict.DirectionBullish, 0.9, 100),
		forecast("XYZ", predict.DirectionBearish, 0.8, 30),
	}
	series := realizedSeries(t, map[string]float64{
		"ABC": 104.567, // +4.567% -> 4.57
		"XYZ": 29.11,   // -2.9666...% -> -2.97
	}, target)

	res := Evaluate(forecasts, series, Options{Mode: MatchExact})
	moves := map[string]float64{}
	for _, r := range res.Records {
		moves[r.Symbol] = r.PercentMove
	}
	assert.Equal(t, 4.57, moves["ABC"])
	assert.Equal(t, -2.97, moves["XYZ"])
}

func TestEvaluateNearestFutureMatching(t *testing.T) {
	// The forecast addressed 2024-06-11 but the next bar that actually
	// arrived is from the day after.
	forecasts := []predict.ForecastRecord{
		forecast("ABC", predict.DirectionBullish, 0.9, 100),
	}
	series := realizedSeries(t, map[string]float64{"ABC": 102}, dayAfter)

	exact := Evaluate(forecasts, series, Options{Mode: MatchExact})
	assert.Empty(t, exact.Records)
	assert.Equal(t, 1, exact.Summary.Unmatched)

	nearest := Evaluate(forecasts, series, Options{Mode: MatchNearestFuture})
	require.Len(t, nearest.Records, 1)
	assert.Equal(t, dayAfter, nearest.Records[0].RealizedDate)
	assert.True(t, nearest.Records[0].Correct)
}

func TestEvaluateMoversReport(t *testing.T) {
	forecasts := []predict.ForecastRecord{
		forecast("BIGUP", predict.DirectionBullish, 0.92, 100),
		forecast("BIGDN", predict.DirectionBearish, 0.61, 100),
		forecast("SMALL", predict.DirectionBullish, 0.85, 100),
	}
	series := realizedSeries(t, map[string]float64{
		"BIGUP": 106, "BIGDN": 94, "SMALL": 101,
	}, target)

	res := Evaluate(forecasts, series, Options{Mode: MatchExact, MoveThreshold: 4})
	m := res.Movers
	assert.Equal(t, 2, m.Count)
	assert.Equal(t, []string{"BIGUP", "BIGDN"}, m.Symbols)
	assert.InDelta(t, 0.61, m.MinConfidence, 1e-9)
}

func TestEvaluateRecordsSortedByConfidence(t *testing.T) {
	forecasts := []predict.ForecastRecord{
		forecast("LOW", predict.DirectionBullish, 0.6, 100),
		forecast("HIGH", predict.DirectionBullish, 0.9, 100),
		forecast("MID", predict.DirectionBearish, 0.7, 100),
	}
	series := realizedSeries(t, map[string]float64{
		"LOW": 101, "HIGH": 101, "MID": 99,
	}, target)

	res := Evaluate(forecasts, series, Options{Mode: MatchExact})
	require.Len(t, res.Records, 3)
	assert.Equal(t, "HIGH", res.Records[0].Symbol)
	assert.Equal(t, "MID", res.Records[1].Symbol)
	assert.Equal(t, "LOW", res.Records[2].Symbol)
}

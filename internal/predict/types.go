package predict

import "time"

type Direction string

const (
	DirectionBullish Direction = "bullish"
	DirectionBearish Direction = "bearish"
)

// DirectionForLabel maps a classifier label to its market direction.
func DirectionForLabel(label int) Direction {
	if label == 1 {
		return DirectionBullish
	}
	return DirectionBearish
}

// ForecastRecord is one retained directional forecast. OriginDate is the
// session whose bar produced the features; ForecastDate is the next tradable
// session the forecast addresses. Records below the confidence threshold are
// never created, so every persisted record satisfies the threshold.
type ForecastRecord struct {
	Symbol         string    `json:"symbol"`
	OriginDate     time.Time `json:"origin_date"`
	ForecastDate   time.Time `json:"forecast_date"`
	Direction      Direction `json:"direction"`
	Confidence     float64   `json:"confidence"`
	ReferencePrice float64   `json:"reference_price"`
}

// Band is one confidence reporting band, half-open on the low end: (low, high].
type Band struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Contains reports band membership.
func (b Band) Contains(conf float64) bool {
	return conf > b.Low && conf <= b.High
}

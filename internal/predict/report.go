package predict

import (
	"fmt"
	"strings"

	"bhavcast/internal/market"
)

// BandSummary lists the symbols whose confidence fell in one band.
type BandSummary struct {
	Band    Band     `json:"band"`
	Symbols []string `json:"symbols"`
}

// PartitionByBand buckets retained records for reporting. Input order is
// preserved inside each band, so symbols appear confidence-descending.
func PartitionByBand(records []ForecastRecord, bands []Band) []BandSummary {
	out := make([]BandSummary, len(bands))
	for i, b := range bands {
		out[i].Band = b
	}
	for _, r := range records {
		for i, b := range bands {
			if b.Contains(r.Confidence) {
				out[i].Symbols = append(out[i].Symbols, r.Symbol)
				break
			}
		}
	}
	return out
}

// RenderReport formats the forecast run summary: top signals per direction,
// average confidences and the confidence zones.
func RenderReport(records []ForecastRecord, bands []Band, topN int) string {
	var b strings.Builder
	if len(records) == 0 {
		return "no forecasts retained"
	}
	fmt.Fprintf(&b, "forecasts for %s (from session %s): %d retained\n",
		records[0].ForecastDate.Format(market.DateLayout),
		records[0].OriginDate.Format(market.DateLayout),
		len(records))

	var bullish, bearish []ForecastRecord
	for _, r := range records {
		if r.Direction == DirectionBullish {
			bullish = append(bullish, r)
		} else {
			bearish = append(bearish, r)
		}
	}
	writeSide := func(label string, side []ForecastRecord) {
		if len(side) == 0 {
			return
		}
		names := make([]string, 0, topN)
		sum := 0.0
		for i, r := range side {
			if i < topN {
				names = append(names, r.Symbol)
			}
			sum += r.Confidence
		}
		fmt.Fprintf(&b, "top %s: %s (avg confidence %.4f over %d)\n",
			label, strings.Join(names, ", "), sum/float64(len(side)), len(side))
	}
	writeSide("bullish", bullish)
	writeSide("bearish", bearish)

	b.WriteString("confidence zones:\n")
	for _, zone := range PartitionByBand(records, bands) {
		if len(zone.Symbols) == 0 {
			continue
		}
		fmt.Fprintf(&b, "  (%.1f, %.1f]: %s\n", zone.Band.Low, zone.Band.High, strings.Join(zone.Symbols, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

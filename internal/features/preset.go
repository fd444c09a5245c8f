package features

import "fmt"

// Preset fixes every rolling window for one forecast horizon. Daily and
// weekly derivations share the same engine; only the windows differ.
type Preset struct {
	Horizon      string
	SMAWindow    int // close moving average
	VolumeWindow int // volume moving average
	RangeWindow  int // high-low range moving average
	ATRWindow    int // average true range proxy
	ReturnShort  int // short multi-session return horizon
	ReturnLong   int // long multi-session return horizon
	EMAWindow    int // exponential moving average distance
	BandWindow   int // high/low band position
	SlopeWindow  int // linear regression slope of close
	BBWindow     int // Bollinger band width
	ADXWindow    int // directional movement trend strength
}

func Daily() Preset {
	return Preset{
		Horizon:      "daily",
		SMAWindow:    5,
		VolumeWindow: 3,
		RangeWindow:  3,
		ATRWindow:    5,
		ReturnShort:  3,
		ReturnLong:   5,
		EMAWindow:    5,
		BandWindow:   5,
		SlopeWindow:  5,
		BBWindow:     5,
		ADXWindow:    14,
	}
}

func Weekly() Preset {
	return Preset{
		Horizon:      "weekly",
		SMAWindow:    3,
		VolumeWindow: 2,
		RangeWindow:  2,
		ATRWindow:    3,
		ReturnShort:  2,
		ReturnLong:   3,
		EMAWindow:    3,
		BandWindow:   3,
		SlopeWindow:  3,
		BBWindow:     3,
		ADXWindow:    4,
	}
}

// BuildSchema materializes the fixed column layout for the preset. Window
// sizes are baked into the column names, as the processed datasets name
// them, so a daily artifact can never silently score weekly vectors.
func (p Preset) BuildSchema() Schema {
	f := func(name string, window int) Field {
		return Field{Name: name, Window: window}
	}
	return Schema{
		Version: SchemaVersion,
		Horizon: p.Horizon,
		Fields: []Field{
			f("price_change_t1", 0),
			f("close_t1", 0),
			f("close_t2", 0),
			f(fmt.Sprintf("sma_%d", p.SMAWindow), p.SMAWindow),
			f("volume_t1", 0),
			f(fmt.Sprintf("volume_avg_%d", p.VolumeWindow), p.VolumeWindow),
			f("volume_spike_ratio", p.VolumeWindow),
			f("deliv_ratio", 0),
			f("hl_range", 0),
			f(fmt.Sprintf("range_avg_%d", p.RangeWindow), p.RangeWindow),
			f("range_compression_ratio", p.RangeWindow),
			f(fmt.Sprintf("atr_%d", p.ATRWindow), p.ATRWindow),
			f("gap_pct", 0),
			f("body_to_range_ratio", 0),
			f(fmt.Sprintf("return_%d", p.ReturnShort), p.ReturnShort),
			f(fmt.Sprintf("return_%d", p.ReturnLong), p.ReturnLong),
			f(fmt.Sprintf("ema_dist_%d", p.EMAWindow), p.EMAWindow),
			f(fmt.Sprintf("band_position_%d", p.BandWindow), p.BandWindow),
			f("upper_wick_pct", 0),
			f("lower_wick_pct", 0),
			f(fmt.Sprintf("slope_%d", p.SlopeWindow), p.SlopeWindow),
			f(fmt.Sprintf("bb_width_%d", p.BBWindow), p.BBWindow),
			f(fmt.Sprintf("adx_%d", p.ADXWindow), p.ADXWindow),
		},
	}
}

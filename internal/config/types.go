package config

import "strings"

// Config is the top-level configuration for bhavcast.
type Config struct {
	App      AppConfig      `toml:"app"`
	Data     DataConfig     `toml:"data"`
	Features FeaturesConfig `toml:"features"`
	Calendar CalendarConfig `toml:"calendar"`
	Predict  PredictConfig  `toml:"predict"`
	Backtest BacktestConfig `toml:"backtest"`
	Schedule ScheduleConfig `toml:"schedule"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
	HTTPAddr string `toml:"http_addr"`
}

// DataConfig locates the externally ingested inputs and the local stores.
type DataConfig struct {
	BhavcopyDir string `toml:"bhavcopy_dir"`
	HolidayDir  string `toml:"holiday_dir"`
	ArchivePath string `toml:"archive_path"`
	StorePath   string `toml:"store_path"`
	// LookbackSessions bounds a full recompute to the last N session files.
	// Zero means all available history.
	LookbackSessions int `toml:"lookback_sessions"`
	// RetainRunDays prunes persisted runs older than N days after each new
	// run. Zero keeps everything.
	RetainRunDays int `toml:"retain_run_days"`
}

type FeaturesConfig struct {
	Horizon string `toml:"horizon"` // "daily" | "weekly"
}

type CalendarConfig struct {
	Source              string `toml:"source"` // "file" | "web"
	FetchTimeoutSeconds int    `toml:"fetch_timeout_seconds"`
}

// Bucket is one confidence band, half-open on the low end: (low, high].
type Bucket struct {
	Low  float64 `toml:"low" json:"low"`
	High float64 `toml:"high" json:"high"`
}

type PredictConfig struct {
	ModelPath           string   `toml:"model_path"`
	ConfidenceThreshold float64  `toml:"confidence_threshold"`
	Buckets             []Bucket `toml:"buckets"`
	OutputDir           string   `toml:"output_dir"`
	TopN                int      `toml:"top_n"`
}

type BacktestConfig struct {
	Mode                 string  `toml:"mode"` // "exact" | "nearest"
	PercentMoveThreshold float64 `toml:"percent_move_threshold"`
	OutputDir            string  `toml:"output_dir"`
}

type ScheduleConfig struct {
	Enabled  bool   `toml:"enabled"`
	RunAt    string `toml:"run_at"` // "HH:MM" local to Timezone
	Timezone string `toml:"timezone"`
	Watch    bool   `toml:"watch"`
}

// IsWeekly reports whether the weekly horizon preset is selected.
func (f FeaturesConfig) IsWeekly() bool {
	return strings.EqualFold(strings.TrimSpace(f.Horizon), "weekly")
}

type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

package config

import "strings"

const (
	defaultAppEnv            = "dev"
	defaultAppLogLevel       = "info"
	defaultAppHTTPAddr       = ":9985"
	defaultDataBhavcopyDir   = "data/bhavcopies"
	defaultDataHolidayDir    = "data/holidays"
	defaultDataArchivePath   = "data/archive/bars.db"
	defaultDataStorePath     = "data/store/runs.db"
	defaultFeaturesHorizon   = "daily"
	defaultCalendarSource    = "file"
	defaultCalendarTimeout   = 20
	defaultPredictModelPath  = "models/daily_linear.json"
	defaultPredictThreshold  = 0.6
	defaultPredictOutputDir  = "outputs/daily"
	defaultPredictTopN       = 5
	defaultBacktestMode      = "exact"
	defaultBacktestMoveThld  = 4.0
	defaultBacktestOutputDir = "outputs/backtest"
	defaultScheduleRunAt     = "18:30"
	defaultScheduleTimezone  = "Asia/Kolkata"
)

func defaultBuckets() []Bucket {
	return []Bucket{
		{Low: 0.9, High: 1.0},
		{Low: 0.7, High: 0.9},
		{Low: 0.5, High: 0.7},
	}
}

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Data.applyDefaults(keys)
	c.Features.applyDefaults(keys)
	c.Calendar.applyDefaults(keys)
	c.Predict.applyDefaults(keys)
	c.Backtest.applyDefaults(keys)
	c.Schedule.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (d *DataConfig) applyDefaults(keys keySet) {
	if d == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("data.bhavcopy_dir", &d.BhavcopyDir, defaultDataBhavcopyDir),
		stringFieldDefault("data.holiday_dir", &d.HolidayDir, defaultDataHolidayDir),
		stringFieldDefault("data.archive_path", &d.ArchivePath, defaultDataArchivePath),
		stringFieldDefault("data.store_path", &d.StorePath, defaultDataStorePath),
	)
	if d.LookbackSessions < 0 {
		d.LookbackSessions = 0
	}
	if d.RetainRunDays < 0 {
		d.RetainRunDays = 0
	}
}

func (f *FeaturesConfig) applyDefaults(keys keySet) {
	if f == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("features.horizon", &f.Horizon, defaultFeaturesHorizon),
	)
}

func (c *CalendarConfig) applyDefaults(keys keySet) {
	if c == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("calendar.source", &c.Source, defaultCalendarSource),
		fieldDefault{
			key:   "calendar.fetch_timeout_seconds",
			need:  func() bool { return c.FetchTimeoutSeconds <= 0 },
			apply: func() { c.FetchTimeoutSeconds = defaultCalendarTimeout },
		},
	)
}

func (p *PredictConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("predict.model_path", &p.ModelPath, defaultPredictModelPath),
		stringFieldDefault("predict.output_dir", &p.OutputDir, defaultPredictOutputDir),
		fieldDefault{
			key:   "predict.confidence_threshold",
			need:  func() bool { return p.ConfidenceThreshold <= 0 },
			apply: func() { p.ConfidenceThreshold = defaultPredictThreshold },
		},
		fieldDefault{
			key:   "predict.top_n",
			need:  func() bool { return p.TopN <= 0 },
			apply: func() { p.TopN = defaultPredictTopN },
		},
		fieldDefault{
			key:   "predict.buckets",
			need:  func() bool { return len(p.Buckets) == 0 },
			apply: func() { p.Buckets = defaultBuckets() },
		},
	)
}

func (b *BacktestConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("backtest.mode", &b.Mode, defaultBacktestMode),
		stringFieldDefault("backtest.output_dir", &b.OutputDir, defaultBacktestOutputDir),
		fieldDefault{
			key:   "backtest.percent_move_threshold",
			need:  func() bool { return b.PercentMoveThreshold <= 0 },
			apply: func() { b.PercentMoveThreshold = defaultBacktestMoveThld },
		},
	)
}

func (s *ScheduleConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("schedule.run_at", &s.RunAt, defaultScheduleRunAt),
		stringFieldDefault("schedule.timezone", &s.Timezone, defaultScheduleTimezone),
	)
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

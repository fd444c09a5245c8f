package config

import (
	"fmt"
	"strings"
	"time"
)

func validate(c *Config) error {
	if err := c.Features.validate(); err != nil {
		return err
	}
	if err := c.Calendar.validate(); err != nil {
		return err
	}
	if err := c.Predict.validate(); err != nil {
		return err
	}
	if err := c.Backtest.validate(); err != nil {
		return err
	}
	return c.Schedule.validate()
}

func (f *FeaturesConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(f.Horizon)) {
	case "daily", "weekly":
		return nil
	default:
		return fmt.Errorf("features.horizon must be daily or weekly, got %q", f.Horizon)
	}
}

func (c *CalendarConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Source)) {
	case "file", "web":
		return nil
	default:
		return fmt.Errorf("calendar.source must be file or web, got %q", c.Source)
	}
}

func (p *PredictConfig) validate() error {
	if p.ConfidenceThreshold < 0 || p.ConfidenceThreshold > 1 {
		return fmt.Errorf("predict.confidence_threshold must be within [0,1], got %v", p.ConfidenceThreshold)
	}
	for i, b := range p.Buckets {
		if b.Low < 0 || b.High > 1 || b.Low >= b.High {
			return fmt.Errorf("predict.buckets[%d] invalid band (%v, %v]", i, b.Low, b.High)
		}
	}
	return nil
}

func (b *BacktestConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(b.Mode)) {
	case "exact", "nearest":
		return nil
	default:
		return fmt.Errorf("backtest.mode must be exact or nearest, got %q", b.Mode)
	}
}

func (s *ScheduleConfig) validate() error {
	if !s.Enabled {
		return nil
	}
	if _, err := time.Parse("15:04", strings.TrimSpace(s.RunAt)); err != nil {
		return fmt.Errorf("schedule.run_at must be HH:MM, got %q", s.RunAt)
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("schedule.timezone invalid: %w", err)
	}
	return nil
}

// Package scheduler fires the daily pipeline after the exchange publishes
// its end-of-day files.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bhavcast/internal/calendar"
	"bhavcast/internal/logger"
)

// Job is the work the scheduler triggers once per trading day.
type Job func(ctx context.Context) error

type Scheduler struct {
	cal   *calendar.Calendar
	loc   *time.Location
	hour  int
	min   int
	job   Job
	clock func() time.Time
}

// New builds a scheduler that runs job at runAt (HH:MM, exchange local time)
// on trading days only.
func New(cal *calendar.Calendar, runAt string, loc *time.Location, job Job) (*Scheduler, error) {
	hour, min, err := parseRunAt(runAt)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cal:   cal,
		loc:   loc,
		hour:  hour,
		min:   min,
		job:   job,
		clock: time.Now,
	}, nil
}

// Run blocks until ctx is cancelled, firing the job once per scheduled slot.
// A failed run is logged and the next slot is still scheduled; the exchange
// publishes again tomorrow regardless.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		next := s.nextFire(s.clock().In(s.loc))
		logger.Infof("scheduler: next run at %s", next.Format("2006-01-02 15:04 MST"))
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if err := s.job(ctx); err != nil {
			logger.Errorf("scheduled run failed: %v", err)
		}
	}
}

// nextFire finds the next trading-day slot strictly after now. Weekends and
// holidays are skipped; if holiday data for a year is missing the day is
// treated as trading so the run surfaces the calendar error itself.
func (s *Scheduler) nextFire(now time.Time) time.Time {
	day := now
	slot := time.Date(day.Year(), day.Month(), day.Day(), s.hour, s.min, 0, 0, s.loc)
	if !slot.After(now) {
		day = day.AddDate(0, 0, 1)
	}
	for i := 0; i < 366; i++ {
		trading, err := s.cal.IsTradingDay(day)
		if err != nil {
			logger.Warnf("scheduler: holiday data unavailable for %d, assuming trading day: %v", day.Year(), err)
			trading = day.Weekday() != time.Saturday && day.Weekday() != time.Sunday
		}
		if trading {
			return time.Date(day.Year(), day.Month(), day.Day(), s.hour, s.min, 0, 0, s.loc)
		}
		day = day.AddDate(0, 0, 1)
	}
	// Unreachable with sane holiday data; fall back to tomorrow.
	day = now.AddDate(0, 0, 1)
	return time.Date(day.Year(), day.Month(), day.Day(), s.hour, s.min, 0, 0, s.loc)
}

func parseRunAt(runAt string) (int, int, error) {
	parts := strings.SplitN(strings.TrimSpace(runAt), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("run_at must be HH:MM, got %q", runAt)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("run_at hour out of range: %q", runAt)
	}
	min, err := strconv.Atoi(parts[1])
	if err != nil || min < 0 || min > 59 {
		return 0, 0, fmt.Errorf("run_at minute out of range: %q", runAt)
	}
	return hour, min, nil
}

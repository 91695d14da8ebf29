// Package scheduler runs the monitoring job on a recurring cadence,
// either every N hours or at fixed times of day in shop time.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel"

	"vitasana-backend/lib/timezone"
)

var tracer = otel.Tracer("services/scheduler")

const (
	ModeInterval   = "interval"
	ModeFixedTimes = "fixed_times"
)

// Slots used when fixed-times mode is configured without any times:
// morning open, late morning, afternoon and evening restock checks.
var DefaultSlots = []string{"06:00", "10:30", "15:00", "21:30"}

// Job is one monitoring run. Errors are logged, never fatal: the
// scheduler keeps its cadence regardless.
type Job func(ctx context.Context) error

type Config struct {
	// Mode defaults to interval.
	Mode string
	// Interval between runs in interval mode. Defaults to 6 hours.
	Interval time.Duration
	// FixedTimes holds "HH:MM" slots in shop time for fixed-times
	// mode.
	FixedTimes []string
}

type Scheduler struct {
	mode     string
	interval time.Duration
	slots    []time.Duration
	job      Job
}

func NewScheduler(config Config, job Job) (*Scheduler, error) {
	mode := config.Mode
	if mode == "" {
		mode = ModeInterval
	}
	if mode != ModeInterval && mode != ModeFixedTimes {
		return nil, fmt.Errorf("unknown scheduler mode %q", config.Mode)
	}

	interval := config.Interval
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	var slots []time.Duration
	if mode == ModeFixedTimes {
		fixedTimes := config.FixedTimes
		if len(fixedTimes) == 0 {
			fixedTimes = DefaultSlots
		}
		for _, slot := range fixedTimes {
			parsed, err := time.Parse("15:04", slot)
			if err != nil {
				return nil, fmt.Errorf("invalid fixed time %q: %w", slot, err)
			}
			slots = append(slots,
				time.Duration(parsed.Hour())*time.Hour+time.Duration(parsed.Minute())*time.Minute)
		}
		slices.Sort(slots)
	}

	return &Scheduler{
		mode:     mode,
		interval: interval,
		slots:    slots,
		job:      job,
	}, nil
}

// NextRun returns the first scheduled time strictly after now. In
// interval mode that is simply now plus the interval; in fixed-times
// mode it is the next slot today, or the earliest slot tomorrow when
// every slot has already passed.
func (s *Scheduler) NextRun(now time.Time) time.Time {
	if s.mode == ModeInterval {
		return now.Add(s.interval)
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for _, slot := range s.slots {
		at := midnight.Add(slot)
		if at.After(now) {
			return at
		}
	}
	return midnight.AddDate(0, 0, 1).Add(s.slots[0])
}

// Run executes the job once immediately, then keeps running it on
// schedule until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.runJob(ctx)

	next := s.NextRun(timezone.Now())
	slog.InfoContext(ctx, "next scheduled run", "at", next)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "scheduler stopped")
			return
		case <-ticker.C:
			now := timezone.Now()
			if now.Before(next) {
				continue
			}
			s.runJob(ctx)
			next = s.NextRun(timezone.Now())
			slog.InfoContext(ctx, "next scheduled run", "at", next)
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "runJob")
	defer span.End()

	start := timezone.Now()
	err := s.job(ctx)
	if err != nil {
		span.RecordError(err)
		slog.ErrorContext(ctx, "scheduled run failed", "err", err)
		return
	}
	slog.InfoContext(ctx, "scheduled run finished", "took", time.Since(start))
}

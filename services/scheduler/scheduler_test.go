package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vitasana-backend/lib/timezone"
)

func TestNextRunInterval(t *testing.T) {
	s, err := NewScheduler(Config{Mode: ModeInterval, Interval: 4 * time.Hour}, nil)
	require.NoError(t, err)

	now := time.Date(2026, 3, 10, 9, 15, 0, 0, timezone.Location)
	require.Equal(t, now.Add(4*time.Hour), s.NextRun(now))
}

func TestNextRunFixedTimes(t *testing.T) {
	s, err := NewScheduler(Config{
		Mode:       ModeFixedTimes,
		FixedTimes: []string{"08:30", "12:30"},
	}, nil)
	require.NoError(t, err)

	day := func(hour, minute int) time.Time {
		return time.Date(2026, 3, 10, hour, minute, 0, 0, timezone.Location)
	}

	// before the second slot, the next run is later today
	require.Equal(t, day(12, 30), s.NextRun(day(10, 0)))

	// after every slot, the next run is the earliest slot tomorrow
	next := s.NextRun(day(13, 0))
	require.Equal(t, day(8, 30).AddDate(0, 0, 1), next)

	// exactly on a slot rolls over to the following one
	require.Equal(t, day(12, 30), s.NextRun(day(8, 30)))
}

func TestNextRunFixedTimesDefaults(t *testing.T) {
	s, err := NewScheduler(Config{Mode: ModeFixedTimes}, nil)
	require.NoError(t, err)

	now := time.Date(2026, 3, 10, 7, 0, 0, 0, timezone.Location)
	next := s.NextRun(now)
	require.Equal(t, 10, next.Hour())
	require.Equal(t, 30, next.Minute())
}

func TestNewSchedulerValidation(t *testing.T) {
	_, err := NewScheduler(Config{Mode: "hourly"}, nil)
	require.Error(t, err)

	_, err = NewScheduler(Config{Mode: ModeFixedTimes, FixedTimes: []string{"25:99"}}, nil)
	require.Error(t, err)
}

func TestRunExecutesImmediately(t *testing.T) {
	var runs atomic.Int32
	s, err := NewScheduler(Config{Mode: ModeInterval, Interval: time.Hour}, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return runs.Load() == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestRunSurvivesJobErrors(t *testing.T) {
	var runs atomic.Int32
	s, err := NewScheduler(Config{Mode: ModeInterval, Interval: time.Hour}, func(ctx context.Context) error {
		runs.Add(1)
		return fmt.Errorf("portal is down")
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return runs.Load() == 1
	}, time.Second, 10*time.Millisecond)

	// the failed job must not have torn the loop down
	select {
	case <-done:
		t.Fatal("scheduler exited after job error")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	<-done
}

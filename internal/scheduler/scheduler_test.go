package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock is a concurrency-safe mutable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func TestNextOccurrence(t *testing.T) {
	base := time.Date(2026, time.March, 10, 8, 30, 0, 0, time.UTC)

	testCases := []struct {
		name   string
		now    time.Time
		hour   int
		minute int
		want   time.Time
	}{
		{
			name: "later today",
			now:  base,
			hour: 9, minute: 0,
			want: time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "already passed rolls to tomorrow",
			now:  base,
			hour: 8, minute: 0,
			want: time.Date(2026, time.March, 11, 8, 0, 0, 0, time.UTC),
		},
		{
			name: "exact minute counts as passed",
			now:  time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC),
			hour: 9, minute: 0,
			want: time.Date(2026, time.March, 11, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "midnight trigger",
			now:  time.Date(2026, time.March, 10, 23, 59, 30, 0, time.UTC),
			hour: 0, minute: 0,
			want: time.Date(2026, time.March, 11, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := nextOccurrence(tc.now, tc.hour, tc.minute)
			if !got.Equal(tc.want) {
				t.Errorf("nextOccurrence = %v, expected %v", got, tc.want)
			}
		})
	}
}

func TestScheduler_RescheduleReplacesTrigger(t *testing.T) {
	s := New(func(context.Context, int64) {}, testLogger())
	t.Cleanup(s.Shutdown)

	if err := s.Reschedule(1, "09:00"); err != nil {
		t.Fatalf("Reschedule returned error: %v", err)
	}
	if err := s.Reschedule(1, "10:00"); err != nil {
		t.Fatalf("Reschedule returned error: %v", err)
	}

	hour, minute, ok := s.Scheduled(1)
	if !ok {
		t.Fatal("expected a scheduled trigger")
	}
	if hour != 10 || minute != 0 {
		t.Errorf("trigger at %02d:%02d, expected 10:00", hour, minute)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, expected exactly one trigger", s.Len())
	}
}

func TestScheduler_RejectsInvalidTime(t *testing.T) {
	s := New(func(context.Context, int64) {}, testLogger())
	t.Cleanup(s.Shutdown)

	if err := s.Reschedule(1, "25:00"); err == nil {
		t.Error("expected error for 25:00")
	}
	if s.Len() != 0 {
		t.Errorf("invalid time installed a trigger, Len = %d", s.Len())
	}
}

func TestScheduler_FiresExactlyOnceAfterReschedule(t *testing.T) {
	clock := &fakeClock{}
	clock.Set(time.Date(2026, time.March, 10, 9, 59, 59, int(990*time.Millisecond), time.UTC))

	var fires int64
	var fired sync.WaitGroup
	fired.Add(1)

	var once sync.Once
	s := New(func(_ context.Context, userID int64) {
		atomic.AddInt64(&fires, 1)
		// Move the clock well past the trigger so the re-armed timer is a
		// day away and cannot fire again within the test window.
		clock.Set(time.Date(2026, time.March, 10, 10, 30, 0, 0, time.UTC))
		once.Do(fired.Done)
	}, testLogger())
	s.WithClock(clock.Now)
	t.Cleanup(s.Shutdown)

	// Old trigger at 09:00 is next due tomorrow morning; the replacement at
	// 10:00 is 10ms away.
	if err := s.Reschedule(7, "09:00"); err != nil {
		t.Fatalf("Reschedule returned error: %v", err)
	}
	if err := s.Reschedule(7, "10:00"); err != nil {
		t.Fatalf("Reschedule returned error: %v", err)
	}

	fired.Wait()
	time.Sleep(50 * time.Millisecond)

	if got := atomic.LoadInt64(&fires); got != 1 {
		t.Errorf("callback fired %d times, expected exactly once", got)
	}
}

func TestScheduler_CancelStopsFiring(t *testing.T) {
	clock := &fakeClock{}
	clock.Set(time.Date(2026, time.March, 10, 9, 59, 59, int(990*time.Millisecond), time.UTC))

	var fires int64
	s := New(func(_ context.Context, userID int64) {
		atomic.AddInt64(&fires, 1)
	}, testLogger())
	s.WithClock(clock.Now)
	t.Cleanup(s.Shutdown)

	if err := s.Reschedule(3, "10:00"); err != nil {
		t.Fatalf("Reschedule returned error: %v", err)
	}
	s.Cancel(3)

	time.Sleep(50 * time.Millisecond)

	if got := atomic.LoadInt64(&fires); got != 0 {
		t.Errorf("callback fired %d times after cancel", got)
	}
	if _, _, ok := s.Scheduled(3); ok {
		t.Error("trigger still present after cancel")
	}
}

func TestScheduler_SurvivesPanickingCallback(t *testing.T) {
	clock := &fakeClock{}
	clock.Set(time.Date(2026, time.March, 10, 9, 59, 59, int(990*time.Millisecond), time.UTC))

	var fires int64
	var fired sync.WaitGroup
	fired.Add(1)

	var once sync.Once
	s := New(func(_ context.Context, userID int64) {
		atomic.AddInt64(&fires, 1)
		clock.Set(time.Date(2026, time.March, 10, 10, 30, 0, 0, time.UTC))
		once.Do(fired.Done)
		panic("send exploded")
	}, testLogger())
	s.WithClock(clock.Now)
	t.Cleanup(s.Shutdown)

	if err := s.Reschedule(5, "10:00"); err != nil {
		t.Fatalf("Reschedule returned error: %v", err)
	}

	fired.Wait()
	time.Sleep(20 * time.Millisecond)

	// The panic is contained and the trigger survives for tomorrow.
	if _, _, ok := s.Scheduled(5); !ok {
		t.Error("trigger vanished after a failed delivery")
	}
}

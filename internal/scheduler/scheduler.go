// Package scheduler maintains the per-user daily delivery triggers. Each
// registered user owns at most one cancellable timer keyed by user id; the
// schedule itself is durable only in the profile record, so the set is
// rebuilt from storage at process start.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/astroline/astroline-bot/internal/domain"
)

// Callback delivers the daily message for one user. It must never panic
// out of the trigger loop; failures inside are the callback's business and
// do not cancel future recurrences.
type Callback func(ctx context.Context, userID int64)

type job struct {
	hour   int
	minute int
	stop   chan struct{}
}

var jobGaugeRecorder = func(count int) {}

// RegisterJobGauge allows external packages to observe the trigger count.
func RegisterJobGauge(recorder func(count int)) {
	if recorder == nil {
		jobGaugeRecorder = func(int) {}
		return
	}

	jobGaugeRecorder = recorder
}

// Scheduler owns the set of per-user daily triggers.
type Scheduler struct {
	mu       sync.Mutex
	jobs     map[int64]*job
	callback Callback
	log      *slog.Logger
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Scheduler that invokes callback on every fire.
func New(callback Callback, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		jobs:     make(map[int64]*job),
		callback: callback,
		log:      log,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Reschedule cancels any existing trigger for the user and installs a new
// one firing daily at the given HH:MM. Cancel happens before install under
// one lock, so there is no window where two triggers for the same user are
// live. Calling it repeatedly with the same time is harmless.
func (s *Scheduler) Reschedule(userID int64, messageTime string) error {
	hour, minute, err := domain.ClockParts(messageTime)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.jobs[userID]; ok {
		close(existing.stop)
		delete(s.jobs, userID)
	}

	j := &job{hour: hour, minute: minute, stop: make(chan struct{})}
	s.jobs[userID] = j

	s.wg.Add(1)
	go s.run(userID, j)

	jobGaugeRecorder(len(s.jobs))
	s.log.Info("daily trigger installed",
		slog.Int64("user_id", userID),
		slog.String("time", messageTime),
	)

	return nil
}

// Cancel retires the user's trigger if one exists.
func (s *Scheduler) Cancel(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.jobs[userID]; ok {
		close(existing.stop)
		delete(s.jobs, userID)
		jobGaugeRecorder(len(s.jobs))
		s.log.Info("daily trigger cancelled", slog.Int64("user_id", userID))
	}
}

// Scheduled reports the configured fire time for a user, if any.
func (s *Scheduler) Scheduled(userID int64) (hour, minute int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[userID]
	if !ok {
		return 0, 0, false
	}
	return j.hour, j.minute, true
}

// Len returns the number of installed triggers.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Shutdown cancels every trigger and waits for in-flight callbacks.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	for id, j := range s.jobs {
		close(j.stop)
		delete(s.jobs, id)
	}
	jobGaugeRecorder(0)
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) run(userID int64, j *job) {
	defer s.wg.Done()

	for {
		now := s.now()
		timer := time.NewTimer(nextOccurrence(now, j.hour, j.minute).Sub(now))

		select {
		case <-j.stop:
			timer.Stop()
			return
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.fire(userID)
		}
	}
}

// fire invokes the delivery callback, shielding the recurrence from panics:
// a single failed send must not kill the trigger, the next occurrence is
// the retry.
func (s *Scheduler) fire(userID int64) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic in delivery callback",
				slog.Int64("user_id", userID),
				slog.Any("panic", r),
			)
		}
	}()

	if s.callback == nil {
		return
	}

	s.callback(s.ctx, userID)
}

// nextOccurrence returns the next wall-clock moment at hour:minute strictly
// after now, today or tomorrow.
func nextOccurrence(now time.Time, hour, minute int) time.Time {
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

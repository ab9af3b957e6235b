// Package scheduler decides when the content processor runs: fixed-time-of-day
// or fixed-interval mode, single-flight execution, retry on failure.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"content_bot/internal/model"
	"content_bot/internal/processor"
)

// State is the scheduler lifecycle state.
type State string

// Scheduler states.
const (
	StateIdle     State = "idle"
	StateWaiting  State = "waiting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// Control errors.
var (
	ErrNotEnabled     = errors.New("schedule is not enabled")
	ErrAlreadyStarted = errors.New("scheduler already started")
	ErrNotStarted     = errors.New("scheduler not started")
	ErrAlreadyRunning = errors.New("a run is already in flight")
)

// Runner executes one processing pass.
type Runner interface {
	Run(ctx context.Context) (processor.Result, error)
}

// Reachability reports whether the upstream network is reachable.
type Reachability interface {
	IsOnline(ctx context.Context) bool
}

// ErrorNotifier surfaces run failures to the operator.
type ErrorNotifier interface {
	NotifyError(ctx context.Context, message, details string) error
}

// Snapshot is a read-only view of the scheduler state.
type Snapshot struct {
	State     State
	Enabled   bool
	Mode      model.ScheduleMode
	LastRunAt *time.Time
	NextRunAt *time.Time
}

// Scheduler owns the schedule state and the background loop that triggers the
// processor. Exactly one run is in flight at a time; ExecuteNow and the
// scheduled trigger share that gate.
type Scheduler struct {
	runner   Runner
	reach    Reachability
	notifier ErrorNotifier
	log      *slog.Logger

	mu       sync.Mutex
	state    State
	cfg      model.ScheduleConfig
	lastRun  *time.Time
	nextRun  *time.Time
	cancel   context.CancelFunc
	done     chan struct{}
	runDone  chan struct{}
	afterRun func(ctx context.Context)

	tick        time.Duration
	stopTimeout time.Duration
	now         func() time.Time
}

// New creates a Scheduler in the idle state. notifier may be nil.
func New(runner Runner, reach Reachability, notifier ErrorNotifier, cfg model.ScheduleConfig, log *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:      runner,
		reach:       reach,
		notifier:    notifier,
		log:         log,
		state:       StateIdle,
		cfg:         cfg,
		tick:        5 * time.Second,
		stopTimeout: 30 * time.Second,
		now:         time.Now,
	}
}

// SetTick overrides the bounded sleep increment of the waiting loop.
func (s *Scheduler) SetTick(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick = d
}

// SetAfterRun registers a hook invoked after each successful run.
func (s *Scheduler) SetAfterRun(fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.afterRun = fn
}

// Start spawns the scheduling loop. Valid from the idle state only, and only
// when the schedule is enabled in configuration.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return ErrAlreadyStarted
	}
	if !s.cfg.Enabled {
		return ErrNotEnabled
	}
	if err := validate(s.cfg); err != nil {
		return err
	}

	s.nextRun = NextRun(s.cfg, s.lastRun, s.now())
	s.state = StateWaiting

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, s.done)

	s.log.Info("scheduler started", "next_run", timeOrNone(s.nextRun))
	return nil
}

// Stop signals cancellation and waits, bounded, for any in-flight run to
// finish, whether it was triggered by the loop or by ExecuteNow. Valid from
// waiting or running.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.state != StateWaiting && s.state != StateRunning {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.state = StateStopping
	cancel, done, runDone, timeout := s.cancel, s.done, s.runDone, s.stopTimeout
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	deadline := time.After(timeout)
	if done != nil {
		select {
		case <-done:
		case <-deadline:
			s.log.Warn("stop timed out waiting for in-flight run")
		}
	}
	if runDone != nil {
		select {
		case <-runDone:
		case <-deadline:
			s.log.Warn("stop timed out waiting for manual run")
		}
	}

	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()

	s.log.Info("scheduler stopped")
	return nil
}

// ExecuteNow triggers a run immediately. Returns ErrAlreadyRunning if a run is
// already in flight or a stop is draining one; there is no queueing.
func (s *Scheduler) ExecuteNow(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateRunning || s.state == StateStopping {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	prev := s.state
	s.state = StateRunning
	runDone := make(chan struct{})
	s.runDone = runDone
	s.mu.Unlock()

	s.runOnce(ctx)

	s.mu.Lock()
	if s.state == StateRunning {
		s.state = prev
	}
	s.runDone = nil
	close(runDone)
	s.mu.Unlock()
	return nil
}

// Status returns a snapshot of the schedule state.
func (s *Scheduler) Status() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State:     s.state,
		Enabled:   s.cfg.Enabled,
		Mode:      s.cfg.Mode,
		LastRunAt: s.lastRun,
		NextRunAt: s.nextRun,
	}
}

// Config returns the current schedule configuration.
func (s *Scheduler) Config() model.ScheduleConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// SaveConfig validates and atomically replaces the schedule configuration.
// When the scheduler is waiting, the next run time is recomputed immediately
// so a stale schedule is never honored.
func (s *Scheduler) SaveConfig(cfg model.ScheduleConfig) error {
	if err := validate(cfg); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	if s.state == StateWaiting {
		s.nextRun = NextRun(s.cfg, s.lastRun, s.now())
		s.log.Info("schedule updated", "next_run", timeOrNone(s.nextRun))
	}
	return nil
}

func validate(cfg model.ScheduleConfig) error {
	switch cfg.Mode {
	case model.ModeInterval:
		if cfg.IntervalHours <= 0 {
			return fmt.Errorf("interval mode requires interval_hours > 0, got %d", cfg.IntervalHours)
		}
	case model.ModeFixedTimes:
		if len(cfg.FixedTimes) == 0 {
			return errors.New("fixed-times mode requires at least one time")
		}
	default:
		return fmt.Errorf("unknown schedule mode %q", cfg.Mode)
	}
	if cfg.AutoRetry && cfg.RetryIntervalMinutes <= 0 {
		return fmt.Errorf("retry_interval_minutes must be positive, got %d", cfg.RetryIntervalMinutes)
	}
	return nil
}

// loop sleeps in bounded ticks so a stop signal is observed promptly, and
// fires a run once the next run time is reached. A nil next run time keeps
// the loop waiting; a configuration update recovers it without a restart.
func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.tickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		due := s.state == StateWaiting && s.nextRun != nil && !s.now().Before(*s.nextRun)
		if due {
			s.state = StateRunning
		}
		s.mu.Unlock()

		if !due {
			continue
		}

		s.runOnce(ctx)

		s.mu.Lock()
		if s.state == StateRunning {
			s.state = StateWaiting
		}
		s.mu.Unlock()
	}
}

func (s *Scheduler) tickInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// runOnce performs one run: reachability check, processor invocation with the
// configured retry policy, then last/next run bookkeeping. Every outcome
// leaves a trace: an advanced schedule, a retry, or an error report.
func (s *Scheduler) runOnce(ctx context.Context) {
	if s.reach != nil && !s.reach.IsOnline(ctx) {
		s.log.Warn("network unreachable, skipping cycle")
		return
	}

	cfg := s.Config()
	err := s.invoke(ctx, cfg)

	now := s.now()
	s.mu.Lock()
	s.lastRun = &now
	s.nextRun = NextRun(s.cfg, s.lastRun, now)
	afterRun := s.afterRun
	s.mu.Unlock()

	if err != nil {
		s.log.Error("processing run failed", "error", err)
		if s.notifier != nil {
			if nerr := s.notifier.NotifyError(ctx, "processing run failed", err.Error()); nerr != nil {
				s.log.Error("notify error", "error", nerr)
			}
		}
		return
	}

	s.log.Info("processing run finished", "next_run", timeOrNone(s.nextRun))
	if afterRun != nil {
		afterRun(ctx)
	}
}

// invoke runs the processor, retrying failed runs at the configured constant
// interval when auto-retry is on. Configuration errors are not retried.
func (s *Scheduler) invoke(ctx context.Context, cfg model.ScheduleConfig) error {
	run := func(ctx context.Context) error {
		_, err := s.runner.Run(ctx)
		return err
	}

	if !cfg.AutoRetry || cfg.RetryCount <= 0 {
		return run(ctx)
	}

	backoff := retry.WithMaxRetries(
		uint64(cfg.RetryCount),
		retry.NewConstant(time.Duration(cfg.RetryIntervalMinutes)*time.Minute),
	)
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := run(ctx); err != nil {
			if errors.Is(err, processor.ErrNoChannels) || errors.Is(err, processor.ErrNoTaxonomy) {
				return err
			}
			s.log.Warn("run failed, will retry", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}

// NextRun computes the next trigger time for the given configuration.
// In fixed-times mode it is the earliest configured time strictly after now,
// wrapping to tomorrow if none remain today. In interval mode it is
// lastRun + interval, or now + 1 minute when no run has ever occurred.
// A nil result means the schedule cannot fire (disabled or contradictory).
func NextRun(cfg model.ScheduleConfig, lastRun *time.Time, now time.Time) *time.Time {
	if !cfg.Enabled {
		return nil
	}

	switch cfg.Mode {
	case model.ModeFixedTimes:
		if len(cfg.FixedTimes) == 0 {
			return nil
		}
		var next *time.Time
		for _, ct := range cfg.FixedTimes {
			t := time.Date(now.Year(), now.Month(), now.Day(), ct.Hour, ct.Minute, 0, 0, now.Location())
			if !t.After(now) {
				t = t.AddDate(0, 0, 1)
			}
			if next == nil || t.Before(*next) {
				tt := t
				next = &tt
			}
		}
		return next

	case model.ModeInterval:
		if cfg.IntervalHours <= 0 {
			return nil
		}
		if lastRun == nil {
			t := now.Add(time.Minute)
			return &t
		}
		t := lastRun.Add(time.Duration(cfg.IntervalHours) * time.Hour)
		return &t
	}
	return nil
}

func timeOrNone(t *time.Time) string {
	if t == nil {
		return "none"
	}
	return t.Format(time.RFC3339)
}

// Package scheduler fires actions at wall-clock times in a fixed civil zone.
//
// A rule is due when the local hour and minute equal its time of day, the
// local weekday is allowed, and it has not fired yet on the current civil
// date. The loop only evaluates rules; what they do is up to the actions.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"AttendanceBot/clock"
	"AttendanceBot/models"
)

const (
	DefaultInterval      = 15 * time.Second
	MaxInterval          = time.Minute
	DefaultActionTimeout = 5 * time.Minute
)

// Action is the work bound to a rule.
type Action func(ctx context.Context) error

// ActionError reports a failed or panicking action.
type ActionError struct {
	Rule  string
	Err   error
	Panic bool
}

func (e *ActionError) Error() string {
	if e.Panic {
		return fmt.Sprintf("scheduler: job %s panicked: %v", e.Rule, e.Err)
	}
	return fmt.Sprintf("scheduler: job %s: %v", e.Rule, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

var ErrStopped = errors.New("scheduler: stopped")

type entry struct {
	rule    models.JobRule
	action  Action
	firedOn clock.Date
}

type Scheduler struct {
	cal      *clock.Calendar
	clk      clock.Clock
	interval time.Duration
	log      *zap.Logger

	// ActionTimeout bounds a single action run. Zero disables the bound.
	ActionTimeout time.Duration

	mu      sync.Mutex
	entries []*entry
	base    context.Context
	stopped bool

	stop     chan struct{}
	stopOnce sync.Once
	inflight sync.WaitGroup
}

func New(cal *clock.Calendar, clk clock.Clock, interval time.Duration, logger *zap.Logger) (*Scheduler, error) {
	if interval == 0 {
		interval = DefaultInterval
	}
	if interval < 0 || interval > MaxInterval {
		return nil, fmt.Errorf("scheduler: tick interval %s outside (0, %s]", interval, MaxInterval)
	}
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cal:           cal,
		clk:           clk,
		interval:      interval,
		log:           logger.Named("scheduler"),
		ActionTimeout: DefaultActionTimeout,
		base:          context.Background(),
		stop:          make(chan struct{}),
	}, nil
}

// Register adds a rule. Rule names must be unique.
func (s *Scheduler) Register(rule models.JobRule, action Action) error {
	if rule.Name == "" {
		return errors.New("scheduler: rule name is required")
	}
	if !rule.At.Valid() {
		return fmt.Errorf("scheduler: rule %s: invalid time %s", rule.Name, rule.At)
	}
	if action == nil {
		return fmt.Errorf("scheduler: rule %s: nil action", rule.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	for _, e := range s.entries {
		if e.rule.Name == rule.Name {
			return fmt.Errorf("scheduler: rule %s already registered", rule.Name)
		}
	}
	s.entries = append(s.entries, &entry{rule: rule, action: action})
	s.log.Debug("rule registered",
		zap.String("rule", rule.Name),
		zap.Stringer("at", rule.At),
		zap.String("action", rule.Action))
	return nil
}

// Rules returns the registered rules in registration order.
func (s *Scheduler) Rules() []models.JobRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.JobRule, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.rule
	}
	return out
}

// Run ticks until ctx is done or Stop is called, then waits for in-flight
// actions. Actions keep running past ctx cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.base = context.WithoutCancel(ctx)
	s.mu.Unlock()

	s.log.Info("scheduler started", zap.Duration("interval", s.interval), zap.Int("rules", len(s.Rules())))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Tick(s.clk.Now())
	for {
		select {
		case <-ctx.Done():
			s.Stop()
			return nil
		case <-s.stop:
			s.inflight.Wait()
			return nil
		case <-ticker.C:
			s.Tick(s.clk.Now())
		}
	}
}

// Tick evaluates every rule against now and starts the due ones. It returns
// the names of the rules started.
func (s *Scheduler) Tick(now time.Time) []string {
	today := s.cal.Date(now)
	hour, minute := s.cal.HourMinute(now)
	weekday := s.cal.Weekday(now)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}

	var fired []string
	for _, e := range s.entries {
		if e.rule.At.Hour != hour || e.rule.At.Minute != minute {
			continue
		}
		if !e.rule.AllowsWeekday(weekday) || e.firedOn == today {
			continue
		}
		// Marked before dispatch so a slow action cannot be started twice.
		e.firedOn = today
		fired = append(fired, e.rule.Name)

		s.inflight.Add(1)
		go s.execute(s.base, e.rule, e.action)
	}
	return fired
}

func (s *Scheduler) execute(base context.Context, rule models.JobRule, action Action) {
	defer s.inflight.Done()

	ctx := base
	if s.ActionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(base, s.ActionTimeout)
		defer cancel()
	}

	start := time.Now()
	log := s.log.With(zap.String("rule", rule.Name), zap.String("action", rule.Action))
	log.Info("job fired")

	if err := invoke(ctx, rule.Name, action); err != nil {
		log.Error("job failed", zap.Error(err), zap.Duration("took", time.Since(start)))
		return
	}
	log.Info("job finished", zap.Duration("took", time.Since(start)))
}

func invoke(ctx context.Context, name string, action Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ActionError{Rule: name, Err: fmt.Errorf("%v", r), Panic: true}
		}
	}()
	if err := action(ctx); err != nil {
		return &ActionError{Rule: name, Err: err}
	}
	return nil
}

// Stop prevents further firings and blocks until running actions return.
// It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.stopOnce.Do(func() { close(s.stop) })
	s.inflight.Wait()
	s.log.Info("scheduler stopped")
}

// NextFire returns the first instant at or after now, truncated to the
// minute, at which rule would be due. It ignores whether the rule already
// fired today.
func (s *Scheduler) NextFire(rule models.JobRule, now time.Time) time.Time {
	local := s.cal.Local(now).Truncate(time.Minute)
	today := s.cal.Date(now)
	for i := 0; i <= 7; i++ {
		d := today.AddDays(i)
		at := s.cal.At(d, rule.At.Hour, rule.At.Minute)
		if at.Before(local) {
			continue
		}
		if rule.AllowsWeekday(at.Weekday()) {
			return at
		}
	}
	return time.Time{}
}

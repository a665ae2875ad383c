package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"AttendanceBot/clock"
	"AttendanceBot/models"
	"AttendanceBot/scheduler"
)

var ist = time.FixedZone("IST", 5*3600+1800)

// 2026-03-02 is a Monday.
func at(day, hour, minute, second int) time.Time {
	return time.Date(2026, 3, 2+day, hour, minute, second, 0, ist)
}

func newScheduler(t *testing.T, logger *zap.Logger) *scheduler.Scheduler {
	t.Helper()
	s, err := scheduler.New(clock.NewCalendarIn(ist), nil, 15*time.Second, logger)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func rule(name string, hour, minute int, days ...time.Weekday) models.JobRule {
	return models.JobRule{Name: name, At: models.TimeOfDay{Hour: hour, Minute: minute}, Weekdays: days, Action: name}
}

func counter(n *int32) scheduler.Action {
	return func(context.Context) error {
		atomic.AddInt32(n, 1)
		return nil
	}
}

func TestWeekdayFilterAndOncePerDay(t *testing.T) {
	s := newScheduler(t, nil)
	var fired int32
	if err := s.Register(rule("reminder", 18, 0, time.Tuesday), counter(&fired)); err != nil {
		t.Fatal(err)
	}

	for _, sec := range []int{0, 15, 30, 45} {
		s.Tick(at(0, 18, 0, sec))
	}
	for _, sec := range []int{0, 15, 30, 45} {
		s.Tick(at(1, 18, 0, sec))
	}
	s.Tick(at(1, 18, 1, 0))
	s.Stop()

	if got := atomic.LoadInt32(&fired); got != 1 {
		t.Errorf("fired %d times, want 1 (Tuesday only)", got)
	}
}

func TestFiredFlagResetsOnNewCivilDate(t *testing.T) {
	s := newScheduler(t, nil)
	var fired int32
	s.Register(rule("motivation", 8, 0), counter(&fired))

	s.Tick(at(0, 8, 0, 0))
	s.Tick(at(0, 8, 0, 40))
	s.Tick(at(1, 8, 0, 5))
	s.Tick(at(2, 8, 0, 59))
	s.Stop()

	if got := atomic.LoadInt32(&fired); got != 3 {
		t.Errorf("fired %d times over three days, want 3", got)
	}
}

func TestStartedAfterRuleTimeWaitsForNextDay(t *testing.T) {
	s := newScheduler(t, nil)
	var fired int32
	s.Register(rule("motivation", 8, 0), counter(&fired))

	if names := s.Tick(at(0, 9, 30, 0)); len(names) != 0 {
		t.Errorf("fired %v at 09:30", names)
	}
	s.Stop()
}

func TestTickUsesCalendarZone(t *testing.T) {
	s := newScheduler(t, nil)
	var fired int32
	s.Register(rule("report", 14, 0), counter(&fired))

	// 08:30 UTC is 14:00 IST.
	names := s.Tick(time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC))
	s.Stop()
	if len(names) != 1 || names[0] != "report" {
		t.Errorf("fired %v, want [report]", names)
	}
}

func TestSimultaneousRulesFireIndependently(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	s := newScheduler(t, zap.New(core))

	var ok int32
	s.Register(rule("egg-poll", 15, 0), func(context.Context) error { return errors.New("transport down") })
	s.Register(rule("stock-poll", 15, 0), func(context.Context) error { panic("nil chat") })
	s.Register(rule("after", 15, 0), counter(&ok))

	names := s.Tick(at(0, 15, 0, 0))
	s.Stop()

	if len(names) != 3 {
		t.Errorf("started %v, want all three", names)
	}
	if atomic.LoadInt32(&ok) != 1 {
		t.Error("healthy job did not run")
	}
	failed := logs.FilterMessage("job failed").All()
	if len(failed) != 2 {
		t.Fatalf("logged %d failures, want 2", len(failed))
	}
	var panics int
	for _, entry := range failed {
		err, _ := entry.ContextMap()["error"].(string)
		if err == "scheduler: job stock-poll panicked: nil chat" {
			panics++
		}
	}
	if panics != 1 {
		t.Errorf("panic not reported as ActionError: %v", failed)
	}
}

func TestFailedRuleFiresAgainNextDay(t *testing.T) {
	s := newScheduler(t, nil)
	var calls int32
	s.Register(rule("flaky", 12, 0), func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("boom")
	})
	s.Tick(at(0, 12, 0, 0))
	s.Tick(at(1, 12, 0, 0))
	s.Stop()
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestStopWaitsForInflightAndBlocksFurtherFirings(t *testing.T) {
	s := newScheduler(t, nil)
	release := make(chan struct{})
	started := make(chan struct{})
	var late int32
	s.Register(rule("slow", 18, 0), func(ctx context.Context) error {
		close(started)
		<-release
		return ctx.Err()
	})
	s.Register(rule("later", 18, 1), counter(&late))

	s.Tick(at(0, 18, 0, 0))
	<-started

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while an action was running")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	<-stopped

	if names := s.Tick(at(0, 18, 1, 0)); names != nil {
		t.Errorf("fired %v after Stop", names)
	}
	if atomic.LoadInt32(&late) != 0 {
		t.Error("action ran after Stop")
	}
	if err := s.Register(rule("new", 1, 0), counter(&late)); !errors.Is(err, scheduler.ErrStopped) {
		t.Errorf("Register after Stop: err = %v", err)
	}
}

func TestRunSurvivesCancellationForActions(t *testing.T) {
	now := at(0, 8, 0, 0)
	s, err := scheduler.New(clock.NewCalendarIn(ist), clock.Func(func() time.Time { return now }), 5*time.Millisecond, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	actionErr := make(chan error, 4)
	s.Register(rule("motivation", 8, 0), func(actx context.Context) error {
		cancel()
		time.Sleep(20 * time.Millisecond)
		actionErr <- actx.Err()
		return nil
	})

	done := make(chan error)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if len(actionErr) != 1 {
		t.Fatalf("action ran %d times, want 1", len(actionErr))
	}
	if err := <-actionErr; err != nil {
		t.Errorf("action context cancelled by shutdown: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	s := newScheduler(t, nil)
	var n int32
	tests := []struct {
		name   string
		rule   models.JobRule
		action scheduler.Action
	}{
		{"no name", rule("", 8, 0), counter(&n)},
		{"bad time", rule("x", 24, 0), counter(&n)},
		{"nil action", rule("y", 8, 0), nil},
	}
	for _, tt := range tests {
		if err := s.Register(tt.rule, tt.action); err == nil {
			t.Errorf("%s: accepted", tt.name)
		}
	}
	if err := s.Register(rule("dup", 8, 0), counter(&n)); err != nil {
		t.Fatal(err)
	}
	if err := s.Register(rule("dup", 9, 0), counter(&n)); err == nil {
		t.Error("duplicate name accepted")
	}
	if len(s.Rules()) != 1 {
		t.Errorf("Rules() = %v", s.Rules())
	}
}

func TestNewRejectsCoarseInterval(t *testing.T) {
	if _, err := scheduler.New(clock.NewCalendarIn(ist), nil, 2*time.Minute, nil); err == nil {
		t.Error("2m interval accepted")
	}
}

func TestNextFire(t *testing.T) {
	s := newScheduler(t, nil)
	tests := []struct {
		name string
		rule models.JobRule
		now  time.Time
		want time.Time
	}{
		{"later today", rule("a", 18, 0), at(0, 9, 0, 0), at(0, 18, 0, 0)},
		{"same minute", rule("a", 18, 0), at(0, 18, 0, 30), at(0, 18, 0, 0)},
		{"tomorrow", rule("a", 8, 0), at(0, 9, 0, 0), at(1, 8, 0, 0)},
		{"next saturday", rule("q", 12, 0, time.Saturday), at(0, 9, 0, 0), at(5, 12, 0, 0)},
		{"tuesday passed", rule("r", 18, 0, time.Tuesday), at(1, 19, 0, 0), at(8, 18, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.NextFire(tt.rule, tt.now); !got.Equal(tt.want) {
				t.Errorf("NextFire = %v, want %v", got, tt.want)
			}
		})
	}
}

package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"AttendanceBot/clock"
	"AttendanceBot/database"
	"AttendanceBot/ledger"
	"AttendanceBot/models"
)

var ist = time.FixedZone("IST", 5*3600+1800)

// day returns 10:00 IST on 2026-03-(2+offset).
func day(offset int) time.Time {
	return time.Date(2026, 3, 2+offset, 10, 0, 0, 0, ist)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	return ledger.New(database.NewMemoryStore(), clock.NewCalendarIn(ist), &fakeClock{now: day(-10)}, nil)
}

func register(t *testing.T, l *ledger.Ledger, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if err := l.RegisterWorkerIfAbsent(context.Background(), id, "name-"+id); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}
}

func mustLog(t *testing.T, l *ledger.Ledger, id string, at time.Time) models.SubmissionResult {
	t.Helper()
	res, err := l.LogSubmission(context.Background(), id, at)
	if err != nil {
		t.Fatalf("LogSubmission(%s, %v): %v", id, at, err)
	}
	return res
}

func TestComputeStreak(t *testing.T) {
	d := clock.Date{Year: 2026, Month: time.March, Day: 10}
	tests := []struct {
		name  string
		dates []clock.Date
		want  int
	}{
		{"empty", nil, 0},
		{"single", []clock.Date{d}, 1},
		{"run of three", []clock.Date{d, d.AddDays(-1), d.AddDays(-2)}, 3},
		{"gap breaks run", []clock.Date{d, d.AddDays(-2), d.AddDays(-3)}, 1},
		{"run across month end", []clock.Date{{Year: 2026, Month: time.March, Day: 1}, {Year: 2026, Month: time.February, Day: 28}}, 2},
		{"run across year end", []clock.Date{{Year: 2027, Month: time.January, Day: 1}, {Year: 2026, Month: time.December, Day: 31}, {Year: 2026, Month: time.December, Day: 29}}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ledger.ComputeStreak(tt.dates); got != tt.want {
				t.Errorf("ComputeStreak = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLogSubmissionSameDayIsIdempotent(t *testing.T) {
	l := newLedger(t)
	register(t, l, "w1")

	first := mustLog(t, l, "w1", day(0))
	second := mustLog(t, l, "w1", day(0).Add(5*time.Hour))

	if first.Status != models.StatusNewSubmission {
		t.Errorf("first status = %s", first.Status)
	}
	if second.Status != models.StatusAlreadySubmitted {
		t.Errorf("second status = %s", second.Status)
	}
	if first.Streak != second.Streak || first.Streak != 1 {
		t.Errorf("streaks = %d, %d; want 1, 1", first.Streak, second.Streak)
	}
	if n, _ := l.CountSubmittedToday(context.Background(), day(0)); n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestStreakRunAndReset(t *testing.T) {
	l := newLedger(t)
	register(t, l, "w1")

	var got []int
	for _, offset := range []int{0, 1, 2, 4} {
		got = append(got, mustLog(t, l, "w1", day(offset)).Streak)
	}
	if fmt.Sprint(got) != "[1 2 3 1]" {
		t.Errorf("streaks = %v, want [1 2 3 1]", got)
	}
}

func TestCivilDateFollowsCalendarZone(t *testing.T) {
	l := newLedger(t)
	register(t, l, "w1")

	// 20:00 UTC on the 2nd is 01:30 IST on the 3rd.
	late := time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC)
	mustLog(t, l, "w1", day(0))
	res := mustLog(t, l, "w1", late)
	if res.Status != models.StatusNewSubmission || res.Streak != 2 {
		t.Errorf("result = %+v, want new submission with streak 2", res)
	}
}

func TestLogSubmissionErrors(t *testing.T) {
	l := newLedger(t)
	register(t, l, "w1")

	if _, err := l.LogSubmission(context.Background(), "ghost", day(0)); !errors.Is(err, models.ErrUnknownWorker) {
		t.Errorf("unknown worker: err = %v", err)
	}

	mustLog(t, l, "w1", day(3))
	if _, err := l.LogSubmission(context.Background(), "w1", day(1)); !errors.Is(err, models.ErrInvalidClock) {
		t.Errorf("earlier date: err = %v, want ErrInvalidClock", err)
	}
	if s, _ := l.Streak(context.Background(), "w1", day(3)); s != 1 {
		t.Errorf("streak after rejected write = %d, want 1", s)
	}
}

func TestPaddedIDMatchesRegisteredWorker(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	if err := l.RegisterWorkerIfAbsent(ctx, " 42 ", "Asha"); err != nil {
		t.Fatal(err)
	}
	res, err := l.LogSubmission(ctx, " 42 ", day(0))
	if err != nil {
		t.Fatalf("log padded id: %v", err)
	}
	if res.Status != models.StatusNewSubmission {
		t.Errorf("status = %s", res.Status)
	}
	if res, _ := l.LogSubmission(ctx, "42", day(0)); res.Status != models.StatusAlreadySubmitted {
		t.Errorf("trimmed id status = %s, want already submitted", res.Status)
	}
	if s, _ := l.Streak(ctx, "42 ", day(0)); s != 1 {
		t.Errorf("streak = %d, want 1", s)
	}
}

func TestRegisterKeepsFirstName(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	l.RegisterWorkerIfAbsent(ctx, "w1", "Asha")
	l.RegisterWorkerIfAbsent(ctx, "w1", "Someone Else")

	workers, err := l.ListAllWorkers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(workers) != 1 || workers[0].DisplayName != "Asha" {
		t.Errorf("workers = %+v", workers)
	}
	if err := l.RegisterWorkerIfAbsent(ctx, "  ", "x"); err == nil {
		t.Error("blank id accepted")
	}
}

func TestCountIsOrderIndependent(t *testing.T) {
	orders := [][]string{
		{"a", "b", "c", "a"},
		{"c", "a", "a", "b"},
		{"b", "b", "c", "a"},
	}
	for _, order := range orders {
		l := newLedger(t)
		register(t, l, "a", "b", "c", "d")
		for i, id := range order {
			if _, err := l.LogSubmission(context.Background(), id, day(0).Add(time.Duration(i)*time.Minute)); err != nil {
				t.Fatal(err)
			}
		}
		if n, _ := l.CountSubmittedToday(context.Background(), day(0)); n != 3 {
			t.Errorf("order %v: count = %d, want 3", order, n)
		}
	}
}

func TestDailyViewPartitionsRegistry(t *testing.T) {
	l := newLedger(t)
	register(t, l, "a", "b", "c", "d", "e")
	mustLog(t, l, "b", day(0))
	mustLog(t, l, "d", day(0))
	mustLog(t, l, "a", day(-1))

	view, err := l.DailyView(context.Background(), day(0))
	if err != nil {
		t.Fatal(err)
	}
	all, _ := l.ListAllWorkers(context.Background())
	seen := map[string]int{}
	for _, w := range view.Submitted {
		seen[w.ID]++
	}
	for _, w := range view.Missing {
		seen[w.ID]++
	}
	if len(seen) != len(all) {
		t.Fatalf("union has %d workers, registry %d", len(seen), len(all))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("worker %s appears %d times", id, n)
		}
	}
	ids, _ := l.ListSubmittedToday(context.Background(), day(0))
	if fmt.Sprint(ids) != "[b d]" {
		t.Errorf("ListSubmittedToday = %v, want [b d]", ids)
	}
	var missing []string
	for _, w := range view.Missing {
		missing = append(missing, w.ID)
	}
	if fmt.Sprint(missing) != "[a c e]" {
		t.Errorf("missing = %v, want [a c e]", missing)
	}
}

func TestTopStreaks(t *testing.T) {
	l := newLedger(t)
	register(t, l, "A", "B", "C")
	for offset := 0; offset < 3; offset++ {
		mustLog(t, l, "A", day(offset))
	}
	mustLog(t, l, "B", day(2))

	top, err := l.TopStreaks(context.Background(), 2, day(2))
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(top) != "[{A name-A 3} {B name-B 1}]" {
		t.Errorf("TopStreaks(2) = %v", top)
	}

	top, _ = l.TopStreaks(context.Background(), 10, day(2))
	if len(top) != 2 {
		t.Errorf("TopStreaks(10) has %d entries, want 2 (C has none)", len(top))
	}
	for i := 1; i < len(top); i++ {
		if top[i].Streak > top[i-1].Streak {
			t.Errorf("not descending: %v", top)
		}
	}
	if top, _ := l.TopStreaks(context.Background(), 0, day(2)); len(top) != 0 {
		t.Errorf("TopStreaks(0) = %v", top)
	}
}

func TestTopStreaksTiesKeepRegistrationOrder(t *testing.T) {
	l := newLedger(t)
	register(t, l, "z", "m", "a")
	for _, id := range []string{"a", "m", "z"} {
		mustLog(t, l, id, day(0))
	}
	top, _ := l.TopStreaks(context.Background(), 3, day(0))
	var got []string
	for _, s := range top {
		got = append(got, s.WorkerID)
	}
	if fmt.Sprint(got) != "[z m a]" {
		t.Errorf("order = %v, want [z m a]", got)
	}
}

func TestConcurrentSubmissionsForSameWorker(t *testing.T) {
	l := newLedger(t)
	register(t, l, "w1")

	const n = 32
	results := make(chan models.SubmissionStatus, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := l.LogSubmission(context.Background(), "w1", day(0).Add(time.Duration(i)*time.Millisecond))
			if err != nil {
				t.Error(err)
				return
			}
			results <- res.Status
		}(i)
	}
	wg.Wait()
	close(results)

	fresh := 0
	for st := range results {
		if st == models.StatusNewSubmission {
			fresh++
		}
	}
	if fresh != 1 {
		t.Errorf("%d calls reported a new submission, want 1", fresh)
	}
}

// Package ledger owns the worker registry and the daily submission facts.
// It is the single writer for both and derives streaks and daily views from
// them on demand.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"AttendanceBot/clock"
	"AttendanceBot/database"
	"AttendanceBot/models"
)

type Ledger struct {
	store database.Store
	cal   *clock.Calendar
	clk   clock.Clock
	log   *zap.Logger
	locks keyedMutex

	mu     sync.Mutex
	latest time.Time
}

// DailyView partitions the registry into workers who submitted on Date and
// workers who did not. Both slices keep registration order.
type DailyView struct {
	Date      clock.Date
	Submitted []models.Worker
	Missing   []models.Worker
}

func New(store database.Store, cal *clock.Calendar, clk clock.Clock, logger *zap.Logger) *Ledger {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		store: store,
		cal:   cal,
		clk:   clk,
		log:   logger.Named("ledger"),
		locks: keyedMutex{locks: make(map[string]*lockEntry)},
	}
}

// Calendar exposes the civil calendar the ledger counts days in.
func (l *Ledger) Calendar() *clock.Calendar { return l.cal }

// RegisterWorkerIfAbsent enrolls a worker. An existing worker keeps the name
// recorded at enrollment; later names are ignored.
func (l *Ledger) RegisterWorkerIfAbsent(ctx context.Context, id, displayName string) error {
	w, err := models.NewWorker(id, displayName, l.clk.Now())
	if err != nil {
		return fmt.Errorf("ledger: register worker: %w", err)
	}
	created, err := l.store.InsertWorkerIfAbsent(ctx, *w)
	if err != nil {
		return fmt.Errorf("ledger: register worker %s: %w", w.ID, err)
	}
	if created {
		l.log.Info("worker registered", zap.String("worker_id", w.ID), zap.String("name", w.DisplayName))
	}
	return nil
}

// LogSubmission records that workerID submitted at now. A second call on the
// same civil date returns StatusAlreadySubmitted and the unchanged streak.
func (l *Ledger) LogSubmission(ctx context.Context, workerID string, now time.Time) (models.SubmissionResult, error) {
	// Ids are stored trimmed; see models.NewWorker.
	workerID = strings.TrimSpace(workerID)
	unlock := l.locks.Lock(workerID)
	defer unlock()

	if _, err := l.store.GetWorker(ctx, workerID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.SubmissionResult{}, fmt.Errorf("ledger: log submission for %s: %w", workerID, models.ErrUnknownWorker)
		}
		return models.SubmissionResult{}, fmt.Errorf("ledger: log submission for %s: %w", workerID, err)
	}

	today := l.cal.Date(now)
	history, err := l.store.WorkerSubmissions(ctx, workerID)
	if err != nil {
		return models.SubmissionResult{}, fmt.Errorf("ledger: log submission for %s: %w", workerID, err)
	}
	dates := datesOf(history)

	if len(dates) > 0 {
		last := dates[0]
		if today.Before(last) {
			l.log.Error("submission predates latest record",
				zap.String("worker_id", workerID),
				zap.Time("now", now),
				zap.Stringer("latest_date", last))
			return models.SubmissionResult{}, fmt.Errorf("ledger: log submission for %s on %s after %s: %w",
				workerID, today, last, models.ErrInvalidClock)
		}
		if today == last {
			return models.SubmissionResult{Status: models.StatusAlreadySubmitted, Streak: ComputeStreak(dates)}, nil
		}
	}
	l.observe(now)

	inserted, err := l.store.InsertSubmission(ctx, models.NewSubmissionRecord(workerID, today, now))
	if err != nil {
		return models.SubmissionResult{}, fmt.Errorf("ledger: log submission for %s: %w", workerID, err)
	}
	streak := ComputeStreak(append([]clock.Date{today}, dates...))
	if !inserted {
		// Another process won the unique (worker, date) insert.
		return models.SubmissionResult{Status: models.StatusAlreadySubmitted, Streak: streak}, nil
	}

	l.log.Info("submission logged",
		zap.String("worker_id", workerID),
		zap.Stringer("date", today),
		zap.Int("streak", streak))
	return models.SubmissionResult{Status: models.StatusNewSubmission, Streak: streak}, nil
}

// observe tracks the newest instant seen and warns when the clock regresses
// across workers. Regression for a single worker is rejected above.
func (l *Ledger) observe(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Before(l.latest.Add(-time.Minute)) {
		l.log.Warn("clock earlier than a previously recorded submission",
			zap.Time("now", now), zap.Time("latest", l.latest))
		return
	}
	if now.After(l.latest) {
		l.latest = now
	}
}

// CountSubmittedToday returns how many distinct workers submitted on the
// civil date of now.
func (l *Ledger) CountSubmittedToday(ctx context.Context, now time.Time) (int, error) {
	ids, err := l.ListSubmittedToday(ctx, now)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// ListSubmittedToday returns the ids of workers with a record dated today,
// in registration order.
func (l *Ledger) ListSubmittedToday(ctx context.Context, now time.Time) ([]string, error) {
	ids, err := l.store.SubmittedOn(ctx, l.cal.Date(now))
	if err != nil {
		return nil, fmt.Errorf("ledger: list submitted today: %w", err)
	}
	return ids, nil
}

// ListAllWorkers returns every registered worker in registration order.
func (l *Ledger) ListAllWorkers(ctx context.Context) ([]models.Worker, error) {
	workers, err := l.store.ListWorkers(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: list workers: %w", err)
	}
	return workers, nil
}

// DailyView reads the registry and today's records from one snapshot.
func (l *Ledger) DailyView(ctx context.Context, now time.Time) (*DailyView, error) {
	snap, err := l.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: daily view: %w", err)
	}
	today := l.cal.Date(now)
	view := &DailyView{Date: today, Submitted: []models.Worker{}, Missing: []models.Worker{}}
	for _, w := range snap.Workers {
		if containsDate(snap.Dates[w.ID], today) {
			view.Submitted = append(view.Submitted, w)
		} else {
			view.Missing = append(view.Missing, w)
		}
	}
	return view, nil
}

// Streak returns the worker's streak as of the civil date of now.
func (l *Ledger) Streak(ctx context.Context, workerID string, now time.Time) (int, error) {
	workerID = strings.TrimSpace(workerID)
	recs, err := l.store.WorkerSubmissions(ctx, workerID)
	if err != nil {
		return 0, fmt.Errorf("ledger: streak for %s: %w", workerID, err)
	}
	return ComputeStreak(upTo(datesOf(recs), l.cal.Date(now))), nil
}

// TopStreaks ranks workers with a streak of at least one, highest first.
// Ties keep registration order. At most n entries are returned.
func (l *Ledger) TopStreaks(ctx context.Context, n int, now time.Time) ([]models.WorkerStreak, error) {
	if n <= 0 {
		return []models.WorkerStreak{}, nil
	}
	snap, err := l.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: top streaks: %w", err)
	}
	today := l.cal.Date(now)
	ranked := make([]models.WorkerStreak, 0, len(snap.Workers))
	for _, w := range snap.Workers {
		s := ComputeStreak(upTo(snap.Dates[w.ID], today))
		if s < 1 {
			continue
		}
		ranked = append(ranked, models.WorkerStreak{WorkerID: w.ID, DisplayName: w.DisplayName, Streak: s})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Streak > ranked[j].Streak })
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked, nil
}

package ledger

import (
	"sync"

	"AttendanceBot/clock"
	"AttendanceBot/models"
)

// ComputeStreak returns the length of the run of consecutive days ending at
// dates[0]. dates must be distinct and sorted newest first.
func ComputeStreak(dates []clock.Date) int {
	if len(dates) == 0 {
		return 0
	}
	streak := 1
	for i := 1; i < len(dates); i++ {
		if dates[i].DaysUntil(dates[i-1]) != 1 {
			break
		}
		streak++
	}
	return streak
}

func datesOf(recs []models.SubmissionRecord) []clock.Date {
	dates := make([]clock.Date, len(recs))
	for i, r := range recs {
		dates[i] = r.Date
	}
	return dates
}

// upTo drops dates after limit from a newest-first slice.
func upTo(dates []clock.Date, limit clock.Date) []clock.Date {
	for i, d := range dates {
		if !d.After(limit) {
			return dates[i:]
		}
	}
	return nil
}

func containsDate(dates []clock.Date, d clock.Date) bool {
	for _, x := range dates {
		if x == d {
			return true
		}
	}
	return false
}

// keyedMutex serialises callers per key without blocking other keys.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &lockEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

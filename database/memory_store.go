package database

import (
	"context"
	"sort"
	"sync"

	"AttendanceBot/clock"
	"AttendanceBot/models"
)

// MemoryStore keeps everything in process memory. It backs tests and the
// STORE=memory development mode; nothing survives a restart.
type MemoryStore struct {
	mu          sync.RWMutex
	workers     []models.Worker
	workerIndex map[string]int
	submissions map[string][]models.SubmissionRecord
	byDate      map[clock.Date]map[string]struct{}
	settings    map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workerIndex: make(map[string]int),
		submissions: make(map[string][]models.SubmissionRecord),
		byDate:      make(map[clock.Date]map[string]struct{}),
		settings:    make(map[string]string),
	}
}

func (s *MemoryStore) InsertWorkerIfAbsent(_ context.Context, w models.Worker) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workerIndex[w.ID]; ok {
		return false, nil
	}
	s.workerIndex[w.ID] = len(s.workers)
	s.workers = append(s.workers, w)
	return true, nil
}

func (s *MemoryStore) GetWorker(_ context.Context, id string) (*models.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.workerIndex[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	w := s.workers[i]
	return &w, nil
}

// ListWorkers returns workers in insertion order, which is registration order.
func (s *MemoryStore) ListWorkers(_ context.Context) ([]models.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Worker, len(s.workers))
	copy(out, s.workers)
	return out, nil
}

func (s *MemoryStore) InsertSubmission(_ context.Context, rec models.SubmissionRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workerIndex[rec.WorkerID]; !ok {
		return false, models.ErrUnknownWorker
	}
	day := s.byDate[rec.Date]
	if _, dup := day[rec.WorkerID]; dup {
		return false, nil
	}
	if day == nil {
		day = make(map[string]struct{})
		s.byDate[rec.Date] = day
	}
	day[rec.WorkerID] = struct{}{}
	s.submissions[rec.WorkerID] = append(s.submissions[rec.WorkerID], rec)
	return true, nil
}

func (s *MemoryStore) WorkerSubmissions(_ context.Context, workerID string) ([]models.SubmissionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := make([]models.SubmissionRecord, len(s.submissions[workerID]))
	copy(recs, s.submissions[workerID])
	sort.Slice(recs, func(i, j int) bool { return recs[i].Date.After(recs[j].Date) })
	return recs, nil
}

func (s *MemoryStore) SubmittedOn(_ context.Context, date clock.Date) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	day := s.byDate[date]
	ids := []string{}
	for _, w := range s.workers {
		if _, ok := day[w.ID]; ok {
			ids = append(ids, w.ID)
		}
	}
	return ids, nil
}

func (s *MemoryStore) Snapshot(_ context.Context) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := &Snapshot{
		Workers: make([]models.Worker, len(s.workers)),
		Dates:   make(map[string][]clock.Date, len(s.submissions)),
	}
	copy(snap.Workers, s.workers)
	for id, recs := range s.submissions {
		dates := make([]clock.Date, len(recs))
		for i, r := range recs {
			dates[i] = r.Date
		}
		sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })
		snap.Dates[id] = dates
	}
	return snap, nil
}

func (s *MemoryStore) GetSetting(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.settings[key]
	return v, ok, nil
}

func (s *MemoryStore) PutSetting(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

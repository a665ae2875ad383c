package database

import (
	"context"
	"errors"
	"fmt"

	"AttendanceBot/clock"
	"AttendanceBot/models"
)

// Store persists workers, submission facts and small key/value settings.
// Implementations must make InsertSubmission atomic per (worker, date).
type Store interface {
	// InsertWorkerIfAbsent reports whether a new row was created.
	InsertWorkerIfAbsent(ctx context.Context, w models.Worker) (bool, error)
	GetWorker(ctx context.Context, id string) (*models.Worker, error)
	// ListWorkers returns workers in registration order.
	ListWorkers(ctx context.Context) ([]models.Worker, error)

	// InsertSubmission reports false when a record for the same worker and
	// date already exists.
	InsertSubmission(ctx context.Context, rec models.SubmissionRecord) (bool, error)
	// WorkerSubmissions returns the worker's records, newest date first.
	WorkerSubmissions(ctx context.Context, workerID string) ([]models.SubmissionRecord, error)
	// SubmittedOn returns ids of workers with a record on date.
	SubmittedOn(ctx context.Context, date clock.Date) ([]string, error)
	// Snapshot reads workers and all submission dates in one consistent view.
	Snapshot(ctx context.Context) (*Snapshot, error)

	GetSetting(ctx context.Context, key string) (string, bool, error)
	PutSetting(ctx context.Context, key, value string) error
}

// Snapshot is a point-in-time copy of the ledger tables.
type Snapshot struct {
	Workers []models.Worker
	// Dates maps worker id to submission dates, newest first.
	Dates map[string][]clock.Date
}

// StorageError wraps a persistence failure. Callers treat it as fatal for
// the current operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageError reports whether err carries a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"AttendanceBot/clock"
	"AttendanceBot/models"
)

// pq error code for foreign_key_violation.
const fkViolation = "23503"

type PostgresStore struct {
	DB *sql.DB
}

func NewPostgresStore(conn *sql.DB) *PostgresStore {
	return &PostgresStore{DB: conn}
}

func (s *PostgresStore) InsertWorkerIfAbsent(ctx context.Context, w models.Worker) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `
		INSERT INTO workers (id, display_name, registered_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`, w.ID, w.DisplayName, w.RegisteredAt)
	if err != nil {
		return false, storageErr("insert worker", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("insert worker", err)
	}
	return n == 1, nil
}

func (s *PostgresStore) GetWorker(ctx context.Context, id string) (*models.Worker, error) {
	var w models.Worker
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, display_name, registered_at
		FROM workers
		WHERE id = $1
	`, id).Scan(&w.ID, &w.DisplayName, &w.RegisteredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get worker", err)
	}
	return &w, nil
}

func (s *PostgresStore) ListWorkers(ctx context.Context) ([]models.Worker, error) {
	return listWorkers(ctx, s.DB)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listWorkers(ctx context.Context, q querier) ([]models.Worker, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, display_name, registered_at
		FROM workers
		ORDER BY registered_at, id
	`)
	if err != nil {
		return nil, storageErr("list workers", err)
	}
	defer rows.Close()

	workers := []models.Worker{}
	for rows.Next() {
		var w models.Worker
		if err := rows.Scan(&w.ID, &w.DisplayName, &w.RegisteredAt); err != nil {
			return nil, storageErr("scan worker", err)
		}
		workers = append(workers, w)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list workers", err)
	}
	return workers, nil
}

func (s *PostgresStore) InsertSubmission(ctx context.Context, rec models.SubmissionRecord) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `
		INSERT INTO submissions (id, worker_id, civil_date, submitted_at)
		VALUES ($1, $2, $3::date, $4)
		ON CONFLICT (worker_id, civil_date) DO NOTHING
	`, rec.ID, rec.WorkerID, rec.Date.String(), rec.SubmittedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == fkViolation {
			return false, models.ErrUnknownWorker
		}
		return false, storageErr("insert submission", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("insert submission", err)
	}
	return n == 1, nil
}

func (s *PostgresStore) WorkerSubmissions(ctx context.Context, workerID string) ([]models.SubmissionRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, worker_id, civil_date, submitted_at
		FROM submissions
		WHERE worker_id = $1
		ORDER BY civil_date DESC
	`, workerID)
	if err != nil {
		return nil, storageErr("worker submissions", err)
	}
	defer rows.Close()

	records := []models.SubmissionRecord{}
	for rows.Next() {
		var rec models.SubmissionRecord
		var day time.Time
		if err := rows.Scan(&rec.ID, &rec.WorkerID, &day, &rec.SubmittedAt); err != nil {
			return nil, storageErr("scan submission", err)
		}
		rec.Date = clock.DateOf(day)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("worker submissions", err)
	}
	return records, nil
}

func (s *PostgresStore) SubmittedOn(ctx context.Context, date clock.Date) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT s.worker_id
		FROM submissions s
		JOIN workers w ON w.id = s.worker_id
		WHERE s.civil_date = $1::date
		ORDER BY w.registered_at, w.id
	`, date.String())
	if err != nil {
		return nil, storageErr("submitted on", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storageErr("scan worker id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("submitted on", err)
	}
	return ids, nil
}

// Snapshot runs both reads inside one repeatable-read transaction so the
// worker list and the submission dates agree with each other.
func (s *PostgresStore) Snapshot(ctx context.Context) (*Snapshot, error) {
	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, storageErr("begin snapshot", err)
	}
	defer tx.Rollback()

	workers, err := listWorkers(ctx, tx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT worker_id, civil_date
		FROM submissions
		ORDER BY worker_id, civil_date DESC
	`)
	if err != nil {
		return nil, storageErr("snapshot submissions", err)
	}
	defer rows.Close()

	dates := make(map[string][]clock.Date, len(workers))
	for rows.Next() {
		var id string
		var day time.Time
		if err := rows.Scan(&id, &day); err != nil {
			return nil, storageErr("scan snapshot", err)
		}
		dates[id] = append(dates[id], clock.DateOf(day))
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("snapshot submissions", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, storageErr("commit snapshot", err)
	}
	return &Snapshot{Workers: workers, Dates: dates}, nil
}

func (s *PostgresStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.DB.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = $1", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storageErr("get setting", err)
	}
	return value, true, nil
}

func (s *PostgresStore) PutSetting(ctx context.Context, key, value string) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value)
	if err != nil {
		return storageErr("put setting", err)
	}
	return nil
}

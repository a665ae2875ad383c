package models

import (
	"time"

	"github.com/google/uuid"

	"AttendanceBot/clock"
)

type SubmissionStatus string

const (
	StatusNewSubmission    SubmissionStatus = "NEW_SUBMISSION"
	StatusAlreadySubmitted SubmissionStatus = "ALREADY_SUBMITTED"
)

// SubmissionRecord states that a worker submitted on a civil date.
// SubmittedAt is kept for audit only; streaks are derived from Date.
type SubmissionRecord struct {
	ID          string     `json:"id" db:"id"`
	WorkerID    string     `json:"worker_id" db:"worker_id"`
	Date        clock.Date `json:"civil_date" db:"civil_date"`
	SubmittedAt time.Time  `json:"submitted_at" db:"submitted_at"`
}

// SubmissionResult is what LogSubmission reports back to the caller.
type SubmissionResult struct {
	Status SubmissionStatus `json:"status"`
	Streak int              `json:"streak"`
}

func NewSubmissionRecord(workerID string, date clock.Date, at time.Time) SubmissionRecord {
	return SubmissionRecord{
		ID:          "SUB-" + uuid.New().String(),
		WorkerID:    workerID,
		Date:        date,
		SubmittedAt: at.UTC(),
	}
}

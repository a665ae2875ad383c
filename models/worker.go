package models

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrUnknownWorker = errors.New("unknown worker")
	ErrInvalidClock  = errors.New("clock moved backwards")
	ErrNotFound      = errors.New("not found")
)

// Worker is a field worker known to the ledger. ID is the chat platform's
// stable user id; DisplayName is kept from the first enrollment.
type Worker struct {
	ID           string    `json:"id" db:"id"`
	DisplayName  string    `json:"display_name" db:"display_name"`
	RegisteredAt time.Time `json:"registered_at" db:"registered_at"`
}

// WorkerStreak pairs a worker with a derived streak.
type WorkerStreak struct {
	WorkerID    string `json:"worker_id"`
	DisplayName string `json:"display_name"`
	Streak      int    `json:"streak"`
}

func NewWorker(id, displayName string, registeredAt time.Time) (*Worker, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("invalid worker details: id is required")
	}
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = id
	}
	return &Worker{
		ID:           id,
		DisplayName:  name,
		RegisteredAt: registeredAt.UTC(),
	}, nil
}

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Open connects to Postgres and runs migrations.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err = db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	logger.Info("connected to database")

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error running migrations: %w", err)
	}
	logger.Info("migrations completed")

	return db, nil
}

// Migrate creates the ledger tables if they are missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS workers (
			id VARCHAR(64) PRIMARY KEY,
			display_name VARCHAR(255) NOT NULL,
			registered_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS submissions (
			id VARCHAR(64) PRIMARY KEY,
			worker_id VARCHAR(64) NOT NULL REFERENCES workers(id),
			civil_date DATE NOT NULL,
			submitted_at TIMESTAMPTZ NOT NULL,
			UNIQUE(worker_id, civil_date)
		)`,
		// Holds the current destination chat for scheduled jobs.
		`CREATE TABLE IF NOT EXISTS settings (
			key VARCHAR(64) PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_workers_registered ON workers(registered_at, id)`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_date ON submissions(civil_date)`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_worker_date ON submissions(worker_id, civil_date DESC)`,
	}

	for _, migration := range migrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, migration)
		}
	}
	return nil
}

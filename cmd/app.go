package cmd

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"AttendanceBot/clock"
	"AttendanceBot/config"
	"AttendanceBot/database"
	"AttendanceBot/jobs"
	"AttendanceBot/ledger"
	"AttendanceBot/logging"
	"AttendanceBot/reports"
	"AttendanceBot/spreadsheet"
)

// app holds what every subcommand shares: configuration, logger, storage,
// the ledger and the report generator.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	flush    func()
	schedule *config.Schedule
	cal      *clock.Calendar
	db       *sql.DB
	store    database.Store
	ledger   *ledger.Ledger
	reports  *reports.Generator
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	logger, flush, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: logger, flush: flush}

	if a.schedule, err = loadSchedule(cfg); err != nil {
		a.Close()
		return nil, err
	}
	if a.cal, err = calendarFor(cfg, a.schedule); err != nil {
		a.Close()
		return nil, err
	}

	switch cfg.Store {
	case config.StoreMemory:
		logger.Warn("using in-memory store; attendance is lost on exit")
		a.store = database.NewMemoryStore()
	default:
		a.db, err = database.Open(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.store = database.NewPostgresStore(a.db)
	}

	a.ledger = ledger.New(a.store, a.cal, nil, logger)
	a.reports = reports.NewGenerator(a.ledger, spreadsheet.XLSX{SheetName: "Missing"})
	logger.Info("application initialised",
		zap.String("store", cfg.Store),
		zap.String("timezone", a.cal.Location().String()),
		zap.Int("rules", len(a.schedule.Rules)))
	return a, nil
}

func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("close database", zap.Error(err))
		}
	}
	a.flush()
}

func loadSchedule(cfg *config.Config) (*config.Schedule, error) {
	if cfg.ScheduleFile != "" {
		return config.LoadSchedule(cfg.ScheduleFile)
	}
	return config.DefaultSchedule()
}

func loadContent(cfg *config.Config) (*jobs.Content, error) {
	if cfg.ContentFile != "" {
		return jobs.LoadContent(cfg.ContentFile)
	}
	return jobs.DefaultContent()
}

// calendarFor picks the schedule file's zone over TIMEZONE.
func calendarFor(cfg *config.Config, sched *config.Schedule) (*clock.Calendar, error) {
	tz := cfg.Timezone
	if sched.Timezone != "" {
		tz = sched.Timezone
	}
	cal, err := clock.NewCalendar(tz)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cal, nil
}

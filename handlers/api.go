// Package handlers serves the supervisor HTTP API: today's attendance, the
// streak board, the missing-workers export and manual job runs.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"AttendanceBot/clock"
	"AttendanceBot/ledger"
	"AttendanceBot/messaging"
	"AttendanceBot/middleware"
	"AttendanceBot/models"
)

const jobRunTimeout = 2 * time.Minute

type Attendance interface {
	DailyView(ctx context.Context, now time.Time) (*ledger.DailyView, error)
	TopStreaks(ctx context.Context, n int, now time.Time) ([]models.WorkerStreak, error)
}

type MissingExporter interface {
	ExportMissingWorkersTable(ctx context.Context, now time.Time) ([]byte, bool, error)
}

type JobRunner interface {
	Names() []string
	RunTo(ctx context.Context, name string, chat int64) error
}

type Deps struct {
	Attendance  Attendance
	Reports     MissingExporter
	Jobs        JobRunner
	Destination *messaging.Destination
	Calendar    *clock.Calendar
	Clock       clock.Clock

	Auth              *middleware.JWTAuth
	Limiter           *middleware.RateLimiter
	AdminUsername     string
	AdminPasswordHash string
	AllowedOrigins    []string

	Logger *zap.Logger
}

type API struct {
	attendance Attendance
	reports    MissingExporter
	jobs       JobRunner
	dest       *messaging.Destination
	cal        *clock.Calendar
	clk        clock.Clock

	auth          *middleware.JWTAuth
	limiter       *middleware.RateLimiter
	adminUser     string
	adminHash     []byte
	allowedOrigin []string

	log *zap.Logger
}

func New(d Deps) *API {
	if d.Clock == nil {
		d.Clock = clock.System{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if len(d.AllowedOrigins) == 0 {
		d.AllowedOrigins = []string{"*"}
	}
	return &API{
		attendance:    d.Attendance,
		reports:       d.Reports,
		jobs:          d.Jobs,
		dest:          d.Destination,
		cal:           d.Calendar,
		clk:           d.Clock,
		auth:          d.Auth,
		limiter:       d.Limiter,
		adminUser:     d.AdminUsername,
		adminHash:     []byte(d.AdminPasswordHash),
		allowedOrigin: d.AllowedOrigins,
		log:           d.Logger.Named("api"),
	}
}

// Handler returns the routed API wrapped in CORS.
func (a *API) Handler() http.Handler {
	router := mux.NewRouter()

	// Public routes
	router.HandleFunc("/api/health", a.HealthCheck).Methods("GET")
	router.HandleFunc("/api/auth/login", a.Login).Methods("POST")

	// Protected routes
	api := router.PathPrefix("/api").Subrouter()
	api.Use(a.auth.AuthMiddleware)
	api.Use(middleware.AdminOnly)

	api.HandleFunc("/attendance/today", a.GetTodayAttendance).Methods("GET")
	api.HandleFunc("/streaks", a.GetTopStreaks).Methods("GET")
	api.HandleFunc("/reports/missing.xlsx", a.DownloadMissingWorkers).Methods("GET")
	api.HandleFunc("/destination", a.GetDestination).Methods("GET")
	api.HandleFunc("/jobs", a.ListJobs).Methods("GET")
	api.HandleFunc("/jobs/{name}/run", a.RunJob).Methods("POST")

	router.Use(middleware.LoggingMiddleware(a.log))
	if a.limiter != nil {
		router.Use(a.limiter.Middleware)
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: a.allowedOrigin,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
		},
		ExposedHeaders: []string{
			"Content-Disposition",
		},
		// Tokens travel in the Authorization header, never in cookies.
		AllowCredentials: false,
		MaxAge:           300,
	})
	return corsHandler.Handler(router)
}

func (a *API) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "AttendanceBot",
	})
}

package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"AttendanceBot/clock"
	"AttendanceBot/models"
	"AttendanceBot/reports"
)

const maxStreakLimit = 100

type TodayAttendance struct {
	Date           clock.Date      `json:"date"`
	SubmittedCount int             `json:"submitted_count"`
	TotalWorkers   int             `json:"total_workers"`
	Submitted      []models.Worker `json:"submitted"`
	Missing        []models.Worker `json:"missing"`
}

type StreakBoard struct {
	Date    clock.Date            `json:"date"`
	Streaks []models.WorkerStreak `json:"streaks"`
}

// GetTodayAttendance - who has and has not submitted on the current civil date
func (a *API) GetTodayAttendance(w http.ResponseWriter, r *http.Request) {
	view, err := a.attendance.DailyView(r.Context(), a.clk.Now())
	if err != nil {
		a.log.Error("daily view", zap.Error(err))
		respondWithStoreError(w, err, "Database error")
		return
	}
	resp := TodayAttendance{
		Date:           view.Date,
		SubmittedCount: len(view.Submitted),
		TotalWorkers:   len(view.Submitted) + len(view.Missing),
		Submitted:      nonNil(view.Submitted),
		Missing:        nonNil(view.Missing),
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// GetTopStreaks - streak board, ?limit=N (default 5)
func (a *API) GetTopStreaks(w http.ResponseWriter, r *http.Request) {
	limit := reports.DefaultTopN
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxStreakLimit {
			respondWithError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	now := a.clk.Now()
	top, err := a.attendance.TopStreaks(r.Context(), limit, now)
	if err != nil {
		a.log.Error("top streaks", zap.Error(err))
		respondWithStoreError(w, err, "Database error")
		return
	}
	if top == nil {
		top = []models.WorkerStreak{}
	}
	respondWithJSON(w, http.StatusOK, StreakBoard{Date: a.cal.Date(now), Streaks: top})
}

// DownloadMissingWorkers - today's missing workers as a spreadsheet. 204 when
// everyone has submitted.
func (a *API) DownloadMissingWorkers(w http.ResponseWriter, r *http.Request) {
	now := a.clk.Now()
	payload, ok, err := a.reports.ExportMissingWorkersTable(r.Context(), now)
	if err != nil {
		a.log.Error("export missing workers", zap.Error(err))
		respondWithStoreError(w, err, "Error building export")
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	name := reports.MissingFileName(a.cal.Date(now))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

func nonNil(ws []models.Worker) []models.Worker {
	if ws == nil {
		return []models.Worker{}
	}
	return ws
}

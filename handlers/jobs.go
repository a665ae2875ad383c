package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"AttendanceBot/jobs"
	"AttendanceBot/middleware"
)

type DestinationResponse struct {
	ChatID int64 `json:"chat_id"`
	Known  bool  `json:"known"`
}

type JobRunResponse struct {
	Action string `json:"action"`
	ChatID int64  `json:"chat_id"`
	Status string `json:"status"`
}

func (a *API) GetDestination(w http.ResponseWriter, r *http.Request) {
	chat, ok := a.dest.Get()
	respondWithJSON(w, http.StatusOK, DestinationResponse{ChatID: chat, Known: ok})
}

func (a *API) ListJobs(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string][]string{"actions": a.jobs.Names()})
}

// RunJob runs one action against the destination chat now. The run outlives
// the request.
func (a *API) RunJob(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	chat, ok := a.dest.Get()
	if !ok {
		respondWithError(w, http.StatusConflict, "No destination chat known yet")
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), jobRunTimeout)
	defer cancel()

	user, _ := middleware.GetUserIDFromContext(r.Context())
	log := a.log.With(zap.String("action", name), zap.Int64("chat_id", chat), zap.String("user", user))
	if err := a.jobs.RunTo(ctx, name, chat); err != nil {
		if errors.Is(err, jobs.ErrUnknownAction) {
			respondWithError(w, http.StatusNotFound, "Unknown action")
			return
		}
		log.Error("manual job run failed", zap.Error(err))
		respondWithError(w, http.StatusBadGateway, "Job failed: "+err.Error())
		return
	}
	log.Info("manual job run")
	respondWithJSON(w, http.StatusOK, JobRunResponse{Action: name, ChatID: chat, Status: "sent"})
}

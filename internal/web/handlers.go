package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/justestif/moodmap/internal/history"
	"github.com/justestif/moodmap/internal/mood"
	"github.com/justestif/moodmap/internal/session"
	"github.com/justestif/moodmap/internal/state"
)

// Handlers contains the HTTP handlers for the control API.
type Handlers struct {
	ctl    *session.Controller
	logger *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(ctl *session.Controller, logger *zap.Logger) *Handlers {
	return &Handlers{ctl: ctl, logger: logger}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var errBadRequest = errors.New("bad request")

// statusFor maps controller errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, state.ErrIllegalTransition),
		errors.Is(err, state.ErrSyncInProgress),
		errors.Is(err, session.ErrNoSelection):
		return http.StatusConflict
	case errors.Is(err, mood.ErrUnknownMood),
		errors.Is(err, mood.ErrUnknownJourney),
		errors.Is(err, history.ErrUnknownFavourite):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, session.ErrInvalidTimer),
		errors.Is(err, session.ErrInvalidTheme),
		errors.Is(err, history.ErrInvalidAnswer):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}

// State returns the session snapshot (GET /api/state).
func (h *Handlers) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctl.Snapshot())
}

// Sync starts reading the room (POST /api/sync).
func (h *Handlers) Sync(w http.ResponseWriter, r *http.Request) {
	if err := h.ctl.Sync(); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, h.ctl.Snapshot())
}

// Moods lists the catalog families (GET /api/moods).
func (h *Handlers) Moods(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctl.Catalog().Families())
}

// PickMood selects a mood (POST /api/moods/{id}/pick).
func (h *Handlers) PickMood(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.ctl.PickMood(chi.URLParam(r, "id")))
}

// Journeys lists the journeys (GET /api/journeys).
func (h *Handlers) Journeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctl.Catalog().Journeys())
}

// StartJourney starts a journey (POST /api/journeys/{id}/start).
func (h *Handlers) StartJourney(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.ctl.StartJourney(chi.URLParam(r, "id")))
}

// CancelJourney cancels the running journey (POST /api/journeys/cancel).
func (h *Handlers) CancelJourney(w http.ResponseWriter, r *http.Request) {
	h.ctl.CancelJourney()
	h.respond(w, nil)
}

// Play starts playback (POST /api/play).
func (h *Handlers) Play(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.ctl.Play(r.Context()))
}

// Stop halts playback (POST /api/stop).
func (h *Handlers) Stop(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.ctl.Stop())
}

// SetVolume sets the volume (PUT /api/volume).
func (h *Handlers) SetVolume(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Volume *float64 `json:"volume"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.Volume == nil {
		h.writeError(w, fmt.Errorf("%w: volume is required", errBadRequest))
		return
	}
	_, err := h.ctl.SetVolume(*req.Volume)
	h.respond(w, err)
}

// SetSleepTimer sets the sleep timer (PUT /api/timer).
func (h *Handlers) SetSleepTimer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Minutes int `json:"minutes"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, h.ctl.SetSleepTimer(req.Minutes))
}

// SetTheme sets the theme (PUT /api/theme).
func (h *Handlers) SetTheme(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Theme string `json:"theme"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, h.ctl.SetTheme(req.Theme))
}

// Favourites lists favourites (GET /api/favourites).
func (h *Handlers) Favourites(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctl.Favourites())
}

// AddFavourite saves the current selection (POST /api/favourites).
func (h *Handlers) AddFavourite(w http.ResponseWriter, r *http.Request) {
	fav, err := h.ctl.AddFavourite()
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, fav)
}

// PickFavourite selects a favourite (POST /api/favourites/{id}/pick).
func (h *Handlers) PickFavourite(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.ctl.PickFavourite(chi.URLParam(r, "id")))
}

// RemoveFavourite deletes a favourite (DELETE /api/favourites/{id}).
func (h *Handlers) RemoveFavourite(w http.ResponseWriter, r *http.Request) {
	if err := h.ctl.RemoveFavourite(chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type answerRequest struct {
	Answer string `json:"answer"`
	Skip   bool   `json:"skip"`
}

// Reflect answers the journey reflection (POST /api/reflection).
func (h *Handlers) Reflect(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, h.ctl.Reflect(req.Answer))
}

// CheckIn answers or skips the post-session check-in (POST /api/checkin).
func (h *Handlers) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.Skip {
		h.ctl.SkipCheckIn()
		h.respond(w, nil)
		return
	}
	h.respond(w, h.ctl.CheckIn(req.Answer))
}

// Suggest proposes moods for free text (POST /api/suggest).
func (h *Handlers) Suggest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctl.Suggest(r.Context(), req.Text))
}

// Streak returns the streak summary (GET /api/streak).
func (h *Handlers) Streak(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctl.Streak())
}

// Sessions lists recorded listening sessions, oldest first (GET /api/sessions).
func (h *Handlers) Sessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctl.Sessions())
}

// respond writes err, or the current snapshot when err is nil.
func (h *Handlers) respond(w http.ResponseWriter, err error) {
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctl.Snapshot())
}

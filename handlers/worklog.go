package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"worklog/database"
)

// WorkLogHandler exposes clock-in/clock-out time tracking and summaries.
type WorkLogHandler struct {
	logs  *database.WorkLogStore
	audit *database.AuditStore
	log   *zap.SugaredLogger
}

func NewWorkLogHandler(logs *database.WorkLogStore, audit *database.AuditStore, log *zap.SugaredLogger) *WorkLogHandler {
	return &WorkLogHandler{
		logs:  logs,
		audit: audit,
		log:   log,
	}
}

// ClockIn opens a work log entry for the signed-in user.
func (h *WorkLogHandler) ClockIn(w http.ResponseWriter, r *http.Request) {
	email, ok := emailFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	var req struct {
		ProjectID string `json:"project_id"`
		TeamID    string `json:"team_id"`
		Note      string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request format")
		return
	}
	if req.ProjectID == "" || req.TeamID == "" {
		writeError(w, http.StatusBadRequest, "project_id and team_id are required")
		return
	}

	entry, err := h.logs.ClockIn(r.Context(), email, req.ProjectID, req.TeamID, req.Note)
	if errors.Is(err, database.ErrAlreadyClockedIn) {
		writeError(w, http.StatusConflict, "an open work log already exists")
		return
	}
	if err != nil {
		h.log.Errorf("Error clocking in %s: %v", email, err)
		writeError(w, http.StatusInternalServerError, "failed to clock in")
		return
	}

	h.recordAudit(r, email, "clock_in", entry.ID, req.ProjectID, req.TeamID)
	writeSuccess(w, entry)
}

// ClockOut closes the user's open work log entry.
func (h *WorkLogHandler) ClockOut(w http.ResponseWriter, r *http.Request) {
	email, ok := emailFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	entry, err := h.logs.ClockOut(r.Context(), email)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no open work log")
		return
	}
	if err != nil {
		h.log.Errorf("Error clocking out %s: %v", email, err)
		writeError(w, http.StatusInternalServerError, "failed to clock out")
		return
	}

	h.recordAudit(r, email, "clock_out", entry.ID, entry.ProjectID, entry.TeamID)
	writeSuccess(w, entry)
}

// List returns the user's work logs for a date range (defaults to the last
// 30 days).
func (h *WorkLogHandler) List(w http.ResponseWriter, r *http.Request) {
	email, ok := emailFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	from, to, err := dateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.logs.List(r.Context(), email, from, to)
	if err != nil {
		h.log.Errorf("Error listing work logs for %s: %v", email, err)
		writeError(w, http.StatusInternalServerError, "failed to list work logs")
		return
	}

	writeSuccess(w, entries)
}

// Summary returns minutes tracked per member for a team and range.
func (h *WorkLogHandler) Summary(w http.ResponseWriter, r *http.Request) {
	if _, ok := emailFrom(r); !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}
	teamID := r.URL.Query().Get("team_id")
	if teamID == "" {
		writeError(w, http.StatusBadRequest, "team_id is required")
		return
	}

	from, to, err := dateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	totals, err := h.logs.MemberMinutes(r.Context(), teamID, from, to)
	if err != nil {
		h.log.Errorf("Error summarizing work logs for team %s: %v", teamID, err)
		writeError(w, http.StatusInternalServerError, "failed to summarize work logs")
		return
	}

	writeSuccess(w, totals)
}

func dateRange(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -30)
	to := now.AddDate(0, 0, 1)

	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid from date, want YYYY-MM-DD")
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid to date, want YYYY-MM-DD")
		}
		to = parsed
	}
	return from, to, nil
}

func (h *WorkLogHandler) recordAudit(r *http.Request, actor, action, entryID, projectID, teamID string) {
	err := h.audit.Record(r.Context(), database.AuditEntry{
		Actor:     actor,
		Action:    action,
		Entity:    "work_log",
		EntityID:  entryID,
		ProjectID: projectID,
		TeamID:    teamID,
	})
	if err != nil {
		h.log.Warnf("Error recording audit entry: %v", err)
	}
}

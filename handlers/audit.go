package handlers

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"worklog/database"
)

// AuditHandler serves the filterable audit trail.
type AuditHandler struct {
	audit *database.AuditStore
	log   *zap.SugaredLogger
}

func NewAuditHandler(audit *database.AuditStore, log *zap.SugaredLogger) *AuditHandler {
	return &AuditHandler{
		audit: audit,
		log:   log,
	}
}

// List returns audit entries matching the query filters, newest first.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := emailFrom(r); !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	q := r.URL.Query()
	filter := database.AuditFilter{
		Actor:     q.Get("actor"),
		Action:    q.Get("action"),
		Entity:    q.Get("entity"),
		ProjectID: q.Get("project_id"),
		TeamID:    q.Get("team_id"),
	}
	if raw := q.Get("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from date, want YYYY-MM-DD")
			return
		}
		filter.From = parsed
	}
	if raw := q.Get("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to date, want YYYY-MM-DD")
			return
		}
		filter.To = parsed
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	entries, err := h.audit.List(r.Context(), filter)
	if err != nil {
		h.log.Errorf("Error listing audit entries: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list audit entries")
		return
	}

	writeSuccess(w, entries)
}

package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"worklog/services"
)

// JiraHandler triggers JIRA ingestion on demand; the scheduler covers the
// periodic case.
type JiraHandler struct {
	sync *services.JiraSync
	log  *zap.SugaredLogger
}

func NewJiraHandler(sync *services.JiraSync, log *zap.SugaredLogger) *JiraHandler {
	return &JiraHandler{
		sync: sync,
		log:  log,
	}
}

// TriggerSync runs one JIRA ingestion pass.
func (h *JiraHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	email, ok := emailFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}
	if h.sync == nil {
		writeError(w, http.StatusServiceUnavailable, "JIRA integration is not configured")
		return
	}

	created, err := h.sync.Sync(r.Context())
	if err != nil {
		h.log.Errorf("JIRA sync triggered by %s failed: %v", email, err)
		writeError(w, http.StatusBadGateway, "JIRA sync failed")
		return
	}

	writeSuccess(w, map[string]int{"created": created})
}

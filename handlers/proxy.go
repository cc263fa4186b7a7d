package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"worklog/database"
)

// ProxyHandler exposes the generic table operation endpoint. Business
// failures come back as `{error}` with HTTP 200, matching what table-proxy
// clients expect; only transport-level problems use error status codes.
type ProxyHandler struct {
	proxy *database.Proxy
	log   *zap.SugaredLogger
}

func NewProxyHandler(proxy *database.Proxy, log *zap.SugaredLogger) *ProxyHandler {
	return &ProxyHandler{
		proxy: proxy,
		log:   log,
	}
}

func (h *ProxyHandler) Handle(w http.ResponseWriter, r *http.Request) {
	email, ok := emailFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	var req database.ProxyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request format")
		return
	}

	result, err := h.proxy.Execute(r.Context(), email, req)
	if err != nil {
		if !errors.Is(err, database.ErrInvalidRequest) {
			h.log.Errorf("Proxy %s on %s failed: %v", req.Action, req.Table, err)
		}
		writeJSON(w, http.StatusOK, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  result.Data,
		"count": result.Count,
	})
}

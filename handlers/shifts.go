package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"worklog/database"
	"worklog/services"
)

// ShiftHandler exposes shift code definitions and the CSV schedule
// import/export.
type ShiftHandler struct {
	shifts *services.ShiftService
	store  *database.ShiftStore
	log    *zap.SugaredLogger
}

func NewShiftHandler(shifts *services.ShiftService, store *database.ShiftStore, log *zap.SugaredLogger) *ShiftHandler {
	return &ShiftHandler{
		shifts: shifts,
		store:  store,
		log:    log,
	}
}

func monthScope(r *http.Request) (projectID, teamID string, year, month int, err error) {
	projectID = r.URL.Query().Get("project_id")
	teamID = r.URL.Query().Get("team_id")
	if projectID == "" || teamID == "" {
		return "", "", 0, 0, fmt.Errorf("project_id and team_id are required")
	}
	year, err = strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil || year < 2000 || year > 2100 {
		return "", "", 0, 0, fmt.Errorf("valid year is required")
	}
	month, err = strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || month < 1 || month > 12 {
		return "", "", 0, 0, fmt.Errorf("valid month is required")
	}
	return projectID, teamID, year, month, nil
}

// ImportCSV ingests a monthly schedule. The request body is the raw CSV.
func (h *ShiftHandler) ImportCSV(w http.ResponseWriter, r *http.Request) {
	email, ok := emailFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}
	projectID, teamID, year, month, err := monthScope(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.shifts.Import(r.Context(), email, projectID, teamID, year, month, r.Body)
	if err != nil {
		h.log.Errorf("Error importing schedule %s/%s %d-%02d: %v", projectID, teamID, year, month, err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeSuccess(w, summary)
}

// ExportCSV streams the monthly schedule as CSV.
func (h *ShiftHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	projectID, teamID, year, month, err := monthScope(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="schedule-%04d-%02d.csv"`, year, month))

	if err := h.shifts.Export(r.Context(), projectID, teamID, year, month, w); err != nil {
		h.log.Errorf("Error exporting schedule %s/%s %d-%02d: %v", projectID, teamID, year, month, err)
	}
}

// ListEnums returns the shift codes defined for a board.
func (h *ShiftHandler) ListEnums(w http.ResponseWriter, r *http.Request) {
	projectID, teamID, ok := boardScope(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "project_id and team_id are required")
		return
	}

	if err := h.store.EnsureMandatoryCodes(r.Context(), projectID, teamID); err != nil {
		h.log.Errorf("Error seeding shift codes: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list shift codes")
		return
	}
	enums, err := h.store.ListEnums(r.Context(), projectID, teamID)
	if err != nil {
		h.log.Errorf("Error listing shift codes: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list shift codes")
		return
	}

	writeSuccess(w, enums)
}

// UpsertEnum creates or updates a shift code definition.
func (h *ShiftHandler) UpsertEnum(w http.ResponseWriter, r *http.Request) {
	if _, ok := emailFrom(r); !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	var enum database.ShiftEnum
	if err := json.NewDecoder(r.Body).Decode(&enum); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request format")
		return
	}
	if enum.Code == "" || enum.Name == "" || enum.ProjectID == "" || enum.TeamID == "" {
		writeError(w, http.StatusBadRequest, "code, name, project_id and team_id are required")
		return
	}

	saved, err := h.store.UpsertEnum(r.Context(), &enum)
	if err != nil {
		h.log.Errorf("Error saving shift code %s: %v", enum.Code, err)
		writeError(w, http.StatusInternalServerError, "failed to save shift code")
		return
	}

	writeSuccess(w, saved)
}

// DeleteEnum removes a shift code definition.
func (h *ShiftHandler) DeleteEnum(w http.ResponseWriter, r *http.Request) {
	if _, ok := emailFrom(r); !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}
	projectID, teamID, ok := boardScope(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "project_id and team_id are required")
		return
	}
	code := mux.Vars(r)["code"]

	err := h.store.DeleteEnum(r.Context(), projectID, teamID, code)
	switch {
	case errors.Is(err, database.ErrProtectedCode):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "shift code not found")
	case err != nil:
		h.log.Errorf("Error deleting shift code %s: %v", code, err)
		writeError(w, http.StatusInternalServerError, "failed to delete shift code")
	default:
		writeSuccess(w, map[string]string{"code": code})
	}
}

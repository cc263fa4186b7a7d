package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"worklog/database"
	"worklog/services"
)

// BoardHandler exposes the kanban board: load, move, task and column CRUD,
// and the live-update websocket.
type BoardHandler struct {
	board *services.BoardService
	hub   *services.Hub
	log   *zap.SugaredLogger
}

func NewBoardHandler(board *services.BoardService, hub *services.Hub, log *zap.SugaredLogger) *BoardHandler {
	return &BoardHandler{
		board: board,
		hub:   hub,
		log:   log,
	}
}

func boardScope(r *http.Request) (projectID, teamID string, ok bool) {
	projectID = r.URL.Query().Get("project_id")
	teamID = r.URL.Query().Get("team_id")
	return projectID, teamID, projectID != "" && teamID != ""
}

// GetBoard returns the assembled board for a project/team pair.
// `force=true` bypasses the staleness window and the cache.
func (h *BoardHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	projectID, teamID, ok := boardScope(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "project_id and team_id are required")
		return
	}

	force := r.URL.Query().Get("force") == "true"
	board, err := h.board.Load(r.Context(), projectID, teamID, force)
	if err != nil {
		h.log.Errorf("Error loading board %s/%s: %v", projectID, teamID, err)
		writeError(w, http.StatusInternalServerError, "failed to load board")
		return
	}

	writeSuccess(w, board)
}

// MoveTask relocates a task to an absolute (column, index) position.
func (h *BoardHandler) MoveTask(w http.ResponseWriter, r *http.Request) {
	email, ok := emailFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	var req database.MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request format")
		return
	}
	if req.TaskID == "" || req.DestinationColID == "" || req.ProjectID == "" || req.TeamID == "" {
		writeError(w, http.StatusBadRequest, "taskId, destinationColumnId, projectId and teamId are required")
		return
	}
	req.ActorEmail = email

	moved, err := h.board.Move(r.Context(), req)
	switch {
	case errors.Is(err, database.ErrVersionConflict):
		writeJSON(w, http.StatusConflict, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	case errors.Is(err, database.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	case err != nil:
		h.log.Errorf("Error moving task %s: %v", req.TaskID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "failed to move task",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"task":    moved,
	})
}

// CreateTask adds a task to a column.
func (h *BoardHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	email, ok := emailFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	var task database.Task
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request format")
		return
	}
	if task.Title == "" || task.ColumnID == "" || task.ProjectID == "" || task.TeamID == "" {
		writeError(w, http.StatusBadRequest, "title, column_id, project_id and team_id are required")
		return
	}
	task.CreatedBy = email

	created, err := h.board.CreateTask(r.Context(), email, &task)
	if err != nil {
		h.log.Errorf("Error creating task: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create task")
		return
	}

	writeSuccess(w, created)
}

// UpdateTask patches task fields.
func (h *BoardHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	email, ok := emailFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}
	taskID := mux.Vars(r)["id"]

	var patch struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Priority    *string `json:"priority"`
		AssignedTo  *string `json:"assigned_to"`
		DueDate     *string `json:"due_date"`
		Status      *string `json:"status"`
		Scope       *string `json:"scope"`
	}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request format")
		return
	}

	updated, err := h.board.UpdateTask(r.Context(), email, taskID, database.TaskPatch{
		Title:       patch.Title,
		Description: patch.Description,
		Priority:    patch.Priority,
		AssignedTo:  patch.AssignedTo,
		DueDate:     patch.DueDate,
		Status:      patch.Status,
		Scope:       patch.Scope,
	})
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		h.log.Errorf("Error updating task %s: %v", taskID, err)
		writeError(w, http.StatusInternalServerError, "failed to update task")
		return
	}

	writeSuccess(w, updated)
}

// ArchiveTask soft-deletes a task.
func (h *BoardHandler) ArchiveTask(w http.ResponseWriter, r *http.Request) {
	email, ok := emailFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}
	taskID := mux.Vars(r)["id"]

	err := h.board.ArchiveTask(r.Context(), email, taskID)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		h.log.Errorf("Error archiving task %s: %v", taskID, err)
		writeError(w, http.StatusInternalServerError, "failed to archive task")
		return
	}

	writeSuccess(w, map[string]string{"id": taskID})
}

// CreateColumn appends a column to the board.
func (h *BoardHandler) CreateColumn(w http.ResponseWriter, r *http.Request) {
	email, ok := emailFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	var col database.Column
	if err := json.NewDecoder(r.Body).Decode(&col); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request format")
		return
	}
	if col.Name == "" || col.ProjectID == "" || col.TeamID == "" {
		writeError(w, http.StatusBadRequest, "name, project_id and team_id are required")
		return
	}

	created, err := h.board.CreateColumn(r.Context(), email, &col)
	if err != nil {
		h.log.Errorf("Error creating column: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create column")
		return
	}

	writeSuccess(w, created)
}

// UpdateColumn patches column fields.
func (h *BoardHandler) UpdateColumn(w http.ResponseWriter, r *http.Request) {
	email, ok := emailFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}
	columnID := mux.Vars(r)["id"]

	var patch struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Color       *string `json:"color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request format")
		return
	}

	updated, err := h.board.UpdateColumn(r.Context(), email, columnID, database.ColumnPatch{
		Name:        patch.Name,
		Description: patch.Description,
		Color:       patch.Color,
	})
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "column not found")
		return
	}
	if err != nil {
		h.log.Errorf("Error updating column %s: %v", columnID, err)
		writeError(w, http.StatusInternalServerError, "failed to update column")
		return
	}

	writeSuccess(w, updated)
}

// DeleteColumn removes an empty column.
func (h *BoardHandler) DeleteColumn(w http.ResponseWriter, r *http.Request) {
	email, ok := emailFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}
	columnID := mux.Vars(r)["id"]

	err := h.board.DeleteColumn(r.Context(), email, columnID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "column not found")
	case errors.Is(err, database.ErrColumnNotEmpty):
		writeError(w, http.StatusConflict, "column still contains tasks")
	case err != nil:
		h.log.Errorf("Error deleting column %s: %v", columnID, err)
		writeError(w, http.StatusInternalServerError, "failed to delete column")
	default:
		writeSuccess(w, map[string]string{"id": columnID})
	}
}

// HandleWebSocket upgrades the connection and subscribes the client to one
// board's update stream.
func (h *BoardHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	email, ok := emailFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}
	projectID, teamID, ok := boardScope(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "project_id and team_id are required")
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // CORS policy is enforced at the server wrapper
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("Error upgrading to WebSocket: %v", err)
		return
	}

	client := &services.Client{
		Hub:   h.hub,
		Conn:  conn,
		Send:  make(chan []byte, 256),
		Email: email,
		Room:  services.RoomKey(projectID, teamID),
	}

	h.hub.Register(client)
	h.log.Infof("WebSocket client registered: %s (board %s/%s)", email, projectID, teamID)

	go client.WritePump()
	go client.ReadPump()
}

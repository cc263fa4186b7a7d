package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"worklog/database"
	"worklog/services"
)

type apiFixture struct {
	router *mux.Router
	token  string
	tasks  *database.TaskStore

	projectID string
	teamID    string
	todo      *database.Column
	done      *database.Column
	taskIDs   map[string]string // title -> id
}

// newAPIFixture stands up the board and proxy routes over an in-memory
// database, with a valid token for alice.
func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	db, err := database.InitDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := zap.NewNop().Sugar()
	tasks := database.NewTaskStore(db)
	columns := database.NewColumnStore(db)
	audit := database.NewAuditStore(db)
	cache := services.NewBoardCache(time.Minute)
	boardSvc := services.NewBoardService(tasks, columns, audit, cache, nil, 30*time.Second, log)

	authService := services.NewAuthService("test-secret")
	token, err := authService.CreateJWT("alice@example.com")
	require.NoError(t, err)

	boardHandler := NewBoardHandler(boardSvc, nil, log)
	proxyHandler := NewProxyHandler(database.NewProxy(db, audit), log)

	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()
	api.Use(NewAuthMiddleware(authService).Auth)
	api.HandleFunc("/board", boardHandler.GetBoard).Methods("GET")
	api.HandleFunc("/board/move", boardHandler.MoveTask).Methods("POST")
	api.HandleFunc("/tasks", boardHandler.CreateTask).Methods("POST")
	api.HandleFunc("/columns/{id}", boardHandler.DeleteColumn).Methods("DELETE")
	api.HandleFunc("/proxy", proxyHandler.Handle).Methods("POST")

	f := &apiFixture{
		router:    router,
		token:     token,
		tasks:     tasks,
		projectID: "proj-1",
		teamID:    "team-1",
		taskIDs:   make(map[string]string),
	}

	ctx := context.Background()
	f.todo, err = columns.Create(ctx, &database.Column{ProjectID: f.projectID, TeamID: f.teamID, Name: "Todo"})
	require.NoError(t, err)
	f.done, err = columns.Create(ctx, &database.Column{ProjectID: f.projectID, TeamID: f.teamID, Name: "Done"})
	require.NoError(t, err)

	for _, seed := range []struct {
		title string
		col   string
	}{
		{"t-0", f.todo.ID}, {"t-1", f.todo.ID}, {"d-0", f.done.ID},
	} {
		task, err := tasks.Create(ctx, &database.Task{
			Title: seed.title, ColumnID: seed.col,
			ProjectID: f.projectID, TeamID: f.teamID, CreatedBy: "alice@example.com",
		})
		require.NoError(t, err)
		f.taskIDs[seed.title] = task.ID
	}
	return f
}

func (f *apiFixture) request(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+f.token)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestGetBoard(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(t, "GET", fmt.Sprintf("/api/board?project_id=%s&team_id=%s", f.projectID, f.teamID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])

	board := body["data"].(map[string]any)
	assert.Equal(t, f.projectID, board["project_id"])
	assert.Len(t, board["columns"], 2)
}

func TestGetBoardRequiresScope(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(t, "GET", "/api/board?project_id=proj-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMoveTaskEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(t, "POST", "/api/board/move", map[string]any{
		"taskId":              f.taskIDs["t-0"],
		"destinationColumnId": f.done.ID,
		"destinationIndex":    0,
		"projectId":           f.projectID,
		"teamId":              f.teamID,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])

	task := body["task"].(map[string]any)
	assert.Equal(t, f.done.ID, task["column_id"])
	assert.Equal(t, float64(0), task["sort_order"])
	assert.Equal(t, float64(2), task["version"])
}

func TestMoveTaskVersionConflict(t *testing.T) {
	f := newAPIFixture(t)

	move := map[string]any{
		"taskId":              f.taskIDs["t-0"],
		"destinationColumnId": f.done.ID,
		"destinationIndex":    0,
		"projectId":           f.projectID,
		"teamId":              f.teamID,
		"version":             1,
	}
	rec := f.request(t, "POST", "/api/board/move", move)
	require.Equal(t, http.StatusOK, rec.Code)

	// Same version token again: the first move already bumped it.
	rec = f.request(t, "POST", "/api/board/move", move)
	require.Equal(t, http.StatusConflict, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["error"])
}

func TestMoveTaskNotFound(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(t, "POST", "/api/board/move", map[string]any{
		"taskId":              "nope",
		"destinationColumnId": f.done.ID,
		"projectId":           f.projectID,
		"teamId":              f.teamID,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteColumnConflict(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(t, "DELETE", "/api/columns/"+f.todo.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateTaskValidation(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(t, "POST", "/api/tasks", map[string]any{"title": "incomplete"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.request(t, "POST", "/api/tasks", map[string]any{
		"title":      "complete",
		"column_id":  f.todo.ID,
		"project_id": f.projectID,
		"team_id":    f.teamID,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	task := body["data"].(map[string]any)
	assert.Equal(t, "alice@example.com", task["created_by"])
	assert.Equal(t, float64(2), task["sort_order"])
}

func TestRequestsWithoutTokenRejected(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest("GET", "/api/board?project_id=p&team_id=t", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest("GET", "/api/board?project_id=p&team_id=t", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProxyEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(t, "POST", "/api/proxy", database.ProxyRequest{
		Table:   "tasks",
		Action:  "select",
		Select:  []string{"id", "title"},
		Filters: map[string]any{"column_id": f.todo.ID},
		Order:   "sort_order",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(2), body["count"])
}

func TestProxyBusinessErrorsKeepHTTP200(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(t, "POST", "/api/proxy", database.ProxyRequest{
		Table:  "no_such_table",
		Action: "select",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Contains(t, body["error"], "unknown table")
}

package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"worklog/database"
)

// Board is the full kanban view for a project/team pair: columns in display
// order, each holding its tasks in position order. It is derived from the
// columns and tasks tables on every assembly, never persisted as its own
// entity.
type Board struct {
	ProjectID string        `json:"project_id"`
	TeamID    string        `json:"team_id"`
	Columns   []BoardColumn `json:"columns"`
}

type BoardColumn struct {
	database.Column
	Tasks []database.Task `json:"tasks"`
}

// Clone deep-copies the board. Move snapshots depend on the copy being
// fully detached from the original slices.
func (b *Board) Clone() *Board {
	out := &Board{ProjectID: b.ProjectID, TeamID: b.TeamID}
	out.Columns = make([]BoardColumn, len(b.Columns))
	for i, col := range b.Columns {
		out.Columns[i] = BoardColumn{Column: col.Column}
		out.Columns[i].Tasks = make([]database.Task, len(col.Tasks))
		copy(out.Columns[i].Tasks, col.Tasks)
	}
	return out
}

// FindTask locates a task on the board.
func (b *Board) FindTask(taskID string) (colIdx, taskIdx int, ok bool) {
	for i, col := range b.Columns {
		for j, t := range col.Tasks {
			if t.ID == taskID {
				return i, j, true
			}
		}
	}
	return 0, 0, false
}

// AssembleBoard groups tasks under their columns. Tasks pointing at a
// column that no longer exists are dropped from the view.
func AssembleBoard(projectID, teamID string, cols []database.Column, tasks []database.Task) *Board {
	board := &Board{ProjectID: projectID, TeamID: teamID}
	index := make(map[string]int, len(cols))
	for i, c := range cols {
		board.Columns = append(board.Columns, BoardColumn{Column: c})
		index[c.ID] = i
	}
	for _, t := range tasks {
		if i, ok := index[t.ColumnID]; ok {
			board.Columns[i].Tasks = append(board.Columns[i].Tasks, t)
		}
	}
	return board
}

// Board transform errors, surfaced to the user as precondition failures.
var (
	ErrTaskNotOnBoard   = errors.New("task not found on the board")
	ErrColumnNotOnBoard = errors.New("destination column not found on the board")
)

// ApplyMove is the pure in-memory reordering: remove the task from its
// current column, splice it into the destination at the given index, and
// reassign column_id when the column changed. The version is bumped to
// mirror the increment the server applies on success. No partial mutation
// happens on error.
func ApplyMove(b *Board, taskID, destColumnID string, destIndex int) error {
	srcCol, srcIdx, ok := b.FindTask(taskID)
	if !ok {
		return ErrTaskNotOnBoard
	}
	destCol := -1
	for i, col := range b.Columns {
		if col.ID == destColumnID {
			destCol = i
			break
		}
	}
	if destCol < 0 {
		return ErrColumnNotOnBoard
	}

	task := b.Columns[srcCol].Tasks[srcIdx]
	src := b.Columns[srcCol].Tasks
	b.Columns[srcCol].Tasks = append(src[:srcIdx], src[srcIdx+1:]...)

	if destIndex < 0 {
		destIndex = 0
	}
	if destIndex > len(b.Columns[destCol].Tasks) {
		destIndex = len(b.Columns[destCol].Tasks)
	}

	task.ColumnID = destColumnID
	task.Version++
	dest := b.Columns[destCol].Tasks
	dest = append(dest, database.Task{})
	copy(dest[destIndex+1:], dest[destIndex:])
	dest[destIndex] = task
	b.Columns[destCol].Tasks = dest

	// Renumber both affected columns so sort_order mirrors list position.
	for _, i := range []int{srcCol, destCol} {
		for j := range b.Columns[i].Tasks {
			b.Columns[i].Tasks[j].SortOrder = j
		}
	}
	return nil
}

type loadState struct {
	board     *Board
	lastFetch time.Time
}

// BoardService is the single write path for everything that changes a
// board. Each mutation hits storage, records an audit entry, synchronously
// refreshes the cached board, and notifies websocket watchers — so reads
// from the same process always observe prior writes.
type BoardService struct {
	tasks   *database.TaskStore
	columns *database.ColumnStore
	audit   *database.AuditStore
	cache   *BoardCache
	hub     *Hub
	log     *zap.SugaredLogger

	mu     sync.Mutex
	window time.Duration
	loaded map[string]loadState
	now    func() time.Time

	storeFetches int // assemblies that went to storage
}

func NewBoardService(tasks *database.TaskStore, columns *database.ColumnStore,
	audit *database.AuditStore, cache *BoardCache, hub *Hub,
	loaderWindow time.Duration, log *zap.SugaredLogger) *BoardService {
	return &BoardService{
		tasks:   tasks,
		columns: columns,
		audit:   audit,
		cache:   cache,
		hub:     hub,
		log:     log,
		window:  loaderWindow,
		loaded:  make(map[string]loadState),
		now:     time.Now,
	}
}

// Load returns the board for a project/team pair. Repeat loads inside the
// staleness window reuse the in-memory board unless forceRefresh is set;
// past the window the cache is consulted before storage.
func (s *BoardService) Load(ctx context.Context, projectID, teamID string, forceRefresh bool) (*Board, error) {
	key := RoomKey(projectID, teamID)

	s.mu.Lock()
	if state, ok := s.loaded[key]; ok && !forceRefresh && s.now().Sub(state.lastFetch) < s.window {
		board := state.board
		s.mu.Unlock()
		return board, nil
	}
	s.mu.Unlock()

	if !forceRefresh {
		if board, ok := s.cache.Get(projectID, teamID); ok {
			s.remember(key, board)
			return board, nil
		}
	}

	board, err := s.refresh(ctx, projectID, teamID)
	if err != nil {
		return nil, err
	}
	return board, nil
}

// refresh assembles the board from storage, writes it through the cache,
// and resets the loader window.
func (s *BoardService) refresh(ctx context.Context, projectID, teamID string) (*Board, error) {
	cols, err := s.columns.ListBoard(ctx, projectID, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to load columns: %w", err)
	}
	tasks, err := s.tasks.ListBoard(ctx, projectID, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}

	board := AssembleBoard(projectID, teamID, cols, tasks)
	s.cache.Put(board)
	s.remember(RoomKey(projectID, teamID), board)

	s.mu.Lock()
	s.storeFetches++
	s.mu.Unlock()
	return board, nil
}

func (s *BoardService) remember(key string, board *Board) {
	s.mu.Lock()
	s.loaded[key] = loadState{board: board, lastFetch: s.now()}
	s.mu.Unlock()
}

// Move relocates a task and fans the refreshed board out to watchers.
func (s *BoardService) Move(ctx context.Context, req database.MoveRequest) (*database.Task, error) {
	moved, err := s.tasks.Move(ctx, req)
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, req.ActorEmail, "move", "task", moved.ID, req.ProjectID, req.TeamID,
		fmt.Sprintf("to column %s index %d", req.DestinationColID, moved.SortOrder))
	s.afterWrite(ctx, req.ProjectID, req.TeamID)
	return moved, nil
}

// MoveTask implements RemoteBoard for in-process movers.
func (s *BoardService) MoveTask(ctx context.Context, req database.MoveRequest) error {
	_, err := s.Move(ctx, req)
	return err
}

// CreateTask adds a task at the end of its column.
func (s *BoardService) CreateTask(ctx context.Context, actor string, t *database.Task) (*database.Task, error) {
	created, err := s.tasks.Create(ctx, t)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actor, "create", "task", created.ID, t.ProjectID, t.TeamID, created.Title)
	s.afterWrite(ctx, t.ProjectID, t.TeamID)
	return created, nil
}

// UpdateTask applies a field patch to a task.
func (s *BoardService) UpdateTask(ctx context.Context, actor, taskID string, p database.TaskPatch) (*database.Task, error) {
	updated, err := s.tasks.Update(ctx, taskID, p)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actor, "update", "task", updated.ID, updated.ProjectID, updated.TeamID, "")
	s.afterWrite(ctx, updated.ProjectID, updated.TeamID)
	return updated, nil
}

// ArchiveTask soft-deletes a task.
func (s *BoardService) ArchiveTask(ctx context.Context, actor, taskID string) error {
	t, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if err := s.tasks.Archive(ctx, taskID); err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "archive", "task", taskID, t.ProjectID, t.TeamID, t.Title)
	s.afterWrite(ctx, t.ProjectID, t.TeamID)
	return nil
}

// CreateColumn appends a column to the board.
func (s *BoardService) CreateColumn(ctx context.Context, actor string, c *database.Column) (*database.Column, error) {
	created, err := s.columns.Create(ctx, c)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actor, "create", "column", created.ID, c.ProjectID, c.TeamID, created.Name)
	s.afterWrite(ctx, c.ProjectID, c.TeamID)
	return created, nil
}

// UpdateColumn applies a field patch to a column.
func (s *BoardService) UpdateColumn(ctx context.Context, actor, columnID string, p database.ColumnPatch) (*database.Column, error) {
	updated, err := s.columns.Update(ctx, columnID, p)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actor, "update", "column", updated.ID, updated.ProjectID, updated.TeamID, "")
	s.afterWrite(ctx, updated.ProjectID, updated.TeamID)
	return updated, nil
}

// DeleteColumn removes an empty column.
func (s *BoardService) DeleteColumn(ctx context.Context, actor, columnID string) error {
	c, err := s.columns.Get(ctx, columnID)
	if err != nil {
		return err
	}
	if err := s.columns.Delete(ctx, columnID); err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "delete", "column", columnID, c.ProjectID, c.TeamID, c.Name)
	s.afterWrite(ctx, c.ProjectID, c.TeamID)
	return nil
}

func (s *BoardService) afterWrite(ctx context.Context, projectID, teamID string) {
	board, err := s.refresh(ctx, projectID, teamID)
	if err != nil {
		// The write already committed; a failed refresh only delays
		// watchers until the next load.
		s.log.Warnf("Error refreshing board %s/%s: %v", projectID, teamID, err)
		s.cache.Invalidate(projectID, teamID)
		return
	}
	if s.hub != nil {
		s.hub.BroadcastBoard(projectID, teamID, WebSocketMessage{Type: "board", Data: board})
	}
}

func (s *BoardService) recordAudit(ctx context.Context, actor, action, entity, entityID, projectID, teamID, detail string) {
	err := s.audit.Record(ctx, database.AuditEntry{
		Actor:     actor,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		ProjectID: projectID,
		TeamID:    teamID,
		Detail:    detail,
	})
	if err != nil {
		s.log.Warnf("Error recording audit entry: %v", err)
	}
}

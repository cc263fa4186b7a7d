package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskStore handles database operations for tasks.
type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

const taskColumns = `id, title, description, column_id, sort_order, priority, assigned_to,
	due_date, status, scope, created_by, jira_ticket_key, version, project_id, team_id,
	created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (*Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.ColumnID, &t.SortOrder,
		&t.Priority, &t.AssignedTo, &t.DueDate, &t.Status, &t.Scope, &t.CreatedBy,
		&t.JiraTicketKey, &t.Version, &t.ProjectID, &t.TeamID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserts a task at the end of its column.
func (s *TaskStore) Create(ctx context.Context, t *Task) (*Task, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Status == "" {
		t.Status = StatusOpen
	}
	if t.Scope == "" {
		t.Scope = ScopeProject
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.Version = 1

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Append after the last active task in the column.
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE column_id = ? AND status != ?`,
		t.ColumnID, StatusArchived).Scan(&t.SortOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to count column tasks: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Description, t.ColumnID, t.SortOrder, t.Priority,
		t.AssignedTo, t.DueDate, t.Status, t.Scope, t.CreatedBy, t.JiraTicketKey,
		t.Version, t.ProjectID, t.TeamID, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return t, nil
}

// Get retrieves a single task by ID.
func (s *TaskStore) Get(ctx context.Context, id string) (*Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task: %w", err)
	}
	return t, nil
}

// FindByJiraKey looks up the task imported for a JIRA ticket, if any.
func (s *TaskStore) FindByJiraKey(ctx context.Context, projectID, teamID, key string) (*Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE project_id = ? AND team_id = ? AND jira_ticket_key = ?`,
		projectID, teamID, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task by jira key: %w", err)
	}
	return t, nil
}

// ListBoard returns all non-archived tasks for a project/team pair,
// ordered by column and position.
func (s *TaskStore) ListBoard(ctx context.Context, projectID, teamID string) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE project_id = ? AND team_id = ? AND status != ?
		 ORDER BY column_id, sort_order`,
		projectID, teamID, StatusArchived)
	if err != nil {
		return nil, fmt.Errorf("failed to query board tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// TaskPatch holds optional field updates. Nil fields are left untouched.
type TaskPatch struct {
	Title       *string
	Description *string
	Priority    *string
	AssignedTo  *string
	DueDate     *string
	Status      *string
	Scope       *string
}

// Update applies a patch and bumps the task version.
func (s *TaskStore) Update(ctx context.Context, id string, p TaskPatch) (*Task, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.AssignedTo != nil {
		t.AssignedTo = *p.AssignedTo
	}
	if p.DueDate != nil {
		t.DueDate = *p.DueDate
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Scope != nil {
		t.Scope = *p.Scope
	}
	t.Version++
	t.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET title = ?, description = ?, priority = ?, assigned_to = ?,
			due_date = ?, status = ?, scope = ?, version = ?, updated_at = ?
		WHERE id = ?`,
		t.Title, t.Description, t.Priority, t.AssignedTo, t.DueDate, t.Status,
		t.Scope, t.Version, t.UpdatedAt, t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return t, nil
}

// Archive soft-deletes a task and closes the position gap it leaves behind.
// Archived tasks are parked at sort_order -1 so they never collide with
// active positions.
func (s *TaskStore) Archive(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var columnID string
	var order int
	err = tx.QueryRowContext(ctx,
		`SELECT column_id, sort_order FROM tasks WHERE id = ? AND status != ?`,
		id, StatusArchived).Scan(&columnID, &order)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to query task: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE tasks SET status = ?, sort_order = -1, version = version + 1, updated_at = ?
		WHERE id = ?`, StatusArchived, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to archive task: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE tasks SET sort_order = sort_order - 1 WHERE column_id = ? AND sort_order > ?`,
		columnID, order)
	if err != nil {
		return fmt.Errorf("failed to reorder column: %w", err)
	}

	return tx.Commit()
}

// MoveRequest is an absolute placement: put this task into the destination
// column at the given index. Version, when non-zero, must match the task's
// current version or the move is rejected as a conflict.
type MoveRequest struct {
	TaskID           string `json:"taskId"`
	DestinationColID string `json:"destinationColumnId"`
	DestinationIndex int    `json:"destinationIndex"`
	ProjectID        string `json:"projectId"`
	TeamID           string `json:"teamId"`
	ActorEmail       string `json:"actorEmail"`
	Version          int64  `json:"version,omitempty"`
}

// Move relocates a task in a single transaction: the gap in the source
// column is closed, a slot is opened in the destination, and the task gets
// the absolute (column_id, sort_order) assignment. A stale Version token
// fails with ErrVersionConflict instead of silently racing.
func (s *TaskStore) Move(ctx context.Context, req MoveRequest) (*Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var srcColID string
	var srcOrder int
	var version int64
	err = tx.QueryRowContext(ctx, `
		SELECT column_id, sort_order, version FROM tasks
		WHERE id = ? AND project_id = ? AND team_id = ? AND status != ?`,
		req.TaskID, req.ProjectID, req.TeamID, StatusArchived).
		Scan(&srcColID, &srcOrder, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task: %w", err)
	}

	if req.Version != 0 && req.Version != version {
		return nil, ErrVersionConflict
	}

	var colExists int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM columns WHERE id = ? AND project_id = ? AND team_id = ?`,
		req.DestinationColID, req.ProjectID, req.TeamID).Scan(&colExists)
	if err != nil {
		return nil, fmt.Errorf("failed to query destination column: %w", err)
	}
	if colExists == 0 {
		return nil, fmt.Errorf("destination column %s: %w", req.DestinationColID, ErrNotFound)
	}

	// Park the moving task below every live position so the two shift
	// updates cannot touch it.
	if _, err := tx.ExecContext(ctx,
		`UPDATE tasks SET sort_order = -2 WHERE id = ?`, req.TaskID); err != nil {
		return nil, fmt.Errorf("failed to detach task: %w", err)
	}

	// Close the gap in the source column.
	if _, err := tx.ExecContext(ctx,
		`UPDATE tasks SET sort_order = sort_order - 1 WHERE column_id = ? AND sort_order > ?`,
		srcColID, srcOrder); err != nil {
		return nil, fmt.Errorf("failed to reorder source column: %w", err)
	}

	// Clamp the destination index to the column length.
	var destCount int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM tasks
		WHERE column_id = ? AND status != ? AND sort_order >= 0`,
		req.DestinationColID, StatusArchived).Scan(&destCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count destination tasks: %w", err)
	}
	index := req.DestinationIndex
	if index > destCount {
		index = destCount
	}
	if index < 0 {
		index = 0
	}

	// Open a slot in the destination column.
	if _, err := tx.ExecContext(ctx,
		`UPDATE tasks SET sort_order = sort_order + 1 WHERE column_id = ? AND sort_order >= ?`,
		req.DestinationColID, index); err != nil {
		return nil, fmt.Errorf("failed to reorder destination column: %w", err)
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		UPDATE tasks SET column_id = ?, sort_order = ?, version = version + 1, updated_at = ?
		WHERE id = ?`,
		req.DestinationColID, index, now, req.TaskID); err != nil {
		return nil, fmt.Errorf("failed to place task: %w", err)
	}

	moved, err := scanTask(tx.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, req.TaskID))
	if err != nil {
		return nil, fmt.Errorf("failed to reload task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return moved, nil
}

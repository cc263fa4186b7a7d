package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrColumnNotEmpty is returned when deleting a column that still holds tasks.
var ErrColumnNotEmpty = errors.New("column still contains tasks")

// ColumnStore handles database operations for board columns.
type ColumnStore struct {
	db *sql.DB
}

func NewColumnStore(db *sql.DB) *ColumnStore {
	return &ColumnStore{db: db}
}

const columnColumns = `id, project_id, team_id, name, description, color, sort_order, created_at, updated_at`

func scanColumn(row interface{ Scan(...any) error }) (*Column, error) {
	var c Column
	err := row.Scan(&c.ID, &c.ProjectID, &c.TeamID, &c.Name, &c.Description,
		&c.Color, &c.SortOrder, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a column at the end of the board.
func (s *ColumnStore) Create(ctx context.Context, c *Column) (*Column, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM columns WHERE project_id = ? AND team_id = ?`,
		c.ProjectID, c.TeamID).Scan(&c.SortOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to count columns: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO columns (`+columnColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ProjectID, c.TeamID, c.Name, c.Description, c.Color,
		c.SortOrder, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert column: %w", err)
	}
	return c, nil
}

// Get retrieves a single column by ID.
func (s *ColumnStore) Get(ctx context.Context, id string) (*Column, error) {
	c, err := scanColumn(s.db.QueryRowContext(ctx,
		`SELECT `+columnColumns+` FROM columns WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query column: %w", err)
	}
	return c, nil
}

// ListBoard returns the columns of a project/team board in display order.
func (s *ColumnStore) ListBoard(ctx context.Context, projectID, teamID string) ([]Column, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+columnColumns+` FROM columns
		 WHERE project_id = ? AND team_id = ? ORDER BY sort_order`,
		projectID, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		c, err := scanColumn(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		cols = append(cols, *c)
	}
	return cols, rows.Err()
}

// ColumnPatch holds optional column updates.
type ColumnPatch struct {
	Name        *string
	Description *string
	Color       *string
}

// Update applies a patch to a column.
func (s *ColumnStore) Update(ctx context.Context, id string, p ColumnPatch) (*Column, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.Color != nil {
		c.Color = *p.Color
	}
	c.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx, `
		UPDATE columns SET name = ?, description = ?, color = ?, updated_at = ?
		WHERE id = ?`,
		c.Name, c.Description, c.Color, c.UpdatedAt, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update column: %w", err)
	}
	return c, nil
}

// Delete removes an empty column and closes the board position gap.
// Columns holding active tasks cannot be deleted.
func (s *ColumnStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var projectID, teamID string
	var order int
	err = tx.QueryRowContext(ctx,
		`SELECT project_id, team_id, sort_order FROM columns WHERE id = ?`, id).
		Scan(&projectID, &teamID, &order)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to query column: %w", err)
	}

	var tasks int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE column_id = ? AND status != ?`,
		id, StatusArchived).Scan(&tasks)
	if err != nil {
		return fmt.Errorf("failed to count column tasks: %w", err)
	}
	if tasks > 0 {
		return ErrColumnNotEmpty
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM columns WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete column: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE columns SET sort_order = sort_order - 1
		WHERE project_id = ? AND team_id = ? AND sort_order > ?`,
		projectID, teamID, order); err != nil {
		return fmt.Errorf("failed to reorder columns: %w", err)
	}

	return tx.Commit()
}

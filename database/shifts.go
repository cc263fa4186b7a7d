package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// MandatoryShiftCodes are seeded for every board and cannot be deleted.
var MandatoryShiftCodes = map[string]string{
	"H": "Holiday",
	"G": "General",
}

// ShiftStore handles shift code definitions and scheduled shift entries.
type ShiftStore struct {
	db *sql.DB
}

func NewShiftStore(db *sql.DB) *ShiftStore {
	return &ShiftStore{db: db}
}

// EnsureMandatoryCodes seeds the protected shift codes for a board.
func (s *ShiftStore) EnsureMandatoryCodes(ctx context.Context, projectID, teamID string) error {
	for code, name := range MandatoryShiftCodes {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO shift_enums (id, project_id, team_id, code, name)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(project_id, team_id, code) DO NOTHING`,
			uuid.NewString(), projectID, teamID, code, name)
		if err != nil {
			return fmt.Errorf("failed to seed shift code %s: %w", code, err)
		}
	}
	return nil
}

// UpsertEnum creates or updates a shift code definition.
func (s *ShiftStore) UpsertEnum(ctx context.Context, e *ShiftEnum) (*ShiftEnum, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shift_enums (id, project_id, team_id, code, name, start_time, end_time, color)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, team_id, code) DO UPDATE SET
			name = excluded.name,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			color = excluded.color`,
		e.ID, e.ProjectID, e.TeamID, e.Code, e.Name, e.StartTime, e.EndTime, e.Color)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert shift code: %w", err)
	}
	return e, nil
}

// DeleteEnum removes a shift code definition. Mandatory codes are protected.
func (s *ShiftStore) DeleteEnum(ctx context.Context, projectID, teamID, code string) error {
	if _, mandatory := MandatoryShiftCodes[code]; mandatory {
		return ErrProtectedCode
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM shift_enums WHERE project_id = ? AND team_id = ? AND code = ?`,
		projectID, teamID, code)
	if err != nil {
		return fmt.Errorf("failed to delete shift code: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListEnums returns all shift codes defined for a board.
func (s *ShiftStore) ListEnums(ctx context.Context, projectID, teamID string) ([]ShiftEnum, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, team_id, code, name, start_time, end_time, color
		FROM shift_enums WHERE project_id = ? AND team_id = ? ORDER BY code`,
		projectID, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to query shift codes: %w", err)
	}
	defer rows.Close()

	var enums []ShiftEnum
	for rows.Next() {
		var e ShiftEnum
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.TeamID, &e.Code, &e.Name,
			&e.StartTime, &e.EndTime, &e.Color); err != nil {
			return nil, fmt.Errorf("failed to scan shift code: %w", err)
		}
		enums = append(enums, e)
	}
	return enums, rows.Err()
}

// UpsertEntry writes one scheduled shift cell (member, day, code).
func (s *ShiftStore) UpsertEntry(ctx context.Context, e *ShiftEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shift_entries (id, project_id, team_id, email, year, month, day, code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, team_id, email, year, month, day) DO UPDATE SET
			code = excluded.code`,
		e.ID, e.ProjectID, e.TeamID, e.Email, e.Year, e.Month, e.Day, e.Code)
	if err != nil {
		return fmt.Errorf("failed to upsert shift entry: %w", err)
	}
	return nil
}

// ListEntries returns the schedule of a board for one month, ordered by
// member and day.
func (s *ShiftStore) ListEntries(ctx context.Context, projectID, teamID string, year, month int) ([]ShiftEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, team_id, email, year, month, day, code
		FROM shift_entries
		WHERE project_id = ? AND team_id = ? AND year = ? AND month = ?
		ORDER BY email, day`,
		projectID, teamID, year, month)
	if err != nil {
		return nil, fmt.Errorf("failed to query shift entries: %w", err)
	}
	defer rows.Close()

	var entries []ShiftEntry
	for rows.Next() {
		var e ShiftEntry
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.TeamID, &e.Email, &e.Year,
			&e.Month, &e.Day, &e.Code); err != nil {
			return nil, fmt.Errorf("failed to scan shift entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CodeExists reports whether a shift code is defined for a board.
func (s *ShiftStore) CodeExists(ctx context.Context, projectID, teamID, code string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM shift_enums WHERE project_id = ? AND team_id = ? AND code = ?`,
		projectID, teamID, code).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query shift code: %w", err)
	}
	return n > 0, nil
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrAlreadyClockedIn is returned when a member clocks in twice without
// closing the previous entry.
var ErrAlreadyClockedIn = errors.New("an open work log already exists")

// WorkLogStore handles tracked work hours.
type WorkLogStore struct {
	db *sql.DB
}

func NewWorkLogStore(db *sql.DB) *WorkLogStore {
	return &WorkLogStore{db: db}
}

// ClockIn opens a new work log entry for the member.
func (s *WorkLogStore) ClockIn(ctx context.Context, email, projectID, teamID, note string) (*WorkLog, error) {
	open, err := s.openEntry(ctx, email)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, ErrAlreadyClockedIn
	}

	w := &WorkLog{
		ID:        uuid.NewString(),
		Email:     email,
		ProjectID: projectID,
		TeamID:    teamID,
		ClockIn:   time.Now().UTC(),
		Note:      note,
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO work_logs (id, email, project_id, team_id, clock_in, minutes, note)
		VALUES (?, ?, ?, ?, ?, 0, ?)`,
		w.ID, w.Email, w.ProjectID, w.TeamID, w.ClockIn, w.Note)
	if err != nil {
		return nil, fmt.Errorf("failed to insert work log: %w", err)
	}
	return w, nil
}

// ClockOut closes the member's open entry and records the elapsed minutes.
func (s *WorkLogStore) ClockOut(ctx context.Context, email string) (*WorkLog, error) {
	open, err := s.openEntry(ctx, email)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, ErrNotFound
	}

	now := time.Now().UTC()
	open.ClockOut = &now
	open.Minutes = int(now.Sub(open.ClockIn).Minutes())

	_, err = s.db.ExecContext(ctx,
		`UPDATE work_logs SET clock_out = ?, minutes = ? WHERE id = ?`,
		now, open.Minutes, open.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to close work log: %w", err)
	}
	return open, nil
}

// AddManual records a hand-entered work log with explicit times.
func (s *WorkLogStore) AddManual(ctx context.Context, w *WorkLog) (*WorkLog, error) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.ClockOut != nil && w.Minutes == 0 {
		w.Minutes = int(w.ClockOut.Sub(w.ClockIn).Minutes())
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO work_logs (id, email, project_id, team_id, clock_in, clock_out, minutes, note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.Email, w.ProjectID, w.TeamID, w.ClockIn, w.ClockOut, w.Minutes, w.Note)
	if err != nil {
		return nil, fmt.Errorf("failed to insert work log: %w", err)
	}
	return w, nil
}

// List returns a member's entries inside a time range, newest first.
func (s *WorkLogStore) List(ctx context.Context, email string, from, to time.Time) ([]WorkLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, project_id, team_id, clock_in, clock_out, minutes, note
		FROM work_logs
		WHERE email = ? AND clock_in >= ? AND clock_in < ?
		ORDER BY clock_in DESC`,
		email, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query work logs: %w", err)
	}
	defer rows.Close()

	var logs []WorkLog
	for rows.Next() {
		var w WorkLog
		if err := rows.Scan(&w.ID, &w.Email, &w.ProjectID, &w.TeamID,
			&w.ClockIn, &w.ClockOut, &w.Minutes, &w.Note); err != nil {
			return nil, fmt.Errorf("failed to scan work log: %w", err)
		}
		logs = append(logs, w)
	}
	return logs, rows.Err()
}

// MemberMinutes sums tracked minutes per member for a team inside a range.
func (s *WorkLogStore) MemberMinutes(ctx context.Context, teamID string, from, to time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT email, SUM(minutes) FROM work_logs
		WHERE team_id = ? AND clock_in >= ? AND clock_in < ?
		GROUP BY email`,
		teamID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query work log summary: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]int)
	for rows.Next() {
		var email string
		var minutes int
		if err := rows.Scan(&email, &minutes); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		totals[email] = minutes
	}
	return totals, rows.Err()
}

func (s *WorkLogStore) openEntry(ctx context.Context, email string) (*WorkLog, error) {
	var w WorkLog
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, project_id, team_id, clock_in, clock_out, minutes, note
		FROM work_logs WHERE email = ? AND clock_out IS NULL`, email).
		Scan(&w.ID, &w.Email, &w.ProjectID, &w.TeamID, &w.ClockIn, &w.ClockOut,
			&w.Minutes, &w.Note)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query open work log: %w", err)
	}
	return &w, nil
}

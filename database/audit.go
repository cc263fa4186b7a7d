package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// AuditStore records and queries the mutation audit trail.
type AuditStore struct {
	db *sql.DB
}

func NewAuditStore(db *sql.DB) *AuditStore {
	return &AuditStore{db: db}
}

// Record appends one audit row.
func (s *AuditStore) Record(ctx context.Context, e AuditEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (actor, action, entity, entity_id, project_id, team_id, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Actor, e.Action, e.Entity, e.EntityID, e.ProjectID, e.TeamID, e.Detail, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// AuditFilter narrows an audit listing. Zero values are ignored.
type AuditFilter struct {
	Actor     string
	Action    string
	Entity    string
	ProjectID string
	TeamID    string
	From      time.Time
	To        time.Time
	Limit     int
}

// List returns audit entries matching the filter, newest first.
func (s *AuditStore) List(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	var conds []string
	var args []any

	add := func(cond string, arg any) {
		conds = append(conds, cond)
		args = append(args, arg)
	}
	if f.Actor != "" {
		add("actor = ?", f.Actor)
	}
	if f.Action != "" {
		add("action = ?", f.Action)
	}
	if f.Entity != "" {
		add("entity = ?", f.Entity)
	}
	if f.ProjectID != "" {
		add("project_id = ?", f.ProjectID)
	}
	if f.TeamID != "" {
		add("team_id = ?", f.TeamID)
	}
	if !f.From.IsZero() {
		add("created_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		add("created_at < ?", f.To)
	}

	query := `SELECT id, actor, action, entity, entity_id, project_id, team_id, detail, created_at
		FROM audit_log`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.Entity, &e.EntityID,
			&e.ProjectID, &e.TeamID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

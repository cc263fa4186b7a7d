package database

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Sentinel errors shared by the stores.
var (
	ErrNotFound        = errors.New("record not found")
	ErrVersionConflict = errors.New("task was modified by someone else")
	ErrProtectedCode   = errors.New("shift code is mandatory and cannot be removed")
)

// InitDB opens the SQLite database and creates the schema.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// sqlite allows a single writer; with database/sql a second connection
	// would fail with SQLITE_BUSY instead of queueing.
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS teams (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS projects (
		id         TEXT PRIMARY KEY,
		team_id    TEXT NOT NULL,
		name       TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS team_members (
		team_id TEXT NOT NULL,
		email   TEXT NOT NULL,
		role    TEXT NOT NULL DEFAULT 'member',
		active  INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (team_id, email)
	)`,
	`CREATE TABLE IF NOT EXISTS columns (
		id          TEXT PRIMARY KEY,
		project_id  TEXT NOT NULL,
		team_id     TEXT NOT NULL,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		color       TEXT NOT NULL DEFAULT '',
		sort_order  INTEGER NOT NULL DEFAULT 0,
		created_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id              TEXT PRIMARY KEY,
		title           TEXT NOT NULL,
		description     TEXT NOT NULL DEFAULT '',
		column_id       TEXT NOT NULL,
		sort_order      INTEGER NOT NULL DEFAULT 0,
		priority        TEXT NOT NULL DEFAULT 'medium',
		assigned_to     TEXT NOT NULL DEFAULT '',
		due_date        TEXT NOT NULL DEFAULT '',
		status          TEXT NOT NULL DEFAULT 'open',
		scope           TEXT NOT NULL DEFAULT 'project',
		created_by      TEXT NOT NULL DEFAULT '',
		jira_ticket_key TEXT,
		version         INTEGER NOT NULL DEFAULT 1,
		project_id      TEXT NOT NULL,
		team_id         TEXT NOT NULL,
		created_at      TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at      TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_column ON tasks(column_id, sort_order)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_board ON tasks(project_id, team_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_jira
		ON tasks(project_id, team_id, jira_ticket_key)
		WHERE jira_ticket_key IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS shift_enums (
		id         TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		team_id    TEXT NOT NULL,
		code       TEXT NOT NULL,
		name       TEXT NOT NULL,
		start_time TEXT NOT NULL DEFAULT '',
		end_time   TEXT NOT NULL DEFAULT '',
		color      TEXT NOT NULL DEFAULT '',
		UNIQUE (project_id, team_id, code)
	)`,
	`CREATE TABLE IF NOT EXISTS shift_entries (
		id         TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		team_id    TEXT NOT NULL,
		email      TEXT NOT NULL,
		year       INTEGER NOT NULL,
		month      INTEGER NOT NULL,
		day        INTEGER NOT NULL,
		code       TEXT NOT NULL,
		UNIQUE (project_id, team_id, email, year, month, day)
	)`,
	`CREATE TABLE IF NOT EXISTS work_logs (
		id         TEXT PRIMARY KEY,
		email      TEXT NOT NULL,
		project_id TEXT NOT NULL,
		team_id    TEXT NOT NULL,
		clock_in   TIMESTAMP NOT NULL,
		clock_out  TIMESTAMP,
		minutes    INTEGER NOT NULL DEFAULT 0,
		note       TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_work_logs_member ON work_logs(email, clock_in)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		actor      TEXT NOT NULL,
		action     TEXT NOT NULL,
		entity     TEXT NOT NULL,
		entity_id  TEXT NOT NULL DEFAULT '',
		project_id TEXT NOT NULL DEFAULT '',
		team_id    TEXT NOT NULL DEFAULT '',
		detail     TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_actor ON audit_log(actor, created_at)`,
}

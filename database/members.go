package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TeamStore handles teams, projects, and memberships.
type TeamStore struct {
	db *sql.DB
}

func NewTeamStore(db *sql.DB) *TeamStore {
	return &TeamStore{db: db}
}

func (s *TeamStore) CreateTeam(ctx context.Context, name string) (*Team, error) {
	t := &Team{ID: uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO teams (id, name, created_at) VALUES (?, ?, ?)`,
		t.ID, t.Name, t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert team: %w", err)
	}
	return t, nil
}

func (s *TeamStore) CreateProject(ctx context.Context, teamID, name string) (*Project, error) {
	p := &Project{ID: uuid.NewString(), TeamID: teamID, Name: name, CreatedAt: time.Now().UTC()}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, team_id, name, created_at) VALUES (?, ?, ?, ?)`,
		p.ID, p.TeamID, p.Name, p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert project: %w", err)
	}
	return p, nil
}

// AddMember adds or reactivates a team member.
func (s *TeamStore) AddMember(ctx context.Context, m *TeamMember) error {
	if m.Role == "" {
		m.Role = "member"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO team_members (team_id, email, role, active)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(team_id, email) DO UPDATE SET role = excluded.role, active = 1`,
		m.TeamID, m.Email, m.Role)
	if err != nil {
		return fmt.Errorf("failed to upsert team member: %w", err)
	}
	return nil
}

// RemoveMember deactivates a membership without losing its history.
func (s *TeamStore) RemoveMember(ctx context.Context, teamID, email string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE team_members SET active = 0 WHERE team_id = ? AND email = ?`,
		teamID, email)
	if err != nil {
		return fmt.Errorf("failed to deactivate team member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// IsMember reports whether the email is an active member of the team.
func (s *TeamStore) IsMember(ctx context.Context, teamID, email string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM team_members WHERE team_id = ? AND email = ? AND active = 1`,
		teamID, email).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query membership: %w", err)
	}
	return n > 0, nil
}

// ListMembers returns the active members of a team.
func (s *TeamStore) ListMembers(ctx context.Context, teamID string) ([]TeamMember, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT team_id, email, role, active FROM team_members
		 WHERE team_id = ? AND active = 1 ORDER BY email`, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to query team members: %w", err)
	}
	defer rows.Close()

	var members []TeamMember
	for rows.Next() {
		var m TeamMember
		if err := rows.Scan(&m.TeamID, &m.Email, &m.Role, &m.Active); err != nil {
			return nil, fmt.Errorf("failed to scan team member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// GetProject retrieves a project by ID.
func (s *TeamStore) GetProject(ctx context.Context, id string) (*Project, error) {
	var p Project
	err := s.db.QueryRowContext(ctx,
		`SELECT id, team_id, name, created_at FROM projects WHERE id = ?`, id).
		Scan(&p.ID, &p.TeamID, &p.Name, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query project: %w", err)
	}
	return &p, nil
}

package database

import "time"

// Task priorities, statuses, and scopes accepted by the stores.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"

	StatusOpen     = "open"
	StatusDone     = "done"
	StatusArchived = "archived"

	ScopePersonal = "personal"
	ScopeProject  = "project"
)

type Task struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	ColumnID      string    `json:"column_id"`
	SortOrder     int       `json:"sort_order"`
	Priority      string    `json:"priority"`
	AssignedTo    string    `json:"assigned_to,omitempty"`
	DueDate       string    `json:"due_date,omitempty"`
	Status        string    `json:"status"`
	Scope         string    `json:"scope"`
	CreatedBy     string    `json:"created_by"`
	JiraTicketKey *string   `json:"jira_ticket_key,omitempty"`
	Version       int64     `json:"version"`
	ProjectID     string    `json:"project_id"`
	TeamID        string    `json:"team_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Column struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	TeamID      string    `json:"team_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color,omitempty"`
	SortOrder   int       `json:"sort_order"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Project struct {
	ID        string    `json:"id"`
	TeamID    string    `json:"team_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type TeamMember struct {
	TeamID string `json:"team_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Active bool   `json:"active"`
}

// ShiftEnum maps a short shift code (e.g. "M", "A", "N") to a named shift
// with start/end times, scoped to a project/team pair.
type ShiftEnum struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	TeamID    string `json:"team_id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	Color     string `json:"color,omitempty"`
}

// ShiftEntry is one scheduled shift: a member, a calendar day, a code.
type ShiftEntry struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	TeamID    string `json:"team_id"`
	Email     string `json:"email"`
	Year      int    `json:"year"`
	Month     int    `json:"month"`
	Day       int    `json:"day"`
	Code      string `json:"code"`
}

// WorkLog is a single tracked stretch of work. ClockOut is nil while the
// entry is still open; Minutes is set on clock-out or for manual entries.
type WorkLog struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	ProjectID string     `json:"project_id"`
	TeamID    string     `json:"team_id"`
	ClockIn   time.Time  `json:"clock_in"`
	ClockOut  *time.Time `json:"clock_out,omitempty"`
	Minutes   int        `json:"minutes"`
	Note      string     `json:"note,omitempty"`
}

type AuditEntry struct {
	ID        int64     `json:"id"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Entity    string    `json:"entity"`
	EntityID  string    `json:"entity_id"`
	ProjectID string    `json:"project_id,omitempty"`
	TeamID    string    `json:"team_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

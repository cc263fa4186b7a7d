package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidRequest marks proxy requests rejected before touching the
// database (unknown table, bad column, missing filters, ...).
var ErrInvalidRequest = errors.New("invalid proxy request")

// ProxyRequest is the generic table operation envelope: one table, one
// action, optional data/filters/projection/paging.
type ProxyRequest struct {
	Table   string         `json:"table"`
	Action  string         `json:"action"`
	Data    map[string]any `json:"data,omitempty"`
	Filters map[string]any `json:"filters,omitempty"`
	Select  []string       `json:"select,omitempty"`
	Order   string         `json:"order,omitempty"`
	Limit   int            `json:"limit,omitempty"`
	Offset  int            `json:"offset,omitempty"`
}

// ProxyResult carries rows (or the rpc return value) plus a row count.
type ProxyResult struct {
	Data  any `json:"data"`
	Count int `json:"count"`
}

// RPCFunc is a named server-side function reachable through the proxy.
type RPCFunc func(ctx context.Context, actor string, params map[string]any) (any, error)

type tableSpec struct {
	pk       string
	columns  map[string]bool
	writable map[string]bool
	readOnly bool
}

func cols(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// Proxy executes generic table operations against an allowlisted schema.
// Identifiers never reach SQL unless they are registered here; values always
// travel as bind parameters.
type Proxy struct {
	db     *sql.DB
	audit  *AuditStore
	tables map[string]tableSpec
	rpcs   map[string]RPCFunc
}

func NewProxy(db *sql.DB, audit *AuditStore) *Proxy {
	return &Proxy{
		db:    db,
		audit: audit,
		rpcs:  make(map[string]RPCFunc),
		tables: map[string]tableSpec{
			"tasks": {
				pk:      "id",
				columns: cols("id", "title", "description", "column_id", "sort_order", "priority", "assigned_to", "due_date", "status", "scope", "created_by", "jira_ticket_key", "version", "project_id", "team_id", "created_at", "updated_at"),
				writable: cols("title", "description", "priority", "assigned_to", "due_date", "status", "scope", "created_by", "jira_ticket_key", "column_id", "project_id", "team_id"),
			},
			"columns": {
				pk:       "id",
				columns:  cols("id", "project_id", "team_id", "name", "description", "color", "sort_order", "created_at", "updated_at"),
				writable: cols("name", "description", "color", "project_id", "team_id"),
			},
			"shift_enums": {
				pk:       "id",
				columns:  cols("id", "project_id", "team_id", "code", "name", "start_time", "end_time", "color"),
				writable: cols("project_id", "team_id", "code", "name", "start_time", "end_time", "color"),
			},
			"shift_entries": {
				pk:       "id",
				columns:  cols("id", "project_id", "team_id", "email", "year", "month", "day", "code"),
				writable: cols("project_id", "team_id", "email", "year", "month", "day", "code"),
			},
			"work_logs": {
				pk:       "id",
				columns:  cols("id", "email", "project_id", "team_id", "clock_in", "clock_out", "minutes", "note"),
				writable: cols("email", "project_id", "team_id", "clock_in", "clock_out", "minutes", "note"),
			},
			"teams": {
				pk:       "id",
				columns:  cols("id", "name", "created_at"),
				writable: cols("name"),
			},
			"projects": {
				pk:       "id",
				columns:  cols("id", "team_id", "name", "created_at"),
				writable: cols("team_id", "name"),
			},
			"team_members": {
				pk:       "email",
				columns:  cols("team_id", "email", "role", "active"),
				writable: cols("team_id", "email", "role", "active"),
			},
			"audit_log": {
				pk:       "id",
				columns:  cols("id", "actor", "action", "entity", "entity_id", "project_id", "team_id", "detail", "created_at"),
				readOnly: true,
			},
		},
	}
}

// RegisterRPC exposes a named function through action "rpc". The table field
// carries the function name.
func (p *Proxy) RegisterRPC(name string, fn RPCFunc) {
	p.rpcs[name] = fn
}

// Execute runs one proxy request on behalf of the acting user.
func (p *Proxy) Execute(ctx context.Context, actor string, req ProxyRequest) (*ProxyResult, error) {
	if req.Action == "rpc" {
		return p.execRPC(ctx, actor, req)
	}

	spec, ok := p.tables[req.Table]
	if !ok {
		return nil, fmt.Errorf("%w: unknown table %q", ErrInvalidRequest, req.Table)
	}

	switch req.Action {
	case "select":
		return p.execSelect(ctx, spec, req)
	case "insert", "update", "delete", "upsert":
		if spec.readOnly {
			return nil, fmt.Errorf("%w: table %q is read-only", ErrInvalidRequest, req.Table)
		}
		res, err := p.execWrite(ctx, spec, req)
		if err != nil {
			return nil, err
		}
		p.recordAudit(ctx, actor, req)
		return res, nil
	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidRequest, req.Action)
	}
}

func (p *Proxy) execRPC(ctx context.Context, actor string, req ProxyRequest) (*ProxyResult, error) {
	fn, ok := p.rpcs[req.Table]
	if !ok {
		return nil, fmt.Errorf("%w: unknown rpc %q", ErrInvalidRequest, req.Table)
	}
	out, err := fn(ctx, actor, req.Data)
	if err != nil {
		return nil, err
	}
	return &ProxyResult{Data: out, Count: 1}, nil
}

func (p *Proxy) execSelect(ctx context.Context, spec tableSpec, req ProxyRequest) (*ProxyResult, error) {
	selected := req.Select
	if len(selected) == 0 {
		selected = make([]string, 0, len(spec.columns))
		for c := range spec.columns {
			selected = append(selected, c)
		}
		sort.Strings(selected)
	} else {
		for _, c := range selected {
			if !spec.columns[c] {
				return nil, fmt.Errorf("%w: unknown column %q", ErrInvalidRequest, c)
			}
		}
	}

	where, args, err := buildWhere(spec, req.Filters)
	if err != nil {
		return nil, err
	}

	query := "SELECT " + strings.Join(selected, ", ") + " FROM " + req.Table + where
	if req.Order != "" {
		orderSQL, err := buildOrder(spec, req.Order)
		if err != nil {
			return nil, err
		}
		query += orderSQL
	}
	if req.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, req.Limit)
		if req.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, req.Offset)
		}
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", req.Table, err)
	}
	defer rows.Close()

	data := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(selected))
		ptrs := make([]any, len(selected))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]any, len(selected))
		for i, c := range selected {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
			} else {
				row[c] = values[i]
			}
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return &ProxyResult{Data: data, Count: len(data)}, nil
}

func (p *Proxy) execWrite(ctx context.Context, spec tableSpec, req ProxyRequest) (*ProxyResult, error) {
	switch req.Action {
	case "insert", "upsert":
		if len(req.Data) == 0 {
			return nil, fmt.Errorf("%w: %s requires data", ErrInvalidRequest, req.Action)
		}
		columns := make([]string, 0, len(req.Data))
		for c := range req.Data {
			if c != spec.pk && !spec.writable[c] {
				return nil, fmt.Errorf("%w: column %q is not writable", ErrInvalidRequest, c)
			}
			columns = append(columns, c)
		}
		sort.Strings(columns)

		args := make([]any, 0, len(columns))
		for _, c := range columns {
			args = append(args, req.Data[c])
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
		query := "INSERT INTO " + req.Table + " (" + strings.Join(columns, ", ") + ") VALUES (" + placeholders + ")"

		if req.Action == "upsert" {
			var sets []string
			for _, c := range columns {
				if c == spec.pk {
					continue
				}
				sets = append(sets, c+" = excluded."+c)
			}
			if len(sets) == 0 {
				return nil, fmt.Errorf("%w: upsert needs at least one non-key column", ErrInvalidRequest)
			}
			query += " ON CONFLICT(" + spec.pk + ") DO UPDATE SET " + strings.Join(sets, ", ")
		}

		res, err := p.db.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", req.Table, err)
		}
		n, _ := res.RowsAffected()
		return &ProxyResult{Data: req.Data, Count: int(n)}, nil

	case "update":
		if len(req.Data) == 0 {
			return nil, fmt.Errorf("%w: update requires data", ErrInvalidRequest)
		}
		if len(req.Filters) == 0 {
			return nil, fmt.Errorf("%w: update requires filters", ErrInvalidRequest)
		}
		columns := make([]string, 0, len(req.Data))
		for c := range req.Data {
			if !spec.writable[c] {
				return nil, fmt.Errorf("%w: column %q is not writable", ErrInvalidRequest, c)
			}
			columns = append(columns, c)
		}
		sort.Strings(columns)

		sets := make([]string, 0, len(columns))
		args := make([]any, 0, len(columns))
		for _, c := range columns {
			sets = append(sets, c+" = ?")
			args = append(args, req.Data[c])
		}
		where, whereArgs, err := buildWhere(spec, req.Filters)
		if err != nil {
			return nil, err
		}
		args = append(args, whereArgs...)

		res, err := p.db.ExecContext(ctx,
			"UPDATE "+req.Table+" SET "+strings.Join(sets, ", ")+where, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to update %s: %w", req.Table, err)
		}
		n, _ := res.RowsAffected()
		return &ProxyResult{Data: req.Data, Count: int(n)}, nil

	case "delete":
		if len(req.Filters) == 0 {
			return nil, fmt.Errorf("%w: delete requires filters", ErrInvalidRequest)
		}
		where, args, err := buildWhere(spec, req.Filters)
		if err != nil {
			return nil, err
		}
		res, err := p.db.ExecContext(ctx, "DELETE FROM "+req.Table+where, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to delete from %s: %w", req.Table, err)
		}
		n, _ := res.RowsAffected()
		return &ProxyResult{Count: int(n)}, nil
	}
	return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidRequest, req.Action)
}

var filterOps = map[string]string{
	"eq":   "=",
	"neq":  "!=",
	"gt":   ">",
	"gte":  ">=",
	"lt":   "<",
	"lte":  "<=",
	"like": "LIKE",
}

// buildWhere turns the filters map into a WHERE clause. Values are either a
// bare value (equality) or {op, value} objects; op "in" expects a list.
func buildWhere(spec tableSpec, filters map[string]any) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	columns := make([]string, 0, len(filters))
	for c := range filters {
		if !spec.columns[c] {
			return "", nil, fmt.Errorf("%w: unknown filter column %q", ErrInvalidRequest, c)
		}
		columns = append(columns, c)
	}
	sort.Strings(columns)

	var conds []string
	var args []any
	for _, c := range columns {
		switch v := filters[c].(type) {
		case map[string]any:
			op, _ := v["op"].(string)
			if op == "in" {
				list, ok := v["value"].([]any)
				if !ok || len(list) == 0 {
					return "", nil, fmt.Errorf("%w: op in requires a non-empty list", ErrInvalidRequest)
				}
				conds = append(conds, c+" IN ("+strings.TrimSuffix(strings.Repeat("?, ", len(list)), ", ")+")")
				args = append(args, list...)
				continue
			}
			sqlOp, ok := filterOps[op]
			if !ok {
				return "", nil, fmt.Errorf("%w: unknown filter op %q", ErrInvalidRequest, op)
			}
			conds = append(conds, c+" "+sqlOp+" ?")
			args = append(args, v["value"])
		default:
			conds = append(conds, c+" = ?")
			args = append(args, v)
		}
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func buildOrder(spec tableSpec, order string) (string, error) {
	fields := strings.Fields(strings.TrimSpace(order))
	if len(fields) == 0 || len(fields) > 2 || !spec.columns[fields[0]] {
		return "", fmt.Errorf("%w: invalid order %q", ErrInvalidRequest, order)
	}
	dir := ""
	if len(fields) == 2 {
		switch strings.ToLower(fields[1]) {
		case "asc":
			dir = " ASC"
		case "desc":
			dir = " DESC"
		default:
			return "", fmt.Errorf("%w: invalid order direction %q", ErrInvalidRequest, fields[1])
		}
	}
	return " ORDER BY " + fields[0] + dir, nil
}

func (p *Proxy) recordAudit(ctx context.Context, actor string, req ProxyRequest) {
	detail := map[string]any{}
	if len(req.Filters) > 0 {
		detail["filters"] = req.Filters
	}
	if id, ok := req.Data["id"]; ok {
		detail["id"] = id
	}
	raw, _ := json.Marshal(detail)

	entityID, _ := req.Data["id"].(string)
	projectID, _ := req.Data["project_id"].(string)
	teamID, _ := req.Data["team_id"].(string)
	// Audit failures must not fail the write itself.
	_ = p.audit.Record(ctx, AuditEntry{
		Actor:     actor,
		Action:    req.Action,
		Entity:    req.Table,
		EntityID:  entityID,
		ProjectID: projectID,
		TeamID:    teamID,
		Detail:    string(raw),
	})
}

package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"worklog/database"
)

// ImportSummary reports the outcome of a schedule upload.
type ImportSummary struct {
	Imported int `json:"imported"` // cells written
	Invalid  int `json:"invalid"`  // cells coerced to the default code
	Skipped  int `json:"skipped"`  // rows dropped (not a team member)
}

// ShiftService imports and exports monthly shift schedules as CSV. The
// format is `Email,1,2,...,31`; one row per member, one cell per day.
type ShiftService struct {
	shifts      *database.ShiftStore
	teams       *database.TeamStore
	audit       *database.AuditStore
	defaultCode string
	log         *zap.SugaredLogger
}

func NewShiftService(shifts *database.ShiftStore, teams *database.TeamStore,
	audit *database.AuditStore, defaultCode string, log *zap.SugaredLogger) *ShiftService {
	return &ShiftService{
		shifts:      shifts,
		teams:       teams,
		audit:       audit,
		defaultCode: defaultCode,
		log:         log,
	}
}

// Import parses a schedule CSV and upserts shift entries for one month.
// Cells with a code not defined for the board are coerced to the default
// code and counted as invalid; rows whose email is not an active team
// member are skipped entirely.
func (s *ShiftService) Import(ctx context.Context, actor, projectID, teamID string, year, month int, r io.Reader) (*ImportSummary, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("invalid month %d", month)
	}
	if err := s.shifts.EnsureMandatoryCodes(ctx, projectID, teamID); err != nil {
		return nil, err
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if len(header) < 2 || !strings.EqualFold(strings.TrimSpace(header[0]), "Email") {
		return nil, fmt.Errorf("unexpected CSV header, want Email,1,2,...,31")
	}
	// Map header columns to day numbers once; exports always emit 1..31 but
	// hand-edited files may carry fewer columns.
	days := make([]int, len(header))
	for i := 1; i < len(header); i++ {
		day, err := strconv.Atoi(strings.TrimSpace(header[i]))
		if err != nil || day < 1 || day > 31 {
			return nil, fmt.Errorf("invalid day column %q in CSV header", header[i])
		}
		days[i] = day
	}

	known, err := s.knownCodes(ctx, projectID, teamID)
	if err != nil {
		return nil, err
	}

	summary := &ImportSummary{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}
		if len(record) == 0 {
			continue
		}

		email := strings.ToLower(strings.TrimSpace(record[0]))
		if email == "" {
			continue
		}
		member, err := s.teams.IsMember(ctx, teamID, email)
		if err != nil {
			return nil, err
		}
		if !member {
			s.log.Warnf("Skipping schedule row for %s: not an active team member", email)
			summary.Skipped++
			continue
		}

		for i := 1; i < len(record) && i < len(days); i++ {
			code := strings.ToUpper(strings.TrimSpace(record[i]))
			if code == "" {
				continue
			}
			if !known[code] {
				code = s.defaultCode
				summary.Invalid++
			}
			entry := &database.ShiftEntry{
				ProjectID: projectID,
				TeamID:    teamID,
				Email:     email,
				Year:      year,
				Month:     month,
				Day:       days[i],
				Code:      code,
			}
			if err := s.shifts.UpsertEntry(ctx, entry); err != nil {
				return nil, err
			}
			summary.Imported++
		}
	}

	s.recordAudit(ctx, actor, projectID, teamID, year, month, summary)
	return summary, nil
}

// Export writes the month's schedule as CSV with the `Email,1..31` header.
func (s *ShiftService) Export(ctx context.Context, projectID, teamID string, year, month int, w io.Writer) error {
	entries, err := s.shifts.ListEntries(ctx, projectID, teamID, year, month)
	if err != nil {
		return err
	}
	members, err := s.teams.ListMembers(ctx, teamID)
	if err != nil {
		return err
	}

	byMember := make(map[string]map[int]string)
	for _, e := range entries {
		if byMember[e.Email] == nil {
			byMember[e.Email] = make(map[int]string)
		}
		byMember[e.Email][e.Day] = e.Code
	}

	writer := csv.NewWriter(w)
	header := make([]string, 32)
	header[0] = "Email"
	for day := 1; day <= 31; day++ {
		header[day] = strconv.Itoa(day)
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, m := range members {
		row := make([]string, 32)
		row[0] = m.Email
		for day := 1; day <= 31; day++ {
			row[day] = byMember[m.Email][day]
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func (s *ShiftService) knownCodes(ctx context.Context, projectID, teamID string) (map[string]bool, error) {
	enums, err := s.shifts.ListEnums(ctx, projectID, teamID)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(enums))
	for _, e := range enums {
		known[e.Code] = true
	}
	return known, nil
}

func (s *ShiftService) recordAudit(ctx context.Context, actor, projectID, teamID string, year, month int, summary *ImportSummary) {
	err := s.audit.Record(ctx, database.AuditEntry{
		Actor:     actor,
		Action:    "import",
		Entity:    "shift_schedule",
		EntityID:  fmt.Sprintf("%04d-%02d", year, month),
		ProjectID: projectID,
		TeamID:    teamID,
		Detail: fmt.Sprintf("imported=%d invalid=%d skipped=%d",
			summary.Imported, summary.Invalid, summary.Skipped),
	})
	if err != nil {
		s.log.Warnf("Error recording audit entry: %v", err)
	}
}

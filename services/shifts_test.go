package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"worklog/database"
)

type shiftFixture struct {
	svc    *ShiftService
	shifts *database.ShiftStore
	audit  *database.AuditStore

	projectID string
	teamID    string
}

// newShiftFixture wires a ShiftService with bob and carol as active team
// members and "M" (Morning) as a custom shift code next to the mandatory
// ones.
func newShiftFixture(t *testing.T) *shiftFixture {
	t.Helper()
	db, err := database.InitDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	shifts := database.NewShiftStore(db)
	teams := database.NewTeamStore(db)
	audit := database.NewAuditStore(db)

	f := &shiftFixture{
		svc:       NewShiftService(shifts, teams, audit, "G", zap.NewNop().Sugar()),
		shifts:    shifts,
		audit:     audit,
		projectID: "proj-1",
		teamID:    "team-1",
	}

	ctx := context.Background()
	for _, email := range []string{"bob@example.com", "carol@example.com"} {
		require.NoError(t, teams.AddMember(ctx, &database.TeamMember{TeamID: f.teamID, Email: email}))
	}
	require.NoError(t, shifts.EnsureMandatoryCodes(ctx, f.projectID, f.teamID))
	_, err = shifts.UpsertEnum(ctx, &database.ShiftEnum{
		ProjectID: f.projectID, TeamID: f.teamID, Code: "M", Name: "Morning",
	})
	require.NoError(t, err)
	return f
}

func (f *shiftFixture) entriesFor(t *testing.T, email string) map[int]string {
	t.Helper()
	entries, err := f.shifts.ListEntries(context.Background(), f.projectID, f.teamID, 2026, 8)
	require.NoError(t, err)

	byDay := make(map[int]string)
	for _, e := range entries {
		if e.Email == email {
			byDay[e.Day] = e.Code
		}
	}
	return byDay
}

func TestImportSchedule(t *testing.T) {
	f := newShiftFixture(t)

	input := "Email,1,2,3\n" +
		"bob@example.com,M,H,G\n" +
		"carol@example.com,G,,M\n"

	summary, err := f.svc.Import(context.Background(), "alice@example.com",
		f.projectID, f.teamID, 2026, 8, strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, &ImportSummary{Imported: 5, Invalid: 0, Skipped: 0}, summary)
	assert.Equal(t, map[int]string{1: "M", 2: "H", 3: "G"}, f.entriesFor(t, "bob@example.com"))
	assert.Equal(t, map[int]string{1: "G", 3: "M"}, f.entriesFor(t, "carol@example.com"))
}

func TestImportCoercesUnknownCodes(t *testing.T) {
	f := newShiftFixture(t)

	input := "Email,1,2\n" +
		"bob@example.com,XX,M\n"

	summary, err := f.svc.Import(context.Background(), "alice@example.com",
		f.projectID, f.teamID, 2026, 8, strings.NewReader(input))
	require.NoError(t, err)

	// The unknown code still produces an entry, written as the default.
	assert.Equal(t, &ImportSummary{Imported: 2, Invalid: 1, Skipped: 0}, summary)
	assert.Equal(t, map[int]string{1: "G", 2: "M"}, f.entriesFor(t, "bob@example.com"))
}

func TestImportSkipsNonMembers(t *testing.T) {
	f := newShiftFixture(t)

	input := "Email,1\n" +
		"bob@example.com,M\n" +
		"mallory@example.com,M\n"

	summary, err := f.svc.Import(context.Background(), "alice@example.com",
		f.projectID, f.teamID, 2026, 8, strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, &ImportSummary{Imported: 1, Invalid: 0, Skipped: 1}, summary)
	assert.Empty(t, f.entriesFor(t, "mallory@example.com"))
}

func TestImportIsIdempotentPerCell(t *testing.T) {
	f := newShiftFixture(t)
	ctx := context.Background()

	first := "Email,1\nbob@example.com,M\n"
	_, err := f.svc.Import(ctx, "alice@example.com", f.projectID, f.teamID, 2026, 8, strings.NewReader(first))
	require.NoError(t, err)

	// Re-uploading the same day overwrites instead of duplicating.
	second := "Email,1\nbob@example.com,H\n"
	_, err = f.svc.Import(ctx, "alice@example.com", f.projectID, f.teamID, 2026, 8, strings.NewReader(second))
	require.NoError(t, err)

	assert.Equal(t, map[int]string{1: "H"}, f.entriesFor(t, "bob@example.com"))
}

func TestImportRejectsBadHeader(t *testing.T) {
	f := newShiftFixture(t)
	ctx := context.Background()

	_, err := f.svc.Import(ctx, "alice@example.com", f.projectID, f.teamID, 2026, 8,
		strings.NewReader("Name,1,2\nbob@example.com,M,M\n"))
	assert.Error(t, err)

	_, err = f.svc.Import(ctx, "alice@example.com", f.projectID, f.teamID, 2026, 8,
		strings.NewReader("Email,1,forty\nbob@example.com,M,M\n"))
	assert.Error(t, err)

	_, err = f.svc.Import(ctx, "alice@example.com", f.projectID, f.teamID, 2026, 13,
		strings.NewReader("Email,1\nbob@example.com,M\n"))
	assert.Error(t, err)
}

func TestImportRecordsAuditSummary(t *testing.T) {
	f := newShiftFixture(t)

	input := "Email,1,2\n" +
		"bob@example.com,M,XX\n" +
		"mallory@example.com,M,M\n"
	_, err := f.svc.Import(context.Background(), "alice@example.com",
		f.projectID, f.teamID, 2026, 8, strings.NewReader(input))
	require.NoError(t, err)

	entries, err := f.audit.List(context.Background(), database.AuditFilter{Action: "import"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "shift_schedule", entries[0].Entity)
	assert.Equal(t, "2026-08", entries[0].EntityID)
	assert.Equal(t, "imported=2 invalid=1 skipped=1", entries[0].Detail)
}

func TestExportSchedule(t *testing.T) {
	f := newShiftFixture(t)
	ctx := context.Background()

	input := "Email,1,3\nbob@example.com,M,H\n"
	_, err := f.svc.Import(ctx, "alice@example.com", f.projectID, f.teamID, 2026, 8, strings.NewReader(input))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.svc.Export(ctx, f.projectID, f.teamID, 2026, 8, &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)

	// Header plus one row per active member, 32 cells each.
	require.Len(t, records, 3)
	require.Len(t, records[0], 32)
	assert.Equal(t, "Email", records[0][0])
	assert.Equal(t, "1", records[0][1])
	assert.Equal(t, "31", records[0][31])

	assert.Equal(t, "bob@example.com", records[1][0])
	assert.Equal(t, "M", records[1][1])
	assert.Equal(t, "", records[1][2])
	assert.Equal(t, "H", records[1][3])

	// Members without entries still get an empty row.
	assert.Equal(t, "carol@example.com", records[2][0])
}

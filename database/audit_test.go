package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditListFilters(t *testing.T) {
	store := NewAuditStore(newTestDB(t))
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	seed := []AuditEntry{
		{Actor: "alice@example.com", Action: "move", Entity: "task", ProjectID: "proj-1", TeamID: "team-1", CreatedAt: base},
		{Actor: "bob@example.com", Action: "create", Entity: "task", ProjectID: "proj-1", TeamID: "team-1", CreatedAt: base.Add(time.Minute)},
		{Actor: "alice@example.com", Action: "import", Entity: "shift_schedule", ProjectID: "proj-2", TeamID: "team-1", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range seed {
		require.NoError(t, store.Record(ctx, e))
	}

	entries, err := store.List(ctx, AuditFilter{Actor: "alice@example.com"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// Newest first.
	assert.Equal(t, "import", entries[0].Action)
	assert.Equal(t, "move", entries[1].Action)

	entries, err = store.List(ctx, AuditFilter{ProjectID: "proj-1", Action: "create"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "bob@example.com", entries[0].Actor)

	entries, err = store.List(ctx, AuditFilter{From: base.Add(30 * time.Second), To: base.Add(90 * time.Second)})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "create", entries[0].Action)
}

func TestAuditListLimit(t *testing.T) {
	store := NewAuditStore(newTestDB(t))
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Record(ctx, AuditEntry{
			Actor: "alice@example.com", Action: "update", Entity: "task",
			EntityID:  fmt.Sprintf("task-%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	entries, err := store.List(ctx, AuditFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "task-4", entries[0].EntityID)
	assert.Equal(t, "task-3", entries[1].EntityID)
}

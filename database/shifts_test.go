package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMandatoryCodesSeededOnce(t *testing.T) {
	store := NewShiftStore(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.EnsureMandatoryCodes(ctx, "proj-1", "team-1"))
	require.NoError(t, store.EnsureMandatoryCodes(ctx, "proj-1", "team-1"))

	enums, err := store.ListEnums(ctx, "proj-1", "team-1")
	require.NoError(t, err)
	require.Len(t, enums, 2)
	assert.Equal(t, "G", enums[0].Code)
	assert.Equal(t, "H", enums[1].Code)
}

func TestDeleteEnumProtectsMandatoryCodes(t *testing.T) {
	store := NewShiftStore(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.EnsureMandatoryCodes(ctx, "proj-1", "team-1"))
	_, err := store.UpsertEnum(ctx, &ShiftEnum{
		ProjectID: "proj-1", TeamID: "team-1", Code: "M", Name: "Morning",
	})
	require.NoError(t, err)

	assert.ErrorIs(t, store.DeleteEnum(ctx, "proj-1", "team-1", "H"), ErrProtectedCode)
	assert.ErrorIs(t, store.DeleteEnum(ctx, "proj-1", "team-1", "G"), ErrProtectedCode)

	require.NoError(t, store.DeleteEnum(ctx, "proj-1", "team-1", "M"))
	assert.ErrorIs(t, store.DeleteEnum(ctx, "proj-1", "team-1", "M"), ErrNotFound)
}

func TestUpsertEnumOverwritesByCode(t *testing.T) {
	store := NewShiftStore(newTestDB(t))
	ctx := context.Background()

	_, err := store.UpsertEnum(ctx, &ShiftEnum{
		ProjectID: "proj-1", TeamID: "team-1", Code: "M", Name: "Morning",
	})
	require.NoError(t, err)
	_, err = store.UpsertEnum(ctx, &ShiftEnum{
		ProjectID: "proj-1", TeamID: "team-1", Code: "M", Name: "Matin", StartTime: "06:00",
	})
	require.NoError(t, err)

	enums, err := store.ListEnums(ctx, "proj-1", "team-1")
	require.NoError(t, err)
	require.Len(t, enums, 1)
	assert.Equal(t, "Matin", enums[0].Name)
	assert.Equal(t, "06:00", enums[0].StartTime)
}

func TestCodeScopedPerBoard(t *testing.T) {
	store := NewShiftStore(newTestDB(t))
	ctx := context.Background()

	_, err := store.UpsertEnum(ctx, &ShiftEnum{
		ProjectID: "proj-1", TeamID: "team-1", Code: "M", Name: "Morning",
	})
	require.NoError(t, err)

	exists, err := store.CodeExists(ctx, "proj-1", "team-1", "M")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.CodeExists(ctx, "proj-2", "team-1", "M")
	require.NoError(t, err)
	assert.False(t, exists)
}

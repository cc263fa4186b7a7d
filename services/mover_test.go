package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"worklog/database"
)

// fakeRemote records move requests and answers with a scripted error.
type fakeRemote struct {
	requests []database.MoveRequest
	err      error
}

func (r *fakeRemote) MoveTask(ctx context.Context, req database.MoveRequest) error {
	r.requests = append(r.requests, req)
	return r.err
}

func newTestMover(remote *fakeRemote) *Mover {
	return NewMover(remote, testBoard(), "alice@example.com", zap.NewNop().Sugar())
}

func TestDropAppliesMoveAndKeepsItOnSuccess(t *testing.T) {
	remote := &fakeRemote{}
	m := newTestMover(remote)

	require.NoError(t, m.BeginDrag("t-0"))
	err := m.Drop(context.Background(), DropResult{
		TaskID:      "t-0",
		Destination: &DropTarget{ColumnID: "col-done", Index: 1},
	})
	require.NoError(t, err)

	board := m.Board()
	assert.Equal(t, []string{"t-1"}, boardTitles(board, "col-todo"))
	assert.Equal(t, []string{"d-0", "t-0", "d-1"}, boardTitles(board, "col-done"))

	require.Len(t, remote.requests, 1)
	req := remote.requests[0]
	assert.Equal(t, "t-0", req.TaskID)
	assert.Equal(t, "col-done", req.DestinationColID)
	assert.Equal(t, 1, req.DestinationIndex)
	assert.Equal(t, "alice@example.com", req.ActorEmail)
	assert.Equal(t, int64(1), req.Version)

	// The controller is free again.
	assert.NoError(t, m.BeginDrag("t-1"))
}

func TestDropRestoresSnapshotOnRejection(t *testing.T) {
	rejection := errors.New("task was modified by someone else")
	remote := &fakeRemote{err: rejection}
	m := newTestMover(remote)
	before := m.Board().Clone()

	require.NoError(t, m.BeginDrag("t-0"))
	err := m.Drop(context.Background(), DropResult{
		TaskID:      "t-0",
		Destination: &DropTarget{ColumnID: "col-done", Index: 0},
	})
	require.ErrorIs(t, err, rejection)

	// Task positions, sort orders and versions are all back to the
	// pre-drag state, with no reload.
	assert.Equal(t, before, m.Board())
	assert.NoError(t, m.BeginDrag("t-0"))
}

func TestDropOutsideAnyColumnIsANoOp(t *testing.T) {
	remote := &fakeRemote{}
	m := newTestMover(remote)
	before := m.Board().Clone()

	require.NoError(t, m.BeginDrag("t-0"))
	require.NoError(t, m.Drop(context.Background(), DropResult{TaskID: "t-0"}))

	assert.Equal(t, before, m.Board())
	assert.Empty(t, remote.requests)
	assert.NoError(t, m.BeginDrag("t-0"))
}

func TestSecondDragRejectedWhileMoveInFlight(t *testing.T) {
	remote := &fakeRemote{}
	m := newTestMover(remote)

	require.NoError(t, m.BeginDrag("t-0"))
	assert.ErrorIs(t, m.BeginDrag("t-1"), ErrMoveInFlight)

	// A drop for a different task than the one in flight is refused too.
	err := m.Drop(context.Background(), DropResult{
		TaskID:      "t-1",
		Destination: &DropTarget{ColumnID: "col-done", Index: 0},
	})
	assert.ErrorIs(t, err, ErrMoveInFlight)
}

func TestSetBoardRejectedMidMove(t *testing.T) {
	remote := &fakeRemote{}
	m := newTestMover(remote)

	require.NoError(t, m.BeginDrag("t-0"))
	assert.ErrorIs(t, m.SetBoard(testBoard()), ErrMoveInFlight)

	require.NoError(t, m.Drop(context.Background(), DropResult{TaskID: "t-0"}))
	assert.NoError(t, m.SetBoard(testBoard()))
}

func TestDropOnVanishedTask(t *testing.T) {
	remote := &fakeRemote{}
	m := newTestMover(remote)

	require.NoError(t, m.BeginDrag("t-0"))

	// The task disappeared from the board underneath the drag.
	board := m.Board()
	board.Columns[0].Tasks = board.Columns[0].Tasks[1:]

	err := m.Drop(context.Background(), DropResult{
		TaskID:      "t-0",
		Destination: &DropTarget{ColumnID: "col-done", Index: 0},
	})
	assert.ErrorIs(t, err, ErrTaskVanished)
	assert.Empty(t, remote.requests)
	assert.NoError(t, m.BeginDrag("t-1"))
}

func TestDropAgainstBoardService(t *testing.T) {
	f := newBoardServiceFixture(t)
	ctx := context.Background()

	board, err := f.svc.Load(ctx, f.projectID, f.teamID, false)
	require.NoError(t, err)

	m := NewMover(f.svc, board.Clone(), "alice@example.com", zap.NewNop().Sugar())

	var taskID string
	for _, col := range m.Board().Columns {
		for _, task := range col.Tasks {
			if task.Title == "t-1" {
				taskID = task.ID
			}
		}
	}
	require.NotEmpty(t, taskID)

	require.NoError(t, m.BeginDrag(taskID))
	require.NoError(t, m.Drop(ctx, DropResult{
		TaskID:      taskID,
		Destination: &DropTarget{ColumnID: f.done.ID, Index: 0},
	}))

	// Optimistic view and durable state agree, including the version bump.
	persisted, err := f.svc.Load(ctx, f.projectID, f.teamID, true)
	require.NoError(t, err)
	assert.Equal(t, boardTitles(m.Board(), f.done.ID), boardTitles(persisted, f.done.ID))

	colIdx, taskIdx, found := persisted.FindTask(taskID)
	require.True(t, found)
	assert.Equal(t, int64(2), persisted.Columns[colIdx].Tasks[taskIdx].Version)

	optCol, optIdx, found := m.Board().FindTask(taskID)
	require.True(t, found)
	assert.Equal(t, int64(2), m.Board().Columns[optCol].Tasks[optIdx].Version)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"worklog/database"
)

// Drag controller errors.
var (
	ErrMoveInFlight = errors.New("a move is already in flight")
	ErrTaskVanished = errors.New("dragged task no longer exists on the board")
)

// RemoteBoard is the move backend the controller talks to. In-process
// callers use BoardService; a remote client wraps the move endpoint.
type RemoteBoard interface {
	MoveTask(ctx context.Context, req database.MoveRequest) error
}

// DropTarget is where a drag ended. A nil target means the drop landed
// outside any column.
type DropTarget struct {
	ColumnID string
	Index    int
}

type DropResult struct {
	TaskID      string
	Destination *DropTarget
}

// Mover translates drag gestures into durable task relocations. It applies
// the reorder to its board optimistically, keeps an immutable snapshot of
// the pre-drag state, and restores exactly that snapshot when the remote
// move fails - the board never needs a full reload to recover.
type Mover struct {
	remote RemoteBoard
	actor  string
	log    *zap.SugaredLogger

	mu            sync.Mutex
	board         *Board
	snapshot      *Board
	movingTaskID  string
	dragStartedAt time.Time
}

func NewMover(remote RemoteBoard, board *Board, actor string, log *zap.SugaredLogger) *Mover {
	return &Mover{
		remote: remote,
		board:  board,
		actor:  actor,
		log:    log,
	}
}

// Board returns the controller's current view of the board.
func (m *Mover) Board() *Board {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.board
}

// SetBoard replaces the board, e.g. after an external reload. Rejected
// while a move is in flight.
func (m *Mover) SetBoard(b *Board) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.movingTaskID != "" {
		return ErrMoveInFlight
	}
	m.board = b
	return nil
}

// BeginDrag marks a task as being dragged. A second drag cannot start
// until the first one resolves.
func (m *Mover) BeginDrag(taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.movingTaskID != "" {
		return ErrMoveInFlight
	}
	if _, _, ok := m.board.FindTask(taskID); !ok {
		return ErrTaskVanished
	}
	m.movingTaskID = taskID
	m.dragStartedAt = time.Now()
	return nil
}

// Drop resolves a drag. The optimistic reorder is applied before the
// remote call; on success it becomes the accepted truth, on failure the
// pre-drag snapshot is restored verbatim and the server's reason is
// returned.
func (m *Mover) Drop(ctx context.Context, result DropResult) error {
	m.mu.Lock()

	if m.movingTaskID != "" && m.movingTaskID != result.TaskID {
		m.mu.Unlock()
		return ErrMoveInFlight
	}

	if result.Destination == nil {
		// Dropped outside any column: nothing moved.
		m.movingTaskID = ""
		m.mu.Unlock()
		return nil
	}

	colIdx, taskIdx, ok := m.board.FindTask(result.TaskID)
	if !ok {
		// The board changed under the drag (e.g. someone else archived
		// the task). Abort without mutating anything.
		m.movingTaskID = ""
		m.mu.Unlock()
		return ErrTaskVanished
	}
	task := m.board.Columns[colIdx].Tasks[taskIdx]

	snapshot := m.board.Clone()
	if err := ApplyMove(m.board, result.TaskID, result.Destination.ColumnID, result.Destination.Index); err != nil {
		m.movingTaskID = ""
		m.mu.Unlock()
		return err
	}
	m.snapshot = snapshot
	m.movingTaskID = result.TaskID

	req := database.MoveRequest{
		TaskID:           result.TaskID,
		DestinationColID: result.Destination.ColumnID,
		DestinationIndex: result.Destination.Index,
		ProjectID:        m.board.ProjectID,
		TeamID:           m.board.TeamID,
		ActorEmail:       m.actor,
		Version:          task.Version,
	}
	m.mu.Unlock()

	err := m.remote.MoveTask(ctx, req)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.movingTaskID = ""

	if err != nil {
		m.board = m.snapshot
		m.snapshot = nil
		m.log.Warnf("Move of task %s failed, board restored: %v", result.TaskID, err)
		return fmt.Errorf("move rejected: %w", err)
	}

	m.snapshot = nil
	m.log.Infof("Task %s moved to column %s index %d (drag took %s)",
		result.TaskID, req.DestinationColID, req.DestinationIndex,
		time.Since(m.dragStartedAt).Round(time.Millisecond))
	return nil
}

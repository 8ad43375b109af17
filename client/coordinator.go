package client

import (
	"context"
	"sync"

	"taskboard/domain"
)

// BoardAPI is the remote contract the coordinator drives.
type BoardAPI interface {
	GetBoard(ctx context.Context, boardID string) (*domain.Board, error)
	CreateTask(ctx context.Context, boardID string, tc domain.TaskCreate) (*domain.Task, error)
	MoveTask(ctx context.Context, taskID string, mv domain.MoveRequest) (*domain.Task, error)
	UpdateTask(ctx context.Context, taskID string, up domain.TaskUpdate) (*domain.Task, error)
	DeleteTask(ctx context.Context, taskID string) error
}

// Coordinator ties the local cache to the backend. Mutations are projected
// into the cache immediately so the UI feels instantaneous, then either
// replaced by canonical server state (success) or rolled back to the
// snapshot taken before the projection (failure). The cache is never left
// in the optimistic-but-unconfirmed state after an error.
//
// Mutations on the same coordinator are serialized: a second move waits for
// the first reconciliation to finish instead of racing it.
type Coordinator struct {
	api    BoardAPI
	cache  *Cache
	notify func(*domain.Board)
	mu     sync.Mutex
}

// NewCoordinator creates a coordinator over the given API and cache. notify,
// when non-nil, is invoked with the board state after every visible change,
// including optimistic projections and rollbacks.
func NewCoordinator(api BoardAPI, cache *Cache, notify func(*domain.Board)) *Coordinator {
	return &Coordinator{api: api, cache: cache, notify: notify}
}

// Cache exposes the underlying cache for synchronous reads.
func (co *Coordinator) Cache() *Cache {
	return co.cache
}

// Load fetches the canonical board and makes it the current cached board.
func (co *Coordinator) Load(ctx context.Context, boardID string) (*domain.Board, error) {
	b, err := co.api.GetBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	co.mu.Lock()
	co.cache.SetBoard(b)
	co.mu.Unlock()
	co.publish(b)
	return b, nil
}

// MoveTask runs the optimistic move protocol:
//
//  1. Project the move locally and publish the unconfirmed board.
//  2. Issue the remote move, carrying both target and source coordinates.
//  3. On success, replace the whole cached board with a freshly fetched
//     canonical board — a single move can shift positions of other tasks in
//     both columns, which the local projection does not model.
//  4. On failure, restore the snapshot taken before step 1 and surface the
//     error.
//
// A move whose task (or board) is not cached is a silent no-op.
func (co *Coordinator) MoveTask(ctx context.Context, boardID, taskID string, mv domain.MoveRequest) error {
	co.mu.Lock()
	defer co.mu.Unlock()

	snapshot := co.cache.Board(boardID).Clone()
	if snapshot == nil {
		return nil
	}
	if !co.cache.MoveTask(boardID, taskID, mv.ColumnID, mv.Position) {
		return nil
	}
	co.publish(co.cache.Board(boardID))

	if _, err := co.api.MoveTask(ctx, taskID, mv); err != nil {
		co.rollback(snapshot)
		return err
	}

	fresh, err := co.api.GetBoard(ctx, boardID)
	if err != nil {
		// The move itself succeeded but the canonical refetch did not. The
		// optimistic state must not survive an error, so roll back and let
		// the caller retry the load.
		co.rollback(snapshot)
		return err
	}
	co.cache.SetBoard(fresh)
	co.publish(fresh)
	return nil
}

// CreateTask creates the task remotely, then refreshes the whole board so
// sibling positions shifted by the insert are reflected. There is no
// optimistic projection: the id, code and timestamps are server-assigned.
func (co *Coordinator) CreateTask(ctx context.Context, boardID string, tc domain.TaskCreate) (*domain.Task, error) {
	co.mu.Lock()
	defer co.mu.Unlock()

	task, err := co.api.CreateTask(ctx, boardID, tc)
	if err != nil {
		return nil, err
	}

	fresh, err := co.api.GetBoard(ctx, boardID)
	if err != nil {
		// Creation succeeded; fall back to projecting the returned task so
		// the UI shows it until the next full load.
		co.cache.AddTask(boardID, task.ColumnID, *task)
		if b := co.cache.Board(boardID); b != nil {
			co.publish(b)
		}
		return task, nil
	}
	co.cache.SetBoard(fresh)
	co.publish(fresh)
	return task, nil
}

// UpdateTask merges the update into the cached task immediately, then issues
// the remote update. On success the server's task replaces the projection;
// on failure the pre-update snapshot is restored.
func (co *Coordinator) UpdateTask(ctx context.Context, boardID, taskID string, up domain.TaskUpdate) error {
	co.mu.Lock()
	defer co.mu.Unlock()

	snapshot := co.cache.Board(boardID).Clone()
	if snapshot != nil {
		co.cache.UpdateTask(boardID, taskID, up)
		co.publish(co.cache.Board(boardID))
	}

	task, err := co.api.UpdateTask(ctx, taskID, up)
	if err != nil {
		if snapshot != nil {
			co.rollback(snapshot)
		}
		return err
	}
	if snapshot != nil {
		co.cache.replaceTask(boardID, *task)
		co.publish(co.cache.Board(boardID))
	}
	return nil
}

// DeleteTask removes the task locally, then remotely. On failure the
// snapshot is restored.
func (co *Coordinator) DeleteTask(ctx context.Context, boardID, taskID string) error {
	co.mu.Lock()
	defer co.mu.Unlock()

	snapshot := co.cache.Board(boardID).Clone()
	if snapshot != nil {
		co.cache.RemoveTask(boardID, taskID)
		co.publish(co.cache.Board(boardID))
	}

	if err := co.api.DeleteTask(ctx, taskID); err != nil {
		if snapshot != nil {
			co.rollback(snapshot)
		}
		return err
	}
	return nil
}

func (co *Coordinator) rollback(snapshot *domain.Board) {
	co.cache.SetBoard(snapshot)
	co.publish(snapshot)
}

func (co *Coordinator) publish(b *domain.Board) {
	if co.notify != nil {
		co.notify(b)
	}
}

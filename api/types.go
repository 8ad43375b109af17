package api

import (
	"context"

	"taskboard/domain"
)

// Storage abstracts the board store for handlers.
type Storage interface {
	ListBoards(ctx context.Context, userID string) ([]domain.Board, error)
	CreateBoard(ctx context.Context, b *domain.Board) error
	GetBoard(ctx context.Context, boardID string) (*domain.Board, error)
	BoardVisible(ctx context.Context, boardID, userID string) (bool, error)
	BoardIDForTask(ctx context.Context, taskID string) (string, error)
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)
	CreateTask(ctx context.Context, boardID string, tc domain.TaskCreate) (*domain.Task, error)
	UpdateTask(ctx context.Context, taskID string, up domain.TaskUpdate) (*domain.Task, error)
	MoveTask(ctx context.Context, taskID string, mv domain.MoveRequest, actor string) (*domain.Task, error)
	DeleteTask(ctx context.Context, taskID string) error
	TaskHistory(ctx context.Context, taskID string) ([]domain.TaskHistoryEntry, error)
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Deduper prevents a replayed move request from being applied twice.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Remove deletes a previously added key, used when downstream processing fails.
	Remove(ctx context.Context, userID, key string) error
}

package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"taskboard/domain"
)

type backend interface {
	GetBoard(ctx context.Context, boardID string) (*domain.Board, error)
	BoardIDForTask(ctx context.Context, taskID string) (string, error)
	CreateTask(ctx context.Context, boardID string, tc domain.TaskCreate) (*domain.Task, error)
	UpdateTask(ctx context.Context, taskID string, up domain.TaskUpdate) (*domain.Task, error)
	MoveTask(ctx context.Context, taskID string, mv domain.MoveRequest, actor string) (*domain.Task, error)
	DeleteTask(ctx context.Context, taskID string) error
}

// BoardCache wraps a Store with Redis-backed caching of canonical board
// aggregates. Every mutation evicts the owning board's entry so the next
// GetBoard serves fresh canonical state.
type BoardCache struct {
	*Store
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewBoardCache creates a caching wrapper using the provided Redis client and TTL.
func NewBoardCache(base backend, client *redis.Client, ttl time.Duration) *BoardCache {
	if base == nil {
		panic("storage.NewBoardCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}

	c := &BoardCache{
		base:  base,
		redis: client,
		ttl:   ttl,
	}
	if s, ok := base.(*Store); ok {
		c.Store = s
	}
	return c
}

func (c *BoardCache) GetBoard(ctx context.Context, boardID string) (*domain.Board, error) {
	if b, ok := c.loadBoard(ctx, boardID); ok {
		return b, nil
	}

	b, err := c.base.GetBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}

	c.storeBoard(ctx, b)
	return b, nil
}

func (c *BoardCache) CreateTask(ctx context.Context, boardID string, tc domain.TaskCreate) (*domain.Task, error) {
	t, err := c.base.CreateTask(ctx, boardID, tc)
	if err != nil {
		return nil, err
	}
	c.evict(ctx, boardID)
	return t, nil
}

func (c *BoardCache) UpdateTask(ctx context.Context, taskID string, up domain.TaskUpdate) (*domain.Task, error) {
	t, err := c.base.UpdateTask(ctx, taskID, up)
	if err != nil {
		return nil, err
	}
	c.evict(ctx, t.BoardID)
	return t, nil
}

func (c *BoardCache) MoveTask(ctx context.Context, taskID string, mv domain.MoveRequest, actor string) (*domain.Task, error) {
	t, err := c.base.MoveTask(ctx, taskID, mv, actor)
	if err != nil {
		return nil, err
	}
	c.evict(ctx, t.BoardID)
	return t, nil
}

func (c *BoardCache) DeleteTask(ctx context.Context, taskID string) error {
	// Resolve the board before the row disappears.
	boardID, err := c.base.BoardIDForTask(ctx, taskID)
	if err != nil {
		return err
	}
	if err := c.base.DeleteTask(ctx, taskID); err != nil {
		return err
	}
	c.evict(ctx, boardID)
	return nil
}

func (c *BoardCache) loadBoard(ctx context.Context, boardID string) (*domain.Board, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, boardCacheKey(boardID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, boardCacheKey(boardID)).Err()
		}
		return nil, false
	}
	var b domain.Board
	if err := json.Unmarshal(data, &b); err != nil {
		_ = c.redis.Del(ctx, boardCacheKey(boardID)).Err()
		return nil, false
	}
	return &b, true
}

func (c *BoardCache) storeBoard(ctx context.Context, b *domain.Board) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(b)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, boardCacheKey(b.ID), data, c.ttl).Err()
}

func (c *BoardCache) evict(ctx context.Context, boardID string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, boardCacheKey(boardID)).Result()
}

func boardCacheKey(boardID string) string {
	return "board:" + boardID
}

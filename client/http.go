package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"taskboard/domain"
)

const responseBodyMaxSize = 8 * 1024 * 1024 // 8 MiB

// APIError is a non-2xx response from the backend, carrying the
// human-readable message extracted from the response body.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Client talks to the board REST API over JSON.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client for the API at baseURL, authenticating every request
// with the given bearer token.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// ListBoards returns the boards visible to the authenticated user.
func (c *Client) ListBoards(ctx context.Context) ([]domain.Board, error) {
	var boards []domain.Board
	if err := c.do(ctx, http.MethodGet, "/kanban/boards", nil, &boards, nil); err != nil {
		return nil, err
	}
	return boards, nil
}

// GetBoard fetches the canonical board aggregate, used for the initial load
// and for post-move reconciliation.
func (c *Client) GetBoard(ctx context.Context, boardID string) (*domain.Board, error) {
	var b domain.Board
	if err := c.do(ctx, http.MethodGet, "/kanban/boards/"+boardID, nil, &b, nil); err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateTask creates a task on the board.
func (c *Client) CreateTask(ctx context.Context, boardID string, tc domain.TaskCreate) (*domain.Task, error) {
	var t domain.Task
	if err := c.do(ctx, http.MethodPost, "/kanban/boards/"+boardID+"/tasks", tc, &t, nil); err != nil {
		return nil, err
	}
	return &t, nil
}

// MoveTask asks the server to relocate the task. The request carries the
// original coordinates so the server can reject moves that raced another
// actor, and an idempotency key so a retried request is not applied twice.
func (c *Client) MoveTask(ctx context.Context, taskID string, mv domain.MoveRequest) (*domain.Task, error) {
	var t domain.Task
	headers := map[string]string{"Idempotency-Key": uuid.NewString()}
	if err := c.do(ctx, http.MethodPatch, "/kanban/tasks/"+taskID+"/move", mv, &t, headers); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTask applies a partial update to the task.
func (c *Client) UpdateTask(ctx context.Context, taskID string, up domain.TaskUpdate) (*domain.Task, error) {
	var t domain.Task
	if err := c.do(ctx, http.MethodPut, "/kanban/tasks/"+taskID, up, &t, nil); err != nil {
		return nil, err
	}
	return &t, nil
}

// DeleteTask deletes the task.
func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	return c.do(ctx, http.MethodDelete, "/kanban/tasks/"+taskID, nil, nil, nil)
}

// TaskHistory returns the task's move history, oldest first.
func (c *Client) TaskHistory(ctx context.Context, taskID string) ([]domain.TaskHistoryEntry, error) {
	var entries []domain.TaskHistoryEntry
	if err := c.do(ctx, http.MethodGet, "/kanban/tasks/"+taskID+"/history", nil, &entries, nil); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, headers map[string]string) error {
	var rd io.Reader
	if body != nil {
		data, err := sonic.ConfigStd.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyMaxSize))
	if err != nil {
		return fmt.Errorf("network error: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(data, resp.StatusCode)}
	}
	if out == nil {
		return nil
	}
	if err := sonic.ConfigStd.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage pulls a human-readable message out of the error envelope,
// accepting either an "error" or a "message" field.
func errorMessage(data []byte, status int) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := sonic.ConfigStd.Unmarshal(data, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return fmt.Sprintf("request failed with status %d", status)
}

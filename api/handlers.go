package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard/domain"
	"taskboard/storage"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, auth Authenticator, deduper Deduper, logger *log.Logger) {
	e.GET("/kanban/boards", listBoards(store, auth))
	e.POST("/kanban/boards", createBoard(store, auth))
	e.GET("/kanban/boards/:boardId", getBoard(store, auth, logger))
	e.POST("/kanban/boards/:boardId/tasks", createTask(store, auth))
	e.PATCH("/kanban/tasks/:taskId/move", moveTask(store, auth, deduper, logger))
	e.PUT("/kanban/tasks/:taskId", updateTask(store, auth))
	e.DELETE("/kanban/tasks/:taskId", deleteTask(store, auth))
	e.GET("/kanban/tasks/:taskId/history", taskHistory(store, auth))
	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func jsonError(c echo.Context, status int, msg string) error {
	return c.JSON(status, errorResponse{Error: msg})
}

// storeErrorStatus maps store sentinel errors onto HTTP status codes.
func storeErrorStatus(err error) int {
	switch {
	case errors.Is(err, storage.ErrBoardNotFound),
		errors.Is(err, storage.ErrColumnNotFound),
		errors.Is(err, storage.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrStaleMove):
		return http.StatusConflict
	case errors.Is(err, storage.ErrTaskLocked):
		return http.StatusLocked
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(c echo.Context, dst any) error {
	lr := io.LimitReader(c.Request().Body, requestBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// taskBoard resolves the board owning the task and checks the caller may see
// it. The returned status is zero when access is granted.
func taskBoard(c echo.Context, store Storage, userID, taskID string) (string, int, string) {
	ctx := c.Request().Context()
	boardID, err := store.BoardIDForTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, storage.ErrTaskNotFound) {
			return "", http.StatusNotFound, err.Error()
		}
		return "", http.StatusInternalServerError, err.Error()
	}
	visible, err := store.BoardVisible(ctx, boardID, userID)
	if err != nil {
		return "", http.StatusInternalServerError, err.Error()
	}
	if !visible {
		return "", http.StatusForbidden, "no access to board"
	}
	return boardID, 0, ""
}

func listBoards(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return jsonError(c, http.StatusUnauthorized, err.Error())
		}
		boards, err := store.ListBoards(ctx, userID)
		if err != nil {
			c.Logger().Error(err)
			return jsonError(c, http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, boards)
	}
}

type createBoardColumn struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

type createBoardRequest struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	ProjectID   string              `json:"project_id"`
	CodePrefix  string              `json:"code_prefix"`
	Columns     []createBoardColumn `json:"columns"`
}

// defaultColumns is the layout applied when a board is created without an
// explicit column list.
var defaultColumns = []createBoardColumn{
	{Name: "To Do", Status: "todo"},
	{Name: "In Progress", Status: "in_progress"},
	{Name: "Done", Status: "done"},
}

func createBoard(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return jsonError(c, http.StatusUnauthorized, err.Error())
		}

		var req createBoardRequest
		if err := decodeBody(c, &req); err != nil {
			return jsonError(c, http.StatusBadRequest, "invalid body")
		}
		if req.Name == "" {
			return jsonError(c, http.StatusBadRequest, "board name is required")
		}

		cols := req.Columns
		if len(cols) == 0 {
			cols = defaultColumns
		}

		board := &domain.Board{
			Name:        req.Name,
			Description: req.Description,
			ProjectID:   req.ProjectID,
			OwnerID:     userID,
			CodePrefix:  req.CodePrefix,
		}
		for i, col := range cols {
			board.Columns = append(board.Columns, domain.Column{
				Name:     col.Name,
				Status:   col.Status,
				Position: i,
				Tasks:    []domain.Task{},
			})
		}

		if err := store.CreateBoard(ctx, board); err != nil {
			c.Logger().Error(err)
			return jsonError(c, http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusCreated, board)
	}
}

func getBoard(store Storage, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics := newRequestMetrics(logger, "/kanban/boards/:boardId")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = jsonError(c, http.StatusUnauthorized, authErr.Error())
			return err
		}

		boardID := c.Param("boardId")
		visible, visErr := store.BoardVisible(ctx, boardID, userID)
		if visErr != nil {
			metrics.SetErrorStage("storage")
			err = jsonError(c, http.StatusInternalServerError, visErr.Error())
			return err
		}
		if !visible {
			metrics.SetErrorStage("forbidden")
			err = jsonError(c, http.StatusNotFound, storage.ErrBoardNotFound.Error())
			return err
		}

		fetchStart := time.Now()
		board, fetchErr := store.GetBoard(ctx, boardID)
		metrics.ObserveStore(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			err = jsonError(c, storeErrorStatus(fetchErr), fetchErr.Error())
			return err
		}

		err = c.JSON(http.StatusOK, board)
		return err
	}
}

type createTaskRequest struct {
	ColumnID    string          `json:"column_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Priority    domain.Priority `json:"priority"`
	Status      string          `json:"status"`
	Assignee    string          `json:"assignee"`
	DueDate     *time.Time      `json:"due_date"`
	Position    *int            `json:"position"`
}

func createTask(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return jsonError(c, http.StatusUnauthorized, err.Error())
		}

		boardID := c.Param("boardId")
		visible, err := store.BoardVisible(ctx, boardID, userID)
		if err != nil {
			return jsonError(c, http.StatusInternalServerError, err.Error())
		}
		if !visible {
			return jsonError(c, http.StatusNotFound, storage.ErrBoardNotFound.Error())
		}

		var req createTaskRequest
		if err := decodeBody(c, &req); err != nil {
			return jsonError(c, http.StatusBadRequest, "invalid body")
		}
		if req.Title == "" {
			return jsonError(c, http.StatusBadRequest, "task title is required")
		}
		if req.ColumnID == "" {
			return jsonError(c, http.StatusBadRequest, "column_id is required")
		}
		if req.Priority != "" && !req.Priority.Valid() {
			return jsonError(c, http.StatusBadRequest, "invalid priority")
		}

		task, err := store.CreateTask(ctx, boardID, domain.TaskCreate{
			ColumnID:    req.ColumnID,
			Title:       req.Title,
			Description: req.Description,
			Priority:    req.Priority,
			Status:      req.Status,
			Assignee:    req.Assignee,
			DueDate:     req.DueDate,
			Position:    req.Position,
		})
		if err != nil {
			return jsonError(c, storeErrorStatus(err), err.Error())
		}
		return c.JSON(http.StatusCreated, task)
	}
}

func moveTask(store Storage, auth Authenticator, deduper Deduper, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics := newRequestMetrics(logger, "/kanban/tasks/:taskId/move")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = jsonError(c, http.StatusUnauthorized, authErr.Error())
			return err
		}

		taskID := c.Param("taskId")
		var mv domain.MoveRequest
		if decErr := decodeBody(c, &mv); decErr != nil {
			metrics.SetErrorStage("decode")
			err = jsonError(c, http.StatusBadRequest, "invalid body")
			return err
		}
		if mv.ColumnID == "" || mv.Position < 0 {
			metrics.SetErrorStage("validate")
			err = jsonError(c, http.StatusBadRequest, "invalid move target")
			return err
		}

		if _, status, msg := taskBoard(c, store, userID, taskID); status != 0 {
			metrics.SetErrorStage("access")
			err = jsonError(c, status, msg)
			return err
		}

		// A replayed idempotency key answers with the task's current state
		// instead of moving it again.
		idemKey := c.Request().Header.Get("Idempotency-Key")
		keyRecorded := false
		if deduper != nil && idemKey != "" {
			added, dedupErr := deduper.Add(ctx, userID, idemKey)
			if dedupErr != nil {
				logger.WithError(dedupErr).Warn("idempotency check unavailable, proceeding")
			} else if !added {
				task, getErr := store.GetTask(ctx, taskID)
				if getErr != nil {
					err = jsonError(c, storeErrorStatus(getErr), getErr.Error())
					return err
				}
				err = c.JSON(http.StatusOK, task)
				return err
			} else {
				keyRecorded = true
			}
		}

		moveStart := time.Now()
		task, moveErr := store.MoveTask(ctx, taskID, mv, userID)
		metrics.ObserveStore(time.Since(moveStart))
		if moveErr != nil {
			if keyRecorded {
				if rmErr := deduper.Remove(ctx, userID, idemKey); rmErr != nil {
					logger.WithError(rmErr).Error("idempotency rollback failed")
				}
			}
			metrics.SetErrorStage("storage")
			err = jsonError(c, storeErrorStatus(moveErr), moveErr.Error())
			return err
		}

		err = c.JSON(http.StatusOK, task)
		return err
	}
}

func updateTask(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return jsonError(c, http.StatusUnauthorized, err.Error())
		}

		taskID := c.Param("taskId")
		var up domain.TaskUpdate
		if err := decodeBody(c, &up); err != nil {
			return jsonError(c, http.StatusBadRequest, "invalid body")
		}
		if up.Title != nil && *up.Title == "" {
			return jsonError(c, http.StatusBadRequest, "task title cannot be empty")
		}
		if up.Priority != nil && !up.Priority.Valid() {
			return jsonError(c, http.StatusBadRequest, "invalid priority")
		}

		if _, status, msg := taskBoard(c, store, userID, taskID); status != 0 {
			return jsonError(c, status, msg)
		}

		task, err := store.UpdateTask(ctx, taskID, up)
		if err != nil {
			return jsonError(c, storeErrorStatus(err), err.Error())
		}
		return c.JSON(http.StatusOK, task)
	}
}

func deleteTask(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return jsonError(c, http.StatusUnauthorized, err.Error())
		}

		taskID := c.Param("taskId")
		if _, status, msg := taskBoard(c, store, userID, taskID); status != 0 {
			return jsonError(c, status, msg)
		}

		if err := store.DeleteTask(ctx, taskID); err != nil {
			return jsonError(c, storeErrorStatus(err), err.Error())
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func taskHistory(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return jsonError(c, http.StatusUnauthorized, err.Error())
		}

		taskID := c.Param("taskId")
		if _, status, msg := taskBoard(c, store, userID, taskID); status != 0 {
			return jsonError(c, status, msg)
		}

		entries, err := store.TaskHistory(ctx, taskID)
		if err != nil {
			return jsonError(c, storeErrorStatus(err), err.Error())
		}
		return c.JSON(http.StatusOK, entries)
	}
}

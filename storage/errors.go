package storage

import "errors"

var (
	// ErrBoardNotFound is returned when the requested board does not exist.
	ErrBoardNotFound = errors.New("board not found")

	// ErrColumnNotFound is returned when the target column does not exist or
	// belongs to a different board.
	ErrColumnNotFound = errors.New("column not found")

	// ErrTaskNotFound is returned when the requested task does not exist.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskLocked is returned when a move targets a task whose lock flag
	// is set.
	ErrTaskLocked = errors.New("task is locked")

	// ErrStaleMove is returned when the old coordinates supplied with a move
	// no longer match the task's current column and position, indicating the
	// task was moved by someone else in the meantime.
	ErrStaleMove = errors.New("task was moved by someone else")
)

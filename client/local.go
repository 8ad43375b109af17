package client

import (
	"sort"

	"taskboard/domain"
)

// AddTask appends the task to the named column and re-sorts that column by
// position. The caller supplies the position; nothing is renumbered. Unknown
// board or column ids are silent no-ops.
func (c *Cache) AddTask(boardID, columnID string, t domain.Task) {
	b := c.boards[boardID]
	if b == nil {
		return
	}
	col := b.Column(columnID)
	if col == nil {
		return
	}
	t.BoardID = boardID
	t.ColumnID = columnID
	col.Tasks = append(col.Tasks, t)
	sort.SliceStable(col.Tasks, func(i, j int) bool {
		return col.Tasks[i].Position < col.Tasks[j].Position
	})
}

// UpdateTask locates the task by id across all columns of the board and
// merges the non-nil fields. A task that is not cached is a silent no-op.
func (c *Cache) UpdateTask(boardID, taskID string, up domain.TaskUpdate) {
	b := c.boards[boardID]
	if b == nil {
		return
	}
	ci, ti := b.FindTask(taskID)
	if ci < 0 {
		return
	}
	up.Apply(&b.Columns[ci].Tasks[ti])
}

// replaceTask swaps in the authoritative task returned by the server,
// keeping it in whatever column the cache currently shows it in.
func (c *Cache) replaceTask(boardID string, t domain.Task) {
	b := c.boards[boardID]
	if b == nil {
		return
	}
	ci, ti := b.FindTask(t.ID)
	if ci < 0 {
		return
	}
	b.Columns[ci].Tasks[ti] = t
}

// MoveTask is the local optimistic projection of a drag-and-drop move: the
// task is removed from whichever column holds it, inserted into the target
// column at newPosition with its column and position overwritten, and the
// target column is renumbered so positions equal list indices. The source
// column is not renumbered (removal already preserved its relative order).
//
// This is pure and synchronous; it never contacts the server and makes no
// attempt to resolve concurrent moves by other actors. It returns false
// when the board, the task, or the target column is not cached, in which
// case nothing is mutated.
func (c *Cache) MoveTask(boardID, taskID, newColumnID string, newPosition int) bool {
	b := c.boards[boardID]
	if b == nil {
		return false
	}
	ci, ti := b.FindTask(taskID)
	if ci < 0 {
		return false
	}
	target := b.Column(newColumnID)
	if target == nil {
		return false
	}

	src := &b.Columns[ci]
	task := src.Tasks[ti]
	src.Tasks = append(src.Tasks[:ti], src.Tasks[ti+1:]...)

	idx := newPosition
	if idx < 0 {
		idx = 0
	}
	if idx > len(target.Tasks) {
		idx = len(target.Tasks)
	}

	task.ColumnID = newColumnID
	task.Position = idx

	target.Tasks = append(target.Tasks, domain.Task{})
	copy(target.Tasks[idx+1:], target.Tasks[idx:])
	target.Tasks[idx] = task

	// Repair any gap or overlap the insertion introduced in the target.
	for i := range target.Tasks {
		target.Tasks[i].Position = i
	}
	return true
}

// RemoveTask deletes the task from whichever column contains it. Remaining
// positions are not renumbered; callers needing strict density refresh from
// the server. Unknown ids are silent no-ops.
func (c *Cache) RemoveTask(boardID, taskID string) {
	b := c.boards[boardID]
	if b == nil {
		return
	}
	ci, ti := b.FindTask(taskID)
	if ci < 0 {
		return
	}
	col := &b.Columns[ci]
	col.Tasks = append(col.Tasks[:ti], col.Tasks[ti+1:]...)
}

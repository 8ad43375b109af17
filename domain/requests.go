package domain

import "time"

// MoveRequest carries the coordinates of a drag-and-drop move. The old
// coordinates let the server detect that the task was moved by someone else
// since the client last saw the board.
type MoveRequest struct {
	ColumnID    string `json:"column_id"`
	Position    int    `json:"position"`
	OldColumnID string `json:"old_column_id"`
	OldPosition int    `json:"old_position"`
}

// TaskCreate is the payload for creating a task. When Position is nil the
// task is appended to the end of the column.
type TaskCreate struct {
	ColumnID    string     `json:"column_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    Priority   `json:"priority,omitempty"`
	Status      string     `json:"status,omitempty"`
	Assignee    string     `json:"assignee,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Position    *int       `json:"position,omitempty"`
}

// TaskUpdate is a partial task update. Nil fields are left unchanged.
type TaskUpdate struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Priority    *Priority  `json:"priority,omitempty"`
	Status      *string    `json:"status,omitempty"`
	Assignee    *string    `json:"assignee,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Locked      *bool      `json:"locked,omitempty"`
}

// Apply merges the non-nil fields of the update into the task.
func (u TaskUpdate) Apply(t *Task) {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Priority != nil {
		t.Priority = *u.Priority
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.Assignee != nil {
		t.Assignee = *u.Assignee
	}
	if u.DueDate != nil {
		due := *u.DueDate
		t.DueDate = &due
	}
	if u.Locked != nil {
		t.Locked = *u.Locked
	}
}

// BoardUpdate is a partial board update. Nil fields are left unchanged.
type BoardUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	ProjectID   *string `json:"project_id,omitempty"`
}

// Apply merges the non-nil fields of the update into the board.
func (u BoardUpdate) Apply(b *Board) {
	if u.Name != nil {
		b.Name = *u.Name
	}
	if u.Description != nil {
		b.Description = *u.Description
	}
	if u.ProjectID != nil {
		b.ProjectID = *u.ProjectID
	}
}

// TaskHistoryEntry records a single completed move of a task, in the order
// the moves were applied by the server.
type TaskHistoryEntry struct {
	ID           int64     `json:"id"`
	TaskID       string    `json:"task_id"`
	FromColumnID string    `json:"from_column_id"`
	ToColumnID   string    `json:"to_column_id"`
	FromPosition int       `json:"from_position"`
	ToPosition   int       `json:"to_position"`
	Actor        string    `json:"actor"`
	CreatedAt    time.Time `json:"created_at"`
}

package domain

// Column is an ordered lane on a board. Position is unique within the board
// and defines left-to-right order; Tasks is kept sorted by task position.
type Column struct {
	ID       string `json:"id"`
	BoardID  string `json:"board_id"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Position int    `json:"position"`
	Tasks    []Task `json:"tasks"`
}

// Clone returns a deep copy of the column.
func (c Column) Clone() Column {
	out := c
	out.Tasks = make([]Task, len(c.Tasks))
	for i, t := range c.Tasks {
		out.Tasks[i] = t.Clone()
	}
	return out
}

// Board is the aggregate served by the backend and cached by clients:
// a named set of columns, each holding an ordered list of tasks.
type Board struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	ProjectID   string   `json:"project_id,omitempty"`
	OwnerID     string   `json:"owner_id"`
	CodePrefix  string   `json:"code_prefix,omitempty"`
	Columns     []Column `json:"columns"`
}

// Clone returns a deep copy of the board, including all columns and tasks.
// Clients snapshot boards before optimistic mutations so a failed move can
// be rolled back without partial state leaking through.
func (b *Board) Clone() *Board {
	if b == nil {
		return nil
	}
	out := *b
	out.Columns = make([]Column, len(b.Columns))
	for i, c := range b.Columns {
		out.Columns[i] = c.Clone()
	}
	return &out
}

// FindTask returns the column index and task index of the task with the
// given id, or (-1, -1) when the board does not contain it.
func (b *Board) FindTask(taskID string) (colIdx, taskIdx int) {
	for ci := range b.Columns {
		for ti := range b.Columns[ci].Tasks {
			if b.Columns[ci].Tasks[ti].ID == taskID {
				return ci, ti
			}
		}
	}
	return -1, -1
}

// Column returns a pointer to the column with the given id, or nil.
func (b *Board) Column(columnID string) *Column {
	for i := range b.Columns {
		if b.Columns[i].ID == columnID {
			return &b.Columns[i]
		}
	}
	return nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"taskboard/domain"
)

// Store is the authoritative board store. It owns position bookkeeping:
// every mutation leaves task positions dense within each affected column.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and runs migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Foreign keys are off by default in SQLite and are required for the
	// cascading deletes below.
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %s: %w", p, err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	// SQLite benefits from a single writer connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS boards (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			project_id TEXT NOT NULL DEFAULT '',
			owner_id TEXT NOT NULL,
			code_prefix TEXT NOT NULL,
			next_code INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS board_members (
			board_id TEXT NOT NULL REFERENCES boards(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			PRIMARY KEY (board_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS columns (
			id TEXT PRIMARY KEY,
			board_id TEXT NOT NULL REFERENCES boards(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT '',
			position INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			board_id TEXT NOT NULL REFERENCES boards(id) ON DELETE CASCADE,
			column_id TEXT NOT NULL REFERENCES columns(id) ON DELETE CASCADE,
			code TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			priority TEXT NOT NULL DEFAULT 'medium',
			status TEXT NOT NULL DEFAULT '',
			position INTEGER NOT NULL,
			assignee TEXT NOT NULL DEFAULT '',
			due_date TIMESTAMP,
			locked INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS task_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
			from_column_id TEXT NOT NULL,
			to_column_id TEXT NOT NULL,
			from_position INTEGER NOT NULL,
			to_position INTEGER NOT NULL,
			actor TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_column ON tasks(column_id, position)`,
		`CREATE INDEX IF NOT EXISTS idx_columns_board ON columns(board_id, position)`,
		`CREATE INDEX IF NOT EXISTS idx_history_task ON task_history(task_id, id)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// CreateBoard inserts the board together with its columns. Missing ids are
// assigned, column positions are normalized to their index, and the owner is
// registered as a member.
func (s *Store) CreateBoard(ctx context.Context, b *domain.Board) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CodePrefix == "" {
		b.CodePrefix = defaultCodePrefix(b.Name)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO boards (id, name, description, project_id, owner_id, code_prefix)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.Name, b.Description, b.ProjectID, b.OwnerID, b.CodePrefix,
	)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO board_members (board_id, user_id) VALUES (?, ?)`,
		b.ID, b.OwnerID,
	)
	if err != nil {
		return err
	}

	for i := range b.Columns {
		col := &b.Columns[i]
		if col.ID == "" {
			col.ID = uuid.NewString()
		}
		col.BoardID = b.ID
		col.Position = i
		if col.Tasks == nil {
			col.Tasks = []domain.Task{}
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO columns (id, board_id, name, status, position)
			 VALUES (?, ?, ?, ?, ?)`,
			col.ID, b.ID, col.Name, col.Status, col.Position,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// AddBoardMember grants a user access to a board.
func (s *Store) AddBoardMember(ctx context.Context, boardID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO board_members (board_id, user_id) VALUES (?, ?)`,
		boardID, userID,
	)
	return err
}

// ListBoards returns the boards visible to the user, without nested columns.
func (s *Store) ListBoards(ctx context.Context, userID string) ([]domain.Board, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT b.id, b.name, b.description, b.project_id, b.owner_id, b.code_prefix
		 FROM boards b
		 JOIN board_members m ON m.board_id = b.id
		 WHERE m.user_id = ?
		 ORDER BY b.name`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	boards := []domain.Board{}
	for rows.Next() {
		var b domain.Board
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &b.ProjectID, &b.OwnerID, &b.CodePrefix); err != nil {
			return nil, err
		}
		boards = append(boards, b)
	}
	return boards, rows.Err()
}

// BoardVisible reports whether the user is the owner or a member of the board.
func (s *Store) BoardVisible(ctx context.Context, boardID, userID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM board_members WHERE board_id = ? AND user_id = ?`,
		boardID, userID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetBoard returns the canonical board aggregate: columns ordered by column
// position, tasks within each column ordered by task position.
func (s *Store) GetBoard(ctx context.Context, boardID string) (*domain.Board, error) {
	b := &domain.Board{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, project_id, owner_id, code_prefix
		 FROM boards WHERE id = ?`,
		boardID,
	).Scan(&b.ID, &b.Name, &b.Description, &b.ProjectID, &b.OwnerID, &b.CodePrefix)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBoardNotFound
	}
	if err != nil {
		return nil, err
	}

	colRows, err := s.db.QueryContext(ctx,
		`SELECT id, board_id, name, status, position
		 FROM columns WHERE board_id = ? ORDER BY position`,
		boardID,
	)
	if err != nil {
		return nil, err
	}
	defer colRows.Close()

	colIdx := map[string]int{}
	for colRows.Next() {
		var c domain.Column
		if err := colRows.Scan(&c.ID, &c.BoardID, &c.Name, &c.Status, &c.Position); err != nil {
			return nil, err
		}
		c.Tasks = []domain.Task{}
		colIdx[c.ID] = len(b.Columns)
		b.Columns = append(b.Columns, c)
	}
	if err := colRows.Err(); err != nil {
		return nil, err
	}

	taskRows, err := s.db.QueryContext(ctx,
		`SELECT id, board_id, column_id, code, title, description, priority, status,
		        position, assignee, due_date, locked, created_at, updated_at
		 FROM tasks WHERE board_id = ? ORDER BY column_id, position`,
		boardID,
	)
	if err != nil {
		return nil, err
	}
	defer taskRows.Close()

	for taskRows.Next() {
		t, err := scanTask(taskRows)
		if err != nil {
			return nil, err
		}
		if i, ok := colIdx[t.ColumnID]; ok {
			b.Columns[i].Tasks = append(b.Columns[i].Tasks, t)
		}
	}
	return b, taskRows.Err()
}

// BoardIDForTask resolves the board that owns the task.
func (s *Store) BoardIDForTask(ctx context.Context, taskID string) (string, error) {
	var boardID string
	err := s.db.QueryRowContext(ctx,
		`SELECT board_id FROM tasks WHERE id = ?`, taskID,
	).Scan(&boardID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrTaskNotFound
	}
	return boardID, err
}

// GetTask returns a single task by id.
func (s *Store) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, board_id, column_id, code, title, description, priority, status,
		        position, assignee, due_date, locked, created_at, updated_at
		 FROM tasks WHERE id = ?`,
		taskID,
	)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTask inserts a task into a column of the board. When the request
// names a position inside the column, tasks at and below it are shifted down
// to keep positions dense; otherwise the task is appended.
func (s *Store) CreateTask(ctx context.Context, boardID string, tc domain.TaskCreate) (*domain.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var colBoardID, colStatus string
	err = tx.QueryRowContext(ctx,
		`SELECT board_id, status FROM columns WHERE id = ?`, tc.ColumnID,
	).Scan(&colBoardID, &colStatus)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && colBoardID != boardID) {
		return nil, ErrColumnNotFound
	}
	if err != nil {
		return nil, err
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE column_id = ?`, tc.ColumnID,
	).Scan(&count); err != nil {
		return nil, err
	}

	position := count
	if tc.Position != nil {
		position = clamp(*tc.Position, 0, count)
		if position < count {
			_, err = tx.ExecContext(ctx,
				`UPDATE tasks SET position = position + 1
				 WHERE column_id = ? AND position >= ?`,
				tc.ColumnID, position,
			)
			if err != nil {
				return nil, err
			}
		}
	}

	var prefix string
	var nextCode int
	err = tx.QueryRowContext(ctx,
		`SELECT code_prefix, next_code FROM boards WHERE id = ?`, boardID,
	).Scan(&prefix, &nextCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBoardNotFound
	}
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE boards SET next_code = next_code + 1 WHERE id = ?`, boardID,
	); err != nil {
		return nil, err
	}

	priority := tc.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	status := tc.Status
	if status == "" {
		status = colStatus
	}

	now := time.Now().UTC()
	t := domain.Task{
		ID:          uuid.NewString(),
		BoardID:     boardID,
		ColumnID:    tc.ColumnID,
		Code:        fmt.Sprintf("%s-%d", prefix, nextCode),
		Title:       tc.Title,
		Description: tc.Description,
		Priority:    priority,
		Status:      status,
		Position:    position,
		Assignee:    tc.Assignee,
		DueDate:     tc.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tasks (id, board_id, column_id, code, title, description, priority,
		                    status, position, assignee, due_date, locked, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.BoardID, t.ColumnID, t.Code, t.Title, t.Description, t.Priority,
		t.Status, t.Position, t.Assignee, t.DueDate, boolToInt(t.Locked), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTask merges the non-nil fields of the update into the task.
func (s *Store) UpdateTask(ctx context.Context, taskID string, up domain.TaskUpdate) (*domain.Task, error) {
	t, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	up.Apply(t)
	t.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`UPDATE tasks
		 SET title = ?, description = ?, priority = ?, status = ?, assignee = ?,
		     due_date = ?, locked = ?, updated_at = ?
		 WHERE id = ?`,
		t.Title, t.Description, t.Priority, t.Status, t.Assignee,
		t.DueDate, boolToInt(t.Locked), t.UpdatedAt, t.ID,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// MoveTask relocates a task to a new column and position in one transaction.
// The gap left in the source column is closed and a gap is opened in the
// target column, so positions stay dense in both. The supplied old
// coordinates must match the task's current row or the move is rejected with
// ErrStaleMove. A history entry is appended for every completed move.
func (s *Store) MoveTask(ctx context.Context, taskID string, mv domain.MoveRequest, actor string) (*domain.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var boardID, curColumn string
	var curPosition, locked int
	err = tx.QueryRowContext(ctx,
		`SELECT board_id, column_id, position, locked FROM tasks WHERE id = ?`,
		taskID,
	).Scan(&boardID, &curColumn, &curPosition, &locked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	if locked != 0 {
		return nil, ErrTaskLocked
	}
	if curColumn != mv.OldColumnID || curPosition != mv.OldPosition {
		return nil, ErrStaleMove
	}

	var targetBoard string
	err = tx.QueryRowContext(ctx,
		`SELECT board_id FROM columns WHERE id = ?`, mv.ColumnID,
	).Scan(&targetBoard)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && targetBoard != boardID) {
		return nil, ErrColumnNotFound
	}
	if err != nil {
		return nil, err
	}

	// Close the gap in the source column.
	_, err = tx.ExecContext(ctx,
		`UPDATE tasks SET position = position - 1
		 WHERE column_id = ? AND position > ?`,
		curColumn, curPosition,
	)
	if err != nil {
		return nil, err
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE column_id = ? AND id != ?`,
		mv.ColumnID, taskID,
	).Scan(&count); err != nil {
		return nil, err
	}
	newPosition := clamp(mv.Position, 0, count)

	// Open a gap in the target column.
	_, err = tx.ExecContext(ctx,
		`UPDATE tasks SET position = position + 1
		 WHERE column_id = ? AND position >= ? AND id != ?`,
		mv.ColumnID, newPosition, taskID,
	)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`UPDATE tasks SET column_id = ?, position = ?, updated_at = ? WHERE id = ?`,
		mv.ColumnID, newPosition, now, taskID,
	)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO task_history (task_id, from_column_id, to_column_id,
		                           from_position, to_position, actor, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		taskID, curColumn, mv.ColumnID, curPosition, newPosition, actor, now,
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetTask(ctx, taskID)
}

// DeleteTask removes the task and closes the position gap it leaves behind.
func (s *Store) DeleteTask(ctx context.Context, taskID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var columnID string
	var position int
	err = tx.QueryRowContext(ctx,
		`SELECT column_id, position FROM tasks WHERE id = ?`, taskID,
	).Scan(&columnID, &position)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrTaskNotFound
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, taskID); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE tasks SET position = position - 1
		 WHERE column_id = ? AND position > ?`,
		columnID, position,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// TaskHistory returns the task's move history, oldest first.
func (s *Store) TaskHistory(ctx context.Context, taskID string) ([]domain.TaskHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task_id, from_column_id, to_column_id, from_position,
		        to_position, actor, created_at
		 FROM task_history WHERE task_id = ? ORDER BY id`,
		taskID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []domain.TaskHistoryEntry{}
	for rows.Next() {
		var e domain.TaskHistoryEntry
		if err := rows.Scan(&e.ID, &e.TaskID, &e.FromColumnID, &e.ToColumnID,
			&e.FromPosition, &e.ToPosition, &e.Actor, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (domain.Task, error) {
	var t domain.Task
	var due sql.NullTime
	var locked int
	err := row.Scan(&t.ID, &t.BoardID, &t.ColumnID, &t.Code, &t.Title, &t.Description,
		&t.Priority, &t.Status, &t.Position, &t.Assignee, &due, &locked,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.Task{}, err
	}
	if due.Valid {
		d := due.Time
		t.DueDate = &d
	}
	t.Locked = locked != 0
	return t, nil
}

func defaultCodePrefix(name string) string {
	cleaned := strings.Builder{}
	for _, r := range strings.ToUpper(name) {
		if r >= 'A' && r <= 'Z' {
			cleaned.WriteRune(r)
		}
		if cleaned.Len() == 3 {
			break
		}
	}
	if cleaned.Len() == 0 {
		return "BRD"
	}
	return cleaned.String()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

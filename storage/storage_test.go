package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"taskboard/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedBoard(t *testing.T, s *Store) *domain.Board {
	t.Helper()
	b := &domain.Board{
		Name:    "Sprint Board",
		OwnerID: "alice",
		Columns: []domain.Column{
			{Name: "Todo", Status: "todo"},
			{Name: "Doing", Status: "doing"},
			{Name: "Done", Status: "done"},
		},
	}
	if err := s.CreateBoard(context.Background(), b); err != nil {
		t.Fatalf("create board: %v", err)
	}
	return b
}

func seedTask(t *testing.T, s *Store, boardID, columnID, title string) *domain.Task {
	t.Helper()
	task, err := s.CreateTask(context.Background(), boardID, domain.TaskCreate{
		ColumnID: columnID,
		Title:    title,
	})
	if err != nil {
		t.Fatalf("create task %s: %v", title, err)
	}
	return task
}

func assertDense(t *testing.T, s *Store, boardID, columnID string, wantTitles []string) {
	t.Helper()
	b, err := s.GetBoard(context.Background(), boardID)
	if err != nil {
		t.Fatalf("get board: %v", err)
	}
	col := b.Column(columnID)
	if col == nil {
		t.Fatalf("column %s not found", columnID)
	}
	if len(col.Tasks) != len(wantTitles) {
		t.Fatalf("column %s has %d tasks, want %d", columnID, len(col.Tasks), len(wantTitles))
	}
	for i, task := range col.Tasks {
		if task.Position != i {
			t.Fatalf("column %s position %d = %d, not dense", columnID, i, task.Position)
		}
		if task.Title != wantTitles[i] {
			t.Fatalf("column %s[%d] = %q, want %q", columnID, i, task.Title, wantTitles[i])
		}
	}
}

func TestCreateBoardAssignsIDsAndMembership(t *testing.T) {
	s := openTestStore(t)
	b := seedBoard(t, s)

	if b.ID == "" {
		t.Fatal("board id not assigned")
	}
	if b.CodePrefix != "SPR" {
		t.Fatalf("code prefix = %q, want SPR", b.CodePrefix)
	}
	for i, col := range b.Columns {
		if col.ID == "" || col.Position != i {
			t.Fatalf("column %d = %+v", i, col)
		}
	}

	visible, err := s.BoardVisible(context.Background(), b.ID, "alice")
	if err != nil || !visible {
		t.Fatalf("owner not a member: visible=%v err=%v", visible, err)
	}
	visible, err = s.BoardVisible(context.Background(), b.ID, "mallory")
	if err != nil || visible {
		t.Fatalf("stranger sees the board: visible=%v err=%v", visible, err)
	}
}

func TestListBoardsByMembership(t *testing.T) {
	s := openTestStore(t)
	b := seedBoard(t, s)

	if err := s.AddBoardMember(context.Background(), b.ID, "bob"); err != nil {
		t.Fatalf("add member: %v", err)
	}

	boards, err := s.ListBoards(context.Background(), "bob")
	if err != nil {
		t.Fatalf("list boards: %v", err)
	}
	if len(boards) != 1 || boards[0].ID != b.ID {
		t.Fatalf("boards = %+v", boards)
	}

	boards, err = s.ListBoards(context.Background(), "mallory")
	if err != nil {
		t.Fatalf("list boards: %v", err)
	}
	if len(boards) != 0 {
		t.Fatalf("stranger sees %d boards", len(boards))
	}
}

func TestCreateTaskAppendsAndCodesSequence(t *testing.T) {
	s := openTestStore(t)
	b := seedBoard(t, s)
	todo := b.Columns[0].ID

	t1 := seedTask(t, s, b.ID, todo, "one")
	t2 := seedTask(t, s, b.ID, todo, "two")

	if t1.Position != 0 || t2.Position != 1 {
		t.Fatalf("positions = %d, %d", t1.Position, t2.Position)
	}
	if t1.Code != "SPR-1" || t2.Code != "SPR-2" {
		t.Fatalf("codes = %q, %q", t1.Code, t2.Code)
	}
	if t1.Priority != domain.PriorityMedium {
		t.Fatalf("default priority = %q", t1.Priority)
	}
	if t1.Status != "todo" {
		t.Fatalf("status = %q, want column status", t1.Status)
	}
}

func TestCreateTaskAtPositionShiftsSiblings(t *testing.T) {
	s := openTestStore(t)
	b := seedBoard(t, s)
	todo := b.Columns[0].ID

	seedTask(t, s, b.ID, todo, "one")
	seedTask(t, s, b.ID, todo, "two")

	pos := 1
	if _, err := s.CreateTask(context.Background(), b.ID, domain.TaskCreate{
		ColumnID: todo, Title: "between", Position: &pos,
	}); err != nil {
		t.Fatalf("create task: %v", err)
	}

	assertDense(t, s, b.ID, todo, []string{"one", "between", "two"})
}

func TestCreateTaskUnknownColumn(t *testing.T) {
	s := openTestStore(t)
	b := seedBoard(t, s)

	_, err := s.CreateTask(context.Background(), b.ID, domain.TaskCreate{ColumnID: "nope", Title: "x"})
	if !errors.Is(err, ErrColumnNotFound) {
		t.Fatalf("err = %v, want ErrColumnNotFound", err)
	}
}

func TestMoveTaskAcrossColumnsKeepsBothDense(t *testing.T) {
	s := openTestStore(t)
	b := seedBoard(t, s)
	todo, doing := b.Columns[0].ID, b.Columns[1].ID

	seedTask(t, s, b.ID, todo, "one")
	two := seedTask(t, s, b.ID, todo, "two")
	seedTask(t, s, b.ID, todo, "three")
	seedTask(t, s, b.ID, doing, "four")

	moved, err := s.MoveTask(context.Background(), two.ID, domain.MoveRequest{
		ColumnID: doing, Position: 0, OldColumnID: todo, OldPosition: 1,
	}, "alice")
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if moved.ColumnID != doing || moved.Position != 0 {
		t.Fatalf("moved = %+v", moved)
	}

	assertDense(t, s, b.ID, todo, []string{"one", "three"})
	assertDense(t, s, b.ID, doing, []string{"two", "four"})
}

func TestMoveTaskWithinColumn(t *testing.T) {
	s := openTestStore(t)
	b := seedBoard(t, s)
	todo := b.Columns[0].ID

	one := seedTask(t, s, b.ID, todo, "one")
	seedTask(t, s, b.ID, todo, "two")
	seedTask(t, s, b.ID, todo, "three")

	if _, err := s.MoveTask(context.Background(), one.ID, domain.MoveRequest{
		ColumnID: todo, Position: 2, OldColumnID: todo, OldPosition: 0,
	}, "alice"); err != nil {
		t.Fatalf("move: %v", err)
	}

	assertDense(t, s, b.ID, todo, []string{"two", "three", "one"})
}

func TestMoveTaskClampsPosition(t *testing.T) {
	s := openTestStore(t)
	b := seedBoard(t, s)
	todo, doing := b.Columns[0].ID, b.Columns[1].ID

	one := seedTask(t, s, b.ID, todo, "one")
	seedTask(t, s, b.ID, doing, "four")

	moved, err := s.MoveTask(context.Background(), one.ID, domain.MoveRequest{
		ColumnID: doing, Position: 50, OldColumnID: todo, OldPosition: 0,
	}, "alice")
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if moved.Position != 1 {
		t.Fatalf("position = %d, want clamped to 1", moved.Position)
	}
}

func TestMoveTaskStaleCoordinates(t *testing.T) {
	s := openTestStore(t)
	b := seedBoard(t, s)
	todo, doing := b.Columns[0].ID, b.Columns[1].ID

	one := seedTask(t, s, b.ID, todo, "one")

	_, err := s.MoveTask(context.Background(), one.ID, domain.MoveRequest{
		ColumnID: doing, Position: 0, OldColumnID: todo, OldPosition: 3,
	}, "alice")
	if !errors.Is(err, ErrStaleMove) {
		t.Fatalf("err = %v, want ErrStaleMove", err)
	}

	_, err = s.MoveTask(context.Background(), one.ID, domain.MoveRequest{
		ColumnID: doing, Position: 0, OldColumnID: doing, OldPosition: 0,
	}, "alice")
	if !errors.Is(err, ErrStaleMove) {
		t.Fatalf("err = %v, want ErrStaleMove", err)
	}

	// A stale move leaves the board untouched.
	assertDense(t, s, b.ID, todo, []string{"one"})
}

func TestMoveTaskLocked(t *testing.T) {
	s := openTestStore(t)
	b := seedBoard(t, s)
	todo, doing := b.Columns[0].ID, b.Columns[1].ID

	one := seedTask(t, s, b.ID, todo, "one")
	locked := true
	if _, err := s.UpdateTask(context.Background(), one.ID, domain.TaskUpdate{Locked: &locked}); err != nil {
		t.Fatalf("lock: %v", err)
	}

	_, err := s.MoveTask(context.Background(), one.ID, domain.MoveRequest{
		ColumnID: doing, Position: 0, OldColumnID: todo, OldPosition: 0,
	}, "alice")
	if !errors.Is(err, ErrTaskLocked) {
		t.Fatalf("err = %v, want ErrTaskLocked", err)
	}
}

func TestMoveTaskHistory(t *testing.T) {
	s := openTestStore(t)
	b := seedBoard(t, s)
	todo, doing, done := b.Columns[0].ID, b.Columns[1].ID, b.Columns[2].ID

	one := seedTask(t, s, b.ID, todo, "one")

	if _, err := s.MoveTask(context.Background(), one.ID, domain.MoveRequest{
		ColumnID: doing, Position: 0, OldColumnID: todo, OldPosition: 0,
	}, "alice"); err != nil {
		t.Fatalf("move 1: %v", err)
	}
	if _, err := s.MoveTask(context.Background(), one.ID, domain.MoveRequest{
		ColumnID: done, Position: 0, OldColumnID: doing, OldPosition: 0,
	}, "bob"); err != nil {
		t.Fatalf("move 2: %v", err)
	}

	entries, err := s.TaskHistory(context.Background(), one.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("history has %d entries, want 2", len(entries))
	}
	if entries[0].FromColumnID != todo || entries[0].ToColumnID != doing || entries[0].Actor != "alice" {
		t.Fatalf("entry 0 = %+v", entries[0])
	}
	if entries[1].FromColumnID != doing || entries[1].ToColumnID != done || entries[1].Actor != "bob" {
		t.Fatalf("entry 1 = %+v", entries[1])
	}
}

func TestMoveTaskUnknownTarget(t *testing.T) {
	s := openTestStore(t)
	b := seedBoard(t, s)
	todo := b.Columns[0].ID

	one := seedTask(t, s, b.ID, todo, "one")

	_, err := s.MoveTask(context.Background(), one.ID, domain.MoveRequest{
		ColumnID: "nope", Position: 0, OldColumnID: todo, OldPosition: 0,
	}, "alice")
	if !errors.Is(err, ErrColumnNotFound) {
		t.Fatalf("err = %v, want ErrColumnNotFound", err)
	}

	_, err = s.MoveTask(context.Background(), "nope", domain.MoveRequest{
		ColumnID: todo, Position: 0,
	}, "alice")
	if !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("err = %v, want ErrTaskNotFound", err)
	}
}

func TestUpdateTaskMergesFields(t *testing.T) {
	s := openTestStore(t)
	b := seedBoard(t, s)
	one := seedTask(t, s, b.ID, b.Columns[0].ID, "one")

	title := "renamed"
	pr := domain.PriorityCritical
	got, err := s.UpdateTask(context.Background(), one.ID, domain.TaskUpdate{Title: &title, Priority: &pr})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Title != "renamed" || got.Priority != domain.PriorityCritical {
		t.Fatalf("task = %+v", got)
	}
	// Untouched fields survive.
	if got.Code != one.Code || got.ColumnID != one.ColumnID {
		t.Fatalf("update clobbered fields: %+v", got)
	}

	reread, err := s.GetTask(context.Background(), one.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if reread.Title != "renamed" {
		t.Fatal("update not persisted")
	}
}

func TestDeleteTaskClosesGap(t *testing.T) {
	s := openTestStore(t)
	b := seedBoard(t, s)
	todo := b.Columns[0].ID

	seedTask(t, s, b.ID, todo, "one")
	two := seedTask(t, s, b.ID, todo, "two")
	seedTask(t, s, b.ID, todo, "three")

	if err := s.DeleteTask(context.Background(), two.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	assertDense(t, s, b.ID, todo, []string{"one", "three"})

	if err := s.DeleteTask(context.Background(), two.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("err = %v, want ErrTaskNotFound", err)
	}
}

func TestGetBoardNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetBoard(context.Background(), "nope"); !errors.Is(err, ErrBoardNotFound) {
		t.Fatalf("err = %v, want ErrBoardNotFound", err)
	}
}

func TestDefaultCodePrefix(t *testing.T) {
	cases := map[string]string{
		"Sprint Board": "SPR",
		"ab":           "AB",
		"123":          "BRD",
		"":             "BRD",
	}
	for name, want := range cases {
		if got := defaultCodePrefix(name); got != want {
			t.Errorf("defaultCodePrefix(%q) = %q, want %q", name, got, want)
		}
	}
}

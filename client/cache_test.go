package client

import (
	"testing"

	"taskboard/domain"
)

func testBoard() *domain.Board {
	return &domain.Board{
		ID:   "b1",
		Name: "Sprint",
		Columns: []domain.Column{
			{
				ID: "todo", BoardID: "b1", Name: "Todo", Position: 0,
				Tasks: []domain.Task{
					{ID: "t1", BoardID: "b1", ColumnID: "todo", Title: "one", Position: 0},
					{ID: "t2", BoardID: "b1", ColumnID: "todo", Title: "two", Position: 1},
					{ID: "t3", BoardID: "b1", ColumnID: "todo", Title: "three", Position: 2},
				},
			},
			{
				ID: "doing", BoardID: "b1", Name: "Doing", Position: 1,
				Tasks: []domain.Task{
					{ID: "t4", BoardID: "b1", ColumnID: "doing", Title: "four", Position: 0},
				},
			},
			{ID: "done", BoardID: "b1", Name: "Done", Position: 2},
		},
	}
}

func TestCacheSetAndGetBoard(t *testing.T) {
	c := NewCache()
	if c.Current() != nil {
		t.Fatal("expected no current board on empty cache")
	}
	b := testBoard()
	c.SetBoard(b)
	if got := c.Board("b1"); got != b {
		t.Fatalf("Board returned %v, want the stored board", got)
	}
	if got := c.Current(); got != b {
		t.Fatalf("Current returned %v, want the stored board", got)
	}
	if got := c.Board("missing"); got != nil {
		t.Fatalf("expected nil for unknown board, got %v", got)
	}
}

func TestCacheSetBoardReplacesWholesale(t *testing.T) {
	c := NewCache()
	c.SetBoard(testBoard())

	fresh := &domain.Board{ID: "b1", Name: "Renamed"}
	c.SetBoard(fresh)

	got := c.Board("b1")
	if got.Name != "Renamed" {
		t.Fatalf("name = %q, want %q", got.Name, "Renamed")
	}
	if len(got.Columns) != 0 {
		t.Fatalf("expected old columns gone, got %d", len(got.Columns))
	}
}

func TestCacheSetBoardNil(t *testing.T) {
	c := NewCache()
	c.SetBoard(nil)
	if c.Current() != nil {
		t.Fatal("nil board must not become current")
	}
}

func TestCacheUpdateBoard(t *testing.T) {
	c := NewCache()
	c.SetBoard(testBoard())

	name := "Renamed"
	c.UpdateBoard("b1", domain.BoardUpdate{Name: &name})
	if got := c.Board("b1").Name; got != "Renamed" {
		t.Fatalf("name = %q, want %q", got, "Renamed")
	}

	// Unknown board is a no-op, not a panic.
	c.UpdateBoard("nope", domain.BoardUpdate{Name: &name})
}

func TestCacheClearBoard(t *testing.T) {
	c := NewCache()
	c.SetBoard(testBoard())
	c.SetBoard(&domain.Board{ID: "b2"})

	c.ClearBoard("b1")
	if c.Board("b1") != nil {
		t.Fatal("b1 still cached after ClearBoard")
	}
	if cur := c.Current(); cur == nil || cur.ID != "b2" {
		t.Fatalf("current = %v, want b2", cur)
	}

	c.ClearBoard("b2")
	if c.Current() != nil {
		t.Fatal("current must unset when the current board is evicted")
	}
}

func TestCacheClearAll(t *testing.T) {
	c := NewCache()
	c.SetBoard(testBoard())
	c.SetBoard(&domain.Board{ID: "b2"})

	c.ClearAll()
	if c.Board("b1") != nil || c.Board("b2") != nil {
		t.Fatal("boards survived ClearAll")
	}
	if c.Current() != nil {
		t.Fatal("current survived ClearAll")
	}
}

package games

import (
	"errors"
	"strings"
	"testing"
)

func TestMovesAlternateTurns(t *testing.T) {
	g := NewTicTacToe()
	if g.Turn() != "X" {
		t.Fatalf("first turn = %q, want X", g.Turn())
	}
	if err := g.Move(5); err != nil {
		t.Fatalf("Move(5) failed: %v", err)
	}
	if g.Turn() != "O" {
		t.Errorf("second turn = %q, want O", g.Turn())
	}
}

func TestMoveRejections(t *testing.T) {
	g := NewTicTacToe()
	if err := g.Move(0); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Move(0) err = %v, want ErrOutOfRange", err)
	}
	if err := g.Move(10); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Move(10) err = %v, want ErrOutOfRange", err)
	}
	if err := g.Move(1); err != nil {
		t.Fatalf("Move(1) failed: %v", err)
	}
	if err := g.Move(1); !errors.Is(err, ErrCellTaken) {
		t.Errorf("repeat Move(1) err = %v, want ErrCellTaken", err)
	}
}

func TestRowWin(t *testing.T) {
	g := NewTicTacToe()
	// X: 1 2 3, O: 4 5.
	for _, cell := range []int{1, 4, 2, 5, 3} {
		if err := g.Move(cell); err != nil {
			t.Fatalf("Move(%d) failed: %v", cell, err)
		}
	}
	if g.Winner() != "X" {
		t.Errorf("Winner = %q, want X", g.Winner())
	}
	if !g.Finished() {
		t.Error("Finished = false after a win")
	}
	if err := g.Move(6); !errors.Is(err, ErrGameFinished) {
		t.Errorf("move after win err = %v, want ErrGameFinished", err)
	}
}

func TestDraw(t *testing.T) {
	g := NewTicTacToe()
	// X O X / X O O / O X X: full board, no line.
	for _, cell := range []int{1, 2, 3, 5, 4, 7, 8, 6, 9} {
		if err := g.Move(cell); err != nil {
			t.Fatalf("Move(%d) failed: %v", cell, err)
		}
	}
	if g.Winner() != "" {
		t.Fatalf("Winner = %q, want none", g.Winner())
	}
	if !g.Draw() {
		t.Error("Draw = false on a full drawn board")
	}
}

func TestRenderShowsMarksAndNumbers(t *testing.T) {
	g := NewTicTacToe()
	if err := g.Move(5); err != nil {
		t.Fatalf("Move(5) failed: %v", err)
	}
	out := g.Render()
	if !strings.Contains(out, "X") {
		t.Errorf("render missing X mark:\n%s", out)
	}
	if !strings.Contains(out, "9") {
		t.Errorf("render missing empty-cell number:\n%s", out)
	}
	if strings.Contains(out, "5") {
		t.Errorf("render still shows number for taken cell:\n%s", out)
	}
}

// Package games holds the board-game engines played through chat
// commands. Engines are plain state machines; session ownership and
// turn-taking identities live in the permissions state, not here.
package games

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrOutOfRange   = errors.New("cell out of range")
	ErrCellTaken    = errors.New("cell already taken")
	ErrGameFinished = errors.New("game already finished")
)

// TicTacToe is a two-player 3x3 board. Cells are numbered 1 through 9,
// left to right, top to bottom. Player X always moves first.
type TicTacToe struct {
	cells [9]byte // 0 = empty, otherwise 'X' or 'O'
	turn  byte
	moves int
}

func NewTicTacToe() *TicTacToe {
	return &TicTacToe{turn: 'X'}
}

// Turn returns the mark that moves next, "X" or "O".
func (g *TicTacToe) Turn() string { return string(g.turn) }

// Move places the current player's mark at cell (1-9) and advances the
// turn. The board refuses moves after a win or a draw.
func (g *TicTacToe) Move(cell int) error {
	if g.Finished() {
		return ErrGameFinished
	}
	if cell < 1 || cell > 9 {
		return fmt.Errorf("%w: %d", ErrOutOfRange, cell)
	}
	i := cell - 1
	if g.cells[i] != 0 {
		return fmt.Errorf("%w: %d", ErrCellTaken, cell)
	}
	g.cells[i] = g.turn
	g.moves++
	if g.turn == 'X' {
		g.turn = 'O'
	} else {
		g.turn = 'X'
	}
	return nil
}

var lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, // rows
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8}, // columns
	{0, 4, 8}, {2, 4, 6}, // diagonals
}

// Winner returns "X" or "O" once a line is complete, otherwise "".
func (g *TicTacToe) Winner() string {
	for _, l := range lines {
		a, b, c := g.cells[l[0]], g.cells[l[1]], g.cells[l[2]]
		if a != 0 && a == b && b == c {
			return string(a)
		}
	}
	return ""
}

// Draw reports a full board with no winner.
func (g *TicTacToe) Draw() bool {
	return g.moves == 9 && g.Winner() == ""
}

func (g *TicTacToe) Finished() bool {
	return g.moves == 9 || g.Winner() != ""
}

// Render draws the board with cell numbers in the empty slots, so a
// player can answer with the digit of the cell they want.
func (g *TicTacToe) Render() string {
	var b strings.Builder
	for row := 0; row < 3; row++ {
		if row > 0 {
			b.WriteString("\n---+---+---\n")
		}
		for col := 0; col < 3; col++ {
			if col > 0 {
				b.WriteByte('|')
			}
			i := row*3 + col
			mark := g.cells[i]
			if mark == 0 {
				mark = byte('1' + i)
			}
			fmt.Fprintf(&b, " %c ", mark)
		}
	}
	return b.String()
}

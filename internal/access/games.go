package access

import "strings"

// QuitMove ends any game regardless of type.
const QuitMove = "quit"

// GameTicTacToe is the built-in three-in-a-row game type.
const GameTicTacToe = "tictactoe"

// ValidMove reports whether text is a syntactically valid move for the
// given game type. It says nothing about whether the move is legal in the
// current game position; that is the game engine's job. Unknown game
// types reject every move.
func ValidMove(gameType, text string) bool {
	move := strings.ToLower(strings.TrimSpace(text))
	if move == "" {
		return false
	}
	switch gameType {
	case GameTicTacToe:
		if move == QuitMove {
			return true
		}
		return len(move) == 1 && move[0] >= '1' && move[0] <= '9'
	default:
		return false
	}
}

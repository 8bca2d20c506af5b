package access

import "testing"

func TestValidMove(t *testing.T) {
	tests := []struct {
		gameType string
		text     string
		want     bool
	}{
		{GameTicTacToe, "1", true},
		{GameTicTacToe, "9", true},
		{GameTicTacToe, " 5 ", true},
		{GameTicTacToe, "quit", true},
		{GameTicTacToe, "QUIT", true},
		{GameTicTacToe, "0", false},
		{GameTicTacToe, "10", false},
		{GameTicTacToe, "x", false},
		{GameTicTacToe, "", false},
		{"chess", "e4", false},
		{"", "1", false},
	}
	for _, tt := range tests {
		if got := ValidMove(tt.gameType, tt.text); got != tt.want {
			t.Errorf("ValidMove(%q, %q) = %v, want %v", tt.gameType, tt.text, got, tt.want)
		}
	}
}

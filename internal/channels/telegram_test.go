package channels

import "testing"

func TestAllowedSender(t *testing.T) {
	tests := []struct {
		name      string
		allowFrom []string
		id        int64
		username  string
		want      bool
	}{
		{"empty list forwards everyone", nil, 42, "anyone", true},
		{"numeric id match", []string{"42"}, 42, "", true},
		{"numeric id mismatch", []string{"42"}, 43, "", false},
		{"username match", []string{"alice"}, 7, "alice", true},
		{"username match ignores case", []string{"Alice"}, 7, "aLICE", true},
		{"leading @ tolerated", []string{"@alice"}, 7, "alice", true},
		{"empty username never matches entries", []string{"alice"}, 7, "", false},
		{"second entry matches", []string{"99", "bob"}, 7, "bob", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := allowedSender(tt.allowFrom, tt.id, tt.username); got != tt.want {
				t.Errorf("allowedSender(%v, %d, %q) = %v, want %v", tt.allowFrom, tt.id, tt.username, got, tt.want)
			}
		})
	}
}

package state

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestOwner(t *testing.T) {
	p := New()
	if p.Owner() != "" {
		t.Errorf("Owner() = %q for fresh state, want empty", p.Owner())
	}

	if err := p.SetOwner(" Boss:2@S.whatsapp.net "); err != nil {
		t.Fatalf("SetOwner() error: %v", err)
	}
	if got := p.Owner(); got != "boss@s.whatsapp.net" {
		t.Errorf("Owner() = %q, want normalized %q", got, "boss@s.whatsapp.net")
	}

	if err := p.SetOwner("  "); err == nil {
		t.Error("SetOwner(blank) succeeded, want error")
	}
}

func TestGrantRevoke(t *testing.T) {
	p := New()

	if err := p.Grant("user@x", "ping"); err != nil {
		t.Fatalf("Grant() error: %v", err)
	}
	if !p.HasGrant("user@x", "ping") {
		t.Error("HasGrant() = false after Grant")
	}
	if p.HasGrant("user@x", "other") {
		t.Error("HasGrant() = true for ungranted command")
	}
	if p.HasGrant("stranger@x", "ping") {
		t.Error("HasGrant() = true for unknown identity")
	}

	// Identity is normalized on both write and read.
	if !p.HasGrant(" USER@X ", "ping") {
		t.Error("HasGrant() = false for denormalized identity")
	}

	if !p.Revoke("user@x", "ping") {
		t.Error("Revoke() = false for existing grant")
	}
	if p.Revoke("user@x", "ping") {
		t.Error("Revoke() = true for already revoked grant")
	}
	if p.HasGrant("user@x", "ping") {
		t.Error("HasGrant() = true after Revoke")
	}
}

func TestWildcardGrant(t *testing.T) {
	p := New()
	if err := p.Grant("user@x", Wildcard); err != nil {
		t.Fatalf("Grant(*) error: %v", err)
	}
	if !p.HasGrant("user@x", "anything") {
		t.Error("HasGrant() = false with wildcard grant")
	}
}

func TestGrants(t *testing.T) {
	p := New()
	p.Grant("user@x", "ping")
	p.Grant("user@x", "echo")

	got := p.Grants("user@x")
	want := []string{"echo", "ping"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Grants() = %v, want %v", got, want)
	}
	if p.Grants("stranger@x") != nil {
		t.Error("Grants() != nil for unknown identity")
	}
}

func TestGames(t *testing.T) {
	p := New()

	if err := p.StartGame("room@g.us", "tictactoe", []string{"a@x", "B@X"}); err != nil {
		t.Fatalf("StartGame() error: %v", err)
	}
	if err := p.StartGame("room@g.us", "tictactoe", nil); err == nil {
		t.Error("StartGame() succeeded with a game already active")
	}

	gameType, ok := p.GameAt("ROOM@g.us")
	if !ok || gameType != "tictactoe" {
		t.Errorf("GameAt() = %q, %v; want tictactoe, true", gameType, ok)
	}

	if !p.IsGamePlayer("room@g.us", "b@x") {
		t.Error("IsGamePlayer() = false for registered player")
	}
	if p.IsGamePlayer("room@g.us", "c@x") {
		t.Error("IsGamePlayer() = true for stranger")
	}

	if !p.EndGame("room@g.us") {
		t.Error("EndGame() = false for active game")
	}
	if p.EndGame("room@g.us") {
		t.Error("EndGame() = true with no active game")
	}
	if _, ok := p.GameAt("room@g.us"); ok {
		t.Error("GameAt() = true after EndGame")
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "permissions.json")

	p := New()
	p.SetPersistPath(path)
	if err := p.SetOwner("boss@x"); err != nil {
		t.Fatalf("SetOwner() error: %v", err)
	}
	p.Grant("user@x", "ping")
	p.Grant("user@x", Wildcard)
	p.StartGame("room@g.us", "tictactoe", []string{"a@x"})

	restored := New()
	restored.SetPersistPath(path)
	if err := restored.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if restored.Owner() != "boss@x" {
		t.Errorf("restored Owner() = %q, want %q", restored.Owner(), "boss@x")
	}
	if !restored.HasGrant("user@x", "ping") || !restored.HasGrant("user@x", "whatever") {
		t.Error("restored grants incomplete")
	}
	if gameType, ok := restored.GameAt("room@g.us"); !ok || gameType != "tictactoe" {
		t.Error("restored game session missing")
	}
	if !restored.IsGamePlayer("room@g.us", "a@x") {
		t.Error("restored game players missing")
	}
}

func TestLoadMissingFile(t *testing.T) {
	p := New()
	p.SetPersistPath(filepath.Join(t.TempDir(), "nope.json"))
	if err := p.Load(); err != nil {
		t.Errorf("Load() with missing file error: %v", err)
	}
}

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Host.Prefix != "!" {
		t.Errorf("default prefix = %q, want %q", cfg.Host.Prefix, "!")
	}
	if cfg.Host.CooldownSweepSecs != 60 {
		t.Errorf("default sweep = %d, want 60", cfg.Host.CooldownSweepSecs)
	}
	if cfg.Channels.Telegram.Enabled {
		t.Error("telegram enabled by default")
	}
	if !cfg.Archive.Enabled {
		t.Error("archive disabled by default")
	}
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Host.Prefix != "!" {
		t.Errorf("prefix = %q, want default", cfg.Host.Prefix)
	}
}

func TestLoadConfigMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{"host": {"owner": "me@s.whatsapp.net", "prefix": "."}}`
	if err := os.WriteFile(path, []byte(raw), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Host.Owner != "me@s.whatsapp.net" {
		t.Errorf("owner = %q", cfg.Host.Owner)
	}
	if cfg.Host.Prefix != "." {
		t.Errorf("prefix = %q, want %q", cfg.Host.Prefix, ".")
	}
	// Untouched sections keep their defaults.
	if cfg.Archive.Path != "~/.pipebot/archive.db" {
		t.Errorf("archive path = %q, want default", cfg.Archive.Path)
	}
}

func TestLoadConfigRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("malformed config accepted")
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "config.json")
	cfg := DefaultConfig()
	cfg.Host.Owner = "owner@s.whatsapp.net"
	cfg.Channels.Telegram.Enabled = true
	cfg.Channels.Telegram.Token = "123:abc"

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat saved config: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config perm = %o, want 0600", perm)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Host.Owner != cfg.Host.Owner {
		t.Errorf("owner = %q, want %q", loaded.Host.Owner, cfg.Host.Owner)
	}
	if !loaded.Channels.Telegram.Enabled || loaded.Channels.Telegram.Token != "123:abc" {
		t.Errorf("telegram config lost: %+v", loaded.Channels.Telegram)
	}
}

func TestSavedConfigIsIndented(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := SaveConfig(DefaultConfig(), path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading config: %v", err)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("saved config is not valid JSON: %v", err)
	}
	if _, ok := decoded["host"]; !ok {
		t.Error("saved config missing host section")
	}
}

package config

import (
	"os"
	"path/filepath"
)

// Config represents the root configuration structure for pipebot.
type Config struct {
	Host      HostConfig      `json:"host"`
	Channels  ChannelsConfig  `json:"channels"`
	Archive   ArchiveConfig   `json:"archive"`
	Media     MediaConfig     `json:"media"`
	Scheduler SchedulerConfig `json:"scheduler"`
}

// HostConfig holds the core message-host settings.
type HostConfig struct {
	// Owner is the JID with unconditional access to every command.
	Owner string `json:"owner"`
	// Prefix marks command messages, e.g. "!" for "!ping".
	Prefix string `json:"prefix"`
	// StatePath is where permission state (owner, grants, games) persists.
	StatePath string `json:"statePath"`
	// CooldownSweepSecs is the interval for sweeping expired cooldowns.
	CooldownSweepSecs int `json:"cooldownSweepSecs"`
}

// ChannelsConfig holds all communication channel configurations.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

// TelegramConfig represents Telegram bot configuration.
type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	// AllowFrom limits which senders the channel forwards, matched
	// against the numeric user ID or username. Empty forwards everyone.
	AllowFrom []string `json:"allowFrom"`
}

// ArchiveConfig controls the inbound-event archive.
type ArchiveConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// MediaConfig controls attachment fetching.
type MediaConfig struct {
	Enabled bool   `json:"enabled"`
	Dir     string `json:"dir"`
}

// SchedulerConfig controls the timer-based task scheduler.
type SchedulerConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// DefaultConfig returns a new Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Host: HostConfig{
			Owner:             "",
			Prefix:            "!",
			StatePath:         "~/.pipebot/state.json",
			CooldownSweepSecs: 60,
		},
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{
				Enabled:   false,
				Token:     "",
				AllowFrom: []string{},
			},
		},
		Archive: ArchiveConfig{
			Enabled: true,
			Path:    "~/.pipebot/archive.db",
		},
		Media: MediaConfig{
			Enabled: true,
			Dir:     "~/.pipebot/media",
		},
		Scheduler: SchedulerConfig{
			Enabled: false,
			Path:    "~/.pipebot/tasks.json",
		},
	}
}

// StatePath returns the absolute path to the permission-state file,
// expanding ~ to the user's home directory.
func (c *Config) StatePath() string {
	path := c.Host.StatePath
	if path == "" {
		path = "~/.pipebot/state.json"
	}
	return expandPath(path)
}

// ArchivePath returns the absolute path to the archive database.
func (c *Config) ArchivePath() string {
	path := c.Archive.Path
	if path == "" {
		path = "~/.pipebot/archive.db"
	}
	return expandPath(path)
}

// MediaDir returns the absolute path to the media vault directory.
func (c *Config) MediaDir() string {
	dir := c.Media.Dir
	if dir == "" {
		dir = "~/.pipebot/media"
	}
	return expandPath(dir)
}

// SchedulerPath returns the absolute path to the scheduled-task file.
func (c *Config) SchedulerPath() string {
	path := c.Scheduler.Path
	if path == "" {
		path = "~/.pipebot/tasks.json"
	}
	return expandPath(path)
}

// expandPath expands ~ to the user's home directory and resolves the path.
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if len(path) == 1 {
			return home
		}
		if path[1] == '/' || path[1] == filepath.Separator {
			path = filepath.Join(home, path[2:])
		} else {
			path = filepath.Join(home, path[1:])
		}
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return absPath
}

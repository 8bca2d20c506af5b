// Package builtin registers the host's own commands: diagnostics,
// permission administration, and game session control.
package builtin

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/marhthing/pipebot/internal/access"
	"github.com/marhthing/pipebot/internal/command"
	"github.com/marhthing/pipebot/internal/scheduler"
	"github.com/marhthing/pipebot/internal/state"
	"github.com/marhthing/pipebot/internal/ttlstore"
)

// Deps carries everything the builtin handlers touch. Scheduler may be
// nil when the task scheduler is disabled; the remind command is then
// not registered.
type Deps struct {
	Registry   *command.Registry
	Dispatcher *command.Dispatcher
	State      *state.Permissions
	Cooldowns  *ttlstore.Store
	Scheduler  *scheduler.Scheduler
	StartedAt  time.Time
}

// Register installs all builtin commands. Called once at startup;
// returns the first registration failure.
func Register(deps Deps) error {
	specs := []command.Spec{
		{
			Name:        "ping",
			Category:    "general",
			Description: "Check that the host is alive",
			Cooldown:    3 * time.Second,
			Handler:     pingHandler(deps),
		},
		{
			Name:        "help",
			Aliases:     []string{"commands"},
			Category:    "general",
			Description: "List available commands",
			Handler:     helpHandler(deps),
		},
		{
			Name:        "allow",
			Aliases:     []string{"grant"},
			Category:    "admin",
			Description: "Allow an identity to use a command: allow <jid> <command|*>",
			SudoOnly:    true,
			Handler:     allowHandler(deps),
		},
		{
			Name:        "revoke",
			Aliases:     []string{"deny"},
			Category:    "admin",
			Description: "Revoke a previously granted command: revoke <jid> <command|*>",
			SudoOnly:    true,
			Handler:     revokeHandler(deps),
		},
		{
			Name:        "stats",
			Category:    "admin",
			Description: "Show dispatch counters and registry size",
			SudoOnly:    true,
			Handler:     statsHandler(deps),
		},
		{
			Name:        "game",
			Category:    "games",
			Description: "Manage a game in this chat: game start <player-jid>... | game end",
			SudoOnly:    true,
			Handler:     gameHandler(deps),
		},
	}
	if deps.Scheduler != nil {
		specs = append(specs, command.Spec{
			Name:        "remind",
			Aliases:     []string{"schedule"},
			Category:    "admin",
			Description: "Schedule messages: remind in <dur> <text> | remind every <dur> <text> | remind list | remind remove <id>",
			SudoOnly:    true,
			Handler:     remindHandler(deps),
		})
	}
	for _, spec := range specs {
		if _, err := deps.Registry.Register(spec); err != nil {
			return err
		}
	}
	return nil
}

func pingHandler(deps Deps) command.Handler {
	return func(ctx context.Context, inv *command.Invocation) error {
		latency := time.Since(inv.Event.Timestamp).Round(time.Millisecond)
		return inv.Responder.Reply(fmt.Sprintf("pong (%s)", latency))
	}
}

func helpHandler(deps Deps) command.Handler {
	return func(ctx context.Context, inv *command.Invocation) error {
		byCategory := make(map[string][]*command.Command)
		for _, cmd := range deps.Registry.Commands() {
			cat := cmd.Category()
			if cat == "" {
				cat = "other"
			}
			byCategory[cat] = append(byCategory[cat], cmd)
		}
		categories := make([]string, 0, len(byCategory))
		for cat := range byCategory {
			categories = append(categories, cat)
		}
		sort.Strings(categories)

		var b strings.Builder
		b.WriteString("Available commands:\n")
		for _, cat := range categories {
			fmt.Fprintf(&b, "\n%s:\n", cat)
			for _, cmd := range byCategory[cat] {
				fmt.Fprintf(&b, "  %s", cmd.Name())
				if aliases := cmd.Aliases(); len(aliases) > 0 {
					fmt.Fprintf(&b, " (%s)", strings.Join(aliases, ", "))
				}
				if desc := cmd.Description(); desc != "" {
					fmt.Fprintf(&b, " — %s", desc)
				}
				b.WriteByte('\n')
			}
		}
		return inv.Responder.Reply(b.String())
	}
}

func allowHandler(deps Deps) command.Handler {
	return func(ctx context.Context, inv *command.Invocation) error {
		if len(inv.Args) != 2 {
			return inv.Responder.Reply("Usage: allow <jid> <command|*>")
		}
		identity, name := inv.Args[0], strings.ToLower(inv.Args[1])
		if name != state.Wildcard {
			cmd, ok := deps.Registry.Lookup(name)
			if !ok {
				return inv.Responder.Reply(fmt.Sprintf("Unknown command %q.", name))
			}
			// Grants are stored under the canonical name so a grant
			// made by alias covers every name of the command.
			name = cmd.Name()
		}
		if err := deps.State.Grant(identity, name); err != nil {
			return inv.Responder.Reply(fmt.Sprintf("Cannot grant: %v", err))
		}
		return inv.Responder.Reply(fmt.Sprintf("Granted %q to %s.", name, identity))
	}
}

func revokeHandler(deps Deps) command.Handler {
	return func(ctx context.Context, inv *command.Invocation) error {
		if len(inv.Args) != 2 {
			return inv.Responder.Reply("Usage: revoke <jid> <command|*>")
		}
		identity, name := inv.Args[0], strings.ToLower(inv.Args[1])
		// Registered aliases resolve to the canonical name; unknown
		// names pass through so stale grants stay revocable.
		if cmd, ok := deps.Registry.Lookup(name); ok {
			name = cmd.Name()
		}
		if !deps.State.Revoke(identity, name) {
			return inv.Responder.Reply(fmt.Sprintf("%s had no grant for %q.", identity, name))
		}
		return inv.Responder.Reply(fmt.Sprintf("Revoked %q from %s.", name, identity))
	}
}

func statsHandler(deps Deps) command.Handler {
	return func(ctx context.Context, inv *command.Invocation) error {
		stats := deps.Dispatcher.Stats()
		uptime := time.Since(deps.StartedAt).Round(time.Second)
		return inv.Responder.Reply(fmt.Sprintf(
			"Uptime: %s\nCommands: %d registered\nDispatched: %d allowed, %d blocked, %d failed\nCooldowns active: %d",
			uptime, deps.Registry.Len(), stats.Allowed, stats.Blocked, stats.Failed, deps.Cooldowns.Len(),
		))
	}
}

func remindHandler(deps Deps) command.Handler {
	const usage = "Usage: remind in <duration> <text> | remind every <duration> <text> | remind list | remind remove <id>"
	return func(ctx context.Context, inv *command.Invocation) error {
		if len(inv.Args) == 0 {
			return inv.Responder.Reply(usage)
		}
		switch inv.Args[0] {
		case "in", "every":
			if len(inv.Args) < 3 {
				return inv.Responder.Reply(usage)
			}
			schedule := "@after " + inv.Args[1]
			if inv.Args[0] == "every" {
				schedule = "@every " + inv.Args[1]
			}
			text := strings.Join(inv.Args[2:], " ")
			id, err := deps.Scheduler.AddTask(schedule, text, inv.Event.Channel, inv.Event.Chat)
			if err != nil {
				return inv.Responder.Reply(fmt.Sprintf("Cannot schedule: %v", err))
			}
			return inv.Responder.Reply(fmt.Sprintf("Scheduled task %s (%s).", id, schedule))
		case "list":
			tasks := deps.Scheduler.ListTasks()
			if len(tasks) == 0 {
				return inv.Responder.Reply("No scheduled tasks.")
			}
			sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
			var b strings.Builder
			b.WriteString("Scheduled tasks:\n")
			for _, task := range tasks {
				fmt.Fprintf(&b, "  %s (%s): %s\n", task.ID, task.Schedule, task.Message)
			}
			return inv.Responder.Reply(b.String())
		case "remove":
			if len(inv.Args) != 2 {
				return inv.Responder.Reply(usage)
			}
			if err := deps.Scheduler.RemoveTask(inv.Args[1]); err != nil {
				return inv.Responder.Reply(fmt.Sprintf("Cannot remove: %v", err))
			}
			return inv.Responder.Reply(fmt.Sprintf("Removed task %s.", inv.Args[1]))
		default:
			return inv.Responder.Reply(usage)
		}
	}
}

func gameHandler(deps Deps) command.Handler {
	return func(ctx context.Context, inv *command.Invocation) error {
		chat := inv.Event.Chat
		if len(inv.Args) == 0 {
			return inv.Responder.Reply("Usage: game start <player-jid>... | game end")
		}
		switch inv.Args[0] {
		case "start":
			players := inv.Args[1:]
			if len(players) == 0 {
				return inv.Responder.Reply("Name at least one player JID.")
			}
			if err := deps.State.StartGame(chat, access.GameTicTacToe, players); err != nil {
				return inv.Responder.Reply(fmt.Sprintf("Cannot start game: %v", err))
			}
			return inv.Responder.Reply(fmt.Sprintf(
				"Tic-tac-toe started with %s. Players move by sending a cell number 1-9, or quit.",
				strings.Join(players, ", "),
			))
		case "end":
			if !deps.State.EndGame(chat) {
				return inv.Responder.Reply("No active game in this chat.")
			}
			return inv.Responder.Reply("Game ended.")
		default:
			return inv.Responder.Reply(fmt.Sprintf("Unknown subcommand %q.", inv.Args[0]))
		}
	}
}

// Package command holds the command registry and dispatcher: registered
// commands are resolved from inbound events, gated by the access
// resolver and cooldown store, and their handlers run with failures
// isolated from the rest of the host.
package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/marhthing/pipebot/internal/bus"
)

// Invocation carries everything a handler needs for one execution.
type Invocation struct {
	Event     *bus.InboundEvent
	Args      []string
	Responder bus.Responder
}

// Handler is the unit of work behind a command. Handlers that spawn
// asynchronous work must still report their outcome through the returned
// error so failure handling stays uniform.
type Handler func(ctx context.Context, inv *Invocation) error

// Spec describes a command to register. Name and Handler are required;
// everything else is optional.
type Spec struct {
	Name        string
	Aliases     []string
	Category    string
	Description string
	Cooldown    time.Duration
	SudoOnly    bool // only the owner may invoke
	GroupOnly   bool // only dispatchable from group chats
	PrivateOnly bool // only dispatchable from private chats
	AdminOnly   bool // sender must be a transport-verified chat admin, or the owner
	Handler     Handler
}

// Command is a validated, registered command. The registry stores one
// Command per spec and points every name and alias at it.
type Command struct {
	name        string
	aliases     []string
	category    string
	description string
	cooldown    time.Duration
	sudoOnly    bool
	groupOnly   bool
	privateOnly bool
	adminOnly   bool
	handler     Handler
}

func (c *Command) Name() string            { return c.name }
func (c *Command) Aliases() []string       { return c.aliases }
func (c *Command) Category() string        { return c.category }
func (c *Command) Description() string     { return c.description }
func (c *Command) Cooldown() time.Duration { return c.cooldown }
func (c *Command) SudoOnly() bool          { return c.sudoOnly }
func (c *Command) GroupOnly() bool         { return c.groupOnly }
func (c *Command) PrivateOnly() bool       { return c.privateOnly }
func (c *Command) AdminOnly() bool         { return c.adminOnly }

// RegistrationError is returned when a command spec is malformed or
// collides with an already-registered name.
type RegistrationError struct {
	Name   string
	Reason string
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("register command %q: %s", e.Name, e.Reason)
}

// HandlerError wraps a failure raised by a command handler. The user has
// already been shown a generic failure message by the time this
// surfaces; it exists for operator logging and alerting.
type HandlerError struct {
	Command string
	Err     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("command %q handler failed: %v", e.Command, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// newCommand validates a spec and builds the canonical command record.
// All names are lower-cased.
func newCommand(spec Spec) (*Command, error) {
	name := strings.ToLower(strings.TrimSpace(spec.Name))
	if name == "" {
		return nil, &RegistrationError{Name: spec.Name, Reason: "empty name"}
	}
	if spec.Handler == nil {
		return nil, &RegistrationError{Name: name, Reason: "nil handler"}
	}

	seen := map[string]bool{name: true}
	aliases := make([]string, 0, len(spec.Aliases))
	for _, raw := range spec.Aliases {
		alias := strings.ToLower(strings.TrimSpace(raw))
		if alias == "" {
			return nil, &RegistrationError{Name: name, Reason: "empty alias"}
		}
		if seen[alias] {
			return nil, &RegistrationError{Name: name, Reason: fmt.Sprintf("duplicate alias %q", alias)}
		}
		seen[alias] = true
		aliases = append(aliases, alias)
	}

	return &Command{
		name:        name,
		aliases:     aliases,
		category:    spec.Category,
		description: spec.Description,
		cooldown:    spec.Cooldown,
		sudoOnly:    spec.SudoOnly,
		groupOnly:   spec.GroupOnly,
		privateOnly: spec.PrivateOnly,
		adminOnly:   spec.AdminOnly,
		handler:     spec.Handler,
	}, nil
}

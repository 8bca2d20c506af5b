package command

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync/atomic"
	"time"

	"github.com/marhthing/pipebot/internal/access"
	"github.com/marhthing/pipebot/internal/bus"
	"github.com/marhthing/pipebot/internal/jid"
	"github.com/marhthing/pipebot/internal/ttlstore"
)

// Middleware runs before a handler. Returning false blocks the
// invocation; the middleware is responsible for any user-facing reply
// when it does.
type Middleware func(ctx context.Context, cmd *Command, inv *Invocation) bool

// Stats is a point-in-time snapshot of dispatcher counters. Blocked
// counts invocations stopped before the handler ran (denial, cooldown,
// gate, middleware); Failed counts handlers that ran and raised.
type Stats struct {
	Allowed uint64
	Blocked uint64
	Failed  uint64
}

// Dispatcher resolves inbound command requests against the registry,
// the access resolver and the per-sender cooldown store, then runs the
// handler with panics contained.
type Dispatcher struct {
	registry  *Registry
	state     access.State
	cooldowns *ttlstore.Store
	chain     []Middleware

	allowed atomic.Uint64
	blocked atomic.Uint64
	failed  atomic.Uint64
}

func NewDispatcher(registry *Registry, st access.State, cooldowns *ttlstore.Store) *Dispatcher {
	return &Dispatcher{registry: registry, state: st, cooldowns: cooldowns}
}

// Use appends middleware to the chain. Not safe to call once dispatching
// has started.
func (d *Dispatcher) Use(mw Middleware) {
	d.chain = append(d.chain, mw)
}

// Dispatch runs the named command for the event. The name is matched
// case-insensitively. It returns false when the name matches no
// registered command; in every other case the sender has received
// exactly one reply (result, denial, cooldown notice, or failure
// message) and the return reports what happened. A non-nil error is
// always a *HandlerError wrapping the handler's failure; access
// denials, chat-kind gates and cooldowns are not errors.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args []string, evt *bus.InboundEvent, rsp bus.Responder) (bool, error) {
	cmd, ok := d.registry.Lookup(name)
	if !ok {
		return false, nil
	}

	verdict := access.Resolve(access.Request{
		Sender:  evt.Sender,
		Chat:    evt.Chat,
		Text:    evt.Text,
		Command: cmd,
	}, d.state)
	if !verdict.Allowed {
		d.blocked.Add(1)
		d.reply(rsp, denialMessage(verdict.Reason))
		return true, nil
	}

	if cmd.groupOnly && !evt.IsGroup {
		d.blocked.Add(1)
		d.reply(rsp, fmt.Sprintf("Command %q only works in group chats.", cmd.name))
		return true, nil
	}
	if cmd.privateOnly && evt.IsGroup {
		d.blocked.Add(1)
		d.reply(rsp, fmt.Sprintf("Command %q only works in private chats.", cmd.name))
		return true, nil
	}
	// The owner passes the admin gate everywhere; everyone else needs
	// the transport to have vouched for their admin status.
	if cmd.adminOnly && verdict.Reason != access.ReasonOwner && !senderIsAdmin(evt) {
		d.blocked.Add(1)
		d.reply(rsp, fmt.Sprintf("Command %q is restricted to chat admins.", cmd.name))
		return true, nil
	}

	if remaining, ok := d.onCooldown(evt.Sender, cmd); ok {
		d.blocked.Add(1)
		d.reply(rsp, fmt.Sprintf("Command %q is on cooldown, try again in %ds.", cmd.name, remaining))
		return true, nil
	}

	inv := &Invocation{Event: evt, Args: args, Responder: rsp}
	for _, mw := range d.chain {
		if !mw(ctx, cmd, inv) {
			d.blocked.Add(1)
			return true, nil
		}
	}

	if err := d.run(ctx, cmd, inv); err != nil {
		d.failed.Add(1)
		d.reply(rsp, "Something went wrong running that command.")
		return true, &HandlerError{Command: cmd.name, Err: err}
	}

	d.allowed.Add(1)
	d.startCooldown(evt.Sender, cmd)
	return true, nil
}

// run invokes the handler, converting a panic into an ordinary error so
// one bad command cannot take the host down.
func (d *Dispatcher) run(ctx context.Context, cmd *Command, inv *Invocation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return cmd.handler(ctx, inv)
}

// onCooldown reports whether the sender is still inside the command's
// cooldown window, and if so how many whole seconds remain.
func (d *Dispatcher) onCooldown(sender string, cmd *Command) (int, bool) {
	if cmd.cooldown <= 0 || d.cooldowns == nil {
		return 0, false
	}
	v, ok := d.cooldowns.Get(cooldownKey(sender, cmd.name))
	if !ok {
		return 0, false
	}
	expiry, ok := v.(time.Time)
	if !ok {
		return 0, false
	}
	remaining := time.Until(expiry)
	if remaining <= 0 {
		return 0, false
	}
	return int(math.Ceil(remaining.Seconds())), true
}

func (d *Dispatcher) startCooldown(sender string, cmd *Command) {
	if cmd.cooldown <= 0 || d.cooldowns == nil {
		return
	}
	d.cooldowns.Set(cooldownKey(sender, cmd.name), time.Now().Add(cmd.cooldown), cmd.cooldown)
}

func (d *Dispatcher) reply(rsp bus.Responder, text string) {
	if rsp == nil {
		return
	}
	if err := rsp.Reply(text); err != nil {
		log.Printf("[dispatch] reply failed: %v", err)
	}
}

func (d *Dispatcher) Stats() Stats {
	return Stats{Allowed: d.allowed.Load(), Blocked: d.blocked.Load(), Failed: d.failed.Load()}
}

// senderIsAdmin reads the transport's admin attestation off the event.
func senderIsAdmin(evt *bus.InboundEvent) bool {
	v, ok := evt.Metadata[bus.MetaSenderIsAdmin].(bool)
	return ok && v
}

func cooldownKey(sender, name string) string {
	if normalized, err := jid.Normalize(sender); err == nil {
		sender = normalized
	}
	return "cooldown:" + sender + ":" + name
}

func denialMessage(reason access.Reason) string {
	switch reason {
	case access.ReasonInvalidIdentity:
		return "Could not identify you; command ignored."
	case access.ReasonOwnerOnly:
		return "That command is restricted to the owner."
	default:
		return "You are not allowed to use that command."
	}
}

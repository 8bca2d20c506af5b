// Package access decides whether a sender may act on an inbound event.
// Resolve is a pure function over its inputs so the permission rules can
// be tested in isolation from transports and storage.
package access

import "github.com/marhthing/pipebot/internal/jid"

// Reason explains an access verdict.
type Reason string

const (
	ReasonInvalidIdentity   Reason = "invalid_identity"
	ReasonOwner             Reason = "owner"
	ReasonOwnerOnly         Reason = "owner_only"
	ReasonExplicitlyAllowed Reason = "explicitly_allowed"
	ReasonGamePlayer        Reason = "game_player"
	ReasonDenied            Reason = "access_denied"
)

// Verdict is the result of an access decision.
type Verdict struct {
	Allowed bool
	Reason  Reason
}

// Command is the slice of a registered command the resolver needs.
type Command interface {
	Name() string
	SudoOnly() bool
}

// State is the read view of the mutable permission state the resolver
// consults. Implementations must return normalized identities.
type State interface {
	// Owner returns the normalized owner JID, or "" if unset.
	Owner() string
	// HasGrant reports whether identity has an explicit grant for the
	// named command, either directly or via the "*" wildcard.
	HasGrant(identity, command string) bool
	// GameAt returns the type of the active game in chat, if any.
	GameAt(chat string) (string, bool)
	// IsGamePlayer reports whether identity is a registered participant
	// of the active game in chat.
	IsGamePlayer(chat, identity string) bool
}

// Request carries the inputs of one access decision. Command is nil when
// the event carries no command.
type Request struct {
	Sender  string
	Chat    string
	Text    string
	Command Command
}

// Resolve applies the permission rules in order; the first matching rule
// wins:
//
//  1. senders whose identity cannot be normalized are rejected
//  2. the owner is always allowed
//  3. without a command, only the game-input rule below can allow
//  4. owner-only commands are rejected for everyone else
//  5. an explicit grant (or "*") allows the command
//  6. a registered participant of the chat's active game is allowed to
//     submit a syntactically valid move
//  7. everything else is denied
func Resolve(req Request, st State) Verdict {
	sender, err := jid.Normalize(req.Sender)
	if err != nil {
		return Verdict{Allowed: false, Reason: ReasonInvalidIdentity}
	}

	if owner := st.Owner(); owner != "" && sender == owner {
		return Verdict{Allowed: true, Reason: ReasonOwner}
	}

	if req.Command != nil {
		if req.Command.SudoOnly() {
			return Verdict{Allowed: false, Reason: ReasonOwnerOnly}
		}
		if st.HasGrant(sender, req.Command.Name()) {
			return Verdict{Allowed: true, Reason: ReasonExplicitlyAllowed}
		}
	}

	if chat, err := jid.Normalize(req.Chat); err == nil {
		if gameType, ok := st.GameAt(chat); ok &&
			st.IsGamePlayer(chat, sender) &&
			ValidMove(gameType, req.Text) {
			return Verdict{Allowed: true, Reason: ReasonGamePlayer}
		}
	}

	return Verdict{Allowed: false, Reason: ReasonDenied}
}

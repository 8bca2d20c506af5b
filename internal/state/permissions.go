// Package state holds the process-wide mutable permission state: the
// owner identity, per-identity command grants, and the active game
// registry. It is shared by overlapping pipeline runs, so every method
// is safe for concurrent use.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/marhthing/pipebot/internal/jid"
)

// Wildcard grants every command to an identity.
const Wildcard = "*"

// GameSession describes the active game in one chat.
type GameSession struct {
	Type      string    `json:"type"`
	Players   []string  `json:"players"` // normalized JIDs
	StartedAt time.Time `json:"startedAt"`
}

// Permissions is the mutable permission state. All identities are stored
// in normalized form; callers may pass raw transport identifiers.
type Permissions struct {
	mu     sync.RWMutex
	owner  string
	grants map[string]map[string]bool // identity -> command set
	games  map[string]*GameSession    // chat -> session

	persistPath string // "" disables persistence
}

// New creates empty permission state with no owner.
func New() *Permissions {
	return &Permissions{
		grants: make(map[string]map[string]bool),
		games:  make(map[string]*GameSession),
	}
}

// SetPersistPath enables JSON persistence at path. Each mutation saves
// the full state; Load restores it.
func (p *Permissions) SetPersistPath(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.persistPath = path
}

// SetOwner sets the owner identity.
func (p *Permissions) SetOwner(identity string) error {
	owner, err := jid.Normalize(identity)
	if err != nil {
		return fmt.Errorf("invalid owner identity %q: %w", identity, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.owner = owner
	return p.saveLocked()
}

// Owner returns the normalized owner JID, or "" when unset.
func (p *Permissions) Owner() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.owner
}

// Grant allows identity to use the named command. command may be the
// "*" wildcard.
func (p *Permissions) Grant(identity, command string) error {
	id, err := jid.Normalize(identity)
	if err != nil {
		return fmt.Errorf("invalid identity %q: %w", identity, err)
	}
	if command == "" {
		return fmt.Errorf("empty command name")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	set := p.grants[id]
	if set == nil {
		set = make(map[string]bool)
		p.grants[id] = set
	}
	set[command] = true
	return p.saveLocked()
}

// Revoke removes a grant and reports whether it existed. Revoking the
// last grant removes the identity entirely.
func (p *Permissions) Revoke(identity, command string) bool {
	id, err := jid.Normalize(identity)
	if err != nil {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	set, ok := p.grants[id]
	if !ok || !set[command] {
		return false
	}
	delete(set, command)
	if len(set) == 0 {
		delete(p.grants, id)
	}
	_ = p.saveLocked()
	return true
}

// HasGrant reports whether identity may use the named command, either
// directly or via the wildcard.
func (p *Permissions) HasGrant(identity, command string) bool {
	id, err := jid.Normalize(identity)
	if err != nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	set := p.grants[id]
	return set[command] || set[Wildcard]
}

// Grants returns the sorted command names granted to identity.
func (p *Permissions) Grants(identity string) []string {
	id, err := jid.Normalize(identity)
	if err != nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	set := p.grants[id]
	if len(set) == 0 {
		return nil
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StartGame registers an active game in chat with the given participants.
// It fails if a game is already running there or a participant identity
// is invalid.
func (p *Permissions) StartGame(chat, gameType string, players []string) error {
	c, err := jid.Normalize(chat)
	if err != nil {
		return fmt.Errorf("invalid chat %q: %w", chat, err)
	}
	if gameType == "" {
		return fmt.Errorf("empty game type")
	}
	normalized := make([]string, 0, len(players))
	for _, raw := range players {
		id, err := jid.Normalize(raw)
		if err != nil {
			return fmt.Errorf("invalid player %q: %w", raw, err)
		}
		normalized = append(normalized, id)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.games[c]; ok {
		return fmt.Errorf("a game is already active in %s", c)
	}
	p.games[c] = &GameSession{
		Type:      gameType,
		Players:   normalized,
		StartedAt: time.Now(),
	}
	return p.saveLocked()
}

// EndGame removes the active game in chat and reports whether one existed.
func (p *Permissions) EndGame(chat string) bool {
	c, err := jid.Normalize(chat)
	if err != nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.games[c]; !ok {
		return false
	}
	delete(p.games, c)
	_ = p.saveLocked()
	return true
}

// GameAt returns the type of the active game in chat, if any.
func (p *Permissions) GameAt(chat string) (string, bool) {
	c, err := jid.Normalize(chat)
	if err != nil {
		return "", false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	session, ok := p.games[c]
	if !ok {
		return "", false
	}
	return session.Type, true
}

// IsGamePlayer reports whether identity is a participant of the active
// game in chat.
func (p *Permissions) IsGamePlayer(chat, identity string) bool {
	c, err := jid.Normalize(chat)
	if err != nil {
		return false
	}
	id, err := jid.Normalize(identity)
	if err != nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	session, ok := p.games[c]
	if !ok {
		return false
	}
	for _, player := range session.Players {
		if player == id {
			return true
		}
	}
	return false
}

// --- persistence ---

type persistedState struct {
	Owner  string                  `json:"owner"`
	Grants map[string][]string     `json:"grants"`
	Games  map[string]*GameSession `json:"games"`
}

// saveLocked writes the full state to the persist path. Caller must hold
// the write lock. A missing path disables persistence.
func (p *Permissions) saveLocked() error {
	if p.persistPath == "" {
		return nil
	}

	out := persistedState{
		Owner:  p.owner,
		Grants: make(map[string][]string, len(p.grants)),
		Games:  p.games,
	}
	for id, set := range p.grants {
		names := make([]string, 0, len(set))
		for name := range set {
			names = append(names, name)
		}
		sort.Strings(names)
		out.Grants[id] = names
	}

	dir := filepath.Dir(p.persistPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p.persistPath, data, 0o600)
}

// Load restores state from the persist path. A missing file is not an
// error; the state simply starts empty.
func (p *Permissions) Load() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.persistPath == "" {
		return nil
	}

	data, err := os.ReadFile(p.persistPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var in persistedState
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("corrupt state file %s: %w", p.persistPath, err)
	}

	p.owner = in.Owner
	p.grants = make(map[string]map[string]bool, len(in.Grants))
	for id, names := range in.Grants {
		set := make(map[string]bool, len(names))
		for _, name := range names {
			set[name] = true
		}
		p.grants[id] = set
	}
	p.games = in.Games
	if p.games == nil {
		p.games = make(map[string]*GameSession)
	}
	return nil
}

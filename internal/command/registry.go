package command

import (
	"sort"
	"strings"
	"sync"
)

// Registry maps command names and aliases to registered commands. An
// alias is a second key pointing at the same *Command, so metadata
// edits and unregistration see one record regardless of which name the
// caller used.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]*Command
}

func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]*Command)}
}

// Register validates the spec and claims its name and every alias.
// Registration is atomic: if any key is already taken, nothing is
// registered.
func (r *Registry) Register(spec Spec) (*Command, error) {
	cmd, err := newCommand(spec)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	keys := append([]string{cmd.name}, cmd.aliases...)
	for _, key := range keys {
		if existing, ok := r.commands[key]; ok {
			return nil, &RegistrationError{
				Name:   cmd.name,
				Reason: "name " + key + " already registered to " + existing.name,
			}
		}
	}
	for _, key := range keys {
		r.commands[key] = cmd
	}
	return cmd, nil
}

// Lookup resolves a name or alias. Keys are stored lower-cased, so
// matching is case-insensitive.
func (r *Registry) Lookup(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[strings.ToLower(name)]
	return cmd, ok
}

// Unregister removes a command and all of its aliases in one step,
// whichever of its names was passed in, matched case-insensitively.
// Returns false if the name is unknown.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cmd, ok := r.commands[strings.ToLower(name)]
	if !ok {
		return false
	}
	delete(r.commands, cmd.name)
	for _, alias := range cmd.aliases {
		delete(r.commands, alias)
	}
	return true
}

// Commands returns the distinct registered commands sorted by name.
func (r *Registry) Commands() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[*Command]bool, len(r.commands))
	out := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		if seen[cmd] {
			continue
		}
		seen[cmd] = true
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Len counts distinct commands, not keys.
func (r *Registry) Len() int {
	return len(r.Commands())
}

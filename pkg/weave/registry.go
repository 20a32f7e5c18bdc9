package weave

import (
	"context"
	"sync"
)

// CommandHandler executes one inbound command invocation. Args arrive as the
// decoded positional arguments from the COMMAND frame. Returning an error
// (or panicking) produces an error RESPONSE for the caller; it never affects
// the session.
type CommandHandler func(ctx context.Context, args []any) (any, error)

// commandKey addresses one handler. A single composite key replaces the
// nested actor→command→handler maps the protocol implies.
type commandKey struct {
	actor   string
	command string
}

// CommandEntry is one locally registered command: the handler plus its
// declared parameter signature (ordered type names announced to the
// service). Signatures are declared explicitly at registration; nothing is
// inferred from the handler.
type CommandEntry struct {
	ActorName      string
	CommandName    string
	Handler        CommandHandler
	ParameterTypes []string
}

// Registry is the local command table. Entries persist across reconnects and
// are re-announced after each successful authentication as their actor.
type Registry struct {
	mu      sync.RWMutex
	entries map[commandKey]CommandEntry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[commandKey]CommandEntry)}
}

// Register stores entry unconditionally. The last registration for an
// (actor, command) pair wins. Whether the entry is announced to the service
// now or replayed later is the Session's decision.
func (r *Registry) Register(entry CommandEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[commandKey{actor: entry.ActorName, command: entry.CommandName}] = entry
}

// Lookup returns the handler entry for (actor, command).
func (r *Registry) Lookup(actor, command string) (CommandEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[commandKey{actor: actor, command: command}]
	return e, ok
}

// EntriesFor returns every entry registered for actor. Order is map order;
// announcement order across commands does not matter to the service.
func (r *Registry) EntriesFor(actor string) []CommandEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []CommandEntry
	for k, e := range r.entries {
		if k.actor == actor {
			out = append(out, e)
		}
	}
	return out
}

// Len reports the number of registered commands.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

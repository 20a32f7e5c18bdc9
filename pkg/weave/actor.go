package weave

import (
	"context"
	"encoding/json"
	"maps"
)

// ActorHandle addresses one named actor. A handle from Session.Actor is a
// pure caller (agent role); one from Session.JoinAsActor belongs to the
// actor itself and can register commands and update metadata.
type ActorHandle struct {
	session *Session
	name    string
}

// Name returns the actor's name.
func (a *ActorHandle) Name() string { return a.name }

// Run invokes a command on this actor.
func (a *ActorHandle) Run(ctx context.Context, commandName string, args ...any) (json.RawMessage, error) {
	return a.session.RunCommand(ctx, a.name, commandName, args...)
}

// RegisterCommand registers a handler under this actor's name. See
// Session.RegisterCommand for announcement semantics.
func (a *ActorHandle) RegisterCommand(commandName string, paramTypes []string, handler CommandHandler) error {
	return a.session.RegisterCommand(a.name, commandName, paramTypes, handler)
}

// UpdateMetadata shallow-merges updates into the actor's metadata bag. The
// merged bag is local until the next handshake carries it to the service;
// the service remains authoritative for what agents observe.
func (a *ActorHandle) UpdateMetadata(updates map[string]any) {
	s := a.session
	s.mu.Lock()
	defer s.mu.Unlock()
	merged := maps.Clone(s.metadata)
	if merged == nil {
		merged = make(map[string]any, len(updates))
	}
	maps.Copy(merged, updates)
	s.metadata = merged
}

package weave

import (
	"context"
	"testing"
)

func nopHandler(result any) CommandHandler {
	return func(ctx context.Context, args []any) (any, error) {
		return result, nil
	}
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	r.Register(CommandEntry{
		ActorName:      "npc",
		CommandName:    "wave",
		Handler:        nopHandler("hi"),
		ParameterTypes: []string{"string"},
	})

	e, ok := r.Lookup("npc", "wave")
	if !ok {
		t.Fatal("expected entry for npc.wave")
	}
	if len(e.ParameterTypes) != 1 || e.ParameterTypes[0] != "string" {
		t.Errorf("ParameterTypes = %v", e.ParameterTypes)
	}

	if _, ok := r.Lookup("npc", "dance"); ok {
		t.Error("unexpected entry for npc.dance")
	}
	if _, ok := r.Lookup("other", "wave"); ok {
		t.Error("unexpected entry for other.wave")
	}
}

func TestRegistryLastRegistrationWins(t *testing.T) {
	r := NewRegistry()
	r.Register(CommandEntry{ActorName: "npc", CommandName: "wave", Handler: nopHandler("old")})
	r.Register(CommandEntry{ActorName: "npc", CommandName: "wave", Handler: nopHandler("new"), ParameterTypes: []string{"int"}})

	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}
	e, _ := r.Lookup("npc", "wave")
	result, err := e.Handler(context.Background(), nil)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if result != "new" {
		t.Errorf("handler result = %v, want new", result)
	}
}

func TestRegistryEntriesFor(t *testing.T) {
	r := NewRegistry()
	r.Register(CommandEntry{ActorName: "npc", CommandName: "wave"})
	r.Register(CommandEntry{ActorName: "npc", CommandName: "dance"})
	r.Register(CommandEntry{ActorName: "guide", CommandName: "greet"})

	entries := r.EntriesFor("npc")
	if len(entries) != 2 {
		t.Fatalf("EntriesFor(npc) = %d entries, want 2", len(entries))
	}
	names := map[string]bool{}
	for _, e := range entries {
		if e.ActorName != "npc" {
			t.Errorf("entry for wrong actor: %s", e.ActorName)
		}
		names[e.CommandName] = true
	}
	if !names["wave"] || !names["dance"] {
		t.Errorf("commands = %v", names)
	}

	if got := r.EntriesFor("nobody"); len(got) != 0 {
		t.Errorf("EntriesFor(nobody) = %v", got)
	}
}

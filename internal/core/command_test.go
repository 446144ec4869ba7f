package core

import (
	"context"
	"strings"
	"testing"
)

func TestHandleUnknownCommand(t *testing.T) {
	st := newTestStore(t)
	engine := NewEngine(st, nopLogger())
	alice := registerUser(t, st, "alice", "17805550001")

	_, err := engine.Handle(context.Background(), Executor{User: alice, Phone: alice.PhoneNumber}, "/FROB something")
	fault := mustFault(t, err, FaultUnknownCommand)
	if !strings.Contains(fault.Message, "/HELP") {
		t.Fatalf("expected a /HELP hint, got %q", fault.Message)
	}
}

func TestHandleBadCommand(t *testing.T) {
	st := newTestStore(t)
	engine := NewEngine(st, nopLogger())
	alice := registerUser(t, st, "alice", "17805550001")

	// A sentinel with no following command word parses as nothing at all.
	_, err := engine.Handle(context.Background(), Executor{User: alice, Phone: alice.PhoneNumber}, "/")
	mustFault(t, err, FaultBadCommand)
}

func TestHandleInvalidArguments(t *testing.T) {
	st := newTestStore(t)
	engine := NewEngine(st, nopLogger())
	alice := registerUser(t, st, "alice", "17805550001")
	exec := Executor{User: alice, Phone: alice.PhoneNumber}

	tests := []struct {
		name string
		body string
	}{
		{"create with no name", "/CREATE"},
		{"create with trailing junk", "/CREATE Fishing trip"},
		{"invite missing preposition", "/INVITE bob Fishing"},
		{"kick with partial preposition", "/KICK bob out Fishing"},
		{"who with two names", "/WHO Fishing Hunting"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Handle(context.Background(), exec, tt.body)
			fault := mustFault(t, err, FaultInvalidArguments)
			if !strings.Contains(fault.Message, "use \"/") {
				t.Fatalf("expected usage string in fault, got %q", fault.Message)
			}
		})
	}
}

func TestHandleCommandNameCaseInsensitive(t *testing.T) {
	st := newTestStore(t)
	engine := NewEngine(st, nopLogger())
	alice := registerUser(t, st, "alice", "17805550001")
	exec := Executor{User: alice, Phone: alice.PhoneNumber}

	result, err := engine.Handle(context.Background(), exec, "/create Fishing")
	if err != nil {
		t.Fatalf("lowercase command failed: %v", err)
	}
	if !strings.Contains(result.Reply, "Fishing") {
		t.Fatalf("unexpected reply: %q", result.Reply)
	}
}

func TestHandleAnonymousExecution(t *testing.T) {
	st := newTestStore(t)
	engine := NewEngine(st, nopLogger())
	anon := Executor{Phone: "17805550009"}

	// Privileged commands are silently refused for unknown senders.
	if _, err := engine.Handle(context.Background(), anon, "/CREATE Fishing"); err != ErrAnonymousForbidden {
		t.Fatalf("expected ErrAnonymousForbidden, got %v", err)
	}

	// HELP and NICK are anonymously executable.
	if _, err := engine.Handle(context.Background(), anon, "/HELP"); err != nil {
		t.Fatalf("anonymous HELP failed: %v", err)
	}
	if _, err := engine.Handle(context.Background(), anon, "/NICK newbie"); err != nil {
		t.Fatalf("anonymous NICK failed: %v", err)
	}
}

func TestHelpListsCommandsAlphabetized(t *testing.T) {
	st := newTestStore(t)
	engine := NewEngine(st, nopLogger())

	result, err := engine.Handle(context.Background(), Executor{Phone: "17805550009"}, "/HELP")
	if err != nil {
		t.Fatalf("HELP failed: %v", err)
	}

	want := "CREATE, HELP, INVITE, JOIN, KICK, NICK, PART, WHO"
	if !strings.Contains(result.Reply, want) {
		t.Fatalf("expected alphabetized command list, got %q", result.Reply)
	}
}

func TestHelpSingleCommandUsage(t *testing.T) {
	st := newTestStore(t)
	engine := NewEngine(st, nopLogger())

	result, err := engine.Handle(context.Background(), Executor{Phone: "17805550009"}, "/HELP invite")
	if err != nil {
		t.Fatalf("HELP invite failed: %v", err)
	}
	if !strings.Contains(result.Reply, "/INVITE <user> to <conversation>") {
		t.Fatalf("expected INVITE usage, got %q", result.Reply)
	}

	_, err = engine.Handle(context.Background(), Executor{Phone: "17805550009"}, "/HELP frobnicate")
	mustFault(t, err, FaultUnknownCommand)
}

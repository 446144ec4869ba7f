package core

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/smirc/smircd/internal/store"
	"github.com/smirc/smircd/internal/store/sqlite"
)

// newTestStore opens an in-memory directory store with one served area
// code (1/780) so test phone numbers like 1780xxxxxxx pass validation.
func newTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	err = st.AddAreaCode(context.Background(), store.AreaCode{
		CountryCode: 1,
		AreaCode:    780,
		Region:      "Alberta",
		Country:     "CA",
	})
	if err != nil {
		t.Fatalf("seed area code: %v", err)
	}

	return st
}

func nopLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

func registerUser(t *testing.T, st store.Store, username, phone string) *store.User {
	t.Helper()

	user, err := st.CreateUser(context.Background(), username, phone)
	if err != nil {
		t.Fatalf("register user %s: %v", username, err)
	}
	return user
}

// member creates a conversation owned by owner and joins the other users
// as regular members.
func member(t *testing.T, st store.Store, name string, owner *store.User, others ...*store.User) *store.Conversation {
	t.Helper()

	conv, err := st.CreateConversation(context.Background(), name, owner.ID)
	if err != nil {
		t.Fatalf("create conversation %s: %v", name, err)
	}
	for _, u := range others {
		if _, err := st.AddMember(context.Background(), u.ID, conv.ID, false); err != nil {
			t.Fatalf("add member %s: %v", u.Username, err)
		}
	}
	return conv
}

// mustFault asserts that err is a domain fault with the given code.
func mustFault(t *testing.T, err error, code string) *Fault {
	t.Helper()

	fault := AsFault(err)
	if fault == nil {
		t.Fatalf("expected %s fault, got %v", code, err)
	}
	if fault.Code != code {
		t.Fatalf("expected %s fault, got %s (%s)", code, fault.Code, fault.Message)
	}
	return fault
}

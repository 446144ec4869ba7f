package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smirc/smircd/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestUserLookupCaseInsensitive(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	created, err := st.CreateUser(ctx, "Alice", "17805550001")
	require.NoError(t, err)
	assert.Equal(t, "Alice", created.Username)

	byName, err := st.GetUserByName(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)
	// Original casing is preserved.
	assert.Equal(t, "Alice", byName.Username)

	byPhone, err := st.GetUserByPhone(ctx, "17805550001")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byPhone.ID)

	_, err = st.GetUserByPhone(ctx, "17805550002")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUserUniqueness(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.CreateUser(ctx, "Alice", "17805550001")
	require.NoError(t, err)

	_, err = st.CreateUser(ctx, "ALICE", "17805550002")
	assert.Error(t, err, "nickname uniqueness is case-insensitive")

	_, err = st.CreateUser(ctx, "Bob", "17805550001")
	assert.Error(t, err, "phone numbers are unique")
}

func TestRenameUser(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	u, err := st.CreateUser(ctx, "Alice", "17805550001")
	require.NoError(t, err)

	require.NoError(t, st.RenameUser(ctx, u.ID, "Alicia"))

	renamed, err := st.GetUserByPhone(ctx, "17805550001")
	require.NoError(t, err)
	assert.Equal(t, "Alicia", renamed.Username)

	_, err = st.GetUserByName(ctx, "Alice")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateConversationMakesOwnerOperator(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	owner, err := st.CreateUser(ctx, "alice", "17805550001")
	require.NoError(t, err)

	conv, err := st.CreateConversation(ctx, "Fishing", owner.ID)
	require.NoError(t, err)

	m, err := st.GetMembership(ctx, owner.ID, "fishing")
	require.NoError(t, err)
	assert.True(t, m.Operator)
	assert.Equal(t, conv.ID, m.ConversationID)
	assert.Equal(t, "Fishing", m.ConversationName)
	assert.Equal(t, "alice", m.Username)
	assert.Equal(t, "17805550001", m.PhoneNumber)

	_, err = st.CreateConversation(ctx, "FISHING", owner.ID)
	assert.Error(t, err, "conversation names are unique case-insensitively")
}

func TestLatestMembershipOrdering(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	u, err := st.CreateUser(ctx, "alice", "17805550001")
	require.NoError(t, err)

	_, err = st.LatestMembership(ctx, u.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	first, err := st.CreateConversation(ctx, "First", u.ID)
	require.NoError(t, err)
	_, err = st.CreateConversation(ctx, "Second", u.ID)
	require.NoError(t, err)

	latest, err := st.LatestMembership(ctx, u.ID)
	require.NoError(t, err)
	// Equal timestamps resolve to the newest membership.
	assert.Equal(t, "Second", latest.ConversationName)

	m, err := st.GetMembership(ctx, u.ID, "First")
	require.NoError(t, err)
	touch := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, st.TouchMembership(ctx, m.ID, touch))

	latest, err = st.LatestMembership(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "First", latest.ConversationName)
	assert.Equal(t, first.ID, latest.ConversationID)
	assert.False(t, latest.LastActive.Before(touch))
}

func TestMembershipLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice, err := st.CreateUser(ctx, "alice", "17805550001")
	require.NoError(t, err)
	bob, err := st.CreateUser(ctx, "bob", "17805550002")
	require.NoError(t, err)
	conv, err := st.CreateConversation(ctx, "Fishing", alice.ID)
	require.NoError(t, err)

	m, err := st.AddMember(ctx, bob.ID, conv.ID, false)
	require.NoError(t, err)
	assert.False(t, m.Operator)

	_, err = st.AddMember(ctx, bob.ID, conv.ID, false)
	assert.Error(t, err, "one membership per (user, conversation)")

	members, err := st.ListMembers(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "alice", members[0].Username)
	assert.Equal(t, "bob", members[1].Username)

	removed, err := st.RemoveMember(ctx, bob.ID, conv.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = st.RemoveMember(ctx, bob.ID, conv.ID)
	require.NoError(t, err)
	assert.False(t, removed, "second removal reports nothing deleted")

	_, err = st.GetMembership(ctx, bob.ID, "Fishing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestInvitationLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice, err := st.CreateUser(ctx, "alice", "17805550001")
	require.NoError(t, err)
	bob, err := st.CreateUser(ctx, "bob", "17805550002")
	require.NoError(t, err)
	conv, err := st.CreateConversation(ctx, "Fishing", alice.ID)
	require.NoError(t, err)

	inv, err := st.CreateInvitation(ctx, alice.ID, bob.ID, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, inv.InviterID)

	_, err = st.CreateInvitation(ctx, alice.ID, bob.ID, conv.ID)
	assert.Error(t, err, "one pending invitation per (invitee, conversation)")

	got, err := st.GetInvitation(ctx, bob.ID, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, got.ID)

	deleted, err := st.DeleteInvitation(ctx, bob.ID, conv.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = st.DeleteInvitation(ctx, bob.ID, conv.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = st.GetInvitation(ctx, bob.ID, conv.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAreaCodes(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ok, err := st.AreaCodeExists(ctx, 1, 780)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.AddAreaCode(ctx, store.AreaCode{
		CountryCode: 1,
		AreaCode:    780,
		Region:      "Alberta",
		Country:     "CA",
	}))
	// Re-adding the same pair is an upsert, not an error.
	require.NoError(t, st.AddAreaCode(ctx, store.AreaCode{CountryCode: 1, AreaCode: 780}))

	ok, err = st.AreaCodeExists(ctx, 1, 780)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = st.AreaCodeExists(ctx, 1, 416)
	require.NoError(t, err)
	assert.False(t, ok)
}

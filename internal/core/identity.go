package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/smirc/smircd/internal/store"
)

var phonePattern = regexp.MustCompile(`^[0-9]+$`)

// Executor is the identity a command runs on behalf of: a registered user,
// or just the originating phone number when the sender is unknown.
type Executor struct {
	User  *store.User
	Phone string
}

// Known reports whether the executor is a registered user.
func (e Executor) Known() bool {
	return e.User != nil
}

// Name returns the executor's nickname, or the phone number for an
// anonymous executor.
func (e Executor) Name() string {
	if e.User != nil {
		return e.User.Username
	}
	return e.Phone
}

// Resolver maps user identifiers to registered users.
type Resolver struct {
	users store.UserStore
}

// NewResolver builds a Resolver over the given user store.
func NewResolver(users store.UserStore) *Resolver {
	return &Resolver{users: users}
}

// ResolveUser looks up a user by identifier: an all-digit identifier is
// treated as a phone number, anything else as a nickname (compared
// case-insensitively). Returns store.ErrNotFound when no user matches.
func (r *Resolver) ResolveUser(ctx context.Context, identifier string) (*store.User, error) {
	if identifier == "" {
		return nil, store.ErrNotFound
	}
	if phonePattern.MatchString(identifier) {
		user, err := r.users.GetUserByPhone(ctx, identifier)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, store.ErrNotFound
			}
			return nil, fmt.Errorf("resolve user by phone: %w", err)
		}
		return user, nil
	}
	user, err := r.users.GetUserByName(ctx, identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("resolve user by name: %w", err)
	}
	return user, nil
}

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// User is a registered conversant, identified by phone number and nickname.
// Nicknames are unique case-insensitively but stored with original casing.
type User struct {
	ID          int64
	Username    string
	PhoneNumber string
	CreatedAt   time.Time
}

// Conversation is a named group-chat channel.
type Conversation struct {
	ID        int64
	Name      string
	Topic     string
	CreatedAt time.Time
}

// Membership ties a user to a conversation. Operator members may invite
// and kick. LastActive orders a user's memberships to pick the default
// target for an unprefixed message.
type Membership struct {
	ID             int64
	UserID         int64
	ConversationID int64
	Operator       bool
	Voice          bool
	LastActive     time.Time

	// Denormalized from the joined rows for convenience.
	Username         string
	PhoneNumber      string
	ConversationName string
}

// Invitation is a pending, consumable offer of membership. It does not
// grant access by itself; only a Membership does.
type Invitation struct {
	ID             int64
	InviterID      int64
	InviteeID      int64
	ConversationID int64
	CreatedAt      time.Time
}

// AreaCode is one row of the service-area reference table. Messages from
// numbers whose prefix is not listed here are dropped without a reply.
type AreaCode struct {
	CountryCode int
	AreaCode    int
	Region      string
	Country     string
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser registers a user with the given nickname and phone number.
	CreateUser(ctx context.Context, username, phoneNumber string) (*User, error)

	// GetUserByPhone retrieves a user by exact phone number.
	GetUserByPhone(ctx context.Context, phoneNumber string) (*User, error)

	// GetUserByName retrieves a user by nickname, compared case-insensitively.
	GetUserByName(ctx context.Context, username string) (*User, error)

	// RenameUser changes a user's nickname.
	RenameUser(ctx context.Context, userID int64, username string) error
}

// ConversationStore handles conversation and membership persistence.
type ConversationStore interface {
	// CreateConversation creates a conversation and makes ownerID an
	// operator member in one transaction.
	CreateConversation(ctx context.Context, name string, ownerID int64) (*Conversation, error)

	// GetConversationByName retrieves a conversation by name, compared
	// case-insensitively.
	GetConversationByName(ctx context.Context, name string) (*Conversation, error)

	// AddMember creates a membership for the (user, conversation) pair.
	AddMember(ctx context.Context, userID, conversationID int64, operator bool) (*Membership, error)

	// GetMembership retrieves the executor's membership in the named
	// conversation, name compared case-insensitively.
	GetMembership(ctx context.Context, userID int64, conversationName string) (*Membership, error)

	// LatestMembership returns the user's membership with the most recent
	// last_active timestamp, or ErrNotFound if the user has none.
	LatestMembership(ctx context.Context, userID int64) (*Membership, error)

	// ListMembers lists all memberships of a conversation, oldest first.
	ListMembers(ctx context.Context, conversationID int64) ([]*Membership, error)

	// RemoveMember deletes the membership for the (user, conversation)
	// pair. Returns false when no such membership existed.
	RemoveMember(ctx context.Context, userID, conversationID int64) (bool, error)

	// TouchMembership updates a membership's last_active timestamp.
	TouchMembership(ctx context.Context, membershipID int64, at time.Time) error
}

// InvitationStore handles invitation persistence.
type InvitationStore interface {
	// CreateInvitation records a pending invitation.
	CreateInvitation(ctx context.Context, inviterID, inviteeID, conversationID int64) (*Invitation, error)

	// GetInvitation retrieves the pending invitation for (invitee, conversation).
	GetInvitation(ctx context.Context, inviteeID, conversationID int64) (*Invitation, error)

	// DeleteInvitation removes the invitation for (invitee, conversation).
	// Returns false when none existed.
	DeleteInvitation(ctx context.Context, inviteeID, conversationID int64) (bool, error)
}

// AreaCodeStore handles the service-area reference table.
type AreaCodeStore interface {
	// AddAreaCode inserts or replaces one service-area row.
	AddAreaCode(ctx context.Context, ac AreaCode) error

	// AreaCodeExists reports whether the (country, area) pair is served.
	AreaCodeExists(ctx context.Context, countryCode, areaCode int) (bool, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	ConversationStore
	InvitationStore
	AreaCodeStore

	// Close closes the underlying database connection.
	Close() error
}

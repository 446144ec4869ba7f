package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/smirc/smircd/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens (and if necessary creates) the SQLite database at dbPath and
// applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser registers a user with the given nickname and phone number.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, phoneNumber string) (*store.User, error) {
	query := `
		INSERT INTO users (username, phone_number)
		VALUES (?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, username, phoneNumber)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.getUserBy(ctx, "id = ?", id)
}

// GetUserByPhone retrieves a user by exact phone number.
func (s *SQLiteStore) GetUserByPhone(ctx context.Context, phoneNumber string) (*store.User, error) {
	return s.getUserBy(ctx, "phone_number = ?", phoneNumber)
}

// GetUserByName retrieves a user by nickname, compared case-insensitively.
func (s *SQLiteStore) GetUserByName(ctx context.Context, username string) (*store.User, error) {
	return s.getUserBy(ctx, "username = ? COLLATE NOCASE", username)
}

func (s *SQLiteStore) getUserBy(ctx context.Context, where string, arg any) (*store.User, error) {
	query := `
		SELECT id, username, phone_number, created_at
		FROM users
		WHERE ` + where
	var user store.User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.PhoneNumber,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// RenameUser changes a user's nickname.
func (s *SQLiteStore) RenameUser(ctx context.Context, userID int64, username string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET username = ? WHERE id = ?`, username, userID)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ==== ConversationStore implementation ====

// CreateConversation creates a conversation and makes ownerID an operator
// member in one transaction.
func (s *SQLiteStore) CreateConversation(ctx context.Context, name string, ownerID int64) (*store.Conversation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `INSERT INTO conversations (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	conversationID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	memberQuery := `
		INSERT INTO memberships (user_id, conversation_id, operator)
		VALUES (?, ?, 1)
	`
	if _, err := tx.ExecContext(ctx, memberQuery, ownerID, conversationID); err != nil {
		return nil, fmt.Errorf("insert owner membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return s.getConversationBy(ctx, "id = ?", conversationID)
}

// GetConversationByName retrieves a conversation by name, compared
// case-insensitively.
func (s *SQLiteStore) GetConversationByName(ctx context.Context, name string) (*store.Conversation, error) {
	return s.getConversationBy(ctx, "name = ? COLLATE NOCASE", name)
}

func (s *SQLiteStore) getConversationBy(ctx context.Context, where string, arg any) (*store.Conversation, error) {
	query := `
		SELECT id, name, topic, created_at
		FROM conversations
		WHERE ` + where
	var conv store.Conversation
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&conv.ID,
		&conv.Name,
		&conv.Topic,
		&conv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query conversation: %w", err)
	}

	return &conv, nil
}

const membershipColumns = `
	m.id, m.user_id, m.conversation_id, m.operator, m.voice, m.last_active,
	u.username, u.phone_number, c.name
`

const membershipJoin = `
	FROM memberships m
	JOIN users u ON u.id = m.user_id
	JOIN conversations c ON c.id = m.conversation_id
`

func scanMembership(row *sql.Row) (*store.Membership, error) {
	var m store.Membership
	err := row.Scan(
		&m.ID,
		&m.UserID,
		&m.ConversationID,
		&m.Operator,
		&m.Voice,
		&m.LastActive,
		&m.Username,
		&m.PhoneNumber,
		&m.ConversationName,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query membership: %w", err)
	}
	return &m, nil
}

// AddMember creates a membership for the (user, conversation) pair.
func (s *SQLiteStore) AddMember(ctx context.Context, userID, conversationID int64, operator bool) (*store.Membership, error) {
	query := `
		INSERT INTO memberships (user_id, conversation_id, operator)
		VALUES (?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, userID, conversationID, operator)
	if err != nil {
		return nil, fmt.Errorf("insert membership: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+membershipColumns+membershipJoin+` WHERE m.id = ?`, id)
	return scanMembership(row)
}

// GetMembership retrieves the user's membership in the named conversation.
func (s *SQLiteStore) GetMembership(ctx context.Context, userID int64, conversationName string) (*store.Membership, error) {
	query := `SELECT ` + membershipColumns + membershipJoin + `
		WHERE m.user_id = ? AND c.name = ? COLLATE NOCASE`
	row := s.db.QueryRowContext(ctx, query, userID, conversationName)
	return scanMembership(row)
}

// LatestMembership returns the user's most recently active membership.
func (s *SQLiteStore) LatestMembership(ctx context.Context, userID int64) (*store.Membership, error) {
	query := `SELECT ` + membershipColumns + membershipJoin + `
		WHERE m.user_id = ?
		ORDER BY m.last_active DESC, m.id DESC
		LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, userID)
	return scanMembership(row)
}

// ListMembers lists all memberships of a conversation, oldest first.
func (s *SQLiteStore) ListMembers(ctx context.Context, conversationID int64) ([]*store.Membership, error) {
	query := `SELECT ` + membershipColumns + membershipJoin + `
		WHERE m.conversation_id = ?
		ORDER BY m.id ASC`
	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []*store.Membership
	for rows.Next() {
		var m store.Membership
		if err := rows.Scan(
			&m.ID,
			&m.UserID,
			&m.ConversationID,
			&m.Operator,
			&m.Voice,
			&m.LastActive,
			&m.Username,
			&m.PhoneNumber,
			&m.ConversationName,
		); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		members = append(members, &m)
	}

	return members, rows.Err()
}

// RemoveMember deletes the membership for the (user, conversation) pair.
func (s *SQLiteStore) RemoveMember(ctx context.Context, userID, conversationID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM memberships WHERE user_id = ? AND conversation_id = ?`,
		userID, conversationID)
	if err != nil {
		return false, fmt.Errorf("delete membership: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rows > 0, nil
}

// TouchMembership updates a membership's last_active timestamp.
func (s *SQLiteStore) TouchMembership(ctx context.Context, membershipID int64, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE memberships SET last_active = ? WHERE id = ?`,
		at.UTC(), membershipID)
	if err != nil {
		return fmt.Errorf("update membership: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ==== InvitationStore implementation ====

// CreateInvitation records a pending invitation.
func (s *SQLiteStore) CreateInvitation(ctx context.Context, inviterID, inviteeID, conversationID int64) (*store.Invitation, error) {
	query := `
		INSERT INTO invitations (inviter_id, invitee_id, conversation_id)
		VALUES (?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, inviterID, inviteeID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("insert invitation: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.getInvitationBy(ctx, "id = ?", id)
}

// GetInvitation retrieves the pending invitation for (invitee, conversation).
func (s *SQLiteStore) GetInvitation(ctx context.Context, inviteeID, conversationID int64) (*store.Invitation, error) {
	return s.getInvitationBy(ctx, "invitee_id = ? AND conversation_id = ?", inviteeID, conversationID)
}

func (s *SQLiteStore) getInvitationBy(ctx context.Context, where string, args ...any) (*store.Invitation, error) {
	query := `
		SELECT id, inviter_id, invitee_id, conversation_id, created_at
		FROM invitations
		WHERE ` + where
	var inv store.Invitation
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&inv.ID,
		&inv.InviterID,
		&inv.InviteeID,
		&inv.ConversationID,
		&inv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query invitation: %w", err)
	}
	return &inv, nil
}

// DeleteInvitation removes the invitation for (invitee, conversation).
func (s *SQLiteStore) DeleteInvitation(ctx context.Context, inviteeID, conversationID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM invitations WHERE invitee_id = ? AND conversation_id = ?`,
		inviteeID, conversationID)
	if err != nil {
		return false, fmt.Errorf("delete invitation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rows > 0, nil
}

// ==== AreaCodeStore implementation ====

// AddAreaCode inserts or replaces one service-area row.
func (s *SQLiteStore) AddAreaCode(ctx context.Context, ac store.AreaCode) error {
	query := `
		INSERT OR REPLACE INTO area_codes (country_code, area_code, region, country)
		VALUES (?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, ac.CountryCode, ac.AreaCode, ac.Region, ac.Country); err != nil {
		return fmt.Errorf("insert area code: %w", err)
	}
	return nil
}

// AreaCodeExists reports whether the (country, area) pair is served.
func (s *SQLiteStore) AreaCodeExists(ctx context.Context, countryCode, areaCode int) (bool, error) {
	query := `SELECT 1 FROM area_codes WHERE country_code = ? AND area_code = ?`
	var exists int
	err := s.db.QueryRowContext(ctx, query, countryCode, areaCode).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query area code: %w", err)
	}
	return true, nil
}

// Ensure SQLiteStore implements store.Store
var _ store.Store = (*SQLiteStore)(nil)

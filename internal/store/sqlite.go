package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/AlvinLimo/GrowFrika/internal/errs"
)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database. Schema migrations are applied separately
// (internal/migrate) before the store is constructed.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	// Cascade deletes from conversations to messages depend on this.
	if _, err = db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

// User methods

const userColumns = `user_id, username, email, password_hash, google_id, is_google_user,
	has_password, is_verified, verification_token, profile_picture, created_at, updated_at`

func (s *SQLiteStore) scanUser(row *sql.Row) (*User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.GoogleID, &user.IsGoogleUser, &user.HasPassword, &user.IsVerified,
		&user.VerificationToken, &user.ProfilePicture, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &user, nil
}

func (s *SQLiteStore) CreateUser(user *User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := s.db.Exec(`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.Email, user.PasswordHash, user.GoogleID,
		user.IsGoogleUser, user.HasPassword, user.IsVerified, user.VerificationToken,
		user.ProfilePicture, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetUserByID(userID string) (*User, error) {
	return s.scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE user_id = ?`, userID))
}

// GetUserByLogin resolves the login identifier, which may be an email or a username.
func (s *SQLiteStore) GetUserByLogin(identifier string) (*User, error) {
	return s.scanUser(s.db.QueryRow(
		`SELECT `+userColumns+` FROM users WHERE email = ? OR username = ?`, identifier, identifier))
}

func (s *SQLiteStore) GetUserByEmail(email string) (*User, error) {
	return s.scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

func (s *SQLiteStore) GetUserByGoogleID(googleID string) (*User, error) {
	return s.scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE google_id = ?`, googleID))
}

func (s *SQLiteStore) UpdateUser(user *User) error {
	user.UpdatedAt = time.Now().UTC()
	res, err := s.db.Exec(`UPDATE users SET username = ?, email = ?, password_hash = ?,
		google_id = ?, is_google_user = ?, has_password = ?, is_verified = ?,
		verification_token = ?, profile_picture = ?, updated_at = ?
		WHERE user_id = ?`,
		user.Username, user.Email, user.PasswordHash, user.GoogleID,
		user.IsGoogleUser, user.HasPassword, user.IsVerified, user.VerificationToken,
		user.ProfilePicture, user.UpdatedAt, user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.ErrAlreadyExists
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// UsernameTaken reports whether another user already holds the username.
func (s *SQLiteStore) UsernameTaken(username, excludeUserID string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users WHERE username = ? AND user_id != ?`,
		username, excludeUserID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return n > 0, nil
}

// EmailTaken reports whether another user already holds the email.
func (s *SQLiteStore) EmailTaken(email, excludeUserID string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users WHERE email = ? AND user_id != ?`,
		email, excludeUserID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return n > 0, nil
}

// Conversation methods

const convoColumns = `convo_id, user_id, title, category, last_message_at, is_archived, created_at, updated_at`

func scanConversation(scan func(dest ...any) error) (*Conversation, error) {
	var convo Conversation
	var category sql.NullString
	err := scan(&convo.ID, &convo.UserID, &convo.Title, &category,
		&convo.LastMessageAt, &convo.IsArchived, &convo.CreatedAt, &convo.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if category.Valid {
		convo.Category = &category.String
	}
	return &convo, nil
}

func (s *SQLiteStore) CreateConversation(userID, title string) (*Conversation, error) {
	convo := &Conversation{
		ID:     uuid.NewString(),
		UserID: userID,
		Title:  title,
	}
	now := time.Now().UTC()
	convo.LastMessageAt = now
	convo.CreatedAt = now
	convo.UpdatedAt = now

	_, err := s.db.Exec(`INSERT INTO conversations (`+convoColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		convo.ID, convo.UserID, convo.Title, convo.Category,
		convo.LastMessageAt, convo.IsArchived, convo.CreatedAt, convo.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert conversation: %w", err)
	}
	return convo, nil
}

// GetConversation loads a conversation scoped to its owner. A conversation
// owned by someone else is indistinguishable from a missing one.
func (s *SQLiteStore) GetConversation(convoID, userID string) (*Conversation, error) {
	row := s.db.QueryRow(`SELECT `+convoColumns+` FROM conversations WHERE convo_id = ? AND user_id = ?`,
		convoID, userID)
	convo, err := scanConversation(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return convo, nil
}

// ListConversations returns the user's non-archived conversations ordered by
// most recent activity, each with its newest message as a preview, plus the
// total count for pagination.
func (s *SQLiteStore) ListConversations(userID string, limit, offset int) ([]Conversation, int, error) {
	var total int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM conversations WHERE user_id = ? AND is_archived = FALSE`,
		userID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count conversations: %w", err)
	}

	rows, err := s.db.Query(`SELECT `+convoColumns+` FROM conversations
		WHERE user_id = ? AND is_archived = FALSE
		ORDER BY last_message_at DESC, created_at DESC, convo_id
		LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var convos []Conversation
	for rows.Next() {
		convo, err := scanConversation(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		convos = append(convos, *convo)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate conversations: %w", err)
	}

	for i := range convos {
		latest, err := s.GetLastNMessages(convos[i].ID, 1)
		if err != nil {
			return nil, 0, err
		}
		if len(latest) > 0 {
			convos[i].LastMessage = &latest[0]
		}
	}
	return convos, total, nil
}

func (s *SQLiteStore) ArchiveConversation(convoID, userID string) error {
	res, err := s.db.Exec(`UPDATE conversations SET is_archived = TRUE, updated_at = ?
		WHERE convo_id = ? AND user_id = ?`, time.Now().UTC(), convoID, userID)
	if err != nil {
		return fmt.Errorf("failed to archive conversation: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// DeleteConversation removes the conversation; its messages go with it via
// the ON DELETE CASCADE constraint.
func (s *SQLiteStore) DeleteConversation(convoID, userID string) error {
	res, err := s.db.Exec(`DELETE FROM conversations WHERE convo_id = ? AND user_id = ?`,
		convoID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// TouchConversation advances last_message_at after a new message.
func (s *SQLiteStore) TouchConversation(convoID string, at time.Time) error {
	_, err := s.db.Exec(`UPDATE conversations SET last_message_at = ?, updated_at = ?
		WHERE convo_id = ? AND last_message_at <= ?`, at, at, convoID, at)
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	return nil
}

// Message methods

const messageColumns = `message_id, convo_id, role, content, image_urls, metadata, created_at`

func (s *SQLiteStore) CreateMessage(msg *Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	imageJSON, err := json.Marshal(msg.ImageURLs)
	if err != nil {
		return fmt.Errorf("failed to marshal image urls: %w", err)
	}
	metaJSON, err := json.Marshal(msg.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = s.db.Exec(`INSERT INTO messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConvoID, msg.Role, msg.Content, string(imageJSON), string(metaJSON), msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

func scanMessage(scan func(dest ...any) error) (*Message, error) {
	var msg Message
	var imageJSON, metaJSON string
	err := scan(&msg.ID, &msg.ConvoID, &msg.Role, &msg.Content, &imageJSON, &metaJSON, &msg.CreatedAt)
	if err != nil {
		return nil, err
	}
	if imageJSON != "" && imageJSON != "null" {
		if err := json.Unmarshal([]byte(imageJSON), &msg.ImageURLs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal image urls: %w", err)
		}
	}
	if metaJSON != "" && metaJSON != "null" && metaJSON != "{}" {
		if err := json.Unmarshal([]byte(metaJSON), &msg.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &msg, nil
}

func (s *SQLiteStore) queryMessages(query string, args ...any) ([]Message, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		msg, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}

// GetMessagesByConversation returns the transcript in chronological order.
// System entries are adapter context and are excluded.
func (s *SQLiteStore) GetMessagesByConversation(convoID string) ([]Message, error) {
	return s.queryMessages(`SELECT `+messageColumns+` FROM messages
		WHERE convo_id = ? AND role != 'system'
		ORDER BY created_at ASC, message_id ASC`, convoID)
}

// GetLastNMessages returns up to n newest non-system messages, newest first.
func (s *SQLiteStore) GetLastNMessages(convoID string, n int) ([]Message, error) {
	return s.queryMessages(`SELECT `+messageColumns+` FROM messages
		WHERE convo_id = ? AND role != 'system'
		ORDER BY created_at DESC, message_id DESC
		LIMIT ?`, convoID, n)
}

// GetSystemSeed returns the conversation's persisted system context entry.
func (s *SQLiteStore) GetSystemSeed(convoID string) (*Message, error) {
	row := s.db.QueryRow(`SELECT `+messageColumns+` FROM messages
		WHERE convo_id = ? AND role = 'system'
		ORDER BY created_at ASC, message_id ASC
		LIMIT 1`, convoID)
	msg, err := scanMessage(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get system seed: %w", err)
	}
	return msg, nil
}

// DeleteMessage removes a single message. Used to roll back a user message
// when the chat adapter fails after the write.
func (s *SQLiteStore) DeleteMessage(messageID string) error {
	res, err := s.db.Exec(`DELETE FROM messages WHERE message_id = ?`, messageID)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// CountMessages returns the number of stored messages, system entries included.
func (s *SQLiteStore) CountMessages(convoID string) (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE convo_id = ?`, convoID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return n, nil
}

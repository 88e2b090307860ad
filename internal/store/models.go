package store

import "time"

// Message roles. System entries hold adapter context and are never part of
// the transcript returned to clients.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

type User struct {
	ID                string    `json:"user_id"`
	Username          string    `json:"username"`
	Email             string    `json:"email"`
	PasswordHash      *string   `json:"-"` // nil for Google users without a password
	GoogleID          *string   `json:"-"`
	IsGoogleUser      bool      `json:"isGoogleUser"`
	HasPassword       bool      `json:"hasPassword"`
	IsVerified        bool      `json:"isVerified"`
	VerificationToken *string   `json:"-"`
	ProfilePicture    string    `json:"profilePicture"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type Conversation struct {
	ID            string    `json:"convo_id"` // UUID
	UserID        string    `json:"user_id"`
	Title         string    `json:"title"`
	Category      *string   `json:"category,omitempty"`
	LastMessageAt time.Time `json:"last_message_at"`
	IsArchived    bool      `json:"is_archived"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// LastMessage is the newest message, populated only by listings for
	// sidebar previews.
	LastMessage *Message `json:"last_message,omitempty"`
}

type Message struct {
	ID        string         `json:"message_id"` // UUID
	ConvoID   string         `json:"convo_id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	ImageURLs []string       `json:"image_urls,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

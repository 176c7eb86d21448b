package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// User represents a user in the system.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	LastSeen     *time.Time
	CreatedAt    time.Time
}

// ConversationType defines different kinds of conversations.
type ConversationType string

const (
	ConversationTypeDirect ConversationType = "direct"
	ConversationTypeGroup  ConversationType = "group"
)

// Conversation represents a named set of participants exchanging messages.
// The participant list is the authoritative source of truth for
// authorization checks; it is loaded fresh on every read that needs it.
type Conversation struct {
	ID            int64
	Title         string
	Type          ConversationType
	CreatedBy     int64
	LastMessageID *int64
	LastActivity  time.Time
	IsActive      bool
	CreatedAt     time.Time
	Participants  []*User
}

// HasParticipant reports whether userID appears in the loaded participant list.
func (c *Conversation) HasParticipant(userID int64) bool {
	for _, p := range c.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}

// Message represents a persisted chat message. Read state is a single
// boolean/timestamp pair, not per-recipient.
type Message struct {
	ID             int64
	ConversationID int64
	SenderID       int64
	Content        string
	MessageType    string
	Attachments    []string
	IsRead         bool
	ReadAt         *time.Time
	SentAt         time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, email, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// UpdateLastSeen records when the user was last connected.
	UpdateLastSeen(ctx context.Context, userID int64, lastSeen time.Time) error
}

// ConversationStore handles conversation persistence.
type ConversationStore interface {
	// CreateConversation creates a conversation and its participant rows.
	CreateConversation(ctx context.Context, title string, ctype ConversationType, createdBy int64, participantIDs []int64) (*Conversation, error)

	// GetConversation retrieves a conversation with its participants loaded.
	GetConversation(ctx context.Context, id int64) (*Conversation, error)

	// FindDirectConversation returns an existing direct conversation between
	// two users, or ErrNotFound.
	FindDirectConversation(ctx context.Context, userA, userB int64) (*Conversation, error)

	// ListConversations lists a user's active conversations ordered by most
	// recent activity.
	ListConversations(ctx context.Context, userID int64, limit, offset int) ([]*Conversation, error)

	// AddParticipant adds a user to a conversation's participant list.
	AddParticipant(ctx context.Context, conversationID, userID int64) error

	// UpdateConversationActivity sets the conversation's last message and
	// activity timestamp.
	UpdateConversationActivity(ctx context.Context, conversationID, lastMessageID int64, at time.Time) error
}

// MessageStore handles message persistence.
type MessageStore interface {
	// CreateMessage persists a message and fills in its ID.
	CreateMessage(ctx context.Context, msg *Message) (*Message, error)

	// GetMessageByID retrieves a message by ID.
	GetMessageByID(ctx context.Context, id int64) (*Message, error)

	// MarkMessageRead sets the message's read flag and timestamp.
	MarkMessageRead(ctx context.Context, id int64, readAt time.Time) error
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	ConversationStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}

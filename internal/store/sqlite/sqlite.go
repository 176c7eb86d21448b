package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/beamchat/server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	email         TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	last_seen     DATETIME,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS conversations (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	title           TEXT NOT NULL DEFAULT '',
	type            TEXT NOT NULL DEFAULT 'direct',
	created_by      INTEGER NOT NULL REFERENCES users(id),
	last_message_id INTEGER,
	last_activity   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	is_active       BOOLEAN NOT NULL DEFAULT 1,
	created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS conversation_participants (
	conversation_id INTEGER NOT NULL REFERENCES conversations(id),
	user_id         INTEGER NOT NULL REFERENCES users(id),
	joined_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (conversation_id, user_id)
);

CREATE TABLE IF NOT EXISTS messages (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id INTEGER NOT NULL REFERENCES conversations(id),
	sender_id       INTEGER NOT NULL REFERENCES users(id),
	content         TEXT NOT NULL,
	message_type    TEXT NOT NULL DEFAULT 'text',
	attachments     TEXT NOT NULL DEFAULT '[]',
	is_read         BOOLEAN NOT NULL DEFAULT 0,
	read_at         DATETIME,
	sent_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id);
`

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
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

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, email, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash)
		VALUES (?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, username, email, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, username, email, password_hash, last_seen, created_at
		FROM users
		WHERE id = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, email, password_hash, last_seen, created_at
		FROM users
		WHERE username = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, username))
}

// UpdateLastSeen records when the user was last connected.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, userID int64, lastSeen time.Time) error {
	query := `UPDATE users SET last_seen = ? WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, query, lastSeen.UTC(), userID); err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}
	return nil
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*store.User, error) {
	var u store.User
	var lastSeen sql.NullTime
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &lastSeen, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if lastSeen.Valid {
		u.LastSeen = &lastSeen.Time
	}
	return &u, nil
}

// ==== ConversationStore implementation ====

// CreateConversation creates a conversation and its participant rows.
func (s *SQLiteStore) CreateConversation(ctx context.Context, title string, ctype store.ConversationType, createdBy int64, participantIDs []int64) (*store.Conversation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (title, type, created_by, last_activity)
		VALUES (?, ?, ?, ?)
	`, title, string(ctype), createdBy, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	for _, uid := range participantIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO conversation_participants (conversation_id, user_id)
			VALUES (?, ?)
		`, id, uid); err != nil {
			return nil, fmt.Errorf("insert participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return s.GetConversation(ctx, id)
}

// GetConversation retrieves a conversation with its participants loaded.
func (s *SQLiteStore) GetConversation(ctx context.Context, id int64) (*store.Conversation, error) {
	query := `
		SELECT id, title, type, created_by, last_message_id, last_activity, is_active, created_at
		FROM conversations
		WHERE id = ?
	`
	conv, err := s.scanConversation(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}

	participants, err := s.listParticipants(ctx, id)
	if err != nil {
		return nil, err
	}
	conv.Participants = participants

	return conv, nil
}

// FindDirectConversation returns an existing direct conversation between two users.
func (s *SQLiteStore) FindDirectConversation(ctx context.Context, userA, userB int64) (*store.Conversation, error) {
	query := `
		SELECT c.id
		FROM conversations c
		JOIN conversation_participants pa ON pa.conversation_id = c.id AND pa.user_id = ?
		JOIN conversation_participants pb ON pb.conversation_id = c.id AND pb.user_id = ?
		WHERE c.type = 'direct' AND c.is_active = 1
		LIMIT 1
	`
	var id int64
	err := s.db.QueryRowContext(ctx, query, userA, userB).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find direct conversation: %w", err)
	}
	return s.GetConversation(ctx, id)
}

// ListConversations lists a user's active conversations ordered by most recent activity.
func (s *SQLiteStore) ListConversations(ctx context.Context, userID int64, limit, offset int) ([]*store.Conversation, error) {
	query := `
		SELECT c.id, c.title, c.type, c.created_by, c.last_message_id, c.last_activity, c.is_active, c.created_at
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id
		WHERE p.user_id = ? AND c.is_active = 1
		ORDER BY c.last_activity DESC
		LIMIT ? OFFSET ?
	`
	rows, err := s.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var convs []*store.Conversation
	for rows.Next() {
		conv, err := s.scanConversationRows(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}

	for _, conv := range convs {
		participants, err := s.listParticipants(ctx, conv.ID)
		if err != nil {
			return nil, err
		}
		conv.Participants = participants
	}

	return convs, nil
}

// AddParticipant adds a user to a conversation's participant list.
func (s *SQLiteStore) AddParticipant(ctx context.Context, conversationID, userID int64) error {
	query := `
		INSERT INTO conversation_participants (conversation_id, user_id)
		VALUES (?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, conversationID, userID); err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

// UpdateConversationActivity sets the conversation's last message and activity timestamp.
func (s *SQLiteStore) UpdateConversationActivity(ctx context.Context, conversationID, lastMessageID int64, at time.Time) error {
	query := `
		UPDATE conversations
		SET last_message_id = ?, last_activity = ?
		WHERE id = ?
	`
	if _, err := s.db.ExecContext(ctx, query, lastMessageID, at.UTC(), conversationID); err != nil {
		return fmt.Errorf("update conversation activity: %w", err)
	}
	return nil
}

func (s *SQLiteStore) listParticipants(ctx context.Context, conversationID int64) ([]*store.User, error) {
	query := `
		SELECT u.id, u.username, u.email, u.password_hash, u.last_seen, u.created_at
		FROM users u
		JOIN conversation_participants p ON p.user_id = u.id
		WHERE p.conversation_id = ?
		ORDER BY u.id
	`
	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var users []*store.User
	for rows.Next() {
		var u store.User
		var lastSeen sql.NullTime
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &lastSeen, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		if lastSeen.Valid {
			u.LastSeen = &lastSeen.Time
		}
		users = append(users, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}
	return users, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanConversation(row *sql.Row) (*store.Conversation, error) {
	conv, err := scanConversationFrom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return conv, err
}

func (s *SQLiteStore) scanConversationRows(rows *sql.Rows) (*store.Conversation, error) {
	return scanConversationFrom(rows)
}

func scanConversationFrom(row rowScanner) (*store.Conversation, error) {
	var c store.Conversation
	var ctype string
	var lastMessageID sql.NullInt64
	err := row.Scan(&c.ID, &c.Title, &ctype, &c.CreatedBy, &lastMessageID, &c.LastActivity, &c.IsActive, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	c.Type = store.ConversationType(ctype)
	if lastMessageID.Valid {
		c.LastMessageID = &lastMessageID.Int64
	}
	return &c, nil
}

// ==== MessageStore implementation ====

// CreateMessage persists a message and fills in its ID.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *store.Message) (*store.Message, error) {
	attachments := msg.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	encoded, err := json.Marshal(attachments)
	if err != nil {
		return nil, fmt.Errorf("encode attachments: %w", err)
	}

	if msg.MessageType == "" {
		msg.MessageType = "text"
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}

	query := `
		INSERT INTO messages (conversation_id, sender_id, content, message_type, attachments, is_read, sent_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		msg.ConversationID, msg.SenderID, msg.Content, msg.MessageType, string(encoded), msg.SentAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetMessageByID(ctx, id)
}

// GetMessageByID retrieves a message by ID.
func (s *SQLiteStore) GetMessageByID(ctx context.Context, id int64) (*store.Message, error) {
	query := `
		SELECT id, conversation_id, sender_id, content, message_type, attachments, is_read, read_at, sent_at
		FROM messages
		WHERE id = ?
	`
	var m store.Message
	var attachments string
	var readAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.MessageType, &attachments, &m.IsRead, &readAt, &m.SentAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan message: %w", err)
	}
	if readAt.Valid {
		m.ReadAt = &readAt.Time
	}
	if err := json.Unmarshal([]byte(attachments), &m.Attachments); err != nil {
		return nil, fmt.Errorf("decode attachments: %w", err)
	}
	return &m, nil
}

// MarkMessageRead sets the message's read flag and timestamp.
func (s *SQLiteStore) MarkMessageRead(ctx context.Context, id int64, readAt time.Time) error {
	query := `UPDATE messages SET is_read = 1, read_at = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, readAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

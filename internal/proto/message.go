package proto

import (
	"encoding/json"
	"time"
)

// Inbound is the envelope for frames coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeJoinConversation  = "join-conversation"
	InboundTypeLeaveConversation = "leave-conversation"
	InboundTypeSendMessage       = "send-message"
	InboundTypeMarkMessageRead   = "mark-message-read"
	InboundTypeTypingStart       = "typing-start"
	InboundTypeTypingStop        = "typing-stop"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"
)

// Outbound event names.
const (
	EventNewMessage              = "new-message"
	EventMessageRead             = "message-read"
	EventUserOnline              = "user-online"
	EventUserOffline             = "user-offline"
	EventUserTyping              = "user-typing"
	EventUserStoppedTyping       = "user-stopped-typing"
	EventUserJoinedConversation  = "user-joined-conversation"
	EventUserLeftConversation    = "user-left-conversation"
	EventParticipantAdded        = "participant-added"
)

// ConversationData addresses a conversation for join/leave/typing frames.
type ConversationData struct {
	ConversationID int64 `json:"conversation_id"`
}

// SendMessageData is a chat message from the client.
type SendMessageData struct {
	ConversationID int64    `json:"conversation_id"`
	Content        string   `json:"content"`
	MessageType    string   `json:"message_type,omitempty"`
	Attachments    []string `json:"attachments,omitempty"`
}

// MarkMessageReadData records a read receipt for a message.
type MarkMessageReadData struct {
	MessageID int64 `json:"message_id"`
}

// Outbound is the envelope for frames sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// MessagePayload is the wire form of a persisted message.
type MessagePayload struct {
	ID             int64      `json:"id"`
	ConversationID int64      `json:"conversation_id"`
	SenderID       int64      `json:"sender_id"`
	SenderName     string     `json:"sender_name,omitempty"`
	Content        string     `json:"content"`
	MessageType    string     `json:"message_type"`
	Attachments    []string   `json:"attachments,omitempty"`
	IsRead         bool       `json:"is_read"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	SentAt         time.Time  `json:"sent_at"`
}

// NewMessageData delivers a message to a conversation's live subscribers.
type NewMessageData struct {
	Message        MessagePayload `json:"message"`
	ConversationID int64          `json:"conversation_id"`
}

// MessageReadData notifies a sender that their message has been read.
type MessageReadData struct {
	MessageID int64     `json:"message_id"`
	ReadBy    int64     `json:"read_by"`
	ReadAt    time.Time `json:"read_at"`
}

// PresenceData announces a user's online state.
type PresenceData struct {
	UserID   int64      `json:"user_id"`
	Username string     `json:"username"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

// ConversationUserData ties a user to a conversation for join/leave/typing
// notifications.
type ConversationUserData struct {
	UserID         int64  `json:"user_id"`
	Username       string `json:"username"`
	ConversationID int64  `json:"conversation_id"`
}

// ParticipantAddedData notifies subscribers that the participant list was
// changed outside the real-time path.
type ParticipantAddedData struct {
	ConversationID int64 `json:"conversation_id"`
	NewParticipant int64 `json:"new_participant"`
	AddedBy        int64 `json:"added_by"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

package core

import (
	"time"

	"github.com/beamchat/server/internal/store"
)

// EventKind is a notification the hub emits to clients.
type EventKind int

const (
	// EventNewMessage delivers a persisted message to a conversation's
	// live subscribers.
	EventNewMessage EventKind = iota
	// EventMessageRead notifies a message's sender that it has been read.
	EventMessageRead
	// EventUserOnline notifies other connections that a user came online.
	EventUserOnline
	// EventUserOffline notifies other connections that a user went offline.
	EventUserOffline
	// EventUserTyping signals transient typing state in a conversation.
	EventUserTyping
	// EventUserStoppedTyping clears transient typing state.
	EventUserStoppedTyping
	// EventUserJoinedConversation notifies subscribers about a new room member.
	EventUserJoinedConversation
	// EventUserLeftConversation notifies subscribers about a departed member.
	EventUserLeftConversation
	// EventParticipantAdded notifies subscribers that the participant list
	// changed outside the real-time path.
	EventParticipantAdded
	// EventError notifies a single connection about a domain error.
	EventError
)

// Event is sent to clients to describe what happened in the system.
// Fields are populated per kind; unused fields stay zero.
type Event struct {
	Kind           EventKind
	ConversationID int64
	UserID         int64
	Username       string

	// EventNewMessage
	Message *store.Message

	// EventMessageRead
	MessageID int64
	ReadBy    int64
	ReadAt    time.Time

	// EventUserOffline
	LastSeen time.Time

	// EventParticipantAdded
	NewParticipant int64
	AddedBy        int64

	// EventError
	Err *Error
}

package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoinConversation subscribes the connection to a conversation's room.
	CommandJoinConversation CommandKind = iota
	// CommandLeaveConversation unsubscribes the connection from a room.
	CommandLeaveConversation
	// CommandSendMessage persists and fans out a chat message.
	CommandSendMessage
	// CommandMarkMessageRead records a read receipt for a message.
	CommandMarkMessageRead
	// CommandTypingStart signals that the user started typing.
	CommandTypingStart
	// CommandTypingStop signals that the user stopped typing.
	CommandTypingStop
)

// Command represents an action requested by a connection.
type Command struct {
	Kind           CommandKind
	ConversationID int64
	MessageID      int64

	// CommandSendMessage payload.
	Content     string
	MessageType string
	Attachments []string
}

package core

// Error codes for domain errors surfaced to clients.
const (
	// Connection establishment failures. These reject the handshake before
	// any hub state exists for the connection.
	ErrCodeInvalidToken = "invalid_token"
	ErrCodeUserNotFound = "user_not_found"

	// Connection-local failures. The connection stays open.
	ErrCodeMissingField         = "missing_field"
	ErrCodeNotParticipant       = "not_participant"
	ErrCodeConversationNotFound = "conversation_not_found"
	ErrCodeMessageNotFound      = "message_not_found"
	ErrCodeStoreUnavailable     = "store_unavailable"
	ErrCodeTimeout              = "timeout"
	ErrCodeBadRequest           = "bad_request"
)

// Error wraps a code and human-readable message.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

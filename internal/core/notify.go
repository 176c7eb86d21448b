package core

import (
	"github.com/rs/zerolog"

	"github.com/beamchat/server/internal/store"
)

// PushNotifier receives the participants who were offline when a message
// was sent, as candidates for out-of-band delivery.
type PushNotifier interface {
	NotifyOffline(msg *store.Message, userIDs []int64)
}

// LogNotifier is a stub notifier: it only records who would have been
// pushed to. Offline push delivery is not implemented.
type LogNotifier struct {
	log *zerolog.Logger
}

// NewLogNotifier constructs a notifier that logs offline candidates.
func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: logger}
}

func (n *LogNotifier) NotifyOffline(msg *store.Message, userIDs []int64) {
	if len(userIDs) == 0 {
		return
	}
	n.log.Debug().
		Int64("message_id", msg.ID).
		Int64("conversation_id", msg.ConversationID).
		Ints64("offline_user_ids", userIDs).
		Msg("offline participants for push notification")
}

// NopNotifier discards offline candidates.
type NopNotifier struct{}

func (NopNotifier) NotifyOffline(*store.Message, []int64) {}

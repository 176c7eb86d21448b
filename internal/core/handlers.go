package core

import (
	"context"
	"errors"
	"time"

	"github.com/beamchat/server/internal/store"
)

// handleJoinConversation subscribes the connection to a conversation's room
// after re-verifying, against external truth, that the user is a
// participant. Membership is never cached across checks.
func (h *Hub) handleJoinConversation(ctx context.Context, c *Client, cmd *Command) {
	conv, err := h.store.GetConversation(ctx, cmd.ConversationID)
	if err != nil {
		h.sendStoreError(c, err, ErrCodeConversationNotFound, "conversation not found")
		return
	}

	if !conv.HasParticipant(c.User.ID) {
		h.sendError(c, ErrCodeNotParticipant, "not authorized to join this conversation")
		return
	}

	if !h.joinRoom(c, conversationChannel(conv.ID)) {
		// The connection went away while the membership check was in
		// flight; drop the join silently.
		return
	}

	h.log.Debug().
		Int64("user_id", c.User.ID).
		Int64("conversation_id", conv.ID).
		Msg("user joined conversation")

	h.broadcastRoomExcept(conversationChannel(conv.ID), c, &Event{
		Kind:           EventUserJoinedConversation,
		ConversationID: conv.ID,
		UserID:         c.User.ID,
		Username:       c.User.Username,
	})
}

// handleLeaveConversation removes the connection from the room without any
// authorization check and notifies the remaining subscribers.
func (h *Hub) handleLeaveConversation(_ context.Context, c *Client, cmd *Command) {
	h.leaveRoom(c, conversationChannel(cmd.ConversationID))

	h.log.Debug().
		Int64("user_id", c.User.ID).
		Int64("conversation_id", cmd.ConversationID).
		Msg("user left conversation")

	h.broadcastRoom(conversationChannel(cmd.ConversationID), &Event{
		Kind:           EventUserLeftConversation,
		ConversationID: cmd.ConversationID,
		UserID:         c.User.ID,
		Username:       c.User.Username,
	})
}

// handleSendMessage validates, re-authorizes against the conversation's
// participant list (sending does not require a prior join), persists the
// message, and fans it out to the room's current live subscribers only.
// The conversation summary update afterwards is deliberately not
// transactional with message creation.
func (h *Hub) handleSendMessage(ctx context.Context, c *Client, cmd *Command) {
	if cmd.ConversationID == 0 || cmd.Content == "" {
		h.sendError(c, ErrCodeMissingField, "missing required fields")
		return
	}

	conv, err := h.store.GetConversation(ctx, cmd.ConversationID)
	if err != nil {
		h.sendStoreError(c, err, ErrCodeConversationNotFound, "conversation not found")
		return
	}

	if !conv.HasParticipant(c.User.ID) {
		h.sendError(c, ErrCodeNotParticipant, "not authorized to send message to this conversation")
		return
	}

	msg, err := h.store.CreateMessage(ctx, &store.Message{
		ConversationID: conv.ID,
		SenderID:       c.User.ID,
		Content:        cmd.Content,
		MessageType:    cmd.MessageType,
		Attachments:    cmd.Attachments,
	})
	if err != nil {
		h.sendStoreError(c, err, ErrCodeStoreUnavailable, "failed to send message")
		return
	}

	h.broadcastRoom(conversationChannel(conv.ID), &Event{
		Kind:           EventNewMessage,
		ConversationID: conv.ID,
		UserID:         c.User.ID,
		Username:       c.User.Username,
		Message:        msg,
	})

	// Participants with no live connection are candidates for offline push.
	var offline []int64
	for _, p := range conv.Participants {
		if p.ID != c.User.ID && !h.presence.Online(p.ID) {
			offline = append(offline, p.ID)
		}
	}
	h.notifier.NotifyOffline(msg, offline)

	// Eventual consistency: the message is already persisted and delivered,
	// a stale conversation summary is tolerated.
	if err := h.store.UpdateConversationActivity(ctx, conv.ID, msg.ID, msg.SentAt); err != nil {
		h.log.Warn().Err(err).
			Int64("conversation_id", conv.ID).
			Int64("message_id", msg.ID).
			Msg("failed to update conversation activity")
	}
}

// handleMarkMessageRead records a read receipt and notifies the sender on
// their personal channel. Reading your own message is a no-op: nothing is
// persisted and nothing is broadcast.
func (h *Hub) handleMarkMessageRead(ctx context.Context, c *Client, cmd *Command) {
	msg, err := h.store.GetMessageByID(ctx, cmd.MessageID)
	if err != nil {
		h.sendStoreError(c, err, ErrCodeMessageNotFound, "message not found")
		return
	}

	if msg.SenderID == c.User.ID {
		return
	}

	readAt := time.Now()
	if err := h.store.MarkMessageRead(ctx, msg.ID, readAt); err != nil {
		h.sendStoreError(c, err, ErrCodeMessageNotFound, "message not found")
		return
	}

	h.broadcastRoom(userChannel(msg.SenderID), &Event{
		Kind:      EventMessageRead,
		MessageID: msg.ID,
		ReadBy:    c.User.ID,
		ReadAt:    readAt,
	})
}

// handleTypingStart broadcasts transient typing state to the room's current
// subscribers. No authorization check, no persistence, no debouncing; the
// client controls start/stop cadence.
func (h *Hub) handleTypingStart(_ context.Context, c *Client, cmd *Command) {
	h.broadcastRoomExcept(conversationChannel(cmd.ConversationID), c, &Event{
		Kind:           EventUserTyping,
		ConversationID: cmd.ConversationID,
		UserID:         c.User.ID,
		Username:       c.User.Username,
	})
}

func (h *Hub) handleTypingStop(_ context.Context, c *Client, cmd *Command) {
	h.broadcastRoomExcept(conversationChannel(cmd.ConversationID), c, &Event{
		Kind:           EventUserStoppedTyping,
		ConversationID: cmd.ConversationID,
		UserID:         c.User.ID,
		Username:       c.User.Username,
	})
}

// sendStoreError maps a persistence failure onto the client-facing error
// taxonomy. Store failures never terminate the connection's loop.
func (h *Hub) sendStoreError(c *Client, err error, notFoundCode, notFoundMsg string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.sendError(c, notFoundCode, notFoundMsg)
	case errors.Is(err, context.DeadlineExceeded):
		h.log.Warn().Err(err).Str("connection_id", c.ID).Msg("store call timed out")
		h.sendError(c, ErrCodeTimeout, "operation timed out")
	default:
		h.log.Error().Err(err).Str("connection_id", c.ID).Msg("store call failed")
		h.sendError(c, ErrCodeStoreUnavailable, "store unavailable")
	}
}

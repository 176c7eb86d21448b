package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/beamchat/server/internal/core"
	"github.com/beamchat/server/internal/store"
)

// ConversationHandlers provides HTTP handlers for conversation management.
// It holds an explicit hub handle so participant mutations made over HTTP
// can still be announced into the conversation's live channel.
type ConversationHandlers struct {
	store store.Store
	hub   *core.Hub
	log   *zerolog.Logger
}

// NewConversationHandlers creates a new conversation handlers instance.
func NewConversationHandlers(st store.Store, hub *core.Hub, logger *zerolog.Logger) *ConversationHandlers {
	return &ConversationHandlers{
		store: st,
		hub:   hub,
		log:   logger,
	}
}

// CreateConversationRequest represents the create conversation request body.
type CreateConversationRequest struct {
	ParticipantIDs []int64 `json:"participant_ids" binding:"required,min=1"`
	Title          string  `json:"title"`
	Type           string  `json:"type"`
}

// AddParticipantRequest represents the add participant request body.
type AddParticipantRequest struct {
	ParticipantID int64 `json:"participant_id" binding:"required"`
}

// ParticipantResponse represents a participant in API responses.
type ParticipantResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// ConversationResponse represents a conversation in API responses.
type ConversationResponse struct {
	ID            int64                 `json:"id"`
	Title         string                `json:"title,omitempty"`
	Type          string                `json:"type"`
	CreatedBy     int64                 `json:"created_by"`
	LastMessageID *int64                `json:"last_message_id,omitempty"`
	LastActivity  time.Time             `json:"last_activity"`
	Participants  []ParticipantResponse `json:"participants"`
}

func conversationResponse(conv *store.Conversation) ConversationResponse {
	participants := make([]ParticipantResponse, 0, len(conv.Participants))
	for _, p := range conv.Participants {
		participants = append(participants, ParticipantResponse{
			ID:       p.ID,
			Username: p.Username,
			Email:    p.Email,
		})
	}
	return ConversationResponse{
		ID:            conv.ID,
		Title:         conv.Title,
		Type:          string(conv.Type),
		CreatedBy:     conv.CreatedBy,
		LastMessageID: conv.LastMessageID,
		LastActivity:  conv.LastActivity,
		Participants:  participants,
	}
}

// CreateConversation handles conversation creation. Direct conversations
// must have exactly two participants and deduplicate on the pair.
// POST /api/conversations
func (h *ConversationHandlers) CreateConversation(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create conversation request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "participant ids are required"})
		return
	}

	ctype := store.ConversationType(req.Type)
	if ctype == "" {
		ctype = store.ConversationTypeDirect
	}
	if ctype != store.ConversationTypeDirect && ctype != store.ConversationTypeGroup {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid conversation type"})
		return
	}

	// The caller is always a participant.
	seen := map[int64]struct{}{uid: {}}
	participants := []int64{uid}
	for _, id := range req.ParticipantIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		participants = append(participants, id)
	}

	if ctype == store.ConversationTypeDirect {
		if len(participants) != 2 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "direct conversations must have exactly 2 participants"})
			return
		}

		existing, err := h.store.FindDirectConversation(c.Request.Context(), participants[0], participants[1])
		if err == nil {
			c.JSON(http.StatusOK, conversationResponse(existing))
			return
		}
		if !errors.Is(err, store.ErrNotFound) {
			h.log.Error().Err(err).Msg("failed to look up direct conversation")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}
	}

	conv, err := h.store.CreateConversation(c.Request.Context(), req.Title, ctype, uid, participants)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to create conversation")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Int64("conversation_id", conv.ID).Int64("user_id", uid).Msg("conversation created")
	c.JSON(http.StatusCreated, conversationResponse(conv))
}

// ListConversations handles listing the caller's active conversations,
// most recent activity first.
// GET /api/conversations
func (h *ConversationHandlers) ListConversations(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	limit := 20
	offset := 0
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	if v, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil && v >= 0 {
		offset = v
	}

	convs, err := h.store.ListConversations(c.Request.Context(), uid, limit, offset)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list conversations")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]ConversationResponse, 0, len(convs))
	for _, conv := range convs {
		response = append(response, conversationResponse(conv))
	}

	c.JSON(http.StatusOK, response)
}

// AddParticipant adds a user to a group conversation and announces the
// change into the conversation's live channel through the hub.
// POST /api/conversations/:id/participants
func (h *ConversationHandlers) AddParticipant(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	conversationID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid conversation id"})
		return
	}

	var req AddParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "participant id is required"})
		return
	}

	conv, err := h.store.GetConversation(c.Request.Context(), conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "conversation not found"})
			return
		}
		h.log.Error().Err(err).Int64("conversation_id", conversationID).Msg("failed to load conversation")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	if !conv.HasParticipant(uid) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not authorized to modify this conversation"})
		return
	}
	if conv.Type == store.ConversationTypeDirect {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "cannot add participants to direct conversations"})
		return
	}
	if conv.HasParticipant(req.ParticipantID) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "user is already a participant"})
		return
	}

	if err := h.store.AddParticipant(c.Request.Context(), conversationID, req.ParticipantID); err != nil {
		h.log.Error().Err(err).Int64("conversation_id", conversationID).Msg("failed to add participant")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.hub.EmitToConversation(conversationID, &core.Event{
		Kind:           core.EventParticipantAdded,
		NewParticipant: req.ParticipantID,
		AddedBy:        uid,
	})

	updated, err := h.store.GetConversation(c.Request.Context(), conversationID)
	if err != nil {
		h.log.Error().Err(err).Int64("conversation_id", conversationID).Msg("failed to reload conversation")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().
		Int64("conversation_id", conversationID).
		Int64("participant_id", req.ParticipantID).
		Int64("added_by", uid).
		Msg("participant added")
	c.JSON(http.StatusOK, conversationResponse(updated))
}

package core

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/beamchat/server/internal/store"
)

const defaultStoreTimeout = 5 * time.Second

// Hub coordinates live connections: it tracks presence, gates room
// membership by the conversation's external participant list, and fans
// events out to rooms and personal channels. The hub owns every Client for
// the connection's lifetime; transports only feed Commands in and drain
// Events out.
type Hub struct {
	store        store.Store
	notifier     PushNotifier
	log          *zerolog.Logger
	storeTimeout time.Duration

	presence *Presence

	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]*Room

	handlers map[CommandKind]handlerFunc
}

// handlerFunc processes one inbound command for one connection. Handlers
// run on the connection's serve goroutine, so commands from a single
// connection are handled strictly in arrival order.
type handlerFunc func(ctx context.Context, c *Client, cmd *Command)

// NewHub creates a hub backed by the given persistence collaborator.
func NewHub(st store.Store, notifier PushNotifier, logger *zerolog.Logger, storeTimeout time.Duration) *Hub {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreTimeout
	}

	h := &Hub{
		store:        st,
		notifier:     notifier,
		log:          logger,
		storeTimeout: storeTimeout,
		presence:     NewPresence(),
		clients:      make(map[*Client]struct{}),
		rooms:        make(map[string]*Room),
	}
	h.handlers = map[CommandKind]handlerFunc{
		CommandJoinConversation:  h.handleJoinConversation,
		CommandLeaveConversation: h.handleLeaveConversation,
		CommandSendMessage:       h.handleSendMessage,
		CommandMarkMessageRead:   h.handleMarkMessageRead,
		CommandTypingStart:       h.handleTypingStart,
		CommandTypingStop:        h.handleTypingStop,
	}
	return h
}

// Presence exposes read-only presence lookups.
func (h *Hub) Presence() *Presence {
	return h.presence
}

// RegisterClient admits an authenticated connection: it subscribes the
// connection to its personal channel, records presence (overwriting any
// prior entry for the same user), announces the user online to all other
// live connections, and starts the connection's command loop. The loop
// exits when the client's Commands channel is closed.
func (h *Hub) RegisterClient(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.joinRoomLocked(c, userChannel(c.User.ID))
	h.mu.Unlock()

	h.presence.Register(c.User.ID, c.ID, c.User.Username)

	h.broadcastOthers(c, &Event{
		Kind:     EventUserOnline,
		UserID:   c.User.ID,
		Username: c.User.Username,
	})

	h.log.Info().
		Str("connection_id", c.ID).
		Int64("user_id", c.User.ID).
		Str("username", c.User.Username).
		Msg("client connected")

	go h.serveClient(c)
}

// UnregisterClient removes a connection from every room and from presence,
// announces the user offline, and records lastSeen best-effort. It is safe
// to call while a handler for this connection is still in flight; the
// handler's late result is simply discarded. Calling it again for an
// already-departed connection is a no-op.
func (h *Hub) UnregisterClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for name := range c.rooms {
		if room, ok := h.rooms[name]; ok {
			room.RemoveClient(c)
			if room.Empty() {
				delete(h.rooms, name)
			}
		}
	}
	c.rooms = make(map[string]struct{})
	h.mu.Unlock()

	lastSeen, _ := h.presence.Unregister(c.User.ID)
	if lastSeen.IsZero() {
		lastSeen = time.Now()
	}

	h.broadcastOthers(c, &Event{
		Kind:     EventUserOffline,
		UserID:   c.User.ID,
		Username: c.User.Username,
		LastSeen: lastSeen,
	})

	h.log.Info().
		Str("connection_id", c.ID).
		Int64("user_id", c.User.ID).
		Msg("client disconnected")

	// Best effort: failure is logged, never retried inline.
	go h.persistLastSeen(c.User.ID, lastSeen)
}

// EmitToConversation broadcasts an event into a conversation's channel from
// outside any connection context, e.g. when the HTTP layer mutates a
// participant list.
func (h *Hub) EmitToConversation(conversationID int64, ev *Event) {
	ev.ConversationID = conversationID
	h.broadcastRoom(conversationChannel(conversationID), ev)
}

func (h *Hub) serveClient(c *Client) {
	for cmd := range c.Commands {
		h.dispatch(c, cmd)
	}
}

// dispatch routes one command through the handler table. Every handler run
// is bounded: external calls inherit a deadline so a stalled store cannot
// suspend the connection's loop indefinitely.
func (h *Hub) dispatch(c *Client, cmd *Command) {
	handler, ok := h.handlers[cmd.Kind]
	if !ok {
		h.sendError(c, ErrCodeBadRequest, "unknown command")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.storeTimeout)
	defer cancel()

	handler(ctx, c, cmd)
}

func (h *Hub) persistLastSeen(userID int64, lastSeen time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), h.storeTimeout)
	defer cancel()

	if err := h.store.UpdateLastSeen(ctx, userID, lastSeen); err != nil {
		h.log.Warn().Err(err).Int64("user_id", userID).Msg("failed to update last seen")
	}
}

// joinRoomLocked subscribes c to the named channel, creating the room on
// first use. Duplicate joins are no-ops. Connections no longer in the
// client set are refused: a command drained after disconnect must not
// resurrect a room entry for a dead connection. Caller must hold h.mu.
func (h *Hub) joinRoomLocked(c *Client, name string) bool {
	if _, ok := h.clients[c]; !ok {
		return false
	}
	room, ok := h.rooms[name]
	if !ok {
		room = NewRoom(name)
		h.rooms[name] = room
	}
	room.AddClient(c)
	c.rooms[name] = struct{}{}
	return true
}

func (h *Hub) joinRoom(c *Client, name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.joinRoomLocked(c, name)
}

// leaveRoom unsubscribes c from the named channel. Unconditional: leaving a
// room the connection never joined is not an error.
func (h *Hub) leaveRoom(c *Client, name string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(c.rooms, name)
	room, ok := h.rooms[name]
	if !ok {
		return
	}
	room.RemoveClient(c)
	if room.Empty() {
		delete(h.rooms, name)
	}
}

func (h *Hub) broadcastRoom(name string, ev *Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if room, ok := h.rooms[name]; ok {
		room.Broadcast(ev)
	}
}

func (h *Hub) broadcastRoomExcept(name string, except *Client, ev *Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if room, ok := h.rooms[name]; ok {
		room.BroadcastExcept(except, ev)
	}
}

// broadcastOthers sends an event to every live connection except one.
func (h *Hub) broadcastOthers(except *Client, ev *Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client == except {
			continue
		}
		client.send(ev)
	}
}

func (h *Hub) sendError(c *Client, code, msg string) {
	c.send(&Event{Kind: EventError, Err: newError(code, msg)})
}

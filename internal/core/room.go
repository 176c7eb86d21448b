package core

import "fmt"

// conversationChannel is the broadcast scope for a conversation, populated
// only by connections that explicitly joined it.
func conversationChannel(conversationID int64) string {
	return fmt.Sprintf("conversation_%d", conversationID)
}

// userChannel is a per-user broadcast scope, always active while the user
// is connected, used for direct notifications such as read receipts.
func userChannel(userID int64) string {
	return fmt.Sprintf("user_%d", userID)
}

// Room groups clients subscribed to the same channel. It is runtime-only
// state, never the source of truth for conversation participation; callers
// must hold the hub's lock.
type Room struct {
	Name    string
	clients map[*Client]struct{}
}

// NewRoom constructs a room with no clients.
func NewRoom(name string) *Room {
	return &Room{
		Name:    name,
		clients: make(map[*Client]struct{}),
	}
}

// AddClient inserts a client into the room. Returns true if newly added.
func (r *Room) AddClient(c *Client) bool {
	if _, exists := r.clients[c]; exists {
		return false
	}
	r.clients[c] = struct{}{}
	return true
}

// RemoveClient deletes a client from the room. Returns true if removed.
func (r *Room) RemoveClient(c *Client) bool {
	if _, exists := r.clients[c]; !exists {
		return false
	}
	delete(r.clients, c)
	return true
}

// Broadcast sends an event to all clients in the room.
func (r *Room) Broadcast(event *Event) {
	for client := range r.clients {
		client.send(event)
	}
}

// BroadcastExcept sends an event to all clients in the room except one.
func (r *Room) BroadcastExcept(except *Client, event *Event) {
	for client := range r.clients {
		if client == except {
			continue
		}
		client.send(event)
	}
}

// Empty returns true if no clients are in the room.
func (r *Room) Empty() bool {
	return len(r.clients) == 0
}

package core

import (
	"time"

	"github.com/beamchat/server/internal/store"
)

// Client is one live authenticated connection as seen by the hub.
// A connection belongs to exactly one user for its whole lifetime.
type Client struct {
	ID          string
	User        *store.User
	ConnectedAt time.Time

	Commands chan *Command
	Events   chan *Event

	// rooms holds the channel names this connection is subscribed to.
	// Guarded by the hub's lock.
	rooms map[string]struct{}
}

// NewClient constructs a client for an authenticated user.
func NewClient(connectionID string, user *store.User) *Client {
	return &Client{
		ID:          connectionID,
		User:        user,
		ConnectedAt: time.Now(),
		Commands:    make(chan *Command, 8),
		Events:      make(chan *Event, 32),
		rooms:       make(map[string]struct{}),
	}
}

// send delivers an event without blocking. Slow consumers lose events
// rather than stalling a broadcast.
func (c *Client) send(ev *Event) {
	select {
	case c.Events <- ev:
	default:
	}
}

package core

import (
	"sync"
	"time"
)

// PresenceEntry records a user's current live connection. One entry per
// user: a second simultaneous connection for the same user overwrites the
// prior entry.
type PresenceEntry struct {
	ConnectionID string
	Username     string
	LastSeen     time.Time
	Online       bool
}

// Presence is the process-wide registry of online users. It is safe for
// concurrent register/unregister/lookup from independent connection
// contexts; the raw map is never exposed to callers.
type Presence struct {
	mu      sync.RWMutex
	entries map[int64]*PresenceEntry
}

// NewPresence constructs an empty presence registry.
func NewPresence() *Presence {
	return &Presence{entries: make(map[int64]*PresenceEntry)}
}

// Register inserts or overwrites the entry for userID.
func (p *Presence) Register(userID int64, connectionID, username string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.entries[userID] = &PresenceEntry{
		ConnectionID: connectionID,
		Username:     username,
		LastSeen:     time.Now(),
		Online:       true,
	}
}

// Unregister removes the entry for userID and returns the moment the user
// was last seen. Returns false if the user had no entry.
func (p *Presence) Unregister(userID int64) (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.entries[userID]; !ok {
		return time.Time{}, false
	}
	delete(p.entries, userID)
	return time.Now(), true
}

// Lookup returns a copy of the user's presence entry, if any.
func (p *Presence) Lookup(userID int64) (PresenceEntry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entry, ok := p.entries[userID]
	if !ok {
		return PresenceEntry{}, false
	}
	return *entry, true
}

// Online reports whether the user currently has a live connection.
func (p *Presence) Online(userID int64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	_, ok := p.entries[userID]
	return ok
}

package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/beamchat/server/internal/store"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// mustNoEvent drains ch for a short window and fails if an event of the
// given kind shows up.
func mustNoEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event kind %v received: %+v", kind, ev)
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// fakeStore is an in-memory store.Store for hub tests.
type fakeStore struct {
	mu sync.Mutex

	users    map[int64]*store.User
	convs    map[int64]*store.Conversation
	msgs     map[int64]*store.Message
	nextMsg  int64
	lastSeen map[int64]time.Time

	activityUpdates int

	// blockUntilCancel makes every read stall until its context expires.
	blockUntilCancel bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[int64]*store.User),
		convs:    make(map[int64]*store.Conversation),
		msgs:     make(map[int64]*store.Message),
		nextMsg:  1,
		lastSeen: make(map[int64]time.Time),
	}
}

func (f *fakeStore) addUser(id int64, username string) *store.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &store.User{ID: id, Username: username, CreatedAt: time.Now()}
	f.users[id] = u
	return u
}

func (f *fakeStore) addConversation(id int64, participantIDs ...int64) *store.Conversation {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv := &store.Conversation{
		ID:       id,
		Type:     store.ConversationTypeGroup,
		IsActive: true,
	}
	for _, uid := range participantIDs {
		u := f.users[uid]
		if u == nil {
			u = &store.User{ID: uid, Username: fmt.Sprintf("user%d", uid)}
		}
		conv.Participants = append(conv.Participants, u)
	}
	f.convs[id] = conv
	return conv
}

func (f *fakeStore) setBlock(block bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockUntilCancel = block
}

func (f *fakeStore) stall(ctx context.Context) error {
	f.mu.Lock()
	block := f.blockUntilCancel
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (f *fakeStore) CreateUser(_ context.Context, username, email, passwordHash string) (*store.User, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeStore) GetUserByID(_ context.Context, id int64) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) GetUserByUsername(_ context.Context, username string) (*store.User, error) {
	return nil, store.ErrNotFound
}

func (f *fakeStore) UpdateLastSeen(_ context.Context, userID int64, lastSeen time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSeen[userID] = lastSeen
	return nil
}

func (f *fakeStore) CreateConversation(_ context.Context, title string, ctype store.ConversationType, createdBy int64, participantIDs []int64) (*store.Conversation, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeStore) GetConversation(ctx context.Context, id int64) (*store.Conversation, error) {
	if err := f.stall(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.convs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return conv, nil
}

func (f *fakeStore) FindDirectConversation(_ context.Context, userA, userB int64) (*store.Conversation, error) {
	return nil, store.ErrNotFound
}

func (f *fakeStore) ListConversations(_ context.Context, userID int64, limit, offset int) ([]*store.Conversation, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeStore) AddParticipant(_ context.Context, conversationID, userID int64) error {
	return fmt.Errorf("not implemented")
}

func (f *fakeStore) UpdateConversationActivity(_ context.Context, conversationID, lastMessageID int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activityUpdates++
	if conv, ok := f.convs[conversationID]; ok {
		conv.LastMessageID = &lastMessageID
		conv.LastActivity = at
	}
	return nil
}

func (f *fakeStore) CreateMessage(ctx context.Context, msg *store.Message) (*store.Message, error) {
	if err := f.stall(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	saved := *msg
	saved.ID = f.nextMsg
	f.nextMsg++
	if saved.MessageType == "" {
		saved.MessageType = "text"
	}
	saved.SentAt = time.Now()
	f.msgs[saved.ID] = &saved
	return &saved, nil
}

func (f *fakeStore) GetMessageByID(ctx context.Context, id int64) (*store.Message, error) {
	if err := f.stall(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.msgs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return msg, nil
}

func (f *fakeStore) MarkMessageRead(_ context.Context, id int64, readAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.msgs[id]
	if !ok {
		return store.ErrNotFound
	}
	msg.IsRead = true
	msg.ReadAt = &readAt
	return nil
}

func (f *fakeStore) Close() error { return nil }

// connect creates a client for the user and admits it to the hub.
func connect(t *testing.T, h *Hub, user *store.User) *Client {
	t.Helper()
	c := NewClient(fmt.Sprintf("conn-%d-%d", user.ID, time.Now().UnixNano()), user)
	h.RegisterClient(c)
	t.Cleanup(func() {
		// Idempotent: tests that disconnect explicitly already removed it.
		h.UnregisterClient(c)
	})
	return c
}

func join(c *Client, conversationID int64) {
	c.Commands <- &Command{Kind: CommandJoinConversation, ConversationID: conversationID}
}

// waitJoined blocks until the hub has applied c's subscription to the
// conversation's room, so a broadcast triggered by another connection is
// guaranteed to reach c. Joins are applied asynchronously on each
// connection's serve goroutine; tests that order a join on one connection
// before traffic from another need this barrier.
func waitJoined(t *testing.T, h *Hub, c *Client, conversationID int64) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.mu.RLock()
		var member bool
		if room, ok := h.rooms[conversationChannel(conversationID)]; ok {
			_, member = room.clients[c]
		}
		h.mu.RUnlock()
		if member {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("connection %s never joined conversation %d", c.ID, conversationID)
}

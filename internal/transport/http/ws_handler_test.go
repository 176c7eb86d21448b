package http

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/beamchat/server/internal/auth"
	"github.com/beamchat/server/internal/core"
	"github.com/beamchat/server/internal/proto"
	"github.com/beamchat/server/internal/store"
)

type outboundFrame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func wsURL(ts string) string {
	return strings.Replace(ts, "http", "ws", 1) + "/ws"
}

func dialAs(ctx context.Context, t *testing.T, url, token string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, url+"?token="+token, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func sendFrame(ctx context.Context, t *testing.T, conn *websocket.Conn, msgType string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s data: %v", msgType, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: msgType, Data: payload}); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

// waitForEvent reads frames until one with the given event name arrives,
// skipping unrelated presence chatter.
func waitForEvent(ctx context.Context, t *testing.T, conn *websocket.Conn, event string) outboundFrame {
	t.Helper()

	for {
		var frame outboundFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			t.Fatalf("read waiting for %s: %v", event, err)
		}
		if frame.Event == event {
			return frame
		}
		if event == proto.OutboundTypeError && frame.Type == proto.OutboundTypeError {
			return frame
		}
	}
}

func waitForError(ctx context.Context, t *testing.T, conn *websocket.Conn) outboundFrame {
	t.Helper()

	for {
		var frame outboundFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			t.Fatalf("read waiting for error: %v", err)
		}
		if frame.Type == proto.OutboundTypeError {
			return frame
		}
	}
}

// waitSubscribed blocks until the connection's join to the conversation has
// been applied hub-side. Joins are processed asynchronously on the server's
// per-connection loop, so a test that orders a join on one socket before
// traffic from another needs this barrier. It repeatedly emits a marker
// event into the conversation's room (delivered to current members only)
// until the socket observes one; waitForEvent on the callers' side skips
// the stray markers.
func waitSubscribed(ctx context.Context, t *testing.T, hub *core.Hub, conn *websocket.Conn, conversationID int64) {
	t.Helper()

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				hub.EmitToConversation(conversationID, &core.Event{Kind: core.EventParticipantAdded})
			}
		}
	}()

	waitForEvent(ctx, t, conn, proto.EventParticipantAdded)
}

func registerUser(ctx context.Context, t *testing.T, st store.Store, authService *auth.Service, username string) (*store.User, string) {
	t.Helper()

	token, err := authService.Register(ctx, username, username+"@example.com", "password123")
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	user, err := st.GetUserByUsername(ctx, username)
	if err != nil {
		t.Fatalf("load %s: %v", username, err)
	}
	return user, token
}

func TestWSRejectsBadHandshake(t *testing.T) {
	ts, _, _, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if _, _, err := websocket.Dial(ctx, wsURL(ts.URL), nil); err == nil {
		t.Fatal("expected dial without token to fail")
	}
	if _, _, err := websocket.Dial(ctx, wsURL(ts.URL)+"?token=garbage", nil); err == nil {
		t.Fatal("expected dial with malformed token to fail")
	}
}

func TestWSMessagingScenario(t *testing.T) {
	srv, st, authService, hub := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alice, aliceToken := registerUser(ctx, t, st, authService, "alice")
	bob, bobToken := registerUser(ctx, t, st, authService, "bob")

	conv, err := st.CreateConversation(ctx, "", store.ConversationTypeDirect, alice.ID, []int64{alice.ID, bob.ID})
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	connA := dialAs(ctx, t, wsURL(srv.URL), aliceToken)
	connB := dialAs(ctx, t, wsURL(srv.URL), bobToken)

	sendFrame(ctx, t, connA, proto.InboundTypeJoinConversation, proto.ConversationData{ConversationID: conv.ID})
	waitSubscribed(ctx, t, hub, connA, conv.ID)
	sendFrame(ctx, t, connB, proto.InboundTypeJoinConversation, proto.ConversationData{ConversationID: conv.ID})

	// Alice sees bob arrive in the room.
	joined := waitForEvent(ctx, t, connA, proto.EventUserJoinedConversation)
	var joinedData proto.ConversationUserData
	if err := json.Unmarshal(joined.Data, &joinedData); err != nil {
		t.Fatalf("unmarshal user-joined: %v", err)
	}
	if joinedData.UserID != bob.ID || joinedData.ConversationID != conv.ID {
		t.Fatalf("unexpected user-joined payload: %+v", joinedData)
	}

	sendFrame(ctx, t, connA, proto.InboundTypeSendMessage, proto.SendMessageData{
		ConversationID: conv.ID,
		Content:        "hi",
	})

	frame := waitForEvent(ctx, t, connB, proto.EventNewMessage)
	var newMsg proto.NewMessageData
	if err := json.Unmarshal(frame.Data, &newMsg); err != nil {
		t.Fatalf("unmarshal new-message: %v", err)
	}
	if newMsg.Message.Content != "hi" || newMsg.Message.SenderID != alice.ID {
		t.Fatalf("unexpected new-message payload: %+v", newMsg)
	}

	sendFrame(ctx, t, connB, proto.InboundTypeMarkMessageRead, proto.MarkMessageReadData{MessageID: newMsg.Message.ID})

	read := waitForEvent(ctx, t, connA, proto.EventMessageRead)
	var readData proto.MessageReadData
	if err := json.Unmarshal(read.Data, &readData); err != nil {
		t.Fatalf("unmarshal message-read: %v", err)
	}
	if readData.MessageID != newMsg.Message.ID || readData.ReadBy != bob.ID {
		t.Fatalf("unexpected message-read payload: %+v", readData)
	}

	// Typing indicators reach the other subscriber only.
	sendFrame(ctx, t, connA, proto.InboundTypeTypingStart, proto.ConversationData{ConversationID: conv.ID})
	typing := waitForEvent(ctx, t, connB, proto.EventUserTyping)
	var typingData proto.ConversationUserData
	if err := json.Unmarshal(typing.Data, &typingData); err != nil {
		t.Fatalf("unmarshal user-typing: %v", err)
	}
	if typingData.UserID != alice.ID {
		t.Fatalf("unexpected user-typing payload: %+v", typingData)
	}
}

func TestWSUnauthorizedJoinGetsError(t *testing.T) {
	srv, st, authService, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice, _ := registerUser(ctx, t, st, authService, "alice")
	_, malloryToken := registerUser(ctx, t, st, authService, "mallory")

	conv, err := st.CreateConversation(ctx, "", store.ConversationTypeGroup, alice.ID, []int64{alice.ID})
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	conn := dialAs(ctx, t, wsURL(srv.URL), malloryToken)

	sendFrame(ctx, t, conn, proto.InboundTypeJoinConversation, proto.ConversationData{ConversationID: conv.ID})
	frame := waitForError(ctx, t, conn)
	if frame.Error == nil || frame.Error.Code != "not_participant" {
		t.Fatalf("expected not_participant error, got %+v", frame)
	}

	sendFrame(ctx, t, conn, proto.InboundTypeJoinConversation, proto.ConversationData{ConversationID: 9999})
	frame = waitForError(ctx, t, conn)
	if frame.Error == nil || frame.Error.Code != "conversation_not_found" {
		t.Fatalf("expected conversation_not_found error, got %+v", frame)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _, _ := startTestServer(t)

	resp, err := srv.Client().Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

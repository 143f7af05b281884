package signaling

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	signalingservice "github.com/telecare/backend/internal/service/signaling"
)

func startSignalingServer(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	New(signalingservice.NewRelay()).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event map[string]any
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return event
}

func connect(t *testing.T, srv *httptest.Server) (*websocket.Conn, string) {
	t.Helper()
	conn := dial(t, srv)
	event := readEvent(t, conn)
	if event["type"] != "connected" {
		t.Fatalf("expected connected event, got %v", event)
	}
	id, _ := event["userId"].(string)
	if id == "" {
		t.Fatal("connected event carries no userId")
	}
	return conn, id
}

func TestJoinRoomFlow(t *testing.T) {
	srv := startSignalingServer(t)

	alice, aliceID := connect(t, srv)
	bob, bobID := connect(t, srv)

	if err := alice.WriteJSON(map[string]any{"type": "join-room", "roomId": "R", "userName": "Alice"}); err != nil {
		t.Fatalf("join err: %v", err)
	}
	event := readEvent(t, alice)
	if event["type"] != "existing-users" {
		t.Fatalf("expected existing-users, got %v", event)
	}
	if users, _ := event["users"].([]any); len(users) != 0 {
		t.Fatalf("first joiner saw existing users: %v", users)
	}

	if err := bob.WriteJSON(map[string]any{"type": "join-room", "roomId": "R", "userName": "Bob"}); err != nil {
		t.Fatalf("join err: %v", err)
	}
	event = readEvent(t, bob)
	users, _ := event["users"].([]any)
	if len(users) != 1 {
		t.Fatalf("expected 1 existing user for Bob, got %v", event)
	}
	first, _ := users[0].(map[string]any)
	if first["id"] != aliceID || first["name"] != "Alice" {
		t.Fatalf("unexpected existing user: %v", first)
	}

	event = readEvent(t, alice)
	if event["type"] != "user-joined" || event["userId"] != bobID || event["userName"] != "Bob" {
		t.Fatalf("expected user-joined for Bob, got %v", event)
	}
}

func TestOfferUnicast(t *testing.T) {
	srv := startSignalingServer(t)

	alice, aliceID := connect(t, srv)
	bob, bobID := connect(t, srv)

	alice.WriteJSON(map[string]any{"type": "join-room", "roomId": "R", "userName": "Alice"})
	readEvent(t, alice) // existing-users
	bob.WriteJSON(map[string]any{"type": "join-room", "roomId": "R", "userName": "Bob"})
	readEvent(t, bob)   // existing-users
	readEvent(t, alice) // user-joined

	offer := map[string]any{"type": "offer", "sdp": "v=0"}
	if err := bob.WriteJSON(map[string]any{
		"type":         "webrtc-offer",
		"offer":        offer,
		"targetUserId": aliceID,
		"roomId":       "R",
	}); err != nil {
		t.Fatalf("send offer: %v", err)
	}

	event := readEvent(t, alice)
	if event["type"] != "webrtc-offer" {
		t.Fatalf("expected webrtc-offer, got %v", event)
	}
	if event["offerUserId"] != bobID || event["roomId"] != "R" {
		t.Fatalf("offer tagged wrong: %v", event)
	}
	got, _ := event["offer"].(map[string]any)
	if got["sdp"] != "v=0" {
		t.Fatalf("offer payload mangled: %v", event)
	}
}

func TestLeaveNotifiesRoom(t *testing.T) {
	srv := startSignalingServer(t)

	alice, _ := connect(t, srv)
	bob, bobID := connect(t, srv)

	alice.WriteJSON(map[string]any{"type": "join-room", "roomId": "R", "userName": "Alice"})
	readEvent(t, alice)
	bob.WriteJSON(map[string]any{"type": "join-room", "roomId": "R", "userName": "Bob"})
	readEvent(t, bob)
	readEvent(t, alice)

	bob.WriteJSON(map[string]any{"type": "leave-room", "roomId": "R", "userName": "Bob"})

	event := readEvent(t, alice)
	if event["type"] != "user-left" || event["userId"] != bobID || event["userName"] != "Bob" {
		t.Fatalf("expected user-left for Bob, got %v", event)
	}
}

func TestDisconnectNotifiesRoom(t *testing.T) {
	srv := startSignalingServer(t)

	alice, _ := connect(t, srv)
	bob, bobID := connect(t, srv)

	alice.WriteJSON(map[string]any{"type": "join-room", "roomId": "R", "userName": "Alice"})
	readEvent(t, alice)
	bob.WriteJSON(map[string]any{"type": "join-room", "roomId": "R", "userName": "Bob"})
	readEvent(t, bob)
	readEvent(t, alice)

	bob.Close()

	event := readEvent(t, alice)
	if event["type"] != "user-left" || event["userId"] != bobID {
		t.Fatalf("expected user-left after disconnect, got %v", event)
	}
}

func TestUnsupportedEventType(t *testing.T) {
	srv := startSignalingServer(t)

	conn, _ := connect(t, srv)
	conn.WriteJSON(map[string]any{"type": "mystery"})

	event := readEvent(t, conn)
	if event["type"] != "error" {
		t.Fatalf("expected error event, got %v", event)
	}
}

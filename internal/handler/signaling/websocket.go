package signaling

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	signalingservice "github.com/telecare/backend/internal/service/signaling"
)

const (
	readDeadline = 60 * time.Second
	pingInterval = 54 * time.Second
	sendBuffer   = 32
)

// Handler upgrades signaling connections and bridges their event streams
// to the relay.
type Handler struct {
	relay    *signalingservice.Relay
	upgrader websocket.Upgrader
}

// New builds the signaling handler.
func New(relay *signalingservice.Relay) *Handler {
	return &Handler{
		relay: relay,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the signaling endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

// inboundEvent is the union of every event shape a client may send. The
// negotiation payloads stay opaque; the relay forwards them verbatim.
type inboundEvent struct {
	Type         string          `json:"type"`
	RoomID       string          `json:"roomId"`
	UserName     string          `json:"userName"`
	TargetUserID string          `json:"targetUserId"`
	Offer        json.RawMessage `json:"offer"`
	Answer       json.RawMessage `json:"answer"`
	Candidate    json.RawMessage `json:"candidate"`
}

type connectedEvent struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type existingUsersEvent struct {
	Type  string                         `json:"type"`
	Users []signalingservice.Participant `json:"users"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// client owns one websocket connection. All writes funnel through the
// buffered send channel and a single writer goroutine; Send never blocks
// and drops the event when the buffer is full.
type client struct {
	id   string
	conn *websocket.Conn
	send chan any
}

func (c *client) Send(event any) bool {
	select {
	case c.send <- event:
		return true
	default:
		return false
	}
}

func (c *client) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-c.send:
			if err := c.conn.WriteJSON(event); err != nil {
				log.Printf("[signaling] write failed for %s: %v", c.id, err)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[signaling] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	c := &client{id: connID, conn: conn, send: make(chan any, sendBuffer)}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.relay.Register(connID, c)
	defer h.relay.Disconnect(connID)

	go c.writeLoop(ctx)

	log.Printf("[signaling] user connected: %s", connID)

	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	// Tell the client its own connection id; targets in later events
	// refer to these ids.
	c.Send(connectedEvent{Type: "connected", UserID: connID})

	for {
		var event inboundEvent
		if err := conn.ReadJSON(&event); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[signaling] read error for %s: %v", connID, err)
			}
			log.Printf("[signaling] user disconnected: %s", connID)
			return
		}
		conn.SetReadDeadline(time.Now().Add(readDeadline))

		h.handleEvent(c, &event)
	}
}

func (h *Handler) handleEvent(c *client, event *inboundEvent) {
	switch event.Type {
	case "join-room":
		if event.RoomID == "" {
			c.Send(errorEvent{Type: "error", Message: "roomId is required"})
			return
		}
		existing := h.relay.Join(event.RoomID, c.id, event.UserName)
		c.Send(existingUsersEvent{Type: signalingservice.EventExistingUsers, Users: existing})
	case signalingservice.EventOffer:
		h.relay.ForwardOffer(c.id, event.TargetUserID, event.RoomID, event.Offer)
	case signalingservice.EventAnswer:
		h.relay.ForwardAnswer(c.id, event.TargetUserID, event.RoomID, event.Answer)
	case signalingservice.EventCandidate:
		h.relay.ForwardCandidate(c.id, event.TargetUserID, event.RoomID, event.Candidate)
	case "leave-room":
		h.relay.Leave(event.RoomID, c.id)
	default:
		c.Send(errorEvent{Type: "error", Message: "unsupported event type: " + event.Type})
	}
}

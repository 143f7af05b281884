package signaling

import (
	"encoding/json"
	"log"
	"sync"
)

// Sender delivers events to one connection. Implementations must not
// block; delivery is fire-and-forget from the relay's perspective.
type Sender interface {
	Send(event any) bool
}

type room struct {
	mu      sync.Mutex
	gone    bool
	members map[string]Participant
}

// Relay tracks room membership and forwards negotiation messages between
// participants without interpreting their contents. Targeting is
// deliberately minimal-trust: any connected participant may address any
// live connection id, with no room-membership check before forwarding.
//
// Mutations to a room's participant set serialize on that room's lock,
// so joins and leaves on different rooms do not contend.
type Relay struct {
	mu    sync.RWMutex
	conns map[string]Sender
	rooms map[string]*room
}

// NewRelay returns an empty relay.
func NewRelay() *Relay {
	return &Relay{
		conns: make(map[string]Sender),
		rooms: make(map[string]*room),
	}
}

// Register adds a live connection to the relay's delivery table.
func (r *Relay) Register(connID string, s Sender) {
	r.mu.Lock()
	r.conns[connID] = s
	r.mu.Unlock()
}

// Join adds the connection to a room, creating the room if absent,
// notifies the current members of the arrival, and returns the members
// that were already present so the joiner can initiate a peer connection
// to each.
func (r *Relay) Join(roomID, connID, name string) []Participant {
	rm := r.roomFor(roomID)
	existing := make([]Participant, 0, len(rm.members))
	for _, p := range rm.members {
		existing = append(existing, p)
	}
	rm.members[connID] = Participant{ID: connID, Name: name}
	rm.mu.Unlock()

	log.Printf("[signaling] %s joined room %s", name, roomID)
	for _, p := range existing {
		r.send(p.ID, UserJoinedEvent{Type: EventUserJoined, UserID: connID, UserName: name})
	}
	return existing
}

// roomFor returns the room registered under roomID with its lock held,
// creating it if absent. The retry covers the window where a concurrent
// leave deletes the room between the registry lookup and the room lock.
func (r *Relay) roomFor(roomID string) *room {
	for {
		r.mu.Lock()
		rm, ok := r.rooms[roomID]
		if !ok {
			rm = &room{members: make(map[string]Participant)}
			r.rooms[roomID] = rm
		}
		r.mu.Unlock()

		rm.mu.Lock()
		if !rm.gone {
			return rm
		}
		rm.mu.Unlock()
	}
}

// Leave removes the connection from the room, deletes the room if that
// empties it, and notifies the remaining members. The departure
// notification is sent only after the membership set no longer contains
// the leaver.
func (r *Relay) Leave(roomID, connID string) {
	r.mu.Lock()
	rm, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return
	}

	rm.mu.Lock()
	p, present := rm.members[connID]
	delete(rm.members, connID)
	if len(rm.members) == 0 {
		rm.gone = true
		delete(r.rooms, roomID)
	}
	remaining := membersSnapshot(rm)
	rm.mu.Unlock()
	r.mu.Unlock()

	if !present {
		return
	}
	log.Printf("[signaling] %s left room %s", p.Name, roomID)
	for _, member := range remaining {
		r.send(member.ID, UserLeftEvent{Type: EventUserLeft, UserID: connID, UserName: p.Name})
	}
}

// Disconnect removes the connection from the delivery table and sweeps it
// out of every room it appears in, deleting rooms emptied along the way.
// The sweep is O(rooms) but room counts stay small in practice. Cleanup
// completes before Disconnect returns, so later relay calls naming this
// connection find it gone.
func (r *Relay) Disconnect(connID string) {
	type departure struct {
		name      string
		remaining []Participant
	}

	r.mu.Lock()
	delete(r.conns, connID)

	departures := make(map[string]departure)
	for roomID, rm := range r.rooms {
		rm.mu.Lock()
		p, ok := rm.members[connID]
		if ok {
			delete(rm.members, connID)
			if len(rm.members) == 0 {
				rm.gone = true
				delete(r.rooms, roomID)
			}
			departures[roomID] = departure{name: p.Name, remaining: membersSnapshot(rm)}
		}
		rm.mu.Unlock()
	}
	r.mu.Unlock()

	for roomID, dep := range departures {
		log.Printf("[signaling] %s disconnected from room %s", dep.name, roomID)
		for _, member := range dep.remaining {
			r.send(member.ID, UserLeftEvent{Type: EventUserLeft, UserID: connID, UserName: dep.name})
		}
	}
}

// ForwardOffer relays a connection offer to the target connection, tagged
// with the sender's id. Unknown targets are dropped silently; the
// negotiation layer above retries on its own.
func (r *Relay) ForwardOffer(senderID, targetID, roomID string, offer json.RawMessage) {
	r.send(targetID, OfferEvent{Type: EventOffer, Offer: offer, OfferUserID: senderID, RoomID: roomID})
}

// ForwardAnswer relays a connection answer to the target connection.
func (r *Relay) ForwardAnswer(senderID, targetID, roomID string, answer json.RawMessage) {
	r.send(targetID, AnswerEvent{Type: EventAnswer, Answer: answer, AnswerUserID: senderID, RoomID: roomID})
}

// ForwardCandidate relays a network-candidate descriptor to the target
// connection.
func (r *Relay) ForwardCandidate(senderID, targetID, roomID string, candidate json.RawMessage) {
	r.send(targetID, CandidateEvent{Type: EventCandidate, Candidate: candidate, CandidateUserID: senderID, RoomID: roomID})
}

// RoomMembers returns the current membership of a room, or nil if the
// room does not exist.
func (r *Relay) RoomMembers(roomID string) []Participant {
	r.mu.RLock()
	rm, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return membersSnapshot(rm)
}

func (r *Relay) send(connID string, event any) {
	r.mu.RLock()
	s, ok := r.conns[connID]
	r.mu.RUnlock()
	if !ok {
		return
	}
	if !s.Send(event) {
		log.Printf("[signaling] dropped event for slow connection %s", connID)
	}
}

// membersSnapshot copies the membership set; callers hold the room lock.
func membersSnapshot(rm *room) []Participant {
	out := make([]Participant, 0, len(rm.members))
	for _, p := range rm.members {
		out = append(out, p)
	}
	return out
}

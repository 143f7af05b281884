package signaling

import "encoding/json"

// Participant identifies one connection inside a room.
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Outbound event shapes. The type field doubles as the event name on the
// wire, matching what the frontends listen for.

// UserJoinedEvent is broadcast to a room when a new participant arrives.
type UserJoinedEvent struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// UserLeftEvent is broadcast to a room after a participant is removed.
type UserLeftEvent struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// OfferEvent carries a connection offer to exactly one target.
type OfferEvent struct {
	Type        string          `json:"type"`
	Offer       json.RawMessage `json:"offer"`
	OfferUserID string          `json:"offerUserId"`
	RoomID      string          `json:"roomId"`
}

// AnswerEvent carries a connection answer to exactly one target.
type AnswerEvent struct {
	Type         string          `json:"type"`
	Answer       json.RawMessage `json:"answer"`
	AnswerUserID string          `json:"answerUserId"`
	RoomID       string          `json:"roomId"`
}

// CandidateEvent carries a network-candidate descriptor to exactly one
// target.
type CandidateEvent struct {
	Type            string          `json:"type"`
	Candidate       json.RawMessage `json:"candidate"`
	CandidateUserID string          `json:"candidateUserId"`
	RoomID          string          `json:"roomId"`
}

const (
	EventUserJoined    = "user-joined"
	EventUserLeft      = "user-left"
	EventOffer         = "webrtc-offer"
	EventAnswer        = "webrtc-answer"
	EventCandidate     = "webrtc-ice-candidate"
	EventExistingUsers = "existing-users"
)

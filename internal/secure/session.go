package secure

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// DefaultSessionKey is used when a caller supplies no session identifier,
// so all header-less encrypted traffic shares one session.
const DefaultSessionKey = "default"

// ErrSessionNotFound marks an encrypted request referencing a session
// identifier the store has never seen (or has since evicted).
var ErrSessionNotFound = errors.New("session not found")

// Session binds a key-exchange instance to its derived shared secret. The
// secret is recomputed whenever the client presents a new public value;
// the server-side exponent never changes.
type Session struct {
	mu     sync.Mutex
	kx     *KeyExchange
	secret []byte
}

// PublicKey returns the server's public value for this session.
func (s *Session) PublicKey() string {
	return s.kx.PublicKey()
}

// ComputeSharedSecret derives and stores the shared secret for the
// supplied remote public value, overwriting any previously stored secret.
func (s *Session) ComputeSharedSecret(remotePublicHex string) ([]byte, error) {
	secret, err := s.kx.ComputeSharedSecret(remotePublicHex)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.secret = secret
	s.mu.Unlock()
	return secret, nil
}

// Secret returns the stored shared secret, or nil before any exchange
// has completed.
func (s *Session) Secret() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.secret
}

type sessionEntry struct {
	session  *Session
	lastSeen time.Time
}

// SessionStore is the process-wide registry of key-exchange sessions.
// Idle sessions are evicted after the configured TTL, both lazily on
// access and by the background sweep; a TTL of zero disables expiry.
type SessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*sessionEntry
	now      func() time.Time
}

// NewSessionStore returns an empty store with the given idle TTL.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		ttl:      ttl,
		sessions: make(map[string]*sessionEntry),
		now:      time.Now,
	}
}

// GetOrCreate returns the session registered under key, creating it if
// absent. At most one KeyExchange is ever created per key, no matter how
// many callers race on it.
func (s *SessionStore) GetOrCreate(key string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.sessions[key]; ok && !s.expired(entry) {
		entry.lastSeen = s.now()
		return entry.session, nil
	}

	kx, err := NewKeyExchange()
	if err != nil {
		return nil, fmt.Errorf("create session %q: %w", key, err)
	}
	entry := &sessionEntry{session: &Session{kx: kx}, lastSeen: s.now()}
	s.sessions[key] = entry
	return entry.session, nil
}

// Get returns the session registered under key, reporting absence rather
// than failing. Expired sessions are evicted on the spot.
func (s *SessionStore) Get(key string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[key]
	if !ok {
		return nil, false
	}
	if s.expired(entry) {
		delete(s.sessions, key)
		return nil, false
	}
	entry.lastSeen = s.now()
	return entry.session, true
}

// Len reports the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep evicts idle sessions every interval until ctx is done. Intended
// to run as a goroutine owned by the server entrypoint.
func (s *SessionStore) Sweep(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if evicted := s.evictExpired(); evicted > 0 {
				log.Printf("[secure] evicted %d idle session(s)", evicted)
			}
		}
	}
}

func (s *SessionStore) evictExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for key, entry := range s.sessions {
		if s.expired(entry) {
			delete(s.sessions, key)
			evicted++
		}
	}
	return evicted
}

func (s *SessionStore) expired(entry *sessionEntry) bool {
	return s.ttl > 0 && s.now().Sub(entry.lastSeen) > s.ttl
}

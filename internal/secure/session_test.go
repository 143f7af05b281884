package secure

import (
	"bytes"
	"sync"
	"testing"
	"time"
)

func TestGetOrCreateReturnsSameSession(t *testing.T) {
	store := NewSessionStore(0)

	first, err := store.GetOrCreate("patient-1")
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}
	second, err := store.GetOrCreate("patient-1")
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}

	if first != second {
		t.Fatal("expected the same session instance")
	}
	if first.PublicKey() != second.PublicKey() {
		t.Fatal("public value changed between lookups")
	}
}

func TestGetOrCreateConcurrent(t *testing.T) {
	store := NewSessionStore(0)

	const workers = 32
	results := make([]*Session, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := store.GetOrCreate("shared")
			if err != nil {
				t.Errorf("GetOrCreate err: %v", err)
				return
			}
			results[i] = s
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if results[i] != results[0] {
			t.Fatal("concurrent GetOrCreate produced more than one session")
		}
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", store.Len())
	}
}

func TestGetAbsentSession(t *testing.T) {
	store := NewSessionStore(0)
	if _, ok := store.Get("missing"); ok {
		t.Fatal("expected absent result for unknown session")
	}
}

func TestSessionIsolation(t *testing.T) {
	store := NewSessionStore(0)

	a, _ := store.GetOrCreate("session-a")
	b, _ := store.GetOrCreate("session-b")

	if a == b {
		t.Fatal("distinct keys resolved to the same session")
	}
	if a.PublicKey() == b.PublicKey() {
		t.Fatal("distinct sessions share a public value")
	}
}

func TestStoredSecretTracksLatestExchange(t *testing.T) {
	store := NewSessionStore(0)
	session, err := store.GetOrCreate("patient-1")
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}

	if session.Secret() != nil {
		t.Fatal("expected no secret before any exchange")
	}

	first, _ := NewKeyExchange()
	firstSecret, err := session.ComputeSharedSecret(first.PublicKey())
	if err != nil {
		t.Fatalf("ComputeSharedSecret err: %v", err)
	}
	if !bytes.Equal(session.Secret(), firstSecret) {
		t.Fatal("stored secret does not match the computed one")
	}

	// A new remote public value overwrites the stored secret.
	second, _ := NewKeyExchange()
	secondSecret, err := session.ComputeSharedSecret(second.PublicKey())
	if err != nil {
		t.Fatalf("ComputeSharedSecret err: %v", err)
	}
	if !bytes.Equal(session.Secret(), secondSecret) {
		t.Fatal("stored secret was not overwritten by the new exchange")
	}
	if bytes.Equal(firstSecret, secondSecret) {
		t.Fatal("distinct remote publics derived the same secret")
	}
}

func TestIdleSessionsExpire(t *testing.T) {
	store := NewSessionStore(time.Minute)
	current := time.Unix(1700000000, 0)
	store.now = func() time.Time { return current }

	stale, err := store.GetOrCreate("stale")
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}

	current = current.Add(30 * time.Second)
	if _, ok := store.Get("stale"); !ok {
		t.Fatal("session expired before its TTL")
	}

	// The Get above touched the session; idle past the TTL from there.
	current = current.Add(2 * time.Minute)
	if _, ok := store.Get("stale"); ok {
		t.Fatal("expected idle session to be evicted on access")
	}

	fresh, err := store.GetOrCreate("stale")
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}
	if fresh == stale {
		t.Fatal("expected a fresh session after expiry")
	}
}

func TestEvictExpiredSweep(t *testing.T) {
	store := NewSessionStore(time.Minute)
	current := time.Unix(1700000000, 0)
	store.now = func() time.Time { return current }

	store.GetOrCreate("one")
	store.GetOrCreate("two")
	current = current.Add(30 * time.Second)
	store.GetOrCreate("recent")

	current = current.Add(45 * time.Second)
	if evicted := store.evictExpired(); evicted != 2 {
		t.Fatalf("expected 2 evictions, got %d", evicted)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 surviving session, got %d", store.Len())
	}
	if _, ok := store.Get("recent"); !ok {
		t.Fatal("active session was evicted")
	}
}

package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/telecare/backend/internal/secure"
	"github.com/telecare/backend/pkg/utils"
)

// SessionHeader carries the out-of-band session identifier on encrypted
// traffic. Requests without it share the default session.
const SessionHeader = "Session-Id"

const maxBodySize = 1 << 20

func sessionKey(r *http.Request) string {
	if id := r.Header.Get(SessionHeader); id != "" {
		return id
	}
	return secure.DefaultSessionKey
}

// SessionInit lazily creates the key-exchange session named by the
// Session-Id header. Mounted on the handshake routes; routes that only
// decrypt never create sessions, so an unknown identifier stays a client
// error there.
func SessionInit(store *secure.SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := sessionKey(r)
			if _, err := store.GetOrCreate(key); err != nil {
				log.Printf("[secure] session init failed for %q: %v", key, err)
				utils.RespondError(w, http.StatusInternalServerError, "key exchange unavailable")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// DecryptRequest is the inbound interceptor stage. Bodies that are not
// encrypted envelopes pass through untouched; envelopes are resolved to
// their session, decrypted, and rewritten as the plaintext body before
// the downstream handler runs. Any failure short-circuits with a client
// error. When decryption happens, the encrypted response encoder is
// installed so the outbound stage mirrors the inbound one.
func DecryptRequest(store *secure.SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Read one byte past the limit so an over-limit body is
			// rejected outright instead of silently truncated.
			body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
			if err != nil {
				utils.RespondError(w, http.StatusBadRequest, "unreadable request body")
				return
			}
			r.Body.Close()
			if len(body) > maxBodySize {
				utils.RespondError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}

			env, ok := secure.ParseRequestEnvelope(body)
			if !ok {
				// Plain passthrough in both directions.
				r.Body = io.NopCloser(bytes.NewReader(body))
				next.ServeHTTP(w, r)
				return
			}

			key := sessionKey(r)
			session, ok := store.Get(key)
			if !ok {
				log.Printf("[secure] no session for encrypted request: %q", key)
				utils.RespondError(w, http.StatusBadRequest, secure.ErrSessionNotFound.Error())
				return
			}

			sharedSecret, err := session.ComputeSharedSecret(env.ClientPublicKey)
			if err != nil {
				if errors.Is(err, secure.ErrInvalidPublicValue) {
					log.Printf("[secure] rejected public value for session %q: %v", key, err)
					utils.RespondError(w, http.StatusBadRequest, secure.ErrInvalidPublicValue.Error())
					return
				}
				log.Printf("[secure] shared secret derivation failed for session %q: %v", key, err)
				utils.RespondError(w, http.StatusInternalServerError, "key exchange failed")
				return
			}

			plaintext, err := secure.Decrypt(env.Encrypted, sharedSecret)
			if err != nil {
				log.Printf("[secure] decryption failed for session %q", key)
				utils.RespondError(w, http.StatusBadRequest, secure.ErrDecryptionFailed.Error())
				return
			}

			plaintext = mergeEmbeddedHeaders(r, plaintext)

			r.Body = io.NopCloser(bytes.NewReader(plaintext))
			r.ContentLength = int64(len(plaintext))
			r = r.WithContext(secure.WithEncoder(r.Context(), secure.EncryptedEncoder{Secret: sharedSecret}))
			next.ServeHTTP(w, r)
		})
	}
}

// mergeEmbeddedHeaders lifts a reserved "headers" sub-object out of the
// decrypted payload into the request headers, so downstream handlers see
// the usual header/body split regardless of transport encryption.
// Embedded values overwrite existing headers.
func mergeEmbeddedHeaders(r *http.Request, plaintext []byte) []byte {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return plaintext
	}
	raw, ok := payload["headers"]
	if !ok {
		return plaintext
	}

	var headers map[string]string
	if err := json.Unmarshal(raw, &headers); err != nil {
		return plaintext
	}
	for name, value := range headers {
		r.Header.Set(name, value)
	}

	delete(payload, "headers")
	stripped, err := json.Marshal(payload)
	if err != nil {
		return plaintext
	}
	return stripped
}

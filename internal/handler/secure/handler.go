package secure

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/telecare/backend/internal/middleware"
	securesvc "github.com/telecare/backend/internal/secure"
	"github.com/telecare/backend/pkg/utils"
)

// Handler serves the key-exchange surface: the handshake that hands a
// client this session's server public value, and an echo endpoint for
// exercising the encrypted channel end to end.
type Handler struct {
	store *securesvc.SessionStore
}

// New builds the secure handler.
func New(store *securesvc.SessionStore) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes mounts the secure routes on a router that already runs
// the session-init and decrypt interceptor stages.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/handshake", h.Handshake)
	r.Post("/echo", h.Echo)
}

// Handshake returns the group parameters and this session's public value.
// The session was created by the session-init stage, so repeated calls
// with the same Session-Id see the same public value. The exchange is
// unauthenticated: whoever first claims a session identifier owns it.
func (h *Handler) Handshake(w http.ResponseWriter, r *http.Request) {
	key := securesvc.DefaultSessionKey
	if id := r.Header.Get(middleware.SessionHeader); id != "" {
		key = id
	}

	session, ok := h.store.Get(key)
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "session not found")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"sessionId":       key,
		"serverPublicKey": session.PublicKey(),
		"prime":           securesvc.PrimeHex(),
		"generator":       securesvc.GeneratorHex(),
	})
}

// Echo returns the request payload back to the caller. Behind the
// interceptor this round-trips the whole pipeline: the body arrives
// decrypted and the response goes out re-encrypted.
func (h *Handler) Echo(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	securesvc.Respond(w, r, http.StatusOK, map[string]any{
		"success": true,
		"echo":    payload,
	})
}

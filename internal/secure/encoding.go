package secure

import (
	"context"
	"log"
	"net/http"

	"github.com/telecare/backend/pkg/utils"
)

// ResponseEncoder emits a structured payload to the client. The decrypt
// middleware selects the implementation per request, so downstream
// handlers produce plaintext values and never see envelopes.
type ResponseEncoder interface {
	Encode(w http.ResponseWriter, status int, payload any)
}

// PlainEncoder writes the payload as ordinary JSON.
type PlainEncoder struct{}

func (PlainEncoder) Encode(w http.ResponseWriter, status int, payload any) {
	utils.RespondJSON(w, status, payload)
}

// EncryptedEncoder seals the payload under the session's shared secret
// and writes the response envelope instead of the raw value.
type EncryptedEncoder struct {
	Secret []byte
}

func (e EncryptedEncoder) Encode(w http.ResponseWriter, status int, payload any) {
	blob, err := Encrypt(payload, e.Secret)
	if err != nil {
		log.Printf("[secure] response encryption failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "encryption failed")
		return
	}
	utils.RespondJSON(w, status, ResponseEnvelope{Encrypted: blob, Success: true})
}

type encoderContextKey struct{}

// WithEncoder stores the per-request response encoder in ctx.
func WithEncoder(ctx context.Context, enc ResponseEncoder) context.Context {
	return context.WithValue(ctx, encoderContextKey{}, enc)
}

// EncoderFrom returns the encoder selected for this request, defaulting
// to plain JSON when the decrypt stage never ran or saw no envelope.
func EncoderFrom(ctx context.Context) ResponseEncoder {
	if enc, ok := ctx.Value(encoderContextKey{}).(ResponseEncoder); ok {
		return enc
	}
	return PlainEncoder{}
}

// Respond writes payload through the encoder selected for r, keeping
// handlers transparent to transport encryption.
func Respond(w http.ResponseWriter, r *http.Request, status int, payload any) {
	EncoderFrom(r.Context()).Encode(w, status, payload)
}

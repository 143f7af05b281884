package secure

import "encoding/json"

// RequestEnvelope is the wire shape of an encrypted request body. A body
// is treated as an envelope only when both fields are present; anything
// else flows through the transport unmodified.
type RequestEnvelope struct {
	Encrypted       string `json:"encrypted"`
	ClientPublicKey string `json:"clientPublicKey"`
}

// ResponseEnvelope is the wire shape of an encrypted response body.
type ResponseEnvelope struct {
	Encrypted string `json:"encrypted"`
	Success   bool   `json:"success"`
}

// ParseRequestEnvelope reports whether body is an encrypted request
// envelope, returning the parsed envelope when it is.
func ParseRequestEnvelope(body []byte) (RequestEnvelope, bool) {
	var env RequestEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return RequestEnvelope{}, false
	}
	if env.Encrypted == "" || env.ClientPublicKey == "" {
		return RequestEnvelope{}, false
	}
	return env, true
}

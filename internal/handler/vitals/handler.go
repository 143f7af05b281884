package vitals

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/telecare/backend/internal/secure"
	vitalsservice "github.com/telecare/backend/internal/service/vitals"
	"github.com/telecare/backend/pkg/utils"
)

// Handler serves the vital-sign endpoints.
type Handler struct {
	svc *vitalsservice.Service
}

// New builds the vitals handler.
func New(svc *vitalsservice.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the query endpoints. Both verbs are served so
// encrypted callers can POST an envelope.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/vitals/latest", h.Latest)
	r.Post("/vitals/latest", h.Latest)
}

type ingestRequest struct {
	BPM  json.RawMessage `json:"bpm"`
	SpO2 json.RawMessage `json:"spo2"`
}

// Ingest receives samples from the sensor gateway. Both vitals arrive as
// either a number or a string depending on firmware version; they are
// normalized, and SpO2 is clamped to [0, 100].
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.BPM) == 0 || len(req.SpO2) == 0 {
		utils.RespondError(w, http.StatusBadRequest, "Missing required fields: bpm and spo2")
		return
	}

	bpmValue, err := vitalNumber(req.BPM)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid bpm value")
		return
	}
	bpm := strconv.FormatFloat(bpmValue, 'f', -1, 64)

	spo2Value, err := vitalNumber(req.SpO2)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid spo2 value")
		return
	}
	spo2Value = min(100, max(0, spo2Value))
	spo2 := strconv.FormatFloat(spo2Value, 'f', -1, 64)

	log.Printf("[vitals] data received - BPM: %s, SpO2: %s", bpm, spo2)
	h.svc.Record(vitalsservice.Reading{BPM: bpm, SpO2: spo2})
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Data received successfully",
	})
}

// Latest serves the current reading through the transport interceptor, so
// it answers encrypted and plain callers alike.
func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	reading, ok := h.svc.Latest()
	if !ok {
		secure.Respond(w, r, http.StatusNotFound, map[string]any{
			"success": false,
			"message": "No vitals data available",
		})
		return
	}
	secure.Respond(w, r, http.StatusOK, map[string]any{
		"success":   true,
		"bpm":       reading.BPM,
		"spo2":      reading.SpO2,
		"timestamp": reading.Timestamp,
	})
}

// vitalNumber accepts a vital encoded as a JSON number or string.
func vitalNumber(raw json.RawMessage) (float64, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		raw = []byte(asString)
	}
	return strconv.ParseFloat(string(raw), 64)
}

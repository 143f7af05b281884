package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	securehandler "github.com/telecare/backend/internal/handler/secure"
	signalinghandler "github.com/telecare/backend/internal/handler/signaling"
	vitalshandler "github.com/telecare/backend/internal/handler/vitals"
	middlewarePkg "github.com/telecare/backend/internal/middleware"
	"github.com/telecare/backend/internal/secure"
	signalingservice "github.com/telecare/backend/internal/service/signaling"
	vitalsservice "github.com/telecare/backend/internal/service/vitals"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(sessions *secure.SessionStore, relay *signalingservice.Relay, vitalsSvc *vitalsservice.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	secureHandler := securehandler.New(sessions)
	vitalsHandler := vitalshandler.New(vitalsSvc)
	signalingHandler := signalinghandler.New(relay)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("API Working"))
	})

	// Sensor gateway ingest; plain by design, the gateway never encrypts.
	r.Post("/data", vitalsHandler.Ingest)

	r.Route("/api", func(api chi.Router) {
		api.Route("/secure", func(sr chi.Router) {
			// Handshake routes create sessions lazily; everything else
			// only looks them up.
			sr.Use(middlewarePkg.SessionInit(sessions))
			sr.Use(middlewarePkg.DecryptRequest(sessions))
			secureHandler.RegisterRoutes(sr)
		})

		api.Group(func(gr chi.Router) {
			gr.Use(middlewarePkg.DecryptRequest(sessions))
			vitalsHandler.RegisterRoutes(gr)
		})
	})

	signalingHandler.RegisterRoutes(r)

	return r
}

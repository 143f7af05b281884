package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/telecare/backend/internal/config"
	"github.com/telecare/backend/internal/handler"
	"github.com/telecare/backend/internal/secure"
	"github.com/telecare/backend/internal/service/signaling"
	"github.com/telecare/backend/internal/service/vitals"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	sessions := secure.NewSessionStore(cfg.Secure.SessionTTL)
	if cfg.Secure.SessionTTL > 0 {
		go sessions.Sweep(ctx, cfg.Secure.SweepInterval)
		log.Printf("session expiry enabled: ttl=%s sweep=%s", cfg.Secure.SessionTTL, cfg.Secure.SweepInterval)
	} else {
		log.Println("session expiry disabled, sessions live for the process lifetime")
	}

	relay := signaling.NewRelay()
	vitalsSvc := vitals.NewService(cfg.Vitals.MockEnabled, cfg.Vitals.Freshness)
	if cfg.Vitals.MockEnabled {
		log.Println("mock vitals enabled, stale readings fall back to generated data")
	}

	router := handler.NewRouter(sessions, relay, vitalsSvc)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Telecare backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

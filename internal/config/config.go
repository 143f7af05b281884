package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates every service setting.
type Config struct {
	Server ServerConfig
	Secure SecureConfig
	Vitals VitalsConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	secure, err := loadSecureConfig()
	if err != nil {
		return nil, err
	}

	vitals, err := loadVitalsConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Secure: secure, Vitals: vitals}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "4000"
	}

	if strings.Contains(port, ":") {
		// Allow passing ":4000" or "127.0.0.1:4000" directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// SecureConfig describes the encrypted-transport session lifecycle.
type SecureConfig struct {
	// SessionTTL is the idle lifetime of a key-exchange session; zero
	// disables expiry entirely.
	SessionTTL time.Duration

	// SweepInterval is how often the background eviction runs.
	SweepInterval time.Duration
}

func loadSecureConfig() (SecureConfig, error) {
	ttl, err := parseDurationEnv("SESSION_TTL", 30*time.Minute)
	if err != nil {
		return SecureConfig{}, err
	}

	sweep, err := parseDurationEnv("SESSION_SWEEP_INTERVAL", 5*time.Minute)
	if err != nil {
		return SecureConfig{}, err
	}

	return SecureConfig{SessionTTL: ttl, SweepInterval: sweep}, nil
}

// VitalsConfig describes the vitals cache behavior.
type VitalsConfig struct {
	MockEnabled bool
	Freshness   time.Duration
}

func loadVitalsConfig() (VitalsConfig, error) {
	mock, err := parseBoolEnv("MOCK_VITALS", true)
	if err != nil {
		return VitalsConfig{}, err
	}

	freshness, err := parseDurationEnv("VITALS_FRESHNESS", 30*time.Second)
	if err != nil {
		return VitalsConfig{}, err
	}

	return VitalsConfig{MockEnabled: mock, Freshness: freshness}, nil
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

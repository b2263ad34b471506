// Package config loads runtime settings from the environment,
// optionally seeded from a .env file.
package config

import (
	"os"

	"github.com/joho/godotenv"
)

const (
	defaultServerURL = "ws://localhost:8080/ws"
	defaultHTTPAddr  = ":8080"
)

type Config struct {
	// ServerURL is the websocket endpoint the client dials.
	ServerURL string
	// HTTPAddr is the listen address for the serve command.
	HTTPAddr string
	// PlayerName pre-fills the name prompt when set.
	PlayerName string
	// LogFile receives client logs; empty disables file logging
	// (the terminal is owned by the UI).
	LogFile string
}

// Load reads .env if present, then the process environment.
// Missing keys fall back to defaults.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		ServerURL:  envOr("BV_SERVER_URL", defaultServerURL),
		HTTPAddr:   envOr("BV_HTTP_ADDR", defaultHTTPAddr),
		PlayerName: os.Getenv("BV_PLAYER_NAME"),
		LogFile:    os.Getenv("BV_LOG_FILE"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

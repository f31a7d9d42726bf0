// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	LedgerGatewayURL string
	RelayerURL       string
	ContractAddress  string
	SessionSecret    string
	SessionTTL       time.Duration
	ConfirmWait      time.Duration
	ListenAddr       string
	DBPath           string
}

// Load reads configuration from environment variables and returns a validated
// Config. NOISEMAP_LEDGER_URL, NOISEMAP_RELAYER_URL, NOISEMAP_CONTRACT, and
// NOISEMAP_SESSION_SECRET are required. Optional variables with defaults:
// NOISEMAP_SESSION_TTL (12h), NOISEMAP_CONFIRM_WAIT (2m),
// NOISEMAP_LISTEN_ADDR (127.0.0.1:8080), NOISEMAP_DB_PATH (noisemap.db).
func Load() (*Config, error) {
	ledgerURL := os.Getenv("NOISEMAP_LEDGER_URL")
	if ledgerURL == "" {
		return nil, fmt.Errorf("NOISEMAP_LEDGER_URL is required")
	}

	relayerURL := os.Getenv("NOISEMAP_RELAYER_URL")
	if relayerURL == "" {
		return nil, fmt.Errorf("NOISEMAP_RELAYER_URL is required")
	}

	contract := os.Getenv("NOISEMAP_CONTRACT")
	if contract == "" {
		return nil, fmt.Errorf("NOISEMAP_CONTRACT is required")
	}

	sessionSecret := os.Getenv("NOISEMAP_SESSION_SECRET")
	if sessionSecret == "" {
		return nil, fmt.Errorf("NOISEMAP_SESSION_SECRET is required")
	}

	sessionTTL := 12 * time.Hour
	if v, ok := os.LookupEnv("NOISEMAP_SESSION_TTL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("NOISEMAP_SESSION_TTL has invalid duration %q: %w", v, err)
		}
		sessionTTL = parsed
	}

	confirmWait := 2 * time.Minute
	if v, ok := os.LookupEnv("NOISEMAP_CONFIRM_WAIT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("NOISEMAP_CONFIRM_WAIT has invalid duration %q: %w", v, err)
		}
		confirmWait = parsed
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("NOISEMAP_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "noisemap.db"
	if v, ok := os.LookupEnv("NOISEMAP_DB_PATH"); ok {
		dbPath = v
	}

	return &Config{
		LedgerGatewayURL: ledgerURL,
		RelayerURL:       relayerURL,
		ContractAddress:  contract,
		SessionSecret:    sessionSecret,
		SessionTTL:       sessionTTL,
		ConfirmWait:      confirmWait,
		ListenAddr:       listenAddr,
		DBPath:           dbPath,
	}, nil
}

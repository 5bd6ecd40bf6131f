// Package boot provides runtime configuration parsed from the raw config file.
package boot

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chanmux/chanmux/internal/config"
)

// RuntimeConfig holds parsed runtime settings (JWT, server address, sync and
// claim timings, credential key). Values may be overridden by environment
// variables (e.g. HTTP_ADDR, BASE_URL).
type RuntimeConfig struct {
	JwtSecret      string
	JwtExpiresIn   time.Duration
	ServiceKey     string
	ServerAddr     string
	BaseURL        string
	CredentialKey  [32]byte
	SyncCron       string
	SyncWorkers    int
	ClaimTTL       time.Duration
	ReaperInterval time.Duration
}

// ProvideRuntimeConfig builds RuntimeConfig from the given config and applies env overrides.
func ProvideRuntimeConfig(cfg config.Config) (*RuntimeConfig, error) {
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	if strings.TrimSpace(cfg.Auth.ServiceKey) == "" {
		return nil, errors.New("auth service key is required")
	}

	jwtExpiresIn, err := time.ParseDuration(cfg.Auth.JWTExpiresIn)
	if err != nil {
		return nil, fmt.Errorf("invalid jwt expires in: %w", err)
	}
	claimTTL, err := time.ParseDuration(cfg.Claims.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("invalid claim session ttl: %w", err)
	}
	reaperInterval, err := time.ParseDuration(cfg.Claims.ReaperInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid claim reaper interval: %w", err)
	}

	key, err := parseCredentialKey(cfg.Vault.CredentialKey)
	if err != nil {
		return nil, err
	}

	workers := cfg.Sync.Workers
	if workers <= 0 {
		workers = config.DefaultSyncWorkers
	}

	ret := &RuntimeConfig{
		JwtSecret:      cfg.Auth.JWTSecret,
		JwtExpiresIn:   jwtExpiresIn,
		ServiceKey:     cfg.Auth.ServiceKey,
		ServerAddr:     cfg.Server.Addr,
		BaseURL:        strings.TrimRight(cfg.Server.BaseURL, "/"),
		CredentialKey:  key,
		SyncCron:       cfg.Sync.Cron,
		SyncWorkers:    workers,
		ClaimTTL:       claimTTL,
		ReaperInterval: reaperInterval,
	}

	if value := os.Getenv("HTTP_ADDR"); value != "" {
		ret.ServerAddr = value
	}
	if value := os.Getenv("BASE_URL"); value != "" {
		ret.BaseURL = strings.TrimRight(value, "/")
	}
	return ret, nil
}

func parseCredentialKey(raw string) ([32]byte, error) {
	var key [32]byte
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return key, errors.New("vault credential key is required")
	}
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return key, fmt.Errorf("invalid credential key: %w", err)
	}
	if len(decoded) != 32 {
		return key, fmt.Errorf("credential key must be 32 bytes, got %d", len(decoded))
	}
	copy(key[:], decoded)
	return key, nil
}

// Package config loads and exposes application configuration (TOML).
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath   = "config.toml"
	DefaultHTTPAddr     = ":8080"
	DefaultJWTExpiresIn = "24h"
	DefaultPGHost       = "127.0.0.1"
	DefaultPGPort       = 5432
	DefaultPGUser       = "postgres"
	DefaultPGDatabase   = "chanmux"
	DefaultPGSSLMode    = "disable"
	DefaultSyncCron     = "0 * * * *"
	DefaultSyncWorkers  = 4
	DefaultClaimTTL     = "30m"
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Auth     AuthConfig     `toml:"auth"`
	Postgres PostgresConfig `toml:"postgres"`
	Vault    VaultConfig    `toml:"vault"`
	Sync     SyncConfig     `toml:"sync"`
	Claims   ClaimsConfig   `toml:"claims"`
	Meta     MetaConfig     `toml:"meta"`
	Slack    SlackConfig    `toml:"slack"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds the HTTP server listen address and the public base URL
// used when building provider callback URLs.
type ServerConfig struct {
	Addr    string `toml:"addr"`
	BaseURL string `toml:"base_url"`
}

// AuthConfig holds the JWT secret, token expiry, and the bootstrap service
// key accepted by POST /auth/token.
type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
	ServiceKey   string `toml:"service_key"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// VaultConfig holds the key used to seal channel credentials at rest
// (64 hex chars, 32 bytes).
type VaultConfig struct {
	CredentialKey string `toml:"credential_key"`
}

// SyncConfig holds the template sync cadence and worker pool size.
type SyncConfig struct {
	Cron    string `toml:"cron"`
	Workers int    `toml:"workers"`
}

// ClaimsConfig holds claim session TTL and reaper interval.
type ClaimsConfig struct {
	SessionTTL     string `toml:"session_ttl"`
	ReaperInterval string `toml:"reaper_interval"`
}

// MetaConfig holds the Meta (Facebook/Instagram/WhatsApp Cloud) app used for
// OAuth claims and Graph API calls.
type MetaConfig struct {
	AppID        string `toml:"app_id"`
	AppSecret    string `toml:"app_secret"`
	GraphVersion string `toml:"graph_version"`
}

// SlackConfig holds the Slack app used for OAuth claims.
type SlackConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// Load reads and parses the TOML config file at path and applies default values for missing fields.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr:    DefaultHTTPAddr,
			BaseURL: "http://127.0.0.1:8080",
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Sync: SyncConfig{
			Cron:    DefaultSyncCron,
			Workers: DefaultSyncWorkers,
		},
		Claims: ClaimsConfig{
			SessionTTL:     DefaultClaimTTL,
			ReaperInterval: "1m",
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

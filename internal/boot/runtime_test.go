package boot_test

import (
	"strings"
	"testing"
	"time"

	"github.com/chanmux/chanmux/internal/boot"
	"github.com/chanmux/chanmux/internal/config"
)

func validConfig() config.Config {
	cfg, _ := config.Load("/nonexistent")
	cfg.Auth.JWTSecret = "s3cret"
	cfg.Auth.ServiceKey = "svc-key"
	cfg.Vault.CredentialKey = strings.Repeat("ab", 32)
	return cfg
}

func TestProvideRuntimeConfig(t *testing.T) {
	rc, err := boot.ProvideRuntimeConfig(validConfig())
	if err != nil {
		t.Fatalf("ProvideRuntimeConfig() = %v, want nil", err)
	}
	if rc.JwtExpiresIn != 24*time.Hour {
		t.Fatalf("JwtExpiresIn = %v, want 24h", rc.JwtExpiresIn)
	}
	if rc.ClaimTTL != 30*time.Minute {
		t.Fatalf("ClaimTTL = %v, want 30m", rc.ClaimTTL)
	}
	if rc.SyncWorkers != config.DefaultSyncWorkers {
		t.Fatalf("SyncWorkers = %d, want %d", rc.SyncWorkers, config.DefaultSyncWorkers)
	}
	if rc.CredentialKey[0] != 0xab || rc.CredentialKey[31] != 0xab {
		t.Fatalf("CredentialKey = %x, want decoded hex key", rc.CredentialKey)
	}
}

func TestProvideRuntimeConfigRequiresSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.JWTSecret = ""
	if _, err := boot.ProvideRuntimeConfig(cfg); err == nil {
		t.Fatal("ProvideRuntimeConfig() without jwt secret = nil error, want error")
	}

	cfg = validConfig()
	cfg.Auth.ServiceKey = " "
	if _, err := boot.ProvideRuntimeConfig(cfg); err == nil {
		t.Fatal("ProvideRuntimeConfig() without service key = nil error, want error")
	}
}

func TestProvideRuntimeConfigRejectsBadKey(t *testing.T) {
	cfg := validConfig()
	cfg.Vault.CredentialKey = "abcd"
	if _, err := boot.ProvideRuntimeConfig(cfg); err == nil {
		t.Fatal("ProvideRuntimeConfig() with a short key = nil error, want error")
	}

	cfg = validConfig()
	cfg.Vault.CredentialKey = strings.Repeat("zz", 32)
	if _, err := boot.ProvideRuntimeConfig(cfg); err == nil {
		t.Fatal("ProvideRuntimeConfig() with non-hex key = nil error, want error")
	}
}

func TestProvideRuntimeConfigEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":7777")
	t.Setenv("BASE_URL", "https://public.example.com/")

	rc, err := boot.ProvideRuntimeConfig(validConfig())
	if err != nil {
		t.Fatalf("ProvideRuntimeConfig() = %v, want nil", err)
	}
	if rc.ServerAddr != ":7777" {
		t.Fatalf("ServerAddr = %q, want :7777", rc.ServerAddr)
	}
	if rc.BaseURL != "https://public.example.com" {
		t.Fatalf("BaseURL = %q, want trailing slash trimmed", rc.BaseURL)
	}
}

package httpapi

import (
	"testing"
	"time"
)

func TestConfigValidateAppliesDefaults(t *testing.T) {
	t.Parallel()
	cfg := Config{SessionSigningKey: "secret-key"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.ListenAddr != defaultListenAddr {
		t.Fatalf("expected default listen addr, got %q", cfg.ListenAddr)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != defaultAllowedOrigin {
		t.Fatalf("expected default origin, got %v", cfg.AllowedOrigins)
	}
	if cfg.SessionIssuer != defaultSessionIssuer {
		t.Fatalf("expected default issuer, got %q", cfg.SessionIssuer)
	}
	if cfg.SessionTTL != defaultSessionTTL {
		t.Fatalf("expected default ttl, got %v", cfg.SessionTTL)
	}
}

func TestConfigValidateRequiresSigningKey(t *testing.T) {
	t.Parallel()
	cfg := Config{ListenAddr: ":9999", SessionTTL: time.Hour}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for missing signing key")
	}
}

func TestParseAllowedOrigins(t *testing.T) {
	t.Parallel()
	origins := ParseAllowedOrigins(" http://a.example , ,http://b.example")
	if len(origins) != 2 || origins[0] != "http://a.example" || origins[1] != "http://b.example" {
		t.Fatalf("unexpected origins: %v", origins)
	}
	if origins := ParseAllowedOrigins("  "); len(origins) != 0 {
		t.Fatalf("expected no origins, got %v", origins)
	}
}

package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefault(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SUGGESTION_TTL_SECONDS", "")
	t.Setenv("STOCK_SWEEP_CRON", "")
	t.Setenv("DEFAULT_COMPANY_ID", "")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.SuggestionTTLSeconds != 60 {
		t.Fatalf("expected default suggestion TTL 60, got %d", cfg.SuggestionTTLSeconds)
	}
	if cfg.SweepCron != "0 * * * *" {
		t.Fatalf("expected hourly sweep default, got %q", cfg.SweepCron)
	}
	if cfg.CompanyID != "main-co" {
		t.Fatalf("expected default company main-co, got %q", cfg.CompanyID)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address %q", cfg.Address())
	}
}

func TestLoadIgnoresInvalidTTL(t *testing.T) {
	t.Setenv("SUGGESTION_TTL_SECONDS", "not-a-number")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "-5")

	cfg := Load()
	if cfg.SuggestionTTLSeconds != 60 {
		t.Fatalf("expected fallback TTL 60, got %d", cfg.SuggestionTTLSeconds)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("expected fallback token TTL 480, got %d", cfg.AccessTokenTTLMinutes)
	}
}

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Address != ":8080" {
		t.Errorf("expected default address :8080, got %s", cfg.Server.Address)
	}
	if cfg.Server.BasePath != "/" {
		t.Errorf("expected default base path /, got %s", cfg.Server.BasePath)
	}
	if !cfg.IsLocal() {
		t.Errorf("expected local environment by default, got %s", cfg.Server.Environment)
	}
	if cfg.Session.CookieName != defaultSessionCookie {
		t.Errorf("unexpected session cookie %s", cfg.Session.CookieName)
	}
	if cfg.Session.IdleTimeout != 30*time.Minute {
		t.Errorf("unexpected idle timeout %s", cfg.Session.IdleTimeout)
	}
	if cfg.CSRF.HeaderName != "X-CSRF-Token" {
		t.Errorf("unexpected csrf header %s", cfg.CSRF.HeaderName)
	}
	if cfg.Upstream.Timeout != defaultUpstreamTimeout {
		t.Errorf("unexpected upstream timeout %s", cfg.Upstream.Timeout)
	}
	if cfg.OAuth.Google.Enabled() || cfg.OAuth.Apple.Enabled() {
		t.Errorf("expected oauth providers disabled by default")
	}
	if cfg.Locale.Fallback != "en" {
		t.Errorf("expected en fallback, got %s", cfg.Locale.Fallback)
	}
	if cfg.Server.LoginAttemptsPerMinute != defaultLoginAttemptsPerMinute || cfg.Server.LoginAttemptBurst != defaultLoginAttemptBurst {
		t.Errorf("unexpected login throttle %d/%d", cfg.Server.LoginAttemptsPerMinute, cfg.Server.LoginAttemptBurst)
	}
}

func TestLoadLoginThrottle(t *testing.T) {
	env := map[string]string{
		"SIGNIN_LOGIN_ATTEMPTS_PER_MINUTE": "0",
		"SIGNIN_LOGIN_ATTEMPT_BURST":       "not-a-number",
	}
	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.LoginAttemptsPerMinute != 0 {
		t.Errorf("expected throttle disabled, got %d", cfg.Server.LoginAttemptsPerMinute)
	}
	if cfg.Server.LoginAttemptBurst != defaultLoginAttemptBurst {
		t.Errorf("expected invalid burst to fall back, got %d", cfg.Server.LoginAttemptBurst)
	}
}

func TestLoadRequiresKeysOutsideLocal(t *testing.T) {
	env := map[string]string{
		"SIGNIN_ENVIRONMENT":       "prod",
		"SIGNIN_SESSION_HASH_KEY":  "short",
		"SIGNIN_SESSION_BLOCK_KEY": "abc",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatalf("expected validation error")
	}
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	want := map[string]bool{"Session.HashKey": true, "Upstream.BaseURL": true, "Session.BlockKey": true}
	for _, field := range vErr.Fields() {
		delete(want, field)
	}
	if len(want) != 0 {
		t.Fatalf("missing expected fields %v in %v", want, vErr.Fields())
	}
}

func TestLoadResolvesSecretReferences(t *testing.T) {
	env := map[string]string{
		"SIGNIN_ENVIRONMENT":      "prod",
		"SIGNIN_UPSTREAM_URL":     "https://auth.example.com",
		"SIGNIN_SESSION_HASH_KEY": "sm://projects/demo/secrets/session-hash",
	}
	var seen string
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		seen = ref
		return "0123456789abcdef0123456789abcdef", nil
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if seen != "secret://projects/demo/secrets/session-hash" {
		t.Fatalf("expected normalised secret ref, got %s", seen)
	}
	if cfg.Session.HashKey != "0123456789abcdef0123456789abcdef" {
		t.Fatalf("expected resolved hash key, got %s", cfg.Session.HashKey)
	}
}

func TestLoadSecretResolutionFailure(t *testing.T) {
	env := map[string]string{
		"SIGNIN_MEMORY_JWT_SECRET": "secret://projects/demo/secrets/jwt",
	}
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %v", err)
	}
	if !errors.Is(err, errSecretResolverNotConfigured) {
		t.Fatalf("expected resolver not configured, got %v", err)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# local overrides\nexport SIGNIN_HTTP_ADDR=\":9090\"\nSIGNIN_UPSTREAM_TIMEOUT=3s\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(path), WithEnvMap(map[string]string{
		"SIGNIN_UPSTREAM_TIMEOUT": "5s",
	}))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Address != ":9090" {
		t.Errorf("expected address from .env, got %s", cfg.Server.Address)
	}
	if cfg.Upstream.Timeout != 5*time.Second {
		t.Errorf("expected explicit map to override .env, got %s", cfg.Upstream.Timeout)
	}
}

package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile          = ".env"
	defaultAddress          = ":8080"
	defaultBasePath         = "/"
	defaultEnvironment      = "local"
	defaultReadTimeout      = 10 * time.Second
	defaultWriteTimeout     = 30 * time.Second
	defaultIdleTimeout      = 60 * time.Second
	defaultSessionCookie    = "signin_session"
	defaultSessionLifetime  = 12 * time.Hour
	defaultSessionRemember  = 30 * 24 * time.Hour
	defaultSessionIdle      = 30 * time.Minute
	defaultCSRFCookie       = "signin_csrf"
	defaultCSRFHeader       = "X-CSRF-Token"
	defaultUpstreamTimeout  = 10 * time.Second
	defaultLocaleFallback   = "en"
	minSessionHashKeyLength = 32

	defaultLoginAttemptsPerMinute = 10
	defaultLoginAttemptBurst      = 5
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server   ServerConfig
	Session  SessionConfig
	CSRF     CSRFConfig
	Upstream UpstreamConfig
	Firebase FirebaseConfig
	OAuth    OAuthConfig
	Memory   MemoryConfig
	Locale   LocaleConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Address      string
	BasePath     string
	LoginPath    string
	SignUpPath   string
	ForgotPath   string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	LoginAttemptsPerMinute int
	LoginAttemptBurst      int
}

// SessionConfig controls the signed session cookie.
type SessionConfig struct {
	CookieName       string
	HashKey          string
	BlockKey         string
	CookieSecure     bool
	Lifetime         time.Duration
	RememberLifetime time.Duration
	IdleTimeout      time.Duration
}

// CSRFConfig controls the double-submit cookie.
type CSRFConfig struct {
	CookieName string
	HeaderName string
	Secure     bool
}

// UpstreamConfig points at the external authentication API.
type UpstreamConfig struct {
	BaseURL string
	Timeout time.Duration
}

// FirebaseConfig stores Firebase project settings used to verify session tokens.
type FirebaseConfig struct {
	ProjectID string
}

// OAuthConfig lists federated providers rendered as sign-in buttons.
type OAuthConfig struct {
	RedirectBaseURL string
	Google          OAuthProviderConfig
	Apple           OAuthProviderConfig
}

// OAuthProviderConfig holds the client registration for a single provider.
type OAuthProviderConfig struct {
	ClientID     string
	ClientSecret string
}

// Enabled reports whether the provider has a client registration.
func (c OAuthProviderConfig) Enabled() bool {
	return strings.TrimSpace(c.ClientID) != ""
}

// MemoryConfig configures the in-process development backend.
type MemoryConfig struct {
	JWTSecret      string
	SeedEmail      string
	SeedPassword   string
	SeedTOTPSecret string
}

// LocaleConfig selects the message catalog fallback.
type LocaleConfig struct {
	Fallback string
}

// IsLocal reports whether the server runs in the local development environment.
func (c Config) IsLocal() bool {
	return strings.EqualFold(c.Server.Environment, defaultEnvironment)
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.LookupEnv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets a custom secret resolver used for secret:// and sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// Load assembles the configuration by combining defaults, .env overrides,
// environment variables, and optional secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		}),
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Address:      stringWithDefault(lookup, "SIGNIN_HTTP_ADDR", defaultAddress),
			BasePath:     stringWithDefault(lookup, "SIGNIN_BASE_PATH", defaultBasePath),
			LoginPath:    stringWithDefault(lookup, "SIGNIN_LOGIN_PATH", ""),
			SignUpPath:   stringWithDefault(lookup, "SIGNIN_SIGNUP_PATH", "/sign-up"),
			ForgotPath:   stringWithDefault(lookup, "SIGNIN_FORGOT_PASSWORD_PATH", "#"),
			Environment:  strings.ToLower(stringWithDefault(lookup, "SIGNIN_ENVIRONMENT", defaultEnvironment)),
			ReadTimeout:  durationWithDefault(lookup, "SIGNIN_HTTP_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "SIGNIN_HTTP_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "SIGNIN_HTTP_IDLE_TIMEOUT", defaultIdleTimeout),

			LoginAttemptsPerMinute: intWithDefault(lookup, "SIGNIN_LOGIN_ATTEMPTS_PER_MINUTE", defaultLoginAttemptsPerMinute),
			LoginAttemptBurst:      intWithDefault(lookup, "SIGNIN_LOGIN_ATTEMPT_BURST", defaultLoginAttemptBurst),
		},
		Session: SessionConfig{
			CookieName:       stringWithDefault(lookup, "SIGNIN_SESSION_COOKIE", defaultSessionCookie),
			HashKey:          stringWithDefault(lookup, "SIGNIN_SESSION_HASH_KEY", ""),
			BlockKey:         stringWithDefault(lookup, "SIGNIN_SESSION_BLOCK_KEY", ""),
			CookieSecure:     boolWithDefault(lookup, "SIGNIN_SESSION_COOKIE_SECURE", false),
			Lifetime:         durationWithDefault(lookup, "SIGNIN_SESSION_LIFETIME", defaultSessionLifetime),
			RememberLifetime: durationWithDefault(lookup, "SIGNIN_SESSION_REMEMBER_LIFETIME", defaultSessionRemember),
			IdleTimeout:      durationWithDefault(lookup, "SIGNIN_SESSION_IDLE_TIMEOUT", defaultSessionIdle),
		},
		CSRF: CSRFConfig{
			CookieName: stringWithDefault(lookup, "SIGNIN_CSRF_COOKIE", defaultCSRFCookie),
			HeaderName: stringWithDefault(lookup, "SIGNIN_CSRF_HEADER", defaultCSRFHeader),
			Secure:     boolWithDefault(lookup, "SIGNIN_CSRF_COOKIE_SECURE", false),
		},
		Upstream: UpstreamConfig{
			BaseURL: stringWithDefault(lookup, "SIGNIN_UPSTREAM_URL", ""),
			Timeout: durationWithDefault(lookup, "SIGNIN_UPSTREAM_TIMEOUT", defaultUpstreamTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID: stringWithDefault(lookup, "FIREBASE_PROJECT_ID", ""),
		},
		OAuth: OAuthConfig{
			RedirectBaseURL: stringWithDefault(lookup, "SIGNIN_OAUTH_REDIRECT_BASE_URL", "http://localhost:8080"),
			Google: OAuthProviderConfig{
				ClientID:     stringWithDefault(lookup, "SIGNIN_OAUTH_GOOGLE_CLIENT_ID", ""),
				ClientSecret: stringWithDefault(lookup, "SIGNIN_OAUTH_GOOGLE_CLIENT_SECRET", ""),
			},
			Apple: OAuthProviderConfig{
				ClientID:     stringWithDefault(lookup, "SIGNIN_OAUTH_APPLE_CLIENT_ID", ""),
				ClientSecret: stringWithDefault(lookup, "SIGNIN_OAUTH_APPLE_CLIENT_SECRET", ""),
			},
		},
		Memory: MemoryConfig{
			JWTSecret:      stringWithDefault(lookup, "SIGNIN_MEMORY_JWT_SECRET", ""),
			SeedEmail:      stringWithDefault(lookup, "SIGNIN_MEMORY_SEED_EMAIL", ""),
			SeedPassword:   stringWithDefault(lookup, "SIGNIN_MEMORY_SEED_PASSWORD", ""),
			SeedTOTPSecret: stringWithDefault(lookup, "SIGNIN_MEMORY_SEED_TOTP_SECRET", ""),
		},
		Locale: LocaleConfig{
			Fallback: strings.ToLower(stringWithDefault(lookup, "SIGNIN_LOCALE_FALLBACK", defaultLocaleFallback)),
		},
	}

	secretFields := []struct {
		name  string
		field *string
	}{
		{"Session.HashKey", &cfg.Session.HashKey},
		{"Session.BlockKey", &cfg.Session.BlockKey},
		{"OAuth.Google.ClientSecret", &cfg.OAuth.Google.ClientSecret},
		{"OAuth.Apple.ClientSecret", &cfg.OAuth.Apple.ClientSecret},
		{"Memory.JWTSecret", &cfg.Memory.JWTSecret},
		{"Memory.SeedPassword", &cfg.Memory.SeedPassword},
	}
	for _, target := range secretFields {
		resolved, err := resolveSecret(ctx, *target.field, options.secret)
		if err != nil {
			return Config{}, fmt.Errorf("config: resolve %s: %w", target.name, err)
		}
		*target.field = resolved
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsSecretReference reports whether the value points at a secret manager entry.
func IsSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if value == "" || !IsSecretReference(value) {
		return value, nil
	}
	normalized := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		var secretErr *SecretError
		if errors.As(err, &secretErr) {
			return "", err
		}
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if strings.TrimSpace(cfg.Server.Address) == "" {
		missing = append(missing, "Server.Address")
	}
	if cfg.Upstream.Timeout <= 0 {
		missing = append(missing, "Upstream.Timeout")
	}
	if cfg.Session.Lifetime <= 0 {
		missing = append(missing, "Session.Lifetime")
	}
	if !cfg.IsLocal() {
		if len(cfg.Session.HashKey) < minSessionHashKeyLength {
			missing = append(missing, "Session.HashKey")
		}
		if strings.TrimSpace(cfg.Upstream.BaseURL) == "" {
			missing = append(missing, "Upstream.BaseURL")
		}
	}
	if cfg.Session.BlockKey != "" {
		switch len(cfg.Session.BlockKey) {
		case 16, 24, 32:
		default:
			missing = append(missing, "Session.BlockKey")
		}
	}
	if (cfg.OAuth.Google.Enabled() || cfg.OAuth.Apple.Enabled()) && strings.TrimSpace(cfg.OAuth.RedirectBaseURL) == "" {
		missing = append(missing, "OAuth.RedirectBaseURL")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}

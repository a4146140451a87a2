package testutil

import (
	"net/http/httptest"
	"testing"
	"time"

	"finitefield.org/hanko-signin/internal/signin/federated"
	"finitefield.org/hanko-signin/internal/signin/httpserver"
	"finitefield.org/hanko-signin/internal/signin/httpserver/middleware"
	"finitefield.org/hanko-signin/internal/signin/login"
	appsession "finitefield.org/hanko-signin/internal/signin/session"
)

// ServerOption customises the HTTP server configuration for tests.
type ServerOption func(*httpserver.Config)

// WithLoginService wires the external login operation.
func WithLoginService(service login.Service) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.LoginService = service
	}
}

// WithAuthenticator overrides the token verifier guarding the account page.
func WithAuthenticator(auth middleware.Authenticator) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Authenticator = auth
	}
}

// WithProviders sets the federated sign-in buttons.
func WithProviders(buttons ...federated.Button) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Providers = federated.NewRegistry(buttons...)
	}
}

// WithBasePath mounts the routes under path.
func WithBasePath(path string) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.BasePath = path
	}
}

// WithLoginRateLimit throttles POST /login per client address.
func WithLoginRateLimit(perMinute, burst int) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.LoginAttemptsPerMinute = perMinute
		cfg.LoginAttemptBurst = burst
	}
}

// WithClock pins the server clock.
func WithClock(now func() time.Time) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Now = now
	}
}

// NewServer constructs an httptest server running the sign-in HTTP stack with sensible defaults.
func NewServer(t testing.TB, opts ...ServerOption) *httptest.Server {
	t.Helper()

	sessions, err := appsession.NewManager(appsession.Config{
		CookieName: "signin_session",
		HashKey:    []byte("0123456789abcdef0123456789abcdef"),
		BlockKey:   []byte("fedcba9876543210fedcba9876543210"),
	})
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}

	cfg := httpserver.Config{
		Address:              ":0",
		BasePath:             "/",
		Environment:          "test",
		CSRFCookieName:       "csrf_token",
		CSRFHeaderName:       "X-CSRF-Token",
		Sessions:             sessions,
		Authenticator:        middleware.DefaultAuthenticator(),
		LoginService:         login.NewStaticService(nil),
		OAuthRedirectBaseURL: "https://signin.example.com",
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	srv, err := httpserver.New(cfg)
	if err != nil {
		t.Fatalf("http server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/securecookie"
	"go.uber.org/zap"

	custommw "finitefield.org/hanko-signin/internal/signin/httpserver/middleware"
	"finitefield.org/hanko-signin/internal/signin/federated"
	"finitefield.org/hanko-signin/internal/signin/i18n"
	"finitefield.org/hanko-signin/internal/signin/login"
	"finitefield.org/hanko-signin/internal/signin/observability"
	appsession "finitefield.org/hanko-signin/internal/signin/session"
	"finitefield.org/hanko-signin/public"
)

// Config holds runtime options for the sign-in HTTP server.
type Config struct {
	Address     string
	BasePath    string
	LoginPath   string
	SignUpPath  string
	ForgotPath  string
	Environment string

	Logger        *zap.Logger
	Authenticator custommw.Authenticator
	Sessions      custommw.SessionStore
	LoginService  login.Service
	Providers     *federated.Registry
	Catalog       *i18n.Bundle

	// OAuthRedirectBaseURL is the public origin providers redirect back to.
	OAuthRedirectBaseURL string

	CSRFCookieName   string
	CSRFCookieSecure bool
	CSRFHeaderName   string
	AuthCookieSecure bool

	// LoginAttemptsPerMinute throttles POST /login per client address. Zero disables it.
	LoginAttemptsPerMinute int
	LoginAttemptBurst      int

	RequestTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration

	Now func() time.Time
}

// New constructs the HTTP server with its middleware stack and embedded assets.
func New(cfg Config) (*http.Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NoopLogger()
	}

	sessions := cfg.Sessions
	if sessions == nil {
		manager, err := appsession.NewManager(appsession.Config{
			HashKey:      securecookie.GenerateRandomKey(32),
			BlockKey:     securecookie.GenerateRandomKey(32),
			CookieSecure: cfg.AuthCookieSecure,
		})
		if err != nil {
			return nil, err
		}
		logger.Warn("no session store configured; sessions will not survive a restart")
		sessions = manager
	}

	catalog := cfg.Catalog
	if catalog == nil {
		bundle, err := i18n.Default("en")
		if err != nil {
			return nil, err
		}
		catalog = bundle
	}

	service := cfg.LoginService
	if service == nil {
		logger.Warn("no login service configured; every sign-in attempt will be rejected")
		service = &login.StaticService{Err: login.ErrNotConfigured}
	}

	providers := cfg.Providers
	if providers == nil {
		providers = federated.NewRegistry()
	}

	staticContent, err := public.StaticFS()
	if err != nil {
		return nil, err
	}

	basePath := normalizeBase(cfg.BasePath)
	paths := routePaths{
		base:   basePath,
		login:  resolvePath(basePath, cfg.LoginPath, "login"),
		logout: resolvePath(basePath, "", "logout"),
		signUp: resolvePath(basePath, cfg.SignUpPath, "signup"),
		forgot: resolvePath(basePath, cfg.ForgotPath, "forgot-password"),
	}

	requestTimeout := durationOr(cfg.RequestTimeout, 30*time.Second)

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(observability.InjectLoggerMiddleware(logger))
	router.Use(observability.RequestLoggerMiddleware())
	router.Use(observability.RecoveryMiddleware(logger))
	router.Use(chimw.Timeout(requestTimeout))

	router.Get(joinPath(basePath, "healthz"), healthz)
	router.Handle("/public/static/*", http.StripPrefix("/public/static/", http.FileServer(http.FS(staticContent))))

	h := &handlers{
		service:     service,
		providers:   providers,
		catalog:     catalog,
		paths:       paths,
		redirectURL: strings.TrimRight(strings.TrimSpace(cfg.OAuthRedirectBaseURL), "/"),
		cookieSafe:  cfg.AuthCookieSecure,
		attempts:    newAttemptLimiter(cfg.LoginAttemptsPerMinute, cfg.LoginAttemptBurst, cfg.Now),
		now:         nowOr(cfg.Now),
	}

	csrfCfg := custommw.CSRFConfig{
		CookieName: cfg.CSRFCookieName,
		CookiePath: basePath,
		HeaderName: cfg.CSRFHeaderName,
		Secure:     cfg.CSRFCookieSecure,
	}

	router.Group(func(r chi.Router) {
		r.Use(custommw.HTMX())
		r.Use(custommw.NoStore())
		r.Use(custommw.Locale(catalog))
		r.Use(custommw.Environment(cfg.Environment))
		r.Use(custommw.RequestInfoMiddleware(basePath))
		r.Use(custommw.Session(sessions))
		r.Use(custommw.CSRF(csrfCfg))

		r.Get(paths.login, h.LoginForm)
		r.Post(paths.login, h.LoginSubmit)
		r.Post(paths.login+"/reset", h.LoginReset)
		r.Get(paths.login+"/{provider}", h.FederatedStart)
		r.Get(paths.login+"/{provider}/callback", h.FederatedCallback)
		r.Post(paths.logout, h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(custommw.Auth(cfg.Authenticator, paths.login))
			r.Get(basePath, h.Account)
		})
	})

	return &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  durationOr(cfg.ReadTimeout, 10*time.Second),
		WriteTimeout: durationOr(cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:  durationOr(cfg.IdleTimeout, 60*time.Second),
	}, nil
}

type routePaths struct {
	base   string
	login  string
	logout string
	signUp string
	forgot string
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func normalizeBase(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return "/"
	}
	if !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	if len(base) > 1 && strings.HasSuffix(base, "/") {
		base = strings.TrimRight(base, "/")
	}
	return base
}

// resolvePath keeps absolute overrides (they may point at another service),
// otherwise places name under base.
func resolvePath(base, override, name string) string {
	if o := strings.TrimSpace(override); o != "" {
		if strings.HasPrefix(o, "/") || strings.HasPrefix(o, "#") || strings.Contains(o, "://") {
			return o
		}
		return joinPath(base, o)
	}
	return joinPath(base, name)
}

func joinPath(base, name string) string {
	if base == "/" {
		return "/" + strings.TrimLeft(name, "/")
	}
	return base + "/" + strings.TrimLeft(name, "/")
}

func durationOr(value, fallback time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return fallback
}

func nowOr(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}

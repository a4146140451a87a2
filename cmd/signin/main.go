package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/gorilla/securecookie"
	"go.uber.org/zap"

	"finitefield.org/hanko-signin/internal/signin/config"
	"finitefield.org/hanko-signin/internal/signin/federated"
	"finitefield.org/hanko-signin/internal/signin/httpserver"
	"finitefield.org/hanko-signin/internal/signin/httpserver/middleware"
	"finitefield.org/hanko-signin/internal/signin/i18n"
	"finitefield.org/hanko-signin/internal/signin/login"
	"finitefield.org/hanko-signin/internal/signin/observability"
	"finitefield.org/hanko-signin/internal/signin/secrets"
	appsession "finitefield.org/hanko-signin/internal/signin/session"
)

func main() {
	rootCtx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("signin")

	resolver := secrets.NewResolver(rootCtx,
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithProject(os.Getenv("SIGNIN_SECRETS_PROJECT_ID")),
	)
	defer func() {
		if err := resolver.Close(); err != nil {
			logger.Warn("secret resolver close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(rootCtx, config.WithSecretResolver(resolver))
	if err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			logger.Fatal("invalid configuration", zap.Strings("fields", verr.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	catalog, err := i18n.Default(cfg.Locale.Fallback)
	if err != nil {
		logger.Fatal("failed to load message catalog", zap.Error(err))
	}

	sessions, err := buildSessions(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise sessions", zap.Error(err))
	}

	service, tokens, err := buildLoginService(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise login service", zap.Error(err))
	}

	srv, err := httpserver.New(httpserver.Config{
		Address:              cfg.Server.Address,
		BasePath:             cfg.Server.BasePath,
		LoginPath:            cfg.Server.LoginPath,
		SignUpPath:           cfg.Server.SignUpPath,
		ForgotPath:           cfg.Server.ForgotPath,
		Environment:          cfg.Server.Environment,
		Logger:               logger,
		Authenticator:        buildAuthenticator(rootCtx, cfg, tokens, logger),
		Sessions:             sessions,
		LoginService:         service,
		Providers:            buildProviders(cfg),
		Catalog:              catalog,
		OAuthRedirectBaseURL: cfg.OAuth.RedirectBaseURL,
		CSRFCookieName:       cfg.CSRF.CookieName,
		CSRFCookieSecure:     cfg.CSRF.Secure,
		CSRFHeaderName:       cfg.CSRF.HeaderName,
		AuthCookieSecure:     cfg.Session.CookieSecure,

		LoginAttemptsPerMinute: cfg.Server.LoginAttemptsPerMinute,
		LoginAttemptBurst:      cfg.Server.LoginAttemptBurst,

		ReadTimeout:          cfg.Server.ReadTimeout,
		WriteTimeout:         cfg.Server.WriteTimeout,
		IdleTimeout:          cfg.Server.IdleTimeout,
	})
	if err != nil {
		logger.Fatal("failed to build http server", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(rootCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	logger.Info("sign-in server listening",
		zap.String("addr", cfg.Server.Address),
		zap.String("base_path", cfg.Server.BasePath),
		zap.String("environment", cfg.Server.Environment),
	)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		cancel()
		stop()
		os.Exit(1)
	}
	logger.Info("sign-in server stopped")
}

func buildSessions(cfg config.Config, logger *zap.Logger) (*appsession.Manager, error) {
	hashKey := []byte(cfg.Session.HashKey)
	blockKey := []byte(cfg.Session.BlockKey)
	if len(hashKey) == 0 {
		logger.Warn("SIGNIN_SESSION_HASH_KEY not set; generating an ephemeral key")
		hashKey = securecookie.GenerateRandomKey(32)
	}
	return appsession.NewManager(appsession.Config{
		CookieName:       cfg.Session.CookieName,
		HashKey:          hashKey,
		BlockKey:         blockKey,
		CookiePath:       cfg.Server.BasePath,
		CookieSecure:     cfg.Session.CookieSecure,
		IdleTimeout:      cfg.Session.IdleTimeout,
		Lifetime:         cfg.Session.Lifetime,
		RememberLifetime: cfg.Session.RememberLifetime,
	})
}

// buildLoginService prefers the upstream authentication API. Without one it
// falls back to the in-process backend, which also returns its token service
// so the account page can verify the tokens it issues.
func buildLoginService(cfg config.Config, logger *zap.Logger) (login.Service, *login.TokenService, error) {
	if cfg.Upstream.BaseURL != "" {
		service, err := login.NewHTTPService(cfg.Upstream.BaseURL, nil, cfg.Upstream.Timeout)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using upstream authentication API", zap.String("base_url", cfg.Upstream.BaseURL))
		return service, nil, nil
	}

	secret := cfg.Memory.JWTSecret
	if secret == "" {
		logger.Warn("SIGNIN_MEMORY_JWT_SECRET not set; generating an ephemeral signing key")
		secret = string(securecookie.GenerateRandomKey(32))
	}
	tokens, err := login.NewTokenService(secret, cfg.Session.Lifetime)
	if err != nil {
		return nil, nil, err
	}
	memory, err := login.NewMemoryService(tokens)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Memory.SeedEmail != "" {
		user, err := memory.AddUser(cfg.Memory.SeedEmail, cfg.Memory.SeedPassword, cfg.Memory.SeedTOTPSecret)
		if err != nil {
			return nil, nil, fmt.Errorf("seed memory user: %w", err)
		}
		logger.Info("seeded development account",
			zap.String("email", observability.MaskEmail(user.Email)),
			zap.Bool("two_factor", cfg.Memory.SeedTOTPSecret != ""),
		)
	}
	logger.Warn("no upstream configured; using the in-memory development backend")
	return memory, tokens, nil
}

func buildAuthenticator(ctx context.Context, cfg config.Config, tokens *login.TokenService, logger *zap.Logger) middleware.Authenticator {
	if tokens != nil {
		return middleware.NewJWTAuthenticator(tokens)
	}

	projectID := cfg.Firebase.ProjectID
	if projectID == "" {
		logger.Warn("FIREBASE_PROJECT_ID not set; using passthrough authenticator")
		return middleware.DefaultAuthenticator()
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID})
	if err != nil {
		logger.Error("failed to initialise Firebase app", zap.Error(err))
		return middleware.DefaultAuthenticator()
	}
	client, err := app.Auth(ctx)
	if err != nil {
		logger.Error("failed to initialise Firebase auth client", zap.Error(err))
		return middleware.DefaultAuthenticator()
	}

	logger.Info("Firebase authenticator enabled", zap.String("project", projectID))
	return middleware.NewFirebaseAuthenticator(client)
}

func buildProviders(cfg config.Config) *federated.Registry {
	var buttons []federated.Button
	if cfg.OAuth.Google.Enabled() {
		buttons = append(buttons, federated.Google(cfg.OAuth.Google.ClientID, cfg.OAuth.Google.ClientSecret))
	}
	if cfg.OAuth.Apple.Enabled() {
		buttons = append(buttons, federated.Apple(cfg.OAuth.Apple.ClientID, cfg.OAuth.Apple.ClientSecret))
	}
	return federated.NewRegistry(buttons...)
}

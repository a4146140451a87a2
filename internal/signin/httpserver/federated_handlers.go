package httpserver

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	custommw "finitefield.org/hanko-signin/internal/signin/httpserver/middleware"
	"finitefield.org/hanko-signin/internal/signin/federated"
	"finitefield.org/hanko-signin/internal/signin/login"
	"finitefield.org/hanko-signin/internal/signin/observability"
	"finitefield.org/hanko-signin/internal/signin/templates/auth"
)

// Error codes carried in the ?error= parameter of the sign-in page.
const (
	errOAuthState          = "OAuthState"
	errProviderUnavailable = "ProviderUnavailable"
)

const oauthStateLifetime = 10 * time.Minute

// FederatedStart sends the browser to the provider's authorize endpoint.
func (h *handlers) FederatedStart(w http.ResponseWriter, r *http.Request) {
	logger := observability.FromContext(r.Context())
	callback := h.normalizeCallback(r.URL.Query().Get("callbackUrl"))

	btn, ok := h.providers.Lookup(chi.URLParam(r, "provider"))
	if !ok {
		logger.Info("unknown federated provider", zap.String("provider", chi.URLParam(r, "provider")))
		http.Redirect(w, r, h.loginURL(map[string]string{"error": errProviderUnavailable, "callbackUrl": callback}), http.StatusFound)
		return
	}

	sess, ok := custommw.SessionFromContext(r.Context())
	if !ok || sess == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	state := federated.NewState()
	sess.BeginOAuth(btn.Name(), state, callback, h.now())
	logger.Debug("federated sign-in started", zap.String("provider", btn.Name()))

	http.Redirect(w, r, btn.StartURL(state, h.callbackURI(btn)), http.StatusFound)
}

// FederatedCallback verifies the returned state and hands the code to the login service.
func (h *handlers) FederatedCallback(w http.ResponseWriter, r *http.Request) {
	logger := observability.FromContext(r.Context())
	q := r.URL.Query()

	btn, ok := h.providers.Lookup(chi.URLParam(r, "provider"))
	if !ok {
		http.Redirect(w, r, h.loginURL(map[string]string{"error": errProviderUnavailable}), http.StatusFound)
		return
	}

	sess, _ := custommw.SessionFromContext(r.Context())
	if sess == nil {
		http.Redirect(w, r, h.loginURL(map[string]string{"error": errOAuthState}), http.StatusFound)
		return
	}
	pending, ok := sess.ConsumeOAuth()
	if !ok || !strings.EqualFold(pending.Provider, btn.Name()) || !stateMatches(pending.State, q.Get("state")) {
		logger.Warn("federated state mismatch", zap.String("provider", btn.Name()))
		http.Redirect(w, r, h.loginURL(map[string]string{"error": errOAuthState}), http.StatusFound)
		return
	}
	if h.now().Sub(pending.IssuedAt) > oauthStateLifetime {
		logger.Info("federated state expired", zap.String("provider", btn.Name()))
		http.Redirect(w, r, h.loginURL(map[string]string{"error": errOAuthState, "callbackUrl": pending.Callback}), http.StatusFound)
		return
	}

	if providerErr := q.Get("error"); providerErr != "" {
		logger.Info("provider declined sign-in", zap.String("provider", btn.Name()), zap.String("error", providerErr))
		http.Redirect(w, r, h.loginURL(map[string]string{"error": errOAuthState, "callbackUrl": pending.Callback}), http.StatusFound)
		return
	}
	code := strings.TrimSpace(q.Get("code"))
	if code == "" {
		http.Redirect(w, r, h.loginURL(map[string]string{"error": errOAuthState, "callbackUrl": pending.Callback}), http.StatusFound)
		return
	}

	outcome, err := h.service.LoginFederated(r.Context(), login.FederatedRequest{
		Provider:    btn.Name(),
		Code:        code,
		RedirectURI: h.callbackURI(btn),
		CallbackURL: pending.Callback,
	})
	if err != nil || outcome == nil {
		logger.Warn("federated login call failed", zap.String("provider", btn.Name()), zap.Error(err))
		h.renderLogin(w, r, loginState{Alert: h.alert(r, auth.AlertError, "login.error.generic")}, http.StatusBadGateway)
		return
	}

	if isAccountNotLinked(outcome.ErrorCode) || isAccountNotLinked(outcome.Error) {
		logger.Info("federated account not linked", zap.String("provider", btn.Name()))
		http.Redirect(w, r, h.loginURL(map[string]string{
			"error":       login.CodeAccountNotLinked,
			"callbackUrl": pending.Callback,
		}), http.StatusFound)
		return
	}

	if outcome.SignedIn() {
		email := ""
		if outcome.User != nil {
			email = outcome.User.Email
		}
		h.completeSignIn(w, r, sess, outcome, email, pending.Callback)
		return
	}

	if outcome.TwoFactor && outcome.User != nil && outcome.User.Email != "" {
		sess.BeginTwoFactor(outcome.User.Email)
		http.Redirect(w, r, h.loginURL(map[string]string{"callbackUrl": pending.Callback}), http.StatusFound)
		return
	}

	state, status := h.applyOutcome(r, outcome, "")
	h.renderLogin(w, r, state, status)
}

func (h *handlers) callbackURI(btn federated.Button) string {
	return h.redirectURL + joinPath(h.paths.login, btn.Name()) + "/callback"
}

func stateMatches(expected, actual string) bool {
	if expected == "" || actual == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(actual)) == 1
}

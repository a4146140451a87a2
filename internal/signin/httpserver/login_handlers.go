package httpserver

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/a-h/templ"
	"go.uber.org/zap"

	custommw "finitefield.org/hanko-signin/internal/signin/httpserver/middleware"
	"finitefield.org/hanko-signin/internal/signin/federated"
	"finitefield.org/hanko-signin/internal/signin/i18n"
	"finitefield.org/hanko-signin/internal/signin/login"
	"finitefield.org/hanko-signin/internal/signin/observability"
	appsession "finitefield.org/hanko-signin/internal/signin/session"
	"finitefield.org/hanko-signin/internal/signin/templates/auth"
)

// legacyAccountNotLinked is the spelling some providers' adapters still emit.
const legacyAccountNotLinked = "OAuthAuthenticatorNotLinked"

type handlers struct {
	service     login.Service
	providers   *federated.Registry
	catalog     *i18n.Bundle
	paths       routePaths
	redirectURL string
	cookieSafe  bool
	attempts    *attemptLimiter
	now         func() time.Time
}

// loginState is what a request contributes to the rendered form.
type loginState struct {
	Email     string
	Remember  bool
	Alert     *auth.Alert
	TwoFactor bool
}

func (h *handlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sess, _ := custommw.SessionFromContext(r.Context())

	// Without a token the account page would send the visitor straight back here.
	if isSignedIn(sess) && custommw.TokenFromRequest(r) != "" && !forceLogin(r) {
		http.Redirect(w, r, h.redirectTarget(q.Get("callbackUrl")), http.StatusFound)
		return
	}

	state := loginState{Email: strings.TrimSpace(q.Get("email"))}
	if sess != nil && sess.TwoFactorPending() {
		state.TwoFactor = true
		state.Email = sess.PendingEmail()
		state.Alert = h.alert(r, auth.AlertInfo, "login.info.two_factor")
	}
	if a := h.alertForQuery(r, q); a != nil {
		state.Alert = a
	}

	h.renderLogin(w, r, state, http.StatusOK)
}

func (h *handlers) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	logger := observability.FromContext(r.Context())

	if err := r.ParseForm(); err != nil {
		logger.Debug("login form parse failed", zap.Error(err))
		h.renderLogin(w, r, loginState{Alert: h.alert(r, auth.AlertError, "login.error.generic")}, http.StatusBadRequest)
		return
	}

	sess, _ := custommw.SessionFromContext(r.Context())
	pending := sess != nil && sess.TwoFactorPending()
	callback := h.normalizeCallback(r.URL.Query().Get("callbackUrl"))

	creds := login.Credentials{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
		Code:     r.PostFormValue("code"),
	}.Normalize()
	remember := isChecked(r.PostFormValue("remember"))

	var err error
	if pending {
		creds.Email = sess.PendingEmail()
		creds.Password = ""
		err = creds.ValidateSecondFactor()
	} else {
		creds.Code = ""
		err = creds.Validate()
	}
	if err != nil {
		var verr *login.ValidationError
		if errors.As(err, &verr) {
			logger.Debug("login shape rejected", zap.Strings("fields", verr.Fields))
		} else {
			logger.Warn("login validation failed", zap.Error(err))
		}
		key := "login.error.invalid_format"
		if pending {
			key = "login.error.invalid_code_format"
		}
		h.renderLogin(w, r, loginState{
			Email:     creds.Email,
			Remember:  remember,
			TwoFactor: pending,
			Alert:     h.alert(r, auth.AlertError, key),
		}, http.StatusUnprocessableEntity)
		return
	}

	if !h.attempts.allow(clientKey(r)) {
		logger.Warn("login attempts throttled", zap.String("email", observability.MaskEmail(creds.Email)))
		w.Header().Set("Retry-After", h.attempts.retryAfter())
		h.renderLogin(w, r, loginState{
			Email:     creds.Email,
			Remember:  remember,
			TwoFactor: pending,
			Alert:     h.alert(r, auth.AlertError, "login.error.rate_limited"),
		}, http.StatusTooManyRequests)
		return
	}

	// The choice is made on the password step and carries through a second factor.
	if sess != nil && !pending {
		sess.SetRememberMe(remember)
	}

	outcome, err := h.service.Login(r.Context(), creds, callback)
	if err != nil || outcome == nil {
		if err == nil {
			err = errors.New("login: empty outcome")
		}
		logger.Warn("login call failed", zap.String("email", observability.MaskEmail(creds.Email)), zap.Error(err))
		h.renderLogin(w, r, loginState{
			Email:     creds.Email,
			Remember:  remember,
			TwoFactor: pending,
			Alert:     h.alert(r, auth.AlertError, "login.error.generic"),
		}, http.StatusBadGateway)
		return
	}

	if outcome.SignedIn() {
		h.completeSignIn(w, r, sess, outcome, creds.Email, callback)
		return
	}

	state, status := h.applyOutcome(r, outcome, creds.Email)
	state.Remember = remember && state.Email != ""
	if sess != nil {
		switch {
		case outcome.TwoFactor:
			sess.BeginTwoFactor(creds.Email)
		case outcome.Success != "":
			sess.ClearTwoFactor()
		case pending:
			// A rejected code keeps the second-factor prompt.
			state.TwoFactor = true
			state.Email = creds.Email
		}
	}
	if outcome.Error != "" || outcome.ErrorCode != "" {
		logger.Info("login rejected", zap.String("email", observability.MaskEmail(creds.Email)), zap.String("code", outcome.ErrorCode))
	}
	h.renderLogin(w, r, state, status)
}

// applyOutcome maps the three independent outcome fields onto the view in the
// order error, success, twoFactor. Each one replaces the alert, so the last set wins.
func (h *handlers) applyOutcome(r *http.Request, outcome *login.Outcome, email string) (loginState, int) {
	state := loginState{Email: email}
	status := http.StatusOK

	if outcome.Error != "" || outcome.ErrorCode != "" {
		message := outcome.Error
		if isAccountNotLinked(outcome.ErrorCode) || isAccountNotLinked(message) {
			message = h.text(r, "login.error.account_not_linked")
		}
		if message == "" {
			message = h.text(r, "login.error.generic")
		}
		state.Alert = &auth.Alert{Kind: auth.AlertError, Message: message}
		status = http.StatusUnauthorized
	}
	if outcome.Success != "" {
		state.Email = ""
		state.Alert = &auth.Alert{Kind: auth.AlertSuccess, Message: outcome.Success}
		status = http.StatusOK
	}
	if outcome.TwoFactor {
		state.TwoFactor = true
		state.Alert = h.alert(r, auth.AlertInfo, "login.info.two_factor")
		status = http.StatusOK
	}
	return state, status
}

func (h *handlers) completeSignIn(w http.ResponseWriter, r *http.Request, sess *appsession.Session, outcome *login.Outcome, email, callback string) {
	user := appsession.User{Email: email}
	if outcome.User != nil {
		user.UID = outcome.User.ID
		user.Provider = outcome.User.Provider
		if outcome.User.Email != "" {
			user.Email = outcome.User.Email
		}
	}
	if user.UID == "" {
		user.UID = user.Email
	}
	if sess != nil {
		sess.SetUser(&user)
	}
	h.setAuthCookie(w, r, sess, outcome.Token)

	observability.FromContext(r.Context()).Info("signed in",
		zap.String("uid", user.UID),
		zap.String("provider", user.Provider),
	)
	h.redirect(w, r, h.redirectTarget(outcome.RedirectTo, callback))
}

// LoginReset abandons a pending second-factor step.
func (h *handlers) LoginReset(w http.ResponseWriter, r *http.Request) {
	if sess, ok := custommw.SessionFromContext(r.Context()); ok && sess != nil {
		sess.ClearTwoFactor()
	}
	h.redirect(w, r, h.loginURL(map[string]string{
		"callbackUrl": h.normalizeCallback(r.URL.Query().Get("callbackUrl")),
	}))
}

func (h *handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := custommw.SessionFromContext(r.Context()); ok && sess != nil {
		sess.Destroy()
	}
	h.clearAuthCookie(w)
	h.redirect(w, r, h.loginURL(map[string]string{"status": "logged_out"}))
}

func (h *handlers) alertForQuery(r *http.Request, q url.Values) *auth.Alert {
	switch code := strings.TrimSpace(q.Get("error")); {
	case isAccountNotLinked(code):
		return h.alert(r, auth.AlertError, "login.error.account_not_linked")
	case code == errOAuthState:
		return h.alert(r, auth.AlertError, "login.error.oauth_state")
	case code == errProviderUnavailable:
		return h.alert(r, auth.AlertError, "login.error.provider_unavailable")
	}
	if q.Get("status") == "logged_out" {
		return h.alert(r, auth.AlertInfo, "login.info.logged_out")
	}
	switch q.Get("reason") {
	case custommw.ReasonTokenExpired, "expired":
		return h.alert(r, auth.AlertInfo, "login.error.session_expired")
	}
	return nil
}

func (h *handlers) renderLogin(w http.ResponseWriter, r *http.Request, state loginState, status int) {
	data := h.loginPageData(r, state)
	component := auth.LoginPage(data)
	if custommw.IsHTMXRequest(r.Context()) {
		// htmx only swaps 2xx responses.
		component = auth.LoginForm(data)
		status = http.StatusOK
	}
	h.render(w, r, component, status)
}

func (h *handlers) loginPageData(r *http.Request, state loginState) auth.LoginPageData {
	callback := h.normalizeCallback(r.URL.Query().Get("callbackUrl"))
	locale := custommw.LocaleFromContext(r.Context())

	providers := make([]auth.Provider, 0, len(h.providers.Buttons()))
	for _, btn := range h.providers.Buttons() {
		target := joinPath(h.paths.login, btn.Name())
		if callback != "" {
			target += "?" + url.Values{"callbackUrl": {callback}}.Encode()
		}
		providers = append(providers, auth.Provider{Name: btn.Name(), Label: btn.Label(), URL: target})
	}

	return auth.LoginPageData{
		Lang:        locale,
		Environment: custommw.EnvironmentFromContext(r.Context()),
		T:           h.translator(locale),
		Email:       state.Email,
		Remember:    state.Remember,
		Alert:       state.Alert,
		TwoFactor:   state.TwoFactor,
		CallbackURL: callback,
		LoginPath:   h.paths.login,
		ResetPath:   h.paths.login + "/reset",
		SignUpPath:  h.paths.signUp,
		ForgotPath:  h.paths.forgot,
		CSRFToken:   custommw.CSRFTokenFromContext(r.Context()),
		Providers:   providers,
	}
}

func (h *handlers) render(w http.ResponseWriter, r *http.Request, component templ.Component, status int) {
	if status != http.StatusOK {
		templ.Handler(component, templ.WithStatus(status)).ServeHTTP(w, r)
		return
	}
	templ.Handler(component).ServeHTTP(w, r)
}

func (h *handlers) redirect(w http.ResponseWriter, r *http.Request, target string) {
	if custommw.IsHTMXRequest(r.Context()) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *handlers) alert(r *http.Request, kind auth.AlertKind, key string) *auth.Alert {
	return &auth.Alert{Kind: kind, Message: h.text(r, key)}
}

func (h *handlers) text(r *http.Request, key string) string {
	return h.catalog.T(custommw.LocaleFromContext(r.Context()), key)
}

func (h *handlers) translator(locale string) auth.Translator {
	return func(key string) string {
		return h.catalog.T(locale, key)
	}
}

func (h *handlers) setAuthCookie(w http.ResponseWriter, r *http.Request, sess *appsession.Session, token string) {
	if strings.TrimSpace(token) == "" {
		h.clearAuthCookie(w)
		return
	}
	value := token
	if !strings.HasPrefix(strings.ToLower(token), "bearer ") {
		value = "Bearer " + token
	}
	cookie := &http.Cookie{
		Name:     custommw.AuthCookieName,
		Value:    value,
		Path:     h.paths.base,
		HttpOnly: true,
		Secure:   h.cookieSafe || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	}
	if sess != nil && sess.RememberMe() {
		if expiry := sess.ExpiresAt(); !expiry.IsZero() {
			cookie.Expires = expiry.UTC()
			if remaining := expiry.Sub(h.now()); remaining > 0 {
				cookie.MaxAge = int(remaining.Round(time.Second).Seconds())
			}
		}
	}
	http.SetCookie(w, cookie)
}

func (h *handlers) clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     custommw.AuthCookieName,
		Value:    "",
		Path:     h.paths.base,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func isSignedIn(sess *appsession.Session) bool {
	if sess == nil {
		return false
	}
	user := sess.User()
	return user != nil && strings.TrimSpace(user.UID) != ""
}

func isAccountNotLinked(code string) bool {
	return code == login.CodeAccountNotLinked || code == legacyAccountNotLinked
}

func forceLogin(r *http.Request) bool {
	force := r.URL.Query().Get("force")
	return isChecked(force) || strings.EqualFold(strings.TrimSpace(force), "force")
}

func isChecked(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

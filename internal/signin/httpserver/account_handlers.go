package httpserver

import (
	"net/http"

	custommw "finitefield.org/hanko-signin/internal/signin/httpserver/middleware"
	"finitefield.org/hanko-signin/internal/signin/templates/account"
)

// Account renders the signed-in landing page. It sits behind the Auth middleware.
func (h *handlers) Account(w http.ResponseWriter, r *http.Request) {
	user, ok := custommw.UserFromContext(r.Context())
	if !ok || user == nil {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	locale := custommw.LocaleFromContext(r.Context())
	h.render(w, r, account.Page(account.PageData{
		Lang:        locale,
		Environment: custommw.EnvironmentFromContext(r.Context()),
		T:           h.translator(locale),
		UID:         user.UID,
		Email:       user.Email,
		Provider:    user.Provider,
		LogoutPath:  h.paths.logout,
		CSRFToken:   custommw.CSRFTokenFromContext(r.Context()),
	}), http.StatusOK)
}

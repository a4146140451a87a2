package middleware

import (
	"context"
	"net/http"
	"strings"
)

type localeContextKey struct{}

// LocaleResolver maps an Accept-Language header onto a supported locale.
type LocaleResolver interface {
	Resolve(acceptLanguage string) string
	Fallback() string
}

// Locale stores the negotiated locale on the request context. A "lang" query
// parameter overrides the header when it names a supported locale.
func Locale(resolver LocaleResolver) func(http.Handler) http.Handler {
	if resolver == nil {
		panic("locale resolver is required")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Accept-Language")
			if override := strings.TrimSpace(r.URL.Query().Get("lang")); override != "" {
				header = override + "," + header
			}
			locale := resolver.Resolve(header)
			w.Header().Set("Content-Language", locale)
			ctx := context.WithValue(r.Context(), localeContextKey{}, locale)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LocaleFromContext returns the negotiated locale, or "en" when none was stored.
func LocaleFromContext(ctx context.Context) string {
	if ctx == nil {
		return "en"
	}
	if locale, ok := ctx.Value(localeContextKey{}).(string); ok && locale != "" {
		return locale
	}
	return "en"
}

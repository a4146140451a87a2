package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appsession "finitefield.org/hanko-signin/internal/signin/session"
)

type sessionTestClock struct {
	now time.Time
}

func (c *sessionTestClock) Now() time.Time {
	return c.now
}

func newSessionStoreForTest(t *testing.T, clock *sessionTestClock) *appsession.Manager {
	t.Helper()
	store, err := appsession.NewManager(appsession.Config{
		CookieName:       "test_session",
		HashKey:          []byte("12345678901234567890123456789012"),
		BlockKey:         []byte("abcdefghijklmnopqrstuvwxyzABCDEF"),
		IdleTimeout:      5 * time.Minute,
		Lifetime:         time.Hour,
		RememberLifetime: 24 * time.Hour,
		Now:              clock.Now,
	})
	if err != nil {
		t.Fatalf("session manager init: %v", err)
	}
	return store
}

func TestSessionMiddlewareLifecycle(t *testing.T) {
	clock := &sessionTestClock{now: time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)}
	store := newSessionStoreForTest(t, clock)

	var ids []string
	handler := Session(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := SessionFromContext(r.Context())
		if !ok {
			t.Fatalf("session missing in context")
		}
		ids = append(ids, sess.ID())
		w.WriteHeader(http.StatusOK)
	}))

	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, httptest.NewRequest(http.MethodGet, "/login", nil))
	cookie := findCookie(rec1.Result().Cookies(), "test_session")
	if cookie == nil {
		t.Fatalf("expected session cookie on first response")
	}

	clock.now = clock.now.Add(2 * time.Minute)
	req2 := httptest.NewRequest(http.MethodGet, "/login", nil)
	req2.AddCookie(cookie)
	handler.ServeHTTP(httptest.NewRecorder(), req2)
	if len(ids) != 2 || ids[1] != ids[0] {
		t.Fatalf("expected same session id between active requests, got %v", ids)
	}

	clock.now = clock.now.Add(15 * time.Minute)
	req3 := httptest.NewRequest(http.MethodGet, "/login", nil)
	req3.AddCookie(cookie)
	rec3 := httptest.NewRecorder()
	handler.ServeHTTP(rec3, req3)
	if len(ids) != 3 || ids[2] == ids[1] {
		t.Fatalf("expected new session id after idle timeout, got %v", ids)
	}
	if findCookie(rec3.Result().Cookies(), "test_session") == nil {
		t.Fatalf("expected refreshed session cookie after timeout")
	}
}

func TestSessionMiddlewareSavesBeforeBody(t *testing.T) {
	clock := &sessionTestClock{now: time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)}
	store := newSessionStoreForTest(t, clock)

	handler := Session(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, _ := SessionFromContext(r.Context())
		sess.BeginTwoFactor("mfa@example.com")
		_, _ = w.Write([]byte("<p>code required</p>"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))

	cookie := findCookie(rec.Result().Cookies(), "test_session")
	if cookie == nil {
		t.Fatalf("expected session cookie to be sent with the response headers")
	}

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.AddCookie(cookie)
	sess, err := store.Load(req)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !sess.TwoFactorPending() || sess.PendingEmail() != "mfa@example.com" {
		t.Fatalf("expected two-factor state to persist")
	}
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestAuthWithoutTokenSignsOutSession(t *testing.T) {
	clock := &sessionTestClock{now: time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)}
	store := newSessionStoreForTest(t, clock)

	sess := store.New()
	sess.SetUser(&appsession.User{UID: "user-1", Email: "user@example.com"})
	seed := httptest.NewRecorder()
	if err := store.Save(seed, sess); err != nil {
		t.Fatalf("save session: %v", err)
	}
	cookie := findCookie(seed.Result().Cookies(), "test_session")
	if cookie == nil {
		t.Fatalf("expected seeded session cookie")
	}

	handler := Session(store)(Auth(DefaultAuthenticator(), "/login")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("protected handler must not run without a token")
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}

	updated := findCookie(rec.Result().Cookies(), "test_session")
	if updated == nil {
		t.Fatalf("expected the session cookie to be rewritten")
	}
	next := httptest.NewRequest(http.MethodGet, "/login", nil)
	next.AddCookie(updated)
	loaded, err := store.Load(next)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if loaded.User() != nil {
		t.Fatalf("expected session user to be cleared, got %+v", loaded.User())
	}
}

package httpserver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeCallbackTarget(t *testing.T) {
	cases := []struct {
		name string
		base string
		raw  string
		want string
	}{
		{name: "empty", base: "/", raw: "", want: ""},
		{name: "relative path", base: "/", raw: "/orders?page=2#top", want: "/orders?page=2#top"},
		{name: "absolute url", base: "/", raw: "https://evil.example.com/", want: ""},
		{name: "scheme relative", base: "/", raw: "//evil.example.com", want: ""},
		{name: "backslash trick", base: "/", raw: "/\\evil.example.com", want: ""},
		{name: "dot segments cleaned", base: "/", raw: "/a/../b", want: "/b"},
		{name: "missing slash", base: "/", raw: "account", want: "/account"},
		{name: "outside base", base: "/auth", raw: "/other", want: ""},
		{name: "prefix lookalike", base: "/auth", raw: "/authority", want: ""},
		{name: "inside base", base: "/auth", raw: "/auth/account", want: "/auth/account"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, sanitizeCallbackTarget(tc.base, tc.raw))
		})
	}
}

func TestNormalizeCallbackSkipsSignInRoutes(t *testing.T) {
	h := &handlers{paths: routePaths{base: "/", login: "/login"}}

	require.Empty(t, h.normalizeCallback("/login"))
	require.Empty(t, h.normalizeCallback("/login/google/callback"))
	require.Equal(t, "/login-help", h.normalizeCallback("/login-help"))
	require.Equal(t, "/", h.redirectTarget("", "https://evil.example.com"))
	require.Equal(t, "/account", h.redirectTarget("https://evil.example.com", "/account"))
}

func TestResolvePath(t *testing.T) {
	require.Equal(t, "/login", resolvePath("/", "", "login"))
	require.Equal(t, "/auth/login", resolvePath("/auth", "", "login"))
	require.Equal(t, "/auth/sign-up", resolvePath("/auth", "sign-up", "signup"))
	require.Equal(t, "/register", resolvePath("/auth", "/register", "signup"))
	require.Equal(t, "https://accounts.example.com/signup", resolvePath("/", "https://accounts.example.com/signup", "signup"))
}

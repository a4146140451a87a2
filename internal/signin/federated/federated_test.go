package federated

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGoogleStartURL(t *testing.T) {
	b := Google("client-123", "secret")
	raw := b.StartURL("state-1", "https://signin.example.com/login/google/callback")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "accounts.google.com", u.Host)
	q := u.Query()
	require.Equal(t, "client-123", q.Get("client_id"))
	require.Equal(t, "state-1", q.Get("state"))
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "https://signin.example.com/login/google/callback", q.Get("redirect_uri"))
	require.Equal(t, "openid email profile", q.Get("scope"))
	require.Equal(t, "select_account", q.Get("prompt"))
}

func TestAppleStartURLDoesNotMutateConfig(t *testing.T) {
	b := Apple("apple-client", "")
	first := b.StartURL("s1", "https://a.example.com/cb")
	second := b.StartURL("s2", "https://b.example.com/cb")

	u1, _ := url.Parse(first)
	u2, _ := url.Parse(second)
	require.Equal(t, "appleid.apple.com", u1.Host)
	require.Equal(t, "https://a.example.com/cb", u1.Query().Get("redirect_uri"))
	require.Equal(t, "https://b.example.com/cb", u2.Query().Get("redirect_uri"))
	require.Equal(t, "query", u2.Query().Get("response_mode"))
	require.Empty(t, u2.Query().Get("scope"))
}

func TestRegistryOrderAndLookup(t *testing.T) {
	r := NewRegistry(Google("g", ""), nil, Apple("a", ""))

	buttons := r.Buttons()
	require.Len(t, buttons, 2)
	require.Equal(t, "google", buttons[0].Name())
	require.Equal(t, "apple", buttons[1].Name())
	require.Equal(t, []string{"apple", "google"}, r.Names())

	b, ok := r.Lookup("GOOGLE")
	require.True(t, ok)
	require.Equal(t, "Sign in with Google", b.Label())

	_, ok = r.Lookup("github")
	require.False(t, ok)

	var empty *Registry
	require.Empty(t, empty.Buttons())
}

func TestNewStateIsUnique(t *testing.T) {
	require.NotEqual(t, NewState(), NewState())
	require.Len(t, NewState(), 36)
}

package i18n

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogHoldsSignInMessages(t *testing.T) {
	b, err := Default("en")
	require.NoError(t, err)

	require.Equal(t, "Invalid email or password format.", b.T("en", "login.error.invalid_format"))
	require.Equal(t, "Something went wrong", b.T("en", "login.error.generic"))
	require.Equal(t, "Two-factor authentication required.", b.T("en", "login.info.two_factor"))
	require.Equal(t, "Email already in use with different Provider", b.T("en", "login.error.account_not_linked"))
}

func TestCatalogsShareKeys(t *testing.T) {
	b, err := Default("en")
	require.NoError(t, err)
	for key := range b.dict["en"] {
		_, ok := b.dict["ja"][key]
		require.True(t, ok, "ja catalog missing %s", key)
	}
}

func TestResolveHonorsQValues(t *testing.T) {
	b, err := Default("en")
	require.NoError(t, err)

	require.Equal(t, "ja", b.Resolve("ja-JP,ja;q=0.9,en;q=0.5"))
	require.Equal(t, "en", b.Resolve("ja;q=0.5, en;q=0.9"))
	require.Equal(t, "en", b.Resolve("fr-FR"))
	require.Equal(t, "en", b.Resolve(""))
	require.Equal(t, "en", b.Resolve("%%%"))
}

func TestTFallsBack(t *testing.T) {
	fsys := fstest.MapFS{
		"locales/en.yaml": {Data: []byte("greeting:\n  hello: Hello\n  bye: Bye\n")},
		"locales/ja.yaml": {Data: []byte("greeting:\n  hello: こんにちは\n")},
	}
	b, err := Load(fsys, "locales", "en")
	require.NoError(t, err)

	require.Equal(t, "こんにちは", b.T("ja", "greeting.hello"))
	require.Equal(t, "Bye", b.T("ja", "greeting.bye"))
	require.Equal(t, "missing.key", b.T("ja", "missing.key"))
	require.Equal(t, "ja", b.Resolve("ja-JP,ja;q=0.9"))
}

func TestLoadRequiresFallback(t *testing.T) {
	fsys := fstest.MapFS{"locales/ja.yaml": {Data: []byte("a: b\n")}}
	_, err := Load(fsys, "locales", "en")
	require.Error(t, err)
}

package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/require"

	"finitefield.org/hanko-signin/internal/signin/config"
)

var _ config.SecretResolver = (*Resolver)(nil)

type fakeClient struct {
	mu     sync.Mutex
	values map[string]string
	calls  map[string]int
}

func newFakeClient() *fakeClient {
	return &fakeClient{values: map[string]string{}, calls: map[string]int{}}
}

func (f *fakeClient) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[req.GetName()]++
	value, ok := f.values[req.GetName()]
	if !ok {
		return nil, errors.New("not found")
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    req.GetName(),
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
	}, nil
}

func (f *fakeClient) Close() error { return nil }

func TestResolveSecretCachesRemoteValue(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	client.values["projects/demo/secrets/session-hash/versions/latest"] = "remote-value"

	r := NewResolver(ctx, WithClient(client), WithProject("demo"), WithFallbackFile(""))
	defer r.Close()

	for i := 0; i < 2; i++ {
		got, err := r.ResolveSecret(ctx, "secret://session-hash")
		require.NoError(t, err)
		require.Equal(t, "remote-value", got)
	}
	require.Equal(t, 1, client.calls["projects/demo/secrets/session-hash/versions/latest"])
}

func TestResolveSecretFullResourceName(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	client.values["projects/other/secrets/jwt/versions/3"] = "pinned"

	r := NewResolver(ctx, WithClient(client), WithFallbackFile(""))

	got, err := r.ResolveSecret(ctx, "sm://projects/other/secrets/jwt/versions/3")
	require.NoError(t, err)
	require.Equal(t, "pinned", got)
}

func TestResolveSecretFallbackFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".secrets.local")
	require.NoError(t, os.WriteFile(path, []byte("# local\nsm://session-hash=local-value\n"), 0o600))

	r := NewResolver(context.Background(), WithFallbackFile(path))

	got, err := r.ResolveSecret(context.Background(), "secret://session-hash")
	require.NoError(t, err)
	require.Equal(t, "local-value", got)

	_, err = r.ResolveSecret(context.Background(), "secret://missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestParseReferenceRejectsUnknownScheme(t *testing.T) {
	_, err := parseReference("https://example.com/secret")
	require.Error(t, err)
}

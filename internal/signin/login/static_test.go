package login

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStaticServiceRecordsCalls(t *testing.T) {
	svc := NewStaticService(&Outcome{Success: "ok"})

	outcome, err := svc.Login(context.Background(), Credentials{Email: "a@example.com", Password: "pw"}, "/next")
	require.NoError(t, err)
	require.Equal(t, "ok", outcome.Success)

	outcome.Success = "mutated"
	require.Equal(t, "ok", svc.Outcome.Success)

	calls := svc.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, "/next", calls[0].CallbackURL)
	require.Equal(t, "a@example.com", calls[0].Credentials.Email)
}

func TestStaticServiceError(t *testing.T) {
	svc := &StaticService{Err: errors.New("boom")}
	_, err := svc.Login(context.Background(), Credentials{}, "")
	require.Error(t, err)

	_, err = svc.LoginFederated(context.Background(), FederatedRequest{Provider: "google"})
	require.Error(t, err)
	require.Len(t, svc.FederatedCalls(), 1)
}

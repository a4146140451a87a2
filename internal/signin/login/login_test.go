package login

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCredentialsValidate(t *testing.T) {
	tests := []struct {
		name   string
		creds  Credentials
		fields []string
	}{
		{name: "valid", creds: Credentials{Email: "user@example.com", Password: "secret"}},
		{name: "malformed email", creds: Credentials{Email: "not-an-email", Password: "secret"}, fields: []string{"email"}},
		{name: "empty email", creds: Credentials{Password: "secret"}, fields: []string{"email"}},
		{name: "empty password", creds: Credentials{Email: "user@example.com"}, fields: []string{"password"}},
		{name: "short code", creds: Credentials{Email: "user@example.com", Password: "secret", Code: "123"}, fields: []string{"code"}},
		{name: "non numeric code", creds: Credentials{Email: "user@example.com", Password: "secret", Code: "abcdef"}, fields: []string{"code"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.creds.Validate()
			if len(tc.fields) == 0 {
				require.NoError(t, err)
				return
			}
			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr), "expected ValidationError, got %v", err)
			for _, field := range tc.fields {
				require.True(t, vErr.Has(field), "expected %s in %v", field, vErr.Fields)
			}
		})
	}
}

func TestCredentialsValidateSecondFactor(t *testing.T) {
	err := Credentials{Email: "user@example.com"}.ValidateSecondFactor()
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.True(t, vErr.Has("code"))

	require.NoError(t, Credentials{Email: "user@example.com", Code: "123456"}.ValidateSecondFactor())
}

func TestCredentialsNormalizeKeepsPassword(t *testing.T) {
	c := Credentials{Email: "  user@example.com ", Password: " pass ", Code: " 123456 "}.Normalize()
	require.Equal(t, "user@example.com", c.Email)
	require.Equal(t, " pass ", c.Password)
	require.Equal(t, "123456", c.Code)
}

func TestOutcomeSignedIn(t *testing.T) {
	require.False(t, (*Outcome)(nil).SignedIn())
	require.False(t, (&Outcome{Success: "ok"}).SignedIn())
	require.False(t, (&Outcome{Token: "t", TwoFactor: true}).SignedIn())
	require.True(t, (&Outcome{Token: "t"}).SignedIn())
}

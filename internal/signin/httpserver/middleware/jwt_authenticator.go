package middleware

import (
	"errors"
	"net/http"
	"strings"

	"finitefield.org/hanko-signin/internal/signin/login"
)

// TokenParser validates tokens issued by the development login backend.
type TokenParser interface {
	Parse(raw string) (*login.Claims, error)
}

// JWTAuthenticator verifies HS256 tokens minted by login.TokenService.
type JWTAuthenticator struct {
	parser TokenParser
}

// NewJWTAuthenticator constructs an Authenticator backed by parser.
func NewJWTAuthenticator(parser TokenParser) *JWTAuthenticator {
	if parser == nil {
		panic("token parser is required")
	}
	return &JWTAuthenticator{parser: parser}
}

// Authenticate parses token and maps its claims onto a User.
func (a *JWTAuthenticator) Authenticate(_ *http.Request, token string) (*User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, NewAuthError(ReasonMissingToken, ErrUnauthorized)
	}
	claims, err := a.parser.Parse(token)
	if err != nil {
		if errors.Is(err, login.ErrTokenExpired) {
			return nil, NewAuthError(ReasonTokenExpired, err)
		}
		return nil, NewAuthError(ReasonTokenInvalid, err)
	}
	if claims.Subject == "" {
		return nil, NewAuthError(ReasonTokenInvalid, errors.New("token has no subject"))
	}
	return &User{
		UID:      claims.Subject,
		Email:    claims.Email,
		Provider: claims.Provider,
		Token:    token,
	}, nil
}

package federated

import (
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// AppleEndpoint is Sign in with Apple's authorization server.
var AppleEndpoint = oauth2.Endpoint{
	AuthURL:   "https://appleid.apple.com/auth/authorize",
	TokenURL:  "https://appleid.apple.com/auth/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// OAuthButton starts an authorization-code flow against an OAuth 2.0 provider.
// The code it receives is handed to the authentication service; no token
// exchange happens here.
type OAuthButton struct {
	name   string
	label  string
	config oauth2.Config
	params []oauth2.AuthCodeOption
}

// NewOAuthButton creates a button for an arbitrary provider endpoint.
func NewOAuthButton(name, label string, endpoint oauth2.Endpoint, clientID, clientSecret string, scopes ...string) *OAuthButton {
	return &OAuthButton{
		name:  strings.ToLower(strings.TrimSpace(name)),
		label: label,
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     endpoint,
			Scopes:       scopes,
		},
	}
}

// Google returns the "Sign in with Google" button.
func Google(clientID, clientSecret string) *OAuthButton {
	b := NewOAuthButton("google", "Sign in with Google", endpoints.Google, clientID, clientSecret, "openid", "email", "profile")
	b.params = []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("prompt", "select_account")}
	return b
}

// Apple returns the "Sign in with Apple" button. No scopes are requested so
// Apple answers with a query-string redirect the callback route can read as GET.
func Apple(clientID, clientSecret string) *OAuthButton {
	b := NewOAuthButton("apple", "Sign in with Apple", AppleEndpoint, clientID, clientSecret)
	b.params = []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("response_mode", "query")}
	return b
}

// Name implements Button.
func (b *OAuthButton) Name() string { return b.name }

// Label implements Button.
func (b *OAuthButton) Label() string { return b.label }

// StartURL implements Button.
func (b *OAuthButton) StartURL(state, redirectURI string) string {
	cfg := b.config
	cfg.RedirectURL = redirectURI
	return cfg.AuthCodeURL(state, b.params...)
}

package auth

import (
	"net/url"
	"strings"
)

// AlertKind selects the styling of the inline alert.
type AlertKind string

const (
	AlertSuccess AlertKind = "success"
	AlertError   AlertKind = "error"
	AlertInfo    AlertKind = "info"
)

// Alert is the single message shown above the form.
type Alert struct {
	Kind    AlertKind
	Message string
}

// Provider is a federated sign-in button.
type Provider struct {
	Name  string
	Label string
	URL   string
}

// Translator looks up a catalog message for the negotiated locale.
type Translator func(key string) string

// LoginPageData encapsulates rendering state for the sign-in screen.
type LoginPageData struct {
	Lang        string
	Environment string
	T           Translator

	Email       string
	Remember    bool
	Alert       *Alert
	TwoFactor   bool
	CallbackURL string

	LoginPath  string
	ResetPath  string
	SignUpPath string
	ForgotPath string
	CSRFToken  string
	Providers  []Provider
}

// SubmitURL is the form action. It carries the callback target so the POST
// handler can read it from its own query string.
func (d LoginPageData) SubmitURL() string {
	target := d.LoginPath
	if target == "" {
		target = "/login"
	}
	if strings.TrimSpace(d.CallbackURL) == "" {
		return target
	}
	return target + "?" + url.Values{"callbackUrl": {d.CallbackURL}}.Encode()
}

func (d LoginPageData) text(key string) string {
	if d.T == nil {
		return key
	}
	return d.T(key)
}

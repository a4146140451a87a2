// Package auth renders the sign-in page and its htmx fragment.
package auth

import (
	stdhtml "html"
	"strings"

	"github.com/a-h/templ"
	"github.com/microcosm-cc/bluemonday"
	. "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"

	"finitefield.org/hanko-signin/internal/signin/httpserver/middleware"
	"finitefield.org/hanko-signin/internal/signin/templates/layout"
)

// PanelID is the element htmx swaps after a submission.
const PanelID = "signin-panel"

var messagePolicy = bluemonday.StrictPolicy()

// LoginPage renders the full sign-in document.
func LoginPage(data LoginPageData) templ.Component {
	return layout.Component(layout.Document(layout.Page{
		Lang:        data.Lang,
		Title:       data.text("login.title"),
		Environment: data.Environment,
	}, panel(data)))
}

// LoginForm renders only the panel, for htmx swaps.
func LoginForm(data LoginPageData) templ.Component {
	return layout.Component(panel(data))
}

func panel(d LoginPageData) Node {
	return Section(
		ID(PanelID),
		Class("signin-panel"),
		H1(Class("signin-title"), Text(d.text("login.title"))),
		alert(d.Alert),
		Form(
			Method("post"),
			Action(d.SubmitURL()),
			Attr("hx-post", d.SubmitURL()),
			Attr("hx-target", "#"+PanelID),
			Attr("hx-swap", "outerHTML"),
			Attr("novalidate"),
			Class("signin-form"),
			Data("login-form", ""),
			Input(Type("hidden"), Name(middleware.CSRFFormField), Value(d.CSRFToken)),
			emailField(d),
			If(!d.TwoFactor, passwordField(d)),
			If(!d.TwoFactor, rememberField(d)),
			If(d.TwoFactor, codeField(d)),
			Button(
				Type("submit"),
				Class("btn btn-primary"),
				Data("submit", ""),
				If(d.TwoFactor, Text(d.text("login.confirm"))),
				If(!d.TwoFactor, Text(d.text("login.submit"))),
			),
		),
		If(d.TwoFactor, restartForm(d)),
		If(!d.TwoFactor && len(d.Providers) > 0, providers(d)),
		P(
			Class("signin-footer"),
			Text(d.text("login.not_member")+" "),
			A(Href(d.SignUpPath), Data("sign-up-link", ""), Text(d.text("login.sign_up"))),
		),
	)
}

func alert(a *Alert) Node {
	if a == nil {
		return nil
	}
	message := displayMessage(a.Message)
	if message == "" {
		return nil
	}
	kind := a.Kind
	if kind == "" {
		kind = AlertError
	}
	role := "status"
	if kind == AlertError {
		role = "alert"
	}
	return Div(
		Class("alert alert-"+string(kind)),
		Role(role),
		Data("alert", string(kind)),
		P(Class("alert-message"), Text(message)),
	)
}

// SanitizeMessage strips markup from upstream messages. The result is plain text.
func SanitizeMessage(message string) string {
	return strings.TrimSpace(stdhtml.UnescapeString(messagePolicy.Sanitize(message)))
}

// displayMessage keeps text that is entirely markup, such as "<Invalid credentials>",
// as escaped raw text rather than dropping it.
func displayMessage(message string) string {
	if clean := SanitizeMessage(message); clean != "" {
		return clean
	}
	return strings.TrimSpace(message)
}

func emailField(d LoginPageData) Node {
	return Div(
		Class("field"),
		Label(For("email"), Text(d.text("login.email"))),
		Input(
			Type("email"),
			Name("email"),
			ID("email"),
			Value(d.Email),
			AutoComplete("email"),
			If(d.TwoFactor, Attr("readonly")),
		),
	)
}

func passwordField(d LoginPageData) Node {
	return Div(
		Class("field"),
		Div(
			Class("field-label"),
			Label(For("password"), Text(d.text("login.password"))),
			A(Href(d.ForgotPath), Class("link-muted"), Data("forgot-link", ""), Text(d.text("login.forgot"))),
		),
		Input(
			Type("password"),
			Name("password"),
			ID("password"),
			AutoComplete("current-password"),
		),
	)
}

func rememberField(d LoginPageData) Node {
	return Label(
		Class("field-check"),
		Input(
			Type("checkbox"),
			Name("remember"),
			Value("on"),
			Data("remember", ""),
			If(d.Remember, Checked()),
		),
		Text(" "+d.text("login.remember")),
	)
}

func codeField(d LoginPageData) Node {
	return Div(
		Class("field"),
		Label(For("code"), Text(d.text("login.code"))),
		Input(
			Type("text"),
			Name("code"),
			ID("code"),
			AutoComplete("one-time-code"),
			Attr("inputmode", "numeric"),
			Attr("pattern", "[0-9]{6,8}"),
			AutoFocus(),
		),
		P(Class("field-hint"), Text(d.text("login.code_hint"))),
	)
}

func restartForm(d LoginPageData) Node {
	return Form(
		Method("post"),
		Action(d.ResetPath),
		Class("signin-restart"),
		Data("restart-form", ""),
		Input(Type("hidden"), Name(middleware.CSRFFormField), Value(d.CSRFToken)),
		Button(Type("submit"), Class("btn btn-link"), Text(d.text("login.restart"))),
	)
}

func providers(d LoginPageData) Node {
	return Div(
		Class("signin-providers"),
		P(Class("divider"), Text(d.text("login.or"))),
		Ul(
			Map(d.Providers, func(p Provider) Node {
				return Li(A(
					Href(p.URL),
					Class("btn btn-provider"),
					Data("provider", p.Name),
					Text(p.Label),
				))
			}),
		),
	)
}

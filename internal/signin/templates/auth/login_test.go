package auth

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/a-h/templ"
	"github.com/stretchr/testify/require"
)

func baseData() LoginPageData {
	return LoginPageData{
		Lang:        "en",
		Environment: "staging",
		LoginPath:   "/login",
		ResetPath:   "/login/reset",
		SignUpPath:  "/signup",
		ForgotPath:  "/forgot-password",
		CSRFToken:   "csrf-123",
		Providers: []Provider{
			{Name: "google", Label: "Google", URL: "/login/google"},
			{Name: "apple", Label: "Apple", URL: "/login/apple"},
		},
	}
}

func TestLoginPageRendersFormAndLinks(t *testing.T) {
	t.Parallel()

	data := baseData()
	data.CallbackURL = "/account?tab=1"
	doc := render(t, LoginPage(data))

	form := doc.Find("form[data-login-form]")
	require.Equal(t, 1, form.Length(), "login form should render")
	require.Equal(t, "/login?callbackUrl=%2Faccount%3Ftab%3D1", form.AttrOr("action", ""))
	require.Equal(t, form.AttrOr("action", ""), form.AttrOr("hx-post", ""))
	require.Equal(t, "#"+PanelID, form.AttrOr("hx-target", ""))

	require.Equal(t, 1, form.Find("input[name='email']").Length())
	require.Equal(t, 1, form.Find("input[name='password'][type='password']").Length())
	require.Equal(t, 0, form.Find("input[name='code']").Length(), "code input only appears in two-factor mode")
	remember := form.Find("input[name='remember'][type='checkbox']")
	require.Equal(t, 1, remember.Length())
	_, checked := remember.Attr("checked")
	require.False(t, checked)
	require.Equal(t, "csrf-123", form.Find("input[name='csrf_token']").AttrOr("value", ""))

	require.Equal(t, "/forgot-password", doc.Find("[data-forgot-link]").AttrOr("href", ""))
	require.Equal(t, "/signup", doc.Find("[data-sign-up-link]").AttrOr("href", ""))
	require.Equal(t, 2, doc.Find("[data-provider]").Length())
	require.Equal(t, "/login/apple", doc.Find("[data-provider='apple']").AttrOr("href", ""))

	require.Equal(t, 0, doc.Find("[data-alert]").Length(), "no alert without state")
	require.Equal(t, "STG", strings.TrimSpace(doc.Find("[data-environment-badge] span").Text()))
	require.Equal(t, "en", doc.Find("html").AttrOr("lang", ""))
}

func TestLoginPageNeverEchoesPassword(t *testing.T) {
	t.Parallel()

	data := baseData()
	data.Email = "user@example.com"
	doc := render(t, LoginPage(data))

	require.Equal(t, "user@example.com", doc.Find("input[name='email']").AttrOr("value", ""))
	_, hasValue := doc.Find("input[name='password']").Attr("value")
	require.False(t, hasValue, "password input must render empty")
}

func TestLoginFormTwoFactorMode(t *testing.T) {
	t.Parallel()

	data := baseData()
	data.TwoFactor = true
	data.Email = "mfa@example.com"
	data.Alert = &Alert{Kind: AlertInfo, Message: "Two-factor authentication required."}
	doc := render(t, LoginForm(data))

	require.Equal(t, 1, doc.Find("section#"+PanelID).Length())
	require.Equal(t, 0, doc.Find("html head title").Length(), "fragment should not include the document shell")
	require.Equal(t, 0, doc.Find("input[name='password']").Length())
	require.Equal(t, 1, doc.Find("input[name='code']").Length())
	_, readonly := doc.Find("input[name='email']").Attr("readonly")
	require.True(t, readonly, "email is fixed while the second factor is pending")
	require.Equal(t, "/login/reset", doc.Find("form[data-restart-form]").AttrOr("action", ""))
	require.Equal(t, 0, doc.Find("[data-provider]").Length())
	require.Equal(t, 0, doc.Find("input[name='remember']").Length(), "remember me is chosen on the password step")

	alert := doc.Find("[data-alert]")
	require.Equal(t, 1, alert.Length())
	require.Equal(t, "info", alert.AttrOr("data-alert", ""))
	require.Equal(t, "Two-factor authentication required.", strings.TrimSpace(alert.Find(".alert-message").Text()))
	require.Equal(t, 0, alert.Find("button").Length(), "the alert is replaced by the next outcome, not dismissed")
}

func TestAlertSanitisesUpstreamMessage(t *testing.T) {
	t.Parallel()

	data := baseData()
	data.Alert = &Alert{Kind: AlertError, Message: `<script>alert(1)</script>Invalid <b>credentials</b> & more`}
	doc := render(t, LoginForm(data))

	alert := doc.Find("[data-alert='error']")
	require.Equal(t, 1, alert.Length())
	require.Equal(t, "alert", alert.AttrOr("role", ""))
	require.Equal(t, 0, alert.Find("script, b").Length())
	require.Equal(t, "Invalid credentials & more", strings.TrimSpace(alert.Find(".alert-message").Text()))
}

func TestAlertKeepsMessageMadeOfMarkup(t *testing.T) {
	t.Parallel()

	for _, message := range []string{"<Invalid credentials>", "<script>x</script>"} {
		data := baseData()
		data.Alert = &Alert{Kind: AlertError, Message: message}
		doc := render(t, LoginForm(data))

		alert := doc.Find("[data-alert='error']")
		require.Equal(t, 1, alert.Length(), "message %q", message)
		require.Equal(t, 0, alert.Find("script").Length())
		require.Equal(t, message, strings.TrimSpace(alert.Find(".alert-message").Text()), "text is shown escaped")
	}
}

func TestAlertSkippedForBlankMessage(t *testing.T) {
	t.Parallel()

	data := baseData()
	data.Alert = &Alert{Kind: AlertError, Message: "   "}
	doc := render(t, LoginForm(data))
	require.Equal(t, 0, doc.Find("[data-alert]").Length())
}

func TestSubmitURLWithoutCallback(t *testing.T) {
	t.Parallel()

	require.Equal(t, "/login", LoginPageData{}.SubmitURL())
	require.Equal(t, "/auth/login", LoginPageData{LoginPath: "/auth/login"}.SubmitURL())
}

func TestTranslatorIsUsedForLabels(t *testing.T) {
	t.Parallel()

	data := baseData()
	data.T = func(key string) string { return "[" + key + "]" }
	doc := render(t, LoginPage(data))

	require.Equal(t, "[login.title]", strings.TrimSpace(doc.Find("h1").Text()))
	require.Equal(t, "[login.sign_up]", strings.TrimSpace(doc.Find("[data-sign-up-link]").Text()))
}

func render(t *testing.T, component templ.Component) *goquery.Document {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, component.Render(context.Background(), &buf), "component must render")

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err, "html must parse")
	return doc
}

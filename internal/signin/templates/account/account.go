// Package account renders the signed-in landing page.
package account

import (
	"github.com/a-h/templ"
	. "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"

	"finitefield.org/hanko-signin/internal/signin/httpserver/middleware"
	"finitefield.org/hanko-signin/internal/signin/templates/layout"
)

// PageData is the view model for the account page.
type PageData struct {
	Lang        string
	Environment string
	T           func(key string) string

	UID        string
	Email      string
	Provider   string
	LogoutPath string
	CSRFToken  string
}

func (d PageData) text(key string) string {
	if d.T == nil {
		return key
	}
	return d.T(key)
}

// Page renders the account summary with a sign-out form.
func Page(d PageData) templ.Component {
	return layout.Component(layout.Document(layout.Page{
		Lang:        d.Lang,
		Title:       d.text("account.title"),
		Environment: d.Environment,
	},
		Section(
			Class("signin-panel"),
			Data("account", d.UID),
			H1(Class("signin-title"), Text(d.text("account.title"))),
			Dl(
				Class("account-summary"),
				Dt(Text(d.text("account.signed_in_as"))),
				Dd(Data("account-email", ""), Text(d.Email)),
				If(d.Provider != "", Group{
					Dt(Text(d.text("account.provider"))),
					Dd(Data("account-provider", ""), Text(d.Provider)),
				}),
			),
			Form(
				Method("post"),
				Action(d.LogoutPath),
				Data("logout-form", ""),
				Input(Type("hidden"), Name(middleware.CSRFFormField), Value(d.CSRFToken)),
				Button(Type("submit"), Class("btn btn-secondary"), Text(d.text("account.sign_out"))),
			),
		),
	))
}

// Package layout provides the document shell shared by the sign-in pages.
package layout

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
	. "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"
)

const (
	stylesheetPath = "/public/static/signin.css"
	htmxScriptURL  = "https://unpkg.com/htmx.org@2.0.4/dist/htmx.min.js"
)

// Page describes the document-level attributes of a rendered page.
type Page struct {
	Lang        string
	Title       string
	Environment string
}

// Component adapts a gomponents node to templ so handlers can serve it with templ.Handler.
func Component(node Node) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return node.Render(w)
	})
}

// Document wraps body in the html shell.
func Document(p Page, body ...Node) Node {
	lang := p.Lang
	if lang == "" {
		lang = "en"
	}
	return Doctype(
		HTML(
			Lang(lang),
			Head(
				Meta(Charset("utf-8")),
				Meta(Name("viewport"), Content("width=device-width, initial-scale=1")),
				TitleEl(Text(p.Title)),
				Link(Rel("stylesheet"), Href(stylesheetPath)),
				Script(Src(htmxScriptURL), Defer()),
			),
			Body(
				Class("signin-body"),
				EnvironmentBadge(p.Environment),
				Main(Class("signin-wrap"), Group(body)),
			),
		),
	)
}

// EnvironmentBadge marks non-production deployments. It renders nothing for production.
func EnvironmentBadge(environment string) Node {
	label := environmentLabel(environment)
	if label == "" {
		return nil
	}
	return Div(
		Class("env-badge"),
		Data("environment-badge", strings.ToLower(environment)),
		Span(Aria("hidden", "true"), Text(label)),
	)
}

func environmentLabel(environment string) string {
	switch strings.ToLower(strings.TrimSpace(environment)) {
	case "", "prod", "production":
		return ""
	case "staging", "stg":
		return "STG"
	case "development", "dev":
		return "DEV"
	case "local":
		return "LOCAL"
	default:
		return strings.ToUpper(environment)
	}
}

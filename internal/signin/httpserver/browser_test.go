package httpserver_test

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"finitefield.org/hanko-signin/internal/signin/testutil"
)

// browser keeps cookies between requests and never follows redirects.
type browser struct {
	t      *testing.T
	ts     *httptest.Server
	client *http.Client
}

func newBrowser(t *testing.T, ts *httptest.Server) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{
		t:  t,
		ts: ts,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (b *browser) do(req *http.Request) (*http.Response, []byte) {
	b.t.Helper()
	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	return resp, body
}

func (b *browser) get(path string, headers ...string) (*http.Response, []byte) {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodGet, b.ts.URL+path, nil)
	require.NoError(b.t, err)
	setHeaders(req, headers)
	return b.do(req)
}

func (b *browser) page(path string) *goquery.Document {
	b.t.Helper()
	resp, body := b.get(path)
	require.Equal(b.t, http.StatusOK, resp.StatusCode, "GET %s", path)
	return testutil.ParseHTML(b.t, body)
}

// csrfToken loads the sign-in page so the CSRF cookie is issued and returns the hidden field value.
func (b *browser) csrfToken() string {
	b.t.Helper()
	token := b.page("/login").Find("input[name='csrf_token']").First().AttrOr("value", "")
	require.NotEmpty(b.t, token, "csrf token should render")
	return token
}

func (b *browser) post(path string, form url.Values, headers ...string) (*http.Response, []byte) {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodPost, b.ts.URL+path, strings.NewReader(form.Encode()))
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	setHeaders(req, headers)
	return b.do(req)
}

// submit posts the sign-in form with a fresh CSRF token.
func (b *browser) submit(path string, form url.Values, headers ...string) (*http.Response, []byte) {
	b.t.Helper()
	if form == nil {
		form = url.Values{}
	}
	form.Set("csrf_token", b.csrfToken())
	return b.post(path, form, headers...)
}

func (b *browser) cookie(name string) *http.Cookie {
	u, _ := url.Parse(b.ts.URL)
	for _, c := range b.client.Jar.Cookies(u) {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// dropCookie removes name from the jar the way a browser does when a session cookie ends.
func (b *browser) dropCookie(name string) {
	u, _ := url.Parse(b.ts.URL)
	b.client.Jar.SetCookies(u, []*http.Cookie{{Name: name, Path: "/", MaxAge: -1}})
}

func setHeaders(req *http.Request, headers []string) {
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
}

func alertOf(doc *goquery.Document) (string, string) {
	alert := doc.Find("[data-alert]")
	if alert.Length() == 0 {
		return "", ""
	}
	return alert.AttrOr("data-alert", ""), strings.TrimSpace(alert.Find(".alert-message").Text())
}

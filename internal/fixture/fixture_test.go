package fixture

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, path string, cookies ...*http.Cookie) (int, string) {
	t.Helper()

	req := httptest.NewRequest("GET", path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := New(Options{}).Test(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestHomeShowsConsentUntilAccepted(t *testing.T) {
	status, body := get(t, "/")
	assert.Equal(t, 200, status)
	assert.Contains(t, body, `aria-label="Accept all"`)
	assert.Contains(t, body, `id="search"`)
	assert.Contains(t, body, `id="search-icon-legacy"`)
	assert.Contains(t, body, `aria-label="Sign in"`)

	_, body = get(t, "/", &http.Cookie{Name: consentCookie, Value: "YES"})
	assert.NotContains(t, body, `aria-label="Accept all"`)
}

func TestSignedInHomeShowsAvatar(t *testing.T) {
	_, body := get(t, "/", &http.Cookie{Name: sessionCookie, Value: "qa"})
	assert.Contains(t, body, `class="ytd-topbar-menu-button-renderer"`)
	assert.NotContains(t, body, `aria-label="Sign in"`)
}

func TestSignInPage(t *testing.T) {
	_, body := get(t, "/signin")
	assert.Contains(t, body, `type="email"`)
	assert.Contains(t, body, `id="identifierNext"`)
	assert.Contains(t, body, `id="password-step" hidden`)
	assert.Contains(t, body, `id="passwordNext"`)
	assert.Regexp(t, `\},\s*300\s*\);`, body)
}

func TestCreateSession(t *testing.T) {
	app := New(Options{})

	form := url.Values{"email": {"qa@example.org"}, "password": {"pw"}}
	req := httptest.NewRequest("POST", "/session", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var session *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookie {
			session = c
		}
	}
	require.NotNil(t, session)
	assert.Equal(t, "qa-example-org", session.Value)

	req = httptest.NewRequest("POST", "/session", strings.NewReader("email=qa%40example.org"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestResults(t *testing.T) {
	status, body := get(t, "/results?search_query=playwright+tutorials")
	assert.Equal(t, 200, status)
	assert.Contains(t, body, "<ytd-search>")
	assert.Equal(t, ResultsPerQuery, strings.Count(body, "<ytd-video-renderer>"))
	assert.Contains(t, body, `id="video-title" href="/watch?v=v01-playwright-tutorials"`)
	assert.Contains(t, body, `value="playwright tutorials"`)
}

func TestResultsEmpty(t *testing.T) {
	_, body := get(t, "/results?search_query=zzzzqqq")
	assert.Contains(t, body, "<ytd-search>")
	assert.Zero(t, strings.Count(body, "<ytd-video-renderer>"))
	assert.Contains(t, body, "No results found")
}

func TestWatch(t *testing.T) {
	_, body := get(t, "/watch?v=v03-playwright-tutorials")
	assert.Contains(t, body, `class="html5-main-video"`)
	assert.Contains(t, body, `aria-label="Play (k)"`)
	assert.Contains(t, body, `class="ytp-progress-bar"`)
	assert.Contains(t, body, `<h1 class="ytd-video-primary-info-renderer">Playwright Tutorials, part 3</h1>`)

	status, _ := get(t, "/watch")
	assert.Equal(t, 302, status)
}

func TestSearch(t *testing.T) {
	videos := Search("  Go generics ")
	require.Len(t, videos, ResultsPerQuery)
	assert.Equal(t, Video{ID: "v01-go-generics", Title: "Go Generics, part 1"}, videos[0])
	assert.Equal(t, videos[4].Title, titleFromID(videos[4].ID))

	intl := Search("élan vital")
	require.Len(t, intl, ResultsPerQuery)
	assert.Equal(t, Video{ID: "v02-élan-vital", Title: "Élan Vital, part 2"}, intl[1])
	assert.True(t, utf8.ValidString(intl[1].Title))
	assert.Equal(t, intl[1].Title, titleFromID(intl[1].ID))

	assert.Empty(t, Search("zzzz"))
	assert.Empty(t, Search(""))
	assert.Empty(t, titleFromID("nope"))
}

func TestStartAndShutdown(t *testing.T) {
	srv, err := Start("127.0.0.1:0", Options{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(srv.URL(), "http://127.0.0.1:"))

	client := &http.Client{Timeout: 5 * time.Second}
	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = client.Get(srv.URL() + "/")
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)
	resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, srv.Shutdown(ctx))
}

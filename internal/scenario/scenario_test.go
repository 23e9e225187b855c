package scenario

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ahrdadan/ytflow/internal/browser"
	"github.com/ahrdadan/ytflow/internal/browser/browsertest"
	"github.com/ahrdadan/ytflow/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type element = browsertest.Element

const firstTitle = "ytd-video-renderer >> nth=0 >> h3 a#video-title"

// siteSession models a signed-out home page where every flow step succeeds.
func siteSession() *browsertest.Session {
	s := browsertest.NewSession()
	for _, sel := range []string{
		`a[aria-label="Sign in"]`,
		`input[type="email"]`,
		"#identifierNext button",
		`input[type="password"]`,
		"#passwordNext button",
		"img.ytd-topbar-menu-button-renderer",
		"input#search",
		"button#search-icon-legacy",
		"ytd-search",
		firstTitle,
		"video.html5-main-video",
	} {
		s.Set(sel, &element{Visible: true})
	}
	s.Set("ytd-video-renderer", &element{Visible: true, Count: 12})
	s.Set("h1.ytd-video-primary-info-renderer", &element{Visible: true, Text: "Playwright Tutorial for Beginners"})
	s.Set(`button.ytp-play-button[aria-label*="Play"]`, &element{Visible: true})
	return s
}

func newT(session browser.Session) *T {
	return &T{
		Session:       session,
		Config:        config.DefaultConfig(),
		Credentials:   config.Credentials{Email: "qa@example.org", Password: "pw"},
		ExpectTimeout: time.Second,
	}
}

func TestLoginSearchAndPlay(t *testing.T) {
	session := siteSession()
	require.NoError(t, LoginSearchAndPlay(context.Background(), newT(session)))

	assert.Equal(t, "goto /", session.Calls()[0], "starts on the home page")
	assert.Equal(t, "qa@example.org", session.Filled(`input[type="email"]`))
	assert.Equal(t, SearchQuery, session.Filled("input#search"))
	assert.Equal(t, 1, session.Clicks(firstTitle))
}

func TestLoginSearchAndPlayAvatarMissing(t *testing.T) {
	session := siteSession()
	session.Set("img.ytd-topbar-menu-button-renderer", &element{})

	tt := newT(session)
	tt.Credentials = config.LoadCredentials(func(string) string { return "" })

	err := LoginSearchAndPlay(context.Background(), tt)
	require.Error(t, err)
	assert.True(t, IsAssertion(err))
	assert.Contains(t, err.Error(), "toBeVisible")
	assert.Contains(t, err.Error(), "img.ytd-topbar-menu-button-renderer")
	assert.Len(t, tt.Logs(), 1, "placeholder credentials are logged")
}

func TestSearchAndControlPlayback(t *testing.T) {
	session := siteSession()
	tt := newT(session)
	require.NoError(t, SearchAndControlPlayback(context.Background(), tt))

	assert.Equal(t, 1, session.Clicks(`button.ytp-play-button[aria-label*="Play"]`))
	assert.Zero(t, session.Clicks(`button.ytp-play-button[aria-label*="Pause"]`))
	assert.Contains(t, tt.Logs(), `playing "Playwright Tutorial for Beginners"`)
}

func TestSearchAndControlPlaybackNoResults(t *testing.T) {
	session := siteSession()
	session.Set("ytd-video-renderer", &element{})

	err := SearchAndControlPlayback(context.Background(), newT(session))
	require.Error(t, err)
	assert.True(t, IsAssertion(err))
	assert.Contains(t, err.Error(), "got 0")
}

func TestSearchAndControlPlaybackEmptyTitle(t *testing.T) {
	session := siteSession()
	session.Set("h1.ytd-video-primary-info-renderer", &element{Visible: true})

	err := SearchAndControlPlayback(context.Background(), newT(session))
	assert.True(t, IsAssertion(err))
}

func TestExpectPassesThroughNonTimeoutErrors(t *testing.T) {
	session := browsertest.NewSession()
	session.Set("#broken", &element{Err: errors.New("target closed")})

	err := newT(session).Expect(session.Locator("#broken")).ToBeVisible(context.Background())
	require.Error(t, err)
	assert.False(t, IsAssertion(err))
}

func TestExpectToBeHidden(t *testing.T) {
	session := browsertest.NewSession()
	session.Set("#spinner", &element{Visible: true})

	tt := newT(session)
	err := tt.Expect(session.Locator("#spinner")).ToBeHidden(context.Background())
	assert.True(t, IsAssertion(err))

	session.Set("#spinner", &element{})
	assert.NoError(t, tt.Expect(session.Locator("#spinner")).ToBeHidden(context.Background()))
}

func TestAssertionErrorMessage(t *testing.T) {
	err := &AssertionError{Matcher: "toBeVisible", Selector: "ytd-search", Message: "not visible after 5s"}
	assert.Equal(t, `expect("ytd-search").toBeVisible() failed: not visible after 5s`, err.Error())

	assert.Equal(t, "expect failed: count", (&AssertionError{Message: "count"}).Error())
}

func TestDiscover(t *testing.T) {
	r := &Registry{}
	r.Add(Scenario{File: "tests/youtube", Title: "login flow", Tags: []string{"@login"}})
	r.Add(Scenario{File: "tests/youtube", Title: "playback"})
	r.Add(Scenario{File: "e2e/other", Title: "other"})
	r.Add(Scenario{File: "tests-old/legacy", Title: "legacy"})

	all, err := r.Discover("./tests", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	filtered, err := r.Discover("tests", "@login")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "tests/youtube > login flow", filtered[0].ID())

	everything, err := r.Discover(".", "")
	require.NoError(t, err)
	assert.Len(t, everything, 4)
	assert.Equal(t, "e2e/other", everything[0].File, "sorted by file")

	_, err = r.Discover("tests", "(")
	assert.Error(t, err)
}

func TestBuiltinScenariosRegistered(t *testing.T) {
	scenarios, err := Discover("./tests", "")
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "YouTube login, search and play video", scenarios[0].Title)
	assert.Equal(t, "search and control playback", scenarios[1].Title)
}

func TestFilterOnly(t *testing.T) {
	scenarios := []Scenario{{Title: "a"}, {Title: "b", Only: true}}
	assert.True(t, HasOnly(scenarios))
	assert.Equal(t, []Scenario{{Title: "b", Only: true}}, FilterOnly(scenarios))

	none := []Scenario{{Title: "a"}}
	assert.False(t, HasOnly(none))
	assert.Len(t, FilterOnly(none), 1)
}

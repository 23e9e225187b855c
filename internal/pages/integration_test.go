package pages_test

import (
	"context"
	"testing"
	"time"

	"github.com/ahrdadan/ytflow/internal/browser"
	"github.com/ahrdadan/ytflow/internal/config"
	"github.com/ahrdadan/ytflow/internal/fixture"
	"github.com/ahrdadan/ytflow/internal/pages"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startSite launches headless Chrome against a local fixture site.
func startSite(t *testing.T, timeout time.Duration) browser.Session {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	bin, ok := launcher.LookPath()
	if !ok {
		t.Skip("no chrome found")
	}

	site, err := fixture.Start("127.0.0.1:0", fixture.Options{})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = site.Shutdown(ctx)
	})

	engine := browser.NewChromeManager(bin, true)
	require.NoError(t, engine.Start())
	t.Cleanup(func() { _ = engine.Stop() })

	session, err := engine.NewSession(context.Background(), browser.SessionOptions{
		BaseURL:        site.URL(),
		DefaultTimeout: timeout,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = session.Finish(context.Background(), false) })

	return session
}

func TestFlowAgainstFixture(t *testing.T) {
	session := startSite(t, 10*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	home := pages.NewHomePage(session)
	require.NoError(t, session.Goto(ctx, "/"))
	require.NoError(t, home.AcceptCookiesIfPresent(ctx))
	// Second call finds no dialog and still succeeds.
	require.NoError(t, home.AcceptCookiesIfPresent(ctx))

	require.NoError(t, home.ClickSignIn(ctx))
	require.NoError(t, pages.NewLoginPage(session).Login(ctx, config.Credentials{
		Email:    "qa@example.org",
		Password: "secret",
	}))
	require.NoError(t, home.UserAvatar().WaitFor(ctx, browser.StateVisible, 5*time.Second))

	require.NoError(t, home.Search(ctx, "playwright tutorials"))

	results := pages.NewSearchResultsPage(session)
	count, err := results.GetSearchResultsCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, fixture.ResultsPerQuery, count)

	again, err := results.GetSearchResultsCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, count, again)

	require.NoError(t, results.ClickFirstVideo(ctx))

	player := pages.NewVideoPlayerPage(session)
	require.NoError(t, player.WaitForVideoToLoad(ctx))

	title, err := player.GetVideoTitle(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Playwright Tutorials, part 1", title)

	visible, err := player.ProgressBar().IsVisible(ctx)
	require.NoError(t, err)
	assert.True(t, visible)

	require.NoError(t, player.Play(ctx))
	require.NoError(t, player.Pause(ctx))
	require.NoError(t, player.Pause(ctx))

	// Paused by the first Pause call; the second is a no-op.
	playing, err := player.IsVideoPlaying(ctx)
	require.NoError(t, err)
	assert.False(t, playing)
}

func TestClickFirstVideoWithoutResultsAgainstFixture(t *testing.T) {
	session := startSite(t, 2*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	home := pages.NewHomePage(session)
	require.NoError(t, session.Goto(ctx, "/"))
	require.NoError(t, home.AcceptCookiesIfPresent(ctx))
	require.NoError(t, home.Search(ctx, "zzzz"))

	results := pages.NewSearchResultsPage(session)
	count, err := results.GetSearchResultsCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	started := time.Now()
	err = results.ClickFirstVideo(ctx)
	assert.ErrorIs(t, err, browser.ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(started), 2*time.Second)
}

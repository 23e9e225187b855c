package scenario

import (
	"context"

	"github.com/ahrdadan/ytflow/internal/pages"
)

// SearchQuery is the query both built-in scenarios search for.
const SearchQuery = "playwright tutorials"

const youtubeFile = "tests/youtube"

func init() {
	Register(Scenario{
		File:  youtubeFile,
		Title: "YouTube login, search and play video",
		Tags:  []string{"@login"},
		Run:   LoginSearchAndPlay,
	})
	Register(Scenario{
		File:  youtubeFile,
		Title: "search and control playback",
		Tags:  []string{"@playback"},
		Run:   SearchAndControlPlayback,
	})
}

// LoginSearchAndPlay signs in, searches and opens the first result.
func LoginSearchAndPlay(ctx context.Context, t *T) error {
	home := pages.NewHomePage(t.Session)
	login := pages.NewLoginPage(t.Session)
	results := pages.NewSearchResultsPage(t.Session)
	player := pages.NewVideoPlayerPage(t.Session)

	if err := t.Session.Goto(ctx, "/"); err != nil {
		return err
	}
	if err := home.AcceptCookiesIfPresent(ctx); err != nil {
		return err
	}

	if err := home.ClickSignIn(ctx); err != nil {
		return err
	}
	if t.Credentials.IsPlaceholder() {
		t.Logf("signing in with placeholder credentials, set YOUTUBE_EMAIL and YOUTUBE_PASSWORD")
	}
	if err := login.Login(ctx, t.Credentials); err != nil {
		return err
	}
	if err := t.Expect(home.UserAvatar()).ToBeVisible(ctx); err != nil {
		return err
	}

	if err := home.Search(ctx, SearchQuery); err != nil {
		return err
	}
	if err := t.Expect(results.ResultsContainer()).ToBeVisible(ctx); err != nil {
		return err
	}

	if err := results.ClickFirstVideo(ctx); err != nil {
		return err
	}
	return t.Expect(player.Player()).ToBeVisible(ctx)
}

// SearchAndControlPlayback searches without signing in and toggles playback of the first result.
func SearchAndControlPlayback(ctx context.Context, t *T) error {
	home := pages.NewHomePage(t.Session)
	results := pages.NewSearchResultsPage(t.Session)
	player := pages.NewVideoPlayerPage(t.Session)

	if err := t.Session.Goto(ctx, "/"); err != nil {
		return err
	}
	if err := home.AcceptCookiesIfPresent(ctx); err != nil {
		return err
	}
	if err := home.Search(ctx, SearchQuery); err != nil {
		return err
	}

	count, err := results.GetSearchResultsCount(ctx)
	if err != nil {
		return err
	}
	if err := t.Assert(count > 0, "expected search results for %q, got %d", SearchQuery, count); err != nil {
		return err
	}
	t.Logf("%d results for %q", count, SearchQuery)

	if err := results.ClickFirstVideo(ctx); err != nil {
		return err
	}
	if err := player.WaitForVideoToLoad(ctx); err != nil {
		return err
	}

	title, err := player.GetVideoTitle(ctx)
	if err != nil {
		return err
	}
	if err := t.Assert(title != "", "expected a video title"); err != nil {
		return err
	}
	t.Logf("playing %q", title)

	if err := player.Play(ctx); err != nil {
		return err
	}
	return player.Pause(ctx)
}

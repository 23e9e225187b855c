package pages

import (
	"context"
	"fmt"

	"github.com/ahrdadan/ytflow/internal/browser"
)

const (
	videoPlayerSelector = "video.html5-main-video"
	playButtonSelector  = `button.ytp-play-button[aria-label*="Play"]`
	pauseButtonSelector = `button.ytp-play-button[aria-label*="Pause"]`
	videoTitleSelector  = "h1.ytd-video-primary-info-renderer"
	progressBarSelector = ".ytp-progress-bar"
)

// isPlayingScript reads the live media element, so it never sees a stale player.
var isPlayingScript = fmt.Sprintf(`() => {
	const video = document.querySelector(%q);
	return video ? !video.paused : false;
}`, videoPlayerSelector)

// VideoPlayerPage is the watch page.
type VideoPlayerPage struct {
	session     browser.Session
	videoPlayer browser.Locator
	playButton  browser.Locator
	pauseButton browser.Locator
	videoTitle  browser.Locator
	progressBar browser.Locator
}

func NewVideoPlayerPage(session browser.Session) *VideoPlayerPage {
	return &VideoPlayerPage{
		session:     session,
		videoPlayer: session.Locator(videoPlayerSelector),
		playButton:  session.Locator(playButtonSelector),
		pauseButton: session.Locator(pauseButtonSelector),
		videoTitle:  session.Locator(videoTitleSelector),
		progressBar: session.Locator(progressBarSelector),
	}
}

func (p *VideoPlayerPage) WaitForVideoToLoad(ctx context.Context) error {
	return p.videoPlayer.WaitFor(ctx, browser.StateVisible, 0)
}

// Play clicks the play control if it is showing; otherwise the video is already playing.
func (p *VideoPlayerPage) Play(ctx context.Context) error {
	return clickIfVisible(ctx, p.playButton)
}

// Pause clicks the pause control if it is showing.
func (p *VideoPlayerPage) Pause(ctx context.Context) error {
	return clickIfVisible(ctx, p.pauseButton)
}

// GetVideoTitle waits for the title heading and returns its text, "" when it has none.
func (p *VideoPlayerPage) GetVideoTitle(ctx context.Context) (string, error) {
	if err := p.videoTitle.WaitFor(ctx, browser.StateVisible, 0); err != nil {
		return "", err
	}
	return p.videoTitle.TextContent(ctx)
}

// IsVideoPlaying reports whether the media element exists and is not paused.
func (p *VideoPlayerPage) IsVideoPlaying(ctx context.Context) (bool, error) {
	value, err := p.session.Evaluate(ctx, isPlayingScript)
	if err != nil {
		return false, fmt.Errorf("failed to read playback state: %w", err)
	}
	playing, _ := value.(bool)
	return playing, nil
}

func (p *VideoPlayerPage) Player() browser.Locator {
	return p.videoPlayer
}

func (p *VideoPlayerPage) ProgressBar() browser.Locator {
	return p.progressBar
}

func clickIfVisible(ctx context.Context, control browser.Locator) error {
	visible, err := control.IsVisible(ctx)
	if err != nil {
		return err
	}
	if !visible {
		return nil
	}
	return control.Click(ctx)
}

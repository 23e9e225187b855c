package pages

import (
	"context"

	"github.com/ahrdadan/ytflow/internal/browser"
)

const (
	resultsContainerSelector = "ytd-search"
	videoResultSelector      = "ytd-video-renderer"
	videoTitleLinkSelector   = "h3 a#video-title"
)

// SearchResultsPage lists the videos returned for a query.
type SearchResultsPage struct {
	session          browser.Session
	resultsContainer browser.Locator
	videoResults     browser.Locator
}

func NewSearchResultsPage(session browser.Session) *SearchResultsPage {
	return &SearchResultsPage{
		session:          session,
		resultsContainer: session.Locator(resultsContainerSelector),
		videoResults:     session.Locator(videoResultSelector),
	}
}

// ClickFirstVideo opens the first result in document order. With no results the wait
// for its title runs into the default timeout.
func (p *SearchResultsPage) ClickFirstVideo(ctx context.Context) error {
	if err := p.resultsContainer.WaitFor(ctx, browser.StateVisible, 0); err != nil {
		return err
	}

	title := p.videoResults.First().Locator(videoTitleLinkSelector)
	if err := title.WaitFor(ctx, browser.StateVisible, 0); err != nil {
		return err
	}
	if err := title.Click(ctx); err != nil {
		return err
	}

	return p.session.WaitForNetworkIdle(ctx)
}

// GetSearchResultsCount returns how many results are rendered right now.
func (p *SearchResultsPage) GetSearchResultsCount(ctx context.Context) (int, error) {
	if err := p.resultsContainer.WaitFor(ctx, browser.StateVisible, 0); err != nil {
		return 0, err
	}
	return p.videoResults.Count(ctx)
}

func (p *SearchResultsPage) ResultsContainer() browser.Locator {
	return p.resultsContainer
}

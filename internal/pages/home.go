// Package pages holds the page objects for the video site. Page objects only declare
// locators; nothing touches the browser until an operation is called.
package pages

import (
	"context"
	"time"

	"github.com/ahrdadan/ytflow/internal/browser"
)

// ConsentTimeout bounds how long AcceptCookiesIfPresent looks for the consent dialog.
const ConsentTimeout = 5000 * time.Millisecond

const (
	searchInputSelector   = "input#search"
	searchButtonSelector  = "button#search-icon-legacy"
	signInSelector        = `a[aria-label="Sign in"]`
	userAvatarSelector    = "img.ytd-topbar-menu-button-renderer"
	acceptCookiesSelector = `button[aria-label="Accept all"], button[aria-label="Accept the use of cookies and other data for the purposes described"]`
)

// HomePage is the landing page with the search bar and sign-in entry point.
type HomePage struct {
	session       browser.Session
	searchInput   browser.Locator
	searchButton  browser.Locator
	signInButton  browser.Locator
	userAvatar    browser.Locator
	acceptCookies browser.Locator
}

func NewHomePage(session browser.Session) *HomePage {
	return &HomePage{
		session:       session,
		searchInput:   session.Locator(searchInputSelector),
		searchButton:  session.Locator(searchButtonSelector),
		signInButton:  session.Locator(signInSelector),
		userAvatar:    session.Locator(userAvatarSelector),
		acceptCookies: session.Locator(acceptCookiesSelector),
	}
}

// Search types query into the search box and submits it.
func (p *HomePage) Search(ctx context.Context, query string) error {
	if err := p.searchInput.Fill(ctx, query); err != nil {
		return err
	}
	return p.searchButton.Click(ctx)
}

func (p *HomePage) ClickSignIn(ctx context.Context) error {
	return p.signInButton.Click(ctx)
}

// AcceptCookiesIfPresent dismisses the consent dialog when it shows up within ConsentTimeout.
// It never fails: a missing dialog or a failed click leaves the page as it was.
func (p *HomePage) AcceptCookiesIfPresent(ctx context.Context) error {
	if err := p.acceptCookies.WaitFor(ctx, browser.StateVisible, ConsentTimeout); err != nil {
		return nil
	}
	_ = p.acceptCookies.First().Click(ctx)
	return nil
}

// UserAvatar is visible once a user is signed in.
func (p *HomePage) UserAvatar() browser.Locator {
	return p.userAvatar
}

package pages

import (
	"context"

	"github.com/ahrdadan/ytflow/internal/browser"
	"github.com/ahrdadan/ytflow/internal/config"
)

const (
	emailInputSelector    = `input[type="email"]`
	nextButtonSelector    = "#identifierNext button"
	passwordInputSelector = `input[type="password"]`
	submitButtonSelector  = "#passwordNext button"
)

// LoginPage is the two-step sign-in form: email first, then password.
type LoginPage struct {
	session       browser.Session
	emailInput    browser.Locator
	nextButton    browser.Locator
	passwordInput browser.Locator
	submitButton  browser.Locator
}

func NewLoginPage(session browser.Session) *LoginPage {
	return &LoginPage{
		session:       session,
		emailInput:    session.Locator(emailInputSelector),
		nextButton:    session.Locator(nextButtonSelector),
		passwordInput: session.Locator(passwordInputSelector),
		submitButton:  session.Locator(submitButtonSelector),
	}
}

// Login submits both steps of the form and waits for the network to settle.
// Whether the sign-in succeeded is left to the caller.
func (p *LoginPage) Login(ctx context.Context, creds config.Credentials) error {
	if err := p.emailInput.Fill(ctx, creds.Email); err != nil {
		return err
	}
	if err := p.nextButton.Click(ctx); err != nil {
		return err
	}

	// The password step is rendered after the email step is accepted.
	if err := p.passwordInput.WaitFor(ctx, browser.StateVisible, 0); err != nil {
		return err
	}
	if err := p.passwordInput.Fill(ctx, creds.Password); err != nil {
		return err
	}
	if err := p.submitButton.Click(ctx); err != nil {
		return err
	}

	return p.session.WaitForNetworkIdle(ctx)
}

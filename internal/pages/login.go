// Package pages holds page objects: typed wrappers around the screens under
// test so suites and the session bootstrap talk selectors in exactly one
// place.
package pages

import (
	"context"
	"net/url"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/e2ekit/internal/browser"
	"github.com/kuitang/e2ekit/internal/errs"
	"github.com/kuitang/e2ekit/internal/logutil"
	"github.com/kuitang/e2ekit/internal/obs"
)

// LoginPage wraps the sign-in screen.
type LoginPage struct {
	page    playwright.Page
	baseURL string
}

// NewLoginPage binds a login page object to a Playwright page.
func NewLoginPage(page playwright.Page, baseURL string) *LoginPage {
	return &LoginPage{page: page, baseURL: baseURL}
}

// Open navigates to the login form and waits for it to render.
func (p *LoginPage) Open(ctx context.Context) error {
	obs.From(ctx).Info("open login page")
	if err := browser.Navigate(p.page, p.baseURL, "/login"); err != nil {
		return err
	}
	_, err := browser.WaitVisible(p.page, "#email")
	return err
}

// LoginAs fills the credential form and submits it. It returns once the
// submit navigation settles; callers decide whether login succeeded via
// LoggedIn or ErrorFlash.
func (p *LoginPage) LoginAs(ctx context.Context, email, password string) error {
	form := url.Values{"email": {email}, "password": {password}}
	obs.From(ctx).Info("submit login form",
		"form", logutil.RedactFormValues(form).Encode())

	emailInput, err := browser.WaitVisible(p.page, "#email")
	if err != nil {
		return err
	}
	if err := emailInput.Fill(email); err != nil {
		return errs.Wrap(errs.Assertion, "fill email", err)
	}

	passwordInput, err := browser.WaitVisible(p.page, "#password")
	if err != nil {
		return err
	}
	if err := passwordInput.Fill(password); err != nil {
		return errs.Wrap(errs.Assertion, "fill password", err)
	}

	if err := p.page.Locator("#login-btn").Click(); err != nil {
		return errs.Wrap(errs.Assertion, "click sign in", err)
	}

	err = p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State: playwright.LoadStateDomcontentloaded,
	})
	if err != nil {
		return errs.Wrap(errs.Timeout, "wait for login navigation", err)
	}
	return nil
}

// LoggedIn reports whether the post-login profile marker is visible.
func (p *LoginPage) LoggedIn() bool {
	_, err := browser.WaitVisible(p.page, "#profile-email")
	return err == nil
}

// ErrorFlash returns the visible login error text, or empty string.
func (p *LoginPage) ErrorFlash() string {
	flash, err := browser.WaitVisible(p.page, ".flash-error")
	if err != nil {
		return ""
	}
	text, err := flash.TextContent()
	if err != nil {
		return ""
	}
	return text
}

package pages

import (
	"context"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/e2ekit/internal/browser"
	"github.com/kuitang/e2ekit/internal/errs"
	"github.com/kuitang/e2ekit/internal/obs"
)

// ProfilePage wraps the signed-in profile screen.
type ProfilePage struct {
	page    playwright.Page
	baseURL string
}

// NewProfilePage binds a profile page object to a Playwright page.
func NewProfilePage(page playwright.Page, baseURL string) *ProfilePage {
	return &ProfilePage{page: page, baseURL: baseURL}
}

// Open navigates to the profile screen. Unauthenticated sessions are
// redirected to /login, which Open reports as an assertion failure.
func (p *ProfilePage) Open(ctx context.Context) error {
	obs.From(ctx).Info("open profile page")
	if err := browser.Navigate(p.page, p.baseURL, "/profile"); err != nil {
		return err
	}
	if _, err := browser.WaitVisible(p.page, "#profile-email"); err != nil {
		return errs.Wrap(errs.Assertion, "profile not reachable (redirected to login?)", err)
	}
	return nil
}

// Email returns the email shown on the profile.
func (p *ProfilePage) Email() (string, error) {
	locator, err := browser.WaitVisible(p.page, "#profile-email")
	if err != nil {
		return "", err
	}
	text, err := locator.TextContent()
	if err != nil {
		return "", errs.Wrap(errs.Assertion, "read profile email", err)
	}
	return text, nil
}

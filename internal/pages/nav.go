package pages

import (
	"context"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/e2ekit/internal/browser"
	"github.com/kuitang/e2ekit/internal/errs"
	"github.com/kuitang/e2ekit/internal/obs"
)

// NavBar wraps the navigation strip rendered on signed-in screens.
type NavBar struct {
	page playwright.Page
}

// NewNavBar binds a nav bar object to a Playwright page.
func NewNavBar(page playwright.Page) *NavBar {
	return &NavBar{page: page}
}

// IsLoggedIn reports whether the signed-in user marker is visible.
func (n *NavBar) IsLoggedIn() bool {
	_, err := browser.WaitVisible(n.page, "#nav-user")
	return err == nil
}

// Logout clicks the sign-out button and waits for the login form.
func (n *NavBar) Logout(ctx context.Context) error {
	obs.From(ctx).Info("log out")

	logoutBtn, err := browser.WaitVisible(n.page, "#logout-btn")
	if err != nil {
		return err
	}
	if err := logoutBtn.Click(); err != nil {
		return errs.Wrap(errs.Assertion, "click sign out", err)
	}
	if _, err := browser.WaitVisible(n.page, "#login-btn"); err != nil {
		return errs.Wrap(errs.Assertion, "login form not shown after logout", err)
	}
	return nil
}

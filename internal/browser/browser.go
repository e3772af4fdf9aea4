// Package browser wraps the Playwright driver lifecycle: one Session per
// worker, pages and contexts with pinned default timeouts, and small
// navigate/wait/screenshot helpers that classify failures into the harness
// error taxonomy.
package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/e2ekit/internal/errs"
)

// Every wait and navigation in the harness uses these timeouts. Never
// introduce a larger timeout value in page objects or suites.
const (
	DefaultTimeoutMS = 5000
	DefaultTimeout   = 5 * time.Second
)

// Session owns a Playwright driver and one launched browser.
type Session struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	mu      sync.Mutex
}

// Launch starts Playwright and launches Chromium.
func Launch(headless bool) (*Session, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, errs.Wrap(errs.Setup, "start playwright driver", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, errs.Wrap(errs.Setup, "launch browser", err)
	}
	return &Session{pw: pw, browser: browser}, nil
}

// Close shuts the browser and the driver down. Safe to call twice.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser != nil {
		_ = s.browser.Close()
		s.browser = nil
	}
	if s.pw != nil {
		_ = s.pw.Stop()
		s.pw = nil
	}
}

// Browser exposes the underlying driver handle.
func (s *Session) Browser() playwright.Browser {
	return s.browser
}

// NewPage creates a page with the default timeouts applied.
func (s *Session) NewPage() (playwright.Page, error) {
	page, err := s.browser.NewPage()
	if err != nil {
		return nil, errs.Wrap(errs.Setup, "create page", err)
	}
	page.SetDefaultTimeout(DefaultTimeoutMS)
	page.SetDefaultNavigationTimeout(DefaultTimeoutMS)
	return page, nil
}

// NewContext creates a browser context with the default timeouts applied.
// Pass options to reuse a stored session snapshot.
func (s *Session) NewContext(options ...playwright.BrowserNewContextOptions) (playwright.BrowserContext, error) {
	ctx, err := s.browser.NewContext(options...)
	if err != nil {
		return nil, errs.Wrap(errs.Setup, "create browser context", err)
	}
	ctx.SetDefaultTimeout(DefaultTimeoutMS)
	ctx.SetDefaultNavigationTimeout(DefaultTimeoutMS)
	return ctx, nil
}

func classify(action string, err error) error {
	if strings.Contains(err.Error(), "Timeout") {
		return errs.Wrap(errs.Timeout, action, err)
	}
	return errs.Wrap(errs.Assertion, action, err)
}

// Navigate opens baseURL+path and waits for DOMContentLoaded.
func Navigate(page playwright.Page, baseURL, path string) error {
	_, err := page.Goto(baseURL+path, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(DefaultTimeoutMS),
	})
	if err != nil {
		return classify(fmt.Sprintf("navigate to %s", path), err)
	}
	return nil
}

// WaitVisible waits for the first match of selector to become visible and
// returns its locator.
func WaitVisible(page playwright.Page, selector string) (playwright.Locator, error) {
	locator := page.Locator(selector).First()
	err := locator.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(DefaultTimeoutMS),
	})
	if err != nil {
		return nil, classify(fmt.Sprintf("wait for selector %s", selector), err)
	}
	return locator, nil
}

// Screenshot writes a full-page PNG under dir and returns its path.
func Screenshot(page playwright.Page, dir, name string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errs.Wrap(errs.IO, "create screenshot directory", err)
	}
	path := filepath.Join(dir, name+".png")
	_, err := page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		return "", errs.Wrap(errs.IO, "capture screenshot", err)
	}
	return path, nil
}

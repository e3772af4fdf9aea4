package browser

import (
	"regexp"
	"testing"

	"github.com/playwright-community/playwright-go"
)

// LaunchForTest launches a session, skipping the test when Playwright or the
// browser binaries are not available, and closes it on cleanup.
func LaunchForTest(t *testing.T, headless bool) *Session {
	t.Helper()

	session, err := Launch(headless)
	if err != nil {
		t.Skip("Playwright not available:", err)
	}
	t.Cleanup(session.Close)
	return session
}

// NewPageForTest creates a page and closes it on cleanup.
func NewPageForTest(t *testing.T, session *Session) playwright.Page {
	t.Helper()

	page, err := session.NewPage()
	if err != nil {
		t.Fatalf("could not create page: %v", err)
	}
	t.Cleanup(func() { _ = page.Close() })
	return page
}

var screenshotNameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// CaptureOnFailure registers a cleanup that screenshots the page into dir
// when the test has failed, naming the file after the test.
func CaptureOnFailure(t *testing.T, page playwright.Page, dir string) {
	t.Helper()

	t.Cleanup(func() {
		if !t.Failed() || page.IsClosed() {
			return
		}
		name := screenshotNameSanitizer.ReplaceAllString(t.Name(), "_")
		path, err := Screenshot(page, dir, name)
		if err != nil {
			t.Logf("failed to capture failure screenshot: %v", err)
			return
		}
		t.Logf("failure screenshot: %s", path)
	})
}

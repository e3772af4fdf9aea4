// Package session produces and consumes the authenticated-session snapshot:
// the bootstrap logs in through the UI once per run and captures the browser
// storage state (cookies plus per-origin storage) to a well-known file, and
// every test that declares pre-authenticated state opens a browser context
// from that file instead of logging in again.
//
// There is no staleness detection. When credentials or the target
// environment change, re-run the bootstrap; a stale snapshot surfaces as
// authentication failures downstream.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/e2ekit/internal/browser"
	"github.com/kuitang/e2ekit/internal/config"
	"github.com/kuitang/e2ekit/internal/errs"
	"github.com/kuitang/e2ekit/internal/obs"
	"github.com/kuitang/e2ekit/internal/pages"
)

// Cookie is one captured browser cookie.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite"`
}

// StorageEntry is one localStorage key/value pair.
type StorageEntry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Origin is one origin's captured storage.
type Origin struct {
	Origin       string         `json:"origin"`
	LocalStorage []StorageEntry `json:"localStorage"`
}

// Snapshot mirrors the storage-state file format.
type Snapshot struct {
	Cookies []Cookie `json:"cookies"`
	Origins []Origin `json:"origins"`
}

// LoadSnapshot reads a snapshot file for inspection. Unlike the outcome
// store, a missing or corrupt snapshot is an error: tests depending on
// pre-authenticated state cannot proceed without one.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.IO, "read session snapshot", err)
	}
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, errs.Wrap(errs.IO, "parse session snapshot", err)
	}
	return &snapshot, nil
}

// ContextOptions returns browser-context options that restore the snapshot
// at path, for the driver's pre-authenticated context feature.
func ContextOptions(path string) playwright.BrowserNewContextOptions {
	return playwright.BrowserNewContextOptions{
		StorageStatePath: playwright.String(path),
	}
}

// Bootstrap authenticates through the login form and writes the session
// snapshot to cfg.SnapshotPath(). It runs unconditionally: every invocation
// regenerates the snapshot. On any failure the run must abort; a
// pre-existing snapshot file is left untouched (and therefore stale).
func Bootstrap(ctx context.Context, sess *browser.Session, cfg config.Config) (*Snapshot, error) {
	log := obs.From(ctx)
	log.Info("session bootstrap starting", "base_url", cfg.BaseURL, "environment", string(cfg.Environment))

	bctx, err := sess.NewContext()
	if err != nil {
		return nil, err
	}
	defer bctx.Close()

	page, err := bctx.NewPage()
	if err != nil {
		return nil, errs.Wrap(errs.Setup, "create bootstrap page", err)
	}

	// The login runs exactly once. Any failure here aborts the run; retrying
	// would resubmit credentials and can trip the target's login throttle.
	login := pages.NewLoginPage(page, cfg.BaseURL)
	if err := login.Open(ctx); err != nil {
		return nil, errs.Wrap(errs.Setup, "open login form", err)
	}
	if err := login.LoginAs(ctx, cfg.LoginEmail, cfg.LoginPassword); err != nil {
		return nil, errs.Wrap(errs.Setup, "submit credentials", err)
	}
	if !login.LoggedIn() {
		return nil, errs.New(errs.Setup,
			fmt.Sprintf("login did not complete for %s; check credentials and target environment", cfg.LoginEmail))
	}

	state, err := bctx.StorageState()
	if err != nil {
		return nil, errs.Wrap(errs.Setup, "capture storage state", err)
	}
	if len(state.Cookies) == 0 {
		return nil, errs.New(errs.Setup, "authenticated session produced no cookies")
	}

	if err := writeSnapshotFile(cfg.SnapshotPath(), state); err != nil {
		return nil, err
	}

	log.Info("session bootstrap complete",
		"snapshot", cfg.SnapshotPath(),
		"cookies", len(state.Cookies),
		"origins", len(state.Origins))
	return LoadSnapshot(cfg.SnapshotPath())
}

// writeSnapshotFile writes the captured state via a temp file and rename, so
// a failure mid-write never clobbers an existing snapshot.
func writeSnapshotFile(path string, state *playwright.StorageState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errs.Wrap(errs.IO, "encode session snapshot", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrap(errs.IO, "create snapshot directory", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return errs.Wrap(errs.IO, "create snapshot temp file", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errs.Wrap(errs.IO, "write snapshot temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errs.Wrap(errs.IO, "close snapshot temp file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errs.Wrap(errs.IO, "move snapshot into place", err)
	}
	return nil
}

// Package browser holds the harness's own end-to-end suite: it boots the
// demo application in-process and drives it through Playwright using the
// fixture composer, the session bootstrap, and the outcome store.
// All test files use TestEnv via SetupTestEnv(t).
package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/e2ekit/internal/apiclient"
	driver "github.com/kuitang/e2ekit/internal/browser"
	"github.com/kuitang/e2ekit/internal/config"
	"github.com/kuitang/e2ekit/internal/demoapp"
	"github.com/kuitang/e2ekit/internal/fixture"
	"github.com/kuitang/e2ekit/internal/obs"
	"github.com/kuitang/e2ekit/internal/outcome"
	"github.com/kuitang/e2ekit/internal/retry"
	"github.com/kuitang/e2ekit/internal/testdata"
)

// Credentials seeded into the demo app. The invalid pair is deliberately
// wrong and never registered.
const (
	TestUserEmail       = "qa@example.com"
	TestUserPassword    = "correct-horse-battery"
	InvalidUserEmail    = "nobody@example.com"
	InvalidUserPassword = "wrong-password"
)

var (
	envMu     sync.Mutex
	sharedEnv *TestEnv

	runID = obs.NewRunID()
)

// TestEnv is the unified environment for the e2e suite: the demo app, its
// server, harness configuration pointing at it, and the shared state files.
type TestEnv struct {
	App      *demoapp.App
	Server   *httptest.Server
	Cfg      config.Config
	Outcomes *outcome.Store
	APIToken string
	StateDir string

	session *driver.Session
	sessMu  sync.Mutex
}

// SetupTestEnv returns the shared suite environment, creating it on first
// use. The environment is process-wide on purpose: the outcome store exists
// to span tests.
func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	envMu.Lock()
	defer envMu.Unlock()

	if sharedEnv != nil {
		return sharedEnv
	}

	stateDir, err := os.MkdirTemp("", "e2ekit-suite-*")
	if err != nil {
		t.Fatalf("Failed to create suite state dir: %v", err)
	}

	apiToken := testdata.SessionToken()
	app := demoapp.New(demoapp.WithAPIToken(apiToken))
	if err := app.AddUser(TestUserEmail, TestUserPassword); err != nil {
		t.Fatalf("Failed to seed test user: %v", err)
	}
	server := httptest.NewServer(app.Handler())
	waitForHealthy(t, server.URL)

	cfg := config.Config{
		Settings: config.Settings{
			// Outcome-gated tests are only reliable single-worker.
			ExecutionMode: config.ExecutionSequential,
			BrowserMode:   config.BrowserHeadless,
			Environment:   config.EnvLocal,
		},
		BaseURL:         server.URL,
		LoginEmail:      TestUserEmail,
		LoginPassword:   TestUserPassword,
		InvalidEmail:    InvalidUserEmail,
		InvalidPassword: InvalidUserPassword,
		APIToken:        apiToken,
		StateDir:        stateDir,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Suite configuration invalid: %v", err)
	}

	sharedEnv = &TestEnv{
		App:      app,
		Server:   server,
		Cfg:      cfg,
		Outcomes: outcome.NewStore(cfg.OutcomePath()),
		APIToken: apiToken,
		StateDir: stateDir,
	}
	return sharedEnv
}

// waitForHealthy polls the target's health endpoint until it answers,
// retrying transient failures before the suite gives up.
func waitForHealthy(t *testing.T, baseURL string) {
	t.Helper()

	ctx := obs.WithRunID(context.Background(), runID)
	api := apiclient.New(baseURL)
	err := retry.Do(ctx, retry.Config{Delay: 100 * time.Millisecond}, func() error {
		resp, err := api.Get(ctx, "/healthz")
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("healthz returned %d", resp.StatusCode)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Target never became healthy: %v", err)
	}
}

// InitBrowser lazily launches the shared Playwright session, skipping the
// test when the driver is unavailable.
func (env *TestEnv) InitBrowser(t *testing.T) *driver.Session {
	t.Helper()

	env.sessMu.Lock()
	defer env.sessMu.Unlock()

	if env.session != nil {
		return env.session
	}
	session, err := driver.Launch(env.Cfg.Headless())
	if err != nil {
		t.Skip("Playwright not available:", err)
	}
	env.session = session
	return session
}

// TestContext returns a context carrying run and test correlation for logs.
func (env *TestEnv) TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx := obs.WithRunID(context.Background(), runID)
	return obs.WithTest(ctx, t.Name())
}

// NewRegistry builds the suite's fixture registry. Fixtures are resolved
// fresh per test; the environment itself stays shared.
func (env *TestEnv) NewRegistry(t *testing.T) *fixture.Registry {
	t.Helper()

	r := fixture.NewRegistry()
	r.MustDefine("outcomes", fixture.Def{
		Setup: func(ctx context.Context, deps fixture.Deps) (any, error) {
			return env.Outcomes, nil
		},
	})
	r.MustDefine("apiClient", fixture.Def{
		Setup: func(ctx context.Context, deps fixture.Deps) (any, error) {
			return apiclient.New(env.Cfg.BaseURL, apiclient.WithToken(env.APIToken)), nil
		},
	})
	r.MustDefine("page", fixture.Def{
		Setup: func(ctx context.Context, deps fixture.Deps) (any, error) {
			return env.InitBrowser(t).NewPage()
		},
		Teardown: func(ctx context.Context, value any) error {
			if page, ok := value.(playwright.Page); ok {
				return page.Close()
			}
			return nil
		},
	})
	return r
}

func cleanupSharedEnv() {
	envMu.Lock()
	defer envMu.Unlock()

	if sharedEnv == nil {
		return
	}
	if sharedEnv.session != nil {
		sharedEnv.session.Close()
	}
	if sharedEnv.Server != nil {
		sharedEnv.Server.Close()
	}
	if sharedEnv.StateDir != "" {
		_ = os.RemoveAll(sharedEnv.StateDir)
	}
	sharedEnv = nil
}

func TestMain(m *testing.M) {
	code := m.Run()
	cleanupSharedEnv()
	os.Exit(code)
}

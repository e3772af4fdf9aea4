package fixture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/kuitang/e2ekit/internal/errs"
)

// recordingRegistry builds a registry whose fixtures append their name to
// setupLog/teardownLog, for order assertions.
func recordingRegistry(t *testing.T, deps map[string][]string, setupLog, teardownLog *[]string) *Registry {
	t.Helper()
	r := NewRegistry()
	for name, fixtureDeps := range deps {
		name, fixtureDeps := name, fixtureDeps
		err := r.Define(name, Def{
			Deps: fixtureDeps,
			Setup: func(ctx context.Context, d Deps) (any, error) {
				*setupLog = append(*setupLog, name)
				return "value:" + name, nil
			},
			Teardown: func(ctx context.Context, value any) error {
				*teardownLog = append(*teardownLog, name)
				return nil
			},
		})
		if err != nil {
			t.Fatalf("Define(%q): %v", name, err)
		}
	}
	return r
}

func TestDefine_RejectsDuplicatesAndMissingSetup(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	if err := r.Define("page", Def{Setup: func(ctx context.Context, d Deps) (any, error) { return 1, nil }}); err != nil {
		t.Fatalf("first Define: %v", err)
	}
	if err := r.Define("page", Def{Setup: func(ctx context.Context, d Deps) (any, error) { return 2, nil }}); err == nil {
		t.Fatal("duplicate Define succeeded")
	}
	if err := r.Define("broken", Def{}); err == nil {
		t.Fatal("Define without setup succeeded")
	}
	if err := r.Define("  ", Def{Setup: func(ctx context.Context, d Deps) (any, error) { return nil, nil }}); err == nil {
		t.Fatal("Define with blank name succeeded")
	}
}

func TestResolve_TopologicalSetupReverseTeardown(t *testing.T) {
	t.Parallel()
	var setupLog, teardownLog []string
	r := recordingRegistry(t, map[string][]string{
		"browser":    nil,
		"session":    {"browser"},
		"authedPage": {"session", "browser"},
	}, &setupLog, &teardownLog)

	res, err := r.Resolve(context.Background(), "authedPage")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.State() != StateReady {
		t.Fatalf("state = %s, want ready", res.State())
	}

	wantSetup := []string{"browser", "session", "authedPage"}
	if fmt.Sprint(setupLog) != fmt.Sprint(wantSetup) {
		t.Fatalf("setup order = %v, want %v", setupLog, wantSetup)
	}
	if res.Value("session") != "value:session" {
		t.Fatalf("Value(session) = %v", res.Value("session"))
	}

	if err := res.Teardown(context.Background()); err != nil {
		t.Fatalf("Teardown: %v", err)
	}
	wantTeardown := []string{"authedPage", "session", "browser"}
	if fmt.Sprint(teardownLog) != fmt.Sprint(wantTeardown) {
		t.Fatalf("teardown order = %v, want %v", teardownLog, wantTeardown)
	}
	if res.State() != StateDone {
		t.Fatalf("state = %s, want done", res.State())
	}
}

func TestResolve_SharedDependencyBuiltOnce(t *testing.T) {
	t.Parallel()
	var setupLog, teardownLog []string
	r := recordingRegistry(t, map[string][]string{
		"config":    nil,
		"apiClient": {"config"},
		"testData":  {"config"},
	}, &setupLog, &teardownLog)

	res, err := r.Resolve(context.Background(), "apiClient", "testData")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	defer res.Teardown(context.Background())

	configCount := 0
	for _, name := range setupLog {
		if name == "config" {
			configCount++
		}
	}
	if configCount != 1 {
		t.Fatalf("config set up %d times, want 1", configCount)
	}
}

func TestResolve_SetupReceivesOnlyDeclaredDeps(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.MustDefine("secret", Def{Setup: func(ctx context.Context, d Deps) (any, error) { return "s3cret", nil }})
	r.MustDefine("open", Def{Setup: func(ctx context.Context, d Deps) (any, error) { return "open", nil }})

	var seen Deps
	r.MustDefine("consumer", Def{
		Deps: []string{"open"},
		Setup: func(ctx context.Context, d Deps) (any, error) {
			seen = d
			return nil, nil
		},
	})

	res, err := r.Resolve(context.Background(), "secret", "consumer")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	defer res.Teardown(context.Background())

	if _, ok := seen["secret"]; ok {
		t.Fatal("consumer saw an undeclared dependency")
	}
	if seen["open"] != "open" {
		t.Fatalf("declared dependency missing: %v", seen)
	}
}

func TestResolve_CycleFailsWithPath(t *testing.T) {
	t.Parallel()
	var s, d []string
	r := recordingRegistry(t, map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": {"a"},
	}, &s, &d)

	_, err := r.Resolve(context.Background(), "a")
	if err == nil {
		t.Fatal("expected cycle error")
	}
	if !errs.Is(err, errs.Cycle) {
		t.Fatalf("error code = %q, want cycle: %v", errs.CodeOf(err), err)
	}
	if !strings.Contains(err.Error(), "a -> b -> c -> a") {
		t.Fatalf("cycle error does not name the path: %v", err)
	}
	if len(s) != 0 {
		t.Fatalf("no setup should run for a cyclic graph, got %v", s)
	}
}

func TestResolve_SelfDependencyIsACycle(t *testing.T) {
	t.Parallel()
	var s, d []string
	r := recordingRegistry(t, map[string][]string{"self": {"self"}}, &s, &d)

	_, err := r.Resolve(context.Background(), "self")
	if !errs.Is(err, errs.Cycle) {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestResolve_UnknownFixtureFails(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	_, err := r.Resolve(context.Background(), "ghost")
	if err == nil {
		t.Fatal("expected error for undefined fixture")
	}
	if !errs.Is(err, errs.Setup) {
		t.Fatalf("error code = %q, want setup", errs.CodeOf(err))
	}
}

func TestResolve_SetupFailureTearsDownBuiltSiblingsOnce(t *testing.T) {
	t.Parallel()
	var teardownLog []string
	setupErr := errors.New("browser did not launch")

	r := NewRegistry()
	r.MustDefine("store", Def{
		Setup: func(ctx context.Context, d Deps) (any, error) { return "store", nil },
		Teardown: func(ctx context.Context, value any) error {
			teardownLog = append(teardownLog, "store")
			return nil
		},
	})
	r.MustDefine("session", Def{
		Deps:  []string{"store"},
		Setup: func(ctx context.Context, d Deps) (any, error) { return nil, setupErr },
	})

	res, err := r.Resolve(context.Background(), "session")
	if err == nil {
		t.Fatal("expected setup error")
	}
	if res != nil {
		t.Fatal("failed resolution must not be returned")
	}
	if !errs.Is(err, errs.Setup) {
		t.Fatalf("error code = %q, want setup", errs.CodeOf(err))
	}
	if !errors.Is(err, setupErr) {
		t.Fatalf("setup cause lost: %v", err)
	}
	if fmt.Sprint(teardownLog) != fmt.Sprint([]string{"store"}) {
		t.Fatalf("already-built fixtures torn down %v, want exactly [store]", teardownLog)
	}
}

func TestRun_TeardownRunsOnBodyError(t *testing.T) {
	t.Parallel()
	var setupLog, teardownLog []string
	r := recordingRegistry(t, map[string][]string{"page": nil}, &setupLog, &teardownLog)

	res, err := r.Resolve(context.Background(), "page")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	bodyErr := errors.New("assertion failed")
	err = res.Run(context.Background(), func(res *Resolution) error {
		if res.State() != StateRunning {
			t.Fatalf("state inside body = %s, want running", res.State())
		}
		return bodyErr
	})
	if !errors.Is(err, bodyErr) {
		t.Fatalf("Run error = %v, want body error", err)
	}
	if len(teardownLog) != 1 {
		t.Fatalf("teardown ran %d times, want 1", len(teardownLog))
	}
	if res.State() != StateFailed {
		t.Fatalf("state = %s, want failed", res.State())
	}
}

func TestTeardown_SecondCallIsNoOp(t *testing.T) {
	t.Parallel()
	var setupLog, teardownLog []string
	r := recordingRegistry(t, map[string][]string{"page": nil}, &setupLog, &teardownLog)

	res, err := r.Resolve(context.Background(), "page")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := res.Teardown(context.Background()); err != nil {
		t.Fatalf("first Teardown: %v", err)
	}
	if err := res.Teardown(context.Background()); err != nil {
		t.Fatalf("second Teardown: %v", err)
	}
	if len(teardownLog) != 1 {
		t.Fatalf("teardown ran %d times, want 1", len(teardownLog))
	}
}

func TestTeardown_ErrorsCollectedFromAllFixtures(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	r.MustDefine("a", Def{
		Setup:    func(ctx context.Context, d Deps) (any, error) { return nil, nil },
		Teardown: func(ctx context.Context, value any) error { return errors.New("a failed") },
	})
	r.MustDefine("b", Def{
		Deps:     []string{"a"},
		Setup:    func(ctx context.Context, d Deps) (any, error) { return nil, nil },
		Teardown: func(ctx context.Context, value any) error { return errors.New("b failed") },
	})

	res, err := r.Resolve(context.Background(), "b")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	err = res.Teardown(context.Background())
	if err == nil {
		t.Fatal("expected joined teardown errors")
	}
	if !strings.Contains(err.Error(), "a failed") || !strings.Contains(err.Error(), "b failed") {
		t.Fatalf("teardown error missing a cause: %v", err)
	}
}

// For any random DAG, resolution yields a valid topological order and
// teardown is its exact reverse.
func testResolve_RandomDAGOrderIsTopological(t *rapid.T) {
	n := rapid.IntRange(1, 8).Draw(t, "fixtures")
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("f%d", i)
	}

	// Edges only point at lower indices, so the graph is acyclic by
	// construction.
	deps := make(map[string][]string, n)
	for i := 1; i < n; i++ {
		candidates := names[:i]
		count := rapid.IntRange(0, len(candidates)).Draw(t, "depCount")
		picked := map[string]bool{}
		for j := 0; j < count; j++ {
			dep := rapid.SampledFrom(candidates).Draw(t, "dep")
			picked[dep] = true
		}
		for dep := range picked {
			deps[names[i]] = append(deps[names[i]], dep)
		}
	}

	var setupLog, teardownLog []string
	r := NewRegistry()
	for _, name := range names {
		name := name
		r.MustDefine(name, Def{
			Deps: deps[name],
			Setup: func(ctx context.Context, d Deps) (any, error) {
				setupLog = append(setupLog, name)
				return name, nil
			},
			Teardown: func(ctx context.Context, value any) error {
				teardownLog = append(teardownLog, name)
				return nil
			},
		})
	}

	requested := rapid.SliceOfNDistinct(rapid.SampledFrom(names), 1, n, rapid.ID[string]).Draw(t, "requested")
	res, err := r.Resolve(context.Background(), requested...)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	position := map[string]int{}
	for i, name := range setupLog {
		position[name] = i
	}
	for _, name := range setupLog {
		for _, dep := range deps[name] {
			if _, built := position[dep]; !built {
				t.Fatalf("%s set up but its dependency %s was not", name, dep)
			}
			if position[dep] >= position[name] {
				t.Fatalf("dependency %s set up after %s", dep, name)
			}
		}
	}

	if err := res.Teardown(context.Background()); err != nil {
		t.Fatalf("Teardown: %v", err)
	}
	if len(teardownLog) != len(setupLog) {
		t.Fatalf("teardown count %d != setup count %d", len(teardownLog), len(setupLog))
	}
	for i, name := range teardownLog {
		if name != setupLog[len(setupLog)-1-i] {
			t.Fatalf("teardown order %v is not the reverse of setup order %v", teardownLog, setupLog)
		}
	}
}

func TestResolve_RandomDAGOrderIsTopological(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testResolve_RandomDAGOrderIsTopological)
}

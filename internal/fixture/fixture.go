// Package fixture builds named, composable setup/teardown units that tests
// declare as dependencies. Fixtures may depend on other fixtures by name,
// forming a DAG that is resolved fresh for every test invocation: setup runs
// in dependency order, teardown in strict reverse order, and teardown runs
// even when the test body or a later setup fails.
package fixture

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kuitang/e2ekit/internal/errs"
	"github.com/kuitang/e2ekit/internal/obs"
)

// Deps holds already-resolved dependency values keyed by fixture name.
type Deps map[string]any

// SetupFunc produces the fixture's value. It receives the values of the
// fixture's declared dependencies, and only those.
type SetupFunc func(ctx context.Context, deps Deps) (any, error)

// TeardownFunc releases the fixture's value after the test completes.
type TeardownFunc func(ctx context.Context, value any) error

// Def declares a fixture: its dependencies by name, a required setup phase,
// and an optional teardown phase.
type Def struct {
	Deps     []string
	Setup    SetupFunc
	Teardown TeardownFunc
}

// Registry holds fixture definitions. Define at init time, Resolve per test.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Def
}

// NewRegistry returns an empty fixture registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Def)}
}

// Define registers a fixture under name. Redefining a name or registering a
// fixture without a setup phase is an error.
func (r *Registry) Define(name string, def Def) error {
	if strings.TrimSpace(name) == "" {
		return errs.New(errs.Setup, "fixture name must not be empty")
	}
	if def.Setup == nil {
		return errs.New(errs.Setup, fmt.Sprintf("fixture %q has no setup function", name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[name]; exists {
		return errs.New(errs.Setup, fmt.Sprintf("fixture %q is already defined", name))
	}
	r.defs[name] = def
	return nil
}

// MustDefine is Define for init-time registration; it panics on error.
func (r *Registry) MustDefine(name string, def Def) {
	if err := r.Define(name, def); err != nil {
		panic(err)
	}
}

// Names returns all defined fixture names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// State tracks a single test's fixture lifecycle.
type State string

const (
	StatePending     State = "pending"
	StateResolving   State = "resolving"
	StateReady       State = "ready"
	StateRunning     State = "running"
	StateTearingDown State = "tearing_down"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

type builtFixture struct {
	name     string
	value    any
	teardown TeardownFunc
}

// Resolution holds the fixtures built for one test invocation.
type Resolution struct {
	state  State
	order  []string
	built  []builtFixture
	byName map[string]any

	teardownOnce sync.Once
	teardownErr  error
}

// Resolve builds the requested fixtures and everything they depend on,
// each exactly once, in topological order. A dependency cycle fails with a
// cycle-coded error naming the cycle path; a failing setup tears down the
// fixtures already built for this attempt (in reverse order) and fails with
// a setup-coded error.
func (r *Registry) Resolve(ctx context.Context, names ...string) (*Resolution, error) {
	res := &Resolution{
		state:  StateResolving,
		byName: make(map[string]any),
	}

	order, err := r.setupOrder(names)
	if err != nil {
		res.state = StateFailed
		return nil, err
	}
	res.order = order

	log := obs.From(ctx)
	for _, name := range order {
		r.mu.RLock()
		def := r.defs[name]
		r.mu.RUnlock()

		deps := make(Deps, len(def.Deps))
		for _, dep := range def.Deps {
			deps[dep] = res.byName[dep]
		}

		log.Debug("fixture setup", "fixture", name)
		value, err := def.Setup(obs.WithFixture(ctx, name), deps)
		if err != nil {
			res.state = StateFailed
			teardownErr := res.teardownBuilt(ctx)
			setupErr := errs.Wrap(errs.Setup, fmt.Sprintf("setup fixture %q", name), err)
			if teardownErr != nil {
				return nil, errors.Join(setupErr, teardownErr)
			}
			return nil, setupErr
		}

		res.byName[name] = value
		res.built = append(res.built, builtFixture{
			name:     name,
			value:    value,
			teardown: def.Teardown,
		})
	}

	res.state = StateReady
	return res, nil
}

// setupOrder computes a topological order over the requested fixtures and
// their transitive dependencies, preserving request order where the graph
// allows. Detects unknown names and cycles.
func (r *Registry) setupOrder(names []string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	marks := make(map[string]int)
	var order []string
	var path []string

	var visit func(name string) error
	visit = func(name string) error {
		switch marks[name] {
		case done:
			return nil
		case visiting:
			cycleStart := 0
			for i, n := range path {
				if n == name {
					cycleStart = i
					break
				}
			}
			cycle := append(append([]string{}, path[cycleStart:]...), name)
			return errs.New(errs.Cycle, "fixture dependency cycle: "+strings.Join(cycle, " -> "))
		}

		def, ok := r.defs[name]
		if !ok {
			return errs.New(errs.Setup, fmt.Sprintf("fixture %q is not defined", name))
		}

		marks[name] = visiting
		path = append(path, name)
		for _, dep := range def.Deps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		marks[name] = done
		order = append(order, name)
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// Value returns the resolved value for a fixture name, or nil if absent.
func (res *Resolution) Value(name string) any {
	return res.byName[name]
}

// Has reports whether the named fixture was resolved.
func (res *Resolution) Has(name string) bool {
	_, ok := res.byName[name]
	return ok
}

// Order returns the setup order that was used.
func (res *Resolution) Order() []string {
	return append([]string(nil), res.order...)
}

// State returns the resolution's lifecycle state.
func (res *Resolution) State() State {
	return res.state
}

// Run executes the test body with the resolved fixtures and guarantees
// teardown afterwards, whether the body returns an error or not. The body's
// error wins over teardown errors; teardown errors alone also propagate.
func (res *Resolution) Run(ctx context.Context, body func(res *Resolution) error) error {
	if res.state != StateReady {
		return errs.New(errs.Internal, fmt.Sprintf("resolution is %s, not ready", res.state))
	}

	res.state = StateRunning
	bodyErr := body(res)

	teardownErr := res.Teardown(ctx)
	if bodyErr != nil {
		res.state = StateFailed
		return bodyErr
	}
	if teardownErr != nil {
		res.state = StateFailed
		return teardownErr
	}
	return nil
}

// Teardown releases all resolved fixtures in reverse setup order. It runs
// exactly once; later calls return the first call's result.
func (res *Resolution) Teardown(ctx context.Context) error {
	res.teardownOnce.Do(func() {
		prev := res.state
		res.state = StateTearingDown
		res.teardownErr = res.teardownBuilt(ctx)
		if res.teardownErr != nil || prev == StateFailed {
			res.state = StateFailed
			return
		}
		res.state = StateDone
	})
	return res.teardownErr
}

func (res *Resolution) teardownBuilt(ctx context.Context) error {
	log := obs.From(ctx)
	var teardownErrs []error
	for i := len(res.built) - 1; i >= 0; i-- {
		b := res.built[i]
		if b.teardown == nil {
			continue
		}
		log.Debug("fixture teardown", "fixture", b.name)
		if err := b.teardown(obs.WithFixture(ctx, b.name), b.value); err != nil {
			teardownErrs = append(teardownErrs,
				errs.Wrap(errs.Setup, fmt.Sprintf("teardown fixture %q", b.name), err))
		}
	}
	res.built = nil
	return errors.Join(teardownErrs...)
}

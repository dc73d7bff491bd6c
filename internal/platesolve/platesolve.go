// Package platesolve defines the plate-solver capability: an opaque
// solve() function that returns the sky RaDec of the camera's current
// field of view. The core treats it as a black box per spec; only the fake
// implementation lives in this module tree.
package platesolve

import (
	"context"
	"fmt"
	"sync"

	"github.com/skywatch/altaz-mount/internal/skymath"
)

// Solver identifies the RaDec of a camera's current field of view from
// its star pattern. SolveError (via the returned error) means the
// previous solved position should be retained by the caller.
type Solver interface {
	Solve(ctx context.Context) (skymath.EquatorialCoordinates, error)
}

// Factory constructs a Solver from a free-form configuration map.
type Factory func(config map[string]any) (Solver, error)

var (
	registryMu sync.Mutex
	registry   = map[string]Factory{}
)

// Register adds a solver factory under name.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic("platesolve: Register called twice for backend " + name)
	}
	registry[name] = factory
}

// New constructs a Solver previously registered under name.
func New(name string, config map[string]any) (Solver, error) {
	registryMu.Lock()
	factory, ok := registry[name]
	registryMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("platesolve: unknown backend %q", name)
	}
	return factory(config)
}

// Package fake provides a simulated plate solver. By default Solve
// always fails, exercising the degrade-on-solve-error path; it also
// accepts an optional Source function so tests can drive a working
// fake when they need the plate-solve loop to actually converge.
package fake

import (
	"context"
	"fmt"

	"github.com/skywatch/altaz-mount/internal/mounterr"
	"github.com/skywatch/altaz-mount/internal/platesolve"
	"github.com/skywatch/altaz-mount/internal/skymath"
)

// Source supplies the RaDec a working solve() would have recovered
// from its image. A nil Source reproduces the upstream "always fails"
// emulated solver.
type Source func() skymath.EquatorialCoordinates

// Backend is a simulated plate solver.
type Backend struct {
	source Source
}

// New constructs a simulated plate solver. Passing a nil source
// reproduces the "always fails" original behavior.
func New(source Source) *Backend {
	return &Backend{source: source}
}

// Register installs this backend under tag "fake" in the platesolve
// registry. The registered instance always fails, matching the
// upstream emulated solver; tests construct Backend directly with a
// Source when they need a working fake.
func Register() {
	platesolve.Register("fake", func(config map[string]any) (platesolve.Solver, error) {
		return New(nil), nil
	})
}

// Solve returns the configured Source's position, or a SolveError if
// no Source was configured.
func (b *Backend) Solve(ctx context.Context) (skymath.EquatorialCoordinates, error) {
	if b.source == nil {
		return skymath.EquatorialCoordinates{}, mounterr.Wrap(mounterr.SolveError, fmt.Errorf("exception thrown on purpose"))
	}
	return b.source(), nil
}

// Package alignment implements the alignment engine: a growing set of
// (sky AltAz, telescope AltAz) pointing pairs and the affine transform
// between the two frames derived from them, using gonum.org/v1/gonum/mat
// for the 3×3 solve/invert/average.
package alignment

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/skywatch/altaz-mount/internal/skymath"
)

// Point is one (true-sky AltAz, telescope-frame AltAz) pairing. Owned
// exclusively by the Engine that holds it: added via AddPointing, never
// mutated.
type Point struct {
	Sky       skymath.HorizontalCoordinates
	Telescope skymath.HorizontalCoordinates
}

// Engine maintains an ordered sequence of alignment Points plus a
// cached 3×3 affine matrix (homogeneous 2-D) mapping sky (az, alt) to
// telescope (az, alt).
type Engine struct {
	mu     sync.Mutex
	points []Point
	matrix *mat.Dense // 3x3, always non-nil after construction
}

// NewEngine returns an Engine whose cached transform starts at the
// identity, matching the "fewer than three points" state.
func NewEngine() *Engine {
	return &Engine{matrix: identity()}
}

func identity() *mat.Dense {
	m := mat.NewDense(3, 3, nil)
	m.Set(0, 0, 1)
	m.Set(1, 1, 1)
	m.Set(2, 2, 1)
	return m
}

// AddPointing appends a new alignment point and recomputes the cached
// transform.
func (e *Engine) AddPointing(sky, telescope skymath.HorizontalCoordinates) {
	e.mu.Lock()
	e.points = append(e.points, Point{Sky: sky, Telescope: telescope})
	e.recomputeLocked()
	e.mu.Unlock()
}

// PointCount returns how many alignment points have been recorded.
func (e *Engine) PointCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.points)
}

// Recompute rebuilds the cached transform from the current point set.
// Idempotent for a fixed point count.
func (e *Engine) Recompute() {
	e.mu.Lock()
	e.recomputeLocked()
	e.mu.Unlock()
}

func (e *Engine) recomputeLocked() {
	if len(e.points) < 3 {
		e.matrix = identity()
		return
	}

	var sum *mat.Dense
	count := 0
	forEachTriple(len(e.points), func(i, j, k int) {
		m, ok := solveTriple(e.points[i], e.points[j], e.points[k])
		if !ok {
			return
		}
		if sum == nil {
			sum = mat.NewDense(3, 3, nil)
		}
		sum.Add(sum, m)
		count++
	})

	if count == 0 {
		e.matrix = identity()
		return
	}

	sum.Scale(1/float64(count), sum)
	e.matrix = sum
}

// forEachTriple calls f once for every 3-combination of indices in
// [0, n).
func forEachTriple(n int, f func(i, j, k int)) {
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			for k := j + 1; k < n; k++ {
				f(i, j, k)
			}
		}
	}
}

// solveTriple computes the 2-D affine matrix mapping (sky.az, sky.alt)
// to (tel.az, tel.alt) for one triple of points. ok is false when the
// triple is degenerate: the coefficient matrix is singular, or any
// resulting entry is non-finite.
func solveTriple(p1, p2, p3 Point) (*mat.Dense, bool) {
	coeff := mat.NewDense(3, 3, []float64{
		p1.Sky.Azimuth, p1.Sky.Altitude, 1,
		p2.Sky.Azimuth, p2.Sky.Altitude, 1,
		p3.Sky.Azimuth, p3.Sky.Altitude, 1,
	})

	targetAz := mat.NewVecDense(3, []float64{p1.Telescope.Azimuth, p2.Telescope.Azimuth, p3.Telescope.Azimuth})
	targetAlt := mat.NewVecDense(3, []float64{p1.Telescope.Altitude, p2.Telescope.Altitude, p3.Telescope.Altitude})

	var rowAz, rowAlt mat.VecDense
	if err := rowAz.SolveVec(coeff, targetAz); err != nil {
		return nil, false
	}
	if err := rowAlt.SolveVec(coeff, targetAlt); err != nil {
		return nil, false
	}

	m := mat.NewDense(3, 3, []float64{
		rowAz.AtVec(0), rowAz.AtVec(1), rowAz.AtVec(2),
		rowAlt.AtVec(0), rowAlt.AtVec(1), rowAlt.AtVec(2),
		0, 0, 1,
	})

	for r := 0; r < 2; r++ {
		for c := 0; c < 3; c++ {
			if !isFinite(m.At(r, c)) {
				return nil, false
			}
		}
	}
	return m, true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Forward maps a sky AltAz into the telescope frame using the cached
// transform.
func (e *Engine) Forward(sky skymath.HorizontalCoordinates) skymath.HorizontalCoordinates {
	e.mu.Lock()
	m := e.matrix
	e.mu.Unlock()
	return apply(m, sky)
}

// Inverse maps a telescope-frame AltAz into the sky frame by inverting
// the cached transform.
func (e *Engine) Inverse(telescope skymath.HorizontalCoordinates) skymath.HorizontalCoordinates {
	e.mu.Lock()
	m := e.matrix
	e.mu.Unlock()

	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return telescope
	}
	return apply(&inv, telescope)
}

func apply(m mat.Matrix, c skymath.HorizontalCoordinates) skymath.HorizontalCoordinates {
	in := mat.NewVecDense(3, []float64{c.Azimuth, c.Altitude, 1})
	var out mat.VecDense
	out.MulVec(m, in)
	return skymath.HorizontalCoordinates{
		Azimuth:  out.AtVec(0),
		Altitude: out.AtVec(1),
	}
}

// Package geometry provides the planar primitives shared by the plotter
// kinematics: circle-circle intersection and angle conversions.
//
// Points use geom.Coord. The frame has its origin midway between the two servo
// axes, x along the axis line and y increasing in the drawing (downward)
// direction, so an angle of 90 degrees points toward +y.
package geometry

import (
	"math"

	"github.com/jbeda/geom"
)

// Intersection holds the two crossing points of a pair of circles.
// For tangent circles A and B are the same point.
type Intersection struct {
	A, B geom.Coord
}

// MaxY returns the root with the larger y coordinate.
// Ties keep A so results are deterministic.
func (in Intersection) MaxY() geom.Coord {
	if in.B.Y > in.A.Y {
		return in.B
	}
	return in.A
}

// IntersectCircles returns the crossing points of the circles (c0, r0) and
// (c1, r1). The second return is false when the circles do not cross: a
// radius is not positive, the centers are farther apart than r0+r1, one circle
// lies inside the other, or the centers coincide (identical circles included).
func IntersectCircles(c0 geom.Coord, r0 float64, c1 geom.Coord, r1 float64) (Intersection, bool) {
	if !(r0 > 0) || !(r1 > 0) || isBad(c0) || isBad(c1) {
		return Intersection{}, false
	}

	delta := c1.Minus(c0)
	d := math.Hypot(delta.X, delta.Y)
	switch {
	case d == 0:
		return Intersection{}, false
	case d > r0+r1:
		return Intersection{}, false
	case d < math.Abs(r0-r1):
		return Intersection{}, false
	}

	// a: distance from c0 to the radical line along the center axis.
	// h: half the chord length.
	a := (r0*r0 - r1*r1 + d*d) / (2 * d)
	h2 := r0*r0 - a*a
	if h2 < 0 {
		// Only reachable through round-off on a tangent configuration;
		// the non-crossing cases were rejected above.
		h2 = 0
	}
	h := math.Sqrt(h2)

	ux, uy := delta.X/d, delta.Y/d
	mid := geom.Coord{X: c0.X + a*ux, Y: c0.Y + a*uy}
	return Intersection{
		A: geom.Coord{X: mid.X + h*uy, Y: mid.Y - h*ux},
		B: geom.Coord{X: mid.X - h*uy, Y: mid.Y + h*ux},
	}, true
}

func isBad(p geom.Coord) bool {
	return math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0)
}

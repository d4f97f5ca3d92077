package geometry

import (
	"math"

	"github.com/jbeda/geom"
)

// Deg2Rad converts degrees to radians.
func Deg2Rad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// Rad2Deg converts radians to degrees.
func Rad2Deg(rad float64) float64 {
	return rad * 180.0 / math.Pi
}

// NormalizeDegrees folds an angle into (-180, 180].
func NormalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg <= -180 {
		deg += 360
	} else if deg > 180 {
		deg -= 360
	}
	return deg
}

// Polar returns origin + length along the direction theta (radians).
func Polar(origin geom.Coord, length, theta float64) geom.Coord {
	return geom.Coord{
		X: origin.X + length*math.Cos(theta),
		Y: origin.Y + length*math.Sin(theta),
	}
}

// Heading is the direction (radians) of the vector from -> to.
func Heading(from, to geom.Coord) float64 {
	return math.Atan2(to.Y-from.Y, to.X-from.X)
}

// Cross is the z component of (a-o) x (b-o). Positive when b lies
// counter-clockwise of a as seen from o in a y-up frame; in the plotter's
// y-down frame that is the clockwise side on screen.
func Cross(o, a, b geom.Coord) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

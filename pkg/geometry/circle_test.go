package geometry

import (
	"math"
	"testing"

	"github.com/jbeda/geom"
)

const eps = 1e-9

func onCircle(p, c geom.Coord, r float64) bool {
	return math.Abs(p.DistanceFrom(c)-r) < 1e-9
}

func TestIntersectCirclesCrossing(t *testing.T) {
	c0 := geom.Coord{X: 0, Y: 0}
	c1 := geom.Coord{X: 6, Y: 0}
	in, ok := IntersectCircles(c0, 5, c1, 5)
	if !ok {
		t.Fatal("expected intersection")
	}
	// 3-4-5 triangle: roots at (3, -4) and (3, 4)
	if math.Abs(in.A.X-3) > eps || math.Abs(in.B.X-3) > eps {
		t.Errorf("x roots = %v, %v", in.A.X, in.B.X)
	}
	if math.Abs(in.MaxY().Y-4) > eps || math.Abs(in.A.Y+4) > eps {
		t.Errorf("y roots = %v, %v", in.A.Y, in.B.Y)
	}
}

func TestIntersectCirclesRootsLieOnBothCircles(t *testing.T) {
	cases := []struct {
		c0, c1 geom.Coord
		r0, r1 float64
	}{
		{geom.Coord{X: -70, Y: 0}, geom.Coord{X: 0, Y: 250}, 113.578, 180},
		{geom.Coord{X: -160, Y: 69.28}, geom.Coord{X: 160, Y: 69.28}, 180, 180},
		{geom.Coord{X: 1.5, Y: -2}, geom.Coord{X: -3, Y: 7}, 4, 9},
		{geom.Coord{X: 10, Y: 10}, geom.Coord{X: 10, Y: 12}, 3, 2},
	}
	for _, tc := range cases {
		in, ok := IntersectCircles(tc.c0, tc.r0, tc.c1, tc.r1)
		if !ok {
			t.Errorf("%v/%v: expected intersection", tc.c0, tc.c1)
			continue
		}
		for _, p := range []geom.Coord{in.A, in.B} {
			if !onCircle(p, tc.c0, tc.r0) || !onCircle(p, tc.c1, tc.r1) {
				t.Errorf("root %v not on both circles", p)
			}
		}
	}
}

func TestIntersectCirclesTangent(t *testing.T) {
	// External tangency
	in, ok := IntersectCircles(geom.Coord{X: 0, Y: 0}, 2, geom.Coord{X: 5, Y: 0}, 3)
	if !ok {
		t.Fatal("tangent circles should intersect")
	}
	if in.A.DistanceFrom(in.B) > eps {
		t.Errorf("expected coincident roots, got %v %v", in.A, in.B)
	}
	if math.Abs(in.A.X-2) > eps || math.Abs(in.A.Y) > eps {
		t.Errorf("tangent point = %v", in.A)
	}

	// Internal tangency
	in, ok = IntersectCircles(geom.Coord{X: 0, Y: 0}, 5, geom.Coord{X: 2, Y: 0}, 3)
	if !ok || in.A.DistanceFrom(in.B) > eps {
		t.Fatalf("internal tangent: ok=%v in=%v", ok, in)
	}
}

func TestIntersectCirclesRejects(t *testing.T) {
	origin := geom.Coord{X: 0, Y: 0}
	tests := []struct {
		name   string
		c1     geom.Coord
		r0, r1 float64
	}{
		{"too far apart", geom.Coord{X: 10, Y: 0}, 3, 3},
		{"contained", geom.Coord{X: 1, Y: 0}, 10, 2},
		{"concentric", origin, 5, 3},
		{"identical", origin, 5, 5},
		{"zero radius", geom.Coord{X: 1, Y: 0}, 0, 3},
		{"negative radius", geom.Coord{X: 1, Y: 0}, 2, -3},
		{"nan radius", geom.Coord{X: 1, Y: 0}, math.NaN(), 3},
		{"nan center", geom.Coord{X: math.NaN(), Y: 0}, 2, 3},
		{"inf center", geom.Coord{X: math.Inf(1), Y: 0}, 2, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, ok := IntersectCircles(origin, tt.r0, tt.c1, tt.r1)
			if ok {
				t.Errorf("expected no intersection, got %v", in)
			}
			if in != (Intersection{}) {
				t.Errorf("rejected result should be zero, got %v", in)
			}
		})
	}
}

func TestMaxYTie(t *testing.T) {
	in := Intersection{A: geom.Coord{X: 1, Y: 2}, B: geom.Coord{X: -1, Y: 2}}
	if in.MaxY() != in.A {
		t.Error("ties must resolve to A")
	}
}

func BenchmarkIntersectCircles(b *testing.B) {
	c0 := geom.Coord{X: -70, Y: 0}
	c1 := geom.Coord{X: 0, Y: 250}
	for i := 0; i < b.N; i++ {
		IntersectCircles(c0, 113.578, c1, 180)
	}
}

package kinematics

import (
	"math"

	"github.com/jbeda/geom"
)

// WorkspaceReport describes the pen area reachable inside the servo range.
type WorkspaceReport struct {
	Step        float64   `json:"step"`
	Samples     int       `json:"samples"`
	Reachable   int       `json:"reachable"`
	Unreachable int       `json:"unreachable"`
	Bounds      geom.Rect `json:"bounds"`
}

// Empty reports whether no sampled pose was reachable.
func (w WorkspaceReport) Empty() bool {
	return w.Reachable == 0
}

// Workspace runs Forward over a grid of servo pairs spaced step degrees
// apart, covering [ServoMin, ServoMax] on both sides, and records the
// bounding box of the reachable pen positions. A step <= 0 uses 1 degree.
func Workspace(s *Solver, step float64) WorkspaceReport {
	if !(step > 0) {
		step = 1
	}
	sn := s.load()
	lo, hi := sn.cfg.ServoMin, sn.cfg.ServoMax
	n := int(math.Floor((hi-lo)/step+1e-9)) + 1

	rep := WorkspaceReport{Step: step}
	for i := 0; i < n; i++ {
		left := lo + float64(i)*step
		for j := 0; j < n; j++ {
			right := lo + float64(j)*step
			rep.Samples++
			res := sn.forward(left, right)
			if !res.Found() {
				rep.Unreachable++
				continue
			}
			if rep.Reachable == 0 {
				rep.Bounds = geom.Rect{Min: res.Pose.Pen, Max: res.Pose.Pen}
			} else {
				rep.Bounds.ExpandToContainCoord(res.Pose.Pen)
			}
			rep.Reachable++
		}
	}
	return rep
}

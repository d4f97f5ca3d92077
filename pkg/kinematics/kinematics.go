// Package kinematics converts between servo angles and pen positions for the
// two-servo bent-crank drawing arm.
//
// A Solver owns one linkage configuration. Forward maps a servo pair to the
// pen and the supporting joint positions; Inverse maps a pen target back to a
// servo pair. Failing to find a pose is an ordinary Outcome, not an error:
// only an invalid configuration produces an error.
package kinematics

import (
	"github.com/jbeda/geom"
)

// Outcome tags the result of a solve.
type Outcome int

const (
	// OK means the solve produced a usable pose.
	OK Outcome = iota

	// Unreachable means a circle pair did not intersect.
	Unreachable

	// OutOfRange means the geometry solved but a servo would leave its
	// allowed range.
	OutOfRange

	// BranchMismatch means the selected elbows do not reproduce the target
	// through the forward branch rule, so the pose would not round-trip.
	BranchMismatch
)

// String returns the wire name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case Unreachable:
		return "unreachable"
	case OutOfRange:
		return "out_of_range"
	case BranchMismatch:
		return "branch_mismatch"
	default:
		return "unknown"
	}
}

// MarshalText encodes the outcome by its wire name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// ServoPair holds left and right servo angles in degrees.
type ServoPair struct {
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

// Pose is everything a renderer needs to draw the mechanism.
type Pose struct {
	Pen        geom.Coord
	LeftAxis   geom.Coord
	RightAxis  geom.Coord
	LeftElbow  geom.Coord
	RightElbow geom.Coord
}

// ForwardResult is the outcome of a forward solve.
type ForwardResult struct {
	Pose    Pose
	Outcome Outcome
}

// Found reports whether the pose is valid.
func (r ForwardResult) Found() bool { return r.Outcome == OK }

// InverseResult is the outcome of an inverse solve. Servos is also filled
// for OutOfRange and BranchMismatch so callers can report how far off the
// request was.
type InverseResult struct {
	Servos  ServoPair
	Outcome Outcome
}

// Found reports whether the servo pair is valid.
func (r InverseResult) Found() bool { return r.Outcome == OK }

// Kinematics is the interface every arm model implements.
type Kinematics interface {
	// GetType returns the kinematic mode name (e.g. "bent_crank").
	GetType() string

	// Forward computes the pen position for a servo pair. No servo range
	// check is applied.
	Forward(left, right float64) ForwardResult

	// Inverse computes the servo pair that places the pen at target.
	Inverse(target geom.Coord) InverseResult

	// GetStatus returns the current configuration and derived values.
	GetStatus() map[string]interface{}
}

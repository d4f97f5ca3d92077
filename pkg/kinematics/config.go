package kinematics

import (
	"math"

	"bentcrank-plotter/pkg/errors"
	"bentcrank-plotter/pkg/geometry"
)

// Config describes the physical linkage. Lengths are in millimetres, angles
// in degrees.
type Config struct {
	ShoulderSeparation float64 `json:"shoulder_separation"` // distance between the servo axes
	BodyArmLength      float64 `json:"body_arm_length"`     // crank segment on the servo horn
	UpperArmLength     float64 `json:"upper_arm_length"`    // crank segment welded to the body arm
	BendAngleDegrees   float64 `json:"bend_angle"`          // internal angle between the two crank segments
	MainArmLength      float64 `json:"main_arm_length"`     // crank tip to pen joint, both sides

	ServoMin       float64 `json:"servo_min"`
	ServoMax       float64 `json:"servo_max"`
	RangeTolerance float64 `json:"range_tolerance"`
}

// DefaultConfig returns the reference arm geometry.
func DefaultConfig() Config {
	return Config{
		ShoulderSeparation: 140,
		BodyArmLength:      50,
		UpperArmLength:     80,
		BendAngleDegrees:   120,
		MainArmLength:      180,
		ServoMin:           -30,
		ServoMax:           60,
		RangeTolerance:     0.1,
	}
}

// Update is a partial configuration. Nil fields keep their current value.
type Update struct {
	ShoulderSeparation *float64 `json:"shoulder_separation,omitempty"`
	BodyArmLength      *float64 `json:"body_arm_length,omitempty"`
	UpperArmLength     *float64 `json:"upper_arm_length,omitempty"`
	BendAngleDegrees   *float64 `json:"bend_angle,omitempty"`
	MainArmLength      *float64 `json:"main_arm_length,omitempty"`
	ServoMin           *float64 `json:"servo_min,omitempty"`
	ServoMax           *float64 `json:"servo_max,omitempty"`
	RangeTolerance     *float64 `json:"range_tolerance,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u Update) Empty() bool {
	return u == Update{}
}

// Apply returns cfg with the non-nil fields of u written over it.
func (u Update) Apply(cfg Config) Config {
	set := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	set(&cfg.ShoulderSeparation, u.ShoulderSeparation)
	set(&cfg.BodyArmLength, u.BodyArmLength)
	set(&cfg.UpperArmLength, u.UpperArmLength)
	set(&cfg.BendAngleDegrees, u.BendAngleDegrees)
	set(&cfg.MainArmLength, u.MainArmLength)
	set(&cfg.ServoMin, u.ServoMin)
	set(&cfg.ServoMax, u.ServoMax)
	set(&cfg.RangeTolerance, u.RangeTolerance)
	return cfg
}

// Derived holds the values both solvers compute from Config.
type Derived struct {
	// EffectiveCrankLength is the straight-line distance from the servo axis
	// to the crank tip (the virtual elbow).
	EffectiveCrankLength float64 `json:"effective_crank_length"`

	// PhaseOffsetRadians is the angle between the body arm and the line from
	// the servo axis to the virtual elbow.
	PhaseOffsetRadians float64 `json:"phase_offset_radians"`
}

// PhaseOffsetDegrees is PhaseOffsetRadians in degrees.
func (d Derived) PhaseOffsetDegrees() float64 {
	return geometry.Rad2Deg(d.PhaseOffsetRadians)
}

// Validate checks the configuration and returns the first problem found.
func (c Config) Validate() error {
	_, err := Derive(c)
	return err
}

// Derive validates cfg and computes the effective crank length (law of
// cosines) and phase offset (law of sines).
func Derive(cfg Config) (Derived, error) {
	positive := []struct {
		name  string
		value float64
	}{
		{"shoulder_separation", cfg.ShoulderSeparation},
		{"body_arm_length", cfg.BodyArmLength},
		{"upper_arm_length", cfg.UpperArmLength},
		{"main_arm_length", cfg.MainArmLength},
	}
	for _, p := range positive {
		if !(p.value > 0) || math.IsInf(p.value, 0) {
			return Derived{}, errors.KinematicsConfigError(p.name, p.value, "must be a finite value above 0")
		}
	}
	if !(cfg.BendAngleDegrees > 0 && cfg.BendAngleDegrees < 180) {
		return Derived{}, errors.KinematicsConfigError("bend_angle", cfg.BendAngleDegrees, "must be between 0 and 180 exclusive")
	}
	if math.IsNaN(cfg.ServoMin) || math.IsNaN(cfg.ServoMax) || !(cfg.ServoMin < cfg.ServoMax) {
		return Derived{}, errors.KinematicsConfigError("servo_min", cfg.ServoMin, "must be below servo_max")
	}
	if !(cfg.RangeTolerance >= 0) {
		return Derived{}, errors.KinematicsConfigError("range_tolerance", cfg.RangeTolerance, "must not be negative")
	}

	b, u := cfg.BodyArmLength, cfg.UpperArmLength
	bend := geometry.Deg2Rad(cfg.BendAngleDegrees)
	eff2 := b*b + u*u - 2*b*u*math.Cos(bend)
	if !(eff2 > 0) {
		return Derived{}, errors.KinematicsConfigError("bend_angle", cfg.BendAngleDegrees, "crank triangle is degenerate")
	}
	eff := math.Sqrt(eff2)

	sinArg := u * math.Sin(bend) / eff
	if math.IsNaN(sinArg) || sinArg < -1 || sinArg > 1 {
		return Derived{}, errors.KinematicsConfigError("upper_arm_length", u, "phase offset is undefined for this crank triangle")
	}

	// asin returns the acute solution. The angle at the servo axis is
	// opposite the upper arm; it is obtuse only when the upper arm is the
	// longest side of a triangle whose bend is acute, which the law of cosines
	// detects as u^2 > b^2 + eff^2.
	phase := math.Asin(sinArg)
	if u*u > b*b+eff2 {
		phase = math.Pi - phase
	}

	return Derived{EffectiveCrankLength: eff, PhaseOffsetRadians: phase}, nil
}

package config

import (
	"math"
	"sort"

	"bentcrank-plotter/pkg/errors"
	"bentcrank-plotter/pkg/kinematics"
	"bentcrank-plotter/pkg/servolink"
)

// DefaultAPIAddress is used when [api] is absent.
const DefaultAPIAddress = ":7150"

// Modes accepted in [plotter] kinematics. Known modes that cannot be built
// are rejected later by kinematics.NewFromConfig.
var knownModes = []string{kinematics.TypeBentCrank, kinematics.TypeLinearParallel}

// PlotterConfig is everything the daemon reads from the config file.
type PlotterConfig struct {
	Mode       string
	Kinematics kinematics.Config
	APIAddr    string
	Link       servolink.Config

	// Warnings lists unknown sections and options. They do not stop the
	// daemon.
	Warnings []string
}

// ParsePlotterConfig loads path and extracts the plotter settings.
func ParsePlotterConfig(path string) (PlotterConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return PlotterConfig{}, err
	}
	pc, err := FromConfig(cfg)
	if ce, ok := err.(*ConfigError); ok && ce.File == "" {
		ce.File = path
	}
	return pc, err
}

// FromConfig extracts the plotter settings from a parsed file.
func FromConfig(cfg *Config) (PlotterConfig, error) {
	pc := PlotterConfig{
		Kinematics: kinematics.DefaultConfig(),
		APIAddr:    DefaultAPIAddress,
	}

	plotter, err := cfg.GetSection("plotter")
	if err != nil {
		return pc, err
	}
	if pc.Mode, err = plotter.GetChoice("kinematics", knownModes, kinematics.TypeBentCrank); err != nil {
		return pc, err
	}

	k := &pc.Kinematics
	lengths := []struct {
		option string
		dst    *float64
	}{
		{"shoulder_separation", &k.ShoulderSeparation},
		{"body_arm_length", &k.BodyArmLength},
		{"upper_arm_length", &k.UpperArmLength},
		{"main_arm_length", &k.MainArmLength},
	}
	for _, l := range lengths {
		if *l.dst, err = plotter.GetFloatWithBounds(l.option, FloatBounds{Above: Float(0)}, *l.dst); err != nil {
			return pc, err
		}
	}
	if k.BendAngleDegrees, err = plotter.GetFloatWithBounds("bend_angle",
		FloatBounds{Above: Float(0), Below: Float(180)}, k.BendAngleDegrees); err != nil {
		return pc, err
	}
	if k.RangeTolerance, err = plotter.GetFloatWithBounds("range_tolerance",
		FloatBounds{MinVal: Float(0)}, k.RangeTolerance); err != nil {
		return pc, err
	}

	if err := readServoRange(cfg, k); err != nil {
		return pc, err
	}

	if err := k.Validate(); err != nil {
		option := ""
		if he, ok := err.(*errors.HostError); ok {
			option = he.Option
		}
		return pc, WrapError("plotter", option, err)
	}

	if api := cfg.GetSectionOptional("api"); api != nil {
		if pc.APIAddr, err = api.Get("address", DefaultAPIAddress); err != nil {
			return pc, err
		}
	}

	if link := cfg.GetSectionOptional("servo_link"); link != nil {
		if pc.Link.Device, err = link.Get("device"); err != nil {
			return pc, err
		}
		if pc.Link.Baud, err = link.GetIntWithBounds("baud", intPtr(1200), nil, servolink.DefaultBaud); err != nil {
			return pc, err
		}
	}

	pc.Warnings = unusedWarnings(cfg)
	return pc, nil
}

// readServoRange reads [servo_left] and [servo_right]. The solver uses one
// range for both servos, so the overlap of the two is kept.
func readServoRange(cfg *Config, k *kinematics.Config) error {
	lo, hi := math.Inf(-1), math.Inf(1)
	found := false
	for _, name := range []string{"servo_left", "servo_right"} {
		sec := cfg.GetSectionOptional(name)
		if sec == nil {
			continue
		}
		found = true
		minAngle, err := sec.GetFloatWithBounds("min_angle", FloatBounds{MinVal: Float(-180)}, k.ServoMin)
		if err != nil {
			return err
		}
		maxAngle, err := sec.GetFloatWithBounds("max_angle", FloatBounds{Above: Float(minAngle), MaxVal: Float(180)}, k.ServoMax)
		if err != nil {
			return err
		}
		lo = math.Max(lo, minAngle)
		hi = math.Min(hi, maxAngle)
	}
	if !found {
		return nil
	}
	if !(lo < hi) {
		return NewConfigError("servo_right", "min_angle", "servo ranges do not overlap")
	}
	k.ServoMin, k.ServoMax = lo, hi
	return nil
}

func unusedWarnings(cfg *Config) []string {
	var warnings []string
	for _, name := range cfg.GetUnusedSections() {
		warnings = append(warnings, "unknown section ["+name+"]")
	}
	for _, sec := range cfg.GetSections() {
		if !cfg.accessed(sec.GetName()) {
			continue
		}
		for _, opt := range sec.GetUnusedOptions() {
			warnings = append(warnings, "unknown option '"+opt+"' in ["+sec.GetName()+"]")
		}
	}
	sort.Strings(warnings)
	return warnings
}

func intPtr(v int) *int { return &v }

// Bent-crank five-bar linkage kinematics.
package kinematics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jbeda/geom"

	"bentcrank-plotter/pkg/geometry"
	"bentcrank-plotter/pkg/log"
)

// TypeBentCrank is the mode name of the bent-crank solver.
const TypeBentCrank = "bent_crank"

// confirmEpsilon is how far (mm) the forward pen may land from the inverse
// target before the elbow pair is treated as a branch mismatch.
const confirmEpsilon = 1e-6

// Observer receives one call per solve. Direction is "forward" or "inverse".
type Observer func(direction string, outcome Outcome, elapsed time.Duration)

// ConfigListener is called after every successful configuration change.
type ConfigListener func(cfg Config, derived Derived)

// snapshot is an immutable configuration plus its derived values.
type snapshot struct {
	cfg     Config
	derived Derived
}

// Solver implements Kinematics for the bent-crank linkage. It is safe for
// concurrent use; the zero value solves with DefaultConfig.
type Solver struct {
	snap     atomic.Pointer[snapshot]
	observer atomic.Pointer[Observer]
	lg       atomic.Pointer[log.Logger]

	mu        sync.Mutex // serializes configuration writers
	listeners []ConfigListener
}

// NewSolver validates cfg and returns a solver using it.
func NewSolver(cfg Config) (*Solver, error) {
	d, err := Derive(cfg)
	if err != nil {
		return nil, err
	}
	s := &Solver{}
	s.snap.Store(&snapshot{cfg: cfg, derived: d})
	return s, nil
}

func defaultSnapshot() *snapshot {
	cfg := DefaultConfig()
	d, err := Derive(cfg)
	if err != nil {
		panic("kinematics: default configuration is invalid: " + err.Error())
	}
	return &snapshot{cfg: cfg, derived: d}
}

// load returns the active snapshot, deriving one from the defaults on first
// use of a zero-value Solver.
func (s *Solver) load() *snapshot {
	if sn := s.snap.Load(); sn != nil {
		return sn
	}
	s.snap.CompareAndSwap(nil, defaultSnapshot())
	return s.snap.Load()
}

// SetLogger replaces the solver's logger.
func (s *Solver) SetLogger(l *log.Logger) {
	s.lg.Store(l)
}

func (s *Solver) logger() *log.Logger {
	if l := s.lg.Load(); l != nil {
		return l
	}
	return log.GetLogger("kinematics")
}

// SetObserver installs fn to be called after every solve. A nil fn removes
// the observer.
func (s *Solver) SetObserver(fn Observer) {
	if fn == nil {
		s.observer.Store(nil)
		return
	}
	s.observer.Store(&fn)
}

// OnConfigChange registers fn to run after each successful SetConfig or
// Configure.
func (s *Solver) OnConfigChange(fn ConfigListener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Config returns the active configuration.
func (s *Solver) Config() Config {
	return s.load().cfg
}

// Derived returns the values derived from the active configuration.
func (s *Solver) Derived() Derived {
	return s.load().derived
}

// SetConfig replaces the whole configuration. On error the previous
// configuration stays active.
func (s *Solver) SetConfig(cfg Config) error {
	s.mu.Lock()
	err := s.storeLocked(cfg)
	listeners := s.listeners
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(listeners)
	return nil
}

// Configure merges u into the active configuration. On error the previous
// configuration stays active.
func (s *Solver) Configure(u Update) error {
	s.mu.Lock()
	err := s.storeLocked(u.Apply(s.load().cfg))
	listeners := s.listeners
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(listeners)
	return nil
}

func (s *Solver) storeLocked(cfg Config) error {
	d, err := Derive(cfg)
	if err != nil {
		s.logger().WithError(err).Warn("configuration rejected")
		return err
	}
	s.snap.Store(&snapshot{cfg: cfg, derived: d})
	s.logger().WithFields(log.Fields{
		"effective_crank_length": d.EffectiveCrankLength,
		"phase_offset_deg":       d.PhaseOffsetDegrees(),
	}).Info("configuration applied")
	return nil
}

func (s *Solver) notify(listeners []ConfigListener) {
	if len(listeners) == 0 {
		return
	}
	sn := s.load()
	for _, fn := range listeners {
		fn(sn.cfg, sn.derived)
	}
}

// GetType implements Kinematics.
func (s *Solver) GetType() string {
	return TypeBentCrank
}

// GetStatus implements Kinematics.
func (s *Solver) GetStatus() map[string]interface{} {
	sn := s.load()
	return map[string]interface{}{
		"kinematics":             TypeBentCrank,
		"config":                 sn.cfg,
		"effective_crank_length": sn.derived.EffectiveCrankLength,
		"phase_offset_radians":   sn.derived.PhaseOffsetRadians,
		"phase_offset_degrees":   sn.derived.PhaseOffsetDegrees(),
	}
}

// Forward computes the pose for a servo pair. The servo range is not checked.
func (s *Solver) Forward(left, right float64) ForwardResult {
	return s.forwardWith(s.load(), left, right)
}

// Inverse computes the servo pair that puts the pen at target.
func (s *Solver) Inverse(target geom.Coord) InverseResult {
	return s.inverseWith(s.load(), target)
}

func (s *Solver) forwardWith(sn *snapshot, left, right float64) ForwardResult {
	start := time.Now()
	res := sn.forward(left, right)
	s.observe("forward", res.Outcome, start)
	if !res.Found() {
		s.logger().WithFields(log.Fields{"left": left, "right": right}).Debug("forward: elbow circles do not intersect")
	}
	return res
}

func (s *Solver) inverseWith(sn *snapshot, target geom.Coord) InverseResult {
	start := time.Now()
	res := sn.inverse(target)
	s.observe("inverse", res.Outcome, start)
	if !res.Found() {
		s.logger().WithFields(log.Fields{
			"x":       target.X,
			"y":       target.Y,
			"outcome": res.Outcome.String(),
		}).Debug("inverse: no pose")
	}
	return res
}

func (s *Solver) observe(direction string, outcome Outcome, start time.Time) {
	if fn := s.observer.Load(); fn != nil {
		(*fn)(direction, outcome, time.Since(start))
	}
}

func (sn *snapshot) axes() (left, right geom.Coord) {
	half := sn.cfg.ShoulderSeparation / 2
	return geom.Coord{X: -half, Y: 0}, geom.Coord{X: half, Y: 0}
}

// forward places each virtual elbow at L_eff from its axis and takes the
// larger-y intersection of the two main-arm circles as the pen.
//
// Servo angles run mirrored: the left crank points along 180-left degrees,
// the right along right degrees, each shifted by the phase offset.
func (sn *snapshot) forward(left, right float64) ForwardResult {
	la, ra := sn.axes()
	eff := sn.derived.EffectiveCrankLength
	phi := sn.derived.PhaseOffsetRadians

	pose := Pose{LeftAxis: la, RightAxis: ra}
	pose.LeftElbow = geometry.Polar(la, eff, geometry.Deg2Rad(180-left)-phi)
	pose.RightElbow = geometry.Polar(ra, eff, geometry.Deg2Rad(right)+phi)

	in, ok := geometry.IntersectCircles(pose.LeftElbow, sn.cfg.MainArmLength, pose.RightElbow, sn.cfg.MainArmLength)
	if !ok {
		return ForwardResult{Pose: pose, Outcome: Unreachable}
	}
	pose.Pen = in.MaxY()
	return ForwardResult{Pose: pose, Outcome: OK}
}

// inverse finds each elbow on circle(axis, L_eff) and circle(target, main).
// The elbow kept is the one outboard of the axis->target line: the larger
// cross product on the left, the smaller on the right. This is the branch
// forward produces when it takes the larger-y pen.
func (sn *snapshot) inverse(target geom.Coord) InverseResult {
	la, ra := sn.axes()
	eff := sn.derived.EffectiveCrankLength
	arm := sn.cfg.MainArmLength
	phi := sn.derived.PhaseOffsetRadians

	lin, ok := geometry.IntersectCircles(la, eff, target, arm)
	if !ok {
		return InverseResult{Outcome: Unreachable}
	}
	rin, ok := geometry.IntersectCircles(ra, eff, target, arm)
	if !ok {
		return InverseResult{Outcome: Unreachable}
	}

	le := lin.A
	if geometry.Cross(la, target, lin.B) > geometry.Cross(la, target, lin.A) {
		le = lin.B
	}
	re := rin.A
	if geometry.Cross(ra, target, rin.B) < geometry.Cross(ra, target, rin.A) {
		re = rin.B
	}

	servos := ServoPair{
		Left:  geometry.NormalizeDegrees(180 - geometry.Rad2Deg(geometry.Heading(la, le)+phi)),
		Right: geometry.NormalizeDegrees(geometry.Rad2Deg(geometry.Heading(ra, re) - phi)),
	}
	if !sn.inRange(servos.Left) || !sn.inRange(servos.Right) {
		return InverseResult{Servos: servos, Outcome: OutOfRange}
	}

	fwd := sn.forward(servos.Left, servos.Right)
	if !fwd.Found() || fwd.Pose.Pen.DistanceFrom(target) > confirmEpsilon {
		return InverseResult{Servos: servos, Outcome: BranchMismatch}
	}
	return InverseResult{Servos: servos, Outcome: OK}
}

func (sn *snapshot) inRange(deg float64) bool {
	tol := sn.cfg.RangeTolerance
	return deg >= sn.cfg.ServoMin-tol && deg <= sn.cfg.ServoMax+tol
}

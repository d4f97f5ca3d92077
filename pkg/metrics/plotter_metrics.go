// Plotter metric set
//
// Solver outcomes and latency, the derived crank geometry, configuration
// reloads, servo link traffic, API requests and Go runtime statistics.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	goruntime "runtime"
	"time"

	"bentcrank-plotter/pkg/kinematics"
)

// PlotterMetrics holds the metrics exported by the plotter daemon.
type PlotterMetrics struct {
	// Solver
	Solves        *Counter
	SolveDuration *Histogram

	// Geometry
	EffectiveCrank *Gauge
	PhaseOffset    *Gauge
	MainArm        *Gauge
	ConfigChanges  *Counter
	ConfigReloads  *Counter

	// Transport
	ServoCommands *Counter
	APIRequests   *Counter

	// System
	Uptime     *Gauge
	Goroutines *Gauge
	HeapBytes  *Gauge
	GCCycles   *Gauge

	startTime time.Time
	registry  *Registry
}

// NewPlotterMetrics creates and registers the plotter metrics.
func NewPlotterMetrics() *PlotterMetrics {
	pm := &PlotterMetrics{
		startTime: time.Now(),
		registry:  NewRegistry(),
	}

	pm.Solves = NewCounter("plotter_solves_total",
		"Kinematic solves by direction and outcome")
	pm.SolveDuration = NewHistogram("plotter_solve_duration_seconds",
		"Time spent in a single kinematic solve", ExponentialBuckets(1e-7, 4, 9))

	pm.EffectiveCrank = NewGauge("plotter_effective_crank_length_mm",
		"Distance from servo axis to elbow joint")
	pm.PhaseOffset = NewGauge("plotter_phase_offset_degrees",
		"Angle between the body arm and the effective crank")
	pm.MainArm = NewGauge("plotter_main_arm_length_mm",
		"Configured main arm length")
	pm.ConfigChanges = NewCounter("plotter_config_changes_total",
		"Accepted geometry configuration changes")
	pm.ConfigReloads = NewCounter("plotter_config_reloads_total",
		"Config file reload attempts by result")

	pm.ServoCommands = NewCounter("plotter_servo_commands_total",
		"Servo angle pairs written to the servo link")
	pm.APIRequests = NewCounter("plotter_api_requests_total",
		"API requests by method")

	pm.Uptime = NewGauge("plotter_uptime_seconds", "Seconds since the daemon started")
	pm.Goroutines = NewGauge("plotter_go_goroutines", "Number of active goroutines")
	pm.HeapBytes = NewGauge("plotter_go_memory_heap_bytes", "Go heap memory in use")
	pm.GCCycles = NewGauge("plotter_go_gc_cycles", "Completed Go garbage collection cycles")

	pm.registry.MustRegister(
		pm.Solves, pm.SolveDuration,
		pm.EffectiveCrank, pm.PhaseOffset, pm.MainArm, pm.ConfigChanges, pm.ConfigReloads,
		pm.ServoCommands, pm.APIRequests,
		pm.Uptime, pm.Goroutines, pm.HeapBytes, pm.GCCycles,
	)
	return pm
}

// ObserveSolve records one solve. It has the shape of kinematics.Observer.
func (pm *PlotterMetrics) ObserveSolve(direction string, outcome kinematics.Outcome, elapsed time.Duration) {
	pm.Solves.Inc(Labels{"direction": direction, "outcome": outcome.String()})
	pm.SolveDuration.Observe(Labels{"direction": direction}, elapsed.Seconds())
}

// SetGeometry publishes the active configuration. It has the shape of
// kinematics.ConfigListener.
func (pm *PlotterMetrics) SetGeometry(cfg kinematics.Config, d kinematics.Derived) {
	pm.EffectiveCrank.Set(nil, d.EffectiveCrankLength)
	pm.PhaseOffset.Set(nil, d.PhaseOffsetDegrees())
	pm.MainArm.Set(nil, cfg.MainArmLength)
	pm.ConfigChanges.Inc(nil)
}

// Instrument attaches the metrics to a solver and publishes its current
// geometry.
func (pm *PlotterMetrics) Instrument(s *kinematics.Solver) {
	s.SetObserver(pm.ObserveSolve)
	s.OnConfigChange(pm.SetGeometry)
	d := s.Derived()
	pm.EffectiveCrank.Set(nil, d.EffectiveCrankLength)
	pm.PhaseOffset.Set(nil, d.PhaseOffsetDegrees())
	pm.MainArm.Set(nil, s.Config().MainArmLength)
}

// RecordReload counts a config file reload attempt.
func (pm *PlotterMetrics) RecordReload(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	pm.ConfigReloads.Inc(Labels{"result": result})
}

// RecordServoCommands counts servo pairs sent over the link.
func (pm *PlotterMetrics) RecordServoCommands(n int) {
	if n > 0 {
		pm.ServoCommands.Add(nil, uint64(n))
	}
}

// RecordAPIRequest counts one API call.
func (pm *PlotterMetrics) RecordAPIRequest(method string) {
	pm.APIRequests.Inc(Labels{"method": method})
}

// UpdateSystemMetrics refreshes the runtime gauges.
func (pm *PlotterMetrics) UpdateSystemMetrics() {
	var m goruntime.MemStats
	goruntime.ReadMemStats(&m)

	pm.Uptime.Set(nil, time.Since(pm.startTime).Seconds())
	pm.Goroutines.Set(nil, float64(goruntime.NumGoroutine()))
	pm.HeapBytes.Set(nil, float64(m.HeapAlloc))
	pm.GCCycles.Set(nil, float64(m.NumGC))
}

// Gather returns all metrics in Prometheus text format
func (pm *PlotterMetrics) Gather() string {
	pm.UpdateSystemMetrics()
	return pm.registry.Gather()
}

// Registry returns the internal registry
func (pm *PlotterMetrics) Registry() *Registry {
	return pm.registry
}

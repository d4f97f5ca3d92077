package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bentcrank-plotter/pkg/kinematics"
)

func TestSaveKinematicsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "plotter.cfg"), samplePlotter)

	cfg := kinematics.DefaultConfig()
	cfg.MainArmLength = 182.5
	cfg.ServoMin = -25
	cfg.RangeTolerance = 0.25
	if err := SaveKinematics(path, cfg); err != nil {
		t.Fatalf("SaveKinematics: %v", err)
	}

	pc, err := ParsePlotterConfig(path)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if pc.Kinematics != cfg {
		t.Errorf("saved kinematics = %+v, want %+v", pc.Kinematics, cfg)
	}
	if pc.Link.Device != "/dev/ttyUSB0" {
		t.Error("sections outside the autosave block should be kept")
	}
	if len(pc.Warnings) != 0 {
		t.Errorf("unexpected warnings %v", pc.Warnings)
	}

	backups, _ := filepath.Glob(filepath.Join(dir, "plotter-*.cfg"))
	if len(backups) == 0 {
		t.Error("expected a backup file")
	}
}

func TestSaveKinematicsReplacesBlock(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "plotter.cfg"), "[plotter]\n")

	cfg := kinematics.DefaultConfig()
	for _, arm := range []float64{181, 183} {
		cfg.MainArmLength = arm
		if err := SaveKinematics(path, cfg); err != nil {
			t.Fatal(err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(data), saveMarker); n != 1 {
		t.Errorf("marker count = %d, want 1", n)
	}
	if !strings.Contains(string(data), "#*# main_arm_length = 183\n") {
		t.Errorf("latest value missing:\n%s", data)
	}
	if strings.Contains(string(data), "= 181\n") {
		t.Error("previous block should be replaced")
	}
}

func TestSaveKinematicsNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.cfg")
	if err := SaveKinematics(path, kinematics.DefaultConfig()); err != nil {
		t.Fatal(err)
	}
	pc, err := ParsePlotterConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if pc.Kinematics != kinematics.DefaultConfig() {
		t.Errorf("kinematics = %+v", pc.Kinematics)
	}
}

func TestSaveKinematicsInvalid(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "plotter.cfg"), samplePlotter)
	cfg := kinematics.DefaultConfig()
	cfg.BendAngleDegrees = 0

	if err := SaveKinematics(path, cfg); err == nil {
		t.Fatal("expected validation error")
	}
	data, _ := os.ReadFile(path)
	if string(data) != samplePlotter {
		t.Error("file should be untouched after a rejected save")
	}
}

func TestStripAutosave(t *testing.T) {
	in := "[plotter]\nbend_angle: 120\n\n\n" + saveMarker + "\n#*# [plotter]\n"
	if got := stripAutosave(in); got != "[plotter]\nbend_angle: 120\n" {
		t.Errorf("stripAutosave = %q", got)
	}
	if got := stripAutosave(""); got != "" {
		t.Errorf("empty input gave %q", got)
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadString(t *testing.T) {
	data := `
# pen plotter
[plotter]
kinematics: bent_crank
shoulder_separation: 140
bend_angle = 120 ; inline comment

[api]
address: 127.0.0.1:7150
`

	cfg, err := LoadString(data)
	if err != nil {
		t.Fatalf("LoadString failed: %v", err)
	}

	if !cfg.HasSection("plotter") || !cfg.HasSection("api") {
		t.Error("expected [plotter] and [api] sections to exist")
	}
	if cfg.HasSection("nonexistent") {
		t.Error("expected [nonexistent] section to not exist")
	}

	plotter, err := cfg.GetSection("plotter")
	if err != nil {
		t.Fatalf("GetSection(plotter) failed: %v", err)
	}
	if plotter.GetName() != "plotter" {
		t.Errorf("expected name 'plotter', got '%s'", plotter.GetName())
	}

	kin, err := plotter.Get("kinematics")
	if err != nil || kin != "bent_crank" {
		t.Errorf("Get(kinematics) = %q, %v", kin, err)
	}

	sep, err := plotter.GetFloat("shoulder_separation")
	if err != nil || sep != 140 {
		t.Errorf("GetFloat(shoulder_separation) = %v, %v", sep, err)
	}

	bend, err := plotter.GetFloat("bend_angle")
	if err != nil || bend != 120 {
		t.Errorf("GetFloat(bend_angle) = %v, %v", bend, err)
	}

	api, _ := cfg.GetSection("api")
	addr, err := api.Get("address")
	if err != nil || addr != "127.0.0.1:7150" {
		t.Errorf("address = %q, %v", addr, err)
	}
}

func TestLoadStringErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"empty header", "[]\n", "empty section header"},
		{"option before section", "x: 1\n[plotter]\n", "outside of a section"},
		{"no separator", "[plotter]\nbroken line\n", "expected 'key: value'"},
		{"include without file", "[include other.cfg]\n", "include not supported"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadString(tt.data)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadStringErrorLine(t *testing.T) {
	_, err := LoadString("[plotter]\nok: 1\nbad\n")
	ce, ok := err.(*ConfigError)
	if !ok {
		t.Fatalf("expected *ConfigError, got %T", err)
	}
	if ce.Line != 3 {
		t.Errorf("line = %d, want 3", ce.Line)
	}
}

func TestSectionGet(t *testing.T) {
	data := `
[test]
string_val: hello
int_val: 42
float_val: 3.14
bool_val: yes
Mixed_Case: 1
`
	cfg, err := LoadString(data)
	if err != nil {
		t.Fatal(err)
	}
	sec, _ := cfg.GetSection("test")

	if v, _ := sec.Get("string_val"); v != "hello" {
		t.Errorf("Get = %q", v)
	}
	if v, _ := sec.GetInt("int_val"); v != 42 {
		t.Errorf("GetInt = %d", v)
	}
	if v, _ := sec.GetFloat("float_val"); v != 3.14 {
		t.Errorf("GetFloat = %v", v)
	}
	if v, _ := sec.GetBool("bool_val"); !v {
		t.Error("GetBool = false")
	}
	if !sec.HasOption("mixed_case") {
		t.Error("option names should be case-insensitive")
	}

	if v, _ := sec.Get("missing", "fallback"); v != "fallback" {
		t.Errorf("fallback = %q", v)
	}
	if _, err := sec.GetInt("string_val"); err == nil {
		t.Error("expected error parsing string as int")
	}
	if _, err := sec.GetBool("int_val"); err == nil {
		t.Error("expected error parsing 42 as bool")
	}
}

func TestAccessTracking(t *testing.T) {
	cfg, err := LoadString("[plotter]\na: 1\nb: 2\n[extra]\nc: 3\n")
	if err != nil {
		t.Fatal(err)
	}
	sec, _ := cfg.GetSection("plotter")
	sec.Get("a")
	sec.Get("missing", "x")

	if unused := sec.GetUnusedOptions(); len(unused) != 1 || unused[0] != "b" {
		t.Errorf("unused options = %v, want [b]", unused)
	}
	if unused := cfg.GetUnusedSections(); len(unused) != 1 || unused[0] != "extra" {
		t.Errorf("unused sections = %v, want [extra]", unused)
	}
}

func TestGetChoice(t *testing.T) {
	cfg, _ := LoadString("[plotter]\nkinematics: Bent_Crank\nother: delta\n")
	sec, _ := cfg.GetSection("plotter")
	choices := []string{"bent_crank", "linear_parallel"}

	v, err := sec.GetChoice("kinematics", choices)
	if err != nil || v != "bent_crank" {
		t.Errorf("GetChoice = %q, %v", v, err)
	}
	if _, err := sec.GetChoice("other", choices); err == nil {
		t.Error("expected invalid choice error")
	}
	if v, _ := sec.GetChoice("absent", choices, "linear_parallel"); v != "linear_parallel" {
		t.Errorf("fallback choice = %q", v)
	}
}

func TestBoundsChecking(t *testing.T) {
	cfg, _ := LoadString("[plotter]\nzero: 0\nbend: 200\nbaud: 300\n")
	sec, _ := cfg.GetSection("plotter")

	if _, err := sec.GetFloatWithBounds("zero", FloatBounds{Above: Float(0)}); err == nil {
		t.Error("expected error for value not above 0")
	}
	if _, err := sec.GetFloatWithBounds("bend", FloatBounds{Below: Float(180)}); err == nil {
		t.Error("expected error for value not below 180")
	}
	if _, err := sec.GetFloatWithBounds("bend", FloatBounds{MaxVal: Float(200)}); err != nil {
		t.Errorf("200 <= 200 should pass: %v", err)
	}
	if _, err := sec.GetIntWithBounds("baud", intPtr(1200), nil); err == nil {
		t.Error("expected error for baud below minimum")
	}
}

func TestMissingOptionError(t *testing.T) {
	cfg, _ := LoadString("[plotter]\n")
	sec, _ := cfg.GetSection("plotter")

	_, err := sec.Get("device")
	ce, ok := err.(*ConfigError)
	if !ok {
		t.Fatalf("expected *ConfigError, got %T", err)
	}
	if ce.Section != "plotter" || ce.Option != "device" {
		t.Errorf("unexpected context %+v", ce)
	}
	if !strings.Contains(ce.Error(), "must be specified") {
		t.Errorf("unexpected message %q", ce.Error())
	}

	_, err = cfg.GetSection("servo_link")
	if err == nil || !strings.Contains(err.Error(), "section not found") {
		t.Errorf("expected missing section error, got %v", err)
	}
}

func TestSectionsMerge(t *testing.T) {
	cfg, err := LoadString("[plotter]\na: 1\nb: 2\n[plotter]\nb: 3\n")
	if err != nil {
		t.Fatal(err)
	}
	if names := cfg.GetSectionNames(); len(names) != 1 {
		t.Errorf("duplicate section should merge, got %v", names)
	}
	sec, _ := cfg.GetSection("plotter")
	if v, _ := sec.Get("b"); v != "3" {
		t.Errorf("later value should win, got %q", v)
	}
}

func TestLoadInclude(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "arms.cfg"), "[plotter]\nmain_arm_length: 200\n")
	main := writeFile(t, filepath.Join(dir, "plotter.cfg"), "[include arms.cfg]\n[api]\naddress: :8000\n")

	cfg, err := Load(main)
	if err != nil {
		t.Fatal(err)
	}
	sec, err := cfg.GetSection("plotter")
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := sec.GetFloat("main_arm_length"); v != 200 {
		t.Errorf("included value = %v", v)
	}
}

func TestLoadRecursiveInclude(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.cfg"), "[include b.cfg]\n")
	writeFile(t, filepath.Join(dir, "b.cfg"), "[include a.cfg]\n")

	_, err := Load(filepath.Join(dir, "a.cfg"))
	if err == nil || !strings.Contains(err.Error(), "recursive include") {
		t.Errorf("expected recursive include error, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.cfg"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !os.IsNotExist(err.(*ConfigError).Cause) {
		t.Errorf("expected not-exist cause, got %v", err)
	}
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

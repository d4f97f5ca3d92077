package kinematics

import (
	"testing"
)

func TestWorkspaceCoarse(t *testing.T) {
	s := newDefaultSolver(t)

	rep := Workspace(s, 10)
	if rep.Samples != 100 {
		t.Fatalf("samples = %d, want 100", rep.Samples)
	}
	if rep.Reachable != 97 || rep.Unreachable != 3 {
		t.Errorf("reachable/unreachable = %d/%d, want 97/3", rep.Reachable, rep.Unreachable)
	}
	if rep.Empty() {
		t.Error("workspace should not be empty")
	}
}

func TestWorkspaceBounds(t *testing.T) {
	s := newDefaultSolver(t)

	rep := Workspace(s, 1)
	if rep.Samples != 91*91 {
		t.Fatalf("samples = %d", rep.Samples)
	}
	b := rep.Bounds
	if !near(b.Min.X, -111.711, 1e-2) || !near(b.Max.X, 111.711, 1e-2) {
		t.Errorf("x bounds = [%.3f, %.3f]", b.Min.X, b.Max.X)
	}
	if !near(b.Min.Y, 31.095, 1e-2) || !near(b.Max.Y, 283.975, 1e-2) {
		t.Errorf("y bounds = [%.3f, %.3f]", b.Min.Y, b.Max.Y)
	}
	if b.Width() <= 0 || b.Height() <= 0 {
		t.Error("degenerate bounds")
	}
}

func TestWorkspaceDefaultStep(t *testing.T) {
	s := newDefaultSolver(t)
	if rep := Workspace(s, 0); rep.Step != 1 {
		t.Errorf("step = %v, want 1", rep.Step)
	}
}

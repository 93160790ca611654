package kinematics

import (
	"math"
	"strings"
	"testing"
)

func linearRotarySolver(t *testing.T) *Solver {
	t.Helper()
	s, err := NewSolver(LinearRotary(), []Joint{
		{Name: "extend", Kind: Linear, Min: 0, Max: 30, Speed: 10},
		{Name: "tilt", Kind: Rotary, Min: -10, Max: 90, Speed: 45},
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSolve_LinearRotary(t *testing.T) {
	s := linearRotarySolver(t)
	sol := s.Solve(20, 0, -10)

	if !sol.Reachable {
		t.Fatalf("should be reachable: %s", sol.Reason)
	}
	if math.Abs(sol.Targets[0].Value-20) > 0.001 {
		t.Errorf("extend target = %f, want 20", sol.Targets[0].Value)
	}
	wantAngle := math.Atan2(10, 20) * 180 / math.Pi
	if math.Abs(sol.Targets[1].Value-wantAngle) > 0.001 {
		t.Errorf("tilt target = %f, want %f", sol.Targets[1].Value, wantAngle)
	}
	// Joints move in parallel: total time is the slower joint.
	if math.Abs(sol.TotalTime-2.0) > 0.001 {
		t.Errorf("TotalTime = %f, want 2.0 (extend at 10cm/s dominates)", sol.TotalTime)
	}
}

func TestSolve_LinearRotary_HorizontalFromXY(t *testing.T) {
	s := linearRotarySolver(t)
	sol := s.Solve(12, 16, 0)
	if math.Abs(sol.Targets[0].Value-20) > 0.001 {
		t.Errorf("extend target = %f, want 20 (hypot of 12,16)", sol.Targets[0].Value)
	}
}

func TestSolve_LinearRotary_UnreachableStillClamped(t *testing.T) {
	s := linearRotarySolver(t)
	sol := s.Solve(40, 0, 0)

	if sol.Reachable {
		t.Error("40cm should be beyond the 30cm joint")
	}
	if sol.Reason == "" || !strings.Contains(sol.Reason, "extend") {
		t.Errorf("Reason = %q, want mention of the extend joint", sol.Reason)
	}
	// Best-effort values are still present, clamped to range. Whether to
	// act on them is the caller's call; Reachable says not to.
	if sol.Targets[0].Value != 30 {
		t.Errorf("clamped extend = %f, want 30", sol.Targets[0].Value)
	}
}

func TestSolve_LinearRotary_RotaryOutOfRange(t *testing.T) {
	s := linearRotarySolver(t)
	// Target above the plane drives the tilt negative past -10.
	sol := s.Solve(10, 0, 8)
	if sol.Reachable {
		t.Errorf("tilt %f should be out of range", sol.Targets[1].Value)
	}
	if sol.Targets[1].Value != -10 {
		t.Errorf("clamped tilt = %f, want -10", sol.Targets[1].Value)
	}
}

func TestSolveForward_RoundTrip(t *testing.T) {
	s := linearRotarySolver(t)
	targets := [][2]float64{{5, -2}, {15, -10}, {25, -5}, {10, 0}}
	for _, tc := range targets {
		x, z := tc[0], tc[1]
		sol := s.Solve(x, 0, z)
		if !sol.Reachable {
			t.Fatalf("(%f, %f) should be reachable: %s", x, z, sol.Reason)
		}
		gx, _, gz, err := s.Forward([]float64{sol.Targets[0].Value, sol.Targets[1].Value})
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(gx-x) > 0.01 || math.Abs(gz-z) > 0.01 {
			t.Errorf("round trip (%f, %f) -> (%f, %f)", x, z, gx, gz)
		}
	}
}

func planarSolver(t *testing.T) *Solver {
	t.Helper()
	s, err := NewSolver(Planar(10, 10), []Joint{
		{Name: "shoulder", Kind: Rotary, Min: -180, Max: 180, Speed: 60},
		{Name: "elbow", Kind: Rotary, Min: 0, Max: 180, Speed: 60},
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSolve_Planar(t *testing.T) {
	s := planarSolver(t)

	// Full stretch along x: both angles zero.
	sol := s.Solve(20, 0, 0)
	if !sol.Reachable {
		t.Fatalf("full stretch should be reachable: %s", sol.Reason)
	}
	if math.Abs(sol.Targets[0].Value) > 0.001 || math.Abs(sol.Targets[1].Value) > 0.001 {
		t.Errorf("full stretch angles = (%f, %f), want (0, 0)", sol.Targets[0].Value, sol.Targets[1].Value)
	}

	// Halfway in: elbow-down 120 deg, shoulder -60.
	sol = s.Solve(10, 0, 0)
	if !sol.Reachable {
		t.Fatalf("should be reachable: %s", sol.Reason)
	}
	if math.Abs(sol.Targets[1].Value-120) > 0.001 {
		t.Errorf("elbow = %f, want 120", sol.Targets[1].Value)
	}
	if math.Abs(sol.Targets[0].Value+60) > 0.001 {
		t.Errorf("shoulder = %f, want -60", sol.Targets[0].Value)
	}
}

func TestSolve_Planar_BeyondReach(t *testing.T) {
	s := planarSolver(t)
	sol := s.Solve(25, 0, 0)
	if sol.Reachable {
		t.Error("25cm should be beyond 10+10 reach")
	}
	if !strings.Contains(sol.Reason, "beyond reach") {
		t.Errorf("Reason = %q", sol.Reason)
	}
}

func TestSolve_Planar_InsideDeadRadius(t *testing.T) {
	s, err := NewSolver(Planar(15, 5), []Joint{
		{Name: "shoulder", Kind: Rotary, Min: -180, Max: 180, Speed: 60},
		{Name: "elbow", Kind: Rotary, Min: 0, Max: 180, Speed: 60},
	})
	if err != nil {
		t.Fatal(err)
	}
	sol := s.Solve(5, 0, 0)
	if sol.Reachable {
		t.Error("5cm should be inside the 10cm dead radius")
	}
}

func TestSolve_Articulated(t *testing.T) {
	s, err := NewSolver(Articulated(10, 10), []Joint{
		{Name: "base", Kind: Rotary, Min: -180, Max: 180, Speed: 60},
		{Name: "shoulder", Kind: Rotary, Min: -180, Max: 180, Speed: 60},
		{Name: "elbow", Kind: Rotary, Min: 0, Max: 180, Speed: 60},
	})
	if err != nil {
		t.Fatal(err)
	}

	sol := s.Solve(10, 10, 0)
	if !sol.Reachable {
		t.Fatalf("should be reachable: %s", sol.Reason)
	}
	if math.Abs(sol.Targets[0].Value-45) > 0.001 {
		t.Errorf("base = %f, want 45", sol.Targets[0].Value)
	}
	if len(sol.Targets) != 3 {
		t.Fatalf("targets = %d, want 3", len(sol.Targets))
	}
}

func TestSolve_DirectFallback(t *testing.T) {
	s, err := NewSolver(Direct(), []Joint{
		{Name: "a", Kind: Linear, Min: 0, Max: 10, Speed: 1},
		{Name: "b", Kind: Linear, Min: 0, Max: 10, Speed: 1},
	})
	if err != nil {
		t.Fatal(err)
	}

	sol := s.Solve(5, 20, 99)
	if len(sol.Targets) != 2 {
		t.Fatalf("targets = %d, want 2 (axes mapped by declaration order)", len(sol.Targets))
	}
	if sol.Targets[0].Value != 5 || sol.Targets[1].Value != 10 {
		t.Errorf("targets = (%f, %f), want (5, 10)", sol.Targets[0].Value, sol.Targets[1].Value)
	}
	if sol.Reachable {
		t.Error("second axis out of range, should not be reachable")
	}
}

func TestCommands_ExtendAndTilt(t *testing.T) {
	s := linearRotarySolver(t)
	sol := s.Solve(20, 0, -10)
	cmds := s.Commands(sol)

	if len(cmds) != 2 {
		t.Fatalf("commands = %v, want extend + head down", cmds)
	}
	if cmds[0] != "ACT:Z_OUT:2.00" {
		t.Errorf("cmds[0] = %q, want ACT:Z_OUT:2.00", cmds[0])
	}
	if cmds[1] != "ACT:Y_DOWN" {
		t.Errorf("cmds[1] = %q, want ACT:Y_DOWN", cmds[1])
	}
}

func TestCommands_DirectionIsRelativeToCurrent(t *testing.T) {
	s := linearRotarySolver(t)
	s.SetCurrent("extend", 20)

	sol := s.Solve(5, 0, 0)
	cmds := s.Commands(sol)

	// Moving from 20 back to 5 is a retract of 15cm at 10cm/s.
	if len(cmds) != 1 {
		t.Fatalf("commands = %v, want a single retract (tilt already at 0)", cmds)
	}
	if cmds[0] != "ACT:Z_IN:1.50" {
		t.Errorf("cmds[0] = %q, want ACT:Z_IN:1.50", cmds[0])
	}
}

func TestNewSolver_JointCountValidation(t *testing.T) {
	if _, err := NewSolver(LinearRotary(), []Joint{{Name: "only"}}); err == nil {
		t.Error("linear+rotary with one joint should fail")
	}
	if _, err := NewSolver(Direct(), nil); err == nil {
		t.Error("no joints should fail")
	}
}

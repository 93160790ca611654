package kinematics

import (
	"fmt"
	"math"

	"github.com/agribotics/agribot/pkg/protocol"
)

type topologyKind int

const (
	topoDirect topologyKind = iota
	topoLinearRotary
	topoPlanar
	topoArticulated
)

// Topology selects the solver branch at construction time. Each variant
// carries its own parameters; there is no runtime joint sniffing.
type Topology struct {
	kind   topologyKind
	l1, l2 float64
}

// LinearRotary is the primary arm: a horizontal linear extension plus a
// rotary head tilt. Joints are declared in that order.
func LinearRotary() Topology {
	return Topology{kind: topoLinearRotary}
}

// Planar is a two-rotary-joint arm in a single plane with link lengths
// l1 and l2. Joints are declared shoulder first, then elbow.
func Planar(l1, l2 float64) Topology {
	return Topology{kind: topoPlanar, l1: l1, l2: l2}
}

// Articulated adds a base rotation under a planar pair. Joints are
// declared base, shoulder, elbow.
func Articulated(l1, l2 float64) Topology {
	return Topology{kind: topoArticulated, l1: l1, l2: l2}
}

// Direct maps target axes onto joints by declaration order. Only used
// for degenerate rigs and tests.
func Direct() Topology {
	return Topology{kind: topoDirect}
}

// JointTarget is one joint's portion of a solution.
type JointTarget struct {
	Name    string
	Value   float64 // cm or deg, clamped to the joint's range
	Seconds float64 // travel time from the joint's current estimate
}

// Solution is the result of solving for one target position. Values are
// always clamped to joint ranges; when the unclamped solution would have
// exceeded a range, Reachable is false and Reason says why. Joints move
// in parallel, so TotalTime is the slowest joint, not the sum.
type Solution struct {
	Targets   []JointTarget
	TotalTime float64
	Reachable bool
	Reason    string
}

// Solver turns world-frame targets into joint targets for one arm.
type Solver struct {
	topo   Topology
	joints []Joint
}

// NewSolver builds a solver for the given topology and joints. The
// joint slice order must match the topology's declaration order.
func NewSolver(topo Topology, joints []Joint) (*Solver, error) {
	need := map[topologyKind]int{
		topoLinearRotary: 2,
		topoPlanar:       2,
		topoArticulated:  3,
	}
	if n, ok := need[topo.kind]; ok && len(joints) < n {
		return nil, fmt.Errorf("topology needs %d joints, got %d", n, len(joints))
	}
	if len(joints) == 0 {
		return nil, fmt.Errorf("no joints")
	}
	return &Solver{topo: topo, joints: joints}, nil
}

// Joints returns the solver's joint set.
func (s *Solver) Joints() []Joint {
	return s.joints
}

// SetCurrent updates one joint's current position estimate, clamped.
func (s *Solver) SetCurrent(name string, value float64) {
	for i := range s.joints {
		if s.joints[i].Name == name {
			s.joints[i].Current = s.joints[i].Clamp(value)
			return
		}
	}
}

// Solve computes joint targets for the world-frame position (x, y, z)
// in centimeters, z positive downward from the arm plane.
func (s *Solver) Solve(x, y, z float64) Solution {
	switch s.topo.kind {
	case topoLinearRotary:
		return s.solveLinearRotary(x, y, z)
	case topoPlanar:
		return s.solvePlanar(x, y)
	case topoArticulated:
		return s.solveArticulated(x, y, z)
	default:
		return s.solveDirect(x, y, z)
	}
}

func (s *Solver) finish(sol Solution) Solution {
	for _, t := range sol.Targets {
		if t.Seconds > sol.TotalTime {
			sol.TotalTime = t.Seconds
		}
	}
	return sol
}

func (s *Solver) solveLinearRotary(x, y, z float64) Solution {
	lin, rot := s.joints[0], s.joints[1]

	horizontal := math.Hypot(x, y)
	linTarget := lin.Clamp(horizontal)

	// Down is a positive tilt angle.
	rawAngle := math.Atan2(-z, linTarget) * 180 / math.Pi
	rotTarget := rot.Clamp(rawAngle)

	sol := Solution{
		Targets: []JointTarget{
			{Name: lin.Name, Value: linTarget, Seconds: lin.TimeTo(linTarget)},
			{Name: rot.Name, Value: rotTarget, Seconds: rot.TimeTo(rotTarget)},
		},
		Reachable: true,
	}
	// Clamped values stay in the solution even when out of range, so a
	// caller can choose a best-effort move. Reachable tells it not to.
	if !lin.InRange(horizontal) {
		sol.Reachable = false
		sol.Reason = fmt.Sprintf("%s: %.1fcm outside [%.1f, %.1f]", lin.Name, horizontal, lin.Min, lin.Max)
	} else if !rot.InRange(rawAngle) {
		sol.Reachable = false
		sol.Reason = fmt.Sprintf("%s: %.1f deg outside [%.1f, %.1f]", rot.Name, rawAngle, rot.Min, rot.Max)
	}
	return s.finish(sol)
}

// solvePlanar is the law-of-cosines elbow-down solution in the arm's
// plane, with px and py the in-plane coordinates.
func (s *Solver) solvePlanar(px, py float64) Solution {
	shoulder, elbow := s.joints[0], s.joints[1]
	l1, l2 := s.topo.l1, s.topo.l2

	d := math.Hypot(px, py)
	reason := ""
	if d > l1+l2 {
		reason = fmt.Sprintf("target %.1fcm beyond reach %.1fcm", d, l1+l2)
	} else if d < math.Abs(l1-l2) {
		reason = fmt.Sprintf("target %.1fcm inside dead radius %.1fcm", d, math.Abs(l1-l2))
	}

	cosElbow := (d*d - l1*l1 - l2*l2) / (2 * l1 * l2)
	cosElbow = math.Max(-1, math.Min(1, cosElbow))
	elbowRaw := math.Acos(cosElbow) * 180 / math.Pi

	elbowRad := elbowRaw * math.Pi / 180
	shoulderRaw := (math.Atan2(py, px) - math.Atan2(l2*math.Sin(elbowRad), l1+l2*math.Cos(elbowRad))) * 180 / math.Pi

	if reason == "" && !shoulder.InRange(shoulderRaw) {
		reason = fmt.Sprintf("%s: %.1f deg outside [%.1f, %.1f]", shoulder.Name, shoulderRaw, shoulder.Min, shoulder.Max)
	}
	if reason == "" && !elbow.InRange(elbowRaw) {
		reason = fmt.Sprintf("%s: %.1f deg outside [%.1f, %.1f]", elbow.Name, elbowRaw, elbow.Min, elbow.Max)
	}

	shoulderT := shoulder.Clamp(shoulderRaw)
	elbowT := elbow.Clamp(elbowRaw)

	return s.finish(Solution{
		Targets: []JointTarget{
			{Name: shoulder.Name, Value: shoulderT, Seconds: shoulder.TimeTo(shoulderT)},
			{Name: elbow.Name, Value: elbowT, Seconds: elbow.TimeTo(elbowT)},
		},
		Reachable: reason == "",
		Reason:    reason,
	})
}

func (s *Solver) solveArticulated(x, y, z float64) Solution {
	base := s.joints[0]

	baseRaw := math.Atan2(y, x) * 180 / math.Pi
	baseT := base.Clamp(baseRaw)

	// Remaining two joints solve the planar case in the vertical plane
	// that contains the target.
	planar := &Solver{
		topo:   Topology{kind: topoPlanar, l1: s.topo.l1, l2: s.topo.l2},
		joints: s.joints[1:3],
	}
	inner := planar.solvePlanar(math.Hypot(x, y), z)

	sol := Solution{
		Targets: append([]JointTarget{
			{Name: base.Name, Value: baseT, Seconds: base.TimeTo(baseT)},
		}, inner.Targets...),
		Reachable: inner.Reachable,
		Reason:    inner.Reason,
	}
	if sol.Reachable && !base.InRange(baseRaw) {
		sol.Reachable = false
		sol.Reason = fmt.Sprintf("%s: %.1f deg outside [%.1f, %.1f]", base.Name, baseRaw, base.Min, base.Max)
	}
	return s.finish(sol)
}

func (s *Solver) solveDirect(x, y, z float64) Solution {
	axes := []float64{x, y, z}
	sol := Solution{Reachable: true}
	for i, j := range s.joints {
		if i >= len(axes) {
			break
		}
		target := j.Clamp(axes[i])
		if sol.Reachable && !j.InRange(axes[i]) {
			sol.Reachable = false
			sol.Reason = fmt.Sprintf("%s: %.1f outside [%.1f, %.1f]", j.Name, axes[i], j.Min, j.Max)
		}
		sol.Targets = append(sol.Targets, JointTarget{Name: j.Name, Value: target, Seconds: j.TimeTo(target)})
	}
	return s.finish(sol)
}

// Forward recovers a world position from joint values for the
// linear+rotary topology. The lateral component is not recoverable from
// two joints and comes back as zero.
func (s *Solver) Forward(values []float64) (x, y, z float64, err error) {
	if s.topo.kind != topoLinearRotary {
		return 0, 0, 0, fmt.Errorf("forward kinematics only defined for the linear+rotary topology")
	}
	if len(values) < 2 {
		return 0, 0, 0, fmt.Errorf("need 2 joint values, got %d", len(values))
	}
	lin := values[0]
	rotRad := values[1] * math.Pi / 180
	return lin, 0, -lin * math.Tan(rotRad), nil
}

// Commands lowers a solution into ordered hardware directives. Direction
// is relative to each joint's current estimate, not an absolute sign.
// Joints already at target produce no directive.
func (s *Solver) Commands(sol Solution) []string {
	var cmds []string
	for i, t := range sol.Targets {
		if i >= len(s.joints) {
			break
		}
		j := s.joints[i]
		delta := t.Value - j.Current
		switch j.Kind {
		case Linear:
			if t.Seconds <= 0 {
				continue
			}
			if delta > 0 {
				cmds = append(cmds, protocol.ArmExtend(t.Seconds))
			} else {
				cmds = append(cmds, protocol.ArmRetract(t.Seconds))
			}
		case Rotary:
			// The head tilt is a binary actuator: down for positive
			// angles, up otherwise.
			if delta == 0 {
				continue
			}
			if t.Value > j.Current {
				cmds = append(cmds, protocol.HeadDown())
			} else {
				cmds = append(cmds, protocol.HeadUp())
			}
		}
	}
	return cmds
}

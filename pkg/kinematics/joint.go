package kinematics

// Kind distinguishes the two joint types the arm hardware supports.
type Kind int

const (
	Linear Kind = iota // extension, centimeters
	Rotary             // tilt, degrees
)

func (k Kind) String() string {
	switch k {
	case Linear:
		return "linear"
	case Rotary:
		return "rotary"
	default:
		return "unknown"
	}
}

// Joint is one controllable axis of the arm.
type Joint struct {
	Name    string
	Kind    Kind
	Min     float64
	Max     float64
	Speed   float64 // cm/s for linear, deg/s for rotary
	Home    float64
	Current float64 // estimated, clamped to [Min,Max]
}

// Clamp limits v to the joint's range.
func (j Joint) Clamp(v float64) float64 {
	if v < j.Min {
		return j.Min
	}
	if v > j.Max {
		return j.Max
	}
	return v
}

// InRange reports whether v lies within [Min,Max].
func (j Joint) InRange(v float64) bool {
	return v >= j.Min && v <= j.Max
}

// TimeTo returns the seconds to move from the current estimate to
// target at rated speed. Never negative.
func (j Joint) TimeTo(target float64) float64 {
	if j.Speed <= 0 {
		return 0
	}
	dist := target - j.Current
	if dist < 0 {
		dist = -dist
	}
	return dist / j.Speed
}

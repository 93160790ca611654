package control

// Movement below this is noise, not a commandable distance.
const deadZoneCm = 0.1

// Direction of an open-loop move.
type Direction int

const (
	None Direction = iota
	Out
	In
)

func (d Direction) String() string {
	switch d {
	case Out:
		return "out"
	case In:
		return "in"
	default:
		return "none"
	}
}

// Move is one planned open-loop actuation.
type Move struct {
	Direction Direction
	Seconds   float64
}

// TimeBasedConfig sets up an open-loop controller.
type TimeBasedConfig struct {
	Speed           float64 // cm/s at rated PWM
	AccelTime       float64 // seconds lost to spin-up per move
	OvershootFactor float64 // multiplier covering deceleration drift
	MinMoveTime     float64 // floor on any nonzero move
}

// TimeBased drives a joint with no position sensor. It keeps a believed
// position that is an estimate, not a measurement, and drifts under
// real-world slippage until Calibrate supplies a correction.
type TimeBased struct {
	cfg      TimeBasedConfig
	position float64
	factor   float64 // exponentially smoothed calibration multiplier
}

// NewTimeBased builds a controller starting at position 0.
func NewTimeBased(cfg TimeBasedConfig) *TimeBased {
	if cfg.Speed <= 0 {
		cfg.Speed = 1
	}
	if cfg.OvershootFactor <= 0 {
		cfg.OvershootFactor = 1
	}
	return &TimeBased{cfg: cfg, factor: 1}
}

// Position returns the believed current position in cm.
func (t *TimeBased) Position() float64 {
	return t.position
}

// CalibrationFactor returns the current speed correction multiplier.
func (t *TimeBased) CalibrationFactor() float64 {
	return t.factor
}

// MoveTime returns the drive duration in seconds to reach target from
// the believed position. Distances inside the dead zone cost nothing.
func (t *TimeBased) MoveTime(target float64) float64 {
	dist := target - t.position
	if dist < 0 {
		dist = -dist
	}
	if dist < deadZoneCm {
		return 0
	}
	secs := (dist/t.cfg.Speed + t.cfg.AccelTime) * t.cfg.OvershootFactor * t.factor
	if secs < t.cfg.MinMoveTime {
		secs = t.cfg.MinMoveTime
	}
	return secs
}

// Plan returns the direction and duration to reach target.
func (t *TimeBased) Plan(target float64) Move {
	secs := t.MoveTime(target)
	if secs == 0 {
		return Move{Direction: None}
	}
	dir := Out
	if target < t.position {
		dir = In
	}
	return Move{Direction: dir, Seconds: secs}
}

// Advance records that the planned move was executed: the believed
// position becomes the target. Open loop, so this is belief, not truth.
func (t *TimeBased) Advance(target float64) {
	t.position = target
}

// ResetPosition overwrites the believed position, typically after a
// full retract against the end stop.
func (t *TimeBased) ResetPosition(p float64) {
	t.position = p
}

// Calibrate folds one measured actual-vs-expected movement into the
// calibration factor. Smoothing keeps a single bad sample from
// overcorrecting.
func (t *TimeBased) Calibrate(actual, expected float64) {
	if expected <= 0 || actual <= 0 {
		return
	}
	t.factor = 0.7*t.factor + 0.3*(actual/expected)
}

package mission

import (
	"math"

	"github.com/agribotics/agribot/pkg/calib"
	"github.com/agribotics/agribot/pkg/protocol"
)

// Alignment moves shorter than this are noise and are skipped.
const minAlignSeconds = 0.05

// Approach speed zones: PWM by pixel distance to the stop point. Values
// interpolate inside each zone so speed never jumps up as the target
// gets closer.
const (
	zoneFarPx  = 200.0
	zoneMidPx  = 100.0
	zoneNearPx = 50.0

	pwmCruise   = 200
	pwmMid      = 150
	pwmNear     = 80
	pwmCreep    = 50
)

// ZDistanceCm converts a bottom-anchored pixel distance to centimeters.
// Symmetric in the sign of the offset.
func ZDistanceCm(cfg calib.Config, offsetPx float64) float64 {
	return math.Abs(offsetPx) * cfg.PixelToCmZ
}

// ExtendDistanceCm converts a Z distance to the arm extension needed,
// accounting for the nozzle's reach at rest. Targets inside the base
// offset need no extension at all.
func ExtendDistanceCm(cfg calib.Config, zDistCm float64) float64 {
	d := zDistCm - cfg.ArmBaseOffsetCm
	if d < 0 {
		return 0
	}
	return d
}

// ExtendSeconds converts an extension distance to open-loop drive time,
// hard-clamped so a miscalibrated ratio can never run the arm past its
// travel.
func ExtendSeconds(cfg calib.Config, extendCm float64) float64 {
	if extendCm <= 0 || cfg.ArmSpeedCmPerSec <= 0 {
		return 0
	}
	secs := extendCm / cfg.ArmSpeedCmPerSec
	if max := cfg.MaxExtendSeconds(); max > 0 && secs > max {
		secs = max
	}
	return secs
}

// IsAligned reports whether a horizontal pixel offset is inside the
// alignment tolerance. The boundary counts as aligned.
func IsAligned(cfg calib.Config, offsetPx float64) bool {
	return math.Abs(offsetPx) <= cfg.AlignmentTolerancePx
}

// AlignPlan converts a horizontal pixel offset into a timed chassis
// nudge. Positive offsets are ahead of the nozzle, so the chassis moves
// forward. Sub-threshold moves come back as zero seconds.
func AlignPlan(cfg calib.Config, offsetPx float64) (protocol.XDirection, float64) {
	dir := protocol.XForward
	if offsetPx < 0 {
		dir = protocol.XBackward
	}
	if IsAligned(cfg, offsetPx) || cfg.WheelSpeedCmPerSec <= 0 {
		return dir, 0
	}
	secs := math.Abs(offsetPx) * cfg.PixelToCmX / cfg.WheelSpeedCmPerSec
	if secs < minAlignSeconds {
		return dir, 0
	}
	return dir, secs
}

// ApproachPWM returns the drive PWM for the distance remaining to the
// stop point. Monotonically non-increasing as the target gets closer,
// and exactly zero once inside the alignment tolerance.
func ApproachPWM(cfg calib.Config, offsetPx float64) int {
	d := math.Abs(offsetPx)
	tol := cfg.AlignmentTolerancePx
	if d <= tol {
		return 0
	}

	interp := func(d, lo, hi, pwmLo, pwmHi float64) int {
		return int(pwmLo + (d-lo)/(hi-lo)*(pwmHi-pwmLo))
	}
	switch {
	case d > zoneFarPx:
		return pwmCruise
	case d > zoneMidPx:
		return interp(d, zoneMidPx, zoneFarPx, pwmMid, pwmCruise)
	case d > zoneNearPx:
		return interp(d, zoneNearPx, zoneMidPx, pwmNear, pwmMid)
	case tol < zoneNearPx:
		return interp(d, tol, zoneNearPx, pwmCreep, pwmNear)
	default:
		return pwmCreep
	}
}

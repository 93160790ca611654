package mission

import (
	"math"
	"testing"

	"github.com/agribotics/agribot/pkg/calib"
	"github.com/agribotics/agribot/pkg/protocol"
)

func TestZDistance_Symmetry(t *testing.T) {
	cfg := calib.Default()
	for _, d := range []float64{0, 1, 37.5, 240, 1000} {
		if ZDistanceCm(cfg, d) != ZDistanceCm(cfg, -d) {
			t.Errorf("ZDistanceCm not symmetric at %f", d)
		}
	}
}

func TestExtendDistance_DeadZone(t *testing.T) {
	cfg := calib.Default() // base offset 5cm, ratio 0.05 cm/px
	// Everything within the base offset needs zero extension.
	for _, px := range []float64{0, 10, 50, 100} { // up to exactly 5cm
		z := ZDistanceCm(cfg, px)
		if got := ExtendDistanceCm(cfg, z); got != 0 {
			t.Errorf("ExtendDistanceCm at %fpx = %f, want 0 (inside base offset)", px, got)
		}
	}
	if got := ExtendDistanceCm(cfg, ZDistanceCm(cfg, 120)); math.Abs(got-1) > 1e-9 {
		t.Errorf("ExtendDistanceCm at 120px = %f, want 1", got)
	}
}

func TestExtendSeconds_HardClamp(t *testing.T) {
	cfg := calib.Default() // max 5s
	for _, cm := range []float64{1, 40, 500, 1e6} {
		if got := ExtendSeconds(cfg, cm); got > cfg.MaxExtendSeconds() {
			t.Errorf("ExtendSeconds(%f) = %f exceeds clamp %f", cm, got, cfg.MaxExtendSeconds())
		}
	}
}

func TestExtendSeconds_Scenario(t *testing.T) {
	// 480px image, target at y=240: 240px from the bottom edge. At
	// 0.05 cm/px and 2.17 cm/s the raw time is 12/2.17 = 5.53s.
	cfg := calib.Default()
	cfg.PixelToCmZ = 0.05
	cfg.ArmSpeedCmPerSec = 2.17
	cfg.ArmBaseOffsetCm = 0

	z := ZDistanceCm(cfg, 240)
	if math.Abs(z-12.0) > 0.001 {
		t.Fatalf("z distance = %f, want 12.0", z)
	}

	cfg.MaxArmExtendTime = 10
	if got := ExtendSeconds(cfg, z); math.Abs(got-5.53) > 0.01 {
		t.Errorf("unclamped time = %f, want ~5.53", got)
	}

	cfg.MaxArmExtendTime = 5
	if got := ExtendSeconds(cfg, z); got != 5 {
		t.Errorf("clamped time = %f, want 5.0", got)
	}
}

func TestIsAligned_BoundaryEquality(t *testing.T) {
	cfg := calib.Default() // tolerance 30px
	tests := []struct {
		offset float64
		want   bool
	}{
		{0, true},
		{29.9, true},
		{30, true}, // boundary counts as aligned
		{-30, true},
		{30.1, false},
		{-100, false},
	}
	for _, tt := range tests {
		if got := IsAligned(cfg, tt.offset); got != tt.want {
			t.Errorf("IsAligned(%f) = %v, want %v", tt.offset, got, tt.want)
		}
	}
}

func TestAlignPlan_Scenario(t *testing.T) {
	// Image center 320. Offsets convert at 0.05 cm/px, wheels at 20cm/s.
	cfg := calib.Default()
	cfg.PixelToCmX = 0.05
	cfg.WheelSpeedCmPerSec = 20

	// target_x = 420: 100px ahead -> 5cm forward.
	dir, secs := AlignPlan(cfg, 420-cfg.ImageCenterX())
	if dir != protocol.XForward {
		t.Errorf("direction = %v, want FW", dir)
	}
	if math.Abs(secs-0.25) > 0.001 {
		t.Errorf("seconds = %f, want 0.25 (5cm / 20cm/s)", secs)
	}

	// target_x = 220: same magnitude backward.
	dir, secs = AlignPlan(cfg, 220-cfg.ImageCenterX())
	if dir != protocol.XBackward {
		t.Errorf("direction = %v, want BW", dir)
	}
	if math.Abs(secs-0.25) > 0.001 {
		t.Errorf("seconds = %f, want 0.25", secs)
	}

	// target_x = 320: already centered.
	if _, secs = AlignPlan(cfg, 0); secs != 0 {
		t.Errorf("seconds at center = %f, want 0", secs)
	}
}

func TestAlignPlan_SubThresholdSkipped(t *testing.T) {
	cfg := calib.Default()
	cfg.AlignmentTolerancePx = 10
	cfg.PixelToCmX = 0.01
	cfg.WheelSpeedCmPerSec = 100
	// 20px -> 0.2cm -> 0.002s, far under the minimum useful move.
	if _, secs := AlignPlan(cfg, 20); secs != 0 {
		t.Errorf("seconds = %f, want 0 for a sub-threshold nudge", secs)
	}
}

func TestApproachPWM_MonotoneAndZeroInsideTolerance(t *testing.T) {
	cfg := calib.Default() // tolerance 30

	prev := math.MaxInt32
	for d := 400.0; d >= 0; d -= 0.5 {
		pwm := ApproachPWM(cfg, d)
		if pwm > prev {
			t.Fatalf("speed increased from %d to %d as distance dropped to %f", prev, pwm, d)
		}
		if d <= cfg.AlignmentTolerancePx && pwm != 0 {
			t.Fatalf("pwm = %d inside tolerance at %f, want 0", pwm, d)
		}
		prev = pwm
	}

	// Sign of the offset does not matter.
	if ApproachPWM(cfg, 150) != ApproachPWM(cfg, -150) {
		t.Error("ApproachPWM should be symmetric in offset sign")
	}
}

func TestApproachPWM_ZoneValues(t *testing.T) {
	cfg := calib.Default()
	tests := []struct {
		d    float64
		want int
	}{
		{300, 200},
		{200, 200}, // zone boundary is continuous
		{150, 175},
		{100, 150},
		{75, 115},
		{50, 80},
		{30, 0},
		{0, 0},
	}
	for _, tt := range tests {
		if got := ApproachPWM(cfg, tt.d); got != tt.want {
			t.Errorf("ApproachPWM(%f) = %d, want %d", tt.d, got, tt.want)
		}
	}
}

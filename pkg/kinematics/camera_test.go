package kinematics

import (
	"errors"
	"math"
	"testing"

	"github.com/agribotics/agribot/pkg/calib"
)

func testCameraConfig() calib.Config {
	cfg := calib.Default()
	cfg.FocalX = 500
	cfg.FocalY = 500
	cfg.CenterX = 320
	cfg.CenterY = 240
	cfg.CameraHeightCm = 50
	return cfg
}

func TestCamera_PrincipalPointMapsToOrigin(t *testing.T) {
	cam := NewCamera(testCameraConfig())
	x, y, z, err := cam.PixelToWorld(320, 240, 0)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(x) > 0.001 || math.Abs(y) > 0.001 || z != 0 {
		t.Errorf("principal point = (%f, %f, %f), want origin", x, y, z)
	}
}

func TestCamera_StraightDownProjection(t *testing.T) {
	cam := NewCamera(testCameraConfig())
	// 100px right of center, focal 500: normalized 0.2, at 50cm -> 10cm.
	x, _, _, err := cam.PixelToWorld(420, 240, 0)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(x-10) > 0.001 {
		t.Errorf("x = %f, want 10", x)
	}
}

func TestCamera_TiltScalesProjection(t *testing.T) {
	cfg := testCameraConfig()
	cfg.CameraTiltDeg = 60
	cam := NewCamera(cfg)
	// scale = 50 / cos(60) = 100, so the same 0.2 offset lands at 20cm.
	x, _, _, err := cam.PixelToWorld(420, 240, 0)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(x-20) > 0.001 {
		t.Errorf("x at 60 deg tilt = %f, want 20", x)
	}
}

func TestCamera_NegativeTiltScalesLikePositive(t *testing.T) {
	cfg := testCameraConfig()
	cfg.CameraTiltDeg = 60
	up := NewCamera(cfg)
	cfg.CameraTiltDeg = -60
	down := NewCamera(cfg)

	x1, _, _, err := up.PixelToWorld(420, 240, 0)
	if err != nil {
		t.Fatal(err)
	}
	x2, _, _, err := down.PixelToWorld(420, 240, 0)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(x1-x2) > 0.001 {
		t.Errorf("tilt sign changed the projection: %f vs %f", x1, x2)
	}
	if math.Abs(x2-20) > 0.001 {
		t.Errorf("x at -60 deg tilt = %f, want 20 (scaled, not straight down)", x2)
	}
}

func TestCamera_SmallTiltIsIdentity(t *testing.T) {
	flat := NewCamera(testCameraConfig())
	cfg := testCameraConfig()
	cfg.CameraTiltDeg = 3
	tilted := NewCamera(cfg)

	x1, _, _, _ := flat.PixelToWorld(420, 240, 0)
	x2, _, _, _ := tilted.PixelToWorld(420, 240, 0)
	if x1 != x2 {
		t.Errorf("tilt below threshold should project like straight down: %f vs %f", x1, x2)
	}
}

func TestCamera_ExtremeTiltClamped(t *testing.T) {
	cfg := testCameraConfig()
	cfg.CameraTiltDeg = 90
	cam := NewCamera(cfg)
	x, _, _, err := cam.PixelToWorld(420, 240, 0)
	if err != nil {
		t.Fatal(err)
	}
	if math.IsInf(x, 0) || math.IsNaN(x) {
		t.Errorf("x at 90 deg tilt = %f, want finite (tilt clamped)", x)
	}
}

func TestCamera_TargetAboveCamera(t *testing.T) {
	cam := NewCamera(testCameraConfig())
	_, _, _, err := cam.PixelToWorld(320, 240, 50)
	if !errors.Is(err, ErrAboveCamera) {
		t.Errorf("target at camera height: err = %v, want ErrAboveCamera", err)
	}
	_, _, _, err = cam.PixelToWorld(320, 240, 60)
	if !errors.Is(err, ErrAboveCamera) {
		t.Errorf("target above camera: err = %v, want ErrAboveCamera", err)
	}
}

func TestCamera_OffsetsApplied(t *testing.T) {
	cfg := testCameraConfig()
	cfg.CameraOffsetXCm = 5
	cfg.CameraOffsetYCm = -3
	cam := NewCamera(cfg)
	x, y, _, err := cam.PixelToWorld(320, 240, 0)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(x-5) > 0.001 || math.Abs(y+3) > 0.001 {
		t.Errorf("offsets: got (%f, %f), want (5, -3)", x, y)
	}
}

func TestCamera_RoundTrip(t *testing.T) {
	cfg := testCameraConfig()
	cfg.CameraTiltDeg = 20
	cfg.CameraOffsetXCm = 4
	cfg.DistortionK1 = -0.08
	cfg.DistortionK2 = 0.01
	cfg.DistortionP1 = 0.001
	cam := NewCamera(cfg)

	pixels := [][2]float64{{320, 240}, {100, 80}, {550, 400}, {10, 470}}
	for _, p := range pixels {
		x, y, z, err := cam.PixelToWorld(p[0], p[1], 2)
		if err != nil {
			t.Fatalf("PixelToWorld(%v): %v", p, err)
		}
		px, py, err := cam.WorldToPixel(x, y, z)
		if err != nil {
			t.Fatalf("WorldToPixel: %v", err)
		}
		if math.Abs(px-p[0]) > 0.1 || math.Abs(py-p[1]) > 0.1 {
			t.Errorf("round trip %v -> (%f, %f)", p, px, py)
		}
	}
}

func TestCamera_PixelToCmRatio(t *testing.T) {
	cfg := testCameraConfig()
	cfg.FocalX = 500
	cfg.FocalY = 540
	cam := NewCamera(cfg)
	got := cam.PixelToCmRatio(52)
	if math.Abs(got-0.1) > 0.001 {
		t.Errorf("ratio = %f, want 0.1 (52 / mean focal 520)", got)
	}
}

func TestCamera_NoIntrinsics(t *testing.T) {
	cam := NewCamera(calib.Default())
	if _, _, _, err := cam.PixelToWorld(320, 240, 0); err == nil {
		t.Error("projection without focal calibration should fail")
	}
	if got := cam.PixelToCmRatio(50); got != 0 {
		t.Errorf("ratio without focals = %f, want 0", got)
	}
}

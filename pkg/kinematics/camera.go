// Package kinematics maps camera pixels to the robot's world frame and
// world-frame targets to per-joint commands.
package kinematics

import (
	"errors"
	"fmt"
	"math"

	"github.com/agribotics/agribot/pkg/calib"
)

// ErrAboveCamera is returned when a target would sit at or above the
// camera plane, where the ground projection has no solution.
var ErrAboveCamera = errors.New("target at or above camera plane")

const (
	// Tilt below this is treated as straight down.
	tiltIdentityDeg = 5.0
	// Tilt is clamped here to keep 1/cos bounded.
	tiltMaxDeg = 89.0

	undistortIterations = 5
)

// Camera projects between pixel coordinates and world-frame centimeters
// using the mounted camera's intrinsics and pose.
type Camera struct {
	fx, fy float64
	cx, cy float64

	k1, k2, k3 float64
	p1, p2     float64

	heightCm float64
	tiltDeg  float64
	offsetX  float64
	offsetY  float64
}

// NewCamera builds a Camera from the calibration record.
func NewCamera(cfg calib.Config) Camera {
	return Camera{
		fx: cfg.FocalX, fy: cfg.FocalY,
		cx: cfg.CenterX, cy: cfg.CenterY,
		k1: cfg.DistortionK1, k2: cfg.DistortionK2, k3: cfg.DistortionK3,
		p1: cfg.DistortionP1, p2: cfg.DistortionP2,
		heightCm: cfg.CameraHeightCm,
		tiltDeg:  cfg.CameraTiltDeg,
		offsetX:  cfg.CameraOffsetXCm,
		offsetY:  cfg.CameraOffsetYCm,
	}
}

// scale returns the normalized-coordinate to centimeter factor for a
// target plane at the given effective height below the camera. Tilt
// direction does not matter, only its magnitude.
func (c Camera) scale(effectiveHeight float64) float64 {
	tilt := math.Abs(c.tiltDeg)
	if tilt > tiltMaxDeg {
		tilt = tiltMaxDeg
	}
	if tilt < tiltIdentityDeg {
		return effectiveHeight
	}
	return effectiveHeight / math.Cos(tilt*math.Pi/180)
}

func (c Camera) hasDistortion() bool {
	return c.k1 != 0 || c.k2 != 0 || c.k3 != 0 || c.p1 != 0 || c.p2 != 0
}

// distort applies the radial+tangential model to normalized coordinates.
func (c Camera) distort(x, y float64) (float64, float64) {
	r2 := x*x + y*y
	radial := 1 + c.k1*r2 + c.k2*r2*r2 + c.k3*r2*r2*r2
	dx := 2*c.p1*x*y + c.p2*(r2+2*x*x)
	dy := c.p1*(r2+2*y*y) + 2*c.p2*x*y
	return x*radial + dx, y*radial + dy
}

// undistort inverts the distortion model by fixed-point iteration, which
// converges fast for the mild distortion of a fixed-focus field camera.
func (c Camera) undistort(xd, yd float64) (float64, float64) {
	x, y := xd, yd
	for i := 0; i < undistortIterations; i++ {
		r2 := x*x + y*y
		radial := 1 + c.k1*r2 + c.k2*r2*r2 + c.k3*r2*r2*r2
		dx := 2*c.p1*x*y + c.p2*(r2+2*x*x)
		dy := c.p1*(r2+2*y*y) + 2*c.p2*x*y
		x = (xd - dx) / radial
		y = (yd - dy) / radial
	}
	return x, y
}

// PixelToWorld maps a pixel to world-frame centimeters for a target at
// height zWorld above the ground plane.
func (c Camera) PixelToWorld(xPx, yPx, zWorld float64) (x, y, z float64, err error) {
	if c.fx <= 0 || c.fy <= 0 {
		return 0, 0, 0, fmt.Errorf("camera has no focal calibration")
	}

	effectiveHeight := c.heightCm - zWorld
	if effectiveHeight <= 0 {
		return 0, 0, 0, ErrAboveCamera
	}

	xn := (xPx - c.cx) / c.fx
	yn := (yPx - c.cy) / c.fy
	if c.hasDistortion() {
		xn, yn = c.undistort(xn, yn)
	}

	s := c.scale(effectiveHeight)
	return xn*s + c.offsetX, yn*s + c.offsetY, zWorld, nil
}

// WorldToPixel is the inverse of PixelToWorld.
func (c Camera) WorldToPixel(x, y, z float64) (xPx, yPx float64, err error) {
	if c.fx <= 0 || c.fy <= 0 {
		return 0, 0, fmt.Errorf("camera has no focal calibration")
	}

	effectiveHeight := c.heightCm - z
	if effectiveHeight <= 0 {
		return 0, 0, ErrAboveCamera
	}

	s := c.scale(effectiveHeight)
	xn := (x - c.offsetX) / s
	yn := (y - c.offsetY) / s
	if c.hasDistortion() {
		xn, yn = c.distort(xn, yn)
	}

	return xn*c.fx + c.cx, yn*c.fy + c.cy, nil
}

// PixelToCmRatio returns the scalar cm-per-pixel ratio at the given
// distance, for call sites that do not need the full projection.
func (c Camera) PixelToCmRatio(atDistance float64) float64 {
	mean := (c.fx + c.fy) / 2
	if mean <= 0 {
		return 0
	}
	return atDistance / mean
}

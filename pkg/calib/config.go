// Package calib holds the on-disk calibration record for the robot.
//
// The record is a flat JSON file. Loading is tolerant: a missing file
// yields the defaults, and a partial file only overrides the fields it
// names. Callers load once at startup and pass the value around; nothing
// mutates it after that.
package calib

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

const DefaultConfigFile = "calibration.json"

// Config is the full calibration record.
type Config struct {
	Version int `json:"version"`

	// Serial link to the drive/arm controller.
	SerialPort    string  `json:"serial_port"`
	BaudRate      int     `json:"baud_rate"`
	SerialTimeout float64 `json:"serial_timeout"` // seconds per command exchange

	// Camera frame geometry.
	ImageWidth  int `json:"image_width"`
	ImageHeight int `json:"image_height"`

	// Camera intrinsics. Zero focal lengths disable projection and the
	// flat pixel-to-cm ratios below are used instead.
	FocalX       float64 `json:"focal_x"`
	FocalY       float64 `json:"focal_y"`
	CenterX      float64 `json:"center_x"`
	CenterY      float64 `json:"center_y"`
	DistortionK1 float64 `json:"distortion_k1"`
	DistortionK2 float64 `json:"distortion_k2"`
	DistortionP1 float64 `json:"distortion_p1"`
	DistortionP2 float64 `json:"distortion_p2"`
	DistortionK3 float64 `json:"distortion_k3"`

	// Camera mounting relative to the arm base.
	CameraHeightCm  float64 `json:"camera_height_cm"`
	CameraTiltDeg   float64 `json:"camera_tilt_deg"`
	CameraOffsetXCm float64 `json:"camera_offset_x_cm"`
	CameraOffsetYCm float64 `json:"camera_offset_y_cm"`

	// Arm extension (Z axis, toward the ground).
	ArmSpeedCmPerSec float64 `json:"arm_speed_cm_per_sec"`
	PixelToCmZ       float64 `json:"pixel_to_cm_z"`
	ArmBaseOffsetCm  float64 `json:"arm_base_offset_cm"`
	MaxArmExtendTime float64 `json:"max_arm_extend_time"` // seconds
	MaxArmExtendCm   float64 `json:"max_arm_extend_cm"`   // overrides the time clamp when set
	ArmRetractBuffer float64 `json:"arm_retract_buffer"`  // extra retract seconds

	// Chassis alignment (X axis, across the row).
	WheelSpeedCmPerSec   float64 `json:"wheel_speed_cm_per_sec"`
	PixelToCmX           float64 `json:"pixel_to_cm_x"`
	AlignmentTolerancePx float64 `json:"alignment_tolerance_px"`

	// Mission timing.
	SprayDuration float64 `json:"spray_duration"` // seconds
	SettleWait    float64 `json:"settle_wait"`    // seconds to wait after a hard stop
}

// Default returns the factory calibration.
func Default() Config {
	return Config{
		Version:       1,
		SerialPort:    "/dev/ttyUSB0",
		BaudRate:      115200,
		SerialTimeout: 10,

		ImageWidth:  640,
		ImageHeight: 480,

		CameraHeightCm: 50,

		ArmSpeedCmPerSec: 10.0,
		PixelToCmZ:       0.05,
		ArmBaseOffsetCm:  5.0,
		MaxArmExtendTime: 5.0,
		ArmRetractBuffer: 0.5,

		WheelSpeedCmPerSec:   20.0,
		PixelToCmX:           0.1,
		AlignmentTolerancePx: 30,

		SprayDuration: 2.0,
		SettleWait:    1.0,
	}
}

// Load reads the calibration file at path. A missing file is not an
// error: the defaults are returned and ok is false. A partial file only
// overrides the fields it names.
func Load(path string) (cfg Config, ok bool, err error) {
	cfg = Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, false, nil
	}
	if err != nil {
		return cfg, false, fmt.Errorf("read calibration file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return Default(), false, fmt.Errorf("parse calibration JSON: %w", err)
	}

	// A distance limit on the arm takes precedence over the raw time
	// clamp, converted through the arm speed.
	if cfg.MaxArmExtendCm > 0 && cfg.ArmSpeedCmPerSec > 0 {
		cfg.MaxArmExtendTime = cfg.MaxArmExtendCm / cfg.ArmSpeedCmPerSec
	}

	return cfg, true, nil
}

// Save writes the calibration to path.
func (c Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ImageCenterX returns the horizontal image midpoint in pixels.
func (c Config) ImageCenterX() float64 {
	return float64(c.ImageWidth) / 2
}

// ImageCenterY returns the vertical image midpoint in pixels.
func (c Config) ImageCenterY() float64 {
	return float64(c.ImageHeight) / 2
}

// MaxExtendSeconds returns the hard clamp on a single arm extension.
func (c Config) MaxExtendSeconds() float64 {
	return c.MaxArmExtendTime
}

// Timeout returns the per-exchange serial deadline as a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.SerialTimeout * float64(time.Second))
}

// HasIntrinsics reports whether full camera intrinsics are present.
func (c Config) HasIntrinsics() bool {
	return c.FocalX > 0 && c.FocalY > 0
}

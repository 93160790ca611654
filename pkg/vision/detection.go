// Package vision holds the detection-side types the mission consumes.
// The detector itself (model inference, frame grabbing) lives in an
// external process; this package only shapes its output and tracks
// targets across frames.
package vision

import "github.com/agribotics/agribot/pkg/calib"

// Detection is one detected object in pixel coordinates.
type Detection struct {
	X          float64 `json:"x"` // box center
	Y          float64 `json:"y"`
	W          float64 `json:"w"` // box size
	H          float64 `json:"h"`
	Confidence float64 `json:"confidence"`
	Class      string  `json:"class"`
	IsTarget   bool    `json:"is_target"` // class is in the configured spray-target set
}

// OffsetFromCenterX returns the horizontal pixel offset from image
// center. Positive means the target is on the forward side.
func (d Detection) OffsetFromCenterX(cfg calib.Config) float64 {
	return d.X - cfg.ImageCenterX()
}

// OffsetFromCenterY returns the vertical pixel offset from image center.
func (d Detection) OffsetFromCenterY(cfg calib.Config) float64 {
	return d.Y - cfg.ImageCenterY()
}

// BottomDistance returns the pixel distance from the image's bottom edge
// to the box's bottom edge. Objects rest on the ground plane, so this is
// the distance proxy used for arm extension. Never negative.
func (d Detection) BottomDistance(imgHeight int) float64 {
	dist := float64(imgHeight) - (d.Y + d.H/2)
	if dist < 0 {
		return 0
	}
	return dist
}

// Source supplies per-frame detections. Implemented by the external
// detector process adapter; fakes implement it in tests.
type Source interface {
	// Next captures a frame and returns its detections. ok is false when
	// no frame was available; that is transient and the caller retries
	// on its next tick.
	Next() (dets []Detection, ok bool)
}

// Package agribot controls a weed-spraying field robot: a camera on a
// slow-moving chassis spots weeds, and a linear arm with a spray head
// drives out over them.
//
// The heavy lifting (YOLO inference) happens in an external process; this
// module takes pixel detections and turns them into motion over a serial
// link to the drive/arm microcontroller.
//
// # Installation
//
//	go install github.com/agribotics/agribot/cmd/agribot@latest
//
// # Usage
//
// Probe for the controller board, tune the calibration, then run a mission:
//
//	agribot probe
//	agribot tune
//	agribot run --port /dev/ttyUSB0
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/agribot: CLI with run, monitor, tune, probe and report commands
//   - pkg/calib: on-disk calibration store
//   - pkg/kinematics: camera projection and inverse kinematics
//   - pkg/control: PID and open-loop time-based motion controllers
//   - pkg/protocol: newline-delimited ASCII command link to the firmware
//   - pkg/vision: detection types and frame-to-frame target tracking
//   - pkg/mission: the spray mission sequencer
package agribot

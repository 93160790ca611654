package protocol

import "fmt"

// Directives are newline-terminated ASCII, VERB[:AXIS_OP[:PARAM]].
// Timed actuations carry a duration in seconds and complete with DONE;
// continuous drive directives never complete and are ended by DriveStop.

const (
	cmdPing       = "PING"
	respPong      = "PONG"
	respDone      = "DONE"
	respErr       = "ERR"
	respEmergency = "EMERGENCY_STOPPED"

	// DistanceTag prefixes the ultrasonic payload line, DIST:<cm>.
	DistanceTag = "DIST"
)

// XDirection selects the chassis alignment direction along the row.
type XDirection string

const (
	XForward  XDirection = "FW"
	XBackward XDirection = "BW"
)

// ArmExtend drives the arm out for the given seconds.
func ArmExtend(seconds float64) string {
	return fmt.Sprintf("ACT:Z_OUT:%.2f", seconds)
}

// ArmRetract drives the arm back in for the given seconds.
func ArmRetract(seconds float64) string {
	return fmt.Sprintf("ACT:Z_IN:%.2f", seconds)
}

// HeadDown lowers the spray head. Binary actuator, no parameter.
func HeadDown() string { return "ACT:Y_DOWN" }

// HeadUp raises the spray head.
func HeadUp() string { return "ACT:Y_UP" }

// Spray opens the spray valve for the given seconds.
func Spray(seconds float64) string {
	return fmt.Sprintf("ACT:SPRAY:%.2f", seconds)
}

// DriveForward starts continuous forward drive at the current speed.
// Fire and forget: it produces no DONE.
func DriveForward() string { return "MOVE_FORWARD" }

// DriveBackward starts continuous backward drive.
func DriveBackward() string { return "MOVE_BACKWARD" }

// DriveForwardPWM starts continuous forward drive at an explicit PWM.
func DriveForwardPWM(pwm int) string {
	return fmt.Sprintf("MOVE_FW:%d", pwm)
}

// DriveBackwardPWM starts continuous backward drive at an explicit PWM.
func DriveBackwardPWM(pwm int) string {
	return fmt.Sprintf("MOVE_BW:%d", pwm)
}

// SetDriveSpeed sets the PWM used by subsequent drive directives.
func SetDriveSpeed(pwm int) string {
	return fmt.Sprintf("MOVE_SET_SPEED:%d", pwm)
}

// AlignStart nudges the chassis along the row for X alignment. The
// caller times the move and ends it with DriveStop.
func AlignStart(d XDirection) string {
	return "MOVE_X:" + string(d)
}

// DriveStop hard-stops the drive motors. Completes with DONE.
func DriveStop() string { return "MOVE_STOP" }

// ReadDistance asks the ultrasonic sensor for a range reading. The peer
// answers DIST:<cm> before its DONE.
func ReadDistance() string { return "US_GET_DIST" }

// StopAll is the hardware emergency override: every motor and valve off.
func StopAll() string { return "STOP_ALL" }

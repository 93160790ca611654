package protocol

import "errors"

var (
	// ErrNotConnected means no handshake has succeeded on this link.
	ErrNotConnected = errors.New("peer not connected")

	// ErrTimeout means the peer sent no terminating token in time. It is
	// deliberately distinct from ErrPeer: a silent peer is not the same
	// failure as a peer that reported a problem.
	ErrTimeout = errors.New("command timed out")

	// ErrPeer means the peer answered with an ERR line. The wrapped
	// message carries the peer's diagnostic text.
	ErrPeer = errors.New("peer reported error")

	// ErrEmergencyStop means the peer terminated the command because its
	// emergency stop fired. The command itself is over; the caller must
	// drop back to idle.
	ErrEmergencyStop = errors.New("peer emergency stopped")
)

package mission

// State is the mission state machine's single active state. Transitions
// are driven only by the Sequencer.
type State int

const (
	StateIdle State = iota
	StateSearching
	StateAligning
	StateExtending
	StateSpraying
	StateRetracting

	// StateCompleted is the terminal state of a single-shot mission.
	// Reset is the only way out.
	StateCompleted

	// StateError is reachable from any state on an unrecoverable
	// failure and requires an explicit Reset.
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSearching:
		return "searching"
	case StateAligning:
		return "aligning"
	case StateExtending:
		return "extending"
	case StateSpraying:
		return "spraying"
	case StateRetracting:
		return "retracting"
	case StateCompleted:
		return "completed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state requires a Reset to leave.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateError
}

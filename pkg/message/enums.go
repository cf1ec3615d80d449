package message

// State tracks a message through its life. Transitions are monotonic:
// UNSENT -> SENT -> ANSWERED.
type State int

// Message states.
const (
	StateUnsent State = iota
	StateSent
	StateAnswered
)

func (s State) String() string {
	switch s {
	case StateUnsent:
		return "UNSENT"
	case StateSent:
		return "SENT"
	case StateAnswered:
		return "ANSWERED"
	default:
		return "INVALID"
	}
}

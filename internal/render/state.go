package render

// State is the progress of one streamed reply.
type State int

// Reply states, in the order they are reached. A stream without any
// non-blank fragment goes straight from StateAwaitingFirstFragment to
// StateFinalized.
const (
	StateIdle State = iota
	StateAwaitingFirstFragment
	StateStreaming
	StateFinalized
)

// String returns the state name used in logs and spans.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingFirstFragment:
		return "awaiting_first_fragment"
	case StateStreaming:
		return "streaming"
	case StateFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

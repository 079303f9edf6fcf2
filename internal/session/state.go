package session

// State is the lifecycle stage of a session.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Selection is text the reader has selected, with the point where the
// selection menu should be anchored.
type Selection struct {
	CFIRange string  `json:"cfi_range"`
	Text     string  `json:"text"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// menuHalfWidth centres the selection menu over the selected text.
const menuHalfWidth = 50

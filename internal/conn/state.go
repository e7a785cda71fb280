package conn

// State is the observable lifecycle of the managed connection. Transitions
// happen only inside Manager operations; between failed dial attempts the
// state rests at Disconnected.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Closing
)

var stateNames = map[State]string{
	Disconnected: "disconnected",
	Connecting:   "connecting",
	Connected:    "connected",
	Closing:      "closing",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

package pairing

// State of a role state machine. Central moves through
// Idle→Scanning→Connecting→PairingInitiated, Peripheral through
// Idle→Advertising→Connected→PairingResponded; both end in
// Authenticated or Failed.
type State int

const (
	Idle State = iota
	Scanning
	Connecting
	PairingInitiated
	Advertising
	Connected
	PairingResponded
	Authenticated
	Failed
)

var stateStrings = map[State]string{
	Idle:             "idle",
	Scanning:         "scanning",
	Connecting:       "connecting",
	PairingInitiated: "pairing initiated",
	Advertising:      "advertising",
	Connected:        "connected",
	PairingResponded: "pairing responded",
	Authenticated:    "authenticated",
	Failed:           "failed",
}

func (s State) String() string {
	if str, ok := stateStrings[s]; ok {
		return str
	}
	return "unknown"
}

package feed

// State is the connection lifecycle:
//
//	DISCONNECTED -> CONNECTING -> CONNECTED -> (DEGRADED) -> DISCONNECTED
//
// DEGRADED keeps the socket but flags health metrics as unreliable; any
// read or write failure forces DISCONNECTED and a reconnect.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateDegraded:
		return "DEGRADED"
	default:
		return "UNKNOWN"
	}
}

package screener

// SessionState is the position of a user's configuration session in
// the edit state machine.
type SessionState int

const (
	// StateIdle means no edit is in progress. Newly seen users start
	// here and every completed or cancelled edit returns here.
	StateIdle SessionState = iota

	// StateAwaitingValue means a criterion was selected for direct
	// entry and the next raw input is parsed as its new value. A parse
	// failure keeps the session here so the user can retry without
	// re-selecting.
	StateAwaitingValue

	// StateAdjusting means the user is applying chained ±step
	// adjustments; an explicit done/cancel action returns to idle.
	StateAdjusting
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingValue:
		return "awaiting_value"
	case StateAdjusting:
		return "adjusting"
	default:
		return "unknown"
	}
}

// session is one user's transient edit state. At most one exists per
// user identity; absence from the registry means idle.
type session struct {
	Key   string
	State SessionState
}

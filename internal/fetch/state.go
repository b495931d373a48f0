package fetch

// State is the lifecycle position of one download.
type State int

const (
	StatePending State = iota
	StateAttempting
	StateRetrying
	StateSucceeded
	StatePermanentlyFailed
	StateExhaustedFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateAttempting:
		return "attempting"
	case StateRetrying:
		return "retrying"
	case StateSucceeded:
		return "succeeded"
	case StatePermanentlyFailed:
		return "permanently_failed"
	case StateExhaustedFailed:
		return "exhausted_failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further attempt follows.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StatePermanentlyFailed || s == StateExhaustedFailed
}

// Failed reports whether the state ends the download without success.
func (s State) Failed() bool {
	return s == StatePermanentlyFailed || s == StateExhaustedFailed
}

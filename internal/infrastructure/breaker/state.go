package breaker

// State del circuit breaker
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
	StateForcedOpen
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	case StateForcedOpen:
		return "FORCED_OPEN"
	case StateDisabled:
		return "DISABLED"
	default:
		return "UNKNOWN"
	}
}

// permitsCalls estados en los que la llamada puede llegar al upstream
func (s State) permitsCalls() bool {
	return s == StateClosed || s == StateHalfOpen || s == StateDisabled
}

package goSession

// transition is an input to the refresh-cycle state machine.
type transition uint8

const (
	// transitionInstall installs a session from bootstrap or a notification.
	transitionInstall transition = iota
	// transitionRefreshStart marks a provider refresh call in flight.
	transitionRefreshStart
	// transitionRefreshSucceeded installs the session returned by the provider.
	transitionRefreshSucceeded
	// transitionRefreshDeclined ends the cycle on a nil session without error.
	transitionRefreshDeclined
	// transitionRefreshFailed ends the cycle on a provider error.
	transitionRefreshFailed
	// transitionClear drops the session on sign-out, a nil notification or Close.
	transitionClear
)

func (t transition) String() string {
	switch t {
	case transitionInstall:
		return "install"
	case transitionRefreshStart:
		return "refresh_start"
	case transitionRefreshSucceeded:
		return "refresh_succeeded"
	case transitionRefreshDeclined:
		return "refresh_declined"
	case transitionRefreshFailed:
		return "refresh_failed"
	case transitionClear:
		return "clear"
	default:
		return "unknown"
	}
}

// nextState is the pure transition function of the refresh cycle:
//
//	NoSession --install--> Active --refresh_start--> Refreshing
//	Refreshing --refresh_succeeded--> Active
//	Refreshing --refresh_declined|refresh_failed--> NoSession
//
// install and clear apply from any state. Inputs that do not apply leave s unchanged.
func nextState(s State, t transition) State {
	switch t {
	case transitionInstall:
		return StateActive
	case transitionClear:
		return StateNoSession
	case transitionRefreshStart:
		if s == StateActive {
			return StateRefreshing
		}
	case transitionRefreshSucceeded:
		if s == StateRefreshing {
			return StateActive
		}
	case transitionRefreshDeclined, transitionRefreshFailed:
		if s == StateRefreshing {
			return StateNoSession
		}
	}
	return s
}

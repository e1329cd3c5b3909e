package payment

// State is the position of one payment attempt in the collection flow.
type State string

const (
	StateInit         State = "init"
	StateLoadingSDK   State = "loading_sdk"
	StateAwaitingUser State = "awaiting_user"
	StateVerifying    State = "verifying"
	StateComplete     State = "complete"
	StateFailed       State = "failed"
	StateCancelled    State = "cancelled"
)

var transitions = map[State][]State{
	StateInit:         {StateComplete, StateLoadingSDK},
	StateLoadingSDK:   {StateAwaitingUser, StateFailed},
	StateAwaitingUser: {StateVerifying, StateCancelled, StateFailed},
	StateVerifying:    {StateComplete, StateFailed},
}

// IsTerminal reports whether the coordinator is done with the order.
func (s State) IsTerminal() bool {
	return s == StateComplete || s == StateFailed || s == StateCancelled
}

func (s State) String() string {
	return string(s)
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

package payment

import "testing"

func TestStateTransitions(t *testing.T) {
	cases := []struct {
		from, to State
		ok       bool
	}{
		{StateInit, StateComplete, true},
		{StateInit, StateLoadingSDK, true},
		{StateInit, StateVerifying, false},
		{StateLoadingSDK, StateAwaitingUser, true},
		{StateLoadingSDK, StateFailed, true},
		{StateAwaitingUser, StateVerifying, true},
		{StateAwaitingUser, StateCancelled, true},
		{StateAwaitingUser, StateComplete, false},
		{StateVerifying, StateComplete, true},
		{StateVerifying, StateFailed, true},
		{StateComplete, StateFailed, false},
		{StateCancelled, StateVerifying, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.ok {
			t.Errorf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.ok, got)
		}
	}
}

func TestStateIsTerminal(t *testing.T) {
	for _, s := range []State{StateComplete, StateFailed, StateCancelled} {
		if !s.IsTerminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	for _, s := range []State{StateInit, StateLoadingSDK, StateAwaitingUser, StateVerifying} {
		if s.IsTerminal() {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}

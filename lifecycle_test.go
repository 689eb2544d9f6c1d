package goSession

import "testing"

func TestNextState(t *testing.T) {
	tests := []struct {
		from State
		in   transition
		want State
	}{
		{StateNoSession, transitionInstall, StateActive},
		{StateActive, transitionInstall, StateActive},
		{StateRefreshing, transitionInstall, StateActive},
		{StateActive, transitionRefreshStart, StateRefreshing},
		{StateNoSession, transitionRefreshStart, StateNoSession},
		{StateRefreshing, transitionRefreshSucceeded, StateActive},
		{StateRefreshing, transitionRefreshDeclined, StateNoSession},
		{StateRefreshing, transitionRefreshFailed, StateNoSession},
		{StateActive, transitionRefreshFailed, StateActive},
		{StateActive, transitionClear, StateNoSession},
		{StateRefreshing, transitionClear, StateNoSession},
	}

	for _, tt := range tests {
		if got := nextState(tt.from, tt.in); got != tt.want {
			t.Errorf("nextState(%s, %s) = %s, want %s", tt.from, tt.in, got, tt.want)
		}
	}
}

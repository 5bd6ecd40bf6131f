package claims_test

import (
	"testing"

	"github.com/chanmux/chanmux/internal/claims"
)

func TestStateTerminal(t *testing.T) {
	t.Parallel()
	cases := []struct {
		state claims.State
		want  bool
	}{
		{claims.StateStarted, false},
		{claims.StateAwaitingCallback, false},
		{claims.StateCompleted, true},
		{claims.StateFailed, true},
		{claims.StateExpired, true},
	}
	for _, tc := range cases {
		if got := tc.state.Terminal(); got != tc.want {
			t.Fatalf("Terminal(%s) = %v, want %v", tc.state, got, tc.want)
		}
	}
}

package hwqueue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPinDispatcherNoCPUListOnlyLocksThread(t *testing.T) {
	undo, err := PinDispatcher(0, nil)
	require.NoError(t, err)
	require.NotNil(t, undo)
	undo()
}

func TestPinDispatcherRoundRobinsOverCPUList(t *testing.T) {
	// CPU 0 always exists; affinity may still be denied in restricted
	// environments, in which case the dispatcher runs unpinned.
	undo, err := PinDispatcher(3, []int{0})
	require.NotNil(t, undo)
	defer undo()
	if err != nil {
		t.Logf("affinity not available here: %v", err)
	}
}

package kbmirror

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/kbmirror/pkg/errors"
)

func TestAutoSync(t *testing.T) {
	remote := newFakeRemote()
	remote.add("kb", "a", "alpha", 0)
	c := newTestClient(t, remote, WithSyncInterval(10*time.Millisecond))

	require.NoError(t, c.AutoSyncOn("kb"))
	require.Eventually(t, func() bool {
		n, err := c.Count(t.Context(), "kb")
		return err == nil && n == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.AutoSyncOff())
	require.NoError(t, c.AutoSyncOff(), "stopping twice is safe")

	// Let an in-flight cycle observe the cancellation.
	time.Sleep(20 * time.Millisecond)
	calls, _ := remote.counts()
	time.Sleep(50 * time.Millisecond)
	after, _ := remote.counts()
	assert.Equal(t, calls, after, "no syncs after AutoSyncOff")
}

func TestAutoSyncStopsOnAuthenticationFailure(t *testing.T) {
	remote := newFakeRemote()
	remote.listErr[1] = authError()
	c := newTestClient(t, remote, WithSyncInterval(5*time.Millisecond))

	require.NoError(t, c.AutoSyncOn("kb"))
	require.Eventually(t, func() bool {
		calls, _ := remote.counts()
		return calls >= 1
	}, 2*time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	calls, _ := remote.counts()
	assert.Equal(t, 1, calls, "the loop stops after a fatal error")
}

func TestAutoSyncValidation(t *testing.T) {
	c := newTestClient(t, newFakeRemote(), WithSyncInterval(0))
	assert.True(t, errors.IsValidationError(c.AutoSyncOn("kb")))

	c = newTestClient(t, newFakeRemote())
	assert.True(t, errors.IsValidationError(c.AutoSyncOn()))
}

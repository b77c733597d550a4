package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_DebouncesRapidCalls(t *testing.T) {
	t.Parallel()
	var runs int32
	s := New(func() { atomic.AddInt32(&runs, 1) })

	for i := 0; i < 5; i++ {
		s.Request()
		time.Sleep(100 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return atomic.LoadInt32(&runs) == 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestRequest_CooldownSuppressesImmediateSecondRun(t *testing.T) {
	t.Parallel()
	var runs int32
	s := New(func() { atomic.AddInt32(&runs, 1) })

	s.Request()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&runs) == 1 }, 3*time.Second, 50*time.Millisecond)

	s.Request()
	time.Sleep(debounceDelay + 200*time.Millisecond)
	assert.EqualValues(t, 1, atomic.LoadInt32(&runs), "second request within cooldown should not run")
}

func TestRequest_RunsAgainAfterCooldownElapses(t *testing.T) {
	t.Parallel()
	var runs int32
	s := New(func() { atomic.AddInt32(&runs, 1) })

	s.Request()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&runs) == 1 }, 3*time.Second, 50*time.Millisecond)

	time.Sleep(cooldown)
	s.Request()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&runs) == 2 }, 3*time.Second, 50*time.Millisecond)
}

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFake_AdvanceFiresDueTimersInOrder(t *testing.T) {
	c := NewFake(epoch)
	var fired []string

	c.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })
	c.AfterFunc(1*time.Second, func() { fired = append(fired, "a") })
	c.AfterFunc(5*time.Second, func() { fired = append(fired, "c") })

	c.Advance(2 * time.Second)
	assert.Equal(t, []string{"a", "b"}, fired)
	assert.Equal(t, 1, c.Pending())
	assert.Equal(t, epoch.Add(2*time.Second), c.Now())

	c.Advance(3 * time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, fired)
	assert.Equal(t, 0, c.Pending())
}

func TestFake_StopPreventsFiring(t *testing.T) {
	c := NewFake(epoch)
	called := false
	tm := c.AfterFunc(time.Second, func() { called = true })

	require.True(t, tm.Stop())
	require.False(t, tm.Stop(), "second stop reports nothing to cancel")

	c.Advance(time.Minute)
	assert.False(t, called)
}

func TestFake_StopAfterFireReturnsFalse(t *testing.T) {
	c := NewFake(epoch)
	tm := c.AfterFunc(time.Second, func() {})
	c.Advance(time.Second)
	assert.False(t, tm.Stop())
}

func TestFake_CallbackSchedulesWithinWindow(t *testing.T) {
	c := NewFake(epoch)
	var at []time.Time

	c.AfterFunc(time.Second, func() {
		at = append(at, c.Now())
		c.AfterFunc(time.Second, func() { at = append(at, c.Now()) })
	})

	c.Advance(3 * time.Second)
	require.Len(t, at, 2)
	assert.Equal(t, epoch.Add(time.Second), at[0])
	assert.Equal(t, epoch.Add(2*time.Second), at[1])
	assert.Equal(t, epoch.Add(3*time.Second), c.Now())
}

func TestSystem_AfterFuncRuns(t *testing.T) {
	done := make(chan struct{})
	System().AfterFunc(time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("system timer did not fire")
	}
}

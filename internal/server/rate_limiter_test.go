package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock lets the tests move through the rate-limit window without sleeping.
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) now() time.Time {
	return c.current
}

func (c *fakeClock) advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newTestLimiter(burst int, window time.Duration) (*rateLimiter, *fakeClock) {
	clock := &fakeClock{current: time.Unix(1_700_000_000, 0)}
	rl := newRateLimiter(burst, window)
	rl.now = clock.now
	return rl, clock
}

func TestRateLimiter_AdmitsUpToBurst(t *testing.T) {
	rl, _ := newTestLimiter(5, 10*time.Second)

	for i := 0; i < 5; i++ {
		assert.True(t, rl.allow("conn-1"), "message %d within burst should be admitted", i+1)
	}

	assert.False(t, rl.allow("conn-1"), "6th message within the window must be rejected")
}

func TestRateLimiter_RejectionConsumesNoBudget(t *testing.T) {
	rl, clock := newTestLimiter(5, 10*time.Second)

	for i := 0; i < 5; i++ {
		rl.allow("conn-1")
	}
	for i := 0; i < 10; i++ {
		assert.False(t, rl.allow("conn-1"))
	}

	// All five admissions age out together; the rejections in between must
	// not have extended the window.
	clock.advance(10*time.Second + time.Millisecond)
	assert.True(t, rl.allow("conn-1"))
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	rl, clock := newTestLimiter(5, 10*time.Second)

	// Two early messages, then three more later in the window.
	rl.allow("conn-1")
	rl.allow("conn-1")
	clock.advance(6 * time.Second)
	for i := 0; i < 3; i++ {
		assert.True(t, rl.allow("conn-1"))
	}
	assert.False(t, rl.allow("conn-1"))

	// Once the two early timestamps fall outside the trailing window, two
	// slots free up; the three recent ones still count.
	clock.advance(5 * time.Second)
	assert.True(t, rl.allow("conn-1"))
	assert.True(t, rl.allow("conn-1"))
	assert.False(t, rl.allow("conn-1"))
}

func TestRateLimiter_ConnectionsAreIndependent(t *testing.T) {
	rl, _ := newTestLimiter(2, 10*time.Second)

	assert.True(t, rl.allow("conn-1"))
	assert.True(t, rl.allow("conn-1"))
	assert.False(t, rl.allow("conn-1"))

	assert.True(t, rl.allow("conn-2"), "another connection must have its own budget")
}

func TestRateLimiter_ReleaseClearsState(t *testing.T) {
	rl, _ := newTestLimiter(2, 10*time.Second)

	rl.allow("conn-1")
	rl.allow("conn-1")
	assert.False(t, rl.allow("conn-1"))

	rl.release("conn-1")

	assert.Empty(t, rl.history, "release must drop the connection's window")
	assert.True(t, rl.allow("conn-1"), "a reconnecting id starts with a fresh budget")
}

func TestNewRateLimiter_SanitizesArguments(t *testing.T) {
	rl := newRateLimiter(0, 0)

	assert.Equal(t, 1, rl.burst)
	assert.Equal(t, time.Second, rl.window)
}

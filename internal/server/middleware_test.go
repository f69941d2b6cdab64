package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute)

	assert.True(t, limiter.Allow("conn-1"))
	assert.True(t, limiter.Allow("conn-1"))
	assert.True(t, limiter.Allow("conn-1"))
	assert.False(t, limiter.Allow("conn-1"))
}

func TestRateLimiterIsPerConnection(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)

	assert.True(t, limiter.Allow("conn-1"))
	assert.False(t, limiter.Allow("conn-1"))
	assert.True(t, limiter.Allow("conn-2"), "One client at its limit must not affect another")
}

func TestRateLimiterWindowSlides(t *testing.T) {
	limiter := NewRateLimiter(2, 50*time.Millisecond)

	assert.True(t, limiter.Allow("conn-1"))
	assert.True(t, limiter.Allow("conn-1"))
	assert.False(t, limiter.Allow("conn-1"))

	time.Sleep(60 * time.Millisecond)
	assert.True(t, limiter.Allow("conn-1"))
}

func TestRateLimiterRemoveConnection(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)

	assert.True(t, limiter.Allow("conn-1"))
	assert.False(t, limiter.Allow("conn-1"))

	limiter.RemoveConnection("conn-1")
	assert.True(t, limiter.Allow("conn-1"))
}

package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiterRefill(t *testing.T) {
	clock := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	l := New(2, 1)
	l.now = func() time.Time { return clock }

	assert.True(t, l.Allow("av"))
	assert.True(t, l.Allow("av"))

	ok, wait := l.Reserve("av")
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)

	clock = clock.Add(500 * time.Millisecond)
	assert.False(t, l.Allow("av"))

	clock = clock.Add(time.Second)
	assert.True(t, l.Allow("av"))

	clock = clock.Add(time.Hour)
	assert.InDelta(t, 2.0, l.Tokens("av"), 1e-9)
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	l := New(1, 0)
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))

	ok, wait := l.Reserve("a")
	assert.False(t, ok)
	assert.Zero(t, wait)
}

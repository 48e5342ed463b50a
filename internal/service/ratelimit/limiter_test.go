package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowConsumesCapacity(t *testing.T) {
	l := New()
	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("td", 3, 0.0001))
	}
	assert.False(t, l.Allow("td", 3, 0.0001))
}

func TestAllowRefills(t *testing.T) {
	l := New()
	require.True(t, l.Allow("td", 1, 50))
	require.False(t, l.Allow("td", 1, 50))
	time.Sleep(40 * time.Millisecond)
	assert.True(t, l.Allow("td", 1, 50))
}

func TestWaitHonorsContext(t *testing.T) {
	l := New()
	require.True(t, l.Allow("td", 1, 0.001))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx, "td", 1, 0.001)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

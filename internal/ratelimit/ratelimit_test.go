package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelayLimiterSpacesActions(t *testing.T) {
	l := NewDelayLimiter(30*time.Millisecond, 0)
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx))

	start := time.Now()
	require.NoError(t, l.Wait(ctx))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 25*time.Millisecond)
}

func TestDelayLimiterFirstCallDoesNotBlock(t *testing.T) {
	l := NewDelayLimiter(time.Hour, 0)
	l.lastAction = time.Now().Add(-2 * time.Hour)

	start := time.Now()
	require.NoError(t, l.Wait(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestDelayLimiterHonorsCancellation(t *testing.T) {
	l := NewDelayLimiter(time.Hour, 0)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNopLimiter(t *testing.T) {
	assert.NoError(t, NopLimiter{}.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, NopLimiter{}.Wait(ctx))
}

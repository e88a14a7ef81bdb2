package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errDownstream = errors.New("downstream failed")

func testConfig() Config {
	return Config{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          50 * time.Millisecond,
		FailureThreshold: 3,
		SuccessThreshold: 1,
	}
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	cb := New("test", testConfig(), zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := cb.Execute(ctx, func() error { return errDownstream })
		require.ErrorIs(t, err, errDownstream)
	}
	assert.Equal(t, StateOpen, cb.State())

	// Requests are rejected without invoking the function.
	called := false
	err := cb.Execute(ctx, func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	cb := New("test", testConfig(), zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, func() error { return errDownstream })
	}
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(60 * time.Millisecond)

	// First probe succeeds and closes the breaker again.
	err := cb.Execute(ctx, func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := New("test", testConfig(), zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, func() error { return errDownstream })
	}
	time.Sleep(60 * time.Millisecond)

	_ = cb.Execute(ctx, func() error { return errDownstream })
	assert.Equal(t, StateOpen, cb.State())
}

func TestClosedSuccessResetsConsecutiveFailures(t *testing.T) {
	cb := New("test", testConfig(), zap.NewNop())
	ctx := context.Background()

	_ = cb.Execute(ctx, func() error { return errDownstream })
	_ = cb.Execute(ctx, func() error { return errDownstream })
	require.NoError(t, cb.Execute(ctx, func() error { return nil }))
	// Two more failures should not trip a threshold of three.
	_ = cb.Execute(ctx, func() error { return errDownstream })
	_ = cb.Execute(ctx, func() error { return errDownstream })
	assert.Equal(t, StateClosed, cb.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
}

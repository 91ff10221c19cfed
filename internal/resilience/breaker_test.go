package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fail(_ context.Context) (int, error) { return 0, errors.New("fail") }
func ok(_ context.Context) (int, error)   { return 1, nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker("tps", BreakerConfig{FailureThreshold: 3, Cooldown: time.Minute})

	for i := 0; i < 3; i++ {
		_, _ = Call(context.Background(), b, fail)
	}
	assert.Equal(t, Open, b.State())

	called := false
	_, err := Call(context.Background(), b, func(_ context.Context) (int, error) {
		called = true
		return 0, nil
	})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrCircuitOpen))
	assert.Contains(t, err.Error(), "tps")
	assert.False(t, called)
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	b := NewBreaker("x", BreakerConfig{FailureThreshold: 3})
	_, _ = Call(context.Background(), b, fail)
	_, _ = Call(context.Background(), b, fail)
	assert.Equal(t, 2, b.Failures())

	v, err := Call(context.Background(), b, ok)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, 0, b.Failures())
	assert.Equal(t, Closed, b.State())
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	now := time.Now()
	var transitions []string
	b := NewBreaker("x", BreakerConfig{
		FailureThreshold: 1,
		Cooldown:         10 * time.Second,
		OnChange: func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	b.now = func() time.Time { return now }

	_, _ = Call(context.Background(), b, fail)
	assert.Equal(t, Open, b.State())

	now = now.Add(11 * time.Second)
	assert.Equal(t, HalfOpen, b.State())

	_, err := Call(context.Background(), b, ok)
	require.NoError(t, err)
	assert.Equal(t, Closed, b.State())
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	b := NewBreaker("x", BreakerConfig{FailureThreshold: 1, Cooldown: time.Second})
	b.now = func() time.Time { return now }

	_, _ = Call(context.Background(), b, fail)
	now = now.Add(2 * time.Second)
	_, _ = Call(context.Background(), b, fail)

	assert.Equal(t, Open, b.State())
}

func TestBreaker_TripsFilter(t *testing.T) {
	notFound := errors.New("not found")
	b := NewBreaker("x", BreakerConfig{
		FailureThreshold: 1,
		Trips:            func(err error) bool { return !errors.Is(err, notFound) },
	})
	_, _ = Call(context.Background(), b, func(_ context.Context) (int, error) { return 0, notFound })
	assert.Equal(t, Closed, b.State())
}

func TestBreaker_Reset(t *testing.T) {
	b := NewBreaker("x", BreakerConfig{FailureThreshold: 1})
	_, _ = Call(context.Background(), b, fail)
	require.Equal(t, Open, b.State())
	b.Reset()
	assert.Equal(t, Closed, b.State())
	assert.Equal(t, "x", b.Name())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", Closed.String())
	assert.Equal(t, "open", Open.String())
	assert.Equal(t, "half-open", HalfOpen.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestBreaker_IgnoresCancellation(t *testing.T) {
	b := NewBreaker("tps", BreakerConfig{FailureThreshold: 2, Cooldown: time.Minute})
	_, _ = Call(context.Background(), b, fail)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 3; i++ {
		_, err := Call(ctx, b, func(ctx context.Context) (int, error) { return 0, ctx.Err() })
		require.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, Closed, b.State())
	assert.Equal(t, 1, b.Failures(), "cancellation neither trips nor resets")

	_, _ = Call(context.Background(), b, fail)
	assert.Equal(t, Open, b.State())
}

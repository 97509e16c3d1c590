package embedclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/plexuslabs/plexus/pkg/resilience"
)

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("backend unavailable")
}

func TestGuardedPassesThroughOnSuccess(t *testing.T) {
	inner := &countingEmbedder{vec: []float32{1, 2}}
	breaker := resilience.NewBreaker(resilience.BreakerOpts{FailThreshold: 2, Timeout: time.Second})
	limiter := resilience.NewLimiter(resilience.LimiterOpts{Rate: 100, Burst: 5})
	g := NewGuarded(inner, breaker, limiter)

	vec, err := g.Embed(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2}, vec)
	require.EqualValues(t, 1, inner.calls.Load())
}

func TestGuardedTripsBreakerAfterRepeatedFailures(t *testing.T) {
	breaker := resilience.NewBreaker(resilience.BreakerOpts{FailThreshold: 2, Timeout: time.Minute})
	g := NewGuarded(failingEmbedder{}, breaker, nil)

	for i := 0; i < 2; i++ {
		_, err := g.Embed(context.Background(), "x")
		require.Error(t, err)
	}

	_, err := g.Embed(context.Background(), "x")
	require.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestGuardedRateLimitsBurst(t *testing.T) {
	inner := &countingEmbedder{vec: []float32{1}}
	limiter := resilience.NewLimiter(resilience.LimiterOpts{Rate: 1, Burst: 1})
	g := NewGuarded(inner, nil, limiter)

	_, err := g.Embed(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err = g.Embed(ctx, "second")
	require.Error(t, err)
}

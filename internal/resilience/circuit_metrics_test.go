package resilience_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-beaute/internal/resilience"
)

func transitions(target, from, to string) float64 {
	return testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues(target, from, to))
}

func TestBreakerPublishesStateChanges(t *testing.T) {
	resilience.MustRegisterMetrics(nil)
	resilience.BreakerState.Reset()
	resilience.BreakerTransitions.Reset()
	resilience.BreakerOpenedTotal.Reset()

	const target = "stripe-metrics"
	clk := &clock{t: time.Date(2024, 11, 29, 9, 0, 0, 0, time.UTC)}
	b := resilience.NewBreaker(1, 0.5, time.Minute).WithTarget(target).WithClock(clk.now)
	ctx := context.Background()
	state := func() float64 { return testutil.ToFloat64(resilience.BreakerState.WithLabelValues(target)) }

	require.True(t, b.Allow(ctx))
	b.Report(ctx, false)
	require.Equal(t, 1.0, state())

	// Failed probe reopens the breaker.
	clk.advance(time.Minute)
	require.True(t, b.Allow(ctx))
	require.Equal(t, 2.0, state())
	b.Report(ctx, false)
	require.Equal(t, 1.0, state())

	clk.advance(time.Minute)
	require.True(t, b.Allow(ctx))
	b.Report(ctx, true)
	require.Equal(t, 0.0, state())

	require.Equal(t, 2.0, testutil.ToFloat64(resilience.BreakerOpenedTotal.WithLabelValues(target)))
	require.Equal(t, 1.0, transitions(target, "closed", "open"))
	require.Equal(t, 2.0, transitions(target, "open", "half_open"))
	require.Equal(t, 1.0, transitions(target, "half_open", "open"))
	require.Equal(t, 1.0, transitions(target, "half_open", "closed"))
}

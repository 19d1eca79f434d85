package schedule_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loworbit/txtrack/pkg/schedule"
)

func TestSleep_WakesOnVirtualTime(t *testing.T) {
	clk := clock.NewMock()
	done := make(chan error, 1)

	go func() {
		done <- schedule.Sleep(context.Background(), clk, 10*time.Second)
	}()

	require.Eventually(t, func() bool {
		clk.Add(time.Second)
		select {
		case err := <-done:
			require.NoError(t, err)
			return true
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSleep_ContextCancelled(t *testing.T) {
	clk := clock.NewMock()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := schedule.Sleep(ctx, clk, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSleep_NonPositiveDuration(t *testing.T) {
	err := schedule.Sleep(context.Background(), clock.NewMock(), 0)
	assert.NoError(t, err)
}

func TestEvery_RunsImmediatelyAndOnTicks(t *testing.T) {
	clk := clock.NewMock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	stop := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		schedule.Every(ctx, clk, time.Minute, stop, func(context.Context) {
			calls.Add(1)
		})
		close(finished)
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		clk.Add(time.Minute)
		return calls.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond)

	close(stop)
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Every did not return after stop was closed")
	}
}

package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchCron(t *testing.T) {
	at := time.Date(2024, 3, 4, 10, 15, 0, 0, time.UTC) // Monday

	cases := map[string]bool{
		"* * * * *":       true,
		"15 10 * * *":     true,
		"*/5 * * * *":     true,
		"*/7 * * * *":     false,
		"10-20 * * * *":   true,
		"0,15,30 * * * *": true,
		"0 * * * *":       false,
		"* * * * 1":       true,
		"* * * * 0":       false,
		"* * 4 3 *":       true,
	}
	for expr, want := range cases {
		assert.Equal(t, want, matchCron(expr, at), expr)
	}
}

func TestValidateCron(t *testing.T) {
	assert.NoError(t, validateCron("*/5 0-6 1 1,6 *"))
	assert.Error(t, validateCron("* * * *"))
	assert.Error(t, validateCron("61 * * * *"))
	assert.Error(t, validateCron("*/0 * * * *"))
	assert.Error(t, validateCron("5-1 * * * *"))
}

func TestCronRunsOncePerMinute(t *testing.T) {
	e := &entry{cronExpr: "* * * * *"}
	now := time.Date(2024, 1, 1, 0, 0, 10, 0, time.UTC)

	require.True(t, isDue(e, now))
	e.lastRun = now
	assert.False(t, isDue(e, now.Add(30*time.Second)))
	assert.True(t, isDue(e, now.Add(50*time.Second)))
}

func TestRun_RejectsBadEntries(t *testing.T) {
	s := New()
	assert.Error(t, s.Cron("nope").Run(func(context.Context) {}))
	assert.Error(t, s.Interval(0).Run(func(context.Context) {}))
	assert.Empty(t, s.List())
}

func TestStart_DispatchesAndStops(t *testing.T) {
	s := New()
	s.tick = 5 * time.Millisecond

	var runs atomic.Int32
	require.NoError(t, s.Interval(10*time.Millisecond).Name("offers:sync").Run(func(context.Context) {
		runs.Add(1)
	}))
	assert.Equal(t, []string{"offers:sync  [every 10ms]"}, s.List())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	s.Wait()
}

func TestWithoutOverlapping(t *testing.T) {
	s := New()
	s.tick = 2 * time.Millisecond

	release := make(chan struct{})
	var runs, hooks atomic.Int32
	require.NoError(t, s.Interval(time.Millisecond).WithoutOverlapping().
		After(func(context.Context) { hooks.Add(1) }).
		Run(func(context.Context) {
			runs.Add(1)
			<-release
		}))

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	assert.EqualValues(t, 1, runs.Load())

	close(release)
	cancel()
	s.Wait()
	assert.Equal(t, runs.Load(), hooks.Load())
}

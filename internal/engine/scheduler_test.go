package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	return NewScheduler(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

func TestEventsRunInTimeOrderRegardlessOfInsertion(t *testing.T) {
	s := newTestScheduler(t)
	var got []string
	record := func(name string) func() { return func() { got = append(got, name) } }

	_, err := s.ScheduleAt(At(3), PriorityNormal, "c", record("c"))
	require.NoError(t, err)
	_, err = s.ScheduleAt(At(1), PriorityNormal, "a", record("a"))
	require.NoError(t, err)
	_, err = s.ScheduleAt(At(2), PriorityNormal, "b", record("b"))
	require.NoError(t, err)

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, At(3), s.Now())
}

func TestSameTimeOrdersByPriorityThenFIFO(t *testing.T) {
	s := newTestScheduler(t)
	var got []string
	record := func(name string) func() { return func() { got = append(got, name) } }

	for _, tc := range []struct {
		name string
		prio int16
	}{
		{"late", PriorityLate},
		{"n1", PriorityNormal},
		{"early", PriorityEarly},
		{"n2", PriorityNormal},
		{"n3", PriorityNormal},
	} {
		_, err := s.ScheduleAt(At(1), tc.prio, tc.name, record(tc.name))
		require.NoError(t, err)
	}

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, []string{"early", "n1", "n2", "n3", "late"}, got)
}

func TestNestedSchedulingAtSameTimeRunsAfterCurrentAction(t *testing.T) {
	s := newTestScheduler(t)
	var got []string

	_, err := s.ScheduleAt(At(1), PriorityNormal, "outer", func() {
		got = append(got, "outer-start")
		_, err := s.ScheduleAfter(0, "inner", func() { got = append(got, "inner") })
		require.NoError(t, err)
		got = append(got, "outer-end")
	})
	require.NoError(t, err)
	_, err = s.ScheduleAt(At(1), PriorityNormal, "sibling", func() { got = append(got, "sibling") })
	require.NoError(t, err)

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, []string{"outer-start", "outer-end", "sibling", "inner"}, got)
}

func TestScheduleInThePastFails(t *testing.T) {
	s := newTestScheduler(t)
	require.NoError(t, s.RunUntil(At(5)))

	_, err := s.ScheduleAt(At(4), PriorityNormal, "past", func() {})
	require.ErrorIs(t, err, ErrPastTime)

	_, err = s.ScheduleAfter(-time.Second, "negative", func() {})
	require.ErrorIs(t, err, ErrNegativeDelay)

	_, err = s.ScheduleAt(At(5), PriorityNormal, "now", func() {})
	require.NoError(t, err)

	err = s.RunUntil(At(1))
	require.ErrorIs(t, err, ErrPastTime)
}

func TestScheduleNilActionFails(t *testing.T) {
	s := newTestScheduler(t)
	_, err := s.ScheduleAfter(0, "nil", nil)
	require.ErrorIs(t, err, ErrNilAction)
}

func TestCancel(t *testing.T) {
	s := newTestScheduler(t)
	fired := false
	ev, err := s.ScheduleAfter(Day, "cancel-me", func() { fired = true })
	require.NoError(t, err)
	assert.Equal(t, 1, s.Pending())

	require.NoError(t, s.Cancel(ev))
	assert.False(t, ev.Pending())
	assert.Equal(t, 0, s.Pending())
	require.ErrorIs(t, s.Cancel(ev), ErrNotPending)

	require.NoError(t, s.Run(context.Background()))
	assert.False(t, fired)
	assert.Equal(t, uint64(0), s.Executed())
}

func TestCancelExecutedEventFails(t *testing.T) {
	s := newTestScheduler(t)
	ev, err := s.ScheduleAfter(0, "once", func() {})
	require.NoError(t, err)
	require.True(t, s.Advance())
	require.ErrorIs(t, s.Cancel(ev), ErrNotPending)
	require.ErrorIs(t, s.Cancel(nil), ErrNotPending)
}

func TestRunUntilStopsAtBoundary(t *testing.T) {
	s := newTestScheduler(t)
	var got []float64
	for _, d := range []float64{0.5, 1, 1.5, 2.5} {
		_, err := s.ScheduleAt(At(d), PriorityNormal, "tick", func() { got = append(got, d) })
		require.NoError(t, err)
	}

	require.NoError(t, s.RunUntil(At(1.5)))
	assert.Equal(t, []float64{0.5, 1, 1.5}, got)
	assert.Equal(t, At(1.5), s.Now())
	assert.Equal(t, 1, s.Pending())

	next, ok := s.NextTime()
	require.True(t, ok)
	assert.Equal(t, At(2.5), next)
}

func TestRunHonoursContext(t *testing.T) {
	s := newTestScheduler(t)
	ctx, cancel := context.WithCancel(context.Background())
	var count int
	var reschedule func()
	reschedule = func() {
		count++
		if count == 10 {
			cancel()
		}
		_, err := s.ScheduleAfter(time.Hour, "loop", reschedule)
		require.NoError(t, err)
	}
	_, err := s.ScheduleAfter(0, "loop", reschedule)
	require.NoError(t, err)

	err = s.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 10, count)
}

func TestDeterministicExecutionOrder(t *testing.T) {
	run := func() []string {
		s := newTestScheduler(t)
		var got []string
		var spawn func(name string, depth int) func()
		spawn = func(name string, depth int) func() {
			return func() {
				got = append(got, name)
				if depth == 0 {
					return
				}
				for i, d := range []time.Duration{0, time.Hour, 0} {
					child := name + string(rune('a'+i))
					_, err := s.ScheduleAfter(d, child, spawn(child, depth-1))
					require.NoError(t, err)
				}
			}
		}
		_, err := s.ScheduleAfter(0, "r", spawn("r", 3))
		require.NoError(t, err)
		_, err = s.ScheduleAfter(0, "s", spawn("s", 2))
		require.NoError(t, err)
		require.NoError(t, s.Run(context.Background()))
		return got
	}

	first := run()
	require.NotEmpty(t, first)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, run())
	}
}

func TestDateUsesAbsoluteStart(t *testing.T) {
	s := newTestScheduler(t)
	assert.Equal(t, time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC), s.Date(At(2.5)))
	assert.Equal(t, "Day 3, 12:00", At(2.5).String())
}

package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func TestRunDue_OrderAndTiming(t *testing.T) {
	s := New(zap.NewNop())
	var order []string
	s.ScheduleIn(t0, 2*time.Second, "late", func() error {
		order = append(order, "late")
		return nil
	})
	s.ScheduleIn(t0, time.Second, "early", func() error {
		order = append(order, "early")
		return nil
	})

	ran, overdue, err := s.RunDue(t0, 10)
	require.NoError(t, err)
	assert.Zero(t, ran)
	assert.Zero(t, overdue)
	assert.Equal(t, 2, s.Len())

	ran, _, err = s.RunDue(t0.Add(time.Second), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, ran)
	assert.Equal(t, []string{"early"}, order)

	ran, _, err = s.RunDue(t0.Add(3*time.Second), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, ran)
	assert.Equal(t, []string{"early", "late"}, order)
	assert.Zero(t, s.Len())
}

func TestRunDue_FIFOWithinSameDueTime(t *testing.T) {
	s := New(zap.NewNop())
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		s.ScheduleAt(t0, "same", func() error {
			order = append(order, i)
			return nil
		})
	}
	_, _, err := s.RunDue(t0, 10)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestRunDue_CapLeavesOverdue(t *testing.T) {
	s := New(zap.NewNop())
	ran := 0
	for i := 0; i < 5; i++ {
		s.ScheduleAt(t0, "work", func() error {
			ran++
			return nil
		})
	}

	n, overdue, err := s.RunDue(t0, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 3, overdue)
	assert.Equal(t, 2, ran)

	// The overdue backlog persists and runs next tick.
	n, overdue, err = s.RunDue(t0.Add(time.Millisecond), 10)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Zero(t, overdue)
	assert.Equal(t, 5, ran)
}

func TestRunDue_FailureDoesNotAbort(t *testing.T) {
	s := New(zap.NewNop())
	ran := false
	s.ScheduleAt(t0, "boom", func() error { return errors.New("boom") })
	s.ScheduleAt(t0, "after", func() error {
		ran = true
		return nil
	})

	n, _, err := s.RunDue(t0, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, ran)
}

func TestRunDue_CancellationPropagates(t *testing.T) {
	s := New(zap.NewNop())
	ran := false
	s.ScheduleAt(t0, "cancel", func() error { return ErrCancelled })
	s.ScheduleAt(t0, "after", func() error {
		ran = true
		return nil
	})

	n, overdue, err := s.RunDue(t0, 10)
	require.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, overdue)
	assert.False(t, ran)
}

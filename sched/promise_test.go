package sched

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGo_Value(t *testing.T) {
	s := newTestScheduler(t, WithWorkers(2))
	p, err := Go(s, PriorityHigh, func() (int, error) {
		Yield()
		return 42, nil
	})
	require.NoError(t, err)

	r := p.Wait()
	assert.True(t, r.Ok())
	assert.Equal(t, 42, r.Value)
	assert.True(t, p.Done())
	got, ok := p.Result()
	assert.True(t, ok)
	assert.Equal(t, r, got)

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, uint64(1), s.Stats().JobsCompleted)
}

func TestGo_Error(t *testing.T) {
	s := newTestScheduler(t, WithWorkers(1))
	errBad := errors.New("bad")
	p, err := Go(s, PriorityLow, func() (string, error) {
		return "", errBad
	})
	require.NoError(t, err)
	r := p.Wait()
	assert.False(t, r.Ok())
	assert.ErrorIs(t, r.Err, errBad)

	require.NoError(t, s.Run(context.Background()))
	st := s.Stats()
	assert.Equal(t, uint64(1), st.JobsFailed)
	assert.Zero(t, st.JobsCompleted)
}

func TestGo_WaitFromJob(t *testing.T) {
	s := newTestScheduler(t, WithWorkers(1))
	var sum atomic.Int64
	require.NoError(t, s.Schedule(func(any) {
		var ps []*Promise[int]
		for i := range 5 {
			p, err := Go(CurrentScheduler(), PriorityHigh, func() (int, error) { return i, nil })
			if err != nil {
				t.Error(err)
				return
			}
			ps = append(ps, p)
		}
		for _, p := range ps {
			sum.Add(int64(p.Wait().Value))
		}
	}, nil, PriorityLow))
	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, int64(0+1+2+3+4), sum.Load())
}

func TestGo_Errors(t *testing.T) {
	s := newTestScheduler(t, WithWorkers(1))
	_, err := Go[int](s, PriorityLow, nil)
	assert.ErrorIs(t, err, ErrNilFunc)

	p := new(Promise[int])
	_, ok := p.Result()
	assert.False(t, ok)
	assert.False(t, p.Done())

	require.NoError(t, s.Close())
	_, err = Go(s, PriorityLow, func() (int, error) { return 0, nil })
	assert.ErrorIs(t, err, ErrClosed)
}

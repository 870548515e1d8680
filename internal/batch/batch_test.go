package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_SevenTasksThreeGroupsPreservesOrder(t *testing.T) {
	var mu sync.Mutex
	var groups []int
	var finished []int

	tasks := make([]Task[int], 7)
	for i := range tasks {
		tasks[i] = func(context.Context) (int, error) {
			// earlier tasks finish later
			time.Sleep(time.Duration(7-i) * 5 * time.Millisecond)
			mu.Lock()
			finished = append(finished, i)
			mu.Unlock()
			return i * 10, nil
		}
	}

	results := Run(context.Background(), tasks, Options{
		Size:  3,
		Delay: 10 * time.Millisecond,
		OnGroup: func(group, size int) {
			groups = append(groups, size)
		},
	})

	assert.Equal(t, []int{3, 3, 1}, groups)
	require.Len(t, results, 7)
	for i, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, i*10, r.Value)
	}
	assert.NotEqual(t, []int{0, 1, 2, 3, 4, 5, 6}, finished, "completion order should differ from input order")
	assert.Equal(t, 3, Groups(7, 3))
}

func TestRun_GroupsDoNotOverlap(t *testing.T) {
	var running, peak atomic.Int32
	tasks := make([]Task[struct{}], 6)
	for i := range tasks {
		tasks[i] = func(context.Context) (struct{}, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
			return struct{}{}, nil
		}
	}

	Run(context.Background(), tasks, Options{Size: 2})
	assert.EqualValues(t, 2, peak.Load())
}

func TestRun_DelayOnlyBetweenGroups(t *testing.T) {
	tasks := make([]Task[int], 4)
	for i := range tasks {
		tasks[i] = func(context.Context) (int, error) { return i, nil }
	}

	start := time.Now()
	Run(context.Background(), tasks, Options{Size: 2, Delay: 50 * time.Millisecond})
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, 100*time.Millisecond, "no delay after the last group")
}

func TestRun_IsolatesFailures(t *testing.T) {
	boom := errors.New("boom")
	tasks := []Task[string]{
		func(context.Context) (string, error) { return "a", nil },
		func(context.Context) (string, error) { return "", boom },
		func(context.Context) (string, error) { return "c", nil },
	}

	results := Run(context.Background(), tasks, Options{Size: 2})
	assert.Equal(t, "a", results[0].Value)
	assert.ErrorIs(t, results[1].Err, boom)
	assert.Equal(t, "c", results[2].Value)
}

func TestRun_CancelledBetweenGroups(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var ran atomic.Int32
	tasks := make([]Task[int], 4)
	for i := range tasks {
		tasks[i] = func(context.Context) (int, error) {
			ran.Add(1)
			if i == 1 {
				cancel()
			}
			return i, nil
		}
	}

	results := Run(ctx, tasks, Options{Size: 2, Delay: time.Second})
	assert.EqualValues(t, 2, ran.Load())
	assert.ErrorIs(t, results[2].Err, context.Canceled)
	assert.ErrorIs(t, results[3].Err, context.Canceled)
}

func TestRun_Empty(t *testing.T) {
	assert.Empty(t, Run[int](context.Background(), nil, Options{Size: 3}))
	assert.Equal(t, 0, Groups(0, 3))
}

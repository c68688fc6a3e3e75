package parallel

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParallelizeCoversEveryItem(t *testing.T) {
	for _, items := range []int{0, 1, 7, 100} {
		t.Run(fmt.Sprint(items), func(t *testing.T) {
			seen := make([]int32, items)
			Parallelize(items, func(start, end int) {
				for i := start; i < end; i++ {
					atomic.AddInt32(&seen[i], 1)
				}
			})
			for i, n := range seen {
				assert.Equal(t, int32(1), n, "item %d", i)
			}
		})
	}
}

func TestForEachResultsIndependentOfWorkers(t *testing.T) {
	run := func(workers int) []int {
		out := make([]int, 50)
		err := ForEach(context.Background(), len(out), workers, func(i int) error {
			out[i] = i * i
			return nil
		})
		require.NoError(t, err)
		return out
	}
	assert.Equal(t, run(1), run(8))
}

func TestForEachReportsLowestFailingIndex(t *testing.T) {
	err := ForEach(context.Background(), 20, 4, func(i int) error {
		if i == 5 || i == 13 {
			return fmt.Errorf("item %d failed", i)
		}
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, "item 5 failed", err.Error())
}

func TestForEachRecoversPanics(t *testing.T) {
	err := ForEach(context.Background(), 3, 2, func(i int) error {
		if i == 1 {
			panic("boom")
		}
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestForEachCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls int32
	err := ForEach(ctx, 1000, 2, func(i int) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, atomic.LoadInt32(&calls), int32(1000))
}

func TestWorkers(t *testing.T) {
	assert.Equal(t, 3, Workers(8, 3))
	assert.Equal(t, 2, Workers(2, 10))
	assert.Equal(t, 1, Workers(4, 0))
	assert.GreaterOrEqual(t, Workers(0, 1000), 1)
}

package tasks

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_RunsEnqueuedTasks(t *testing.T) {
	q := NewQueue(2, 8)

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		ok := q.Enqueue("count", func() error {
			ran.Add(1)
			return nil
		})
		require.True(t, ok)
	}
	q.Close()
	assert.Equal(t, int32(5), ran.Load())
}

func TestQueue_CloseWaitsForInFlight(t *testing.T) {
	q := NewQueue(1, 1)

	done := make(chan struct{})
	require.True(t, q.Enqueue("slow", func() error {
		time.Sleep(30 * time.Millisecond)
		close(done)
		return nil
	}))
	q.Close()

	select {
	case <-done:
	default:
		t.Fatal("Close returned before the in-flight task finished")
	}
}

func TestQueue_FullBufferDrops(t *testing.T) {
	q := NewQueue(1, 1)
	defer q.Close()

	block := make(chan struct{})
	// occupy the single worker
	require.True(t, q.Enqueue("blocker", func() error {
		<-block
		return nil
	}))
	// give the worker time to pick it up, then fill the buffer
	time.Sleep(10 * time.Millisecond)
	require.True(t, q.Enqueue("buffered", func() error { return nil }))

	assert.False(t, q.Enqueue("dropped", func() error { return nil }))
	close(block)
}

func TestQueue_FailedTaskDoesNotStopWorker(t *testing.T) {
	q := NewQueue(1, 4)

	var ran atomic.Int32
	require.True(t, q.Enqueue("failing", func() error {
		return errors.New("boom")
	}))
	require.True(t, q.Enqueue("after", func() error {
		ran.Add(1)
		return nil
	}))
	q.Close()
	assert.Equal(t, int32(1), ran.Load())
}

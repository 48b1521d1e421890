package tcpsocket

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newTestMessage(b byte) *message {
	return messagePool.acquire([]byte{b}, true)
}

func TestQueueOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := newSendQueue(8)
	for i := 0; i < 8; i++ {
		require.NoError(t, q.enqueue(context.Background(), newTestMessage(byte(i))))
	}
	require.Equal(t, 8, q.len())

	for i := 0; i < 8; i++ {
		m, ok := q.dequeue(10 * time.Millisecond)
		require.True(t, ok)
		require.Equal(t, []byte{byte(i)}, m.buf.B)
	}

	_, ok := q.dequeue(10 * time.Millisecond)
	require.False(t, ok)
	require.False(t, q.isComplete())
}

func TestQueueEnqueueAfterComplete(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := newSendQueue(1)
	q.markComplete()
	q.markComplete()

	start := time.Now()
	require.ErrorIs(t, q.enqueue(context.Background(), newTestMessage(1)), ErrQueueComplete)
	require.Less(t, time.Since(start), 50*time.Millisecond)

	_, ok := q.dequeue(time.Second)
	require.False(t, ok)
}

func TestQueueFullBlocksUntilComplete(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := newSendQueue(2)
	require.NoError(t, q.enqueue(context.Background(), newTestMessage(0)))
	require.NoError(t, q.enqueue(context.Background(), newTestMessage(1)))

	errs := make(chan error, 1)
	go func() {
		errs <- q.enqueue(context.Background(), newTestMessage(2))
	}()

	select {
	case err := <-errs:
		t.Fatalf("enqueue on a full queue returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	left := q.drain()
	require.ErrorIs(t, <-errs, ErrQueueComplete)
	require.Len(t, left, 2)
	require.Equal(t, []byte{0}, left[0].buf.B)
	require.Equal(t, []byte{1}, left[1].buf.B)
}

func TestQueueFullUnblocksOnDequeue(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := newSendQueue(1)
	require.NoError(t, q.enqueue(context.Background(), newTestMessage(0)))

	errs := make(chan error, 1)
	go func() {
		errs <- q.enqueue(context.Background(), newTestMessage(1))
	}()

	m, ok := q.dequeue(time.Second)
	require.True(t, ok)
	require.Equal(t, []byte{0}, m.buf.B)
	require.NoError(t, <-errs)

	m, ok = q.dequeue(time.Second)
	require.True(t, ok)
	require.Equal(t, []byte{1}, m.buf.B)
}

func TestQueueEnqueueContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := newSendQueue(1)
	require.NoError(t, q.enqueue(context.Background(), newTestMessage(0)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.ErrorIs(t, q.enqueue(ctx, newTestMessage(1)), context.DeadlineExceeded)
	require.Equal(t, 1, q.len())
}

func TestQueueDrainCatchesRacingEnqueuers(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := newSendQueue(64)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 16; j++ {
				if err := q.enqueue(context.Background(), newTestMessage(byte(i))); err == nil {
					mu.Lock()
					accepted++
					mu.Unlock()
				}
			}
		}(i)
	}

	time.Sleep(time.Millisecond)
	left := q.drain()
	require.True(t, waitGroupWithTimeout(&wg, time.Second))

	// Anything accepted after drain returned would be stranded.
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, accepted, len(left))
	require.Equal(t, 0, q.len())
}

package tcpsocket

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMessageCompletesOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := messagePool.acquire([]byte("hello"), true)
	require.Equal(t, "hello", string(m.buf.B))

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		fired int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(sent bool) {
			defer wg.Done()
			if m.complete(sent) {
				mu.Lock()
				fired++
				mu.Unlock()
			}
		}(i%2 == 0)
	}
	wg.Wait()

	require.Equal(t, 1, fired)
	require.True(t, m.await(func() bool { return true }, nil))
}

func TestMessagePayloadIsCopied(t *testing.T) {
	payload := []byte("abc")
	m := messagePool.acquire(payload, true)
	payload[0] = 'x'

	require.Equal(t, "abc", string(m.buf.B))

	buf := m.takePayload()
	require.Nil(t, m.buf)
	require.Equal(t, "abc", string(buf.B))
}

func TestMessageAwaitGivesUpWhenNotAlive(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := messagePool.acquire([]byte{1}, true)

	start := time.Now()
	require.False(t, m.await(func() bool { return false }, nil))
	require.Less(t, time.Since(start), 2*pollInterval)

	// A late completion is still accepted by the holder.
	require.True(t, m.complete(false))
}

func TestMessageAwaitCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := messagePool.acquire([]byte{1}, true)

	cancel := make(chan struct{})
	close(cancel)
	require.False(t, m.await(func() bool { return true }, cancel))
}

func TestMessageAwaitSeesCompletionBeforeGivingUp(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := messagePool.acquire([]byte{1}, true)

	go func() {
		time.Sleep(10 * time.Millisecond)
		m.complete(true)
	}()

	require.True(t, m.await(func() bool { return true }, nil))
	require.True(t, m.sent)
}

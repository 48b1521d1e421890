package tcpsocket

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func fastPolicy(attempts int) RedialPolicy {
	return RedialPolicy{
		Attempts: attempts,
		Min:      10 * time.Millisecond,
		Max:      20 * time.Millisecond,
		Factor:   1.25,
	}
}

func TestRedialGivesUp(t *testing.T) {
	defer goleak.VerifyNone(t)

	var created []*Socket
	newSocket := func() *Socket {
		s := New(nil)
		created = append(created, s)
		return s
	}

	s, err := Redial(context.Background(), newSocket, "127.0.0.1", closedPort(t), fastPolicy(3))
	require.Nil(t, s)
	require.ErrorIs(t, err, ErrGaveUp)

	require.Len(t, created, 3)
	for _, s := range created {
		require.True(t, s.IsClosed())
	}
}

func TestRedialSucceedsOnceListening(t *testing.T) {
	defer goleak.VerifyNone(t)

	port := closedPort(t)
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))

	started := make(chan *testServer, 1)
	go func() {
		time.Sleep(30 * time.Millisecond)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			started <- nil
			return
		}
		started <- startServer(t, ln, echoHandler)
	}()

	s, err := Redial(context.Background(), func() *Socket { return New(nil) }, "127.0.0.1", port, fastPolicy(50))

	srv := <-started
	require.NotNil(t, srv)
	defer srv.stop()

	require.NoError(t, err)
	require.NotNil(t, s)
	require.True(t, s.IsConnected())
	require.NoError(t, s.Close())
}

func TestRedialStopsOnUsageError(t *testing.T) {
	defer goleak.VerifyNone(t)

	attempts := 0
	s, err := Redial(context.Background(), func() *Socket {
		attempts++
		return New(nil)
	}, "", 80, fastPolicy(5))

	require.Nil(t, s)
	require.ErrorIs(t, err, ErrInvalidHost)
	require.Equal(t, 1, attempts)
}

func TestRedialContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	policy := fastPolicy(5)
	policy.Min, policy.Max = time.Second, time.Second

	start := time.Now()
	s, err := Redial(ctx, func() *Socket { return New(nil) }, "127.0.0.1", closedPort(t), policy)
	require.Nil(t, s)
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), 500*time.Millisecond)
}

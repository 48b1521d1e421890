package tcpsocket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
)

// RedialPolicy bounds Redial.
type RedialPolicy struct {
	Attempts int
	Min      time.Duration
	Max      time.Duration
	Factor   float64
	Jitter   bool
}

func DefaultRedialPolicy() RedialPolicy {
	return RedialPolicy{
		Attempts: 8,
		Min:      500 * time.Millisecond,
		Max:      1 * time.Second,
		Factor:   1.25,
		Jitter:   true,
	}
}

// ErrGaveUp is returned by Redial once every attempt failed.
var ErrGaveUp = errors.New("tcpsocket: gave up connecting")

// Redial connects a fresh socket from newSocket to host:port, sleeping with
// backoff between failed attempts. A Socket cannot be reconnected once it is
// closed, hence the factory. Usage and security errors are not retried.
func Redial(ctx context.Context, newSocket func() *Socket, host string, port int, policy RedialPolicy) (*Socket, error) {
	if policy.Attempts <= 0 {
		policy.Attempts = 1
	}

	b := &backoff.Backoff{
		Factor: policy.Factor,
		Jitter: policy.Jitter,
		Min:    policy.Min,
		Max:    policy.Max,
	}

	for i := 0; i < policy.Attempts; i++ {
		s := newSocket()

		ok, err := s.Connect(ctx, host, port)
		if ok {
			return s, nil
		}
		_ = s.Close()

		if err != nil {
			return nil, err
		}
		if i == policy.Attempts-1 {
			break
		}

		duration := b.Duration()
		s.logger.Infof("trying to reconnect to %s:%d, sleeping for %s", host, port, duration)

		t := time.NewTimer(duration)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	return nil, fmt.Errorf("%w: %s:%d after %d attempt(s)", ErrGaveUp, host, port, policy.Attempts)
}

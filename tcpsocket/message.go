package tcpsocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/bytebufferpool"
)

// message is one queued outbound buffer and its completion gate.
type message struct {
	buf  *bytebufferpool.ByteBuffer // private copy of the caller's bytes
	time time.Time                  // when the send was requested
	wait bool                       // a caller is waiting on done
	sent bool                       // written before done fired; read only after done

	fired atomic.Bool
	done  chan struct{}
}

// complete records the outcome and fires the gate. Only the first call has
// any effect.
func (m *message) complete(sent bool) bool {
	if !m.fired.CompareAndSwap(false, true) {
		return false
	}
	m.sent = sent
	close(m.done)
	return true
}

// await blocks until the gate fires, re-checking alive every poll interval.
// It reports whether the gate fired; a false result means the waiter gave up
// and no longer owns m.
func (m *message) await(alive func() bool, cancel <-chan struct{}) bool {
	for {
		t := timerPool.acquire(pollInterval)
		select {
		case <-m.done:
			timerPool.release(t)
			return true
		case <-cancel:
			timerPool.release(t)
			return false
		case <-t.C:
			timerPool.release(t)
			if !alive() {
				select {
				case <-m.done:
					return true
				default:
					return false
				}
			}
		}
	}
}

type MessagePool struct {
	sp sync.Pool
	m  *PoolMetrics
}

func (p *MessagePool) acquire(payload []byte, wait bool) *message {
	v := p.sp.Get()
	if v == nil {
		v = &message{}
		p.m.acquired(false)
	} else {
		p.m.acquired(true)
	}

	buf := bytebufferpool.Get()
	_, _ = buf.Write(payload)

	m := v.(*message)
	m.buf = buf
	m.time = time.Now()
	m.wait = wait
	m.sent = false
	m.fired.Store(false)
	m.done = make(chan struct{})
	return m
}

func (p *MessagePool) release(m *message) {
	m.buf = nil
	m.done = nil
	p.sp.Put(m)
	p.m.released()
}

// takePayload hands the payload buffer over to the caller, who must return it
// with bytebufferpool.Put. It must be called before the gate fires.
func (m *message) takePayload() *bytebufferpool.ByteBuffer {
	buf := m.buf
	m.buf = nil
	return buf
}

package tcpsocket

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/valyala/bytebufferpool"
)

// Send queues buf and blocks until it has been written or abandoned. It
// reports whether the buffer was written.
func (s *Socket) Send(buf []byte) (bool, error) {
	return s.SendContext(context.Background(), buf)
}

// SendContext is Send with ctx bounding both the enqueue and the wait.
func (s *Socket) SendContext(ctx context.Context, buf []byte) (bool, error) {
	if len(buf) == 0 {
		return false, ErrEmptyBuffer
	}
	if !s.IsConnected() {
		s.logger.Debugf("[%s] failed to send a message, the socket is not connected", s.id)
		return false, nil
	}
	if s.queue.isComplete() {
		s.logger.Debugf("[%s] failed to add a message to the queue, the queue was completed", s.id)
		return false, nil
	}

	m := messagePool.acquire(buf, true)

	if err := s.queue.enqueue(ctx, m); err != nil {
		bytebufferpool.Put(m.takePayload())
		messagePool.release(m)
		if errors.Is(err, ErrQueueComplete) {
			return false, nil
		}
		return false, err
	}

	if !m.await(s.IsConnected, ctx.Done()) {
		// The sender or the drain still holds m and will fire its gate.
		if err := ctx.Err(); err != nil {
			return false, err
		}
		s.logger.Debugf("[%s] the socket disconnected while waiting for completion", s.id)
		return false, nil
	}

	sent := m.sent
	messagePool.release(m)
	return sent, nil
}

// SendNoWait queues buf and returns without waiting for the write.
func (s *Socket) SendNoWait(buf []byte) error {
	if len(buf) == 0 {
		return ErrEmptyBuffer
	}
	if !s.IsConnected() {
		return ErrClosed
	}

	m := messagePool.acquire(buf, false)

	if err := s.queue.enqueue(context.Background(), m); err != nil {
		bytebufferpool.Put(m.takePayload())
		messagePool.release(m)
		return err
	}
	return nil
}

// sendLoop is the only consumer of the queue and the only writer to conn.
func (s *Socket) sendLoop(conn net.Conn, done chan struct{}) {
	defer close(done)

	s.logger.Debugf("[%s] sender started", s.id)

	for s.IsConnected() {
		m, ok := s.queue.dequeue(pollInterval)
		if !ok {
			if s.queue.isComplete() {
				break
			}
			continue
		}

		if !s.IsConnected() {
			s.finish(m, false)
			break
		}

		if err := s.write(conn, m.buf.B); err != nil {
			if s.IsConnected() {
				s.logger.Warnf("[%s] sender: %v", s.id, err)
			}
			s.finish(m, false)
			break
		}

		s.finish(m, true)
	}

	s.logger.Debugf("[%s] sender is terminating", s.id)

	left := s.queue.drain()
	if len(left) > 0 {
		s.logger.Debugf("[%s] finalizing %d message(s) left in the queue", s.id, len(left))
	}
	for _, m := range left {
		s.finish(m, false)
	}

	s.Disconnect()
}

func (s *Socket) write(conn net.Conn, b []byte) error {
	if s.cfg.SendTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(s.cfg.SendTimeout)); err != nil {
			return err
		}
	}

	n, err := conn.Write(b)
	if err != nil {
		return err
	}
	if n != len(b) {
		return io.ErrShortWrite
	}
	return nil
}

// finish fires m's gate and, for a written message, raises the buffer sent
// event. The payload is recycled once the listeners are done with it.
func (s *Socket) finish(m *message, sent bool) {
	buf := m.takePayload()
	wait := m.wait
	at := time.Now()

	if sent {
		s.stats.sent(buf.Len())
	} else {
		s.stats.failed()
	}

	m.complete(sent)
	if !wait {
		messagePool.release(m)
	}

	if sent {
		s.raiseBufferSent(BufferSentEvent{
			SocketID:     s.id,
			Buffer:       buf.B,
			BytesWritten: buf.Len(),
			Time:         at,
		})
	}

	bytebufferpool.Put(buf)
}

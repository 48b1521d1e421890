package tcpsocket

import (
	"net"
	"time"
)

// Disconnect starts shutting the socket down and returns immediately. Calls
// after the first are no-ops. It is safe to call from a listener.
func (s *Socket) Disconnect() {
	prev, ok := s.state.beginDisconnect()
	if !ok {
		return
	}
	go s.teardown(prev)
}

// Close shuts the socket down and waits until it is closed. Calling Close
// again is a no-op. Listeners should call Disconnect instead: a Close from
// inside a pipeline's callback holds that pipeline for the grace period.
func (s *Socket) Close() error {
	s.Disconnect()
	if s.IsClosed() {
		return nil
	}
	<-s.closed
	return nil
}

// Done is closed once the socket reached StateClosed.
func (s *Socket) Done() <-chan struct{} { return s.closed }

// teardown runs once per socket, after the state flag moved to StateDisconnecting.
func (s *Socket) teardown(prev State) {
	s.logger.Infof("[%s] disconnecting from %s (was %s)", s.id, s.remoteString(), prev)

	s.mu.Lock()
	if s.cancelConnect != nil {
		s.cancelConnect()
		s.cancelConnect = nil
	}
	conn, raw := s.conn, s.raw
	recvDone, sendDone := s.recvDone, s.sendDone
	remote := s.remote
	s.mu.Unlock()

	if conn != nil {
		s.disconnectGracefully(conn, raw)
	}

	s.queue.markComplete()

	if !s.awaitPipelines(recvDone, sendDone) {
		s.logger.Warnf("[%s] timeout waiting for the pipelines to finish, forcing close", s.id)
		forceClose(raw)
	}

	if conn != nil {
		_ = conn.Close()
	}
	if raw != nil {
		_ = raw.Close()
	}

	s.state.store(StateClosed)
	s.logger.Infof("[%s] closed", s.id)

	if conn != nil {
		s.raiseDisconnected(DisconnectedEvent{SocketID: s.id, RemoteAddr: remote, Time: time.Now()})
	}

	s.closeOnce.Do(func() { close(s.closed) })
}

// disconnectGracefully signals the end of the stream to the peer and unblocks
// a pending read. Errors are swallowed; the connection may already be gone.
func (s *Socket) disconnectGracefully(conn, raw net.Conn) {
	type closeWriter interface{ CloseWrite() error }

	// A write blocked on a full send buffer must not hold up the close_notify.
	_ = raw.SetWriteDeadline(time.Now().Add(s.cfg.GracePeriod / 2))

	if conn != raw {
		if cw, ok := conn.(closeWriter); ok {
			if err := cw.CloseWrite(); err != nil {
				s.logger.Debugf("[%s] tls close notify: %v", s.id, err)
			}
		}
	}
	if cw, ok := raw.(closeWriter); ok {
		if err := cw.CloseWrite(); err != nil {
			s.logger.Debugf("[%s] close write: %v", s.id, err)
		}
	}
	_ = raw.SetReadDeadline(time.Now())
}

// awaitPipelines waits up to the grace period for both loops to exit.
func (s *Socket) awaitPipelines(recvDone, sendDone chan struct{}) bool {
	deadline := timerPool.acquire(s.cfg.GracePeriod)
	defer timerPool.release(deadline)

	for _, done := range []chan struct{}{recvDone, sendDone} {
		if done == nil {
			continue
		}
		select {
		case <-done:
		case <-deadline.C:
			return false
		}
	}
	return true
}

// forceClose resets the connection so that any blocked read or write fails
// immediately.
func forceClose(raw net.Conn) {
	if raw == nil {
		return
	}
	if tcp, ok := raw.(*net.TCPConn); ok {
		_ = tcp.SetLinger(0)
	}
	_ = raw.SetDeadline(time.Now())
	_ = raw.Close()
}

func (s *Socket) remoteString() string {
	if addr := s.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "(none)"
}

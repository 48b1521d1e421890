package tcpsocket

import (
	"errors"
	"io"
	"net"
	"time"
)

// receiveLoop is the only reader of conn.
func (s *Socket) receiveLoop(conn net.Conn, done chan struct{}) {
	defer close(done)

	s.logger.Debugf("[%s] receiver started", s.id)

	buf := make([]byte, s.cfg.ReceiveBufferSize)

	for s.IsConnected() {
		if s.cfg.ReceiveTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(s.cfg.ReceiveTimeout)); err != nil {
				s.logger.Debugf("[%s] receiver: setting read deadline: %v", s.id, err)
				break
			}
		}

		n, err := conn.Read(buf)
		if n > 0 {
			s.stats.received(n)
			s.raiseBufferReceived(BufferReceivedEvent{
				SocketID:  s.id,
				Buffer:    buf[:n],
				BytesRead: n,
				Time:      time.Now(),
			})
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Infof("[%s] the remote endpoint closed the connection", s.id)
			} else if s.IsConnected() {
				s.logger.Warnf("[%s] receiver: %v", s.id, err)
			}
			break
		}

		if n == 0 {
			s.logger.Infof("[%s] zero-byte read, the remote endpoint disconnected", s.id)
			break
		}
	}

	s.logger.Debugf("[%s] receiver is terminating", s.id)
	s.Disconnect()
}

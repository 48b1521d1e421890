package tcpsocket

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

type ConnectedEvent struct {
	SocketID   uuid.UUID
	RemoteAddr net.Addr
	Time       time.Time
}

type DisconnectedEvent struct {
	SocketID   uuid.UUID
	RemoteAddr net.Addr
	Time       time.Time
}

// BufferReceivedEvent carries the receive pipeline's read buffer. Buffer is
// only valid until the listener returns; use Clone to keep it.
type BufferReceivedEvent struct {
	SocketID  uuid.UUID
	Buffer    []byte
	BytesRead int
	Time      time.Time
}

func (e BufferReceivedEvent) Clone() []byte {
	return append([]byte(nil), e.Buffer[:e.BytesRead]...)
}

// BufferSentEvent carries the payload that was written. Buffer is only valid
// until the listener returns.
type BufferSentEvent struct {
	SocketID     uuid.UUID
	Buffer       []byte
	BytesWritten int
	Time         time.Time
}

type (
	ConnectedFunc      func(ConnectedEvent) error
	DisconnectedFunc   func(DisconnectedEvent) error
	BufferReceivedFunc func(BufferReceivedEvent) error
	BufferSentFunc     func(BufferSentEvent) error
)

// listeners is a registry of typed callbacks. Snapshots are taken under the
// read lock so registering from inside a callback does not deadlock.
type listeners struct {
	mu             sync.RWMutex
	connected      []ConnectedFunc
	disconnected   []DisconnectedFunc
	bufferReceived []BufferReceivedFunc
	bufferSent     []BufferSentFunc
}

func (s *Socket) OnConnected(fn ConnectedFunc) {
	s.listeners.mu.Lock()
	defer s.listeners.mu.Unlock()
	s.listeners.connected = append(s.listeners.connected, fn)
}

func (s *Socket) OnDisconnected(fn DisconnectedFunc) {
	s.listeners.mu.Lock()
	defer s.listeners.mu.Unlock()
	s.listeners.disconnected = append(s.listeners.disconnected, fn)
}

func (s *Socket) OnBufferReceived(fn BufferReceivedFunc) {
	s.listeners.mu.Lock()
	defer s.listeners.mu.Unlock()
	s.listeners.bufferReceived = append(s.listeners.bufferReceived, fn)
}

func (s *Socket) OnBufferSent(fn BufferSentFunc) {
	s.listeners.mu.Lock()
	defer s.listeners.mu.Unlock()
	s.listeners.bufferSent = append(s.listeners.bufferSent, fn)
}

func (s *Socket) raiseConnected(ev ConnectedEvent) {
	s.listeners.mu.RLock()
	fns := s.listeners.connected
	s.listeners.mu.RUnlock()

	for _, fn := range fns {
		s.invoke("connected", func() error { return fn(ev) })
	}
}

func (s *Socket) raiseDisconnected(ev DisconnectedEvent) {
	s.listeners.mu.RLock()
	fns := s.listeners.disconnected
	s.listeners.mu.RUnlock()

	for _, fn := range fns {
		s.invoke("disconnected", func() error { return fn(ev) })
	}
}

func (s *Socket) raiseBufferReceived(ev BufferReceivedEvent) {
	s.listeners.mu.RLock()
	fns := s.listeners.bufferReceived
	s.listeners.mu.RUnlock()

	for _, fn := range fns {
		s.invoke("buffer received", func() error { return fn(ev) })
	}
}

func (s *Socket) raiseBufferSent(ev BufferSentEvent) {
	s.listeners.mu.RLock()
	fns := s.listeners.bufferSent
	s.listeners.mu.RUnlock()

	for _, fn := range fns {
		s.invoke("buffer sent", func() error { return fn(ev) })
	}
}

// invoke runs one listener; its error or panic is logged and dropped.
func (s *Socket) invoke(kind string, call func() error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("[%s] %s listener panicked: %v", s.id, kind, fmt.Sprint(r))
		}
	}()

	if err := call(); err != nil {
		s.logger.Warnf("[%s] %s listener failed: %v", s.id, kind, err)
	}
}

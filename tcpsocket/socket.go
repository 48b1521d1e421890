// Package tcpsocket implements a managed TCP client connection.
//
// A Socket owns one outbound connection. Writes are queued and performed in
// order by a dedicated sender goroutine; reads are drained continuously by a
// dedicated receiver goroutine. Lifecycle and data events are delivered to
// registered listeners.
//
//	s := tcpsocket.New(nil)
//	s.OnBufferReceived(func(ev tcpsocket.BufferReceivedEvent) error {
//	    fmt.Printf("got %d bytes\n", ev.BytesRead)
//	    return nil
//	})
//	ok, err := s.Connect(ctx, "localhost", 6970)
//	...
//	sent, err := s.Send([]byte("hello"))
//	...
//	s.Close()
package tcpsocket

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Socket struct {
	cfg    *Config
	logger Logger
	id     uuid.UUID

	state stateFlag
	queue *sendQueue

	listeners listeners
	stats     stats

	mu            sync.Mutex
	conn          net.Conn // raw or TLS stream; set once connected
	raw           net.Conn // the underlying TCP connection
	remote        net.Addr
	cancelConnect context.CancelFunc
	recvDone      chan struct{}
	sendDone      chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

// New creates an idle socket. A nil config uses DefaultConfig.
func New(cfg *Config) *Socket {
	cfg = cfg.withDefaults()

	return &Socket{
		cfg:    cfg,
		logger: cfg.Logger,
		id:     uuid.New(),
		queue:  newSendQueue(cfg.SendQueueSize),
		closed: make(chan struct{}),
	}
}

func (s *Socket) ID() uuid.UUID { return s.id }

func (s *Socket) State() State { return s.state.load() }

// IsConnected reports whether the socket is usable for I/O. It is false from
// the moment shutdown begins, whatever the underlying connection reports.
func (s *Socket) IsConnected() bool { return s.state.load() == StateConnected }

func (s *Socket) IsDisconnecting() bool { return s.state.load() == StateDisconnecting }

// IsClosed reports whether the socket reached its terminal state.
func (s *Socket) IsClosed() bool { return s.state.load() == StateClosed }

// RemoteAddr returns the connected endpoint, or nil before a connection was made.
func (s *Socket) RemoteAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote
}

// ConnectAddr is Connect for an address of the form "host:port".
func (s *Socket) ConnectAddr(ctx context.Context, addr string) (bool, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidHost, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return false, fmt.Errorf("%w: %q", ErrInvalidPort, portStr)
	}
	return s.Connect(ctx, host, port)
}

// Connect dials host:port and, if configured, negotiates TLS. It returns true
// only when the connection is ready for I/O. Unreachable endpoints and
// timeouts yield (false, nil); invalid arguments, a second attempt, and
// security failures yield an error.
func (s *Socket) Connect(ctx context.Context, host string, port int) (bool, error) {
	if host == "" {
		s.logger.Errorf("[%s] the hostname is empty", s.id)
		return false, ErrInvalidHost
	}
	if port <= 0 || port > 65535 {
		s.logger.Errorf("[%s] the port number is out of range [port: %d]", s.id, port)
		return false, fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	// The cancel func is published together with the state change so a
	// concurrent teardown always finds it.
	s.mu.Lock()
	if !s.state.cas(StateIdle, StateConnecting) {
		s.mu.Unlock()
		state := s.state.load()
		s.logger.Warnf("[%s] connect refused in state %s", s.id, state)
		if state == StateConnecting || state == StateConnected {
			return false, ErrAlreadyConnected
		}
		return false, ErrClosed
	}
	s.cancelConnect = cancel
	s.mu.Unlock()

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	s.logger.Infof("[%s] attempting to connect to %s", s.id, addr)
	start := time.Now()

	raw, conn, err := s.dial(ctx, host, addr)
	elapsed := time.Since(start)
	if err != nil {
		s.logger.Warnf("[%s] the connection attempt took %.2f second(s) to complete but failed: %v",
			s.id, elapsed.Seconds(), err)
		s.failConnect()
		if errors.Is(err, ErrSecurity) {
			return false, err
		}
		return false, nil
	}

	s.mu.Lock()
	s.cancelConnect = nil
	if !s.state.cas(StateConnecting, StateConnected) {
		// Shut down while dialing; the teardown owns the state from here.
		s.mu.Unlock()
		_ = raw.Close()
		s.logger.Warnf("[%s] connection to %s abandoned, socket was closed while connecting", s.id, addr)
		return false, nil
	}
	s.raw = raw
	s.conn = conn
	s.remote = raw.RemoteAddr()
	s.recvDone = make(chan struct{})
	s.sendDone = make(chan struct{})
	go s.receiveLoop(conn, s.recvDone)
	go s.sendLoop(conn, s.sendDone)
	s.mu.Unlock()

	s.logger.Infof("[%s] the connection attempt took %.2f second(s) to complete", s.id, elapsed.Seconds())

	s.raiseConnected(ConnectedEvent{SocketID: s.id, RemoteAddr: s.remote, Time: time.Now()})

	return true, nil
}

func (s *Socket) dial(ctx context.Context, host, addr string) (raw net.Conn, conn net.Conn, err error) {
	dialer := &net.Dialer{KeepAlive: s.cfg.KeepAlive}

	raw, err = dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, err
	}

	if tcp, ok := raw.(*net.TCPConn); ok {
		if err := s.applyOptions(tcp); err != nil {
			_ = raw.Close()
			return nil, nil, err
		}
	}

	if s.cfg.TLS == nil {
		return raw, raw, nil
	}

	tlsConn := tls.Client(raw, s.cfg.TLS.clientConfig(host))
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		_ = raw.Close()
		return nil, nil, fmt.Errorf("%w: handshake with %s: %w", ErrSecurity, addr, err)
	}

	cs := tlsConn.ConnectionState()
	if !cs.HandshakeComplete || len(cs.PeerCertificates) == 0 {
		_ = raw.Close()
		return nil, nil, fmt.Errorf("%w: %s is not authenticated", ErrSecurity, addr)
	}

	s.logger.Debugf("[%s] negotiated %s with %s", s.id, tls.VersionName(cs.Version), addr)

	return raw, tlsConn, nil
}

func (s *Socket) applyOptions(c *net.TCPConn) error {
	if err := c.SetNoDelay(s.cfg.NoDelay); err != nil {
		return fmt.Errorf("setting no-delay: %w", err)
	}
	if err := c.SetReadBuffer(s.cfg.ReceiveBufferSize); err != nil {
		return fmt.Errorf("setting receive buffer size: %w", err)
	}
	if err := c.SetWriteBuffer(s.cfg.SendBufferSize); err != nil {
		return fmt.Errorf("setting send buffer size: %w", err)
	}
	return nil
}

// failConnect ends a connect attempt that never produced a connection.
func (s *Socket) failConnect() {
	s.mu.Lock()
	s.cancelConnect = nil
	s.mu.Unlock()

	if s.state.cas(StateConnecting, StateClosed) {
		s.queue.markComplete()
		s.closeOnce.Do(func() { close(s.closed) })
	}
}

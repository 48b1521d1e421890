package tcpsocket

import "errors"

var (
	// ErrInvalidHost is returned by Connect when the host is empty.
	ErrInvalidHost = errors.New("tcpsocket: host must not be empty")

	// ErrInvalidPort is returned by Connect when the port is outside (0, 65535].
	ErrInvalidPort = errors.New("tcpsocket: port must be between 1 and 65535")

	// ErrEmptyBuffer is returned by the send operations for a nil or empty buffer.
	ErrEmptyBuffer = errors.New("tcpsocket: buffer must not be empty")

	// ErrAlreadyConnected is returned by Connect while a connection attempt is in
	// flight or a connection is established.
	ErrAlreadyConnected = errors.New("tcpsocket: already connecting or connected")

	// ErrClosed is returned by Connect and SendNoWait once the socket has been
	// shut down.
	ErrClosed = errors.New("tcpsocket: socket is closed")

	// ErrQueueComplete is returned when a message is offered to a completed send queue.
	ErrQueueComplete = errors.New("tcpsocket: send queue is complete")

	// ErrSecurity wraps every TLS handshake or authentication failure.
	ErrSecurity = errors.New("tcpsocket: security negotiation failed")
)

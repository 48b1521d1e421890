package tcpsocket

import (
	"crypto/tls"
	"crypto/x509"
	"time"
)

const (
	DefaultSendBufferSize    = 4096
	DefaultReceiveBufferSize = 8192
	DefaultConnectTimeout    = 10 * time.Second
	DefaultGracePeriod       = 2 * time.Second
	DefaultSendQueueSize     = 100
	DefaultKeepAlive         = 15 * time.Second
)

// pollInterval bounds every wait on the send path so a dead connection is
// noticed within one interval.
const pollInterval = 250 * time.Millisecond

// Config contains the options a Socket is constructed with.
type Config struct {
	// SendBufferSize is the kernel send buffer size in bytes. Default is 4096.
	SendBufferSize int
	// ReceiveBufferSize sizes both the kernel receive buffer and the receive
	// pipeline's read buffer. Default is 8192.
	ReceiveBufferSize int
	// ReceiveTimeout bounds every read. Zero means reads never time out.
	ReceiveTimeout time.Duration
	// SendTimeout bounds every write. Zero means writes never time out.
	SendTimeout time.Duration
	// NoDelay disables Nagle's algorithm.
	NoDelay bool
	// KeepAlive is the TCP keep-alive period. Negative disables keep-alives.
	KeepAlive time.Duration
	// ConnectTimeout bounds dialing plus the TLS handshake. Default is 10s.
	ConnectTimeout time.Duration
	// GracePeriod is how long shutdown waits for the pipelines before forcing
	// the connection closed. Default is 2s.
	GracePeriod time.Duration
	// SendQueueSize is the capacity of the send queue. Default is 100.
	SendQueueSize int

	// TLS enables an encrypted stream when non-nil.
	TLS *TLSConfig

	Logger Logger
}

// TLSConfig describes how the stream is secured after the TCP connect.
type TLSConfig struct {
	// ServerName is the name the server certificate is verified against.
	// Defaults to the host passed to Connect.
	ServerName string
	RootCAs    *x509.CertPool
	// Certificates are offered when the server asks for a client certificate.
	Certificates []tls.Certificate
	// GetClientCertificate picks the client certificate from the server's
	// request. It takes precedence over Certificates.
	GetClientCertificate func(*tls.CertificateRequestInfo) (*tls.Certificate, error)
	// InsecureSkipVerify disables chain and name verification. VerifyConnection
	// still runs.
	InsecureSkipVerify bool
	// VerifyConnection is an additional validation callback run after the
	// standard checks. A non-nil error aborts the handshake.
	VerifyConnection func(tls.ConnectionState) error
	// MinVersion and MaxVersion restrict the negotiated protocol versions.
	// They default to TLS 1.2 and TLS 1.3.
	MinVersion uint16
	MaxVersion uint16
}

// DefaultConfig returns the default socket configuration.
func DefaultConfig() *Config {
	return &Config{
		SendBufferSize:    DefaultSendBufferSize,
		ReceiveBufferSize: DefaultReceiveBufferSize,
		KeepAlive:         DefaultKeepAlive,
		ConnectTimeout:    DefaultConnectTimeout,
		GracePeriod:       DefaultGracePeriod,
		SendQueueSize:     DefaultSendQueueSize,
		Logger:            NoopLogger{},
	}
}

// withDefaults returns a copy of c with every unset field defaulted.
func (c *Config) withDefaults() *Config {
	if c == nil {
		return DefaultConfig()
	}
	cfg := *c
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = DefaultSendBufferSize
	}
	if cfg.ReceiveBufferSize <= 0 {
		cfg.ReceiveBufferSize = DefaultReceiveBufferSize
	}
	if cfg.ReceiveTimeout < 0 {
		cfg.ReceiveTimeout = 0
	}
	if cfg.SendTimeout < 0 {
		cfg.SendTimeout = 0
	}
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = DefaultSendQueueSize
	}
	if cfg.Logger == nil {
		cfg.Logger = NoopLogger{}
	}
	return &cfg
}

func (c *TLSConfig) clientConfig(host string) *tls.Config {
	serverName := c.ServerName
	if serverName == "" {
		serverName = host
	}
	minVersion, maxVersion := c.MinVersion, c.MaxVersion
	if minVersion == 0 {
		minVersion = tls.VersionTLS12
	}
	if maxVersion == 0 {
		maxVersion = tls.VersionTLS13
	}
	return &tls.Config{
		ServerName:           serverName,
		RootCAs:              c.RootCAs,
		Certificates:         c.Certificates,
		GetClientCertificate: c.GetClientCertificate,
		InsecureSkipVerify:   c.InsecureSkipVerify, //nolint:gosec // caller's choice, VerifyConnection still applies
		VerifyConnection:     c.VerifyConnection,
		MinVersion:           minVersion,
		MaxVersion:           maxVersion,
	}
}

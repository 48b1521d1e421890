// Package config loads socket and driver settings from TOML or YAML files.
package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/TheSmallBoat/tcpsocket/tcpsocket"
)

// File is the on-disk configuration.
type File struct {
	Socket SocketConfig `toml:"socket" yaml:"socket"`
	TLS    TLSConfig    `toml:"tls" yaml:"tls"`
	Driver DriverConfig `toml:"driver" yaml:"driver"`
	Redial RedialConfig `toml:"redial" yaml:"redial"`
}

// SocketConfig holds the tcpsocket.Config options.
type SocketConfig struct {
	SendBufferSize    int      `toml:"send_buffer_size" yaml:"send_buffer_size"`
	ReceiveBufferSize int      `toml:"receive_buffer_size" yaml:"receive_buffer_size"`
	ReceiveTimeout    Duration `toml:"receive_timeout" yaml:"receive_timeout"`
	SendTimeout       Duration `toml:"send_timeout" yaml:"send_timeout"`
	NoDelay           bool     `toml:"no_delay" yaml:"no_delay"`
	KeepAlive         Duration `toml:"keep_alive" yaml:"keep_alive"`
	ConnectTimeout    Duration `toml:"connect_timeout" yaml:"connect_timeout"`
	GracePeriod       Duration `toml:"grace_period" yaml:"grace_period"`
	SendQueueSize     int      `toml:"send_queue_size" yaml:"send_queue_size"`
}

// TLSConfig enables TLS when Enabled is set. Paths may contain environment
// variables.
type TLSConfig struct {
	Enabled            bool   `toml:"enabled" yaml:"enabled"`
	ServerName         string `toml:"server_name" yaml:"server_name"`
	CAFile             string `toml:"ca_file" yaml:"ca_file"`
	CertFile           string `toml:"cert_file" yaml:"cert_file"`
	KeyFile            string `toml:"key_file" yaml:"key_file"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}

// DriverConfig drives the command line client.
type DriverConfig struct {
	Host        string   `toml:"host" yaml:"host"`
	Port        int      `toml:"port" yaml:"port"`
	Interval    Duration `toml:"interval" yaml:"interval"`
	PayloadSize int      `toml:"payload_size" yaml:"payload_size"`
	Workers     int      `toml:"workers" yaml:"workers"`
}

// RedialConfig holds the reconnect backoff settings.
type RedialConfig struct {
	Attempts int      `toml:"attempts" yaml:"attempts"`
	Min      Duration `toml:"min" yaml:"min"`
	Max      Duration `toml:"max" yaml:"max"`
	Factor   float64  `toml:"factor" yaml:"factor"`
	NoJitter bool     `toml:"no_jitter" yaml:"no_jitter"`
}

// Duration wraps time.Duration for text parsing
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText formats the duration as a string
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.UnmarshalText([]byte(value.Value))
}

func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

// Default returns the configuration used when no file is given.
func Default() *File {
	var f File
	f.applyDefaults()
	return &f
}

// Load reads a configuration file. The format is picked by extension:
// .yaml and .yml are YAML, anything else is TOML.
func Load(path string) (*File, error) {
	path = os.ExpandEnv(path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var f File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &f); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	default:
		if err := toml.Unmarshal(content, &f); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	f.applyDefaults()

	f.TLS.CAFile = os.ExpandEnv(f.TLS.CAFile)
	f.TLS.CertFile = os.ExpandEnv(f.TLS.CertFile)
	f.TLS.KeyFile = os.ExpandEnv(f.TLS.KeyFile)

	return &f, nil
}

// applyDefaults sets default values for missing configuration
func (f *File) applyDefaults() {
	// Socket
	if f.Socket.SendBufferSize == 0 {
		f.Socket.SendBufferSize = tcpsocket.DefaultSendBufferSize
	}
	if f.Socket.ReceiveBufferSize == 0 {
		f.Socket.ReceiveBufferSize = tcpsocket.DefaultReceiveBufferSize
	}
	if f.Socket.KeepAlive.Duration == 0 {
		f.Socket.KeepAlive.Duration = tcpsocket.DefaultKeepAlive
	}
	if f.Socket.ConnectTimeout.Duration == 0 {
		f.Socket.ConnectTimeout.Duration = tcpsocket.DefaultConnectTimeout
	}
	if f.Socket.GracePeriod.Duration == 0 {
		f.Socket.GracePeriod.Duration = tcpsocket.DefaultGracePeriod
	}
	if f.Socket.SendQueueSize == 0 {
		f.Socket.SendQueueSize = tcpsocket.DefaultSendQueueSize
	}

	// Driver
	if f.Driver.Host == "" {
		f.Driver.Host = "localhost"
	}
	if f.Driver.Port == 0 {
		f.Driver.Port = 6970
	}
	if f.Driver.Interval.Duration == 0 {
		f.Driver.Interval.Duration = 250 * time.Millisecond
	}
	if f.Driver.PayloadSize == 0 {
		f.Driver.PayloadSize = 128
	}
	if f.Driver.Workers == 0 {
		f.Driver.Workers = 1
	}

	// Redial
	def := tcpsocket.DefaultRedialPolicy()
	if f.Redial.Attempts == 0 {
		f.Redial.Attempts = def.Attempts
	}
	if f.Redial.Min.Duration == 0 {
		f.Redial.Min.Duration = def.Min
	}
	if f.Redial.Max.Duration == 0 {
		f.Redial.Max.Duration = def.Max
	}
	if f.Redial.Factor == 0 {
		f.Redial.Factor = def.Factor
	}
}

// SocketConfig converts the file into a socket configuration, loading any
// certificates it names.
func (f *File) SocketConfig(logger tcpsocket.Logger) (*tcpsocket.Config, error) {
	cfg := &tcpsocket.Config{
		SendBufferSize:    f.Socket.SendBufferSize,
		ReceiveBufferSize: f.Socket.ReceiveBufferSize,
		ReceiveTimeout:    f.Socket.ReceiveTimeout.Duration,
		SendTimeout:       f.Socket.SendTimeout.Duration,
		NoDelay:           f.Socket.NoDelay,
		KeepAlive:         f.Socket.KeepAlive.Duration,
		ConnectTimeout:    f.Socket.ConnectTimeout.Duration,
		GracePeriod:       f.Socket.GracePeriod.Duration,
		SendQueueSize:     f.Socket.SendQueueSize,
		Logger:            logger,
	}

	if !f.TLS.Enabled {
		return cfg, nil
	}

	tc := &tcpsocket.TLSConfig{
		ServerName:         f.TLS.ServerName,
		InsecureSkipVerify: f.TLS.InsecureSkipVerify,
	}

	if f.TLS.CAFile != "" {
		pem, err := os.ReadFile(f.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", f.TLS.CAFile)
		}
		tc.RootCAs = pool
	}

	if f.TLS.CertFile != "" || f.TLS.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(f.TLS.CertFile, f.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tc.Certificates = []tls.Certificate{cert}
	}

	cfg.TLS = tc
	return cfg, nil
}

// RedialPolicy returns the backoff settings for tcpsocket.Redial.
func (f *File) RedialPolicy() tcpsocket.RedialPolicy {
	return tcpsocket.RedialPolicy{
		Attempts: f.Redial.Attempts,
		Min:      f.Redial.Min.Duration,
		Max:      f.Redial.Max.Duration,
		Factor:   f.Redial.Factor,
		Jitter:   !f.Redial.NoJitter,
	}
}

package tcpsocket

import "github.com/rs/zerolog"

// Logger handles leveled logging for a socket.
type Logger interface {
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)
}

// NoopLogger discards everything. It is the default.
type NoopLogger struct{}

func (NoopLogger) Debugf(_ string, _ ...any) {}
func (NoopLogger) Infof(_ string, _ ...any)  {}
func (NoopLogger) Warnf(_ string, _ ...any)  {}
func (NoopLogger) Errorf(_ string, _ ...any) {}

// ZeroLogger adapts a zerolog.Logger. Levels below the logger's own level are
// dropped by zerolog.
type ZeroLogger struct {
	l zerolog.Logger
}

func NewZeroLogger(l zerolog.Logger) *ZeroLogger {
	return &ZeroLogger{l: l}
}

func (z *ZeroLogger) Debugf(format string, v ...any) { z.l.Debug().Msgf(format, v...) }
func (z *ZeroLogger) Infof(format string, v ...any)  { z.l.Info().Msgf(format, v...) }
func (z *ZeroLogger) Warnf(format string, v ...any)  { z.l.Warn().Msgf(format, v...) }
func (z *ZeroLogger) Errorf(format string, v ...any) { z.l.Error().Msgf(format, v...) }

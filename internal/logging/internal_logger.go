package logging

import "github.com/rs/zerolog"

// InternalLogger decouples background tasks from a concrete logging
// implementation, so task output can be mirrored into per-task log
// buffers as well as the process log.
type InternalLogger interface {
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

var _ InternalLogger = (*ZLogger)(nil)

type ZLogger struct {
	ZLog zerolog.Logger
}

func NewZLogger(zlog zerolog.Logger) ZLogger {
	return ZLogger{ZLog: zlog}
}

func (l ZLogger) Info(format string, args ...any) {
	l.ZLog.Info().Msgf(format, args...)
}

func (l ZLogger) Warn(format string, args ...any) {
	l.ZLog.Warn().Msgf(format, args...)
}

func (l ZLogger) Error(format string, args ...any) {
	l.ZLog.Error().Msgf(format, args...)
}

var _ InternalLogger = (*MultiLogger)(nil)

type MultiLogger struct {
	Loggers []InternalLogger
}

func NewMultiLogger(loggers ...InternalLogger) MultiLogger {
	return MultiLogger{Loggers: loggers}
}

func (l MultiLogger) Info(format string, args ...any) {
	for _, logger := range l.Loggers {
		logger.Info(format, args...)
	}
}

func (l MultiLogger) Warn(format string, args ...any) {
	for _, logger := range l.Loggers {
		logger.Warn(format, args...)
	}
}

func (l MultiLogger) Error(format string, args ...any) {
	for _, logger := range l.Loggers {
		logger.Error(format, args...)
	}
}

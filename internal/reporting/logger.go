// Package reporting provides structured logging and periodic
// counter/heatmap snapshots.
package reporting

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel is the configured minimum severity.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LoggerConfig configures a Logger's level, output destination, and
// optional rotation when writing to a file.
type LoggerConfig struct {
	Level  LogLevel
	Output io.Writer // defaults to os.Stderr if nil

	// LogFile, when set, routes output through a rotatingWriter instead of
	// Output directly; LogMaxSize/LogBackup configure the rotation.
	LogFile    string
	LogMaxSize int64 // bytes; 0 disables rotation
	LogBackup  int   // number of rotated files retained
}

// Logger wraps a zerolog.Logger with the field/child-logger ergonomics the
// teacher's own code calls throughout.
type Logger struct {
	logger zerolog.Logger
	closer io.Closer // non-nil when backed by a rotatingWriter
}

// NewLogger builds a Logger per cfg. A configured LogFile routes through a
// size-based rotatingWriter (see rotate.go); otherwise Output is used
// directly, console-formatted for terminal readability.
func NewLogger(cfg LoggerConfig) (*Logger, error) {
	var output io.Writer
	var closer io.Closer

	switch {
	case cfg.LogFile != "":
		rw, err := newRotatingWriter(cfg.LogFile, cfg.LogMaxSize, cfg.LogBackup)
		if err != nil {
			return nil, fmt.Errorf("reporting: open log file: %w", err)
		}
		output = rw
		closer = rw
	case cfg.Output != nil:
		output = cfg.Output
	default:
		output = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	zlog := zerolog.New(output).With().Timestamp().Logger()
	switch cfg.Level {
	case LogLevelDebug:
		zlog = zlog.Level(zerolog.DebugLevel)
	case LogLevelWarn:
		zlog = zlog.Level(zerolog.WarnLevel)
	case LogLevelError:
		zlog = zlog.Level(zerolog.ErrorLevel)
	default:
		zlog = zlog.Level(zerolog.InfoLevel)
	}

	return &Logger{logger: zlog, closer: closer}, nil
}

func (l *Logger) Debug(msg string, fields ...interface{}) { l.log(l.logger.Debug(), msg, fields...) }
func (l *Logger) Info(msg string, fields ...interface{})  { l.log(l.logger.Info(), msg, fields...) }
func (l *Logger) Warn(msg string, fields ...interface{})  { l.log(l.logger.Warn(), msg, fields...) }
func (l *Logger) Error(msg string, fields ...interface{}) { l.log(l.logger.Error(), msg, fields...) }

// Fatal logs at fatal level and exits the process, matching zerolog's own
// Fatal semantics; callers that need ConfigInvalid's "abort the process
// with a message" behavior (§7) call this.
func (l *Logger) Fatal(msg string, fields ...interface{}) { l.log(l.logger.Fatal(), msg, fields...) }

func (l *Logger) log(event *zerolog.Event, msg string, fields ...interface{}) {
	if len(fields)%2 != 0 {
		event.Str("error", "odd number of fields")
		event.Msg(msg)
		return
	}
	for i := 0; i < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			event.Str("error", fmt.Sprintf("field key at index %d is not a string", i))
			continue
		}
		event.Interface(key, fields[i+1])
	}
	event.Msg(msg)
}

// WithField returns a child logger carrying one extra structured field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{logger: l.logger.With().Interface(key, value).Logger(), closer: l.closer}
}

// Close releases the underlying rotating file, if any.
func (l *Logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

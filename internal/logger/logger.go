package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Logger is the structured logger handed to components. Key/value pairs
// follow the message: Info("applied", "statements", 3).
type Logger interface {
	Debug(msg string, keyvals ...interface{})
	Info(msg string, keyvals ...interface{})
	Warn(msg string, keyvals ...interface{})
	Error(msg string, keyvals ...interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

// Options configures the process-wide logger.
type Options struct {
	// Level is one of debug, info, warn, error. Defaults to warn.
	Level string
	// Format is "console" or "json". Defaults to console.
	Format string
	Writer io.Writer
}

type zlogger struct {
	zl zerolog.Logger
}

var (
	mu   sync.RWMutex
	root = newZLogger(Options{})
)

// Setup replaces the process-wide logger.
func Setup(opts Options) error {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return err
	}
	l := newZLogger(opts)
	l.zl = l.zl.Level(level)

	mu.Lock()
	root = l
	mu.Unlock()
	return nil
}

// LevelFor maps the CLI verbosity flags onto a level name.
func LevelFor(debug, verbose bool) string {
	switch {
	case verbose:
		return "debug"
	case debug:
		return "info"
	default:
		return "warn"
	}
}

func parseLevel(level string) (zerolog.Level, error) {
	if level == "" {
		return zerolog.WarnLevel, nil
	}
	l, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return l, nil
}

func newZLogger(opts Options) *zlogger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	if opts.Format != "json" {
		w = zerolog.ConsoleWriter{Out: w, NoColor: w != os.Stderr, TimeFormat: "15:04:05"}
	}
	return &zlogger{zl: zerolog.New(w).With().Timestamp().Logger().Level(zerolog.WarnLevel)}
}

func current() *zlogger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

func (l *zlogger) emit(e *zerolog.Event, msg string, keyvals []interface{}) {
	if e == nil {
		return
	}
	for i := 0; i < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		if i+1 >= len(keyvals) {
			e = e.Interface(key, nil)
			break
		}
		if err, ok := keyvals[i+1].(error); ok {
			e = e.AnErr(key, err)
			continue
		}
		e = e.Interface(key, keyvals[i+1])
	}
	e.Msg(msg)
}

func (l *zlogger) Debug(msg string, keyvals ...interface{}) { l.emit(l.zl.Debug(), msg, keyvals) }
func (l *zlogger) Info(msg string, keyvals ...interface{})  { l.emit(l.zl.Info(), msg, keyvals) }
func (l *zlogger) Warn(msg string, keyvals ...interface{})  { l.emit(l.zl.Warn(), msg, keyvals) }
func (l *zlogger) Error(msg string, keyvals ...interface{}) { l.emit(l.zl.Error(), msg, keyvals) }

func (l *zlogger) WithField(key string, value interface{}) Logger {
	return &zlogger{zl: l.zl.With().Interface(key, value).Logger()}
}

func (l *zlogger) WithFields(fields map[string]interface{}) Logger {
	return &zlogger{zl: l.zl.With().Fields(fields).Logger()}
}

// WithField returns the process-wide logger with one extra field.
func WithField(key string, value interface{}) Logger {
	return current().WithField(key, value)
}

// WithFields returns the process-wide logger with extra fields.
func WithFields(fields map[string]interface{}) Logger {
	return current().WithFields(fields)
}

func Debug(msg string, keyvals ...interface{}) { current().Debug(msg, keyvals...) }
func Info(msg string, keyvals ...interface{})  { current().Info(msg, keyvals...) }
func Warn(msg string, keyvals ...interface{})  { current().Warn(msg, keyvals...) }
func Error(msg string, keyvals ...interface{}) { current().Error(msg, keyvals...) }

// Nop discards everything. Useful in tests.
func Nop() Logger {
	return &zlogger{zl: zerolog.Nop()}
}

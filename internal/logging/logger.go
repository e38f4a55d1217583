package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/lmittmann/tint"
)

// LogLevel represents the severity of a log message
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
	LogLevelFatal LogLevel = "FATAL"
)

// levelFatal sits above slog.LevelError so FATAL entries survive an ERROR filter
const levelFatal = slog.LevelError + 4

const timeFormat = "2006-01-02 15:04:05.000"

// ParseLevel converts a config string such as "debug" to a LogLevel.
// Unknown values fall back to INFO.
func ParseLevel(s string) LogLevel {
	switch LogLevel(strings.ToUpper(strings.TrimSpace(s))) {
	case LogLevelDebug:
		return LogLevelDebug
	case LogLevelWarn:
		return LogLevelWarn
	case LogLevelError:
		return LogLevelError
	case LogLevelFatal:
		return LogLevelFatal
	default:
		return LogLevelInfo
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	case LogLevelFatal:
		return levelFatal
	default:
		return slog.LevelInfo
	}
}

// Options controls the console output shared by every logger created
// after Configure is called.
type Options struct {
	Level   LogLevel
	Output  io.Writer // Defaults to os.Stderr
	NoColor bool
	File    io.Writer // Optional plain-text copy, e.g. a log file
}

var (
	defaultsMu sync.RWMutex
	defaults   = Options{Level: LogLevelInfo, Output: os.Stderr}
)

// Configure sets the console defaults used by NewLogger.
func Configure(opts Options) {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.Level == "" {
		opts.Level = LogLevelInfo
	}
	defaultsMu.Lock()
	defaults = opts
	defaultsMu.Unlock()
}

// Logger provides structured logging for one component
type Logger struct {
	component string
	level     *slog.LevelVar
	handlers  []slog.Handler
	logger    *slog.Logger
	mu        sync.Mutex
}

// NewLogger creates a new logger for a specific component
func NewLogger(component string) *Logger {
	defaultsMu.RLock()
	opts := defaults
	defaultsMu.RUnlock()

	l := &Logger{
		component: component,
		level:     new(slog.LevelVar),
	}
	l.level.Set(opts.Level.slogLevel())
	l.handlers = []slog.Handler{
		tint.NewHandler(opts.Output, &tint.Options{
			Level:      l.level,
			TimeFormat: timeFormat,
			NoColor:    opts.NoColor,
		}),
	}
	if opts.File != nil {
		l.handlers = append(l.handlers, slog.NewTextHandler(opts.File, &slog.HandlerOptions{Level: l.level}))
	}
	l.rebuild()
	return l
}

// rebuild must be called with l.mu held or before l is shared
func (l *Logger) rebuild() {
	var h slog.Handler
	if len(l.handlers) == 1 {
		h = l.handlers[0]
	} else {
		h = fanout(append([]slog.Handler(nil), l.handlers...))
	}
	l.logger = slog.New(h).With("component", l.component)
}

// SetMinLevel sets the minimum log level to output
func (l *Logger) SetMinLevel(level LogLevel) *Logger {
	l.level.Set(level.slogLevel())
	return l
}

// AddOutput adds a plain-text output writer for logs (e.g. a log file)
func (l *Logger) AddOutput(w io.Writer) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers = append(l.handlers, slog.NewTextHandler(w, &slog.HandlerOptions{Level: l.level}))
	l.rebuild()
	return l
}

// Slog exposes the underlying slog.Logger
func (l *Logger) Slog() *slog.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.logger
}

// log writes a log entry
func (l *Logger) log(level slog.Level, message string, err error, fields map[string]interface{}) {
	logger := l.Slog()
	ctx := context.Background()
	if !logger.Enabled(ctx, level) {
		return
	}

	attrs := make([]slog.Attr, 0, len(fields)+1)
	if err != nil {
		attrs = append(attrs, tint.Err(err))
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	logger.LogAttrs(ctx, level, message, attrs...)
}

// Debug logs a debug message
func (l *Logger) Debug(message string) {
	l.log(slog.LevelDebug, message, nil, nil)
}

// DebugWithContext logs a debug message with context
func (l *Logger) DebugWithContext(message string, context map[string]interface{}) {
	l.log(slog.LevelDebug, message, nil, context)
}

// Info logs an info message
func (l *Logger) Info(message string) {
	l.log(slog.LevelInfo, message, nil, nil)
}

// InfoWithContext logs an info message with context
func (l *Logger) InfoWithContext(message string, context map[string]interface{}) {
	l.log(slog.LevelInfo, message, nil, context)
}

// Warn logs a warning message
func (l *Logger) Warn(message string) {
	l.log(slog.LevelWarn, message, nil, nil)
}

// WarnWithContext logs a warning message with context
func (l *Logger) WarnWithContext(message string, context map[string]interface{}) {
	l.log(slog.LevelWarn, message, nil, context)
}

// Error logs an error message
func (l *Logger) Error(message string, err error) {
	l.log(slog.LevelError, message, err, nil)
}

// ErrorWithContext logs an error message with context
func (l *Logger) ErrorWithContext(message string, err error, context map[string]interface{}) {
	l.log(slog.LevelError, message, err, context)
}

// Fatal logs a fatal error message. It does not exit the process.
func (l *Logger) Fatal(message string, err error) {
	l.log(levelFatal, message, err, nil)
}

// WithContext returns a logger that includes context on every entry
func (l *Logger) WithContext(context map[string]interface{}) *ContextLogger {
	return &ContextLogger{
		logger:  l,
		context: context,
	}
}

// ContextLogger is a logger with pre-set context
type ContextLogger struct {
	logger  *Logger
	context map[string]interface{}
}

// Debug logs a debug message with pre-set context
func (cl *ContextLogger) Debug(message string) {
	cl.logger.log(slog.LevelDebug, message, nil, cl.context)
}

// Info logs an info message with pre-set context
func (cl *ContextLogger) Info(message string) {
	cl.logger.log(slog.LevelInfo, message, nil, cl.context)
}

// Warn logs a warning message with pre-set context
func (cl *ContextLogger) Warn(message string) {
	cl.logger.log(slog.LevelWarn, message, nil, cl.context)
}

// Error logs an error message with pre-set context
func (cl *ContextLogger) Error(message string, err error) {
	cl.logger.log(slog.LevelError, message, err, cl.context)
}

// fanout duplicates records to several handlers
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

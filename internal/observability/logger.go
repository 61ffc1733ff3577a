// Package observability carries the structured logger shared by the CLI,
// the API server and the pipeline.
package observability

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a zerolog logger plus the scoping helpers the analyzer uses:
// per request, per session and per pipeline operation.
type Logger struct {
	zl zerolog.Logger
}

// LogConfig selects level, encoding and destination. Format "console" is
// human readable; anything else is JSON lines.
type LogConfig struct {
	Level       string
	Format      string
	Output      io.Writer
	ServiceName string
}

// NewLogger builds a Logger. Output defaults to stderr so stdout stays free
// for command results.
func NewLogger(cfg LogConfig) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	ctx := zerolog.New(out).Level(levelFor(cfg.Level)).With().Timestamp()
	if cfg.ServiceName != "" {
		ctx = ctx.Str("service", cfg.ServiceName)
	}
	return &Logger{zl: ctx.Logger()}
}

// NopLogger discards everything.
func NopLogger() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// levelFor accepts zerolog's level names plus "warning" and "off". Unknown
// or empty names log at info.
func levelFor(name string) zerolog.Level {
	switch name = strings.ToLower(strings.TrimSpace(name)); name {
	case "warning":
		return zerolog.WarnLevel
	case "off":
		return zerolog.Disabled
	case "":
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(name)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *Logger) Debug() *LogEvent { return &LogEvent{evt: l.zl.Debug()} }
func (l *Logger) Info() *LogEvent { return &LogEvent{evt: l.zl.Info()} }
func (l *Logger) Warn() *LogEvent { return &LogEvent{evt: l.zl.Warn()} }
func (l *Logger) Error() *LogEvent { return &LogEvent{evt: l.zl.Error()} }

// WithField returns a child logger that always carries key=value.
func (l *Logger) WithField(key, value string) *Logger {
	return &Logger{zl: l.zl.With().Str(key, value).Logger()}
}

// WithContext tags entries with the request ID stored in ctx, if any.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if id := RequestIDFromContext(ctx); id != "" {
		return l.WithField("request_id", id)
	}
	return l
}

// WithSession scopes entries to one analyzer session and its user.
func (l *Logger) WithSession(sessionID, userID string) *Logger {
	return &Logger{zl: l.zl.With().Str("session_id", sessionID).Str("user_id", userID).Logger()}
}

// WithOperation tags entries with a pipeline stage or collaborator name.
func (l *Logger) WithOperation(op string) *Logger {
	return l.WithField("operation", op)
}

// LogEvent is a single entry under construction. Nothing is written until
// Msg.
type LogEvent struct {
	evt *zerolog.Event
}

func (e *LogEvent) Str(key, val string) *LogEvent {
	e.evt = e.evt.Str(key, val)
	return e
}

func (e *LogEvent) Int(key string, val int) *LogEvent {
	e.evt = e.evt.Int(key, val)
	return e
}

func (e *LogEvent) Dur(key string, val time.Duration) *LogEvent {
	e.evt = e.evt.Dur(key, val)
	return e
}

func (e *LogEvent) Err(err error) *LogEvent {
	e.evt = e.evt.Err(err)
	return e
}

func (e *LogEvent) Msg(msg string) {
	e.evt.Msg(msg)
}

type requestIDKey struct{}

// ContextWithRequestID stores the HTTP request ID for WithContext.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the stored request ID or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

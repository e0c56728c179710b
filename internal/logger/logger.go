// SPDX-License-Identifier: EPL-2.0

// Package logger provides module-scoped structured logging on top of log/slog.
//
// Components receive a Logger and derive their own scope with Module:
//
//	log := logger.New(os.Stderr, logger.Options{Level: "info"})
//	plog := log.Module("pipeline")
//	plog.Warn("decode failed, skipping unit", logger.Error(err), logger.Int("unit", n))
//
// Tests use NewDiscard or a bytes.Buffer writer.
package logger

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"
)

// LogLevel represents log severity levels
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// levelTrace sits below slog.LevelDebug.
const levelTrace = slog.Level(-8)

// Field is a structured log field.
type Field struct {
	Key   string
	Value any
}

// Logger is the logging interface injected into every component.
type Logger interface {
	// Module returns a logger scoped to a child module ("player.device").
	Module(name string) Logger

	Trace(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	With(fields ...Field) Logger
	WithContext(ctx context.Context) Logger
	Log(level LogLevel, msg string, fields ...Field)

	// Flush is a no-op for unbuffered writers.
	Flush() error
}

// Options configures New.
type Options struct {
	Level    string
	JSON     bool
	Timezone *time.Location
}

type slogLogger struct {
	handler slog.Handler
	module  string
	attrs   []slog.Attr
}

// New creates a Logger writing to w.
func New(w io.Writer, opts Options) Logger {
	loc := opts.Timezone
	if loc == nil {
		loc = time.Local
	}

	hopts := &slog.HandlerOptions{
		Level: ParseLevel(opts.Level),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			switch {
			case a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime:
				a.Value = slog.TimeValue(a.Value.Time().In(loc))
			case a.Key == slog.LevelKey:
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == levelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}

	var h slog.Handler
	if opts.JSON {
		h = slog.NewJSONHandler(w, hopts)
	} else {
		h = slog.NewTextHandler(w, hopts)
	}

	return &slogLogger{handler: h}
}

// NewDiscard returns a logger that drops everything.
func NewDiscard() Logger {
	return New(io.Discard, Options{Level: string(LogLevelError)})
}

// ParseLevel maps a level name to a slog level; unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch LogLevel(strings.ToLower(strings.TrimSpace(level))) {
	case LogLevelTrace:
		return levelTrace
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn, "warning":
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *slogLogger) Module(name string) Logger {
	module := name
	if l.module != "" {
		module = l.module + "." + name
	}
	return &slogLogger{handler: l.handler, module: module, attrs: l.attrs}
}

func (l *slogLogger) Trace(msg string, fields ...Field) { l.log(levelTrace, msg, fields) }
func (l *slogLogger) Debug(msg string, fields ...Field) { l.log(slog.LevelDebug, msg, fields) }
func (l *slogLogger) Info(msg string, fields ...Field)  { l.log(slog.LevelInfo, msg, fields) }
func (l *slogLogger) Warn(msg string, fields ...Field)  { l.log(slog.LevelWarn, msg, fields) }
func (l *slogLogger) Error(msg string, fields ...Field) { l.log(slog.LevelError, msg, fields) }

func (l *slogLogger) Log(level LogLevel, msg string, fields ...Field) {
	l.log(ParseLevel(string(level)), msg, fields)
}

func (l *slogLogger) With(fields ...Field) Logger {
	attrs := make([]slog.Attr, 0, len(l.attrs)+len(fields))
	attrs = append(attrs, l.attrs...)
	for _, f := range fields {
		attrs = append(attrs, fieldToAttr(f))
	}
	return &slogLogger{handler: l.handler, module: l.module, attrs: attrs}
}

func (l *slogLogger) WithContext(ctx context.Context) Logger {
	if ctx == nil {
		return l
	}
	if id, ok := ctx.Value(traceIDKey{}).(string); ok && id != "" {
		return l.With(String("trace_id", id))
	}
	return l
}

func (l *slogLogger) Flush() error { return nil }

func (l *slogLogger) log(level slog.Level, msg string, fields []Field) {
	ctx := context.Background()
	if !l.handler.Enabled(ctx, level) {
		return
	}

	r := slog.NewRecord(time.Now(), level, msg, 0)
	if l.module != "" {
		r.AddAttrs(slog.String("module", l.module))
	}
	r.AddAttrs(l.attrs...)
	for _, f := range fields {
		r.AddAttrs(fieldToAttr(f))
	}
	_ = l.handler.Handle(ctx, r)
}

type traceIDKey struct{}

// WithTraceID attaches a trace id picked up by Logger.WithContext.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

func fieldToAttr(f Field) slog.Attr {
	switch v := f.Value.(type) {
	case string:
		return slog.String(f.Key, v)
	case int:
		return slog.Int(f.Key, v)
	case int64:
		return slog.Int64(f.Key, v)
	case uint64:
		return slog.Uint64(f.Key, v)
	case float64:
		return slog.Float64(f.Key, v)
	case bool:
		return slog.Bool(f.Key, v)
	case time.Duration:
		return slog.Duration(f.Key, v)
	case time.Time:
		return slog.Time(f.Key, v)
	default:
		return slog.Any(f.Key, v)
	}
}

func String(key, value string) Field { return Field{Key: key, Value: value} }

func Int(key string, value int) Field { return Field{Key: key, Value: value} }

func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

func Uint64(key string, value uint64) Field { return Field{Key: key, Value: value} }

func Float64(key string, value float64) Field { return Field{Key: key, Value: value} }

func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Duration logs value in its String form ("1.5s").
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

func Time(key string, value time.Time) Field { return Field{Key: key, Value: value} }

func Any(key string, value any) Field { return Field{Key: key, Value: value} }

// Error creates a field under the "error" key.
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

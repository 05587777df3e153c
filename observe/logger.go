package observe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/util"
)

// LogLevel represents a logging level.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLogLevel parses a string log level.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

const redacted = "[REDACTED]"

var redactedKeys = func() map[string]struct{} {
	m := make(map[string]struct{}, len(RedactedFields))
	for _, k := range RedactedFields {
		m[k] = struct{}{}
	}
	return m
}()

// structuredLogger writes one JSON object per line.
type structuredLogger struct {
	level     LogLevel
	out       *lockedWriter
	baseAttrs map[string]any
	now       func() time.Time
}

// lockedWriter serializes writes from loggers derived via With/WithTool.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) writeLine(data []byte) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	_, _ = lw.w.Write(append(data, '\n'))
}

// NewLogger creates a new structured logger with the given level.
func NewLogger(level string) Logger {
	return NewLoggerWithWriter(level, os.Stderr)
}

// NewLoggerWithWriter creates a new structured logger with a custom writer.
func NewLoggerWithWriter(level string, w io.Writer) Logger {
	return &structuredLogger{
		level:     ParseLogLevel(level),
		out:       &lockedWriter{w: w},
		baseAttrs: make(map[string]any),
		now:       time.Now,
	}
}

func (l *structuredLogger) derive(extra int) (*structuredLogger, map[string]any) {
	attrs := make(map[string]any, len(l.baseAttrs)+extra)
	maps.Copy(attrs, l.baseAttrs)
	return &structuredLogger{level: l.level, out: l.out, baseAttrs: attrs, now: l.now}, attrs
}

// With returns a logger carrying fields on every entry.
// Redaction applies to bound fields as well.
func (l *structuredLogger) With(fields ...Field) Logger {
	child, attrs := l.derive(len(fields))
	for _, f := range fields {
		attrs[f.Key] = redactValue(f.Key, f.Value)
	}
	return child
}

// WithTool returns a logger with tool context attached.
func (l *structuredLogger) WithTool(meta ToolMeta) Logger {
	child, attrs := l.derive(4)
	attrs["tool.id"] = meta.ToolID()
	attrs["tool.name"] = meta.Name
	if meta.Namespace != "" {
		attrs["tool.namespace"] = meta.Namespace
	}
	if meta.Session != "" {
		attrs["session_id"] = meta.Session
	}
	return child
}

func (l *structuredLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelInfo, msg, fields)
}

func (l *structuredLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelWarn, msg, fields)
}

func (l *structuredLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelError, msg, fields)
}

func (l *structuredLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelDebug, msg, fields)
}

func (l *structuredLogger) log(_ context.Context, level LogLevel, msg string, fields []Field) {
	if level < l.level {
		return
	}

	entry := make(map[string]any, len(l.baseAttrs)+len(fields)+3)
	maps.Copy(entry, l.baseAttrs)
	for _, f := range fields {
		entry[f.Key] = redactValue(f.Key, f.Value)
	}
	entry["timestamp"] = l.now().UTC().Format(time.RFC3339Nano)
	entry["level"] = level.String()
	entry["msg"] = msg

	data, err := json.Marshal(entry)
	if err != nil {
		// Unencodable values are dropped rather than failing the caller.
		data, err = json.Marshal(map[string]any{
			"timestamp": entry["timestamp"],
			"level":     entry["level"],
			"msg":       msg,
			"log_error": err.Error(),
		})
		if err != nil {
			return
		}
	}
	l.out.writeLine(data)
}

// isRedactedField reports whether a field key names a secret.
func isRedactedField(key string) bool {
	_, ok := redactedKeys[strings.ToLower(key)]
	return ok
}

func redactValue(key string, v any) any {
	if isRedactedField(key) {
		return redacted
	}
	return v
}

// nopLogger discards everything.
type nopLogger struct{}

// NopLogger returns a Logger that discards all entries.
func NopLogger() Logger { return nopLogger{} }

func (nopLogger) Info(context.Context, string, ...Field)  {}
func (nopLogger) Warn(context.Context, string, ...Field)  {}
func (nopLogger) Error(context.Context, string, ...Field) {}
func (nopLogger) Debug(context.Context, string, ...Field) {}
func (n nopLogger) With(...Field) Logger                  { return n }
func (n nopLogger) WithTool(ToolMeta) Logger              { return n }

// TransportLogger adapts a Logger to the printf-style logger used by the
// MCP transport.
func TransportLogger(l Logger) util.Logger {
	if l == nil {
		l = NopLogger()
	}
	return transportLogger{l: l.With(F("component", "transport"))}
}

type transportLogger struct {
	l Logger
}

func (t transportLogger) Infof(format string, v ...any) {
	t.l.Info(context.Background(), fmt.Sprintf(format, v...))
}

func (t transportLogger) Errorf(format string, v ...any) {
	t.l.Error(context.Background(), fmt.Sprintf(format, v...))
}

var (
	_ Logger      = (*structuredLogger)(nil)
	_ Logger      = nopLogger{}
	_ util.Logger = transportLogger{}
)

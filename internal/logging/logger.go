// Package logging provides a leveled logger. Its *Logger satisfies
// interfaces.Logger, the type a Bus accepts through Options.Logger;
// the ring, allocator, and region layers do not log.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

// LogLevel represents the available log levels.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Config holds logging configuration.
type Config struct {
	Level LogLevel
	// Format is "text" (default) or "json".
	Format string
	Output io.Writer
	// Sync forces each write to flush synchronously; the underlying
	// stdlib *log.Logger already writes synchronously, so this only
	// exists to document intent at call sites that care.
	Sync bool
	// NoColor is accepted for API parity with colorized CLI loggers
	// (see charmbracelet/log in the cmd/ binaries); the text formatter
	// here never emits color codes, so this is a no-op kept for
	// config-struct compatibility with callers that set it uniformly.
	NoColor bool
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:  LevelInfo,
		Format: "text",
		Output: os.Stderr,
	}
}

// Logger wraps stdlib log with level support and chainable context
// (channel id, producer/consumer role, last error).
type Logger struct {
	out    io.Writer
	level  LogLevel
	format string
	mu     *sync.Mutex
	fields []field
}

type field struct {
	key string
	val any
}

var (
	defaultLogger *Logger
	defaultMu     sync.RWMutex
)

// NewLogger creates a new logger.
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	output := config.Output
	if output == nil {
		output = os.Stderr
	}
	format := config.Format
	if format == "" {
		format = "text"
	}
	return &Logger{
		out:    output,
		level:  config.Level,
		format: format,
		mu:     &sync.Mutex{},
	}
}

// Default returns the default logger, creating it if necessary.
func Default() *Logger {
	defaultMu.RLock()
	if defaultLogger != nil {
		defer defaultMu.RUnlock()
		return defaultLogger
	}
	defaultMu.RUnlock()

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(nil)
	}
	return defaultLogger
}

// SetDefault sets the default logger.
func SetDefault(logger *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = logger
}

// with returns a copy of l carrying an additional context field.
func (l *Logger) with(key string, val any) *Logger {
	next := &Logger{
		out:    l.out,
		level:  l.level,
		format: l.format,
		mu:     l.mu,
		fields: append(append([]field{}, l.fields...), field{key, val}),
	}
	return next
}

// WithChannel returns a logger that tags every message with channel_id.
func (l *Logger) WithChannel(channelID uint32) *Logger {
	return l.with("channel_id", channelID)
}

// WithEndpoint returns a logger that tags every message with the
// endpoint role ("producer" or "consumer").
func (l *Logger) WithEndpoint(role string) *Logger {
	return l.with("endpoint", role)
}

// WithRequest returns a logger that tags every message with a
// message id and the operation name.
func (l *Logger) WithRequest(messageID uint64, op string) *Logger {
	return l.with("msg_id", messageID).with("op", op)
}

// WithError returns a logger that tags every message with err.
func (l *Logger) WithError(err error) *Logger {
	return l.with("error", err)
}

func formatArgs(args []any) string {
	if len(args) == 0 {
		return ""
	}
	var result string
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			if result != "" {
				result += " "
			}
			result += fmt.Sprintf("%v=%v", args[i], args[i+1])
		}
	}
	if result != "" {
		return " " + result
	}
	return ""
}

func (l *Logger) emitText(level LogLevel, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var extra string
	for _, f := range l.fields {
		extra += fmt.Sprintf(" %s=%v", f.key, f.val)
	}
	extra += formatArgs(args)

	fmt.Fprintf(l.out, "%s [%s] %s%s\n", time.Now().Format("2006-01-02T15:04:05.000Z07:00"), level, msg, extra)
}

func (l *Logger) emitJSON(level LogLevel, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := map[string]any{
		"ts":    time.Now().Format(time.RFC3339Nano),
		"level": level.String(),
		"msg":   msg,
	}
	for _, f := range l.fields {
		rec[f.key] = f.val
	}
	for i := 0; i+1 < len(args); i += 2 {
		if key, ok := args[i].(string); ok {
			rec[key] = args[i+1]
		}
	}
	enc, err := json.Marshal(rec)
	if err != nil {
		log.New(l.out, "", 0).Printf("logging: marshal failed: %v", err)
		return
	}
	l.out.Write(append(enc, '\n'))
}

func (l *Logger) log(level LogLevel, msg string, args ...any) {
	if level < l.level {
		return
	}
	if l.format == "json" {
		l.emitJSON(level, msg, args)
		return
	}
	l.emitText(level, msg, args)
}

func (l *Logger) Debug(msg string, args ...any) { l.log(LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.log(LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.log(LevelError, msg, args...) }

// Printf-style logging, used by callers that only implement the
// narrow interfaces.Logger surface.
func (l *Logger) Debugf(format string, args ...any) { l.log(LevelDebug, fmt.Sprintf(format, args...)) }
func (l *Logger) Infof(format string, args ...any)  { l.log(LevelInfo, fmt.Sprintf(format, args...)) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(LevelWarn, fmt.Sprintf(format, args...)) }
func (l *Logger) Errorf(format string, args ...any) { l.log(LevelError, fmt.Sprintf(format, args...)) }

// Printf satisfies interfaces.Logger.
func (l *Logger) Printf(format string, args ...any) {
	l.Infof(format, args...)
}

// Global convenience functions operating on the default logger.
func Debug(msg string, args ...any) { Default().Debug(msg, args...) }
func Info(msg string, args ...any)  { Default().Info(msg, args...) }
func Warn(msg string, args ...any)  { Default().Warn(msg, args...) }
func Error(msg string, args ...any) { Default().Error(msg, args...) }

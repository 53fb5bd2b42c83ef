// Package logging provides structured logging for ticosd.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// Logger wraps stdlib log with level support and chainable key/value context.
type Logger struct {
	logger  *log.Logger
	level   LogLevel
	format  string
	fields  []field
	mu      *sync.Mutex
	warn    *warningRing
}

type field struct {
	key string
	val any
}

var (
	defaultLogger *Logger
	mu            sync.RWMutex
)

// LogLevel represents the available log levels.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Config holds logging configuration.
type Config struct {
	Level   LogLevel
	Format  string // "text" (default) or "json"
	Output  io.Writer
	Sync    bool
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
	flags := log.LstdFlags
	if config.Sync {
		flags = 0
	}
	return &Logger{
		logger: log.New(output, "", flags),
		level:  config.Level,
		format: format,
		mu:     &sync.Mutex{},
		warn:   newWarningRing(16),
	}
}

// Default returns the default logger, creating it if necessary.
func Default() *Logger {
	mu.RLock()
	if defaultLogger != nil {
		defer mu.RUnlock()
		return defaultLogger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(nil)
	}
	return defaultLogger
}

// SetDefault sets the default logger.
func SetDefault(logger *Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = logger
}

func (l *Logger) withField(key string, val any) *Logger {
	n := *l
	n.fields = append(append([]field{}, l.fields...), field{key, val})
	return &n
}

// WithPID returns a derived logger tagging every line with the originating
// process ID, for coredump-transformer logging.
func (l *Logger) WithPID(pid int) *Logger {
	return l.withField("pid", pid)
}

// WithRecordType returns a derived logger tagging every line with the
// queue record type being handled ("reboot", "coredump", "attributes").
func (l *Logger) WithRecordType(t string) *Logger {
	return l.withField("record_type", t)
}

// WithOp returns a derived logger tagging every line with the operation in
// progress, e.g. "upload.prepare".
func (l *Logger) WithOp(op string) *Logger {
	return l.withField("op", op)
}

// WithError returns a derived logger carrying err as context.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.withField("error", err.Error())
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

func (l *Logger) fieldString() string {
	if len(l.fields) == 0 {
		return ""
	}
	var out string
	for _, f := range l.fields {
		out += fmt.Sprintf(" %s=%v", f.key, f.val)
	}
	return out
}

func (l *Logger) log(level LogLevel, prefix, msg string, args ...any) {
	if level < l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if level == LevelWarn && l.warn != nil {
		l.warn.push(msg)
	}
	if l.format == "json" {
		l.logger.Printf(`{"level":%q,"msg":%q%s%s}`, prefix, msg, jsonFields(l.fields), jsonArgs(args))
		return
	}
	l.logger.Printf("%s %s%s%s", prefix, msg, l.fieldString(), formatArgs(args))
}

func jsonFields(fields []field) string {
	out := ""
	for _, f := range fields {
		out += fmt.Sprintf(`,%q:%v`, f.key, jsonValue(f.val))
	}
	return out
}

func jsonArgs(args []any) string {
	out := ""
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			out += fmt.Sprintf(`,%q:%v`, fmt.Sprint(args[i]), jsonValue(args[i+1]))
		}
	}
	return out
}

func jsonValue(v any) string {
	switch v.(type) {
	case int, int64, uint64, uint32, int32, float64, bool:
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%q", fmt.Sprint(v))
	}
}

func (l *Logger) Debug(msg string, args ...any) {
	l.log(LevelDebug, "[DEBUG]", msg, args...)
}

func (l *Logger) Info(msg string, args ...any) {
	l.log(LevelInfo, "[INFO]", msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.log(LevelWarn, "[WARN]", msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.log(LevelError, "[ERROR]", msg, args...)
}

// Printf-style logging.
func (l *Logger) Debugf(format string, args ...any) {
	l.log(LevelDebug, "[DEBUG]", fmt.Sprintf(format, args...))
}

func (l *Logger) Infof(format string, args ...any) {
	l.log(LevelInfo, "[INFO]", fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...any) {
	l.log(LevelWarn, "[WARN]", fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) {
	l.log(LevelError, "[ERROR]", fmt.Sprintf(format, args...))
}

// Printf for compatibility with interfaces.Logger.
func (l *Logger) Printf(format string, args ...any) {
	l.Infof(format, args...)
}

// RecentWarnings returns the most recent warnings logged through this
// logger, oldest first, capped at the ring's capacity. The coredump
// transformer does not read it; it keeps its own capped warning list.
func (l *Logger) RecentWarnings() []string {
	if l.warn == nil {
		return nil
	}
	return l.warn.snapshot()
}

// warningRing is a fixed-capacity ring buffer of the most recent warning
// messages, so RecentWarnings stays bounded instead of accumulating an
// unbounded slice.
type warningRing struct {
	mu       sync.Mutex
	buf      []string
	next     int
	count    int
	overflow int
}

func newWarningRing(capacity int) *warningRing {
	return &warningRing{buf: make([]string, capacity)}
}

func (r *warningRing) push(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count >= len(r.buf) {
		r.overflow++
	}
	r.buf[r.next] = msg
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

func (r *warningRing) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, r.count)
	start := (r.next - r.count + len(r.buf)) % len(r.buf)
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}

// Global convenience functions.
func Debug(msg string, args ...any) {
	Default().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Default().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Default().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Default().Error(msg, args...)
}

func SetLevel(level LogLevel) {
	Default().mu.Lock()
	defer Default().mu.Unlock()
	Default().level = level
}

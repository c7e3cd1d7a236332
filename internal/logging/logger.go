// Package logging provides leveled logging with console, rolling file and JSON output.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents log severity
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Color returns the ANSI color used on the console
func (l Level) Color() string {
	switch l {
	case DEBUG:
		return "\033[36m"
	case INFO:
		return "\033[32m"
	case WARN:
		return "\033[33m"
	case ERROR:
		return "\033[31m"
	default:
		return "\033[0m"
	}
}

// ParseLevel parses a level name. Unknown names yield INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// Config holds logger configuration
type Config struct {
	Level       Level
	Component   string
	LogDir      string // Directory for log files
	EnableFile  bool   // Write to a rolling file
	EnableColor bool   // Color console output
	JSON        bool   // Emit one JSON object per line
	Rolling     RollingConfig
	Output      io.Writer // Console writer, stdout when nil
}

// DefaultConfig returns the CLI defaults
func DefaultConfig() Config {
	rolling := DefaultRollingConfig()
	return Config{
		Level:       INFO,
		Component:   "planner",
		LogDir:      rolling.LogDir,
		EnableFile:  false,
		EnableColor: true,
		Rolling:     rolling,
	}
}

// sink is shared by a logger and every component logger derived from it
type sink struct {
	mu      sync.Mutex
	console io.Writer
	file    io.WriteCloser
	color   bool
	json    bool
}

// Logger writes leveled, printf-style messages. It satisfies domain.Logger.
type Logger struct {
	sink      *sink
	level     Level
	component string
}

var (
	defaultLogger *Logger
	defaultMu     sync.RWMutex
)

// New creates a logger. In Lambda the file writer and colors are disabled
// since CloudWatch captures stdout.
func New(cfg Config) (*Logger, error) {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	s := &sink{console: out, color: cfg.EnableColor, json: cfg.JSON}
	if IsLambda() {
		s.color = false
		cfg.EnableFile = false
	}

	if cfg.EnableFile {
		rolling := cfg.Rolling
		if rolling.BaseName == "" {
			rolling = DefaultRollingConfig()
		}
		if cfg.LogDir != "" {
			rolling.LogDir = cfg.LogDir
		}
		rw, err := NewRollingWriter(rolling, cfg.JSON)
		if err != nil {
			return nil, err
		}
		s.file = rw
	}

	return &Logger{sink: s, level: cfg.Level, component: cfg.Component}, nil
}

// GetDefault returns the default logger, creating a console logger if none was set
func GetDefault() *Logger {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()
	if l != nil {
		return l
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		cfg := DefaultConfig()
		defaultLogger = &Logger{
			sink:      &sink{console: os.Stdout, color: cfg.EnableColor && !IsLambda()},
			level:     cfg.Level,
			component: cfg.Component,
		}
	}
	return defaultLogger
}

// SetDefault sets the default logger
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// Component returns a logger tagged with the given component name
func (l *Logger) Component(name string) *Logger {
	return &Logger{sink: l.sink, level: l.level, component: name}
}

// Close closes the log file
func (l *Logger) Close() error {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	if l.sink.file != nil {
		return l.sink.file.Close()
	}
	return nil
}

// SetLevel changes the log level
func (l *Logger) SetLevel(level Level) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.level = level
}

type jsonEntry struct {
	Time      string                 `json:"time"`
	Level     string                 `json:"level"`
	Component string                 `json:"component,omitempty"`
	Caller    string                 `json:"caller"`
	Message   string                 `json:"msg"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func (l *Logger) log(level Level, fields Fields, msg string, args ...interface{}) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	if level < l.level {
		return
	}

	now := time.Now()

	caller := "unknown"
	if _, file, line, ok := runtime.Caller(2); ok {
		caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}

	formatted := msg
	if len(args) > 0 {
		formatted = fmt.Sprintf(msg, args...)
	}

	if l.sink.json {
		data, err := json.Marshal(jsonEntry{
			Time:      now.UTC().Format(time.RFC3339Nano),
			Level:     level.String(),
			Component: l.component,
			Caller:    caller,
			Message:   formatted,
			Fields:    fields,
		})
		if err != nil {
			return
		}
		data = append(data, '\n')
		if l.sink.file != nil {
			l.sink.file.Write(data)
		}
		l.sink.console.Write(data)
		return
	}

	formatted += fields.String()
	stamp := now.Format("2006-01-02 15:04:05.000")
	plain := fmt.Sprintf("[%s] [%s] [%s] [%s] %s\n", stamp, level.String(), l.component, caller, formatted)

	if l.sink.file != nil {
		l.sink.file.Write([]byte(plain))
	}

	if l.sink.color {
		fmt.Fprintf(l.sink.console, "%s[%s]\033[0m [%s] [%s] [%s] %s\n",
			level.Color(), level.String(), stamp, l.component, caller, formatted)
		return
	}
	io.WriteString(l.sink.console, plain)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.log(DEBUG, nil, msg, args...)
}

// Info logs an info message
func (l *Logger) Info(msg string, args ...interface{}) {
	l.log(INFO, nil, msg, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.log(WARN, nil, msg, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string, args ...interface{}) {
	l.log(ERROR, nil, msg, args...)
}

// Package-level convenience functions using default logger

// Debug logs a debug message using the default logger
func Debug(msg string, args ...interface{}) {
	GetDefault().log(DEBUG, nil, msg, args...)
}

// Info logs an info message using the default logger
func Info(msg string, args ...interface{}) {
	GetDefault().log(INFO, nil, msg, args...)
}

// Warn logs a warning message using the default logger
func Warn(msg string, args ...interface{}) {
	GetDefault().log(WARN, nil, msg, args...)
}

// Error logs an error message using the default logger
func Error(msg string, args ...interface{}) {
	GetDefault().log(ERROR, nil, msg, args...)
}

// Fields are key/value pairs attached to a log entry
type Fields map[string]interface{}

// String renders fields as " k=v" pairs in key order
func (f Fields) String() string {
	if len(f) == 0 {
		return ""
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, f[k])
	}
	return b.String()
}

// WithFields returns a logger that attaches fields to every entry
func (l *Logger) WithFields(fields Fields) *FieldLogger {
	return &FieldLogger{logger: l, fields: fields}
}

// FieldLogger provides structured field logging
type FieldLogger struct {
	logger *Logger
	fields Fields
}

func (fl *FieldLogger) Debug(msg string, args ...interface{}) {
	fl.logger.log(DEBUG, fl.fields, msg, args...)
}

func (fl *FieldLogger) Info(msg string, args ...interface{}) {
	fl.logger.log(INFO, fl.fields, msg, args...)
}

func (fl *FieldLogger) Warn(msg string, args ...interface{}) {
	fl.logger.log(WARN, fl.fields, msg, args...)
}

func (fl *FieldLogger) Error(msg string, args ...interface{}) {
	fl.logger.log(ERROR, fl.fields, msg, args...)
}

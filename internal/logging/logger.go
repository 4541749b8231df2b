package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity of a log message.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// Logger defines a minimal printf-style logging contract so packages can
// depend on logging without knowing the destination.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

var (
	fileLoggerInstance *fileLogger
	fileLoggerOnce     sync.Once
)

// fileLogger writes structured lines to huskycat-debug.log in the user home.
type fileLogger struct {
	file      *os.File
	logger    *log.Logger
	level     LogLevel
	mu        sync.Mutex
	component string
}

func getFileLogger() *fileLogger {
	fileLoggerOnce.Do(func() {
		fileLoggerInstance = newFileLogger("", levelFromEnv())
	})
	return fileLoggerInstance
}

// NewComponentLogger creates a logger scoped to a specific component.
func NewComponentLogger(component string) Logger {
	base := getFileLogger()
	return &fileLogger{
		file:      base.file,
		logger:    base.logger,
		level:     base.level,
		component: component,
	}
}

func newFileLogger(component string, level LogLevel) *fileLogger {
	l := &fileLogger{level: level, component: component}

	home, err := os.UserHomeDir()
	if err != nil {
		return l
	}
	logPath := filepath.Join(home, "huskycat-debug.log")
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return l
	}
	l.file = file
	l.logger = log.New(file, "", 0) // formatted below
	return l
}

func levelFromEnv() LogLevel {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("HUSKYCAT_LOG_LEVEL"))) {
	case "debug":
		return DEBUG
	case "warn":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

func (l *fileLogger) log(level LogLevel, format string, args ...any) {
	if level < l.level || l.logger == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_, file, line, ok := runtime.Caller(2)
	if ok {
		file = filepath.Base(file)
	} else {
		file = "???"
		line = 0
	}

	// Format: 2025-09-30 12:34:56 [INFO] [Executor] file.go:123 - Message
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	component := l.component
	if component == "" {
		component = "HUSKYCAT"
	}
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("%s [%s] [%s] %s:%d - %s",
		timestamp, levelToString(level), component, file, line, message)
}

func (l *fileLogger) Debug(format string, args ...any) { l.log(DEBUG, format, args...) }
func (l *fileLogger) Info(format string, args ...any)  { l.log(INFO, format, args...) }
func (l *fileLogger) Warn(format string, args ...any)  { l.log(WARN, format, args...) }
func (l *fileLogger) Error(format string, args ...any) { l.log(ERROR, format, args...) }

func levelToString(level LogLevel) string {
	switch level {
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

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a logger that discards all output.
func Nop() Logger {
	return nopLogger{}
}

// OrNop returns logger when non-nil, otherwise a no-op logger.
func OrNop(logger Logger) Logger {
	if logger == nil {
		return Nop()
	}
	return logger
}

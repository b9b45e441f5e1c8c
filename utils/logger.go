package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// LogLevel enumerates severity tiers.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

func (l LogLevel) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "UNKNOWN"
}

// ParseLogLevel maps a config string ("debug", "INFO", …) to a LogLevel.
func ParseLogLevel(s string) (LogLevel, error) {
	for i, n := range levelNames {
		if strings.EqualFold(s, n) {
			return LogLevel(i), nil
		}
	}
	if strings.EqualFold(s, "warning") {
		return WARN, nil
	}
	return INFO, fmt.Errorf("unknown log level %q", s)
}

// Logger is a concurrency-safe, levelled logger shared by the capture
// pipeline and its collaborators.
type Logger struct {
	mu     sync.Mutex
	level  LogLevel
	inner  *log.Logger
	file   *os.File
	prefix string
	parent *Logger // prefixed loggers share the parent's sink and level
}

var (
	globalLogger *Logger
	logOnce      sync.Once
)

// InitLogger creates the singleton logger. Call once at startup.
func InitLogger(minLevel LogLevel, logFilePath string) *Logger {
	logOnce.Do(func() {
		var writers []io.Writer
		writers = append(writers, os.Stdout)

		var f *os.File
		if logFilePath != "" {
			var err error
			f, err = os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err == nil {
				writers = append(writers, f)
			} else {
				log.Printf("[WARN] could not open log file %s: %v\n", logFilePath, err)
			}
		}

		globalLogger = &Logger{
			level: minLevel,
			inner: log.New(io.MultiWriter(writers...), "", 0),
			file:  f,
		}
	})
	return globalLogger
}

// L returns the global logger, creating a stdout-only INFO logger if
// InitLogger has not been called.
func L() *Logger {
	return InitLogger(INFO, "")
}

// WithPrefix returns a logger that tags every line with component.
func (l *Logger) WithPrefix(component string) *Logger {
	root := l.root()
	p := component
	if l.prefix != "" {
		p = l.prefix + "/" + component
	}
	return &Logger{prefix: p, parent: root}
}

func (l *Logger) root() *Logger {
	if l.parent != nil {
		return l.parent
	}
	return l
}

// SetOutput redirects the logger; used by tests to capture output.
func (l *Logger) SetOutput(w io.Writer) {
	r := l.root()
	r.mu.Lock()
	r.inner = log.New(w, "", 0)
	r.mu.Unlock()
}

// SetLevel changes the minimum level.
func (l *Logger) SetLevel(lvl LogLevel) {
	r := l.root()
	r.mu.Lock()
	r.level = lvl
	r.mu.Unlock()
}

// Enabled reports whether lvl would be written.
func (l *Logger) Enabled(lvl LogLevel) bool {
	r := l.root()
	r.mu.Lock()
	defer r.mu.Unlock()
	return lvl >= r.level
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() {
	r := l.root()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file != nil {
		_ = r.file.Close()
		r.file = nil
	}
}

func (l *Logger) log(lvl LogLevel, format string, args ...any) {
	r := l.root()
	r.mu.Lock()
	if lvl < r.level {
		r.mu.Unlock()
		return
	}
	ts := time.Now().Format("2006-01-02 15:04:05.000")
	msg := fmt.Sprintf(format, args...)
	if l.prefix != "" {
		msg = l.prefix + ": " + msg
	}
	r.inner.Printf("[%s] %s  %s", lvl, ts, msg)
	r.mu.Unlock()

	if lvl == FATAL {
		os.Exit(1)
	}
}

func (l *Logger) Debug(f string, a ...any) { l.log(DEBUG, f, a...) }
func (l *Logger) Info(f string, a ...any)  { l.log(INFO, f, a...) }
func (l *Logger) Warn(f string, a ...any)  { l.log(WARN, f, a...) }
func (l *Logger) Error(f string, a ...any) { l.log(ERROR, f, a...) }
func (l *Logger) Fatal(f string, a ...any) { l.log(FATAL, f, a...) }

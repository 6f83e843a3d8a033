// Package logger writes "timestamp [LEVEL] message" lines to the console and
// a rotating file, and fans entries out to live subscribers.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel is a severity label as it appears in the log line.
type LogLevel string

const (
	Debug LogLevel = "DEBUG"
	Info  LogLevel = "INFO"
	Warn  LogLevel = "WARN"
	Error LogLevel = "ERROR"
)

// LogFileName is the rotating log file created by Init.
const LogFileName = "beepwatch.log"

// subscriberBuffer is how many entries a slow subscriber may lag before
// entries are dropped for it.
const subscriberBuffer = 100

// ordered by severity
var levels = []LogLevel{Debug, Info, Warn, Error}

// levelPriority ranks level by severity. Unknown levels rank as Info.
func levelPriority(level LogLevel) int {
	if i := slices.Index(levels, level); i >= 0 {
		return i
	}
	return slices.Index(levels, Info)
}

// ParseLevel maps "debug", "info", "warn"/"warning" or "error" (any case)
// to a LogLevel. Anything else yields Info and false.
func ParseLevel(level string) (LogLevel, bool) {
	s := strings.ToUpper(strings.TrimSpace(level))
	if s == "WARNING" {
		s = string(Warn)
	}
	if slices.Contains(levels, LogLevel(s)) {
		return LogLevel(s), true
	}
	return Info, false
}

// LogEntry is one log line as sent to subscribers and API clients.
type LogEntry struct {
	Timestamp string   `json:"timestamp"`
	Level     LogLevel `json:"level"`
	Message   string   `json:"message"`
}

type output struct {
	mu      sync.Mutex
	min     LogLevel
	console io.Writer
	file    *lumberjack.Logger
}

var std = &output{min: Info, console: os.Stdout}

var subscribers = struct {
	sync.Mutex
	set map[chan LogEntry]struct{}
}{set: make(map[chan LogEntry]struct{})}

func init() {
	log.SetFlags(0) // Log writes its own timestamp
	std.apply()
}

// apply points the standard logger at the enabled writers. Callers hold o.mu,
// except init.
func (o *output) apply() {
	var writers []io.Writer
	if o.console != nil {
		writers = append(writers, o.console)
	}
	if o.file != nil {
		writers = append(writers, o.file)
	}
	switch len(writers) {
	case 0:
		log.SetOutput(io.Discard)
	case 1:
		log.SetOutput(writers[0])
	default:
		log.SetOutput(io.MultiWriter(writers...))
	}
}

// SetLevel sets the minimum level written. Unknown values fall back to info.
func SetLevel(level string) {
	parsed, _ := ParseLevel(level)
	std.mu.Lock()
	std.min = parsed
	std.mu.Unlock()
	Infof("Log level set to: %s", parsed)
}

// Init adds a rotating log file in logDir, replacing any earlier one.
func Init(logDir string) {
	if err := os.MkdirAll(logDir, 0700); err != nil {
		log.Printf("Failed to create log directory: %v", err)
		return
	}

	std.mu.Lock()
	defer std.mu.Unlock()
	if std.file != nil {
		_ = std.file.Close()
	}
	std.file = &lumberjack.Logger{
		Filename:   filepath.Join(logDir, LogFileName),
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
	std.apply()
}

// SetConsole turns console output on or off. The terminal UI turns it off
// so log lines do not tear the display; the file keeps logging.
func SetConsole(enabled bool) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.console = nil
	if enabled {
		std.console = os.Stdout
	}
	std.apply()
}

// Close flushes and closes the log file, if any.
func Close() error {
	std.mu.Lock()
	defer std.mu.Unlock()
	if std.file == nil {
		return nil
	}
	err := std.file.Close()
	std.file = nil
	std.apply()
	return err
}

// GetLogDir returns the log file's directory, or "" before Init.
func GetLogDir() string {
	std.mu.Lock()
	defer std.mu.Unlock()
	if std.file == nil {
		return ""
	}
	return filepath.Dir(std.file.Filename)
}

// Subscribe returns a channel receiving every entry logged from now on.
func Subscribe() chan LogEntry {
	ch := make(chan LogEntry, subscriberBuffer)
	subscribers.Lock()
	subscribers.set[ch] = struct{}{}
	subscribers.Unlock()
	return ch
}

// Unsubscribe stops delivery to ch and closes it. Unknown channels are ignored.
func Unsubscribe(ch chan LogEntry) {
	subscribers.Lock()
	defer subscribers.Unlock()
	if _, ok := subscribers.set[ch]; ok {
		delete(subscribers.set, ch)
		close(ch)
	}
}

func broadcast(entry LogEntry) {
	subscribers.Lock()
	defer subscribers.Unlock()
	for ch := range subscribers.set {
		select {
		case ch <- entry:
		default:
		}
	}
}

// Log writes a message at level if it meets the configured minimum.
func Log(level LogLevel, format string, v ...interface{}) {
	std.mu.Lock()
	threshold := std.min
	std.mu.Unlock()
	if levelPriority(level) < levelPriority(threshold) {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().Format(time.RFC3339),
		Level:     level,
		Message:   fmt.Sprintf(format, v...),
	}
	log.Print(entry.String())
	broadcast(entry)
}

func Debugf(format string, v ...interface{}) { Log(Debug, format, v...) }
func Infof(format string, v ...interface{})  { Log(Info, format, v...) }
func Warnf(format string, v ...interface{})  { Log(Warn, format, v...) }
func Errorf(format string, v ...interface{}) { Log(Error, format, v...) }

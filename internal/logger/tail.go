package logger

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// String formats e the way it is written to the log.
func (e LogEntry) String() string {
	return e.Timestamp + " [" + string(e.Level) + "] " + e.Message
}

// ParseLine is the inverse of LogEntry.String. Lines in any other shape
// report false.
func ParseLine(line string) (LogEntry, bool) {
	ts, rest, ok := strings.Cut(line, " [")
	if !ok || ts == "" || strings.Contains(ts, " ") {
		return LogEntry{}, false
	}
	level, msg, ok := strings.Cut(rest, "] ")
	if !ok || level == "" {
		return LogEntry{}, false
	}
	return LogEntry{Timestamp: ts, Level: LogLevel(level), Message: msg}, true
}

// Recent returns up to n of the newest parseable entries of the log file in
// dir, oldest first. A missing file yields no entries.
func Recent(dir string, n int) ([]LogEntry, error) {
	entries := make([]LogEntry, 0, n)
	if n <= 0 {
		return entries, nil
	}

	f, err := os.Open(filepath.Join(dir, LogFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// ring buffer; next is the slot the following entry overwrites
	ring := make([]LogEntry, n)
	next, count := 0, 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		entry, ok := ParseLine(scanner.Text())
		if !ok {
			continue
		}
		ring[next] = entry
		next = (next + 1) % n
		count++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if count < n {
		return append(entries, ring[:count]...), nil
	}
	entries = append(entries, ring[next:]...)
	return append(entries, ring[:next]...), nil
}

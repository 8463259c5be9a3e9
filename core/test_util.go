package core

import (
	"fmt"
	"sync"
)

type LogEntry struct {
	Level   string
	Message string
	Args    []interface{}
}

// MemLogger keeps log entries in memory. For tests.
type MemLogger struct {
	mu      sync.Mutex
	entries []LogEntry
}

var _ Logger = (*MemLogger)(nil)

func NewMemLogger() *MemLogger {
	return &MemLogger{}
}

func (l *MemLogger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{Level: level, Message: msg, Args: args})
}

func (l *MemLogger) Debug(msg string, args ...interface{}) { l.log("debug", msg, args) }
func (l *MemLogger) Info(msg string, args ...interface{})  { l.log("info", msg, args) }
func (l *MemLogger) Warn(msg string, args ...interface{})  { l.log("warn", msg, args) }
func (l *MemLogger) Error(msg string, args ...interface{}) { l.log("error", msg, args) }

func (l *MemLogger) Fatal(msg string, args ...interface{}) {
	l.log("fatal", msg, args)
	panic(fmt.Sprintf("fatal: %s", msg))
}

// Entries returns the logged entries of the given level, or all of them when level is empty.
func (l *MemLogger) Entries(level string) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []LogEntry
	for _, e := range l.entries {
		if level == "" || e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

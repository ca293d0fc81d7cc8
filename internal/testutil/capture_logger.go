// Package testutil provides shared test helpers for clinlink.
package testutil

import (
	"sync"

	"github.com/clinlink/clinlink/internal/infrastructure/monitoring/logging"
)

// CaptureLogger implements logging.Logger and records every entry so tests
// can assert on logging behavior.
type CaptureLogger struct {
	mu      sync.Mutex
	entries []LogEntry
	with    []logging.Field
}

// LogEntry is one captured log record.
type LogEntry struct {
	Level   string
	Message string
	Fields  []logging.Field
}

// NewCaptureLogger creates an empty CaptureLogger.
func NewCaptureLogger() *CaptureLogger {
	return &CaptureLogger{}
}

func (l *CaptureLogger) log(level, msg string, fields []logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	all := make([]logging.Field, 0, len(l.with)+len(fields))
	all = append(all, l.with...)
	all = append(all, fields...)
	l.entries = append(l.entries, LogEntry{Level: level, Message: msg, Fields: all})
}

func (l *CaptureLogger) Debug(msg string, fields ...logging.Field) { l.log("debug", msg, fields) }
func (l *CaptureLogger) Info(msg string, fields ...logging.Field)  { l.log("info", msg, fields) }
func (l *CaptureLogger) Warn(msg string, fields ...logging.Field)  { l.log("warn", msg, fields) }
func (l *CaptureLogger) Error(msg string, fields ...logging.Field) { l.log("error", msg, fields) }
func (l *CaptureLogger) Fatal(msg string, fields ...logging.Field) { l.log("fatal", msg, fields) }

// With returns a child logger sharing the entry sink; the fields are
// attached to every subsequent entry.
func (l *CaptureLogger) With(fields ...logging.Field) logging.Logger {
	return &forwardingLogger{parent: l, with: append(append([]logging.Field{}, l.with...), fields...)}
}

// Named is a no-op for the capture logger; the name is not recorded.
func (l *CaptureLogger) Named(name string) logging.Logger { return l }

// Entries returns a copy of the captured entries.
func (l *CaptureLogger) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Last returns the most recent entry, or a zero LogEntry when empty.
func (l *CaptureLogger) Last() LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return LogEntry{}
	}
	return l.entries[len(l.entries)-1]
}

// HasMessage reports whether any entry at the given level carries the
// message.
func (l *CaptureLogger) HasMessage(level, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.Level == level && e.Message == msg {
			return true
		}
	}
	return false
}

// FieldValue returns the value of the named field on the first entry with
// the given message, or nil.
func (l *CaptureLogger) FieldValue(msg, key string) interface{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.Message != msg {
			continue
		}
		for _, f := range e.Fields {
			if f.Key == key {
				return f.Value
			}
		}
	}
	return nil
}

// forwardingLogger routes entries to a parent CaptureLogger with extra
// fields attached.
type forwardingLogger struct {
	parent *CaptureLogger
	with   []logging.Field
}

func (f *forwardingLogger) log(level, msg string, fields []logging.Field) {
	all := make([]logging.Field, 0, len(f.with)+len(fields))
	all = append(all, f.with...)
	all = append(all, fields...)
	f.parent.log(level, msg, all)
}

func (f *forwardingLogger) Debug(msg string, fields ...logging.Field) { f.log("debug", msg, fields) }
func (f *forwardingLogger) Info(msg string, fields ...logging.Field)  { f.log("info", msg, fields) }
func (f *forwardingLogger) Warn(msg string, fields ...logging.Field)  { f.log("warn", msg, fields) }
func (f *forwardingLogger) Error(msg string, fields ...logging.Field) { f.log("error", msg, fields) }
func (f *forwardingLogger) Fatal(msg string, fields ...logging.Field) { f.log("fatal", msg, fields) }

func (f *forwardingLogger) With(fields ...logging.Field) logging.Logger {
	return &forwardingLogger{parent: f.parent, with: append(append([]logging.Field{}, f.with...), fields...)}
}

func (f *forwardingLogger) Named(name string) logging.Logger { return f }

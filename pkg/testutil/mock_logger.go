// Package testutil holds test doubles shared by package tests.
package testutil

import (
	"context"
	"sync"

	"github.com/nimburion/keyset/pkg/observability/logger"
)

// MockLogger captures log entries for assertions. It is safe for concurrent use.
type MockLogger struct {
	mu   sync.Mutex
	logs []LogEntry
}

// LogEntry is a single captured entry. Fields include those added with With.
type LogEntry struct {
	Level  string
	Msg    string
	Fields map[string]any
}

// Debug records a debug-level entry.
func (m *MockLogger) Debug(msg string, args ...any) { m.record("debug", msg, args) }

// Info records an info-level entry.
func (m *MockLogger) Info(msg string, args ...any) { m.record("info", msg, args) }

// Warn records a warn-level entry.
func (m *MockLogger) Warn(msg string, args ...any) { m.record("warn", msg, args) }

// Error records an error-level entry.
func (m *MockLogger) Error(msg string, args ...any) { m.record("error", msg, args) }

// With returns a child that shares the capture buffer and adds args to each entry.
func (m *MockLogger) With(args ...any) logger.Logger {
	return &childLogger{parent: m, fields: append([]any{}, args...)}
}

// WithContext returns the logger unchanged.
func (m *MockLogger) WithContext(context.Context) logger.Logger {
	return m
}

// Entries returns a copy of the captured entries.
func (m *MockLogger) Entries() []LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LogEntry, len(m.logs))
	copy(out, m.logs)
	return out
}

// EntriesAt returns captured entries of the given level.
func (m *MockLogger) EntriesAt(level string) []LogEntry {
	var out []LogEntry
	for _, e := range m.Entries() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

func (m *MockLogger) record(level, msg string, args []any) {
	m.append(level, msg, args)
}

func (m *MockLogger) append(level, msg string, args []any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, LogEntry{Level: level, Msg: msg, Fields: argsToMap(args)})
}

type childLogger struct {
	parent *MockLogger
	fields []any
}

func (c *childLogger) Debug(msg string, args ...any) { c.log("debug", msg, args) }
func (c *childLogger) Info(msg string, args ...any)  { c.log("info", msg, args) }
func (c *childLogger) Warn(msg string, args ...any)  { c.log("warn", msg, args) }
func (c *childLogger) Error(msg string, args ...any) { c.log("error", msg, args) }

func (c *childLogger) With(args ...any) logger.Logger {
	return &childLogger{parent: c.parent, fields: append(append([]any{}, c.fields...), args...)}
}

func (c *childLogger) WithContext(context.Context) logger.Logger { return c }

func (c *childLogger) log(level, msg string, args []any) {
	c.parent.append(level, msg, append(append([]any{}, c.fields...), args...))
}

func argsToMap(args []any) map[string]any {
	fields := make(map[string]any)
	for i := 0; i < len(args)-1; i += 2 {
		if key, ok := args[i].(string); ok {
			fields[key] = args[i+1]
		}
	}
	return fields
}

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// LogEntry is one line of the engine's rolling operation log.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// oplog is a fixed-capacity ring of recent operations, kept for display.
type oplog struct {
	entries []LogEntry
	next    int
	full    bool
}

func newOplog(size int) *oplog {
	if size <= 0 {
		size = 1
	}
	return &oplog{entries: make([]LogEntry, size)}
}

func (l *oplog) add(entry LogEntry) {
	l.entries[l.next] = entry
	l.next = (l.next + 1) % len(l.entries)
	if l.next == 0 {
		l.full = true
	}
}

// recent returns up to n entries, oldest first.
func (l *oplog) recent(n int) []LogEntry {
	count := l.next
	if l.full {
		count = len(l.entries)
	}
	if n > count {
		n = count
	}
	out := make([]LogEntry, 0, n)
	start := l.next - n
	for i := 0; i < n; i++ {
		idx := (start + i + len(l.entries)) % len(l.entries)
		out = append(out, l.entries[idx])
	}
	return out
}

// logLocked writes to slog and to the oplog. Caller holds e.mu.
func (e *Engine) logLocked(level slog.Level, msg string, args ...any) {
	e.log.Log(context.Background(), level, msg, args...)

	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(args); i += 2 {
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	e.oplog.add(LogEntry{
		Time:    e.now(),
		Level:   strings.ToLower(level.String()),
		Message: b.String(),
	})
}

package capture

import (
	"sync"

	"github.com/suar-net/suar-playground/internal/model"
)

const DefaultLogSize = 1000

// Log is a bounded, oldest-first record of completed transactions. Once full,
// each append evicts the oldest entry.
type Log struct {
	mu      sync.RWMutex
	entries []model.RequestLogEntry
	start   int
	count   int
}

func NewLog(size int) *Log {
	if size <= 0 {
		size = DefaultLogSize
	}
	return &Log{entries: make([]model.RequestLogEntry, size)}
}

// Append stores e and reports whether an older entry was evicted.
func (l *Log) Append(e model.RequestLogEntry) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	size := len(l.entries)
	if l.count < size {
		l.entries[(l.start+l.count)%size] = e
		l.count++
		return false
	}
	l.entries[l.start] = e
	l.start = (l.start + 1) % size
	return true
}

// Entries returns a copy of the log, oldest first.
func (l *Log) Entries() []model.RequestLogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]model.RequestLogEntry, l.count)
	for i := 0; i < l.count; i++ {
		out[i] = l.entries[(l.start+i)%len(l.entries)]
	}
	return out
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}

func (l *Log) Cap() int {
	return len(l.entries)
}

func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make([]model.RequestLogEntry, len(l.entries))
	l.start, l.count = 0, 0
}

package logger

import (
	"encoding/json"
	"sync"
	"time"
)

// LogEntry represents a single log entry in the buffer
type LogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Logger    string                 `json:"logger,omitempty"`
	Message   string                 `json:"msg"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// RecentBuffer is a fixed-size ring of the latest JSON-encoded log lines.
// It is a zapcore.WriteSyncer target; each Write is expected to carry one entry.
type RecentBuffer struct {
	mu      sync.Mutex
	ring    []LogEntry
	next    int
	wrapped bool
	total   uint64
}

// NewRecentBuffer creates a ring holding at most size entries.
func NewRecentBuffer(size int) *RecentBuffer {
	if size <= 0 {
		size = 1
	}
	return &RecentBuffer{ring: make([]LogEntry, size)}
}

// Write decodes one JSON log line and stores it.
func (rb *RecentBuffer) Write(p []byte) (int, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(p, &raw); err != nil {
		return 0, err
	}

	entry := LogEntry{Fields: make(map[string]interface{})}
	for key, value := range raw {
		switch key {
		case "timestamp":
			if s, ok := value.(string); ok {
				entry.Timestamp, _ = time.Parse("2006-01-02T15:04:05.000Z0700", s)
			}
		case "level":
			entry.Level, _ = value.(string)
		case "logger":
			entry.Logger, _ = value.(string)
		case "msg":
			entry.Message, _ = value.(string)
		case "caller", "stacktrace":
		default:
			entry.Fields[key] = value
		}
	}

	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.ring[rb.next] = entry
	rb.next = (rb.next + 1) % len(rb.ring)
	if rb.next == 0 {
		rb.wrapped = true
	}
	rb.total++

	return len(p), nil
}

// Sync is a no-op; the ring lives in memory.
func (rb *RecentBuffer) Sync() error { return nil }

// GetRecentLogs returns up to limit newest entries, oldest first.
func (rb *RecentBuffer) GetRecentLogs(limit int) []LogEntry {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	count := rb.next
	start := 0
	if rb.wrapped {
		count = len(rb.ring)
		start = rb.next
	}
	if limit > 0 && limit < count {
		start += count - limit
		count = limit
	}

	logs := make([]LogEntry, 0, count)
	for i := 0; i < count; i++ {
		logs = append(logs, rb.ring[(start+i)%len(rb.ring)])
	}
	return logs
}

// Total returns how many entries were ever written.
func (rb *RecentBuffer) Total() uint64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.total
}

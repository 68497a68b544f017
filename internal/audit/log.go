// Package audit records the outcome of every crawl decision to a JSONL file
// so a run can be reviewed after the fact.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Outcomes a crawled identifier can end in.
const (
	OutcomeSaved         = "saved"
	OutcomeDuplicateID   = "duplicate_id"
	OutcomeDuplicatePair = "duplicate_pair"
	OutcomeNoDescription = "no_description"
	OutcomeDetailFailed  = "detail_failed"
)

// Entry is one audit record: what happened to one job identifier during a
// crawl pass.
type Entry struct {
	Time    time.Time `json:"time"`
	Source  string    `json:"source"`
	Query   string    `json:"query"`
	JobID   string    `json:"job_id"`
	Company string    `json:"company,omitempty"`
	Title   string    `json:"title,omitempty"`
	Outcome string    `json:"outcome"`
	Detail  string    `json:"detail,omitempty"`
}

// Logger appends entries to a JSONL file. Writes are best effort: an audit
// failure is logged and never fails the crawl.
type Logger struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex
}

// NewLogger creates an audit logger writing to path. An empty path disables
// auditing.
func NewLogger(path string, logger *slog.Logger) *Logger {
	return &Logger{path: path, logger: logger}
}

// Record appends one entry. Missing timestamps are filled in.
func (l *Logger) Record(entry Entry) {
	if l.path == "" {
		return
	}
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}

	line, err := json.Marshal(entry)
	if err != nil {
		l.logger.Warn("marshaling audit entry", "error", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		l.logger.Warn("opening audit log", "path", l.path, "error", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		l.logger.Warn("writing audit entry", "path", l.path, "error", err)
	}
}

// Load reads all entries from the JSONL file at path. Malformed lines are
// skipped rather than failing the whole load.
func Load(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading audit log: %w", err)
	}
	return entries, nil
}

package audit

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecordThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l := NewLogger(path, discardLogger())

	l.Record(Entry{
		Source: "linkedin", Query: "software engineer", JobID: "101",
		Company: "Acme", Title: "Backend Engineer", Outcome: OutcomeSaved,
	})
	l.Record(Entry{
		Source: "linkedin", Query: "software engineer", JobID: "102",
		Outcome: OutcomeDetailFailed, Detail: "retries exhausted",
	})

	entries, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("loaded %d entries, want 2", len(entries))
	}
	if entries[0].JobID != "101" || entries[0].Outcome != OutcomeSaved {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[1].Detail != "retries exhausted" {
		t.Errorf("second entry detail = %q", entries[1].Detail)
	}
	if entries[0].Time.IsZero() {
		t.Error("Record should stamp entries missing a timestamp")
	}
}

func TestRecordEmptyPathIsDisabled(t *testing.T) {
	l := NewLogger("", discardLogger())
	l.Record(Entry{JobID: "101", Outcome: OutcomeSaved}) // must not panic or write
}

func TestLoadSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	content := `{"job_id":"1","outcome":"saved","time":"2026-08-20T10:00:00Z"}
not json at all
{"job_id":"2","outcome":"detail_failed","time":"2026-08-20T10:01:00Z"}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	entries, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("loaded %d entries, want 2 (malformed line skipped)", len(entries))
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.jsonl"))
	if err == nil {
		t.Fatal("expected error for missing audit log")
	}
}

func TestRecordConcurrentWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l := NewLogger(path, discardLogger())

	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 25; j++ {
				l.Record(Entry{
					Source: "linkedin", JobID: "job", Outcome: OutcomeSaved,
					Time: time.Now(),
				})
			}
		}(i)
	}
	for i := 0; i < 4; i++ {
		<-done
	}

	entries, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 100 {
		t.Errorf("loaded %d entries, want 100 (no torn writes)", len(entries))
	}
}

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/beneyalraj/listing/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveJobsThenLoadIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	posted := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	jobs := []model.JobRecord{
		{
			SourceID:    "4012345678",
			Provider:    model.ProviderLinkedIn,
			Company:     "Acme Corp",
			Title:       "Backend Engineer",
			Location:    "Singapore",
			Level:       "Mid-Senior level",
			Description: "# Role\n\nBuild things.",
			PostedAt:    &posted,
		},
		{
			SourceID: "0b5a6d94-5c4e-4b2f-9c1a-7e8f90123456",
			Provider: model.ProviderCareersFuture,
			Company:  "Globex",
			Title:    "Data Engineer",
			Location: "Singapore",
		},
	}
	if err := s.SaveJobs(ctx, jobs); err != nil {
		t.Fatalf("SaveJobs: %v", err)
	}

	index, err := s.LoadIndex(ctx)
	if err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}
	if len(index.IDs) != 2 {
		t.Fatalf("expected 2 indexed IDs, got %d", len(index.IDs))
	}
	if _, ok := index.IDs["4012345678"]; !ok {
		t.Error("expected linkedin job ID in index")
	}
	if _, ok := index.Pairs[model.CompanyTitle{Company: "acme corp", Title: "backend engineer"}]; !ok {
		t.Error("expected normalized company/title pair in index")
	}
}

func TestLoadIndexEmptyStore(t *testing.T) {
	s := newTestStore(t)

	index, err := s.LoadIndex(context.Background())
	if err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}
	if len(index.IDs) != 0 || len(index.Pairs) != 0 {
		t.Errorf("expected empty index, got %d IDs and %d pairs", len(index.IDs), len(index.Pairs))
	}
}

func TestSaveJobsDuplicateIDIsSkipped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := []model.JobRecord{{
		SourceID: "dup-1", Provider: model.ProviderLinkedIn,
		Company: "Acme", Title: "Engineer", Description: "original",
	}}
	if err := s.SaveJobs(ctx, first); err != nil {
		t.Fatalf("first SaveJobs: %v", err)
	}

	second := []model.JobRecord{{
		SourceID: "dup-1", Provider: model.ProviderLinkedIn,
		Company: "Acme", Title: "Engineer", Description: "replacement",
	}}
	if err := s.SaveJobs(ctx, second); err != nil {
		t.Fatalf("second SaveJobs (duplicate): %v", err)
	}

	var description string
	err := s.db.QueryRow("SELECT description FROM jobs WHERE job_id = ?", "dup-1").Scan(&description)
	if err != nil {
		t.Fatalf("reading job back: %v", err)
	}
	if description != "original" {
		t.Errorf("duplicate insert overwrote the row, description = %q", description)
	}
}

func TestSaveJobsEmptySliceIsNoOp(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveJobs(context.Background(), nil); err != nil {
		t.Fatalf("SaveJobs(nil): %v", err)
	}
}

func TestPairIndexSkipsBlankCompanyOrTitle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	jobs := []model.JobRecord{{
		SourceID: "no-company", Provider: model.ProviderLinkedIn,
		Company: "", Title: "Engineer",
	}}
	if err := s.SaveJobs(ctx, jobs); err != nil {
		t.Fatalf("SaveJobs: %v", err)
	}

	index, err := s.LoadIndex(ctx)
	if err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}
	if len(index.IDs) != 1 {
		t.Errorf("expected 1 indexed ID, got %d", len(index.IDs))
	}
	if len(index.Pairs) != 0 {
		t.Errorf("blank company must not produce a pair entry, got %d", len(index.Pairs))
	}
}

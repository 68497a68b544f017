package model

import (
	"context"
	"time"
)

// Provider identifiers for the two job sources.
const (
	ProviderLinkedIn      = "linkedin"
	ProviderCareersFuture = "careersfuture"
)

// JobRecord is the unit handed to the job store: listing metadata merged with
// detail-fetch results and the (possibly enriched) description.
type JobRecord struct {
	SourceID    string     // identifier assigned by the source
	Company     string     // company name, empty if not extractable
	Title       string     // job title, empty if not extractable
	Location    string     // location string
	Level       string     // seniority level
	Description string     // markdown (or raw text when enrichment degraded)
	Provider    string     // ProviderLinkedIn or ProviderCareersFuture
	PostedAt    *time.Time // nullable (the guest API does not expose this)
}

// CrawlQuery drives one crawl pass per source.
type CrawlQuery struct {
	Search   string // search keywords
	Location string // location filter; ignored by the board source
}

// DedupIndex is a snapshot of what the store already holds, fetched once per
// crawl run. Read-only for the duration of that run; staleness across runs is
// accepted (at-least-once detection, reconciled by the store's conflict-ignore
// insert).
type DedupIndex struct {
	IDs   map[string]struct{}       // known source IDs
	Pairs map[CompanyTitle]struct{} // known normalized (company, title) pairs
}

// CompanyTitle is a normalized (lowercased, trimmed) company/title pair used
// to catch re-postings under a fresh source ID.
type CompanyTitle struct {
	Company string
	Title   string
}

// NewDedupIndex returns an empty index.
func NewDedupIndex() *DedupIndex {
	return &DedupIndex{
		IDs:   make(map[string]struct{}),
		Pairs: make(map[CompanyTitle]struct{}),
	}
}

// Crawler discovers job identifiers for a query and fetches full records.
type Crawler interface {
	// Source returns the provider identifier.
	Source() string
	// ListRefs pages through the source's listing endpoint and returns the
	// unique job identifiers discovered, in discovery order.
	ListRefs(ctx context.Context, query CrawlQuery) ([]string, error)
	// FetchDetail fetches the full record for one identifier. The returned
	// record's Description is raw text; enrichment happens downstream.
	FetchDetail(ctx context.Context, id string) (*JobRecord, error)
}

// JobStore persists crawled job records and exposes the dedup snapshot.
type JobStore interface {
	// LoadIndex returns the full set of stored IDs and normalized
	// company/title pairs.
	LoadIndex(ctx context.Context) (*DedupIndex, error)
	// SaveJobs writes a batch of records. Best-effort: records that already
	// exist are skipped, and callers do not retry failures.
	SaveJobs(ctx context.Context, jobs []JobRecord) error
	Close() error
}

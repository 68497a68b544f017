// Package pipeline owns the crawl pass for a single source:
// list → dedup → detail → dedup again → enrich → save.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/beneyalraj/listing/internal/audit"
	"github.com/beneyalraj/listing/internal/dedup"
	"github.com/beneyalraj/listing/internal/enrich"
	"github.com/beneyalraj/listing/internal/model"
)

// Runner crawls one source across its configured queries. Failures inside a
// pass degrade to skipped jobs; only context cancellation stops the run.
type Runner struct {
	Source    string
	queries   []model.CrawlQuery
	crawler   model.Crawler
	store     model.JobStore
	enricher  enrich.Enricher
	pairDedup bool
	audit     *audit.Logger
	logger    *slog.Logger
}

// NewRunner creates a runner wired with all its dependencies. pairDedup
// enables the company/title second dedup tier after detail fetch.
func NewRunner(
	queries []model.CrawlQuery,
	crawler model.Crawler,
	store model.JobStore,
	enricher enrich.Enricher,
	pairDedup bool,
	auditLog *audit.Logger,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		Source:    crawler.Source(),
		queries:   queries,
		crawler:   crawler,
		store:     store,
		enricher:  enricher,
		pairDedup: pairDedup,
		audit:     auditLog,
		logger:    logger,
	}
}

// Run executes one crawl pass over every query. The dedup index is loaded
// once and extended in memory as jobs are saved, so overlapping queries in
// the same pass cannot store the same job twice.
func (r *Runner) Run(ctx context.Context) error {
	index, err := r.store.LoadIndex(ctx)
	if err != nil {
		// A missing index means re-crawling known jobs, not losing data:
		// the store still rejects duplicate IDs on save.
		r.logger.Warn("loading dedup index failed, continuing with empty index",
			"source", r.Source, "error", err)
		index = model.NewDedupIndex()
	}

	var totalSaved int
	for _, query := range r.queries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		saved, err := r.runQuery(ctx, query, index)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Error("query pass failed",
				"source", r.Source, "query", query.Search, "error", err)
			continue
		}
		totalSaved += saved
	}
	r.logger.Info("crawl pass complete", "source", r.Source, "saved", totalSaved)
	return ctx.Err()
}

func (r *Runner) runQuery(ctx context.Context, query model.CrawlQuery, index *model.DedupIndex) (int, error) {
	refs, err := r.crawler.ListRefs(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("listing %s %q: %w", r.Source, query.Search, err)
	}

	fresh := dedup.FilterKnownIDs(refs, index)

	var saved []model.JobRecord
	for _, id := range fresh {
		if ctx.Err() != nil {
			break
		}

		rec, err := r.crawler.FetchDetail(ctx, id)
		if err != nil {
			r.logger.Warn("detail fetch failed, skipping job",
				"source", r.Source, "job_id", id, "error", err)
			r.record(query, audit.Entry{JobID: id, Outcome: audit.OutcomeDetailFailed, Detail: err.Error()})
			continue
		}

		if strings.TrimSpace(rec.Description) == "" {
			r.record(query, audit.Entry{
				JobID: id, Company: rec.Company, Title: rec.Title,
				Outcome: audit.OutcomeNoDescription,
			})
			continue
		}

		if r.pairDedup && dedup.IsKnownPair(rec, index) {
			r.record(query, audit.Entry{
				JobID: id, Company: rec.Company, Title: rec.Title,
				Outcome: audit.OutcomeDuplicatePair,
			})
			continue
		}

		rec.Description = r.enricher.Enrich(ctx, rec.Description)
		saved = append(saved, *rec)
	}

	for _, id := range refs {
		if _, known := index.IDs[id]; known {
			r.record(query, audit.Entry{JobID: id, Outcome: audit.OutcomeDuplicateID})
		}
	}

	if len(saved) > 0 {
		if err := r.store.SaveJobs(ctx, saved); err != nil {
			return 0, fmt.Errorf("saving %s %q: %w", r.Source, query.Search, err)
		}
	}

	for _, rec := range saved {
		index.IDs[rec.SourceID] = struct{}{}
		if pair, ok := dedup.NormalizePair(rec.Company, rec.Title); ok {
			index.Pairs[pair] = struct{}{}
		}
		r.record(query, audit.Entry{
			JobID: rec.SourceID, Company: rec.Company, Title: rec.Title,
			Outcome: audit.OutcomeSaved,
		})
	}

	r.logger.Info("query pass complete",
		"source", r.Source,
		"query", query.Search,
		"listed", len(refs),
		"new", len(fresh),
		"saved", len(saved),
	)
	return len(saved), nil
}

func (r *Runner) record(query model.CrawlQuery, entry audit.Entry) {
	entry.Source = r.Source
	entry.Query = query.Search
	r.audit.Record(entry)
}

// Package dedup decides which crawled items are genuinely new, comparing
// them against a per-run snapshot of what the store already holds.
package dedup

import (
	"strings"

	"github.com/beneyalraj/listing/internal/model"
)

// FilterKnownIDs drops refs whose identifier is already stored (tier 1).
// Order is preserved; refs are processed in discovery order downstream.
func FilterKnownIDs(refs []string, index *model.DedupIndex) []string {
	if index == nil || len(index.IDs) == 0 {
		return refs
	}
	fresh := make([]string, 0, len(refs))
	for _, ref := range refs {
		if _, known := index.IDs[ref]; known {
			continue
		}
		fresh = append(fresh, ref)
	}
	return fresh
}

// NormalizePair returns the normalized (company, title) key for pair-based
// dedup, and false when either side is blank. Such records cannot be
// pair-checked and are retained (the identifier check already ran).
func NormalizePair(company, title string) (model.CompanyTitle, bool) {
	c := strings.ToLower(strings.TrimSpace(company))
	t := strings.ToLower(strings.TrimSpace(title))
	if c == "" || t == "" {
		return model.CompanyTitle{}, false
	}
	return model.CompanyTitle{Company: c, Title: t}, true
}

// IsKnownPair reports whether the record's normalized company/title pair is
// already stored (tier 2). This catches re-postings under a fresh identifier.
// Records without a usable pair fail open.
func IsKnownPair(rec *model.JobRecord, index *model.DedupIndex) bool {
	if index == nil {
		return false
	}
	key, ok := NormalizePair(rec.Company, rec.Title)
	if !ok {
		return false
	}
	_, known := index.Pairs[key]
	return known
}

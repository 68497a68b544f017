package store

import (
	"context"

	"github.com/beneyalraj/listing/internal/model"
)

// NopStore is the store used in dry-run mode. Its index is always empty, so
// every job appears new, and saves are discarded.
type NopStore struct{}

func NewNopStore() *NopStore { return &NopStore{} }

func (s *NopStore) LoadIndex(ctx context.Context) (*model.DedupIndex, error) {
	return model.NewDedupIndex(), nil
}

func (s *NopStore) SaveJobs(ctx context.Context, jobs []model.JobRecord) error { return nil }

func (s *NopStore) Close() error { return nil }

package search

import (
	"context"

	"github.com/slipstream/slskbridge/internal/indexer/types"
)

// SearchService defines the interface for search operations used by handlers.
type SearchService interface {
	Search(ctx context.Context, criteria types.SearchCriteria) (*SearchResult, error)
	Delete(ctx context.Context, searchID string) error
}

var _ SearchService = (*Service)(nil)

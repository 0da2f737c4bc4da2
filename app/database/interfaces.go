package database

import (
	"context"
	"time"

	"github.com/grantpipe/grantpipe/app/ingest"
)

// QueryFilters narrows the call listing. Fields combine with logical AND;
// empty fields are ignored. Search goes through the full-text index, not a
// substring scan.
type QueryFilters struct {
	Status    string
	Source    string
	Relevance string
	Search    string
}

type CallRepository interface {
	// Upsert implements ingest.CallStore: atomic insert-or-merge keyed by
	// the unique dedup_key constraint.
	Upsert(ctx context.Context, call ingest.Call) (ingest.UpsertOutcome, error)

	GetCall(ctx context.Context, id string) (*Call, error)
	Query(ctx context.Context, filters QueryFilters, page, pageSize int, sortBy, sortOrder string) ([]Call, int, error)
	UpdateStatus(ctx context.Context, id string, status ingest.CallStatus) (bool, error)
	DeleteCall(ctx context.Context, id string) (bool, error)
	GetStats(ctx context.Context) (*Stats, error)
	GetCallCount(ctx context.Context) (int, error)

	// GetCallsMissingDescription feeds the detail-enrichment task.
	GetCallsMissingDescription(ctx context.Context, source string, limit int) ([]Call, error)
}

type SourceRepository interface {
	GetSource(ctx context.Context, name string) (*Source, error)
	GetSourceCount(ctx context.Context) (int, error)

	UpsertSource(ctx context.Context, name, url, format string, enabled bool) (string, error)
	UpdateFetchState(ctx context.Context, name string, nextFetch time.Time) error
}

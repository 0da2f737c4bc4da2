package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RawRecord is a single source record as handed over by a source adapter:
// an arbitrary key-value mapping whose shape varies by source and page.
type RawRecord map[string]any

type CallType string

const (
	CallTypeSubsidy CallType = "subsidy"
	CallTypePrize   CallType = "prize"
	CallTypeTender  CallType = "tender"
	CallTypeOther   CallType = "other"
)

type CallStatus string

const (
	StatusPending   CallStatus = "pending"
	StatusReviewed  CallStatus = "reviewed"
	StatusApplied   CallStatus = "applied"
	StatusDiscarded CallStatus = "discarded"
)

// ValidStatus reports whether s is one of the consumer workflow states.
func ValidStatus(s string) bool {
	switch CallStatus(s) {
	case StatusPending, StatusReviewed, StatusApplied, StatusDiscarded:
		return true
	}
	return false
}

type Relevance string

const (
	RelevanceVeryHigh Relevance = "very_high"
	RelevanceHigh     Relevance = "high"
	RelevanceMedium   Relevance = "medium"
	RelevanceLow      Relevance = "low"
)

// Call is the canonical grant/subsidy record produced by normalization.
// Status and CreatedAt are owned by the stored entity: the pipeline sets
// Status only on first insertion and never overwrites it on merge.
type Call struct {
	Title        string
	Issuer       string
	Type         CallType
	Description  string
	Budget       decimal.NullDecimal
	Deadline     *time.Time
	Country      string
	Region       string
	URL          string
	Requirements []string
	Tags         []string
	Status       CallStatus
	Source       string
	ExternalID   string
	DedupKey     string
	Relevance    Relevance
	PublishedAt  *time.Time

	// MatchedKeywords records which classifier keywords fired. Transient,
	// kept for logging only.
	MatchedKeywords []string
}

type UpsertOutcome int

const (
	OutcomeInserted UpsertOutcome = iota
	OutcomeUpdated
	OutcomeUnchanged
)

// CallStore is the persistence seam the pipeline writes through. The
// implementation must guarantee at-most-one entity per dedup key via an
// atomic conditional upsert, never read-then-write.
type CallStore interface {
	Upsert(ctx context.Context, call Call) (UpsertOutcome, error)
}

var (
	// ErrUnnormalizable marks a raw record from which nothing meaningful
	// could be derived (no usable title and no usable identifier).
	ErrUnnormalizable = errors.New("record is unnormalizable")

	// ErrConflict marks a concurrent-writer collision on the same dedup key.
	// The pipeline retries the upsert once before giving up on the record.
	ErrConflict = errors.New("persistence conflict")

	// ErrStorageUnavailable marks a connectivity-class storage failure.
	// Fatal for the whole batch.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

type RecordFailure struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// BatchResult summarizes one ingestion run. Counts cover every record of
// the submitted batch: Inserted + Updated + Unchanged + len(Failed) equals
// the batch size.
type BatchResult struct {
	BatchID   uuid.UUID       `json:"batch_id"`
	Source    string          `json:"source"`
	Inserted  int             `json:"inserted"`
	Updated   int             `json:"updated"`
	Unchanged int             `json:"unchanged"`
	Failed    []RecordFailure `json:"failed"`
}

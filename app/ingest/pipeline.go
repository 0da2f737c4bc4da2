package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

const (
	failureUnnormalizable = "unnormalizable"
	failureNotAttempted   = "not attempted"
	failureConflict       = "persistence conflict"
)

// Pipeline turns a batch of raw source records into stored canonical calls:
// normalize, classify, derive the dedup key, upsert. Records are processed
// independently; a bad record lands in the failure list and the batch moves
// on. Only connectivity-class storage failures abort the run.
//
// Pipelines are stateless and safe for concurrent batches; uniqueness under
// overlapping batches is enforced by the store's atomic upsert, not by
// in-process locking.
type Pipeline struct {
	normalizer *Normalizer
	classifier *Classifier
	store      CallStore
}

func NewPipeline(normalizer *Normalizer, classifier *Classifier, store CallStore) *Pipeline {
	return &Pipeline{
		normalizer: normalizer,
		classifier: classifier,
		store:      store,
	}
}

// Ingest runs the batch and reports per-batch outcome counts. A context
// deadline hit mid-batch still returns a valid result: records not reached
// are reported as failed with reason "not attempted". The returned error is
// non-nil only for storage-connectivity failures, which terminate the batch
// immediately.
func (p *Pipeline) Ingest(ctx context.Context, batch []RawRecord, sourceID string) (*BatchResult, error) {
	result := &BatchResult{
		BatchID: uuid.New(),
		Source:  sourceID,
	}

	for i, raw := range batch {
		if ctx.Err() != nil {
			p.markRemaining(result, i, len(batch))
			break
		}

		call, err := p.normalizer.Run(raw, sourceID)
		if err != nil {
			slog.Debug("Record normalization failed", "source", sourceID, "index", i, "error", err)
			result.Failed = append(result.Failed, RecordFailure{Index: i, Reason: failureUnnormalizable})
			continue
		}

		call.Relevance, call.MatchedKeywords = p.classifier.Run(call)
		call.DedupKey = BuildDedupKey(sourceID, call)

		outcome, err := p.upsertWithRetry(ctx, *call)
		if err != nil {
			if errors.Is(err, ErrStorageUnavailable) {
				return nil, fmt.Errorf("batch %s aborted: %w", result.BatchID, err)
			}
			reason := failureConflict
			if !errors.Is(err, ErrConflict) {
				reason = fmt.Sprintf("storage error: %v", err)
			}
			slog.Warn("Record upsert failed", "source", sourceID, "index", i, "dedup_key", call.DedupKey, "error", err)
			result.Failed = append(result.Failed, RecordFailure{Index: i, Reason: reason})
			continue
		}

		switch outcome {
		case OutcomeInserted:
			result.Inserted++
		case OutcomeUpdated:
			result.Updated++
		case OutcomeUnchanged:
			result.Unchanged++
		}
	}

	slog.Info("Batch completed",
		"source", sourceID,
		"batch_id", result.BatchID,
		"total", len(batch),
		"inserted", result.Inserted,
		"updated", result.Updated,
		"unchanged", result.Unchanged,
		"failed", len(result.Failed))

	return result, nil
}

// upsertWithRetry retries exactly once on a concurrent-writer conflict,
// re-submitting the same merge against the fresh stored row.
func (p *Pipeline) upsertWithRetry(ctx context.Context, call Call) (UpsertOutcome, error) {
	outcome, err := p.store.Upsert(ctx, call)
	if errors.Is(err, ErrConflict) {
		outcome, err = p.store.Upsert(ctx, call)
	}
	return outcome, err
}

func (p *Pipeline) markRemaining(result *BatchResult, from, total int) {
	for i := from; i < total; i++ {
		result.Failed = append(result.Failed, RecordFailure{Index: i, Reason: failureNotAttempted})
	}
	slog.Warn("Batch cut off before completion", "source", result.Source, "batch_id", result.BatchID, "not_attempted", total-from)
}

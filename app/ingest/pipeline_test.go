package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// fakeStore is an in-memory CallStore with the same merge semantics the
// real repository implements: keyed by dedup key, status and creation time
// preserved across merges, unchanged reported for identical payloads.
type fakeStore struct {
	calls    map[string]Call
	upserts  int
	failWith map[string]error // dedup key -> error to return (cleared after one hit)
	downErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		calls:    make(map[string]Call),
		failWith: make(map[string]error),
	}
}

func (s *fakeStore) Upsert(_ context.Context, call Call) (UpsertOutcome, error) {
	s.upserts++

	if s.downErr != nil {
		return 0, s.downErr
	}
	if err, ok := s.failWith[call.DedupKey]; ok {
		delete(s.failWith, call.DedupKey)
		return 0, err
	}

	existing, ok := s.calls[call.DedupKey]
	if !ok {
		call.Status = StatusPending
		s.calls[call.DedupKey] = call
		return OutcomeInserted, nil
	}

	merged := call
	merged.Status = existing.Status
	if mergeEqual(existing, merged) {
		return OutcomeUnchanged, nil
	}
	s.calls[call.DedupKey] = merged
	return OutcomeUpdated, nil
}

func mergeEqual(a, b Call) bool {
	return a.Title == b.Title && a.Issuer == b.Issuer && a.Description == b.Description &&
		a.URL == b.URL && a.Relevance == b.Relevance && a.Budget.Valid == b.Budget.Valid &&
		(!a.Budget.Valid || a.Budget.Decimal.Equal(b.Budget.Decimal))
}

func newTestPipeline(store CallStore) *Pipeline {
	return NewPipeline(NewNormalizer("España", "Nacional"), NewClassifier(), store)
}

func sampleBatch(n int) []RawRecord {
	batch := make([]RawRecord, 0, n)
	for i := 0; i < n; i++ {
		batch = append(batch, RawRecord{
			"titulo":             fmt.Sprintf("Ayudas al cine número %d", i),
			"numeroConvocatoria": fmt.Sprintf("C-%d", i),
			"presupuesto":        "10.000,00",
		})
	}
	return batch
}

func TestPipeline_Ingest_InsertsBatch(t *testing.T) {
	store := newFakeStore()
	pipeline := newTestPipeline(store)

	result, err := pipeline.Ingest(context.Background(), sampleBatch(5), "bdns")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if result.Inserted != 5 || result.Updated != 0 || result.Unchanged != 0 || len(result.Failed) != 0 {
		t.Errorf("Expected 5 inserted, got %+v", result)
	}
	if len(store.calls) != 5 {
		t.Errorf("Expected 5 stored calls, got %d", len(store.calls))
	}
}

func TestPipeline_Ingest_Idempotent(t *testing.T) {
	store := newFakeStore()
	pipeline := newTestPipeline(store)
	batch := sampleBatch(4)

	if _, err := pipeline.Ingest(context.Background(), batch, "bdns"); err != nil {
		t.Fatalf("First run failed: %v", err)
	}

	result, err := pipeline.Ingest(context.Background(), batch, "bdns")
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	if result.Inserted != 0 {
		t.Errorf("Second identical run must insert nothing, got %d inserted", result.Inserted)
	}
	if result.Updated+result.Unchanged != 4 {
		t.Errorf("Expected 4 updated/unchanged on re-run, got %+v", result)
	}
	if len(store.calls) != 4 {
		t.Errorf("Re-ingestion must not create entities, have %d", len(store.calls))
	}
}

func TestPipeline_Ingest_StatusPreserved(t *testing.T) {
	store := newFakeStore()
	pipeline := newTestPipeline(store)

	raw := RawRecord{"titulo": "Ayudas al documental", "numeroConvocatoria": "D-1"}
	if _, err := pipeline.Ingest(context.Background(), []RawRecord{raw}, "bdns"); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	// Consumer workflow moves the call on; re-ingestion must not reset it.
	stored := store.calls["bdns:D-1"]
	stored.Status = StatusReviewed
	store.calls["bdns:D-1"] = stored

	updated := RawRecord{"titulo": "Ayudas al documental (plazo ampliado)", "numeroConvocatoria": "D-1"}
	if _, err := pipeline.Ingest(context.Background(), []RawRecord{updated}, "bdns"); err != nil {
		t.Fatalf("Re-ingest failed: %v", err)
	}

	got := store.calls["bdns:D-1"]
	if got.Status != StatusReviewed {
		t.Errorf("Status must survive re-ingestion, got %q", got.Status)
	}
	if got.Title != "Ayudas al documental (plazo ampliado)" {
		t.Errorf("Fields must refresh on re-ingestion, got %q", got.Title)
	}
}

func TestPipeline_Ingest_PartialFailure(t *testing.T) {
	store := newFakeStore()
	pipeline := newTestPipeline(store)

	batch := sampleBatch(8)
	// Two records with no title and no identifier cannot be normalized.
	batch = append(batch, RawRecord{"presupuesto": "1,00"}, RawRecord{"plazo": "no aplica"})

	result, err := pipeline.Ingest(context.Background(), batch, "bdns")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(result.Failed) != 2 {
		t.Fatalf("Expected 2 failures, got %d", len(result.Failed))
	}
	for _, f := range result.Failed {
		if f.Reason != "unnormalizable" {
			t.Errorf("Expected reason 'unnormalizable', got %q", f.Reason)
		}
		if f.Index != 8 && f.Index != 9 {
			t.Errorf("Unexpected failed index %d", f.Index)
		}
	}
	if result.Inserted != 8 {
		t.Errorf("Expected 8 inserted, got %d", result.Inserted)
	}
}

func TestPipeline_Ingest_DedupWithinBatch(t *testing.T) {
	store := newFakeStore()
	pipeline := newTestPipeline(store)

	same := func() RawRecord {
		return RawRecord{"titulo": "Ayudas al cine", "numeroConvocatoria": "C-1"}
	}
	result, err := pipeline.Ingest(context.Background(), []RawRecord{same(), same(), same()}, "bdns")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(store.calls) != 1 {
		t.Errorf("Expected exactly one entity for a shared external ID, got %d", len(store.calls))
	}
	if result.Inserted != 1 || result.Unchanged != 2 {
		t.Errorf("Expected 1 inserted + 2 unchanged, got %+v", result)
	}
}

func TestPipeline_Ingest_ConflictRetriedOnce(t *testing.T) {
	store := newFakeStore()
	pipeline := newTestPipeline(store)

	store.failWith["bdns:C-0"] = ErrConflict

	result, err := pipeline.Ingest(context.Background(), sampleBatch(1), "bdns")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if result.Inserted != 1 || len(result.Failed) != 0 {
		t.Errorf("Conflict should be retried once and succeed, got %+v", result)
	}
	if store.upserts != 2 {
		t.Errorf("Expected 2 upsert attempts, got %d", store.upserts)
	}
}

func TestPipeline_Ingest_SecondConflictFailsRecord(t *testing.T) {
	persistent := &conflictStore{}
	result, err := NewPipeline(NewNormalizer("España", "Nacional"), NewClassifier(), persistent).
		Ingest(context.Background(), sampleBatch(1), "bdns")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(result.Failed) != 1 || result.Failed[0].Reason != "persistence conflict" {
		t.Errorf("Expected one 'persistence conflict' failure, got %+v", result)
	}
	if persistent.attempts != 2 {
		t.Errorf("Expected exactly one retry (2 attempts), got %d", persistent.attempts)
	}
}

type conflictStore struct{ attempts int }

func (s *conflictStore) Upsert(context.Context, Call) (UpsertOutcome, error) {
	s.attempts++
	return 0, ErrConflict
}

func TestPipeline_Ingest_StorageUnavailableAborts(t *testing.T) {
	store := newFakeStore()
	store.downErr = fmt.Errorf("dial tcp: %w", ErrStorageUnavailable)
	pipeline := newTestPipeline(store)

	_, err := pipeline.Ingest(context.Background(), sampleBatch(5), "bdns")
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("Expected ErrStorageUnavailable to propagate, got %v", err)
	}
	if store.upserts != 1 {
		t.Errorf("Batch must stop at the first connectivity failure, got %d attempts", store.upserts)
	}
}

func TestPipeline_Ingest_DeadlineMarksNotAttempted(t *testing.T) {
	store := newFakeStore()
	pipeline := newTestPipeline(store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := pipeline.Ingest(ctx, sampleBatch(3), "bdns")
	if err != nil {
		t.Fatalf("A cut-off batch must still return a valid result, got error: %v", err)
	}

	if len(result.Failed) != 3 {
		t.Fatalf("Expected all 3 records marked failed, got %d", len(result.Failed))
	}
	for _, f := range result.Failed {
		if f.Reason != "not attempted" {
			t.Errorf("Expected reason 'not attempted', got %q", f.Reason)
		}
	}
}

func TestPipeline_Ingest_UpdatedAtSemantics(t *testing.T) {
	// The fake store does not track timestamps; this exercises the merge
	// path that the repository maps onto updated_at = NOW().
	store := newFakeStore()
	pipeline := newTestPipeline(store)

	first := RawRecord{"titulo": "Ayudas al cine", "numeroConvocatoria": "C-9", "presupuesto": "1.000,00"}
	second := RawRecord{"titulo": "Ayudas al cine", "numeroConvocatoria": "C-9", "presupuesto": "2.000,00"}

	if _, err := pipeline.Ingest(context.Background(), []RawRecord{first}, "bdns"); err != nil {
		t.Fatal(err)
	}
	result, err := pipeline.Ingest(context.Background(), []RawRecord{second}, "bdns")
	if err != nil {
		t.Fatal(err)
	}

	if result.Updated != 1 {
		t.Errorf("Changed payload must report updated, got %+v", result)
	}
	if got := store.calls["bdns:C-9"].Budget.Decimal.String(); got != "2000" {
		t.Errorf("Expected refreshed budget 2000, got %s", got)
	}
}

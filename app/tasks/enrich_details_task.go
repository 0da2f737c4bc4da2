package tasks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/grantpipe/grantpipe/app/database"
	"github.com/grantpipe/grantpipe/app/ingest"
	"github.com/grantpipe/grantpipe/app/sources"
)

const enrichBatchLimit = 20

// EnrichDetailsTask fills in descriptions for calls whose listing rows
// carried none, by fetching each call's detail page and extracting its
// text. The enriched record goes back through the pipeline so the merge
// stays on the single upsert path and the relevance tier is recomputed
// against the new text.
type EnrichDetailsTask struct {
	Task
	SourceConfig *sources.Config
	httpClient   *http.Client
	extractor    *sources.DetailExtractor
	callRepo     database.CallRepository
	pipeline     *ingest.Pipeline
	userAgent    string
}

func NewEnrichDetailsTask(sourceName string, sourceConfig *sources.Config, httpClient *http.Client,
	extractor *sources.DetailExtractor, callRepo database.CallRepository,
	pipeline *ingest.Pipeline, userAgent string) *EnrichDetailsTask {
	return &EnrichDetailsTask{
		Task:         NewTask(TaskTypeEnrichDetails, sourceName),
		SourceConfig: sourceConfig,
		httpClient:   httpClient,
		extractor:    extractor,
		callRepo:     callRepo,
		pipeline:     pipeline,
		userAgent:    userAgent,
	}
}

func (t *EnrichDetailsTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.SourceConfig.Settings.EnrichDetails {
		slog.Debug("Detail enrichment disabled for source", "source", t.SourceName)
		return nil
	}

	calls, err := t.callRepo.GetCallsMissingDescription(ctx, t.SourceName, enrichBatchLimit)
	if err != nil {
		return fmt.Errorf("failed to get calls for enrichment: %w", err)
	}

	if len(calls) == 0 {
		slog.Debug("No calls need detail enrichment", "source", t.SourceName)
		return nil
	}

	successCount := 0
	errorCount := 0

	for _, call := range calls {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := t.enrichCall(ctx, call); err != nil {
			slog.Error("Failed to enrich call", "call_id", call.ID, "url", call.URL, "error", err)
			errorCount++
		} else {
			successCount++
		}

		// Source sites are slow public infrastructure; keep a polite pace.
		time.Sleep(500 * time.Millisecond)
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"source", t.SourceName,
		"duration", t.GetDuration(),
		"success", successCount,
		"errors", errorCount)

	return nil
}

func (t *EnrichDetailsTask) enrichCall(ctx context.Context, call database.Call) error {
	data, err := t.fetchDetailPage(ctx, call.URL)
	if err != nil {
		return fmt.Errorf("failed to fetch detail page: %w", err)
	}

	description, err := t.extractor.Run(data)
	if err != nil {
		return fmt.Errorf("failed to extract description: %w", err)
	}

	// Re-ingest rather than patching the row: field writes go through
	// normalization and the atomic upsert, nothing else.
	raw := rawRecordFromCall(call, description)
	result, err := t.pipeline.Ingest(ctx, []ingest.RawRecord{raw}, call.Source)
	if err != nil {
		return fmt.Errorf("failed to re-ingest enriched call: %w", err)
	}
	if len(result.Failed) > 0 {
		return fmt.Errorf("enriched call rejected: %s", result.Failed[0].Reason)
	}

	slog.Debug("Call enriched", "call_id", call.ID, "description_length", len(description))
	return nil
}

// rawRecordFromCall rebuilds a raw record carrying every stored field, so
// the merge refreshes the description without clobbering the rest.
func rawRecordFromCall(call database.Call, description string) ingest.RawRecord {
	raw := ingest.RawRecord{
		"titulo":      call.Title,
		"descripcion": description,
		"issuer":      call.Issuer,
		"tipo":        call.Type,
		"url":         call.URL,
		"pais":        call.Country,
		"region":      call.Region,
	}

	if call.ExternalID != "" {
		raw["external_id"] = call.ExternalID
	}
	if call.Budget.Valid {
		raw["presupuesto"] = call.Budget.Decimal.InexactFloat64()
	}
	if call.Deadline != nil {
		raw["fechaLimite"] = call.Deadline.Format("02/01/2006")
	}
	if call.PublishedAt != nil {
		raw["fecha_publicacion"] = call.PublishedAt.Format("2006-01-02")
	}
	if len(call.Requirements) > 0 {
		raw["requisitos"] = call.Requirements
	}
	if len(call.Tags) > 0 {
		raw["tags"] = call.Tags
	}

	return raw
}

func (t *EnrichDetailsTask) fetchDetailPage(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(t.SourceConfig.Settings.Timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "text/html") {
		return nil, fmt.Errorf("content type is not HTML: %s", contentType)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

package tasks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/grantpipe/grantpipe/app/database"
	"github.com/grantpipe/grantpipe/app/ingest"
	"github.com/grantpipe/grantpipe/app/sources"
)

// ProcessSourceTask fetches one source's listing payload, turns it into
// raw records through the source's adapter, and runs the batch through the
// ingestion pipeline.
type ProcessSourceTask struct {
	Task
	SourceConfig *sources.Config
	httpClient   *http.Client
	pipeline     *ingest.Pipeline
	sourceRepo   database.SourceRepository
	userAgent    string
}

func NewProcessSourceTask(sourceName string, sourceConfig *sources.Config, httpClient *http.Client,
	pipeline *ingest.Pipeline, sourceRepo database.SourceRepository, userAgent string) *ProcessSourceTask {
	return &ProcessSourceTask{
		Task:         NewTask(TaskTypeProcessSource, sourceName),
		SourceConfig: sourceConfig,
		httpClient:   httpClient,
		pipeline:     pipeline,
		sourceRepo:   sourceRepo,
		userAgent:    userAgent,
	}
}

func (t *ProcessSourceTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.SourceConfig.Settings.Enabled {
		slog.Debug("Source disabled, skipping", "source", t.SourceName)
		return nil
	}

	adapter, err := sources.AdapterFor(t.SourceConfig)
	if err != nil {
		return fmt.Errorf("failed to resolve adapter: %w", err)
	}

	data, err := t.fetchListing(ctx, t.SourceConfig.URL)
	if err != nil {
		return fmt.Errorf("failed to fetch source listing: %w", err)
	}

	records, err := adapter.Parse(data)
	if err != nil {
		return fmt.Errorf("failed to parse source payload: %w", err)
	}

	if max := t.SourceConfig.Settings.MaxRecords; max > 0 && len(records) > max {
		records = records[:max]
	}

	result, err := t.pipeline.Ingest(ctx, records, t.SourceName)
	if err != nil {
		return fmt.Errorf("failed to ingest batch: %w", err)
	}

	if err := t.updateFetchState(ctx); err != nil {
		return err
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"source", t.SourceName,
		"duration", t.GetDuration(),
		"batch_id", result.BatchID,
		"total", len(records),
		"inserted", result.Inserted,
		"updated", result.Updated,
		"unchanged", result.Unchanged,
		"failed", len(result.Failed))

	return nil
}

func (t *ProcessSourceTask) fetchListing(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(t.SourceConfig.Settings.Timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

func (t *ProcessSourceTask) updateFetchState(ctx context.Context) error {
	nextFetch := time.Now().UTC().Add(time.Duration(t.SourceConfig.Settings.RefreshInterval) * time.Second)

	if err := t.sourceRepo.UpdateFetchState(ctx, t.SourceName, nextFetch); err != nil {
		return fmt.Errorf("failed to update source fetch state: %w", err)
	}
	return nil
}

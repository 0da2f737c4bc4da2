package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/grantpipe/grantpipe/app/database"
	"github.com/grantpipe/grantpipe/app/sources"
)

// RegisterSourceTask mirrors a configuration file into the sources table so
// the scheduler has fetch state to consult. Runs once per source at startup.
type RegisterSourceTask struct {
	Task
	SourceConfig *sources.Config
	sourceRepo   database.SourceRepository
}

func NewRegisterSourceTask(sourceName string, sourceConfig *sources.Config,
	sourceRepo database.SourceRepository) *RegisterSourceTask {
	return &RegisterSourceTask{
		Task:         NewTask(TaskTypeRegisterSource, sourceName),
		SourceConfig: sourceConfig,
		sourceRepo:   sourceRepo,
	}
}

func (t *RegisterSourceTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	id, err := t.sourceRepo.UpsertSource(ctx, t.SourceConfig.Name, t.SourceConfig.URL,
		t.SourceConfig.Format, t.SourceConfig.Settings.Enabled)
	if err != nil {
		return fmt.Errorf("failed to register source: %w", err)
	}

	slog.Debug("Source registered", "source", t.SourceName, "source_id", id,
		"enabled", t.SourceConfig.Settings.Enabled)

	return nil
}

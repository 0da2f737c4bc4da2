package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

var _ SourceRepository = (*PostgresSourceRepository)(nil)

// PostgresSourceRepository handles database operations for registered
// ingestion sources.
type PostgresSourceRepository struct {
	db *DB
}

func NewSourceRepository(db *DB) *PostgresSourceRepository {
	return &PostgresSourceRepository{db: db}
}

// UpsertSource registers a configured source, refreshing its URL, format
// and enabled flag when the configuration changed.
func (r *PostgresSourceRepository) UpsertSource(ctx context.Context, name, url, format string, enabled bool) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO sources (name, url, format, enabled)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET
			url = EXCLUDED.url,
			format = EXCLUDED.format,
			enabled = EXCLUDED.enabled,
			updated_at = NOW()
		RETURNING id
	`, name, url, format, enabled).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert source: %w", classifyStorageError(err))
	}
	return id, nil
}

func (r *PostgresSourceRepository) GetSource(ctx context.Context, name string) (*Source, error) {
	var source Source
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, url, format, enabled, last_fetched_at, next_fetch_at,
		       created_at, updated_at
		FROM sources WHERE name = $1
	`, name).Scan(&source.ID, &source.Name, &source.URL, &source.Format,
		&source.Enabled, &source.LastFetchedAt, &source.NextFetchAt,
		&source.CreatedAt, &source.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", classifyStorageError(err))
	}
	return &source, nil
}

func (r *PostgresSourceRepository) GetSourceCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sources").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get source count: %w", classifyStorageError(err))
	}
	return count, nil
}

// UpdateFetchState records a completed fetch and schedules the next one.
func (r *PostgresSourceRepository) UpdateFetchState(ctx context.Context, name string, nextFetch time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sources
		SET last_fetched_at = NOW(), next_fetch_at = $2, updated_at = NOW()
		WHERE name = $1
	`, name, nextFetch)
	if err != nil {
		return fmt.Errorf("failed to update fetch state: %w", classifyStorageError(err))
	}
	return nil
}

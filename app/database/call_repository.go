package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/lib/pq"

	"github.com/grantpipe/grantpipe/app/ingest"
)

var _ CallRepository = (*PostgresCallRepository)(nil)
var _ ingest.CallStore = (*PostgresCallRepository)(nil)

// PostgresCallRepository handles database operations for stored calls.
type PostgresCallRepository struct {
	db *DB
}

func NewCallRepository(db *DB) *PostgresCallRepository {
	return &PostgresCallRepository{db: db}
}

// Upsert inserts a new call or merges an existing one in a single atomic
// statement keyed by the dedup_key unique index. status and created_at are
// deliberately absent from the update set: they belong to the stored
// entity, not to ingestion. The IS DISTINCT FROM guard makes byte-identical
// merges report unchanged without touching updated_at.
func (r *PostgresCallRepository) Upsert(ctx context.Context, call ingest.Call) (ingest.UpsertOutcome, error) {
	var inserted bool
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO calls (
			dedup_key, source, external_id, title, issuer, call_type,
			description, budget, deadline, country, region, url,
			requirements, tags, relevance, published_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (dedup_key) DO UPDATE SET
			source = EXCLUDED.source,
			external_id = EXCLUDED.external_id,
			title = EXCLUDED.title,
			issuer = EXCLUDED.issuer,
			call_type = EXCLUDED.call_type,
			description = EXCLUDED.description,
			budget = EXCLUDED.budget,
			deadline = EXCLUDED.deadline,
			country = EXCLUDED.country,
			region = EXCLUDED.region,
			url = EXCLUDED.url,
			requirements = EXCLUDED.requirements,
			tags = EXCLUDED.tags,
			relevance = EXCLUDED.relevance,
			published_at = EXCLUDED.published_at,
			updated_at = NOW()
		WHERE (calls.source, calls.external_id, calls.title, calls.issuer,
		       calls.call_type, calls.description, calls.budget, calls.deadline,
		       calls.country, calls.region, calls.url, calls.requirements,
		       calls.tags, calls.relevance, calls.published_at)
		  IS DISTINCT FROM
		      (EXCLUDED.source, EXCLUDED.external_id, EXCLUDED.title, EXCLUDED.issuer,
		       EXCLUDED.call_type, EXCLUDED.description, EXCLUDED.budget, EXCLUDED.deadline,
		       EXCLUDED.country, EXCLUDED.region, EXCLUDED.url, EXCLUDED.requirements,
		       EXCLUDED.tags, EXCLUDED.relevance, EXCLUDED.published_at)
		RETURNING (xmax = 0)
	`, call.DedupKey, call.Source, nullString(call.ExternalID), call.Title, call.Issuer,
		string(call.Type), call.Description, call.Budget, call.Deadline,
		call.Country, call.Region, call.URL,
		pq.Array(emptySlice(call.Requirements)), pq.Array(emptySlice(call.Tags)),
		nullString(string(call.Relevance)), call.PublishedAt).Scan(&inserted)

	if err == sql.ErrNoRows {
		// Conflict row already carried the identical merge payload.
		return ingest.OutcomeUnchanged, nil
	}
	if err != nil {
		return 0, classifyStorageError(err)
	}

	if inserted {
		return ingest.OutcomeInserted, nil
	}
	return ingest.OutcomeUpdated, nil
}

const callColumns = `
	id, dedup_key, source, COALESCE(external_id, ''), title, issuer, call_type,
	description, budget, deadline, country, region, url,
	COALESCE(requirements, '{}'), COALESCE(tags, '{}'),
	status, COALESCE(relevance, ''), published_at, created_at, updated_at`

// sortColumns whitelists the externally selectable sort fields.
var sortColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"deadline":   "deadline",
	"title":      "title",
	"relevance":  "relevance",
	"budget":     "budget",
}

// Query returns one page of calls matching the filters plus the total
// match count. Out-of-range pages return an empty slice with an accurate
// total; clamping the page number is the caller's concern.
func (r *PostgresCallRepository) Query(ctx context.Context, filters QueryFilters, page, pageSize int, sortBy, sortOrder string) ([]Call, int, error) {
	where, args := buildWhere(filters)

	column, ok := sortColumns[sortBy]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if strings.EqualFold(sortOrder, "asc") {
		direction = "ASC"
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM calls" + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count calls: %w", classifyStorageError(err))
	}

	offset := (page - 1) * pageSize
	listQuery := fmt.Sprintf(`SELECT %s FROM calls%s ORDER BY %s %s NULLS LAST LIMIT $%d OFFSET $%d`,
		callColumns, where, column, direction, len(args)+1, len(args)+2)
	args = append(args, pageSize, offset)

	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query calls: %w", classifyStorageError(err))
	}
	defer rows.Close()

	calls := make([]Call, 0, pageSize)
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan call row: %w", err)
		}
		calls = append(calls, call)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating call rows: %w", err)
	}

	return calls, total, nil
}

func buildWhere(filters QueryFilters) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	add := func(condition string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if filters.Status != "" {
		add("status = $%d", filters.Status)
	}
	if filters.Source != "" {
		add("source = $%d", filters.Source)
	}
	if filters.Relevance != "" {
		add("relevance = $%d", filters.Relevance)
	}
	if filters.Search != "" {
		add("search_vector @@ websearch_to_tsquery('spanish', $%d)", filters.Search)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func (r *PostgresCallRepository) GetCall(ctx context.Context, id string) (*Call, error) {
	row := r.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM calls WHERE id = $1", callColumns), id)

	call, err := scanCall(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get call: %w", classifyStorageError(err))
	}
	return &call, nil
}

// UpdateStatus performs the consumer-facing workflow transition. Returns
// false when no call with the given id exists.
func (r *PostgresCallRepository) UpdateStatus(ctx context.Context, id string, status ingest.CallStatus) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE calls SET status = $2, updated_at = NOW() WHERE id = $1
	`, id, string(status))
	if err != nil {
		return false, fmt.Errorf("failed to update call status: %w", classifyStorageError(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

// DeleteCall removes a record. Consumer-only operation: the ingestion
// pipeline never deletes.
func (r *PostgresCallRepository) DeleteCall(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM calls WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete call: %w", classifyStorageError(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

func (r *PostgresCallRepository) GetCallCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM calls").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get call count: %w", classifyStorageError(err))
	}
	return count, nil
}

func (r *PostgresCallRepository) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByStatus:    make(map[string]int),
		BySource:    make(map[string]int),
		ByRelevance: make(map[string]int),
	}

	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM calls").Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("failed to get total: %w", classifyStorageError(err))
	}

	groups := []struct {
		column string
		dest   map[string]int
	}{
		{"status", stats.ByStatus},
		{"source", stats.BySource},
		{"relevance", stats.ByRelevance},
	}

	for _, g := range groups {
		query := fmt.Sprintf(`
			SELECT COALESCE(%s, ''), COUNT(*) FROM calls GROUP BY %s
		`, g.column, g.column)

		rows, err := r.db.QueryContext(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to group by %s: %w", g.column, classifyStorageError(err))
		}

		for rows.Next() {
			var key string
			var count int
			if err := rows.Scan(&key, &count); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan %s stats: %w", g.column, err)
			}
			if key != "" {
				g.dest[key] = count
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("error iterating %s stats: %w", g.column, err)
		}
		rows.Close()
	}

	return stats, nil
}

// GetCallsMissingDescription returns calls that have a detail URL but no
// description yet, oldest first, for the enrichment task.
func (r *PostgresCallRepository) GetCallsMissingDescription(ctx context.Context, source string, limit int) ([]Call, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM calls
		WHERE source = $1 AND description = '' AND url <> ''
		ORDER BY created_at ASC
		LIMIT $2
	`, callColumns), source, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get calls missing description: %w", classifyStorageError(err))
	}
	defer rows.Close()

	var calls []Call
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan call row: %w", err)
		}
		calls = append(calls, call)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating call rows: %w", err)
	}

	return calls, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCall(row rowScanner) (Call, error) {
	var call Call
	err := row.Scan(
		&call.ID, &call.DedupKey, &call.Source, &call.ExternalID, &call.Title,
		&call.Issuer, &call.Type, &call.Description, &call.Budget, &call.Deadline,
		&call.Country, &call.Region, &call.URL,
		pq.Array(&call.Requirements), pq.Array(&call.Tags),
		&call.Status, &call.Relevance, &call.PublishedAt,
		&call.CreatedAt, &call.UpdatedAt,
	)
	return call, err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func emptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// classifyStorageError maps driver errors onto the pipeline's taxonomy:
// serialization/deadlock failures become ErrConflict (retried once by the
// pipeline), connection-class failures become ErrStorageUnavailable (fatal
// for the batch).
func classifyStorageError(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%w: %v", ingest.ErrConflict, err)
		}
		if pqErr.Code.Class() == "08" || pqErr.Code == "57P01" {
			return fmt.Errorf("%w: %v", ingest.ErrStorageUnavailable, err)
		}
		return err
	}

	var netErr net.Error
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ingest.ErrStorageUnavailable, err)
	}

	return err
}

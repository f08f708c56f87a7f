package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/raczniakservices/HVAC/internal/domain"
	"github.com/raczniakservices/HVAC/internal/repository"
)

// Repository implements ActivityRepository for ClickHouse
type Repository struct {
	client *Client
	log    *zap.Logger
}

// NewRepository creates a new ClickHouse repository
func NewRepository(client *Client, log *zap.Logger) *Repository {
	return &Repository{
		client: client,
		log:    log,
	}
}

// InitSchema initializes the lead_activity table with ReplacingMergeTree engine
func (r *Repository) InitSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS lead_activity (
		activity_id String,
		event_id Int64,
		kind LowCardinality(String),
		source LowCardinality(String),
		owner LowCardinality(String),
		next_step LowCardinality(String),
		outcome LowCardinality(String),
		lead_created_at Int64,
		timestamp Int64,
		response_seconds Int64,
		processed_at DateTime64(3) DEFAULT now64(3),
		version UInt64
	) ENGINE = ReplacingMergeTree(version)
	PRIMARY KEY (activity_id)
	ORDER BY (activity_id, timestamp)
	PARTITION BY toYYYYMM(toDateTime(timestamp))
	SETTINGS index_granularity = 8192
	`

	if err := r.client.Conn().Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create lead_activity table: %w", err)
	}

	r.log.Info("ClickHouse schema initialized successfully")
	return nil
}

// InsertBatch inserts a batch of activities into ClickHouse
func (r *Repository) InsertBatch(ctx context.Context, activities []*domain.Activity) (int, error) {
	if len(activities) == 0 {
		return 0, nil
	}

	batch, err := r.client.Conn().PrepareBatch(ctx, "INSERT INTO lead_activity")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare batch: %w", err)
	}

	insertedCount := 0
	for _, a := range activities {
		if a.Version == 0 {
			a.Version = uint64(time.Now().UnixNano())
		}
		if a.ProcessedAt.IsZero() {
			a.ProcessedAt = time.Now().UTC()
		}

		err := batch.Append(
			a.ActivityID,
			a.EventID,
			a.Kind,
			a.Source,
			a.Owner,
			a.NextStep,
			a.Outcome,
			a.LeadCreatedAt,
			a.Timestamp,
			a.ResponseSeconds,
			a.ProcessedAt,
			a.Version,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to append activity to batch: %w", err)
		}
		insertedCount++
	}

	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("failed to send batch: %w", err)
	}

	return insertedCount, nil
}

// Ping checks if the ClickHouse connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Conn().Ping(ctx)
}

// Close closes the ClickHouse connection
func (r *Repository) Close() error {
	return r.client.Close()
}

// groupExpr returns the select and group expressions for a grouping
func groupExpr(groupBy string) (selectField, groupField, orderBy string, err error) {
	switch groupBy {
	case repository.GroupByOutcome:
		return "outcome", "outcome", "ORDER BY total_count DESC", nil
	case repository.GroupBySource:
		return "source", "source", "ORDER BY total_count DESC", nil
	case repository.GroupByOwner:
		return "if(owner = '', 'unassigned', owner)", "owner", "ORDER BY total_count DESC", nil
	case repository.GroupByDay:
		return "formatDateTime(toStartOfDay(toDateTime(timestamp)), '%Y-%m-%d')",
			"toStartOfDay(toDateTime(timestamp))", "ORDER BY group_value ASC", nil
	}
	return "", "", "", fmt.Errorf("unsupported group_by value: %s (supported: outcome, source, owner, day)", groupBy)
}

// GetMetrics aggregates time-to-outcome over outcome_set activities. Each
// lead counts once, using its latest outcome in the window.
func (r *Repository) GetMetrics(ctx context.Context, query repository.MetricsQuery) (*repository.MetricsResult, error) {
	result := &repository.MetricsResult{
		Groups: []repository.MetricsGroupResult{},
	}

	source := `
		(SELECT
			event_id,
			argMax(source, timestamp) AS source,
			argMax(owner, timestamp) AS owner,
			argMax(outcome, timestamp) AS outcome,
			argMax(response_seconds, timestamp) AS response_seconds,
			max(timestamp) AS timestamp
		FROM lead_activity FINAL
		WHERE kind = ? AND timestamp >= ? AND timestamp <= ? AND response_seconds >= 0
		GROUP BY event_id)
	`
	args := []interface{}{string(domain.ActivityOutcomeSet), query.From, query.To}

	overallQuery := fmt.Sprintf(`
		SELECT
			count() AS total_count,
			ifNotFinite(avg(response_seconds), 0) AS avg_response
		FROM %s
	`, source)

	row := r.client.Conn().QueryRow(ctx, overallQuery, args...)
	if err := row.Scan(&result.TotalCount, &result.AvgResponseSeconds); err != nil {
		return nil, fmt.Errorf("failed to query overall metrics: %w", err)
	}

	if query.GroupBy == "" {
		return result, nil
	}

	selectField, groupField, orderBy, err := groupExpr(query.GroupBy)
	if err != nil {
		return nil, err
	}

	groupedQuery := fmt.Sprintf(`
		SELECT
			%s AS group_value,
			count() AS total_count,
			ifNotFinite(avg(response_seconds), 0) AS avg_response
		FROM %s
		GROUP BY %s
		%s
	`, selectField, source, groupField, orderBy)

	rows, err := r.client.Conn().Query(ctx, groupedQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query grouped metrics: %w", err)
	}
	defer func(rows driver.Rows) {
		if err := rows.Close(); err != nil {
			r.log.Error("Failed to close grouped metrics rows", zap.Error(err))
		}
	}(rows)

	for rows.Next() {
		var group repository.MetricsGroupResult
		if err := rows.Scan(&group.GroupValue, &group.TotalCount, &group.AvgResponseSeconds); err != nil {
			return nil, fmt.Errorf("failed to scan grouped metrics row: %w", err)
		}
		result.Groups = append(result.Groups, group)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating grouped metrics rows: %w", err)
	}

	return result, nil
}

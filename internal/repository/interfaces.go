package repository

import (
	"context"
	"time"

	"github.com/raczniakservices/HVAC/internal/domain"
)

const (
	// DefaultListLimit is used when a caller gives no usable limit.
	DefaultListLimit = 50
	// MaxListLimit caps a single list call.
	MaxListLimit = 200
)

// ClampLimit forces limit into [1, MaxListLimit].
func ClampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// MutateFunc edits an event inside an update transaction. Returning an error
// rolls the transaction back.
type MutateFunc func(e *domain.Event) error

// EventRepository defines the interface for the lead event store
type EventRepository interface {
	// InitSchema creates or migrates the events table
	InitSchema(ctx context.Context) error

	// Create inserts a new event and assigns its id
	Create(ctx context.Context, event *domain.Event) error

	// Get returns one event or domain.ErrNotFound
	Get(ctx context.Context, id int64) (*domain.Event, error)

	// List returns the newest events first, limit is clamped to [1, MaxListLimit]
	List(ctx context.Context, limit int) ([]*domain.Event, error)

	// Update applies mutate to the stored event in one transaction
	Update(ctx context.Context, id int64, mutate MutateFunc) (*domain.Event, error)

	// Delete removes one event. Without confirmUnresolved an event with no
	// outcome is refused with *domain.ConflictError.
	Delete(ctx context.Context, id int64, confirmUnresolved bool) (*domain.Event, error)

	// DeleteAll removes every event and returns how many were removed
	DeleteAll(ctx context.Context, confirmUnresolved bool) (int64, error)

	// UpsertByCallSid merges a provider callback into the event for its call,
	// inserting one created at now when none exists. created reports an insert.
	UpsertByCallSid(ctx context.Context, report domain.CallReport, now time.Time) (event *domain.Event, created bool, err error)

	// Ping checks if the database connection is alive
	Ping(ctx context.Context) error

	// Close closes the repository and releases resources
	Close() error
}

// MetricsQuery selects outcome activities in [From, To] (unix seconds)
type MetricsQuery struct {
	From    int64
	To      int64
	GroupBy string
}

// MetricsGroupResult represents aggregated response metrics for one group
type MetricsGroupResult struct {
	GroupValue         string
	TotalCount         uint64
	AvgResponseSeconds float64
}

// MetricsResult represents the result of a response-time query
type MetricsResult struct {
	TotalCount         uint64
	AvgResponseSeconds float64
	Groups             []MetricsGroupResult
}

// Supported group_by values for response-time reports.
const (
	GroupByOutcome = "outcome"
	GroupBySource  = "source"
	GroupByOwner   = "owner"
	GroupByDay     = "day"
)

// ValidGroupBy reports whether g is empty or a supported grouping.
func ValidGroupBy(g string) bool {
	switch g {
	case "", GroupByOutcome, GroupBySource, GroupByOwner, GroupByDay:
		return true
	}
	return false
}

// ActivityRepository defines the interface for the lead activity ledger
type ActivityRepository interface {
	// InsertBatch inserts a batch of activities into the ledger
	InsertBatch(ctx context.Context, activities []*domain.Activity) (int, error)

	// InitSchema initializes the ledger schema
	InitSchema(ctx context.Context) error

	// Ping checks if the database connection is alive
	Ping(ctx context.Context) error

	// Close closes the repository and releases resources
	Close() error

	// GetMetrics aggregates time-to-outcome over the query window
	GetMetrics(ctx context.Context, query MetricsQuery) (*MetricsResult, error)
}

package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/raczniakservices/HVAC/internal/domain"
	"github.com/raczniakservices/HVAC/internal/repository"
)

// Repository implements repository.EventRepository on SQLite
type Repository struct {
	client *Client
	log    *zap.Logger
}

// NewRepository creates a new SQLite event repository
func NewRepository(client *Client, log *zap.Logger) *Repository {
	return &Repository{
		client: client,
		log:    log,
	}
}

func (r *Repository) db(ctx context.Context) *gorm.DB {
	return r.client.DB().WithContext(ctx)
}

// InitSchema creates the events table and its indexes
func (r *Repository) InitSchema(ctx context.Context) error {
	if err := r.db(ctx).AutoMigrate(&domain.Event{}); err != nil {
		return fmt.Errorf("failed to migrate events table: %w", err)
	}

	r.log.Info("SQLite schema initialized successfully")
	return nil
}

// Create inserts event and fills in its id
func (r *Repository) Create(ctx context.Context, event *domain.Event) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if err := r.db(ctx).Create(event).Error; err != nil {
		return domain.NewStorageError("create", err)
	}
	return nil
}

// Get returns the event with the given id
func (r *Repository) Get(ctx context.Context, id int64) (*domain.Event, error) {
	return findEvent(r.db(ctx), id)
}

func findEvent(tx *gorm.DB, id int64) (*domain.Event, error) {
	var event domain.Event
	if err := tx.First(&event, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.NewStorageError("get", err)
	}
	return &event, nil
}

// List returns up to limit events, newest first
func (r *Repository) List(ctx context.Context, limit int) ([]*domain.Event, error) {
	events := make([]*domain.Event, 0)
	err := r.db(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(repository.ClampLimit(limit)).
		Find(&events).Error
	if err != nil {
		return nil, domain.NewStorageError("list", err)
	}
	return events, nil
}

// Update loads, mutates and saves the event in one transaction
func (r *Repository) Update(ctx context.Context, id int64, mutate repository.MutateFunc) (*domain.Event, error) {
	var updated *domain.Event
	err := r.db(ctx).Transaction(func(tx *gorm.DB) error {
		event, err := findEvent(tx, id)
		if err != nil {
			return err
		}
		if err := mutate(event); err != nil {
			return err
		}
		if err := tx.Save(event).Error; err != nil {
			return err
		}
		updated = event
		return nil
	})
	if err != nil {
		return nil, domain.NewStorageError("update", err)
	}
	return updated, nil
}

// Delete removes one event, refusing unresolved leads unless confirmed
func (r *Repository) Delete(ctx context.Context, id int64, confirmUnresolved bool) (*domain.Event, error) {
	var deleted *domain.Event
	err := r.db(ctx).Transaction(func(tx *gorm.DB) error {
		event, err := findEvent(tx, id)
		if err != nil {
			return err
		}
		if !event.Resolved() && !confirmUnresolved {
			return &domain.ConflictError{Unresolved: 1}
		}
		if err := tx.Delete(&domain.Event{}, "id = ?", id).Error; err != nil {
			return err
		}
		deleted = event
		return nil
	})
	if err != nil {
		return nil, domain.NewStorageError("delete", err)
	}
	return deleted, nil
}

// DeleteAll removes every event, refusing when any is unresolved unless confirmed
func (r *Repository) DeleteAll(ctx context.Context, confirmUnresolved bool) (int64, error) {
	var removed int64
	err := r.db(ctx).Transaction(func(tx *gorm.DB) error {
		var unresolved int64
		if err := tx.Model(&domain.Event{}).Where("outcome IS NULL").Count(&unresolved).Error; err != nil {
			return err
		}
		if unresolved > 0 && !confirmUnresolved {
			return &domain.ConflictError{Unresolved: unresolved}
		}

		res := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&domain.Event{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, domain.NewStorageError("delete all", err)
	}

	r.log.Info("Deleted all events", zap.Int64("count", removed))
	return removed, nil
}

// UpsertByCallSid merges report into the event for its call. Reports without
// a well-formed CallSid cannot be correlated and always insert.
func (r *Repository) UpsertByCallSid(ctx context.Context, report domain.CallReport, now time.Time) (*domain.Event, bool, error) {
	var (
		event   *domain.Event
		created bool
	)
	err := r.db(ctx).Transaction(func(tx *gorm.DB) error {
		if report.Correlated() {
			var existing domain.Event
			err := tx.Where("call_sid = ?", report.Sid()).First(&existing).Error
			switch {
			case err == nil:
				existing.ApplyCallReport(report)
				if err := tx.Save(&existing).Error; err != nil {
					return err
				}
				event = &existing
				return nil
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return err
			}
		}

		event = domain.NewEventFromCall(report, now)
		if err := tx.Create(event).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, domain.NewStorageError("upsert", err)
	}
	return event, created, nil
}

// Ping checks if the SQLite connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}

// Close closes the SQLite connection
func (r *Repository) Close() error {
	return r.client.Close()
}

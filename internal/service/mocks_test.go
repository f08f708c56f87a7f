package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/raczniakservices/HVAC/internal/domain"
	"github.com/raczniakservices/HVAC/internal/repository"
)

// MockActivityPublisher is a mock implementation of queue.ActivityPublisher
type MockActivityPublisher struct {
	mock.Mock
}

func (m *MockActivityPublisher) PublishActivity(ctx context.Context, activity *domain.Activity) error {
	args := m.Called(ctx, activity)
	return args.Error(0)
}

// MockEventRepository is a mock implementation of repository.EventRepository.
// Update runs the mutation against a copy of the event it is told to return.
type MockEventRepository struct {
	mock.Mock
}

func (m *MockEventRepository) InitSchema(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockEventRepository) Create(ctx context.Context, event *domain.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventRepository) Get(ctx context.Context, id int64) (*domain.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Event), args.Error(1)
}

func (m *MockEventRepository) List(ctx context.Context, limit int) ([]*domain.Event, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Event), args.Error(1)
}

func (m *MockEventRepository) Update(ctx context.Context, id int64, mutate repository.MutateFunc) (*domain.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	e := args.Get(0).(*domain.Event).Clone()
	if err := mutate(e); err != nil {
		return nil, err
	}
	return e, args.Error(1)
}

func (m *MockEventRepository) Delete(ctx context.Context, id int64, confirmUnresolved bool) (*domain.Event, error) {
	args := m.Called(ctx, id, confirmUnresolved)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Event), args.Error(1)
}

func (m *MockEventRepository) DeleteAll(ctx context.Context, confirmUnresolved bool) (int64, error) {
	args := m.Called(ctx, confirmUnresolved)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockEventRepository) UpsertByCallSid(ctx context.Context, report domain.CallReport, now time.Time) (*domain.Event, bool, error) {
	args := m.Called(ctx, report, now)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*domain.Event), args.Bool(1), args.Error(2)
}

func (m *MockEventRepository) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockEventRepository) Close() error {
	return m.Called().Error(0)
}

// MockActivityRepository is a mock implementation of repository.ActivityRepository
type MockActivityRepository struct {
	mock.Mock
}

func (m *MockActivityRepository) InsertBatch(ctx context.Context, activities []*domain.Activity) (int, error) {
	args := m.Called(ctx, activities)
	return args.Int(0), args.Error(1)
}

func (m *MockActivityRepository) InitSchema(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockActivityRepository) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockActivityRepository) Close() error {
	return m.Called().Error(0)
}

func (m *MockActivityRepository) GetMetrics(ctx context.Context, query repository.MetricsQuery) (*repository.MetricsResult, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.MetricsResult), args.Error(1)
}

// memRepository is a small in-memory event store for lifecycle scenarios.
type memRepository struct {
	mu     sync.Mutex
	nextID int64
	events map[int64]*domain.Event
}

func newMemRepository() *memRepository {
	return &memRepository{events: map[int64]*domain.Event{}}
}

func (r *memRepository) InitSchema(context.Context) error { return nil }
func (r *memRepository) Ping(context.Context) error       { return nil }
func (r *memRepository) Close() error                     { return nil }

func (r *memRepository) Create(_ context.Context, e *domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	e.ID = r.nextID
	r.events[e.ID] = e.Clone()
	return nil
}

func (r *memRepository) Get(_ context.Context, id int64) (*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return e.Clone(), nil
}

func (r *memRepository) List(_ context.Context, limit int) ([]*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Event, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit = repository.ClampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepository) Update(_ context.Context, id int64, mutate repository.MutateFunc) (*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := e.Clone()
	if err := mutate(c); err != nil {
		return nil, err
	}
	r.events[id] = c
	return c.Clone(), nil
}

func (r *memRepository) Delete(_ context.Context, id int64, confirm bool) (*domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !e.Resolved() && !confirm {
		return nil, &domain.ConflictError{Unresolved: 1}
	}
	delete(r.events, id)
	return e, nil
}

func (r *memRepository) DeleteAll(_ context.Context, confirm bool) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var unresolved int64
	for _, e := range r.events {
		if !e.Resolved() {
			unresolved++
		}
	}
	if unresolved > 0 && !confirm {
		return 0, &domain.ConflictError{Unresolved: unresolved}
	}
	n := int64(len(r.events))
	r.events = map[int64]*domain.Event{}
	return n, nil
}

func (r *memRepository) UpsertByCallSid(_ context.Context, report domain.CallReport, now time.Time) (*domain.Event, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if report.Correlated() {
		for _, e := range r.events {
			if e.CallSid != nil && *e.CallSid == report.Sid() {
				e.ApplyCallReport(report)
				return e.Clone(), false, nil
			}
		}
	}
	e := domain.NewEventFromCall(report, now)
	r.nextID++
	e.ID = r.nextID
	r.events[e.ID] = e
	return e.Clone(), true, nil
}

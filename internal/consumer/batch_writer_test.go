package consumer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/raczniakservices/HVAC/internal/domain"
	"github.com/raczniakservices/HVAC/internal/repository"
)

// MockActivityRepository is a mock implementation of repository.ActivityRepository
type MockActivityRepository struct {
	mock.Mock
}

func (m *MockActivityRepository) InsertBatch(ctx context.Context, activities []*domain.Activity) (int, error) {
	args := m.Called(ctx, activities)
	return args.Int(0), args.Error(1)
}

func (m *MockActivityRepository) InitSchema(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockActivityRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockActivityRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockActivityRepository) GetMetrics(ctx context.Context, query repository.MetricsQuery) (*repository.MetricsResult, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.MetricsResult), args.Error(1)
}

type ackCounter struct {
	acks  atomic.Int32
	nacks atomic.Int32
}

func (c *ackCounter) envelope(id string) *Envelope {
	return NewEnvelope(testActivity(id),
		func(context.Context) error { c.acks.Add(1); return nil },
		func(context.Context) error { c.nacks.Add(1); return nil },
	)
}

func batchOf(n int) interface{} {
	return mock.MatchedBy(func(activities []*domain.Activity) bool {
		return len(activities) == n
	})
}

func TestBatchWriter_Start_BatchSizeThreshold(t *testing.T) {
	mockRepo := new(MockActivityRepository)
	writer := NewBatchWriter(mockRepo, BatchWriterConfig{MaxBatchSize: 3, FlushTimeout: 10 * time.Second}, zap.NewNop())
	mockRepo.On("InsertBatch", mock.Anything, batchOf(3)).Return(3, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var c ackCounter
	in := make(chan *Envelope, 5)
	go writer.Start(ctx, in)

	in <- c.envelope("1")
	in <- c.envelope("2")
	in <- c.envelope("3")

	assert.Eventually(t, func() bool { return c.acks.Load() == 3 }, time.Second, 5*time.Millisecond)
	mockRepo.AssertExpectations(t)
}

func TestBatchWriter_Start_TimeoutFlush(t *testing.T) {
	mockRepo := new(MockActivityRepository)
	writer := NewBatchWriter(mockRepo, BatchWriterConfig{MaxBatchSize: 10, FlushTimeout: 50 * time.Millisecond}, zap.NewNop())
	mockRepo.On("InsertBatch", mock.Anything, batchOf(2)).Return(2, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var c ackCounter
	in := make(chan *Envelope, 5)
	go writer.Start(ctx, in)

	in <- c.envelope("1")
	in <- c.envelope("2")

	assert.Eventually(t, func() bool { return c.acks.Load() == 2 }, time.Second, 5*time.Millisecond)
	mockRepo.AssertExpectations(t)
}

func TestBatchWriter_Start_InsertFailureNacks(t *testing.T) {
	mockRepo := new(MockActivityRepository)
	writer := NewBatchWriter(mockRepo, BatchWriterConfig{MaxBatchSize: 2, FlushTimeout: 10 * time.Second}, zap.NewNop())
	mockRepo.On("InsertBatch", mock.Anything, mock.Anything).Return(0, errors.New("clickhouse unavailable"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var c ackCounter
	in := make(chan *Envelope, 5)
	go writer.Start(ctx, in)

	in <- c.envelope("1")
	in <- c.envelope("2")

	assert.Eventually(t, func() bool { return c.nacks.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), c.acks.Load())
}

func TestBatchWriter_Start_PartialInsertNacks(t *testing.T) {
	mockRepo := new(MockActivityRepository)
	writer := NewBatchWriter(mockRepo, BatchWriterConfig{MaxBatchSize: 3, FlushTimeout: 10 * time.Second}, zap.NewNop())
	mockRepo.On("InsertBatch", mock.Anything, batchOf(3)).Return(2, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var c ackCounter
	in := make(chan *Envelope, 5)
	go writer.Start(ctx, in)

	in <- c.envelope("1")
	in <- c.envelope("2")
	in <- c.envelope("3")

	assert.Eventually(t, func() bool { return c.nacks.Load() == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), c.acks.Load())
}

func TestBatchWriter_Start_FlushesOnShutdown(t *testing.T) {
	mockRepo := new(MockActivityRepository)
	writer := NewBatchWriter(mockRepo, BatchWriterConfig{MaxBatchSize: 10, FlushTimeout: 10 * time.Second}, zap.NewNop())
	mockRepo.On("InsertBatch", mock.Anything, batchOf(2)).Return(2, nil)

	ctx, cancel := context.WithCancel(context.Background())

	var c ackCounter
	in := make(chan *Envelope, 5)
	done := make(chan struct{})
	go func() {
		writer.Start(ctx, in)
		close(done)
	}()

	in <- c.envelope("1")
	in <- c.envelope("2")
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("Graceful shutdown took too long")
	}
	mockRepo.AssertExpectations(t)
}

func TestBatchWriter_Start_InputChannelClosed(t *testing.T) {
	mockRepo := new(MockActivityRepository)
	writer := NewBatchWriter(mockRepo, BatchWriterConfig{MaxBatchSize: 10, FlushTimeout: 10 * time.Second}, zap.NewNop())
	mockRepo.On("InsertBatch", mock.Anything, batchOf(2)).Return(2, nil)

	var c ackCounter
	in := make(chan *Envelope, 5)
	done := make(chan struct{})
	go func() {
		writer.Start(context.Background(), in)
		close(done)
	}()

	in <- c.envelope("1")
	in <- c.envelope("2")
	close(in)

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("Shutdown took too long after input channel closed")
	}
	assert.Equal(t, int32(2), c.acks.Load())
}

func TestBatchWriter_Start_EmptyBatchNotFlushed(t *testing.T) {
	mockRepo := new(MockActivityRepository)
	writer := NewBatchWriter(mockRepo, BatchWriterConfig{MaxBatchSize: 10, FlushTimeout: 20 * time.Millisecond}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	writer.Start(ctx, make(chan *Envelope))

	mockRepo.AssertNotCalled(t, "InsertBatch", mock.Anything, mock.Anything)
}

func TestBatchWriter_CollapsesRedeliveredActivities(t *testing.T) {
	mockRepo := new(MockActivityRepository)
	writer := NewBatchWriter(mockRepo, BatchWriterConfig{MaxBatchSize: 3, FlushTimeout: 10 * time.Second}, zap.NewNop())
	mockRepo.On("InsertBatch", mock.Anything, mock.MatchedBy(func(activities []*domain.Activity) bool {
		return len(activities) == 2 &&
			activities[0].ActivityID == "dup" && activities[0].Version == 7 &&
			activities[1].ActivityID == "other"
	})).Return(2, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var c ackCounter
	older := c.envelope("dup")
	older.Activity.Version = 3
	newer := c.envelope("dup")
	newer.Activity.Version = 7

	in := make(chan *Envelope, 3)
	go writer.Start(ctx, in)
	in <- older
	in <- c.envelope("other")
	in <- newer

	assert.Eventually(t, func() bool { return c.acks.Load() == 3 }, time.Second, 5*time.Millisecond)
	mockRepo.AssertExpectations(t)
}

func TestBatchWriter_FinalFlushOutlivesCancellation(t *testing.T) {
	mockRepo := new(MockActivityRepository)
	writer := NewBatchWriter(mockRepo, BatchWriterConfig{MaxBatchSize: 10, FlushTimeout: 10 * time.Second}, zap.NewNop())

	var flushCtxErr error
	mockRepo.On("InsertBatch", mock.Anything, batchOf(1)).
		Run(func(args mock.Arguments) { flushCtxErr = args.Get(0).(context.Context).Err() }).
		Return(1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan *Envelope, 1)
	done := make(chan struct{})
	go func() {
		writer.Start(ctx, in)
		close(done)
	}()

	var c ackCounter
	in <- c.envelope("late")
	time.Sleep(10 * time.Millisecond)
	cancel()
	<-done

	assert.NoError(t, flushCtxErr)
	assert.Equal(t, int32(1), c.acks.Load())
}

func TestCollapse(t *testing.T) {
	var c ackCounter
	a := c.envelope("a")
	a.Activity.Version = 2
	aOld := c.envelope("a")
	aOld.Activity.Version = 1

	rows := collapse([]*Envelope{a, c.envelope("b"), aOld})

	assert.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].ActivityID)
	assert.Equal(t, uint64(2), rows[0].Version)
	assert.Equal(t, "b", rows[1].ActivityID)
}

package consumer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/raczniakservices/HVAC/internal/domain"
	"github.com/raczniakservices/HVAC/internal/metrics"
	"github.com/raczniakservices/HVAC/internal/repository"
)

// finalFlushTimeout bounds the flush that runs after the pipeline context is cancelled.
const finalFlushTimeout = 5 * time.Second

// BatchWriterConfig configures the ledger writer
type BatchWriterConfig struct {
	MaxBatchSize int
	FlushTimeout time.Duration
}

// BatchWriter groups envelopes into ledger inserts. Messages are acked only
// after the whole batch is stored and released for redelivery otherwise.
type BatchWriter struct {
	ledger   repository.ActivityRepository
	cfg      BatchWriterConfig
	recorder *metrics.Recorder
	log      *zap.Logger
}

// NewBatchWriter creates a writer that inserts into ledger
func NewBatchWriter(ledger repository.ActivityRepository, cfg BatchWriterConfig, log *zap.Logger) *BatchWriter {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 1
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = time.Second
	}
	return &BatchWriter{ledger: ledger, cfg: cfg, log: log}
}

// Start consumes envelopes until in is closed or ctx is cancelled, flushing
// whenever the batch fills up or the flush interval elapses.
func (w *BatchWriter) Start(ctx context.Context, in <-chan *Envelope) {
	interval := time.NewTicker(w.cfg.FlushTimeout)
	defer interval.Stop()

	batch := make([]*Envelope, 0, w.cfg.MaxBatchSize)
	for {
		select {
		case <-ctx.Done():
			w.finalFlush(ctx, batch)
			return

		case env, ok := <-in:
			if !ok {
				w.finalFlush(ctx, batch)
				return
			}
			batch = append(batch, env)
			if len(batch) < w.cfg.MaxBatchSize {
				continue
			}
			batch = w.flush(ctx, batch, "size")
			interval.Reset(w.cfg.FlushTimeout)

		case <-interval.C:
			batch = w.flush(ctx, batch, "interval")
		}
	}
}

// finalFlush writes what is left with a context detached from the cancelled
// pipeline so pending messages are still settled.
func (w *BatchWriter) finalFlush(ctx context.Context, batch []*Envelope) {
	if len(batch) == 0 {
		w.log.Info("Batch writer stopped")
		return
	}
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalFlushTimeout)
	defer cancel()
	w.flush(flushCtx, batch, "shutdown")
	w.log.Info("Batch writer stopped after final flush", zap.Int("envelope_count", len(batch)))
}

// flush inserts batch and settles every envelope in it. It returns the batch
// emptied for reuse.
func (w *BatchWriter) flush(ctx context.Context, batch []*Envelope, trigger string) []*Envelope {
	if len(batch) == 0 {
		return batch
	}

	rows := collapse(batch)
	inserted, err := w.ledger.InsertBatch(ctx, rows)
	switch {
	case err != nil:
		w.log.Error("Failed to write activity batch",
			zap.String("trigger", trigger),
			zap.Int("activity_count", len(rows)),
			zap.Error(err))
		w.recorder.LedgerWrite(metrics.ResultError, len(batch))
		w.settle(ctx, batch, false)
	case inserted != len(rows):
		w.log.Warn("Activity batch partially written",
			zap.String("trigger", trigger),
			zap.Int("inserted", inserted),
			zap.Int("expected", len(rows)))
		w.recorder.LedgerWrite(metrics.ResultError, len(batch))
		w.settle(ctx, batch, false)
	default:
		w.log.Info("Activity batch written",
			zap.String("trigger", trigger),
			zap.Int("count", inserted),
			zap.Int("duplicates", len(batch)-len(rows)))
		w.recorder.LedgerWrite(metrics.ResultOK, inserted)
		w.settle(ctx, batch, true)
	}
	return batch[:0]
}

// settle acks or releases every envelope. Individual failures are logged; the
// queue redelivers anything left unacknowledged.
func (w *BatchWriter) settle(ctx context.Context, batch []*Envelope, stored bool) {
	for _, env := range batch {
		settleFn := env.Nack
		if stored {
			settleFn = env.Ack
		}
		if err := settleFn(ctx); err != nil {
			w.log.Warn("Failed to settle activity message",
				zap.String("activity_id", env.Activity.ActivityID),
				zap.Bool("stored", stored),
				zap.Error(err))
		}
	}
}

// collapse keeps one row per activity id, the highest version winning, in
// first-seen order. Redelivered messages otherwise reach the ledger twice in
// one insert.
func collapse(batch []*Envelope) []*domain.Activity {
	rows := make([]*domain.Activity, 0, len(batch))
	index := make(map[string]int, len(batch))
	for _, env := range batch {
		a := env.Activity
		if i, ok := index[a.ActivityID]; ok {
			if a.Version > rows[i].Version {
				rows[i] = a
			}
			continue
		}
		index[a.ActivityID] = len(rows)
		rows = append(rows, a)
	}
	return rows
}

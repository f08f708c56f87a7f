package consumer

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/raczniakservices/HVAC/internal/config"
	"github.com/raczniakservices/HVAC/internal/metrics"
	"github.com/raczniakservices/HVAC/internal/queue"
	"github.com/raczniakservices/HVAC/internal/repository"
)

// Options tunes the activity pipeline.
type Options struct {
	BatchSize     int
	FlushInterval time.Duration
	MaxMessages   int32
	LongPoll      time.Duration
	Buffer        int
}

// OptionsFromConfig maps consumer settings onto pipeline options.
func OptionsFromConfig(cfg config.Consumer) Options {
	return Options{
		BatchSize:     cfg.BatchSizeMax,
		FlushInterval: time.Duration(cfg.BatchTimeoutSec) * time.Second,
		MaxMessages:   10,
		LongPoll:      20 * time.Second,
		Buffer:        100,
	}
}

// Consumer moves lead activity from the queue into the ledger through three
// stages connected by channels: receive, parse, write.
type Consumer struct {
	receiver *Receiver
	parser   *ParserStage
	writer   *BatchWriter
	buffer   int
	log      *zap.Logger
}

// NewConsumer wires the pipeline stages. recorder may be nil.
func NewConsumer(opts Options, source queue.QueueConsumer, ledger repository.ActivityRepository, recorder *metrics.Recorder, log *zap.Logger) *Consumer {
	if opts.Buffer <= 0 {
		opts.Buffer = 100
	}

	receiver := NewReceiver(source, ReceiverConfig{
		MaxMessages:     opts.MaxMessages,
		WaitTimeSeconds: int32(opts.LongPoll / time.Second),
		BufferSize:      opts.Buffer,
	}, log)

	parser := NewParserStage(source, NewJSONActivityParser(), log)
	parser.recorder = recorder

	writer := NewBatchWriter(ledger, BatchWriterConfig{
		MaxBatchSize: opts.BatchSize,
		FlushTimeout: opts.FlushInterval,
	}, log)
	writer.recorder = recorder

	return &Consumer{
		receiver: receiver,
		parser:   parser,
		writer:   writer,
		buffer:   opts.Buffer,
		log:      log,
	}
}

// Start runs the pipeline until ctx is cancelled and every stage has drained.
// Each stage closes its output when it exits, so shutdown flows downstream.
func (c *Consumer) Start(ctx context.Context) error {
	messages := make(chan types.Message, c.buffer)
	envelopes := make(chan *Envelope, c.buffer)

	var wg sync.WaitGroup
	run := func(stage func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stage()
		}()
	}

	run(func() { c.receiver.Start(ctx, messages) })
	run(func() { c.parser.Start(ctx, messages, envelopes) })
	run(func() { c.writer.Start(ctx, envelopes) })

	wg.Wait()
	c.log.Info("Activity pipeline stopped")
	return nil
}

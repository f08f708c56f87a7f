package consumer

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/raczniakservices/HVAC/internal/queue"
)

// ReceiverConfig configures queue polling
type ReceiverConfig struct {
	MaxMessages     int32
	WaitTimeSeconds int32
	BufferSize      int
	RetryDelay      time.Duration
}

func (c ReceiverConfig) retryDelay() time.Duration {
	if c.RetryDelay <= 0 {
		return time.Second
	}
	return c.RetryDelay
}

// Receiver long-polls the activity queue and forwards raw messages
type Receiver struct {
	source queue.QueueConsumer
	config ReceiverConfig
	log    *zap.Logger
}

// NewReceiver creates a receiver polling source
func NewReceiver(source queue.QueueConsumer, config ReceiverConfig, log *zap.Logger) *Receiver {
	return &Receiver{source: source, config: config, log: log}
}

// Start polls until ctx is cancelled and closes out on exit. Receive errors
// are retried after a delay.
func (r *Receiver) Start(ctx context.Context, out chan<- types.Message) {
	defer close(out)
	defer r.log.Info("Receiver stopped")

	for ctx.Err() == nil {
		messages, err := r.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.log.Error("Failed to receive activity messages", zap.Error(err))
			if !sleep(ctx, r.config.retryDelay()) {
				return
			}
			continue
		}

		for _, msg := range messages {
			select {
			case <-ctx.Done():
				return
			case out <- msg:
			}
		}
	}
}

func (r *Receiver) poll(ctx context.Context) ([]types.Message, error) {
	result, err := r.source.ReceiveMessages(ctx, &awssqs.ReceiveMessageInput{
		QueueUrl:              aws.String(r.source.QueueURL()),
		MaxNumberOfMessages:   r.config.MaxMessages,
		WaitTimeSeconds:       r.config.WaitTimeSeconds,
		MessageAttributeNames: []string{"All"},
	})
	if err != nil {
		return nil, err
	}
	if n := len(result.Messages); n > 0 {
		r.log.Debug("Received activity messages", zap.Int("message_count", n))
	}
	return result.Messages, nil
}

// sleep waits for d and reports false when ctx ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

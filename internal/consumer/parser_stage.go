package consumer

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/raczniakservices/HVAC/internal/metrics"
	"github.com/raczniakservices/HVAC/internal/queue"
)

// ParserStage decodes queue messages into activity envelopes whose ack
// deletes the message and whose nack makes it visible again.
type ParserStage struct {
	source   queue.QueueConsumer
	parser   MessageParser
	recorder *metrics.Recorder
	log      *zap.Logger
}

// NewParserStage creates a parser stage bound to source
func NewParserStage(source queue.QueueConsumer, parser MessageParser, log *zap.Logger) *ParserStage {
	return &ParserStage{source: source, parser: parser, log: log}
}

// Start parses until in is closed or ctx is cancelled and closes out on exit.
// Malformed messages are deleted so they are not redelivered forever.
func (p *ParserStage) Start(ctx context.Context, in <-chan types.Message, out chan<- *Envelope) {
	defer close(out)
	defer p.log.Info("Parser stage stopped")

	for {
		var msg types.Message
		select {
		case <-ctx.Done():
			return
		case m, ok := <-in:
			if !ok {
				return
			}
			msg = m
		}

		envelope := p.envelope(ctx, msg)
		if envelope == nil {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case out <- envelope:
		}
	}
}

func (p *ParserStage) envelope(ctx context.Context, msg types.Message) *Envelope {
	messageID := aws.ToString(msg.MessageId)

	activity, err := p.parser.Parse([]byte(aws.ToString(msg.Body)))
	if err != nil {
		p.log.Warn("Dropping malformed activity message",
			zap.String("message_id", messageID),
			zap.Error(err))
		p.recorder.LedgerDropped("malformed")
		if err := p.deleteMessage(ctx, msg); err != nil {
			p.log.Error("Failed to delete malformed message",
				zap.String("message_id", messageID),
				zap.Error(err))
		}
		return nil
	}

	return NewEnvelope(activity,
		func(ctx context.Context) error { return p.deleteMessage(ctx, msg) },
		func(ctx context.Context) error { return p.releaseMessage(ctx, msg) },
	)
}

func (p *ParserStage) deleteMessage(ctx context.Context, msg types.Message) error {
	_, err := p.source.DeleteMessage(ctx, &awssqs.DeleteMessageInput{
		QueueUrl:      aws.String(p.source.QueueURL()),
		ReceiptHandle: msg.ReceiptHandle,
	})
	return err
}

// releaseMessage zeroes the visibility timeout so a failed batch is retried
// without waiting for the timeout to lapse.
func (p *ParserStage) releaseMessage(ctx context.Context, msg types.Message) error {
	_, err := p.source.ChangeMessageVisibility(ctx, &awssqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(p.source.QueueURL()),
		ReceiptHandle:     msg.ReceiptHandle,
		VisibilityTimeout: 0,
	})
	return err
}

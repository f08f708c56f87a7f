package queue

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/raczniakservices/HVAC/internal/domain"
)

// ActivityPublisher defines the interface for publishing lead activity to a queue
type ActivityPublisher interface {
	PublishActivity(ctx context.Context, activity *domain.Activity) error
}

// QueueConsumer defines the interface for consuming messages from a queue
type QueueConsumer interface {
	ReceiveMessages(ctx context.Context, input *sqs.ReceiveMessageInput) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, input *sqs.DeleteMessageInput) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, input *sqs.ChangeMessageVisibilityInput) (*sqs.ChangeMessageVisibilityOutput, error)
	QueueURL() string
}

// NopPublisher drops every activity. It is used when no queue is configured.
type NopPublisher struct{}

// PublishActivity implements ActivityPublisher
func (NopPublisher) PublishActivity(context.Context, *domain.Activity) error {
	return nil
}

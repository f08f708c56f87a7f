package sqs

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	envConfig "github.com/raczniakservices/HVAC/internal/config"
	"github.com/raczniakservices/HVAC/internal/domain"
)

// Client publishes and consumes lead activity on one SQS queue
type Client struct {
	client   *sqs.Client
	queueURL string
	log      *zap.Logger
}

// NewClient creates a client for cfg.QueueURL. A non-empty cfg.Endpoint
// points the client at a local ElasticMQ with static credentials.
func NewClient(ctx context.Context, cfg envConfig.SQS, log *zap.Logger) (*Client, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	var clientOpts []func(*sqs.Options)

	if cfg.Endpoint != "" {
		log.Info("Using local SQS endpoint", zap.String("endpoint", cfg.Endpoint))
		loadOpts = append(loadOpts,
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("local", "local", "")))
		clientOpts = append(clientOpts, func(o *sqs.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.Info("SQS client created",
		zap.String("region", cfg.Region),
		zap.String("queue_url", cfg.QueueURL),
		zap.Bool("fifo", isFIFO(cfg.QueueURL)))

	return &Client{
		client:   sqs.NewFromConfig(awsCfg, clientOpts...),
		queueURL: cfg.QueueURL,
		log:      log,
	}, nil
}

// ReceiveMessages receives messages from SQS
func (c *Client) ReceiveMessages(ctx context.Context, input *sqs.ReceiveMessageInput) (*sqs.ReceiveMessageOutput, error) {
	return c.client.ReceiveMessage(ctx, input)
}

// DeleteMessage deletes a message from SQS
func (c *Client) DeleteMessage(ctx context.Context, input *sqs.DeleteMessageInput) (*sqs.DeleteMessageOutput, error) {
	return c.client.DeleteMessage(ctx, input)
}

// ChangeMessageVisibility changes how long a received message stays hidden
func (c *Client) ChangeMessageVisibility(ctx context.Context, input *sqs.ChangeMessageVisibilityInput) (*sqs.ChangeMessageVisibilityOutput, error) {
	return c.client.ChangeMessageVisibility(ctx, input)
}

// QueueURL returns the configured queue URL
func (c *Client) QueueURL() string {
	return c.queueURL
}

// PublishActivity sends one lead activity. On a FIFO queue activities of the
// same lead share a message group and the activity id deduplicates resends.
func (c *Client) PublishActivity(ctx context.Context, activity *domain.Activity) error {
	input, err := sendInput(c.queueURL, activity)
	if err != nil {
		return err
	}

	if _, err := c.client.SendMessage(ctx, input); err != nil {
		c.log.Error("Failed to publish activity",
			zap.String("activity_id", activity.ActivityID),
			zap.String("kind", activity.Kind),
			zap.Error(err))
		return fmt.Errorf("failed to send message to SQS: %w", err)
	}

	c.log.Debug("Activity published",
		zap.String("activity_id", activity.ActivityID),
		zap.Int64("event_id", activity.EventID),
		zap.String("kind", activity.Kind))
	return nil
}

func sendInput(queueURL string, activity *domain.Activity) (*sqs.SendMessageInput, error) {
	body, err := json.Marshal(activity)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal activity %s: %w", activity.ActivityID, err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"Kind":   stringAttribute(activity.Kind),
			"Source": stringAttribute(activity.Source),
		},
	}
	if isFIFO(queueURL) {
		input.MessageGroupId = aws.String("lead-" + strconv.FormatInt(activity.EventID, 10))
		input.MessageDeduplicationId = aws.String(activity.ActivityID)
	}
	return input, nil
}

func stringAttribute(v string) types.MessageAttributeValue {
	if v == "" {
		v = "-"
	}
	return types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
}

func isFIFO(queueURL string) bool {
	return strings.HasSuffix(queueURL, ".fifo")
}

package sqs

import (
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raczniakservices/HVAC/internal/domain"
)

func testActivity() *domain.Activity {
	return &domain.Activity{
		ActivityID:      "f00d",
		EventID:         42,
		Kind:            string(domain.ActivityOutcomeSet),
		Source:          string(domain.SourceTelephony),
		Outcome:         string(domain.OutcomeBooked),
		ResponseSeconds: 420,
	}
}

func TestSendInput_StandardQueue(t *testing.T) {
	url := "http://localhost:9324/000000000000/lead-activity"

	input, err := sendInput(url, testActivity())
	require.NoError(t, err)

	assert.Equal(t, url, aws.ToString(input.QueueUrl))
	assert.Nil(t, input.MessageGroupId)
	assert.Nil(t, input.MessageDeduplicationId)
	assert.Equal(t, "outcome_set", aws.ToString(input.MessageAttributes["Kind"].StringValue))
	assert.Equal(t, "telephony", aws.ToString(input.MessageAttributes["Source"].StringValue))

	var decoded domain.Activity
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(input.MessageBody)), &decoded))
	assert.Equal(t, "f00d", decoded.ActivityID)
	assert.Equal(t, int64(420), decoded.ResponseSeconds)
}

func TestSendInput_FIFOQueue(t *testing.T) {
	input, err := sendInput("https://sqs.us-east-1.amazonaws.com/123456789012/lead-activity.fifo", testActivity())
	require.NoError(t, err)

	assert.Equal(t, "lead-42", aws.ToString(input.MessageGroupId))
	assert.Equal(t, "f00d", aws.ToString(input.MessageDeduplicationId))
}

func TestSendInput_EmptyAttributeIsPlaceholder(t *testing.T) {
	a := testActivity()
	a.Source = ""

	input, err := sendInput("http://localhost:9324/000000000000/lead-activity", a)
	require.NoError(t, err)

	assert.Equal(t, "-", aws.ToString(input.MessageAttributes["Source"].StringValue))
}

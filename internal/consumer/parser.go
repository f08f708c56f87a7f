package consumer

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/raczniakservices/HVAC/internal/domain"
)

var knownKinds = map[string]bool{
	string(domain.ActivityCreated):        true,
	string(domain.ActivityCallUpdated):    true,
	string(domain.ActivityOwnerSet):       true,
	string(domain.ActivityNextStepSet):    true,
	string(domain.ActivityOutcomeSet):     true,
	string(domain.ActivityOutcomeCleared): true,
	string(domain.ActivityDeleted):        true,
}

// JSONActivityParser implements MessageParser for JSON-formatted activity messages
type JSONActivityParser struct {
	now func() time.Time
}

// NewJSONActivityParser creates a new JSON activity parser
func NewJSONActivityParser() *JSONActivityParser {
	return &JSONActivityParser{now: time.Now}
}

// Parse parses a JSON message body into an Activity
func (p *JSONActivityParser) Parse(body []byte) (*domain.Activity, error) {
	var activity domain.Activity
	if err := json.Unmarshal(body, &activity); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message body: %w", err)
	}

	if activity.ActivityID == "" {
		return nil, errors.New("activity_id is required")
	}
	if activity.EventID <= 0 {
		return nil, fmt.Errorf("invalid event_id: %d", activity.EventID)
	}
	if !knownKinds[activity.Kind] {
		return nil, fmt.Errorf("unknown activity kind: %q", activity.Kind)
	}

	now := p.now()
	activity.ProcessedAt = now.UTC()
	activity.Version = uint64(now.UnixNano())

	return &activity, nil
}

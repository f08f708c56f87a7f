package dto

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/raczniakservices/HVAC/internal/domain"
)

// CreateEventRequest represents a request to record an inbound event
type CreateEventRequest struct {
	CallerNumber string `json:"callerNumber" example:"+15551234567"`
	Status       string `json:"status" example:"missed"`
	Source       string `json:"source,omitempty" example:"landing_call_click"`
	Note         string `json:"note,omitempty" example:"AC not cooling, upstairs unit"`
}

// Draft converts the request into a domain draft
func (r *CreateEventRequest) Draft() (domain.EventDraft, error) {
	source, err := domain.ParseSource(r.Source)
	if err != nil {
		return domain.EventDraft{}, err
	}
	return domain.EventDraft{
		CallerNumber: r.CallerNumber,
		Status:       domain.CallStatus(strings.TrimSpace(r.Status)),
		Source:       source,
		Note:         r.Note,
	}, nil
}

// OwnerRequest represents a request to set or clear a lead's owner
type OwnerRequest struct {
	EventID int64   `json:"event_id" binding:"required,gt=0" example:"12"`
	Owner   *string `json:"owner" example:"Sam"`
}

// NextStepRequest represents a request to set or clear a lead's next step
type NextStepRequest struct {
	EventID  int64   `json:"event_id" binding:"required,gt=0" example:"12"`
	NextStep *string `json:"next_step" example:"text_sent"`
}

// ResultRequest represents a request to set or clear a lead's outcome. The
// result key must be present; null clears the outcome.
type ResultRequest struct {
	EventID int64          `json:"event_id" binding:"required,gt=0" example:"12"`
	Result  OptionalString `json:"result" swaggertype:"string" example:"booked"`
}

// OptionalString tells an absent JSON key apart from an explicit null.
type OptionalString struct {
	Value   *string
	Present bool
}

// Some returns a present, non-null OptionalString.
func Some(v string) OptionalString {
	return OptionalString{Value: &v, Present: true}
}

// Null returns a present OptionalString holding null.
func Null() OptionalString {
	return OptionalString{Present: true}
}

// UnmarshalJSON implements json.Unmarshaler
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Present = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// MarshalJSON implements json.Marshaler
func (o OptionalString) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}

// ResponseTimesRequest represents a response-time report query
type ResponseTimesRequest struct {
	From    int64  `form:"from" example:"1735689600"`
	To      int64  `form:"to" example:"1738368000"`
	GroupBy string `form:"group_by" binding:"omitempty,oneof=outcome source owner day" example:"outcome"`
}

// TelephonyCallbackRequest represents a form-encoded provider call callback
type TelephonyCallbackRequest struct {
	CallSid        string `form:"CallSid"`
	From           string `form:"From"`
	To             string `form:"To"`
	CallStatus     string `form:"CallStatus"`
	DialCallStatus string `form:"DialCallStatus"`
	Direction      string `form:"Direction"`
}

// Report converts the callback into a domain call report. CallStatus wins
// over DialCallStatus when both are sent.
func (r *TelephonyCallbackRequest) Report() domain.CallReport {
	status := strings.TrimSpace(r.CallStatus)
	if status == "" {
		status = strings.TrimSpace(r.DialCallStatus)
	}
	return domain.CallReport{
		CallSid:        strings.TrimSpace(r.CallSid),
		From:           strings.TrimSpace(r.From),
		To:             strings.TrimSpace(r.To),
		ProviderStatus: status,
		Direction:      strings.TrimSpace(r.Direction),
	}
}

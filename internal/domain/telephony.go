package domain

import (
	"regexp"
	"strings"
	"time"
)

// UnknownCallerNumber stands in when the provider withholds or garbles the caller.
const UnknownCallerNumber = "+10000000000"

var callSidPattern = regexp.MustCompile(`(?i)^CA[0-9a-f]{32}$`)

// CallReport is one provider callback about a phone call. Callbacks for the
// same call share a CallSid.
type CallReport struct {
	CallSid        string
	From           string
	To             string
	ProviderStatus string
	Direction      string
}

// ValidCallSid reports whether sid looks like a provider call identifier.
func ValidCallSid(sid string) bool {
	return callSidPattern.MatchString(strings.TrimSpace(sid))
}

// NormalizeProviderStatus maps a provider call status onto the channel
// status: calls that connected count as answered, everything else as missed.
func NormalizeProviderStatus(raw string) CallStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "in-progress", "completed":
		return CallStatusAnswered
	default:
		return CallStatusMissed
	}
}

// Sid returns the trimmed call identifier.
func (r CallReport) Sid() string {
	return strings.TrimSpace(r.CallSid)
}

// Correlated reports whether the report can be matched to earlier callbacks.
func (r CallReport) Correlated() bool {
	return ValidCallSid(r.CallSid)
}

// NewEventFromCall builds a telephony event for the first callback of a call.
func NewEventFromCall(r CallReport, now time.Time) *Event {
	e := &Event{
		CreatedAt:    now,
		CallerNumber: UnknownCallerNumber,
		Source:       SourceTelephony,
		Status:       NormalizeProviderStatus(r.ProviderStatus),
	}
	if r.Correlated() {
		sid := r.Sid()
		e.CallSid = &sid
	}
	e.ApplyCallReport(r)
	return e
}

// ApplyCallReport merges a later callback into the event. Fields only change
// when the callback carries them. Triage fields are never touched.
func (e *Event) ApplyCallReport(r CallReport) {
	if from := NormalizeCallerNumber(r.From); ValidCallerNumber(from) {
		e.CallerNumber = from
	}
	if to := strings.TrimSpace(r.To); to != "" {
		e.ToNumber = &to
	}
	if ps := strings.TrimSpace(r.ProviderStatus); ps != "" {
		e.ProviderStatus = &ps
		e.Status = NormalizeProviderStatus(ps)
	}
	if dir := strings.TrimSpace(r.Direction); dir != "" {
		e.Direction = &dir
	}
}

package dto

import (
	"fmt"
	"time"

	"github.com/raczniakservices/HVAC/internal/config"
	"github.com/raczniakservices/HVAC/internal/domain"
	"github.com/raczniakservices/HVAC/internal/repository"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error           string `json:"error" example:"validation_error"`
	Message         string `json:"message,omitempty" example:"callerNumber is required"`
	UnresolvedCount *int64 `json:"unresolved_count,omitempty" example:"3"`
}

// OkResponse represents a successful delete
type OkResponse struct {
	OK      bool   `json:"ok" example:"true"`
	Deleted *int64 `json:"deleted,omitempty" example:"12"`
}

// EventResponse is the wire form of a lead
type EventResponse struct {
	ID             int64      `json:"id" example:"12"`
	CreatedAt      time.Time  `json:"createdAt"`
	CallerNumber   string     `json:"callerNumber" example:"+15551234567"`
	Source         string     `json:"source" example:"landing_call_click"`
	Status         string     `json:"status" example:"missed"`
	Note           *string    `json:"note"`
	Owner          *string    `json:"owner" example:"Sam"`
	NextStep       *string    `json:"next_step" example:"text_sent"`
	Outcome        *string    `json:"outcome" example:"booked"`
	OutcomeSetAt   *time.Time `json:"outcome_set_at"`
	FirstActionAt  *time.Time `json:"first_action_at"`
	Overdue        bool       `json:"overdue"`
	OverdueMinutes *int       `json:"overdue_minutes"`
	State          string     `json:"state" example:"in_progress"`
	StateLabel     string     `json:"state_label" example:"In progress"`
	ResponseTime   *string    `json:"response_time" example:"1h 5m"`
	CallSid        *string    `json:"callSid"`
	ToNumber       *string    `json:"toNumber"`
	ProviderStatus *string    `json:"providerStatus"`
	Direction      *string    `json:"direction"`
}

// NewEventResponse renders a lead with its derived state
func NewEventResponse(l *domain.Lead) EventResponse {
	view := domain.DeriveState(l)
	r := EventResponse{
		ID:             l.ID,
		CreatedAt:      l.CreatedAt,
		CallerNumber:   l.CallerNumber,
		Source:         string(l.Source),
		Status:         string(l.Status),
		Note:           l.Note,
		Owner:          l.Owner,
		OutcomeSetAt:   l.OutcomeSetAt,
		FirstActionAt:  l.FirstActionAt,
		Overdue:        view.Overdue,
		State:          string(view.State),
		StateLabel:     view.Label,
		CallSid:        l.CallSid,
		ToNumber:       l.ToNumber,
		ProviderStatus: l.ProviderStatus,
		Direction:      l.Direction,
	}
	if view.Overdue {
		r.OverdueMinutes = l.OverdueMinutes
	}
	if l.NextStep != nil {
		s := string(*l.NextStep)
		r.NextStep = &s
	}
	if l.Outcome != nil {
		s := string(*l.Outcome)
		r.Outcome = &s
	}
	if d, ok := l.OutcomeResponse(); ok {
		s := domain.FormatResponse(d)
		r.ResponseTime = &s
	}
	return r
}

// NewEventResponses renders a list of leads
func NewEventResponses(leads []*domain.Lead) []EventResponse {
	out := make([]EventResponse, 0, len(leads))
	for _, l := range leads {
		out = append(out, NewEventResponse(l))
	}
	return out
}

// Lead converts the wire form back into a domain lead. Derived fields are
// kept as the server computed them.
func (r EventResponse) Lead() (*domain.Lead, error) {
	next, err := domain.ParseNextStep(r.NextStep)
	if err != nil {
		return nil, fmt.Errorf("event %d: %w", r.ID, err)
	}
	outcome, err := domain.ParseOutcome(r.Outcome)
	if err != nil {
		return nil, fmt.Errorf("event %d: %w", r.ID, err)
	}

	return &domain.Lead{
		Event: domain.Event{
			ID:             r.ID,
			CreatedAt:      r.CreatedAt,
			CallerNumber:   r.CallerNumber,
			Source:         domain.Source(r.Source),
			Status:         domain.CallStatus(r.Status),
			Note:           r.Note,
			Owner:          r.Owner,
			NextStep:       next,
			Outcome:        outcome,
			OutcomeSetAt:   r.OutcomeSetAt,
			FirstActionAt:  r.FirstActionAt,
			CallSid:        r.CallSid,
			ToNumber:       r.ToNumber,
			ProviderStatus: r.ProviderStatus,
			Direction:      r.Direction,
		},
		Overdue:        r.Overdue,
		OverdueMinutes: r.OverdueMinutes,
	}, nil
}

// SummaryResponse represents the dashboard counters
type SummaryResponse struct {
	domain.Summary
	GeneratedAt time.Time `json:"generated_at"`
}

// ConfigResponse represents the dashboard configuration
type ConfigResponse struct {
	OwnerOptions       []string `json:"ownerOptions" example:"Cody,Sam,Alex"`
	RefreshIntervalSec int      `json:"refreshIntervalSec" example:"10"`
	MutationPauseMs    int      `json:"mutationPauseMs" example:"3000"`
	HideSimulator      bool     `json:"hideSimulator" example:"true"`
	OverdueAfterMin    int      `json:"overdueAfterMin" example:"15"`
	NextSteps          []string `json:"nextSteps"`
	Outcomes           []string `json:"outcomes"`
}

// NewConfigResponse renders dashboard options together with the SLA threshold
func NewConfigResponse(d config.Dashboard, overdueAfter time.Duration) ConfigResponse {
	r := ConfigResponse{
		OwnerOptions:       d.OwnerOptions,
		RefreshIntervalSec: d.RefreshIntervalSec,
		MutationPauseMs:    d.MutationPauseMs,
		HideSimulator:      d.HideSimulator,
		OverdueAfterMin:    int(overdueAfter / time.Minute),
	}
	for _, s := range domain.NextSteps() {
		r.NextSteps = append(r.NextSteps, string(s))
	}
	for _, o := range domain.Outcomes() {
		r.Outcomes = append(r.Outcomes, string(o))
	}
	return r
}

// ResponseTimeGroup represents time-to-outcome for one group
type ResponseTimeGroup struct {
	GroupValue         string  `json:"group_value" example:"booked"`
	TotalCount         uint64  `json:"total_count" example:"42"`
	AvgResponseSeconds float64 `json:"avg_response_seconds" example:"1860"`
	AvgResponse        string  `json:"avg_response" example:"31m"`
}

// ResponseTimesResponse represents the response-time report
type ResponseTimesResponse struct {
	From               int64               `json:"from" example:"1735689600"`
	To                 int64               `json:"to" example:"1738368000"`
	TotalCount         uint64              `json:"total_count" example:"120"`
	AvgResponseSeconds float64             `json:"avg_response_seconds" example:"2400"`
	AvgResponse        string              `json:"avg_response" example:"40m"`
	GroupBy            string              `json:"group_by,omitempty" example:"outcome"`
	Groups             []ResponseTimeGroup `json:"groups,omitempty"`
}

// NewResponseTimesResponse renders a ledger metrics result
func NewResponseTimesResponse(q repository.MetricsQuery, m *repository.MetricsResult) *ResponseTimesResponse {
	r := &ResponseTimesResponse{
		From:               q.From,
		To:                 q.To,
		TotalCount:         m.TotalCount,
		AvgResponseSeconds: m.AvgResponseSeconds,
		AvgResponse:        formatSeconds(m.AvgResponseSeconds),
		GroupBy:            q.GroupBy,
	}
	for _, g := range m.Groups {
		r.Groups = append(r.Groups, ResponseTimeGroup{
			GroupValue:         g.GroupValue,
			TotalCount:         g.TotalCount,
			AvgResponseSeconds: g.AvgResponseSeconds,
			AvgResponse:        formatSeconds(g.AvgResponseSeconds),
		})
	}
	return r
}

func formatSeconds(s float64) string {
	return domain.FormatResponse(time.Duration(s * float64(time.Second)))
}

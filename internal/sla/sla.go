package sla

import (
	"time"

	"github.com/raczniakservices/HVAC/internal/domain"
)

// DefaultThreshold is how long a lead may sit unhandled before it is overdue.
const DefaultThreshold = 15 * time.Minute

// Assessment is the result of evaluating one event against a policy.
type Assessment struct {
	Overdue        bool
	OverdueMinutes *int
}

// Evaluator decides whether an event has waited too long for a first action.
type Evaluator interface {
	Evaluate(e *domain.Event, now time.Time) Assessment
}

// ThresholdPolicy flags unhandled leads older than Threshold.
// A zero Threshold disables the check.
type ThresholdPolicy struct {
	Threshold time.Duration
}

// NewThresholdPolicy returns a policy with the given threshold.
func NewThresholdPolicy(threshold time.Duration) *ThresholdPolicy {
	return &ThresholdPolicy{Threshold: threshold}
}

// Evaluate implements Evaluator. Leads that were acted on or closed are
// never overdue. OverdueMinutes counts whole minutes past the threshold.
func (p *ThresholdPolicy) Evaluate(e *domain.Event, now time.Time) Assessment {
	if p == nil || p.Threshold <= 0 || e.State() != domain.StateUnhandled {
		return Assessment{}
	}

	age := now.Sub(e.CreatedAt)
	if age <= p.Threshold {
		return Assessment{}
	}

	minutes := int((age - p.Threshold) / time.Minute)
	return Assessment{Overdue: true, OverdueMinutes: &minutes}
}

// Annotate wraps events as leads carrying the evaluator's verdict.
func Annotate(ev Evaluator, events []*domain.Event, now time.Time) []*domain.Lead {
	leads := make([]*domain.Lead, 0, len(events))
	for _, e := range events {
		leads = append(leads, AnnotateOne(ev, e, now))
	}
	return leads
}

// AnnotateOne wraps a copy of a single event, so the lead shares no
// pointers with e.
func AnnotateOne(ev Evaluator, e *domain.Event, now time.Time) *domain.Lead {
	lead := &domain.Lead{Event: *e.Clone()}
	if ev == nil {
		return lead
	}
	a := ev.Evaluate(e, now)
	lead.Overdue = a.Overdue
	lead.OverdueMinutes = a.OverdueMinutes
	return lead
}

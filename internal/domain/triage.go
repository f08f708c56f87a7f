package domain

import (
	"strings"
	"time"
)

// markFirstAction records the first staff action on the lead. It is the only
// place FirstActionAt is written and it never overwrites an existing value.
func (e *Event) markFirstAction(at time.Time) {
	if e.FirstActionAt != nil {
		return
	}
	t := e.clamp(at)
	e.FirstActionAt = &t
}

// clamp keeps action timestamps from preceding the event itself.
func (e *Event) clamp(at time.Time) time.Time {
	if at.Before(e.CreatedAt) {
		return e.CreatedAt
	}
	return at
}

// AssignOwner sets or clears the owner. Blank names clear it. Assigning a
// non-empty owner counts as the first action.
func (e *Event) AssignOwner(owner *string, at time.Time) {
	if owner == nil {
		e.Owner = nil
		return
	}
	name := strings.TrimSpace(*owner)
	if name == "" {
		e.Owner = nil
		return
	}
	e.Owner = &name
	e.markFirstAction(at)
}

// SetNextStep sets or clears the next step. Setting one counts as the first action.
func (e *Event) SetNextStep(step *NextStep, at time.Time) {
	if step == nil {
		e.NextStep = nil
		return
	}
	s := *step
	e.NextStep = &s
	e.markFirstAction(at)
}

// SetOutcome sets or clears the outcome.
//
// Going from no outcome to an outcome stamps OutcomeSetAt and, when the lead
// was never touched, FirstActionAt with the same instant. Replacing one
// outcome with another keeps the original OutcomeSetAt. Clearing removes
// OutcomeSetAt but leaves FirstActionAt in place, so the lead drops back to
// in progress rather than unhandled.
func (e *Event) SetOutcome(outcome *Outcome, at time.Time) {
	if outcome == nil {
		e.Outcome = nil
		e.OutcomeSetAt = nil
		return
	}

	o := *outcome
	at = e.clamp(at)
	if e.FirstActionAt != nil && at.Before(*e.FirstActionAt) {
		at = *e.FirstActionAt
	}

	e.markFirstAction(at)
	if e.Outcome == nil || e.OutcomeSetAt == nil {
		t := at
		e.OutcomeSetAt = &t
	}
	e.Outcome = &o
}

package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	callerNumberPattern = regexp.MustCompile(`^\+?\d+$`)

	validate = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("callernumber", func(fl validator.FieldLevel) bool {
		return callerNumberPattern.MatchString(fl.Field().String())
	})
	return v
}

// EventDraft is the input for creating an event.
type EventDraft struct {
	CallerNumber string     `validate:"required,min=7,max=20,callernumber"`
	Status       CallStatus `validate:"required,oneof=missed answered"`
	Source       Source     `validate:"required,oneof=simulator landing_call_click landing_form telephony"`
	Note         string     `validate:"max=4000"`
}

var draftMessages = map[string]string{
	"CallerNumber": "callerNumber is required, length 7-20, and must contain only '+' and digits",
	"Status":       "status must be 'missed' or 'answered'",
	"Source":       "source must be one of simulator, landing_call_click, landing_form, telephony",
	"Note":         "note must be at most 4000 characters",
}

// NormalizeCallerNumber trims surrounding whitespace from a caller number.
func NormalizeCallerNumber(raw string) string {
	return strings.TrimSpace(raw)
}

// ValidCallerNumber reports whether raw is an acceptable caller number.
func ValidCallerNumber(raw string) bool {
	s := NormalizeCallerNumber(raw)
	return len(s) >= 7 && len(s) <= 20 && callerNumberPattern.MatchString(s)
}

// Validate checks the draft and returns the first offending field as a
// ValidationError.
func (d *EventDraft) Validate() error {
	d.CallerNumber = NormalizeCallerNumber(d.CallerNumber)
	d.Note = strings.TrimSpace(d.Note)

	err := validate.Struct(d)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		field := verrs[0].Field()
		return NewValidationError(jsonFieldName(field), draftMessages[field])
	}
	return NewValidationError("", err.Error())
}

// NewEvent validates the draft and builds an event with every triage field unset.
func NewEvent(d EventDraft, now time.Time) (*Event, error) {
	if d.Source == "" {
		d.Source = SourceSimulator
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}

	e := &Event{
		CreatedAt:    now,
		CallerNumber: d.CallerNumber,
		Source:       d.Source,
		Status:       d.Status,
	}
	if d.Note != "" {
		note := d.Note
		e.Note = &note
	}
	return e, nil
}

// ParseNextStep converts an optional raw value. Nil or blank clears the step.
func ParseNextStep(raw *string) (*NextStep, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	v := NextStep(strings.TrimSpace(*raw))
	for _, s := range nextSteps {
		if s == v {
			return &v, nil
		}
	}
	return nil, NewValidationError("next_step", fmt.Sprintf("next_step must be one of %s, or null", joinValues(nextSteps)))
}

// ParseOutcome converts an optional raw value. Nil clears the outcome; an
// unknown value is rejected.
func ParseOutcome(raw *string) (*Outcome, error) {
	if raw == nil {
		return nil, nil
	}
	v := Outcome(strings.TrimSpace(*raw))
	for _, o := range outcomes {
		if o == v {
			return &v, nil
		}
	}
	return nil, NewValidationError("result", fmt.Sprintf("result must be one of %s, or null", joinValues(outcomes)))
}

// ParseSource converts a raw source, defaulting to simulator when blank.
func ParseSource(raw string) (Source, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return SourceSimulator, nil
	}
	for _, s := range sources {
		if string(s) == raw {
			return s, nil
		}
	}
	return "", NewValidationError("source", draftMessages["Source"])
}

// Outcomes lists every accepted outcome.
func Outcomes() []Outcome {
	out := make([]Outcome, len(outcomes))
	copy(out, outcomes)
	return out
}

// NextSteps lists every accepted next step.
func NextSteps() []NextStep {
	out := make([]NextStep, len(nextSteps))
	copy(out, nextSteps)
	return out
}

func jsonFieldName(field string) string {
	switch field {
	case "CallerNumber":
		return "callerNumber"
	case "Status":
		return "status"
	case "Source":
		return "source"
	case "Note":
		return "note"
	}
	return field
}

func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

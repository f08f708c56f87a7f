package domain

import "time"

// Source identifies which collaborator produced an event.
type Source string

const (
	SourceSimulator        Source = "simulator"
	SourceLandingCallClick Source = "landing_call_click"
	SourceLandingForm      Source = "landing_form"
	SourceTelephony        Source = "telephony"
)

// CallStatus is the raw channel status reported by the originating collaborator.
type CallStatus string

const (
	CallStatusMissed   CallStatus = "missed"
	CallStatusAnswered CallStatus = "answered"
)

// NextStep is the follow-up action staff planned or took.
type NextStep string

const (
	NextStepCallAttempt     NextStep = "call_attempt"
	NextStepVoicemailLeft   NextStep = "voicemail_left"
	NextStepTextSent        NextStep = "text_sent"
	NextStepSpokeToCustomer NextStep = "spoke_to_customer"
	NextStepNote            NextStep = "note"
)

// Outcome is the final result of a lead. A non-nil outcome closes the lead.
type Outcome string

const (
	OutcomeBooked           Outcome = "booked"
	OutcomeReachedNoBooking Outcome = "reached_no_booking"
	OutcomeNoAnswer         Outcome = "no_answer"
	OutcomeAlreadyHired     Outcome = "already_hired"
	OutcomeWrongNumber      Outcome = "wrong_number"
	OutcomeCallBackLater    Outcome = "call_back_later"
)

var (
	sources   = []Source{SourceSimulator, SourceLandingCallClick, SourceLandingForm, SourceTelephony}
	nextSteps = []NextStep{NextStepCallAttempt, NextStepVoicemailLeft, NextStepTextSent, NextStepSpokeToCustomer, NextStepNote}
	outcomes  = []Outcome{OutcomeBooked, OutcomeReachedNoBooking, OutcomeNoAnswer, OutcomeAlreadyHired, OutcomeWrongNumber, OutcomeCallBackLater}
)

// Event is a stored inbound interaction together with its triage fields.
type Event struct {
	ID            int64      `gorm:"primaryKey;autoIncrement"`
	CreatedAt     time.Time  `gorm:"not null;index:idx_events_created_at"`
	CallerNumber  string     `gorm:"type:varchar(20);not null"`
	Source        Source     `gorm:"type:varchar(32);not null"`
	Status        CallStatus `gorm:"type:varchar(16);not null"`
	Note          *string    `gorm:"type:text"`
	Owner         *string    `gorm:"type:varchar(120)"`
	NextStep      *NextStep  `gorm:"type:varchar(32)"`
	Outcome       *Outcome   `gorm:"type:varchar(32);index:idx_events_outcome"`
	OutcomeSetAt  *time.Time
	FirstActionAt *time.Time

	CallSid        *string `gorm:"type:varchar(64);uniqueIndex:idx_events_call_sid"`
	ToNumber       *string `gorm:"type:varchar(20)"`
	ProviderStatus *string `gorm:"type:varchar(32)"`
	Direction      *string `gorm:"type:varchar(32)"`
}

// TableName pins the table name used by the event store.
func (Event) TableName() string {
	return "events"
}

// Resolved reports whether the lead has an outcome.
func (e *Event) Resolved() bool {
	return e.Outcome != nil
}

// Touched reports whether staff have acted on the lead at least once.
func (e *Event) Touched() bool {
	return e.FirstActionAt != nil
}

// Clone returns a deep copy so callers can keep a snapshot across mutations.
func (e *Event) Clone() *Event {
	c := *e
	c.Note = cloneString(e.Note)
	c.Owner = cloneString(e.Owner)
	c.CallSid = cloneString(e.CallSid)
	c.ToNumber = cloneString(e.ToNumber)
	c.ProviderStatus = cloneString(e.ProviderStatus)
	c.Direction = cloneString(e.Direction)
	c.OutcomeSetAt = cloneTime(e.OutcomeSetAt)
	c.FirstActionAt = cloneTime(e.FirstActionAt)
	if e.NextStep != nil {
		v := *e.NextStep
		c.NextStep = &v
	}
	if e.Outcome != nil {
		v := *e.Outcome
		c.Outcome = &v
	}
	return &c
}

// Lead is an event annotated with the SLA evaluation made at read time.
type Lead struct {
	Event
	Overdue        bool
	OverdueMinutes *int
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

package consumer

import (
	"context"

	"github.com/raczniakservices/HVAC/internal/domain"
)

// Envelope wraps a lead activity with acknowledgment callbacks
type Envelope struct {
	Activity *domain.Activity
	ack      func(context.Context) error
	nack     func(context.Context) error
}

// NewEnvelope creates a new message envelope
func NewEnvelope(activity *domain.Activity, ack, nack func(context.Context) error) *Envelope {
	return &Envelope{
		Activity: activity,
		ack:      ack,
		nack:     nack,
	}
}

// Ack acknowledges successful processing
func (e *Envelope) Ack(ctx context.Context) error {
	if e.ack != nil {
		return e.ack(ctx)
	}
	return nil
}

// Nack negatively acknowledges processing
func (e *Envelope) Nack(ctx context.Context) error {
	if e.nack != nil {
		return e.nack(ctx)
	}
	return nil
}

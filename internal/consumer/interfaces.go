package consumer

import (
	"github.com/raczniakservices/HVAC/internal/domain"
)

// MessageParser defines the interface for parsing raw message bytes into lead activity
type MessageParser interface {
	Parse(body []byte) (*domain.Activity, error)
}

package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ActivityKind names a change in a lead's lifecycle.
type ActivityKind string

const (
	ActivityCreated        ActivityKind = "created"
	ActivityCallUpdated    ActivityKind = "call_updated"
	ActivityOwnerSet       ActivityKind = "owner_set"
	ActivityNextStepSet    ActivityKind = "next_step_set"
	ActivityOutcomeSet     ActivityKind = "outcome_set"
	ActivityOutcomeCleared ActivityKind = "outcome_cleared"
	ActivityDeleted        ActivityKind = "deleted"
)

// Activity is an append-only ledger row stored in ClickHouse
type Activity struct {
	ActivityID      string    `ch:"activity_id" json:"activity_id"`
	EventID         int64     `ch:"event_id" json:"event_id"`
	Kind            string    `ch:"kind" json:"kind"`
	Source          string    `ch:"source" json:"source"`
	Owner           string    `ch:"owner" json:"owner"`
	NextStep        string    `ch:"next_step" json:"next_step"`
	Outcome         string    `ch:"outcome" json:"outcome"`
	LeadCreatedAt   int64     `ch:"lead_created_at" json:"lead_created_at"`
	Timestamp       int64     `ch:"timestamp" json:"timestamp"`
	ResponseSeconds int64     `ch:"response_seconds" json:"response_seconds"`
	ProcessedAt     time.Time `ch:"processed_at" json:"-"`
	Version         uint64    `ch:"version" json:"-"`
}

// NewActivity snapshots e after a change of the given kind at time at.
// ResponseSeconds is -1 unless the lead has an outcome.
func NewActivity(kind ActivityKind, e *Event, at time.Time) *Activity {
	a := &Activity{
		EventID:         e.ID,
		Kind:            string(kind),
		Source:          string(e.Source),
		LeadCreatedAt:   e.CreatedAt.Unix(),
		Timestamp:       at.Unix(),
		ResponseSeconds: -1,
	}
	if e.Owner != nil {
		a.Owner = *e.Owner
	}
	if e.NextStep != nil {
		a.NextStep = string(*e.NextStep)
	}
	if e.Outcome != nil {
		a.Outcome = string(*e.Outcome)
	}
	if d, ok := e.OutcomeResponse(); ok {
		a.ResponseSeconds = int64(d / time.Second)
	}
	a.ActivityID = computeActivityID(a, at)
	return a
}

// computeActivityID derives a deterministic id so redelivered messages
// collapse in the ReplacingMergeTree.
// Uses SHA-256 of: event_id|kind|timestamp_ns|owner|next_step|outcome
func computeActivityID(a *Activity, at time.Time) string {
	data := fmt.Sprintf("%d|%s|%d|%s|%s|%s",
		a.EventID,
		a.Kind,
		at.UnixNano(),
		a.Owner,
		a.NextStep,
		a.Outcome,
	)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

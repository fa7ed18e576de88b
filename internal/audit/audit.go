// Package audit records the outcome of every scoring and grading decision.
// Auditing is fire-and-forget: a sink failure is logged and counted but never
// fails the request that produced the record.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record is one verification decision. Score results are recomputed per
// request and never persisted server-side; the audit trail is the only place
// they outlive the response.
type Record struct {
	ID          string    `json:"id"`
	TS          time.Time `json:"ts"`
	SessionID   string    `json:"session_id,omitempty"`
	IP          string    `json:"ip,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	Mode        string    `json:"mode,omitempty"`
	Score       float64   `json:"score"`
	Indicators  []string  `json:"indicators,omitempty"`
	Outcome     string    `json:"outcome"`
	ChallengeID string    `json:"challenge_id,omitempty"`
}

// NewRecord stamps identity and time; callers fill in the decision fields.
func NewRecord(outcome string) Record {
	return Record{
		ID:      uuid.New().String(),
		TS:      time.Now().UTC(),
		Outcome: outcome,
	}
}

// Sink is one audit destination.
type Sink interface {
	Name() string
	Start(ctx context.Context) error
	Enqueue(r Record) error
	Close() error
}

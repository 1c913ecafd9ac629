// Package events carries exam session lifecycle events over watermill,
// backed by Kafka when brokers are configured and an in-process channel otherwise.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Type names a session lifecycle event.
type Type string

const (
	TypeSessionStarted      Type = "session.started"
	TypeSessionCheckpointed Type = "session.checkpointed"
	TypeSessionPaused       Type = "session.paused"
	TypeSessionResumed      Type = "session.resumed"
	TypeSessionSubmitted    Type = "session.submitted"
)

// SessionEvent is the payload published for every session transition.
type SessionEvent struct {
	ID                   string    `json:"id"`
	Type                 Type      `json:"type"`
	UserID               uuid.UUID `json:"userId"`
	ExamID               uuid.UUID `json:"examId"`
	RemainingTime        int       `json:"remainingTime"`
	CurrentQuestionIndex int       `json:"currentQuestionIndex"`
	Points               float64   `json:"points"`
	Source               string    `json:"source,omitempty"`
	At                   time.Time `json:"at"`
}

// NewSessionEvent stamps an event with a fresh id and the current time.
func NewSessionEvent(t Type, userID, examID uuid.UUID) SessionEvent {
	return SessionEvent{
		ID:     uuid.NewString(),
		Type:   t,
		UserID: userID,
		ExamID: examID,
		At:     time.Now().UTC(),
	}
}

package websocket

import (
	"github.com/stemsi/examhall-backend/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionCheckpoint Action = "checkpoint"
	ActionSubmit     Action = "submit"
	ActionPing       Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// CheckpointRequest carries the full client state of the attempt.
type CheckpointRequest struct {
	Action               Action     `json:"action"`
	RemainingTime        *int       `json:"remainingTime" validate:"required,gte=0"`
	IsPaused             bool       `json:"isPaused"`
	CurrentQuestionIndex int        `json:"currentQuestionIndex" validate:"gte=0"`
	SelectedAnswers      [][]string `json:"selectedAnswers"`
	TotalPoints          float64    `json:"totalPoints" validate:"gte=0"`
	QuestionPoints       []float64  `json:"questionPoints" validate:"dive,gte=0"`
}

// SubmitRequest finishes the attempt. Omitting points lets the server grade.
type SubmitRequest struct {
	Action         Action     `json:"action"`
	Answers        [][]string `json:"answers" validate:"required"`
	Points         *float64   `json:"points" validate:"omitempty,gte=0"`
	QuestionPoints []float64  `json:"questionPoints" validate:"dive,gte=0"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError   Event = "error"
	EventSuccess Event = "success"
	EventGraded  Event = "graded"
	EventPong    Event = "pong"
)

type CheckpointResponse struct {
	Event   Event              `json:"event"`
	Session *model.ExamSession `json:"session"`
}

type GradedResponse struct {
	Event      Event             `json:"event"`
	Submission *model.Submission `json:"submission"`
}

type ErrorResponse struct {
	Event  Event             `json:"event"`
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamSession is the single in-progress attempt of a user on an exam.
// RemainingTime, IsPaused, CurrentQuestionIndex and the answer/point fields
// hold what the client last reported. StartedAt, DurationSeconds, PausedAt and
// PausedSeconds are tracked by the server and drive ServerRemainingTime.
type ExamSession struct {
	ID                   uuid.UUID  `json:"id"`
	UserID               uuid.UUID  `json:"userId"`
	ExamID               uuid.UUID  `json:"examId"`
	RemainingTime        int        `json:"remainingTime"`
	IsPaused             bool       `json:"isPaused"`
	CurrentQuestionIndex int        `json:"currentQuestionIndex"`
	SelectedAnswers      [][]string `json:"selectedAnswers"`
	TotalPoints          float64    `json:"totalPoints"`
	QuestionPoints       []float64  `json:"questionPoints"`
	StartedAt            time.Time  `json:"startedAt"`
	DurationSeconds      int        `json:"durationSeconds"`
	PausedAt             *time.Time `json:"pausedAt,omitempty"`
	PausedSeconds        int        `json:"pausedSeconds"`
	LastUpdated          time.Time  `json:"lastUpdated"`

	ServerRemainingTime int `json:"serverRemainingTime"`
}

// DeriveRemaining computes the server-side remaining time at now:
// duration minus wall time since start, excluding accumulated and current pauses.
func (s *ExamSession) DeriveRemaining(now time.Time) int {
	elapsed := now.Sub(s.StartedAt) - time.Duration(s.PausedSeconds)*time.Second
	if s.PausedAt != nil {
		elapsed -= now.Sub(*s.PausedAt)
	}
	remaining := s.DurationSeconds - int(elapsed/time.Second)
	if remaining < 0 {
		return 0
	}
	if remaining > s.DurationSeconds {
		return s.DurationSeconds
	}
	return remaining
}

// StartSessionRequest is the payload for starting or resuming an attempt.
type StartSessionRequest struct {
	ExamID string `json:"examId" binding:"required,uuid"`
}

// CheckpointRequest is the full client-reported state of an attempt.
// UserID may be omitted; it defaults to the authenticated user.
type CheckpointRequest struct {
	UserID               string     `json:"userId" binding:"omitempty,uuid"`
	ExamID               string     `json:"examId" binding:"required,uuid"`
	RemainingTime        *int       `json:"remainingTime" binding:"required,gte=0"`
	IsPaused             bool       `json:"isPaused"`
	CurrentQuestionIndex int        `json:"currentQuestionIndex" binding:"gte=0"`
	SelectedAnswers      [][]string `json:"selectedAnswers"`
	TotalPoints          float64    `json:"totalPoints" binding:"gte=0"`
	QuestionPoints       []float64  `json:"questionPoints" binding:"dive,gte=0"`
}

// FetchSessionQuery identifies the session to read.
type FetchSessionQuery struct {
	UserID string `form:"userId" binding:"omitempty,uuid"`
	ExamID string `form:"examId" binding:"required,uuid"`
}

// SubmitRequest finalizes an attempt. When Points is nil the server grades
// the answers against the catalog.
type SubmitRequest struct {
	UserID         string     `json:"userId" binding:"omitempty,uuid"`
	ExamID         string     `json:"examId" binding:"required,uuid"`
	Answers        [][]string `json:"answers" binding:"required"`
	Points         *float64   `json:"points" binding:"omitempty,gte=0"`
	QuestionPoints []float64  `json:"questionPoints" binding:"dive,gte=0"`
}

// CheckpointResponse mirrors the `{success, session}` body of a checkpoint.
type CheckpointResponse struct {
	Success bool         `json:"success"`
	Session *ExamSession `json:"session"`
}

// SubmitResponse mirrors the `{message, examSubmission}` body of a finalize.
type SubmitResponse struct {
	Message        string      `json:"message"`
	ExamSubmission *Submission `json:"examSubmission"`
}

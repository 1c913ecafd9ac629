package model

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionSource records who computed the score of a submission.
type SubmissionSource string

const (
	SubmissionSourceClient       SubmissionSource = "client"
	SubmissionSourceServerGraded SubmissionSource = "server_graded"
	SubmissionSourceExpired      SubmissionSource = "expired"
)

// Submission is a finalized attempt. Rows are never updated.
type Submission struct {
	ID             uuid.UUID        `json:"id"`
	UserID         uuid.UUID        `json:"userId"`
	ExamID         uuid.UUID        `json:"examId"`
	Answers        [][]string       `json:"answers"`
	Points         float64          `json:"points"`
	QuestionPoints []float64        `json:"questionPoints"`
	Source         SubmissionSource `json:"source"`
	SubmittedAt    time.Time        `json:"submittedAt"`
}

// SubmissionListQuery filters the submission listing.
type SubmissionListQuery struct {
	ExamID  string `form:"examId" binding:"omitempty,uuid"`
	Page    int    `form:"page" binding:"omitempty,min=1"`
	PerPage int    `form:"per_page" binding:"omitempty,min=1,max=100"`
}

// SubmissionRow is a submission joined with the username, used by exports.
type SubmissionRow struct {
	Submission
	Username string `json:"username"`
}

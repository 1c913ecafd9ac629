package model

import (
	"github.com/google/uuid"
)

// Question is a single multiple-choice question. A single-select question
// carries exactly one entry in CorrectAnswers.
type Question struct {
	ID             uuid.UUID `json:"id"`
	Answers        []string  `json:"answers"`
	CorrectAnswers []string  `json:"correctAnswers,omitempty"`
	Points         float64   `json:"points"`
	Explanation    string    `json:"explanation,omitempty"`
	Image          string    `json:"image,omitempty"`
}

// QuestionInput is one element of the questionsData form field.
// ID is honoured only on exam update, for a question the exam already has.
type QuestionInput struct {
	ID             *uuid.UUID `json:"_id" validate:"omitempty"`
	Answers        []string   `json:"answers" validate:"required,min=2,dive,required"`
	CorrectAnswers []string   `json:"correctAnswers" validate:"required,min=1,dive,required"`
	Points         *float64   `json:"points" validate:"omitempty,gte=0"`
	Explanation    string     `json:"explanation" validate:"max=5000"`
	Image          string     `json:"image"`
}

// WithoutKey returns a copy of the question with the answer key and
// explanation stripped, for delivery to students mid-attempt.
func (q Question) WithoutKey() Question {
	q.CorrectAnswers = nil
	q.Explanation = ""
	return q
}

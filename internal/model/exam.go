package model

import (
	"time"

	"github.com/google/uuid"
)

// Exam is an ordered list of questions with a fixed duration.
// QuestionIDs may repeat; scoring is positional.
type Exam struct {
	ID              uuid.UUID   `json:"id"`
	Title           string      `json:"title"`
	Slug            string      `json:"slug"`
	CategoryID      uuid.UUID   `json:"categoryId"`
	CategoryTitle   string      `json:"categoryTitle,omitempty"`
	AuthorID        uuid.UUID   `json:"authorId"`
	AuthorUsername  string      `json:"authorUsername,omitempty"`
	Plan            Plan        `json:"plan"`
	IsVisible       bool        `json:"isVisible"`
	DurationSeconds int         `json:"duration"`
	QuestionIDs     []uuid.UUID `json:"questionIds"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// ExamWithQuestions is the catalog payload cached in Redis. Questions are
// resolved in QuestionIDs order, duplicates included.
type ExamWithQuestions struct {
	Exam
	Questions []Question `json:"questions"`
}

// ForStudent strips answer keys from every question.
func (e ExamWithQuestions) ForStudent() ExamWithQuestions {
	out := e
	out.Questions = make([]Question, len(e.Questions))
	for i, q := range e.Questions {
		out.Questions[i] = q.WithoutKey()
	}
	return out
}

// CreateExamForm is the non-file part of the multipart create-exam request.
type CreateExamForm struct {
	Title         string `form:"title" binding:"required,min=3,max=255"`
	CategoryID    string `form:"category" binding:"required,uuid"`
	Duration      int    `form:"duration" binding:"required,min=1"`
	Plan          Plan   `form:"plan" binding:"omitempty,oneof=free basic premium"`
	QuestionsData string `form:"questionsData" binding:"required"`
}

// UpdateExamForm is the non-file part of the multipart edit-exam request.
// Empty fields are left unchanged.
type UpdateExamForm struct {
	Title         string `form:"title" binding:"omitempty,min=3,max=255"`
	CategoryID    string `form:"category" binding:"omitempty,uuid"`
	Duration      int    `form:"duration" binding:"omitempty,min=1"`
	Plan          Plan   `form:"plan" binding:"omitempty,oneof=free basic premium"`
	IsVisible     *bool  `form:"isVisible" binding:"omitempty"`
	QuestionsData string `form:"questionsData"`
}

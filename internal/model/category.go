package model

import (
	"time"

	"github.com/google/uuid"
)

// Category groups exams and ads.
type Category struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Plan      Plan      `json:"plan"`
	IsVisible bool      `json:"isVisible"`
	ExamCount int       `json:"examCount"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateCategoryRequest is the payload for adding a category.
type CreateCategoryRequest struct {
	Title string `json:"title" binding:"required,min=2,max=100,slugtitle"`
}

// UpdateCategoryRequest is the payload for updating a category.
// Nil fields are left unchanged.
type UpdateCategoryRequest struct {
	Title     *string `json:"title" binding:"omitempty,min=2,max=100,slugtitle"`
	Plan      *Plan   `json:"plan" binding:"omitempty,oneof=free basic premium"`
	IsVisible *bool   `json:"isVisible"`
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// Ad is a classified listing.
type Ad struct {
	ID            uuid.UUID `json:"id"`
	Title         string    `json:"title"`
	CategoryID    uuid.UUID `json:"categoryId"`
	CategoryTitle string    `json:"categoryTitle,omitempty"`
	Price         string    `json:"price"`
	Description   string    `json:"description"`
	Images        []string  `json:"imgsSrc"`
	Slug          string    `json:"slug"`
	UserID        uuid.UUID `json:"userId"`
	Username      string    `json:"username,omitempty"`
	Sold          bool      `json:"sold"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// CreateAdForm is the non-file part of the multipart create-ad request.
type CreateAdForm struct {
	Title       string `form:"title" binding:"required,min=2,max=200"`
	CategoryID  string `form:"category" binding:"required,uuid"`
	Price       string `form:"price" binding:"required,max=50"`
	Description string `form:"description" binding:"required,max=5000"`
}

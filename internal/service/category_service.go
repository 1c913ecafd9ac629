package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/stemsi/examhall-backend/internal/model"
	"github.com/stemsi/examhall-backend/internal/repository"
)

var (
	ErrCategoryNotFound = errors.New("category not found")
	ErrCategoryExists   = errors.New("category already exists")
)

// CategoryStore is the category persistence used by the catalog.
type CategoryStore interface {
	List(ctx context.Context) ([]model.Category, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Category, error)
	GetByTitle(ctx context.Context, title string) (*model.Category, error)
	Create(ctx context.Context, c *model.Category) error
	Update(ctx context.Context, id uuid.UUID, title *string, plan *model.Plan, isVisible *bool) (*model.Category, error)
	Delete(ctx context.Context, id uuid.UUID) ([]uuid.UUID, []string, error)
}

// CategoryService manages categories. Deleting one cascades to its exams.
type CategoryService struct {
	categories CategoryStore
	exams      *ExamService
	media      *MediaService
	log        zerolog.Logger
}

func NewCategoryService(categories CategoryStore, exams *ExamService, media *MediaService, log zerolog.Logger) *CategoryService {
	return &CategoryService{
		categories: categories,
		exams:      exams,
		media:      media,
		log:        log.With().Str("component", "category_service").Logger(),
	}
}

func (s *CategoryService) List(ctx context.Context) ([]model.Category, error) {
	return s.categories.List(ctx)
}

// Create adds a category. The title is stored lower-kebab formatted.
func (s *CategoryService) Create(ctx context.Context, req model.CreateCategoryRequest) (*model.Category, error) {
	c := &model.Category{Title: Slugify(req.Title), Plan: model.PlanFree}
	if err := s.categories.Create(ctx, c); err != nil {
		if errors.Is(err, repository.ErrDuplicateCategory) {
			return nil, ErrCategoryExists
		}
		return nil, fmt.Errorf("create category: %w", err)
	}
	s.log.Info().Str("category", c.Title).Msg("Category created")
	return c, nil
}

func (s *CategoryService) Update(ctx context.Context, id uuid.UUID, req model.UpdateCategoryRequest) (*model.Category, error) {
	var title *string
	if req.Title != nil {
		formatted := Slugify(*req.Title)
		title = &formatted
	}
	c, err := s.categories.Update(ctx, id, title, req.Plan, req.IsVisible)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, ErrCategoryNotFound
	case errors.Is(err, repository.ErrDuplicateCategory):
		return nil, ErrCategoryExists
	case err != nil:
		return nil, fmt.Errorf("update category: %w", err)
	}

	// Exam slugs embed the category title; cached entries are stale.
	if title != nil {
		s.exams.InvalidateCategory(ctx, id)
	}
	return c, nil
}

// Delete removes a category with its exams, their questions and images.
func (s *CategoryService) Delete(ctx context.Context, id uuid.UUID) error {
	examIDs, images, err := s.categories.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCategoryNotFound
		}
		return fmt.Errorf("delete category: %w", err)
	}

	s.exams.InvalidateByIDs(ctx, examIDs)
	s.media.DeleteAll(ctx, images)

	s.log.Info().
		Str("category_id", id.String()).
		Int("exams", len(examIDs)).
		Int("images", len(images)).
		Msg("Category deleted")
	return nil
}

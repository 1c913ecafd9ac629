package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/stemsi/examhall-backend/internal/model"
)

var (
	ErrAdNotFound    = errors.New("ad not found")
	ErrNotOwner      = errors.New("not the owner of this resource")
	ErrImageRequired = errors.New("at least one image is required")
)

// AdStore is the ad persistence.
type AdStore interface {
	List(ctx context.Context) ([]model.Ad, error)
	ListByCategory(ctx context.Context, categoryID uuid.UUID) ([]model.Ad, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Ad, error)
	GetBySlug(ctx context.Context, slug string) (*model.Ad, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Ad, error)
	Create(ctx context.Context, a *model.Ad) error
	ToggleSold(ctx context.Context, id uuid.UUID) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) ([]string, error)
	OwnerOf(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// AdService manages classified ads.
type AdService struct {
	ads        AdStore
	categories CategoryStore
	users      UserStore
	media      *MediaService
	log        zerolog.Logger
}

func NewAdService(ads AdStore, categories CategoryStore, users UserStore, media *MediaService, log zerolog.Logger) *AdService {
	return &AdService{
		ads:        ads,
		categories: categories,
		users:      users,
		media:      media,
		log:        log.With().Str("component", "ad_service").Logger(),
	}
}

func (s *AdService) List(ctx context.Context) ([]model.Ad, error) {
	return s.ads.List(ctx)
}

func (s *AdService) GetBySlug(ctx context.Context, slug string) (*model.Ad, error) {
	ad, err := s.ads.GetBySlug(ctx, slug)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAdNotFound
	}
	return ad, err
}

// ListRelated returns the ads of a category given by title.
func (s *AdService) ListRelated(ctx context.Context, categoryTitle string) ([]model.Ad, error) {
	cat, err := s.categories.GetByTitle(ctx, categoryTitle)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return s.ads.ListByCategory(ctx, cat.ID)
}

// ListByUsername returns the ads posted by a user.
func (s *AdService) ListByUsername(ctx context.Context, username string) ([]model.Ad, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.ads.ListByUser(ctx, u.ID)
}

// Create uploads the images and stores a new ad owned by userID.
func (s *AdService) Create(ctx context.Context, userID uuid.UUID, form model.CreateAdForm, images []*multipart.FileHeader) (*model.Ad, error) {
	if len(images) == 0 {
		return nil, ErrImageRequired
	}
	cat, err := s.categories.GetByID(ctx, uuid.MustParse(form.CategoryID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}

	urls, err := s.media.SaveAll(ctx, images)
	if err != nil {
		return nil, err
	}

	ad := &model.Ad{
		ID:            uuid.New(),
		Title:         form.Title,
		CategoryID:    cat.ID,
		CategoryTitle: cat.Title,
		Price:         form.Price,
		Description:   form.Description,
		Images:        urls,
		UserID:        userID,
	}
	ad.Slug = Slugify(ad.ID.String(), cat.Title, ad.Title)

	if err := s.ads.Create(ctx, ad); err != nil {
		s.media.DeleteAll(ctx, urls)
		return nil, fmt.Errorf("create ad: %w", err)
	}
	s.log.Info().Str("ad_id", ad.ID.String()).Int("images", len(urls)).Msg("Ad created")
	return ad, nil
}

// ToggleSold flips the sold flag. Only the owner may do so.
func (s *AdService) ToggleSold(ctx context.Context, id, actorID uuid.UUID) (bool, error) {
	if err := s.authorize(ctx, id, actorID, false); err != nil {
		return false, err
	}
	sold, err := s.ads.ToggleSold(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrAdNotFound
	}
	return sold, err
}

// Delete removes an ad and its images. Owners and admins may delete.
func (s *AdService) Delete(ctx context.Context, id, actorID uuid.UUID, isAdmin bool) error {
	if err := s.authorize(ctx, id, actorID, isAdmin); err != nil {
		return err
	}
	images, err := s.ads.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAdNotFound
		}
		return fmt.Errorf("delete ad: %w", err)
	}
	s.media.DeleteAll(ctx, images)
	return nil
}

func (s *AdService) authorize(ctx context.Context, id, actorID uuid.UUID, isAdmin bool) error {
	owner, err := s.ads.OwnerOf(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAdNotFound
		}
		return err
	}
	if owner != actorID && !isAdmin {
		return ErrNotOwner
	}
	return nil
}

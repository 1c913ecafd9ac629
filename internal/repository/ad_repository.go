package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/stemsi/examhall-backend/internal/database"
	"github.com/stemsi/examhall-backend/internal/model"
)

const adSelect = `SELECT a.id, a.title, a.category_id, c.title, a.price, a.description, a.images,
		a.slug, a.user_id, u.username, a.sold, a.created_at, a.updated_at
	 FROM ads a
	 JOIN categories c ON c.id = a.category_id
	 JOIN users u ON u.id = a.user_id`

// AdRepository handles classified listing data access.
type AdRepository struct {
	db database.DB
}

// NewAdRepository creates a new AdRepository.
func NewAdRepository(db database.DB) *AdRepository {
	return &AdRepository{db: db}
}

func scanAd(row rowScanner) (*model.Ad, error) {
	a := &model.Ad{}
	err := row.Scan(&a.ID, &a.Title, &a.CategoryID, &a.CategoryTitle, &a.Price, &a.Description, &a.Images,
		&a.Slug, &a.UserID, &a.Username, &a.Sold, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *AdRepository) list(ctx context.Context, query string, args ...any) ([]model.Ad, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ads := []model.Ad{}
	for rows.Next() {
		a, err := scanAd(rows)
		if err != nil {
			return nil, err
		}
		ads = append(ads, *a)
	}
	return ads, rows.Err()
}

// List retrieves all ads, newest first.
func (r *AdRepository) List(ctx context.Context) ([]model.Ad, error) {
	return r.list(ctx, adSelect+` ORDER BY a.created_at DESC`)
}

// ListByCategory retrieves ads in one category.
func (r *AdRepository) ListByCategory(ctx context.Context, categoryID uuid.UUID) ([]model.Ad, error) {
	return r.list(ctx, adSelect+` WHERE a.category_id = $1 ORDER BY a.created_at DESC`, categoryID)
}

// ListByUser retrieves ads posted by one user.
func (r *AdRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Ad, error) {
	return r.list(ctx, adSelect+` WHERE a.user_id = $1 ORDER BY a.created_at DESC`, userID)
}

// GetBySlug retrieves an ad by slug.
func (r *AdRepository) GetBySlug(ctx context.Context, slug string) (*model.Ad, error) {
	return scanAd(r.db.QueryRow(ctx, adSelect+` WHERE a.slug = $1`, slug))
}

// GetByID retrieves an ad by ID.
func (r *AdRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Ad, error) {
	return scanAd(r.db.QueryRow(ctx, adSelect+` WHERE a.id = $1`, id))
}

// Create inserts an ad. a.ID and a.Slug must already be set.
func (r *AdRepository) Create(ctx context.Context, a *model.Ad) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO ads (id, title, category_id, price, description, images, slug, user_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING sold, created_at, updated_at`,
		a.ID, a.Title, a.CategoryID, a.Price, a.Description, a.Images, a.Slug, a.UserID,
	).Scan(&a.Sold, &a.CreatedAt, &a.UpdatedAt)
}

// ToggleSold flips the sold flag and returns its new value.
func (r *AdRepository) ToggleSold(ctx context.Context, id uuid.UUID) (bool, error) {
	var sold bool
	err := r.db.QueryRow(ctx,
		`UPDATE ads SET sold = NOT sold, updated_at = NOW() WHERE id = $1 RETURNING sold`, id,
	).Scan(&sold)
	return sold, err
}

// Delete removes an ad and returns its image references.
func (r *AdRepository) Delete(ctx context.Context, id uuid.UUID) ([]string, error) {
	var images []string
	err := r.db.QueryRow(ctx, `DELETE FROM ads WHERE id = $1 RETURNING images`, id).Scan(&images)
	if err != nil {
		return nil, err
	}
	return images, nil
}

// OwnerOf returns the user id owning an ad.
func (r *AdRepository) OwnerOf(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var owner uuid.UUID
	err := r.db.QueryRow(ctx, `SELECT user_id FROM ads WHERE id = $1`, id).Scan(&owner)
	if err != nil {
		return uuid.Nil, err
	}
	return owner, nil
}

package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/examhall-backend/internal/database"
	"github.com/stemsi/examhall-backend/internal/model"
)

const categoryColumns = `c.id, c.title, c.plan, c.is_visible, c.created_at, c.updated_at`

// CategoryRepository handles category data access.
type CategoryRepository struct {
	db database.DB
}

// NewCategoryRepository creates a new CategoryRepository.
func NewCategoryRepository(db database.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// List retrieves all categories with the number of exams in each.
func (r *CategoryRepository) List(ctx context.Context) ([]model.Category, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+categoryColumns+`, COUNT(e.id)
		 FROM categories c
		 LEFT JOIN exams e ON e.category_id = c.id
		 GROUP BY c.id
		 ORDER BY c.title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []model.Category{}
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Title, &c.Plan, &c.IsVisible, &c.CreatedAt, &c.UpdatedAt, &c.ExamCount); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// GetByID retrieves a category by ID.
func (r *CategoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Category, error) {
	c := &model.Category{}
	err := r.db.QueryRow(ctx,
		`SELECT `+categoryColumns+` FROM categories c WHERE c.id = $1`, id,
	).Scan(&c.ID, &c.Title, &c.Plan, &c.IsVisible, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetByTitle retrieves a category by its formatted title.
func (r *CategoryRepository) GetByTitle(ctx context.Context, title string) (*model.Category, error) {
	c := &model.Category{}
	err := r.db.QueryRow(ctx,
		`SELECT `+categoryColumns+` FROM categories c WHERE c.title = $1`, title,
	).Scan(&c.ID, &c.Title, &c.Plan, &c.IsVisible, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Create inserts a new category.
func (r *CategoryRepository) Create(ctx context.Context, c *model.Category) error {
	if c.Plan == "" {
		c.Plan = model.PlanFree
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO categories (title, plan, is_visible)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		c.Title, c.Plan, c.IsVisible,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if _, ok := uniqueViolation(err); ok {
		return ErrDuplicateCategory
	}
	return err
}

// Update applies the non-nil fields and returns the updated category.
func (r *CategoryRepository) Update(ctx context.Context, id uuid.UUID, title *string, plan *model.Plan, isVisible *bool) (*model.Category, error) {
	c := &model.Category{}
	err := r.db.QueryRow(ctx,
		`UPDATE categories SET
			title = COALESCE($2, title),
			plan = COALESCE($3, plan),
			is_visible = COALESCE($4, is_visible),
			updated_at = NOW()
		 WHERE id = $1
		 RETURNING id, title, plan, is_visible, created_at, updated_at`,
		id, title, plan, isVisible,
	).Scan(&c.ID, &c.Title, &c.Plan, &c.IsVisible, &c.CreatedAt, &c.UpdatedAt)
	if _, ok := uniqueViolation(err); ok {
		return nil, ErrDuplicateCategory
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes a category together with its exams and their questions,
// returning the exam ids and question image references that were removed.
func (r *CategoryRepository) Delete(ctx context.Context, id uuid.UUID) (examIDs []uuid.UUID, images []string, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	rows, err := tx.Query(ctx,
		`DELETE FROM questions
		 WHERE id IN (SELECT UNNEST(question_ids) FROM exams WHERE category_id = $1)
		 RETURNING image`, id)
	if err != nil {
		return nil, nil, err
	}
	images, err = collectImages(rows)
	if err != nil {
		return nil, nil, err
	}

	// Exams, sessions and submissions follow through ON DELETE CASCADE.
	rows, err = tx.Query(ctx, `SELECT id FROM exams WHERE category_id = $1`, id)
	if err != nil {
		return nil, nil, err
	}
	for rows.Next() {
		var examID uuid.UUID
		if err := rows.Scan(&examID); err != nil {
			rows.Close()
			return nil, nil, err
		}
		examIDs = append(examIDs, examID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	tag, err := tx.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return nil, nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, nil, pgx.ErrNoRows
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return examIDs, images, nil
}

package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/examhall-backend/internal/database"
	"github.com/stemsi/examhall-backend/internal/model"
)

const examSelect = `SELECT e.id, e.title, e.slug, e.category_id, c.title, e.author_id, u.username,
		e.plan, e.is_visible, e.duration_seconds, e.question_ids, e.created_at, e.updated_at
	 FROM exams e
	 JOIN categories c ON c.id = e.category_id
	 JOIN users u ON u.id = e.author_id`

// ExamRepository handles exam data access.
type ExamRepository struct {
	db database.DB
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(db database.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

// ExamUpdate carries the fields of an exam edit. Nil fields are unchanged;
// a nil Questions slice leaves the question list alone.
type ExamUpdate struct {
	Title           *string
	Slug            *string
	CategoryID      *uuid.UUID
	Plan            *model.Plan
	IsVisible       *bool
	DurationSeconds *int
	Questions       []model.Question
}

func scanExam(row rowScanner) (*model.Exam, error) {
	e := &model.Exam{}
	err := row.Scan(&e.ID, &e.Title, &e.Slug, &e.CategoryID, &e.CategoryTitle, &e.AuthorID, &e.AuthorUsername,
		&e.Plan, &e.IsVisible, &e.DurationSeconds, &e.QuestionIDs, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *ExamRepository) list(ctx context.Context, query string, args ...any) ([]model.Exam, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exams := []model.Exam{}
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}

// List retrieves all exams, newest first.
func (r *ExamRepository) List(ctx context.Context) ([]model.Exam, error) {
	return r.list(ctx, examSelect+` ORDER BY e.created_at DESC`)
}

// ListByCategory retrieves the exams of one category.
func (r *ExamRepository) ListByCategory(ctx context.Context, categoryID uuid.UUID) ([]model.Exam, error) {
	return r.list(ctx, examSelect+` WHERE e.category_id = $1 ORDER BY e.created_at DESC`, categoryID)
}

// ListIDs returns the ids of every exam, used to prewarm the catalog cache.
func (r *ExamRepository) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM exams`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetByID retrieves an exam by ID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return scanExam(r.db.QueryRow(ctx, examSelect+` WHERE e.id = $1`, id))
}

// GetBySlug retrieves an exam by slug.
func (r *ExamRepository) GetBySlug(ctx context.Context, slug string) (*model.Exam, error) {
	return scanExam(r.db.QueryRow(ctx, examSelect+` WHERE e.slug = $1`, slug))
}

// Create inserts the questions and the exam in one transaction. e.ID and
// e.Slug must already be set; QuestionIDs is filled from questions.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam, questions []model.Question) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	e.QuestionIDs = make([]uuid.UUID, len(questions))
	for i := range questions {
		if err := upsertQuestion(ctx, tx, &questions[i]); err != nil {
			return err
		}
		e.QuestionIDs[i] = questions[i].ID
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO exams (id, title, slug, category_id, author_id, plan, is_visible, duration_seconds, question_ids)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at, updated_at`,
		e.ID, e.Title, e.Slug, e.CategoryID, e.AuthorID, e.Plan, e.IsVisible, e.DurationSeconds, e.QuestionIDs,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Update applies u to exam id. When u.Questions is set, questions dropped
// from the exam are deleted and their image references returned. Questions
// cannot be replaced while any session of the exam is open (ErrExamInUse).
func (r *ExamRepository) Update(ctx context.Context, id uuid.UUID, u ExamUpdate) (removedImages []string, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var oldIDs []uuid.UUID
	if err := tx.QueryRow(ctx, `SELECT question_ids FROM exams WHERE id = $1 FOR UPDATE`, id).Scan(&oldIDs); err != nil {
		return nil, err
	}

	var newIDs []uuid.UUID
	if u.Questions != nil {
		// The FOR UPDATE lock above blocks session inserts (FK key share) until commit.
		var inUse bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM exam_sessions WHERE exam_id = $1)`, id).Scan(&inUse); err != nil {
			return nil, err
		}
		if inUse {
			return nil, ErrExamInUse
		}
		newIDs = make([]uuid.UUID, len(u.Questions))
		for i := range u.Questions {
			if err := upsertQuestion(ctx, tx, &u.Questions[i]); err != nil {
				return nil, err
			}
			newIDs[i] = u.Questions[i].ID
		}
		rows, err := tx.Query(ctx,
			`DELETE FROM questions WHERE id = ANY($1) AND NOT (id = ANY($2)) RETURNING image`,
			oldIDs, newIDs)
		if err != nil {
			return nil, err
		}
		if removedImages, err = collectImages(rows); err != nil {
			return nil, err
		}
	}

	_, err = tx.Exec(ctx,
		`UPDATE exams SET
			title = COALESCE($2, title),
			slug = COALESCE($3, slug),
			category_id = COALESCE($4, category_id),
			plan = COALESCE($5, plan),
			is_visible = COALESCE($6, is_visible),
			duration_seconds = COALESCE($7, duration_seconds),
			question_ids = COALESCE($8, question_ids),
			updated_at = NOW()
		 WHERE id = $1`,
		id, u.Title, u.Slug, u.CategoryID, u.Plan, u.IsVisible, u.DurationSeconds, newIDs)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return removedImages, nil
}

// Delete removes an exam and its questions, returning their image references.
func (r *ExamRepository) Delete(ctx context.Context, id uuid.UUID) ([]string, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	rows, err := tx.Query(ctx,
		`DELETE FROM questions
		 WHERE id IN (SELECT UNNEST(question_ids) FROM exams WHERE id = $1)
		 RETURNING image`, id)
	if err != nil {
		return nil, err
	}
	images, err := collectImages(rows)
	if err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx, `DELETE FROM exams WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, pgx.ErrNoRows
	}
	return images, tx.Commit(ctx)
}

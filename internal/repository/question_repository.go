package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/examhall-backend/internal/database"
	"github.com/stemsi/examhall-backend/internal/model"
)

// QuestionRepository handles question data access.
type QuestionRepository struct {
	db database.DB
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(db database.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// ListByIDs resolves ids in order. Repeated ids yield repeated questions.
// Scoring is positional, so an id with no row fails the whole lookup with
// ErrQuestionMissing.
func (r *QuestionRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Question, error) {
	if len(ids) == 0 {
		return []model.Question{}, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, answers, correct_answers, points, explanation, image
		 FROM questions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]model.Question, len(ids))
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.Answers, &q.CorrectAnswers, &q.Points, &q.Explanation, &q.Image); err != nil {
			return nil, err
		}
		byID[q.ID] = q
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	questions := make([]model.Question, 0, len(ids))
	for i, id := range ids {
		q, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s at position %d", ErrQuestionMissing, id, i)
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// upsertQuestion inserts q, or updates it in place when q.ID is already set.
func upsertQuestion(ctx context.Context, tx pgx.Tx, q *model.Question) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO questions (id, answers, correct_answers, points, explanation, image)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
			answers = EXCLUDED.answers,
			correct_answers = EXCLUDED.correct_answers,
			points = EXCLUDED.points,
			explanation = EXCLUDED.explanation,
			image = EXCLUDED.image`,
		q.ID, q.Answers, q.CorrectAnswers, q.Points, q.Explanation, q.Image)
	return err
}

// collectImages drains rows of a single image column, skipping blanks.
func collectImages(rows pgx.Rows) ([]string, error) {
	defer rows.Close()
	var images []string
	for rows.Next() {
		var img string
		if err := rows.Scan(&img); err != nil {
			return nil, err
		}
		if img != "" {
			images = append(images, img)
		}
	}
	return images, rows.Err()
}

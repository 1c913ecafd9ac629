package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/examhall-backend/internal/database"
	"github.com/stemsi/examhall-backend/internal/model"
)

const submissionColumns = `s.id, s.user_id, s.exam_id, s.answers, s.points, s.question_points, s.source, s.submitted_at`

// SubmissionRepository handles the append-only submission ledger.
type SubmissionRepository struct {
	db database.DB
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(db database.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Finalize deletes the session of (sub.UserID, sub.ExamID) and records sub
// in one transaction. Without a session nothing is written and
// ErrNoActiveSession is returned, so one attempt yields at most one submission.
func (r *SubmissionRepository) Finalize(ctx context.Context, sub *model.Submission) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var sessionID uuid.UUID
	err = tx.QueryRow(ctx,
		`DELETE FROM exam_sessions WHERE user_id = $1 AND exam_id = $2 RETURNING id`,
		sub.UserID, sub.ExamID,
	).Scan(&sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNoActiveSession
	}
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO exam_submissions (user_id, exam_id, answers, points, question_points, source)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, submitted_at`,
		sub.UserID, sub.ExamID, sub.Answers, sub.Points, sub.QuestionPoints, sub.Source,
	).Scan(&sub.ID, &sub.SubmittedAt)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}

	return tx.Commit(ctx)
}

// List retrieves submissions, optionally narrowed to a user and/or exam.
func (r *SubmissionRepository) List(ctx context.Context, userID, examID *uuid.UUID, limit, offset int) ([]model.Submission, int, error) {
	where := ` WHERE ($1::uuid IS NULL OR s.user_id = $1) AND ($2::uuid IS NULL OR s.exam_id = $2)`

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM exam_submissions s`+where, userID, examID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+submissionColumns+` FROM exam_submissions s`+where+`
		 ORDER BY s.submitted_at DESC
		 LIMIT $3 OFFSET $4`,
		userID, examID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	subs := []model.Submission{}
	for rows.Next() {
		var s model.Submission
		if err := rows.Scan(&s.ID, &s.UserID, &s.ExamID, &s.Answers, &s.Points, &s.QuestionPoints, &s.Source, &s.SubmittedAt); err != nil {
			return nil, 0, err
		}
		subs = append(subs, s)
	}
	return subs, total, rows.Err()
}

// ListForExport retrieves every submission of an exam with usernames, oldest first.
func (r *SubmissionRepository) ListForExport(ctx context.Context, examID uuid.UUID) ([]model.SubmissionRow, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+submissionColumns+`, u.username
		 FROM exam_submissions s
		 JOIN users u ON u.id = s.user_id
		 WHERE s.exam_id = $1
		 ORDER BY s.submitted_at`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SubmissionRow
	for rows.Next() {
		var s model.SubmissionRow
		if err := rows.Scan(&s.ID, &s.UserID, &s.ExamID, &s.Answers, &s.Points, &s.QuestionPoints, &s.Source, &s.SubmittedAt, &s.Username); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

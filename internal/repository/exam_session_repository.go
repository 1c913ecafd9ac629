package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/examhall-backend/internal/database"
	"github.com/stemsi/examhall-backend/internal/model"
)

const sessionColumns = `id, user_id, exam_id, remaining_time, is_paused, current_question_index,
	selected_answers, total_points, question_points, started_at, duration_seconds,
	paused_at, paused_seconds, last_updated`

// ExamSessionRepository handles in-progress attempt data access.
// Rows are unique per (user_id, exam_id).
type ExamSessionRepository struct {
	db database.DB
}

// NewExamSessionRepository creates a new ExamSessionRepository.
func NewExamSessionRepository(db database.DB) *ExamSessionRepository {
	return &ExamSessionRepository{db: db}
}

func scanSession(row rowScanner) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := row.Scan(&s.ID, &s.UserID, &s.ExamID, &s.RemainingTime, &s.IsPaused, &s.CurrentQuestionIndex,
		&s.SelectedAnswers, &s.TotalPoints, &s.QuestionPoints, &s.StartedAt, &s.DurationSeconds,
		&s.PausedAt, &s.PausedSeconds, &s.LastUpdated)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Get retrieves the session for a user and exam.
func (r *ExamSessionRepository) Get(ctx context.Context, userID, examID uuid.UUID) (*model.ExamSession, error) {
	return scanSession(r.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions WHERE user_id = $1 AND exam_id = $2`,
		userID, examID))
}

// Start creates a fresh session seeded with durationSeconds. When a session
// already exists it is returned unchanged and created is false.
func (r *ExamSessionRepository) Start(ctx context.Context, userID, examID uuid.UUID, durationSeconds int, now time.Time) (s *model.ExamSession, created bool, err error) {
	s, err = scanSession(r.db.QueryRow(ctx,
		`INSERT INTO exam_sessions (user_id, exam_id, remaining_time, duration_seconds, started_at, last_updated)
		 VALUES ($1, $2, $3, $3, $4, $4)
		 ON CONFLICT (user_id, exam_id) DO NOTHING
		 RETURNING `+sessionColumns,
		userID, examID, durationSeconds, now))
	if err == nil {
		return s, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}
	s, err = r.Get(ctx, userID, examID)
	return s, false, err
}

// Checkpoint upserts the client-reported state of s. A missing row is
// created with started_at = now and s.DurationSeconds. On a pause flag
// transition the server pause bookkeeping is updated in the same statement.
func (r *ExamSessionRepository) Checkpoint(ctx context.Context, s *model.ExamSession, now time.Time) (*model.ExamSession, error) {
	return scanSession(r.db.QueryRow(ctx,
		`INSERT INTO exam_sessions (user_id, exam_id, remaining_time, is_paused, current_question_index,
			selected_answers, total_points, question_points, started_at, duration_seconds, paused_at, last_updated)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, CASE WHEN $4 THEN $9 ELSE NULL END, $9)
		 ON CONFLICT (user_id, exam_id) DO UPDATE SET
			remaining_time = EXCLUDED.remaining_time,
			is_paused = EXCLUDED.is_paused,
			current_question_index = EXCLUDED.current_question_index,
			selected_answers = EXCLUDED.selected_answers,
			total_points = EXCLUDED.total_points,
			question_points = EXCLUDED.question_points,
			paused_at = CASE
				WHEN NOT EXCLUDED.is_paused THEN NULL
				WHEN NOT exam_sessions.is_paused THEN EXCLUDED.last_updated
				ELSE exam_sessions.paused_at
			END,
			paused_seconds = exam_sessions.paused_seconds + CASE
				WHEN exam_sessions.is_paused AND NOT EXCLUDED.is_paused AND exam_sessions.paused_at IS NOT NULL
				THEN GREATEST(0, FLOOR(EXTRACT(EPOCH FROM EXCLUDED.last_updated - exam_sessions.paused_at)))::int
				ELSE 0
			END,
			last_updated = EXCLUDED.last_updated
		 RETURNING `+sessionColumns,
		s.UserID, s.ExamID, s.RemainingTime, s.IsPaused, s.CurrentQuestionIndex,
		s.SelectedAnswers, s.TotalPoints, s.QuestionPoints, now, s.DurationSeconds))
}

// ListExpired returns running sessions whose server-tracked time ran out by now.
func (r *ExamSessionRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]model.ExamSession, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE NOT is_paused
		   AND started_at + make_interval(secs => duration_seconds + paused_seconds) <= $1
		 ORDER BY started_at
		 LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.ExamSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// ListByExam returns every in-progress session of an exam, most recently
// updated first.
func (r *ExamSessionRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.ExamSession, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE exam_id = $1
		 ORDER BY last_updated DESC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []model.ExamSession{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/examhall-backend/internal/model"
)

var sessionColumnNames = []string{
	"id", "user_id", "exam_id", "remaining_time", "is_paused", "current_question_index",
	"selected_answers", "total_points", "question_points", "started_at", "duration_seconds",
	"paused_at", "paused_seconds", "last_updated",
}

func TestExamSessionRepository_Start_New(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	userID, examID := uuid.New(), uuid.New()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO exam_sessions .* ON CONFLICT \(user_id, exam_id\) DO NOTHING`).
		WithArgs(userID, examID, 600, now).
		WillReturnRows(pgxmock.NewRows(sessionColumnNames).AddRow(
			uuid.New(), userID, examID, 600, false, 0,
			[][]string{}, 0.0, []float64{}, now, 600,
			(*time.Time)(nil), 0, now,
		))

	repo := NewExamSessionRepository(mock)
	s, created, err := repo.Start(context.Background(), userID, examID, 600, now)

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 600, s.RemainingTime)
	assert.False(t, s.IsPaused)
	assert.Equal(t, 0, s.CurrentQuestionIndex)
	assert.Empty(t, s.SelectedAnswers)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamSessionRepository_Start_ResumesExisting(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	userID, examID := uuid.New(), uuid.New()
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	now := started.Add(5 * time.Minute)

	mock.ExpectQuery(`INSERT INTO exam_sessions`).
		WithArgs(userID, examID, 600, now).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT .* FROM exam_sessions WHERE user_id = \$1 AND exam_id = \$2`).
		WithArgs(userID, examID).
		WillReturnRows(pgxmock.NewRows(sessionColumnNames).AddRow(
			uuid.New(), userID, examID, 450, true, 3,
			[][]string{{"A"}, {"B", "C"}, {}, {}}, 2.0, []float64{1, 1, 0, 0}, started, 600,
			&now, 0, now,
		))

	repo := NewExamSessionRepository(mock)
	s, created, err := repo.Start(context.Background(), userID, examID, 600, now)

	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 450, s.RemainingTime)
	assert.Equal(t, 3, s.CurrentQuestionIndex)
	assert.Equal(t, [][]string{{"A"}, {"B", "C"}, {}, {}}, s.SelectedAnswers)
	assert.NoError(t, mock.ExpectationsWereMet())
}

const (
	pausedAtExpr = `paused_at = CASE\s+WHEN NOT EXCLUDED\.is_paused THEN NULL\s+` +
		`WHEN NOT exam_sessions\.is_paused THEN EXCLUDED\.last_updated\s+` +
		`ELSE exam_sessions\.paused_at\s+END`
	pausedSecondsExpr = `paused_seconds = exam_sessions\.paused_seconds \+ CASE\s+` +
		`WHEN exam_sessions\.is_paused AND NOT EXCLUDED\.is_paused AND exam_sessions\.paused_at IS NOT NULL\s+` +
		`THEN GREATEST\(0, FLOOR\(EXTRACT\(EPOCH FROM EXCLUDED\.last_updated - exam_sessions\.paused_at\)\)\)::int\s+` +
		`ELSE 0\s+END`
)

func TestExamSessionRepository_Checkpoint(t *testing.T) {
	userID, examID := uuid.New(), uuid.New()
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	pausedAt := started.Add(2 * time.Minute)
	now := started.Add(5 * time.Minute)

	tests := []struct {
		name          string
		isPaused      bool
		remaining     int
		storedPaused  bool
		storedAt      *time.Time
		storedSeconds int
	}{
		// first checkpoint creates the row, already paused
		{name: "new paused", isPaused: true, remaining: 600, storedPaused: true, storedAt: &now},
		// running -> paused stamps paused_at
		{name: "pause", isPaused: true, remaining: 480, storedPaused: true, storedAt: &now},
		// paused -> running folds the pause into paused_seconds
		{name: "resume", isPaused: false, remaining: 480, storedSeconds: 180},
		// the same paused input again keeps the original paused_at
		{name: "repeat", isPaused: true, remaining: 480, storedPaused: true, storedAt: &pausedAt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			answers := [][]string{{"A"}, {}}
			points := []float64{1, 0}
			in := &model.ExamSession{
				UserID:               userID,
				ExamID:               examID,
				RemainingTime:        tt.remaining,
				IsPaused:             tt.isPaused,
				CurrentQuestionIndex: 1,
				SelectedAnswers:      answers,
				TotalPoints:          1,
				QuestionPoints:       points,
				DurationSeconds:      600,
			}

			mock.ExpectQuery(`INSERT INTO exam_sessions .*`+
				`VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8, \$9, \$10, CASE WHEN \$4 THEN \$9 ELSE NULL END, \$9\)\s+`+
				`ON CONFLICT \(user_id, exam_id\) DO UPDATE SET .*`+pausedAtExpr+`.*`+pausedSecondsExpr).
				WithArgs(userID, examID, tt.remaining, tt.isPaused, 1, answers, 1.0, points, now, 600).
				WillReturnRows(pgxmock.NewRows(sessionColumnNames).AddRow(
					uuid.New(), userID, examID, tt.remaining, tt.storedPaused, 1,
					answers, 1.0, points, started, 600,
					tt.storedAt, tt.storedSeconds, now,
				))

			repo := NewExamSessionRepository(mock)
			s, err := repo.Checkpoint(context.Background(), in, now)

			require.NoError(t, err)
			assert.Equal(t, tt.storedPaused, s.IsPaused)
			assert.Equal(t, tt.storedAt, s.PausedAt)
			assert.Equal(t, tt.storedSeconds, s.PausedSeconds)
			assert.Equal(t, answers, s.SelectedAnswers)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestExamSessionRepository_ListExpired(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	userID, examID := uuid.New(), uuid.New()
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	now := started.Add(11 * time.Minute)

	mock.ExpectQuery(`SELECT .* FROM exam_sessions\s+WHERE NOT is_paused\s+` +
		`AND started_at \+ make_interval\(secs => duration_seconds \+ paused_seconds\) <= \$1\s+` +
		`ORDER BY started_at\s+LIMIT \$2`).
		WithArgs(now, 50).
		WillReturnRows(pgxmock.NewRows(sessionColumnNames).AddRow(
			uuid.New(), userID, examID, 30, false, 2,
			[][]string{{"A"}, {"B"}, {}}, 2.0, []float64{1, 1, 0}, started, 600,
			(*time.Time)(nil), 60, started.Add(9*time.Minute),
		))

	repo := NewExamSessionRepository(mock)
	sessions, err := repo.ListExpired(context.Background(), now, 50)

	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, userID, sessions[0].UserID)
	assert.Equal(t, 60, sessions[0].PausedSeconds)
	assert.Equal(t, 0, sessions[0].DeriveRemaining(now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/examhall-backend/internal/model"
)

func newSubmission() *model.Submission {
	return &model.Submission{
		UserID:         uuid.New(),
		ExamID:         uuid.New(),
		Answers:        [][]string{{"A"}, {"B", "C"}, {"D"}, {"A"}},
		Points:         4,
		QuestionPoints: []float64{1, 1, 1, 1},
		Source:         model.SubmissionSourceClient,
	}
}

func TestSubmissionRepository_Finalize(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sub := newSubmission()
	subID := uuid.New()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE FROM exam_sessions`).
		WithArgs(sub.UserID, sub.ExamID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(uuid.New()))
	mock.ExpectQuery(`INSERT INTO exam_submissions`).
		WithArgs(sub.UserID, sub.ExamID, sub.Answers, sub.Points, sub.QuestionPoints, sub.Source).
		WillReturnRows(pgxmock.NewRows([]string{"id", "submitted_at"}).AddRow(subID, at))
	mock.ExpectCommit()

	repo := NewSubmissionRepository(mock)
	require.NoError(t, repo.Finalize(context.Background(), sub))

	assert.Equal(t, subID, sub.ID)
	assert.Equal(t, at, sub.SubmittedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepository_Finalize_NoSession(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sub := newSubmission()

	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE FROM exam_sessions`).
		WithArgs(sub.UserID, sub.ExamID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	repo := NewSubmissionRepository(mock)
	err = repo.Finalize(context.Background(), sub)

	assert.ErrorIs(t, err, ErrNoActiveSession)
	assert.Equal(t, uuid.Nil, sub.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepository_Finalize_InsertFailsRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sub := newSubmission()
	boom := errors.New("disk full")

	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE FROM exam_sessions`).
		WithArgs(sub.UserID, sub.ExamID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(uuid.New()))
	mock.ExpectQuery(`INSERT INTO exam_submissions`).
		WillReturnError(boom)
	mock.ExpectRollback()

	repo := NewSubmissionRepository(mock)
	err = repo.Finalize(context.Background(), sub)

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

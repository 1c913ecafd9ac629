package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var questionColumnNames = []string{"id", "answers", "correct_answers", "points", "explanation", "image"}

func TestQuestionRepository_ListByIDs_KeepsExamOrder(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	q1, q2 := uuid.New(), uuid.New()
	ids := []uuid.UUID{q2, q1, q2}

	mock.ExpectQuery(`SELECT id, answers, correct_answers, points, explanation, image FROM questions WHERE id = ANY\(\$1\)`).
		WithArgs(ids).
		WillReturnRows(pgxmock.NewRows(questionColumnNames).
			AddRow(q1, []string{"A", "B"}, []string{"A"}, 1.0, "", "").
			AddRow(q2, []string{"C", "D"}, []string{"D"}, 5.0, "", ""))

	repo := NewQuestionRepository(mock)
	questions, err := repo.ListByIDs(context.Background(), ids)

	require.NoError(t, err)
	require.Len(t, questions, 3)
	assert.Equal(t, []uuid.UUID{q2, q1, q2}, []uuid.UUID{questions[0].ID, questions[1].ID, questions[2].ID})
	assert.Equal(t, 5.0, questions[2].Points)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuestionRepository_ListByIDs_MissingRowFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	q1, q2, q3 := uuid.New(), uuid.New(), uuid.New()
	ids := []uuid.UUID{q1, q2, q3}

	mock.ExpectQuery(`SELECT .* FROM questions WHERE id = ANY\(\$1\)`).
		WithArgs(ids).
		WillReturnRows(pgxmock.NewRows(questionColumnNames).
			AddRow(q1, []string{"A", "B"}, []string{"A"}, 1.0, "", "").
			AddRow(q3, []string{"C", "D"}, []string{"D"}, 5.0, "", ""))

	repo := NewQuestionRepository(mock)
	questions, err := repo.ListByIDs(context.Background(), ids)

	assert.ErrorIs(t, err, ErrQuestionMissing)
	assert.Contains(t, err.Error(), q2.String())
	assert.Nil(t, questions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuestionRepository_ListByIDs_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	questions, err := NewQuestionRepository(mock).ListByIDs(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, questions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

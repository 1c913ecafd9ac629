package grading

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/stemsi/examhall-backend/internal/model"
)

func q(points float64, correct ...string) model.Question {
	return model.Question{ID: uuid.New(), Answers: []string{"A", "B", "C", "D"}, CorrectAnswers: correct, Points: points}
}

func TestGrade(t *testing.T) {
	shared := q(1, "A")

	tests := []struct {
		name      string
		questions []model.Question
		answers   [][]string
		want      float64
		wantPer   []float64
	}{
		{
			name:      "single select exact match",
			questions: []model.Question{q(1, "A"), q(2, "B")},
			answers:   [][]string{{"A"}, {"C"}},
			want:      1,
			wantPer:   []float64{1, 0},
		},
		{
			name:      "multi select ignores order and duplicates",
			questions: []model.Question{q(3, "B", "C")},
			answers:   [][]string{{"C", "B", "C"}},
			want:      3,
			wantPer:   []float64{3},
		},
		{
			name:      "partial multi select scores zero",
			questions: []model.Question{q(3, "B", "C")},
			answers:   [][]string{{"B"}},
			want:      0,
			wantPer:   []float64{0},
		},
		{
			name:      "short answers array leaves trailing questions at zero",
			questions: []model.Question{q(1, "A"), q(1, "B"), q(1, "C")},
			answers:   [][]string{{"A"}},
			want:      1,
			wantPer:   []float64{1, 0, 0},
		},
		{
			name:      "repeated question is scored per position",
			questions: []model.Question{shared, shared},
			answers:   [][]string{{"A"}, {"B"}},
			want:      1,
			wantPer:   []float64{1, 0},
		},
		{
			name:      "empty answer never matches",
			questions: []model.Question{q(1, "A")},
			answers:   [][]string{{}},
			want:      0,
			wantPer:   []float64{0},
		},
		{
			name:      "extra answers are ignored",
			questions: []model.Question{q(0.5, "D")},
			answers:   [][]string{{"D"}, {"A"}},
			want:      0.5,
			wantPer:   []float64{0.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Grade(tt.questions, tt.answers)
			assert.InDelta(t, tt.want, got.Points, 1e-9)
			assert.Equal(t, tt.wantPer, got.QuestionPoints)
		})
	}
}

func TestGrade_NoQuestions(t *testing.T) {
	got := Grade(nil, [][]string{{"A"}})
	assert.Zero(t, got.Points)
	assert.Empty(t, got.QuestionPoints)
}

// Package grading scores submitted answers against an exam's answer key.
package grading

import "github.com/stemsi/examhall-backend/internal/model"

// Result is the outcome of grading one attempt.
type Result struct {
	Points         float64
	QuestionPoints []float64
}

// Grade scores answers positionally against questions. A question earns its
// full points when the submitted set equals the correct set, ignoring order
// and duplicates, and zero otherwise. Positions without an answer score zero;
// answers beyond the last question are ignored.
func Grade(questions []model.Question, answers [][]string) Result {
	res := Result{QuestionPoints: make([]float64, len(questions))}
	for i, q := range questions {
		if i >= len(answers) {
			continue
		}
		if sameSet(answers[i], q.CorrectAnswers) {
			res.QuestionPoints[i] = q.Points
			res.Points += q.Points
		}
	}
	return res
}

func sameSet(got, want []string) bool {
	if len(want) == 0 {
		return false
	}
	g := toSet(got)
	w := toSet(want)
	if len(g) != len(w) {
		return false
	}
	for k := range w {
		if _, ok := g[k]; !ok {
			return false
		}
	}
	return true
}

func toSet(xs []string) map[string]struct{} {
	m := make(map[string]struct{}, len(xs))
	for _, x := range xs {
		m[x] = struct{}{}
	}
	return m
}

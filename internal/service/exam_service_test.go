package service

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/examhall-backend/internal/config"
	"github.com/stemsi/examhall-backend/internal/model"
	"github.com/stemsi/examhall-backend/internal/repository"
)

// fakeExamStore serves a fixed set of exams; unused methods panic.
type fakeExamStore struct {
	ExamStore
	exams     map[uuid.UUID]*model.Exam
	reads     int
	updates   []repository.ExamUpdate
	updateErr error
}

func (f *fakeExamStore) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	f.reads++
	e, ok := f.exams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return e, nil
}

func (f *fakeExamStore) GetBySlug(_ context.Context, slug string) (*model.Exam, error) {
	for _, e := range f.exams {
		if e.Slug == slug {
			return e, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeExamStore) ListIDs(context.Context) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(f.exams))
	for id := range f.exams {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeExamStore) Update(_ context.Context, id uuid.UUID, u repository.ExamUpdate) ([]string, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.updates = append(f.updates, u)
	return nil, nil
}

type fakeQuestionStore struct {
	questions map[uuid.UUID]model.Question
}

func (f *fakeQuestionStore) ListByIDs(_ context.Context, ids []uuid.UUID) ([]model.Question, error) {
	out := make([]model.Question, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.questions[id])
	}
	return out, nil
}

func newCatalogFixture(t *testing.T) (*ExamService, *fakeExamStore, *miniredis.Miniredis, *model.Exam) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	q := model.Question{ID: uuid.New(), Answers: []string{"a", "b"}, CorrectAnswers: []string{"b"}, Points: 1, Explanation: "b is right"}
	exam := &model.Exam{
		ID:              uuid.New(),
		Title:           "Algebra",
		Slug:            "algebra-slug",
		DurationSeconds: 900,
		QuestionIDs:     []uuid.UUID{q.ID, q.ID},
	}
	exams := &fakeExamStore{exams: map[uuid.UUID]*model.Exam{exam.ID: exam}}
	questions := &fakeQuestionStore{questions: map[uuid.UUID]model.Question{q.ID: q}}

	svc := NewExamService(exams, questions, nil, nil, rdb, zerolog.Nop())
	return svc, exams, mr, exam
}

func TestGetExamWithQuestions_CachesAfterMiss(t *testing.T) {
	svc, store, mr, exam := newCatalogFixture(t)
	ctx := context.Background()

	first, err := svc.GetExamWithQuestions(ctx, exam.ID)
	require.NoError(t, err)
	require.Len(t, first.Questions, 2, "duplicate question ids resolve positionally")
	assert.True(t, mr.Exists(config.CacheKey.ExamCatalogKey(exam.ID.String())))

	second, err := svc.GetExamWithQuestions(ctx, exam.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, store.reads)
	assert.Equal(t, first.Questions[1].CorrectAnswers, second.Questions[1].CorrectAnswers)
}

func TestGetExamWithQuestions_NotFound(t *testing.T) {
	svc, _, _, _ := newCatalogFixture(t)

	_, err := svc.GetExamWithQuestions(context.Background(), uuid.New())

	assert.ErrorIs(t, err, ErrExamNotFound)
}

func TestGetExamWithQuestions_IgnoresCorruptEntry(t *testing.T) {
	svc, store, mr, exam := newCatalogFixture(t)
	require.NoError(t, mr.Set(config.CacheKey.ExamCatalogKey(exam.ID.String()), "{not json"))

	got, err := svc.GetExamWithQuestions(context.Background(), exam.ID)

	require.NoError(t, err)
	assert.Equal(t, exam.ID, got.ID)
	assert.Equal(t, 1, store.reads)
}

func TestInvalidateCache(t *testing.T) {
	svc, store, mr, exam := newCatalogFixture(t)
	ctx := context.Background()
	_, err := svc.GetExamWithQuestions(ctx, exam.ID)
	require.NoError(t, err)

	svc.InvalidateCache(ctx, exam)

	assert.False(t, mr.Exists(config.CacheKey.ExamCatalogKey(exam.ID.String())))
	assert.False(t, mr.Exists(config.CacheKey.ExamSlugKey(exam.Slug)))
	_, err = svc.GetExamWithQuestions(ctx, exam.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, store.reads)
}

func TestGetBySlug_StripsKeyForStudents(t *testing.T) {
	svc, _, _, exam := newCatalogFixture(t)
	ctx := context.Background()

	student, err := svc.GetBySlug(ctx, exam.Slug, false)
	require.NoError(t, err)
	for _, q := range student.Questions {
		assert.Empty(t, q.CorrectAnswers)
		assert.Empty(t, q.Explanation)
	}

	teacher, err := svc.GetBySlug(ctx, exam.Slug, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, teacher.Questions[0].CorrectAnswers)
}

func TestPrewarmAllCaches(t *testing.T) {
	svc, _, mr, exam := newCatalogFixture(t)

	require.NoError(t, svc.PrewarmAllCaches(context.Background()))

	assert.True(t, mr.Exists(config.CacheKey.ExamCatalogKey(exam.ID.String())))
	got, err := mr.Get(config.CacheKey.ExamSlugKey(exam.Slug))
	require.NoError(t, err)
	assert.Equal(t, exam.ID.String(), got)
}

func TestParseQuestions(t *testing.T) {
	inputs, err := parseQuestions(`[{"answers":["a","b"],"correctAnswers":["a"]}]`)
	require.NoError(t, err)
	require.Len(t, inputs, 1)

	_, err = parseQuestions(`[{"answers":["a"],"correctAnswers":[]}]`)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "questionsData[0].answers")

	_, err = parseQuestions(`not json`)
	require.ErrorAs(t, err, &ve)
}

func TestBuildQuestions_KeepsOnlyOwnedIDs(t *testing.T) {
	svc, _, _, exam := newCatalogFixture(t)
	owned := exam.QuestionIDs[0]
	foreign := uuid.New()
	inputs := []model.QuestionInput{
		{ID: &owned, Answers: []string{"a", "b"}, CorrectAnswers: []string{"a"}},
		{ID: &foreign, Answers: []string{"a", "b"}, CorrectAnswers: []string{"b"}},
		{ID: &owned, Answers: []string{"a", "b"}, CorrectAnswers: []string{"b"}},
	}

	questions, _, err := svc.buildQuestions(context.Background(), inputs, exam.QuestionIDs, nil)
	require.NoError(t, err)
	require.Len(t, questions, 3)
	assert.Equal(t, owned, questions[0].ID)
	assert.Equal(t, uuid.Nil, questions[1].ID, "ids of other exams get a fresh row")
	assert.Equal(t, uuid.Nil, questions[2].ID, "a repeated id is rewritten only once")

	created, _, err := svc.buildQuestions(context.Background(), inputs, nil, nil)
	require.NoError(t, err)
	for _, q := range created {
		assert.Equal(t, uuid.Nil, q.ID)
	}
}

func TestUpdate_QuestionsLockedByOpenSessions(t *testing.T) {
	svc, store, _, exam := newCatalogFixture(t)
	store.updateErr = repository.ErrExamInUse

	_, err := svc.Update(context.Background(), exam.ID, model.UpdateExamForm{
		QuestionsData: `[{"answers":["a","b"],"correctAnswers":["b"]}]`,
	}, nil)

	assert.ErrorIs(t, err, ErrExamInUse)
}

func TestWarmExamCache_MissingQuestionFails(t *testing.T) {
	svc, _, mr, exam := newCatalogFixture(t)
	svc.questions = missingQuestions{}

	_, err := svc.WarmExamCache(context.Background(), exam.ID)

	assert.ErrorIs(t, err, repository.ErrQuestionMissing)
	assert.False(t, mr.Exists(config.CacheKey.ExamCatalogKey(exam.ID.String())))
}

type missingQuestions struct{}

func (missingQuestions) ListByIDs(context.Context, []uuid.UUID) ([]model.Question, error) {
	return nil, repository.ErrQuestionMissing
}

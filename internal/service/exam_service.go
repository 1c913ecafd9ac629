package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/examhall-backend/internal/config"
	"github.com/stemsi/examhall-backend/internal/model"
	"github.com/stemsi/examhall-backend/internal/repository"
	"github.com/stemsi/examhall-backend/internal/validator"
)

// Domain Errors
var (
	ErrExamNotFound = errors.New("exam not found")
	ErrNoQuestions  = errors.New("exam has no questions")
	ErrExamInUse    = errors.New("exam questions are locked by open sessions")
)

const catalogTTL = 24 * time.Hour

// ExamStore is the exam persistence the catalog needs.
type ExamStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	GetBySlug(ctx context.Context, slug string) (*model.Exam, error)
	List(ctx context.Context) ([]model.Exam, error)
	ListByCategory(ctx context.Context, categoryID uuid.UUID) ([]model.Exam, error)
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
	Create(ctx context.Context, e *model.Exam, questions []model.Question) error
	Update(ctx context.Context, id uuid.UUID, u repository.ExamUpdate) ([]string, error)
	Delete(ctx context.Context, id uuid.UUID) ([]string, error)
}

// QuestionStore resolves question ids.
type QuestionStore interface {
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Question, error)
}

// ExamService is the exam catalog: exam management plus a Redis cache of
// each exam with its resolved questions and answer key.
type ExamService struct {
	exams      ExamStore
	questions  QuestionStore
	categories CategoryStore
	media      *MediaService
	rdb        *redis.Client
	log        zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(
	exams ExamStore,
	questions QuestionStore,
	categories CategoryStore,
	media *MediaService,
	rdb *redis.Client,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		exams:      exams,
		questions:  questions,
		categories: categories,
		media:      media,
		rdb:        rdb,
		log:        log.With().Str("component", "exam_service").Logger(),
	}
}

// GetExamWithQuestions returns the exam with its questions in exam order,
// answer keys included. Redis is consulted first; a miss loads from
// PostgreSQL and refills the cache.
func (s *ExamService) GetExamWithQuestions(ctx context.Context, id uuid.UUID) (*model.ExamWithQuestions, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.ExamCatalogKey(id.String())).Bytes()
	if err == nil {
		var cached model.ExamWithQuestions
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
		s.log.Warn().Str("exam_id", id.String()).Msg("Discarding undecodable catalog entry")
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Catalog cache read failed, falling back to database")
	}

	return s.WarmExamCache(ctx, id)
}

// WarmExamCache loads an exam and its questions from PostgreSQL into Redis.
func (s *ExamService) WarmExamCache(ctx context.Context, id uuid.UUID) (*model.ExamWithQuestions, error) {
	exam, err := s.exams.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}

	questions, err := s.questions.ListByIDs(ctx, exam.QuestionIDs)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	full := &model.ExamWithQuestions{Exam: *exam, Questions: questions}
	payload, err := json.Marshal(full)
	if err != nil {
		return nil, fmt.Errorf("marshal catalog entry: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.ExamCatalogKey(id.String()), payload, catalogTTL)
	pipe.Set(ctx, config.CacheKey.ExamSlugKey(exam.Slug), id.String(), catalogTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Failed to cache exam")
	}

	s.log.Debug().
		Str("exam_id", id.String()).
		Int("questions", len(questions)).
		Msg("Cache warmed")
	return full, nil
}

// InvalidateCache drops cached catalog entries for the given exams.
func (s *ExamService) InvalidateCache(ctx context.Context, exams ...*model.Exam) {
	if len(exams) == 0 {
		return
	}
	keys := make([]string, 0, len(exams)*2)
	for _, e := range exams {
		keys = append(keys, config.CacheKey.ExamCatalogKey(e.ID.String()))
		if e.Slug != "" {
			keys = append(keys, config.CacheKey.ExamSlugKey(e.Slug))
		}
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		s.log.Warn().Err(err).Int("keys", len(keys)).Msg("Failed to invalidate catalog cache")
	}
}

// InvalidateByIDs drops cached catalog entries by exam id.
func (s *ExamService) InvalidateByIDs(ctx context.Context, ids []uuid.UUID) {
	exams := make([]*model.Exam, len(ids))
	for i, id := range ids {
		exams[i] = &model.Exam{ID: id}
	}
	s.InvalidateCache(ctx, exams...)
}

// InvalidateCategory drops the cached entries of every exam in a category.
func (s *ExamService) InvalidateCategory(ctx context.Context, categoryID uuid.UUID) {
	exams, err := s.exams.ListByCategory(ctx, categoryID)
	if err != nil {
		s.log.Warn().Err(err).Str("category_id", categoryID.String()).Msg("Failed to list exams for invalidation")
		return
	}
	ptrs := make([]*model.Exam, len(exams))
	for i := range exams {
		ptrs[i] = &exams[i]
	}
	s.InvalidateCache(ctx, ptrs...)
}

// PrewarmAllCaches loads every exam into Redis on application startup.
func (s *ExamService) PrewarmAllCaches(ctx context.Context) error {
	ids, err := s.exams.ListIDs(ctx)
	if err != nil {
		return fmt.Errorf("list exams: %w", err)
	}

	if len(ids) == 0 {
		s.log.Info().Msg("No exams to prewarm")
		return nil
	}

	warmed := 0
	for _, id := range ids {
		if _, err := s.WarmExamCache(ctx, id); err != nil {
			s.log.Warn().
				Err(err).
				Str("exam_id", id.String()).
				Msg("Failed to warm exam, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(ids)).
		Msg("Prewarming complete")
	return nil
}

// List returns every exam.
func (s *ExamService) List(ctx context.Context) ([]model.Exam, error) {
	return s.exams.List(ctx)
}

// ListByCategoryTitle returns the exams of the category with the given title.
func (s *ExamService) ListByCategoryTitle(ctx context.Context, title string) ([]model.Exam, error) {
	cat, err := s.categories.GetByTitle(ctx, title)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return s.exams.ListByCategory(ctx, cat.ID)
}

// GetBySlug returns an exam with its questions. Answer keys are stripped
// unless withKey is set.
func (s *ExamService) GetBySlug(ctx context.Context, slug string, withKey bool) (*model.ExamWithQuestions, error) {
	var id uuid.UUID
	cached, err := s.rdb.Get(ctx, config.CacheKey.ExamSlugKey(slug)).Result()
	if err == nil {
		id, err = uuid.Parse(cached)
	}
	if err != nil {
		exam, err := s.exams.GetBySlug(ctx, slug)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrExamNotFound
			}
			return nil, err
		}
		id = exam.ID
	}

	full, err := s.GetExamWithQuestions(ctx, id)
	if err != nil {
		return nil, err
	}
	if withKey {
		return full, nil
	}
	stripped := full.ForStudent()
	return &stripped, nil
}

// Create stores a new exam authored by authorID. files maps a question
// index to its uploaded image.
func (s *ExamService) Create(ctx context.Context, authorID uuid.UUID, form model.CreateExamForm, files map[int]*multipart.FileHeader) (*model.Exam, error) {
	categoryID := uuid.MustParse(form.CategoryID)
	cat, err := s.categories.GetByID(ctx, categoryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}

	inputs, err := parseQuestions(form.QuestionsData)
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, ErrNoQuestions
	}

	questions, uploaded, err := s.buildQuestions(ctx, inputs, nil, files)
	if err != nil {
		return nil, err
	}

	plan := form.Plan
	if plan == "" {
		plan = model.PlanFree
	}
	exam := &model.Exam{
		ID:              uuid.New(),
		Title:           form.Title,
		CategoryID:      cat.ID,
		CategoryTitle:   cat.Title,
		AuthorID:        authorID,
		Plan:            plan,
		IsVisible:       true,
		DurationSeconds: form.Duration,
	}
	exam.Slug = Slugify(exam.ID.String(), cat.Title, exam.Title)

	if err := s.exams.Create(ctx, exam, questions); err != nil {
		s.media.DeleteAll(ctx, uploaded)
		return nil, fmt.Errorf("create exam: %w", err)
	}

	s.log.Info().Str("exam_id", exam.ID.String()).Int("questions", len(questions)).Msg("Exam created")
	return exam, nil
}

// Update edits an exam. Questions are replaced only when QuestionsData is sent.
func (s *ExamService) Update(ctx context.Context, id uuid.UUID, form model.UpdateExamForm, files map[int]*multipart.FileHeader) (*model.Exam, error) {
	existing, err := s.exams.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, err
	}

	var u repository.ExamUpdate
	categoryTitle := existing.CategoryTitle
	if form.CategoryID != "" {
		cid := uuid.MustParse(form.CategoryID)
		cat, err := s.categories.GetByID(ctx, cid)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrCategoryNotFound
			}
			return nil, err
		}
		u.CategoryID = &cid
		categoryTitle = cat.Title
	}
	title := existing.Title
	if form.Title != "" {
		title = form.Title
		u.Title = &form.Title
	}
	if u.Title != nil || u.CategoryID != nil {
		slug := Slugify(existing.ID.String(), categoryTitle, title)
		u.Slug = &slug
	}
	if form.Plan != "" {
		u.Plan = &form.Plan
	}
	if form.Duration > 0 {
		u.DurationSeconds = &form.Duration
	}
	u.IsVisible = form.IsVisible

	var uploaded []string
	if form.QuestionsData != "" {
		inputs, err := parseQuestions(form.QuestionsData)
		if err != nil {
			return nil, err
		}
		if len(inputs) == 0 {
			return nil, ErrNoQuestions
		}
		u.Questions, uploaded, err = s.buildQuestions(ctx, inputs, existing.QuestionIDs, files)
		if err != nil {
			return nil, err
		}
	}

	removed, err := s.exams.Update(ctx, id, u)
	if err != nil {
		s.media.DeleteAll(ctx, uploaded)
		if errors.Is(err, repository.ErrExamInUse) {
			return nil, ErrExamInUse
		}
		return nil, fmt.Errorf("update exam: %w", err)
	}
	s.media.DeleteAll(ctx, removed)
	s.InvalidateCache(ctx, existing)

	updated, err := s.exams.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("exam_id", id.String()).Msg("Exam updated")
	return updated, nil
}

// Delete removes an exam, its questions and their images.
func (s *ExamService) Delete(ctx context.Context, id uuid.UUID) error {
	existing, err := s.exams.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrExamNotFound
		}
		return err
	}

	images, err := s.exams.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrExamNotFound
		}
		return fmt.Errorf("delete exam: %w", err)
	}
	s.media.DeleteAll(ctx, images)
	s.InvalidateCache(ctx, existing)

	s.log.Info().Str("exam_id", id.String()).Int("images", len(images)).Msg("Exam deleted")
	return nil
}

func parseQuestions(raw string) ([]model.QuestionInput, error) {
	var inputs []model.QuestionInput
	if err := json.Unmarshal([]byte(raw), &inputs); err != nil {
		return nil, invalid("questionsData", "questionsData must be a JSON array of questions")
	}

	v := validator.New()
	for i := range inputs {
		if err := v.Struct(inputs[i]); err != nil {
			fields := validator.TranslateErrors(err)
			prefixed := make(map[string]string, len(fields))
			for k, msg := range fields {
				prefixed["questionsData["+strconv.Itoa(i)+"]."+k] = msg
			}
			return nil, &ValidationError{Fields: prefixed}
		}
	}
	return inputs, nil
}

// buildQuestions converts inputs to questions, uploading any image in files
// for the same index. A question without a new upload keeps the image it sent.
// An input _id is kept only on its first use and only when it is one of
// owned, the exam's current question ids; any other input gets a new row.
func (s *ExamService) buildQuestions(ctx context.Context, inputs []model.QuestionInput, owned []uuid.UUID, files map[int]*multipart.FileHeader) ([]model.Question, []string, error) {
	keep := make(map[uuid.UUID]bool, len(owned))
	for _, id := range owned {
		keep[id] = true
	}

	questions := make([]model.Question, len(inputs))
	var uploaded []string
	for i, in := range inputs {
		q := model.Question{
			Answers:        in.Answers,
			CorrectAnswers: in.CorrectAnswers,
			Points:         1,
			Explanation:    in.Explanation,
			Image:          in.Image,
		}
		if in.ID != nil && keep[*in.ID] {
			q.ID = *in.ID
			delete(keep, q.ID)
		}
		if in.Points != nil {
			q.Points = *in.Points
		}
		if fh, ok := files[i]; ok {
			url, err := s.media.SaveUpload(ctx, fh)
			if err != nil {
				s.media.DeleteAll(ctx, uploaded)
				return nil, nil, err
			}
			q.Image = url
			uploaded = append(uploaded, url)
		}
		questions[i] = q
	}
	return questions, uploaded, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/stemsi/examhall-backend/internal/events"
	"github.com/stemsi/examhall-backend/internal/grading"
	"github.com/stemsi/examhall-backend/internal/model"
	"github.com/stemsi/examhall-backend/internal/monitoring"
	"github.com/stemsi/examhall-backend/internal/repository"
	"github.com/stemsi/examhall-backend/internal/tracing"
)

// ErrNoActiveSession is returned when finalizing an attempt that has no
// session, including one that was already finalized.
var ErrNoActiveSession = errors.New("no active session")

// SessionStore persists in-progress attempts.
type SessionStore interface {
	Get(ctx context.Context, userID, examID uuid.UUID) (*model.ExamSession, error)
	Start(ctx context.Context, userID, examID uuid.UUID, durationSeconds int, now time.Time) (*model.ExamSession, bool, error)
	Checkpoint(ctx context.Context, s *model.ExamSession, now time.Time) (*model.ExamSession, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]model.ExamSession, error)
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.ExamSession, error)
}

// SubmissionLedger records finalized attempts.
type SubmissionLedger interface {
	Finalize(ctx context.Context, sub *model.Submission) error
	List(ctx context.Context, userID, examID *uuid.UUID, limit, offset int) ([]model.Submission, int, error)
}

// ExamCatalog resolves an exam with its questions and answer key.
type ExamCatalog interface {
	GetExamWithQuestions(ctx context.Context, id uuid.UUID) (*model.ExamWithQuestions, error)
}

// UserLookup checks that a user exists.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// CheckpointInput is the client-reported state of an attempt.
type CheckpointInput struct {
	UserID               uuid.UUID
	ExamID               uuid.UUID
	RemainingTime        int
	IsPaused             bool
	CurrentQuestionIndex int
	SelectedAnswers      [][]string
	TotalPoints          float64
	QuestionPoints       []float64
}

// FinalizeInput is a submission request. A nil Points asks the server to grade.
type FinalizeInput struct {
	UserID         uuid.UUID
	ExamID         uuid.UUID
	Answers        [][]string
	Points         *float64
	QuestionPoints []float64
}

const expiryBatch = 100

// ExamSessionService drives the exam attempt lifecycle: start, checkpoint,
// fetch and finalize.
type ExamSessionService struct {
	sessions    SessionStore
	submissions SubmissionLedger
	catalog     ExamCatalog
	users       UserLookup
	publisher   events.Publisher
	metrics     *monitoring.Metrics
	log         zerolog.Logger
	now         func() time.Time
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(
	sessions SessionStore,
	submissions SubmissionLedger,
	catalog ExamCatalog,
	users UserLookup,
	publisher events.Publisher,
	metrics *monitoring.Metrics,
	log zerolog.Logger,
) *ExamSessionService {
	return &ExamSessionService{
		sessions:    sessions,
		submissions: submissions,
		catalog:     catalog,
		users:       users,
		publisher:   publisher,
		metrics:     metrics,
		log:         log.With().Str("component", "exam_session_service").Logger(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Start returns the attempt of userID on examID, creating it when absent.
// An existing attempt is returned unchanged.
func (s *ExamSessionService) Start(ctx context.Context, userID, examID uuid.UUID) (*model.ExamSession, error) {
	ctx, span := tracing.Start(ctx, "session.start", sessionAttrs(userID, examID)...)
	defer span.End()

	exam, err := s.catalog.GetExamWithQuestions(ctx, examID)
	if err != nil {
		return nil, err
	}
	if len(exam.QuestionIDs) == 0 {
		return nil, ErrNoQuestions
	}

	now := s.now()
	sess, created, err := s.sessions.Start(ctx, userID, examID, exam.DurationSeconds, now)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	normalize(sess)
	sess.ServerRemainingTime = sess.DeriveRemaining(now)

	s.metrics.SessionsStarted.WithLabelValues(strconv.FormatBool(!created)).Inc()
	if created {
		evt := events.NewSessionEvent(events.TypeSessionStarted, userID, examID)
		evt.RemainingTime = sess.RemainingTime
		s.publish(ctx, evt)
		s.log.Info().
			Str("user_id", userID.String()).
			Str("exam_id", examID.String()).
			Int("duration", exam.DurationSeconds).
			Msg("Session started")
	}
	return sess, nil
}

// Checkpoint overwrites the stored state of an attempt with the client's,
// creating the attempt when absent. Like Start it refuses an exam without
// questions.
func (s *ExamSessionService) Checkpoint(ctx context.Context, in CheckpointInput) (*model.ExamSession, error) {
	ctx, span := tracing.Start(ctx, "session.checkpoint", sessionAttrs(in.UserID, in.ExamID)...)
	defer span.End()

	if err := validateCheckpoint(in); err != nil {
		return nil, err
	}

	exam, err := s.catalog.GetExamWithQuestions(ctx, in.ExamID)
	if err != nil {
		return nil, err
	}
	if len(exam.QuestionIDs) == 0 {
		return nil, ErrNoQuestions
	}

	prev, err := s.sessions.Get(ctx, in.UserID, in.ExamID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get session: %w", err)
	}

	now := s.now()
	sess, err := s.sessions.Checkpoint(ctx, &model.ExamSession{
		UserID:               in.UserID,
		ExamID:               in.ExamID,
		RemainingTime:        in.RemainingTime,
		IsPaused:             in.IsPaused,
		CurrentQuestionIndex: in.CurrentQuestionIndex,
		SelectedAnswers:      nonNilAnswers(in.SelectedAnswers),
		TotalPoints:          in.TotalPoints,
		QuestionPoints:       nonNilPoints(in.QuestionPoints),
		DurationSeconds:      exam.DurationSeconds,
	}, now)
	if err != nil {
		return nil, fmt.Errorf("checkpoint session: %w", err)
	}
	normalize(sess)
	sess.ServerRemainingTime = sess.DeriveRemaining(now)
	s.metrics.Checkpoints.Inc()

	typ := events.TypeSessionCheckpointed
	switch {
	case prev == nil && in.IsPaused:
		typ = events.TypeSessionPaused
	case prev != nil && !prev.IsPaused && in.IsPaused:
		typ = events.TypeSessionPaused
	case prev != nil && prev.IsPaused && !in.IsPaused:
		typ = events.TypeSessionResumed
	}
	evt := events.NewSessionEvent(typ, in.UserID, in.ExamID)
	evt.RemainingTime = sess.RemainingTime
	evt.CurrentQuestionIndex = sess.CurrentQuestionIndex
	evt.Points = sess.TotalPoints
	s.publish(ctx, evt)

	return sess, nil
}

// Fetch returns the stored attempt, or nil when there is none.
func (s *ExamSessionService) Fetch(ctx context.Context, userID, examID uuid.UUID) (*model.ExamSession, error) {
	ctx, span := tracing.Start(ctx, "session.fetch", sessionAttrs(userID, examID)...)
	defer span.End()

	sess, err := s.sessions.Get(ctx, userID, examID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	normalize(sess)
	sess.ServerRemainingTime = sess.DeriveRemaining(s.now())
	return sess, nil
}

// Finalize turns the attempt into a submission. The session delete and the
// submission insert commit together; without a session ErrNoActiveSession
// is returned and nothing is written.
func (s *ExamSessionService) Finalize(ctx context.Context, in FinalizeInput) (*model.Submission, error) {
	ctx, span := tracing.Start(ctx, "session.finalize", sessionAttrs(in.UserID, in.ExamID)...)
	defer span.End()

	if err := validateFinalize(in); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByID(ctx, in.UserID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	exam, err := s.catalog.GetExamWithQuestions(ctx, in.ExamID)
	if err != nil {
		return nil, err
	}

	sub := &model.Submission{
		UserID:  in.UserID,
		ExamID:  in.ExamID,
		Answers: nonNilAnswers(in.Answers),
		Source:  model.SubmissionSourceClient,
	}
	if in.Points == nil {
		res := grading.Grade(exam.Questions, sub.Answers)
		sub.Points = res.Points
		sub.QuestionPoints = res.QuestionPoints
		sub.Source = model.SubmissionSourceServerGraded
	} else {
		sub.Points = *in.Points
		sub.QuestionPoints = nonNilPoints(in.QuestionPoints)
	}

	if err := s.finalize(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// ExpireStale finalizes running sessions whose server-tracked time ran out,
// using their last checkpointed answers and points. It returns the number of
// submissions written.
func (s *ExamSessionService) ExpireStale(ctx context.Context) (int, error) {
	ctx, span := tracing.Start(ctx, "session.expire_stale")
	defer span.End()

	expired, err := s.sessions.ListExpired(ctx, s.now(), expiryBatch)
	if err != nil {
		return 0, fmt.Errorf("list expired sessions: %w", err)
	}

	finalized := 0
	for _, sess := range expired {
		sub := &model.Submission{
			UserID:         sess.UserID,
			ExamID:         sess.ExamID,
			Answers:        nonNilAnswers(sess.SelectedAnswers),
			Points:         sess.TotalPoints,
			QuestionPoints: nonNilPoints(sess.QuestionPoints),
			Source:         model.SubmissionSourceExpired,
		}
		if err := s.finalize(ctx, sub); err != nil {
			if errors.Is(err, ErrNoActiveSession) {
				continue
			}
			s.log.Error().Err(err).
				Str("user_id", sess.UserID.String()).
				Str("exam_id", sess.ExamID.String()).
				Msg("Failed to finalize expired session")
			continue
		}
		finalized++
	}
	s.metrics.ExpirySweeps.Inc()
	return finalized, nil
}

// ListSubmissions pages through submissions. A nil userID lists every user.
func (s *ExamSessionService) ListSubmissions(ctx context.Context, userID, examID *uuid.UUID, page, perPage int) ([]model.Submission, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	subs, total, err := s.submissions.List(ctx, userID, examID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list submissions: %w", err)
	}
	if subs == nil {
		subs = []model.Submission{}
	}
	return subs, total, nil
}

// ListActive returns the in-progress sessions of an exam.
func (s *ExamSessionService) ListActive(ctx context.Context, examID uuid.UUID) ([]model.ExamSession, error) {
	sessions, err := s.sessions.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	now := s.now()
	for i := range sessions {
		normalize(&sessions[i])
		sessions[i].ServerRemainingTime = sessions[i].DeriveRemaining(now)
	}
	return sessions, nil
}

func (s *ExamSessionService) finalize(ctx context.Context, sub *model.Submission) error {
	if err := s.submissions.Finalize(ctx, sub); err != nil {
		if errors.Is(err, repository.ErrNoActiveSession) {
			return ErrNoActiveSession
		}
		return fmt.Errorf("finalize session: %w", err)
	}
	s.metrics.Submissions.WithLabelValues(string(sub.Source)).Inc()

	evt := events.NewSessionEvent(events.TypeSessionSubmitted, sub.UserID, sub.ExamID)
	evt.Points = sub.Points
	evt.Source = string(sub.Source)
	s.publish(ctx, evt)

	s.log.Info().
		Str("user_id", sub.UserID.String()).
		Str("exam_id", sub.ExamID.String()).
		Str("source", string(sub.Source)).
		Float64("points", sub.Points).
		Msg("Session finalized")
	return nil
}

// publish is best effort; a broker outage never fails a session operation.
func (s *ExamSessionService) publish(ctx context.Context, evt events.SessionEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.Warn().Err(err).Str("event", string(evt.Type)).Msg("Failed to publish session event")
	}
}

func validateCheckpoint(in CheckpointInput) error {
	fields := map[string]string{}
	if in.RemainingTime < 0 {
		fields["remainingTime"] = "remainingTime must be 0 or greater"
	}
	if in.CurrentQuestionIndex < 0 {
		fields["currentQuestionIndex"] = "currentQuestionIndex must be 0 or greater"
	}
	if in.TotalPoints < 0 {
		fields["totalPoints"] = "totalPoints must be 0 or greater"
	}
	for i, p := range in.QuestionPoints {
		if p < 0 {
			fields["questionPoints["+strconv.Itoa(i)+"]"] = "questionPoints must be 0 or greater"
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func validateFinalize(in FinalizeInput) error {
	if in.Points != nil && *in.Points < 0 {
		return invalid("points", "points must be 0 or greater")
	}
	for i, p := range in.QuestionPoints {
		if p < 0 {
			return invalid("questionPoints["+strconv.Itoa(i)+"]", "questionPoints must be 0 or greater")
		}
	}
	return nil
}

func sessionAttrs(userID, examID uuid.UUID) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("user.id", userID.String()),
		attribute.String("exam.id", examID.String()),
	}
}

func normalize(s *model.ExamSession) {
	s.SelectedAnswers = nonNilAnswers(s.SelectedAnswers)
	s.QuestionPoints = nonNilPoints(s.QuestionPoints)
}

func nonNilAnswers(a [][]string) [][]string {
	if a == nil {
		return [][]string{}
	}
	return a
}

func nonNilPoints(p []float64) []float64 {
	if p == nil {
		return []float64{}
	}
	return p
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/examhall-backend/internal/events"
	"github.com/stemsi/examhall-backend/internal/model"
	"github.com/stemsi/examhall-backend/internal/monitoring"
	"github.com/stemsi/examhall-backend/internal/repository"
)

type mockSessionStore struct{ mock.Mock }

func (m *mockSessionStore) Get(ctx context.Context, userID, examID uuid.UUID) (*model.ExamSession, error) {
	args := m.Called(ctx, userID, examID)
	s, _ := args.Get(0).(*model.ExamSession)
	return s, args.Error(1)
}

func (m *mockSessionStore) Start(ctx context.Context, userID, examID uuid.UUID, duration int, now time.Time) (*model.ExamSession, bool, error) {
	args := m.Called(ctx, userID, examID, duration, now)
	s, _ := args.Get(0).(*model.ExamSession)
	return s, args.Bool(1), args.Error(2)
}

func (m *mockSessionStore) Checkpoint(ctx context.Context, s *model.ExamSession, now time.Time) (*model.ExamSession, error) {
	args := m.Called(ctx, s, now)
	out, _ := args.Get(0).(*model.ExamSession)
	return out, args.Error(1)
}

func (m *mockSessionStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]model.ExamSession, error) {
	args := m.Called(ctx, now, limit)
	out, _ := args.Get(0).([]model.ExamSession)
	return out, args.Error(1)
}

func (m *mockSessionStore) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.ExamSession, error) {
	args := m.Called(ctx, examID)
	out, _ := args.Get(0).([]model.ExamSession)
	return out, args.Error(1)
}

type mockLedger struct{ mock.Mock }

func (m *mockLedger) Finalize(ctx context.Context, sub *model.Submission) error {
	return m.Called(ctx, sub).Error(0)
}

func (m *mockLedger) List(ctx context.Context, userID, examID *uuid.UUID, limit, offset int) ([]model.Submission, int, error) {
	args := m.Called(ctx, userID, examID, limit, offset)
	out, _ := args.Get(0).([]model.Submission)
	return out, args.Int(1), args.Error(2)
}

type mockCatalog struct{ mock.Mock }

func (m *mockCatalog) GetExamWithQuestions(ctx context.Context, id uuid.UUID) (*model.ExamWithQuestions, error) {
	args := m.Called(ctx, id)
	out, _ := args.Get(0).(*model.ExamWithQuestions)
	return out, args.Error(1)
}

type mockUsers struct{ mock.Mock }

func (m *mockUsers) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, id)
	out, _ := args.Get(0).(*model.User)
	return out, args.Error(1)
}

type recordingPublisher struct{ events []events.SessionEvent }

func (p *recordingPublisher) Publish(_ context.Context, evt events.SessionEvent) error {
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) types() []events.Type {
	out := make([]events.Type, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type sessionFixture struct {
	svc       *ExamSessionService
	sessions  *mockSessionStore
	ledger    *mockLedger
	catalog   *mockCatalog
	users     *mockUsers
	published *recordingPublisher
	now       time.Time
	userID    uuid.UUID
	exam      *model.ExamWithQuestions
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		sessions:  &mockSessionStore{},
		ledger:    &mockLedger{},
		catalog:   &mockCatalog{},
		users:     &mockUsers{},
		published: &recordingPublisher{},
		now:       time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		userID:    uuid.New(),
	}
	q1 := model.Question{ID: uuid.New(), CorrectAnswers: []string{"a"}, Points: 1}
	q2 := model.Question{ID: uuid.New(), CorrectAnswers: []string{"b", "c"}, Points: 2}
	f.exam = &model.ExamWithQuestions{
		Exam: model.Exam{
			ID:              uuid.New(),
			DurationSeconds: 600,
			QuestionIDs:     []uuid.UUID{q1.ID, q2.ID},
		},
		Questions: []model.Question{q1, q2},
	}
	f.svc = NewExamSessionService(f.sessions, f.ledger, f.catalog, f.users, f.published, monitoring.New(), zerolog.Nop())
	f.svc.now = func() time.Time { return f.now }

	t.Cleanup(func() {
		f.sessions.AssertExpectations(t)
		f.ledger.AssertExpectations(t)
		f.catalog.AssertExpectations(t)
		f.users.AssertExpectations(t)
	})
	return f
}

func (f *sessionFixture) storedSession() *model.ExamSession {
	return &model.ExamSession{
		ID:              uuid.New(),
		UserID:          f.userID,
		ExamID:          f.exam.ID,
		RemainingTime:   600,
		StartedAt:       f.now,
		DurationSeconds: 600,
		LastUpdated:     f.now,
	}
}

func TestStart_CreatesSession(t *testing.T) {
	f := newSessionFixture(t)
	stored := f.storedSession()
	f.catalog.On("GetExamWithQuestions", mock.Anything, f.exam.ID).Return(f.exam, nil)
	f.sessions.On("Start", mock.Anything, f.userID, f.exam.ID, 600, f.now).Return(stored, true, nil)

	sess, err := f.svc.Start(context.Background(), f.userID, f.exam.ID)

	require.NoError(t, err)
	assert.Equal(t, 600, sess.ServerRemainingTime)
	assert.NotNil(t, sess.SelectedAnswers)
	assert.NotNil(t, sess.QuestionPoints)
	assert.Equal(t, []events.Type{events.TypeSessionStarted}, f.published.types())
}

func TestStart_ResumeDoesNotPublish(t *testing.T) {
	f := newSessionFixture(t)
	stored := f.storedSession()
	stored.CurrentQuestionIndex = 1
	f.catalog.On("GetExamWithQuestions", mock.Anything, f.exam.ID).Return(f.exam, nil)
	f.sessions.On("Start", mock.Anything, f.userID, f.exam.ID, 600, f.now).Return(stored, false, nil)

	sess, err := f.svc.Start(context.Background(), f.userID, f.exam.ID)

	require.NoError(t, err)
	assert.Equal(t, 1, sess.CurrentQuestionIndex)
	assert.Empty(t, f.published.events)
}

func TestStart_UnknownExam(t *testing.T) {
	f := newSessionFixture(t)
	f.catalog.On("GetExamWithQuestions", mock.Anything, f.exam.ID).Return(nil, ErrExamNotFound)

	_, err := f.svc.Start(context.Background(), f.userID, f.exam.ID)

	assert.ErrorIs(t, err, ErrExamNotFound)
	f.sessions.AssertNotCalled(t, "Start", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// A checkpoint with no prior start creates the attempt, and fetch returns it.
func TestCheckpoint_ImplicitStartThenFetch(t *testing.T) {
	f := newSessionFixture(t)
	in := CheckpointInput{
		UserID:               f.userID,
		ExamID:               f.exam.ID,
		RemainingTime:        590,
		CurrentQuestionIndex: 0,
		SelectedAnswers:      [][]string{{"a"}},
		TotalPoints:          1,
		QuestionPoints:       []float64{1},
	}
	stored := f.storedSession()
	stored.RemainingTime = 590
	stored.SelectedAnswers = in.SelectedAnswers
	stored.TotalPoints = 1
	stored.QuestionPoints = in.QuestionPoints

	f.catalog.On("GetExamWithQuestions", mock.Anything, f.exam.ID).Return(f.exam, nil)
	f.sessions.On("Get", mock.Anything, f.userID, f.exam.ID).Return(nil, pgx.ErrNoRows).Once()
	f.sessions.On("Checkpoint", mock.Anything, mock.MatchedBy(func(s *model.ExamSession) bool {
		return s.RemainingTime == 590 && s.DurationSeconds == 600 && len(s.SelectedAnswers) == 1
	}), f.now).Return(stored, nil)

	sess, err := f.svc.Checkpoint(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 590, sess.RemainingTime)
	assert.Equal(t, []events.Type{events.TypeSessionCheckpointed}, f.published.types())

	f.sessions.On("Get", mock.Anything, f.userID, f.exam.ID).Return(stored, nil).Once()
	fetched, err := f.svc.Fetch(context.Background(), f.userID, f.exam.ID)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}}, fetched.SelectedAnswers)
}

func TestCheckpoint_PauseAndResumeEvents(t *testing.T) {
	f := newSessionFixture(t)
	running := f.storedSession()
	paused := f.storedSession()
	paused.IsPaused = true
	pausedAt := f.now
	paused.PausedAt = &pausedAt

	f.catalog.On("GetExamWithQuestions", mock.Anything, f.exam.ID).Return(f.exam, nil)
	f.sessions.On("Get", mock.Anything, f.userID, f.exam.ID).Return(running, nil).Once()
	f.sessions.On("Checkpoint", mock.Anything, mock.MatchedBy(func(s *model.ExamSession) bool { return s.IsPaused }), f.now).Return(paused, nil).Once()
	f.sessions.On("Get", mock.Anything, f.userID, f.exam.ID).Return(paused, nil).Once()
	f.sessions.On("Checkpoint", mock.Anything, mock.MatchedBy(func(s *model.ExamSession) bool { return !s.IsPaused }), f.now).Return(running, nil).Once()

	_, err := f.svc.Checkpoint(context.Background(), CheckpointInput{UserID: f.userID, ExamID: f.exam.ID, RemainingTime: 500, IsPaused: true})
	require.NoError(t, err)
	_, err = f.svc.Checkpoint(context.Background(), CheckpointInput{UserID: f.userID, ExamID: f.exam.ID, RemainingTime: 500})
	require.NoError(t, err)

	assert.Equal(t, []events.Type{events.TypeSessionPaused, events.TypeSessionResumed}, f.published.types())
}

func TestCheckpoint_IdenticalInputIsIdempotent(t *testing.T) {
	f := newSessionFixture(t)
	in := CheckpointInput{
		UserID:               f.userID,
		ExamID:               f.exam.ID,
		RemainingTime:        420,
		IsPaused:             true,
		CurrentQuestionIndex: 1,
		SelectedAnswers:      [][]string{{"a"}, {"b", "c"}},
		TotalPoints:          3,
		QuestionPoints:       []float64{1, 2},
	}
	stored := f.storedSession()
	stored.RemainingTime = 420
	stored.IsPaused = true
	stored.CurrentQuestionIndex = 1
	stored.SelectedAnswers = in.SelectedAnswers
	stored.TotalPoints = 3
	stored.QuestionPoints = in.QuestionPoints
	pausedAt := f.now
	stored.PausedAt = &pausedAt

	var written []*model.ExamSession
	f.catalog.On("GetExamWithQuestions", mock.Anything, f.exam.ID).Return(f.exam, nil)
	f.sessions.On("Get", mock.Anything, f.userID, f.exam.ID).Return(stored, nil).Twice()
	f.sessions.On("Checkpoint", mock.Anything, mock.Anything, f.now).
		Run(func(args mock.Arguments) { written = append(written, args.Get(1).(*model.ExamSession)) }).
		Return(stored, nil).Twice()

	first, err := f.svc.Checkpoint(context.Background(), in)
	require.NoError(t, err)
	second, err := f.svc.Checkpoint(context.Background(), in)
	require.NoError(t, err)

	require.Len(t, written, 2)
	assert.Equal(t, written[0], written[1])
	assert.Equal(t, first, second)
	assert.Equal(t, []events.Type{events.TypeSessionCheckpointed, events.TypeSessionCheckpointed}, f.published.types())
}

func TestCheckpoint_ExamWithoutQuestions(t *testing.T) {
	f := newSessionFixture(t)
	empty := &model.ExamWithQuestions{Exam: model.Exam{ID: f.exam.ID, DurationSeconds: 600}}
	f.catalog.On("GetExamWithQuestions", mock.Anything, f.exam.ID).Return(empty, nil)

	_, err := f.svc.Checkpoint(context.Background(), CheckpointInput{UserID: f.userID, ExamID: f.exam.ID, RemainingTime: 600})

	assert.ErrorIs(t, err, ErrNoQuestions)
	f.sessions.AssertNotCalled(t, "Checkpoint", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckpoint_RejectsNegativeValues(t *testing.T) {
	f := newSessionFixture(t)

	_, err := f.svc.Checkpoint(context.Background(), CheckpointInput{
		UserID:         f.userID,
		ExamID:         f.exam.ID,
		RemainingTime:  -1,
		QuestionPoints: []float64{1, -2},
	})

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "remainingTime")
	assert.Contains(t, ve.Fields, "questionPoints[1]")
}

func TestFetch_Absent(t *testing.T) {
	f := newSessionFixture(t)
	f.sessions.On("Get", mock.Anything, f.userID, f.exam.ID).Return(nil, pgx.ErrNoRows)

	sess, err := f.svc.Fetch(context.Background(), f.userID, f.exam.ID)

	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestFetch_DerivedRemainingHonoursPause(t *testing.T) {
	f := newSessionFixture(t)
	stored := f.storedSession()
	stored.StartedAt = f.now.Add(-300 * time.Second)
	stored.PausedSeconds = 60
	pausedAt := f.now.Add(-40 * time.Second)
	stored.PausedAt = &pausedAt
	stored.IsPaused = true
	f.sessions.On("Get", mock.Anything, f.userID, f.exam.ID).Return(stored, nil)

	sess, err := f.svc.Fetch(context.Background(), f.userID, f.exam.ID)

	require.NoError(t, err)
	// 300s elapsed, 60s accumulated pause, 40s current pause.
	assert.Equal(t, 600-200, sess.ServerRemainingTime)
}

func TestFinalize_ClientPoints(t *testing.T) {
	f := newSessionFixture(t)
	points := 3.0
	f.users.On("GetByID", mock.Anything, f.userID).Return(&model.User{ID: f.userID}, nil)
	f.catalog.On("GetExamWithQuestions", mock.Anything, f.exam.ID).Return(f.exam, nil)
	f.ledger.On("Finalize", mock.Anything, mock.MatchedBy(func(s *model.Submission) bool {
		return s.Points == 3 && s.Source == model.SubmissionSourceClient
	})).Return(nil)

	sub, err := f.svc.Finalize(context.Background(), FinalizeInput{
		UserID:         f.userID,
		ExamID:         f.exam.ID,
		Answers:        [][]string{{"a"}, {"c", "b"}},
		Points:         &points,
		QuestionPoints: []float64{1, 2},
	})

	require.NoError(t, err)
	assert.Equal(t, 3.0, sub.Points)
	assert.Equal(t, []events.Type{events.TypeSessionSubmitted}, f.published.types())
}

func TestFinalize_ServerGradesWhenPointsOmitted(t *testing.T) {
	f := newSessionFixture(t)
	f.users.On("GetByID", mock.Anything, f.userID).Return(&model.User{ID: f.userID}, nil)
	f.catalog.On("GetExamWithQuestions", mock.Anything, f.exam.ID).Return(f.exam, nil)
	f.ledger.On("Finalize", mock.Anything, mock.Anything).Return(nil)

	sub, err := f.svc.Finalize(context.Background(), FinalizeInput{
		UserID:  f.userID,
		ExamID:  f.exam.ID,
		Answers: [][]string{{"a"}, {"c"}},
	})

	require.NoError(t, err)
	assert.Equal(t, model.SubmissionSourceServerGraded, sub.Source)
	assert.Equal(t, 1.0, sub.Points)
	assert.Equal(t, []float64{1, 0}, sub.QuestionPoints)
}

func TestFinalize_Twice(t *testing.T) {
	f := newSessionFixture(t)
	points := 1.0
	f.users.On("GetByID", mock.Anything, f.userID).Return(&model.User{ID: f.userID}, nil)
	f.catalog.On("GetExamWithQuestions", mock.Anything, f.exam.ID).Return(f.exam, nil)
	f.ledger.On("Finalize", mock.Anything, mock.Anything).Return(nil).Once()
	f.ledger.On("Finalize", mock.Anything, mock.Anything).Return(repository.ErrNoActiveSession).Once()

	in := FinalizeInput{UserID: f.userID, ExamID: f.exam.ID, Answers: [][]string{{"a"}}, Points: &points}
	_, err := f.svc.Finalize(context.Background(), in)
	require.NoError(t, err)

	_, err = f.svc.Finalize(context.Background(), in)
	assert.ErrorIs(t, err, ErrNoActiveSession)
	assert.Len(t, f.published.events, 1)
}

func TestFinalize_NotFound(t *testing.T) {
	t.Run("unknown user", func(t *testing.T) {
		f := newSessionFixture(t)
		f.users.On("GetByID", mock.Anything, f.userID).Return(nil, ErrUserNotFound)

		_, err := f.svc.Finalize(context.Background(), FinalizeInput{UserID: f.userID, ExamID: f.exam.ID})

		assert.ErrorIs(t, err, ErrUserNotFound)
		f.ledger.AssertNotCalled(t, "Finalize", mock.Anything, mock.Anything)
	})

	t.Run("unknown exam", func(t *testing.T) {
		f := newSessionFixture(t)
		f.users.On("GetByID", mock.Anything, f.userID).Return(&model.User{ID: f.userID}, nil)
		f.catalog.On("GetExamWithQuestions", mock.Anything, f.exam.ID).Return(nil, ErrExamNotFound)

		_, err := f.svc.Finalize(context.Background(), FinalizeInput{UserID: f.userID, ExamID: f.exam.ID})

		assert.ErrorIs(t, err, ErrExamNotFound)
		f.ledger.AssertNotCalled(t, "Finalize", mock.Anything, mock.Anything)
	})
}

func TestFinalize_StoreFailure(t *testing.T) {
	f := newSessionFixture(t)
	points := 1.0
	f.users.On("GetByID", mock.Anything, f.userID).Return(&model.User{ID: f.userID}, nil)
	f.catalog.On("GetExamWithQuestions", mock.Anything, f.exam.ID).Return(f.exam, nil)
	f.ledger.On("Finalize", mock.Anything, mock.Anything).Return(errors.New("connection reset"))

	_, err := f.svc.Finalize(context.Background(), FinalizeInput{UserID: f.userID, ExamID: f.exam.ID, Points: &points})

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoActiveSession)
	assert.Empty(t, f.published.events)
}

func TestExpireStale(t *testing.T) {
	f := newSessionFixture(t)
	a := f.storedSession()
	a.SelectedAnswers = [][]string{{"a"}}
	a.TotalPoints = 1
	b := f.storedSession()
	b.UserID = uuid.New()

	f.sessions.On("ListExpired", mock.Anything, f.now, expiryBatch).Return([]model.ExamSession{*a, *b}, nil)
	f.ledger.On("Finalize", mock.Anything, mock.MatchedBy(func(s *model.Submission) bool {
		return s.UserID == a.UserID && s.Source == model.SubmissionSourceExpired && s.Points == 1
	})).Return(nil)
	// b was finalized by its user in the meantime.
	f.ledger.On("Finalize", mock.Anything, mock.MatchedBy(func(s *model.Submission) bool {
		return s.UserID == b.UserID
	})).Return(repository.ErrNoActiveSession)

	n, err := f.svc.ExpireStale(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

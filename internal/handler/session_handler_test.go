package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/examhall-backend/internal/middleware"
	"github.com/stemsi/examhall-backend/internal/model"
	"github.com/stemsi/examhall-backend/internal/response"
	"github.com/stemsi/examhall-backend/internal/service"
	"github.com/stemsi/examhall-backend/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

type mockSessions struct{ mock.Mock }

func (m *mockSessions) Start(ctx context.Context, userID, examID uuid.UUID) (*model.ExamSession, error) {
	args := m.Called(ctx, userID, examID)
	s, _ := args.Get(0).(*model.ExamSession)
	return s, args.Error(1)
}

func (m *mockSessions) Checkpoint(ctx context.Context, in service.CheckpointInput) (*model.ExamSession, error) {
	args := m.Called(ctx, in)
	s, _ := args.Get(0).(*model.ExamSession)
	return s, args.Error(1)
}

func (m *mockSessions) Fetch(ctx context.Context, userID, examID uuid.UUID) (*model.ExamSession, error) {
	args := m.Called(ctx, userID, examID)
	s, _ := args.Get(0).(*model.ExamSession)
	return s, args.Error(1)
}

func (m *mockSessions) Finalize(ctx context.Context, in service.FinalizeInput) (*model.Submission, error) {
	args := m.Called(ctx, in)
	s, _ := args.Get(0).(*model.Submission)
	return s, args.Error(1)
}

func (m *mockSessions) ListSubmissions(ctx context.Context, userID, examID *uuid.UUID, page, perPage int) ([]model.Submission, int, error) {
	args := m.Called(ctx, userID, examID, page, perPage)
	s, _ := args.Get(0).([]model.Submission)
	return s, args.Int(1), args.Error(2)
}

// withClaims stands in for RequireAuth.
func withClaims(userID uuid.UUID, role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextKeyClaims, &service.Claims{UserID: userID, Role: role})
		c.Next()
	}
}

func newSessionRouter(sessions SessionController, userID uuid.UUID, role model.Role) *gin.Engine {
	h := NewSessionHandler(sessions)
	r := gin.New()
	r.Use(withClaims(userID, role))
	r.POST("/api/sessions/start", h.StartSession)
	r.POST("/api/sessions", h.Checkpoint)
	r.GET("/api/sessions", h.FetchSession)
	r.POST("/api/sessions/submit", h.Submit)
	r.GET("/api/submissions", h.ListSubmissions)
	return r
}

func doJSON(r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, response.Response) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env response.Response
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestCheckpoint_DefaultsToCaller(t *testing.T) {
	sessions := &mockSessions{}
	userID, examID := uuid.New(), uuid.New()
	sessions.On("Checkpoint", mock.Anything, mock.MatchedBy(func(in service.CheckpointInput) bool {
		return in.UserID == userID && in.ExamID == examID && in.RemainingTime == 120 && in.CurrentQuestionIndex == 2
	})).Return(&model.ExamSession{UserID: userID, ExamID: examID, RemainingTime: 120}, nil)

	r := newSessionRouter(sessions, userID, model.RoleStudent)
	w, env := doJSON(r, http.MethodPost, "/api/sessions", gin.H{
		"examId":               examID,
		"remainingTime":        120,
		"currentQuestionIndex": 2,
		"selectedAnswers":      [][]string{{"a"}, {}},
		"totalPoints":          1,
		"questionPoints":       []float64{1, 0},
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := env.Data.(map[string]any)
	assert.Equal(t, true, data["success"])
	sessions.AssertExpectations(t)
}

func TestCheckpoint_Validation(t *testing.T) {
	sessions := &mockSessions{}
	r := newSessionRouter(sessions, uuid.New(), model.RoleStudent)

	w, env := doJSON(r, http.MethodPost, "/api/sessions", gin.H{
		"examId":         "not-a-uuid",
		"remainingTime":  -5,
		"questionPoints": []float64{-1},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, response.ErrValidation, env.Error.Code)
	assert.Contains(t, env.Error.Fields, "examId")
	sessions.AssertNotCalled(t, "Checkpoint", mock.Anything, mock.Anything)
}

func TestCheckpoint_OtherUserForbiddenForStudents(t *testing.T) {
	sessions := &mockSessions{}
	r := newSessionRouter(sessions, uuid.New(), model.RoleStudent)

	w, _ := doJSON(r, http.MethodPost, "/api/sessions", gin.H{
		"userId":        uuid.New(),
		"examId":        uuid.New(),
		"remainingTime": 10,
	})

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestFetchSession_AbsentIsNullData(t *testing.T) {
	sessions := &mockSessions{}
	userID, examID := uuid.New(), uuid.New()
	sessions.On("Fetch", mock.Anything, userID, examID).Return(nil, nil)

	r := newSessionRouter(sessions, userID, model.RoleStudent)
	w, env := doJSON(r, http.MethodGet, "/api/sessions?examId="+examID.String(), nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, env.Data)
	assert.Contains(t, w.Body.String(), `"data":null`)
}

func TestFetchSession_AdminReadsAnyUser(t *testing.T) {
	sessions := &mockSessions{}
	other, examID := uuid.New(), uuid.New()
	sessions.On("Fetch", mock.Anything, other, examID).Return(&model.ExamSession{UserID: other, ExamID: examID}, nil)

	r := newSessionRouter(sessions, uuid.New(), model.RoleAdmin)
	w, _ := doJSON(r, http.MethodGet, "/api/sessions?userId="+other.String()+"&examId="+examID.String(), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	sessions.AssertExpectations(t)
}

func TestSubmit_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   response.ErrCode
	}{
		{"no active session", service.ErrNoActiveSession, http.StatusConflict, response.ErrNoActiveSession},
		{"unknown exam", service.ErrExamNotFound, http.StatusNotFound, response.ErrExamNotFound},
		{"unknown user", service.ErrUserNotFound, http.StatusNotFound, response.ErrUserNotFound},
		{"store failure", assert.AnError, http.StatusInternalServerError, response.ErrInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := &mockSessions{}
			sessions.On("Finalize", mock.Anything, mock.Anything).Return(nil, tt.err)
			r := newSessionRouter(sessions, uuid.New(), model.RoleStudent)

			w, env := doJSON(r, http.MethodPost, "/api/sessions/submit", gin.H{
				"examId":  uuid.New(),
				"answers": [][]string{{"a"}},
				"points":  1,
			})

			assert.Equal(t, tt.status, w.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestSubmit_Success(t *testing.T) {
	sessions := &mockSessions{}
	userID, examID := uuid.New(), uuid.New()
	sessions.On("Finalize", mock.Anything, mock.MatchedBy(func(in service.FinalizeInput) bool {
		return in.UserID == userID && in.Points == nil
	})).Return(&model.Submission{ID: uuid.New(), UserID: userID, ExamID: examID, Points: 2, Source: model.SubmissionSourceServerGraded}, nil)

	r := newSessionRouter(sessions, userID, model.RoleStudent)
	w, env := doJSON(r, http.MethodPost, "/api/sessions/submit", gin.H{
		"examId":  examID,
		"answers": [][]string{{"a"}, {"b", "c"}},
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := env.Data.(map[string]any)
	assert.Equal(t, "Exam submitted successfully", data["message"])
	sub := data["examSubmission"].(map[string]any)
	assert.Equal(t, "server_graded", sub["source"])
}

func TestListSubmissions_StudentScopedToSelf(t *testing.T) {
	sessions := &mockSessions{}
	userID := uuid.New()
	sessions.On("ListSubmissions", mock.Anything, mock.MatchedBy(func(u *uuid.UUID) bool {
		return u != nil && *u == userID
	}), (*uuid.UUID)(nil), 1, 20).Return([]model.Submission{}, 0, nil)

	r := newSessionRouter(sessions, userID, model.RoleStudent)
	w, env := doJSON(r, http.MethodGet, "/api/submissions", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 20, env.Pagination.PerPage)
	sessions.AssertExpectations(t)
}

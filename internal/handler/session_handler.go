package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stemsi/examhall-backend/internal/middleware"
	"github.com/stemsi/examhall-backend/internal/model"
	"github.com/stemsi/examhall-backend/internal/response"
	"github.com/stemsi/examhall-backend/internal/service"
	"github.com/stemsi/examhall-backend/internal/validator"
)

// SessionController is the exam attempt lifecycle used by the HTTP and
// WebSocket handlers.
type SessionController interface {
	Start(ctx context.Context, userID, examID uuid.UUID) (*model.ExamSession, error)
	Checkpoint(ctx context.Context, in service.CheckpointInput) (*model.ExamSession, error)
	Fetch(ctx context.Context, userID, examID uuid.UUID) (*model.ExamSession, error)
	Finalize(ctx context.Context, in service.FinalizeInput) (*model.Submission, error)
	ListSubmissions(ctx context.Context, userID, examID *uuid.UUID, page, perPage int) ([]model.Submission, int, error)
}

// SessionHandler exposes the exam attempt lifecycle over HTTP.
type SessionHandler struct {
	sessions SessionController
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions SessionController) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// StartSession godoc
// POST /api/sessions/start
// Starts the caller's attempt, or returns the existing one unchanged.
func (h *SessionHandler) StartSession(c *gin.Context) {
	var req model.StartSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	userID, ok := actingUser(c, "")
	if !ok {
		return
	}

	sess, err := h.sessions.Start(c.Request.Context(), userID, uuid.MustParse(req.ExamID))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": sess})
}

// Checkpoint godoc
// POST /api/sessions
// Stores the full client state of an attempt, creating it if needed.
func (h *SessionHandler) Checkpoint(c *gin.Context) {
	var req model.CheckpointRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	userID, ok := actingUser(c, req.UserID)
	if !ok {
		return
	}

	sess, err := h.sessions.Checkpoint(c.Request.Context(), service.CheckpointInput{
		UserID:               userID,
		ExamID:               uuid.MustParse(req.ExamID),
		RemainingTime:        *req.RemainingTime,
		IsPaused:             req.IsPaused,
		CurrentQuestionIndex: req.CurrentQuestionIndex,
		SelectedAnswers:      req.SelectedAnswers,
		TotalPoints:          req.TotalPoints,
		QuestionPoints:       req.QuestionPoints,
	})
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, model.CheckpointResponse{Success: true, Session: sess})
}

// FetchSession godoc
// GET /api/sessions?userId=&examId=
// Returns the stored attempt, or null data when there is none.
func (h *SessionHandler) FetchSession(c *gin.Context) {
	var q model.FetchSessionQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	userID, ok := actingUser(c, q.UserID)
	if !ok {
		return
	}

	sess, err := h.sessions.Fetch(c.Request.Context(), userID, uuid.MustParse(q.ExamID))
	if err != nil {
		fail(c, err)
		return
	}
	if sess == nil {
		response.Success(c, http.StatusOK, nil)
		return
	}
	response.Success(c, http.StatusOK, sess)
}

// Submit godoc
// POST /api/sessions/submit
// Finalizes the attempt into a submission. Without points the server grades.
func (h *SessionHandler) Submit(c *gin.Context) {
	var req model.SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	userID, ok := actingUser(c, req.UserID)
	if !ok {
		return
	}

	sub, err := h.sessions.Finalize(c.Request.Context(), service.FinalizeInput{
		UserID:         userID,
		ExamID:         uuid.MustParse(req.ExamID),
		Answers:        req.Answers,
		Points:         req.Points,
		QuestionPoints: req.QuestionPoints,
	})
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, model.SubmitResponse{
		Message:        "Exam submitted successfully",
		ExamSubmission: sub,
	})
}

// ListSubmissions godoc
// GET /api/submissions?examId=&page=&per_page=
// Students see their own submissions, admins and teachers see everyone's.
func (h *SessionHandler) ListSubmissions(c *gin.Context) {
	var q model.SubmissionListQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var userID *uuid.UUID
	if claims.Role == model.RoleStudent {
		userID = &claims.UserID
	}
	var examID *uuid.UUID
	if q.ExamID != "" {
		id := uuid.MustParse(q.ExamID)
		examID = &id
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PerPage == 0 {
		q.PerPage = 20
	}

	subs, total, err := h.sessions.ListSubmissions(c.Request.Context(), userID, examID, q.Page, q.PerPage)
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"submissions": subs},
		response.NewPagination(q.Page, q.PerPage, total))
}

package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stemsi/examhall-backend/internal/middleware"
	"github.com/stemsi/examhall-backend/internal/model"
	"github.com/stemsi/examhall-backend/internal/response"
	"github.com/stemsi/examhall-backend/internal/service"
)

// statusFor maps a service error to its HTTP status and error code.
func statusFor(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, response.ErrInvalidCredentials
	case errors.Is(err, service.ErrUsernameTaken):
		return http.StatusConflict, response.ErrUsernameTaken
	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict, response.ErrEmailTaken
	case errors.Is(err, service.ErrCategoryExists):
		return http.StatusConflict, response.ErrCategoryExists
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, response.ErrUserNotFound
	case errors.Is(err, service.ErrExamNotFound):
		return http.StatusNotFound, response.ErrExamNotFound
	case errors.Is(err, service.ErrCategoryNotFound):
		return http.StatusNotFound, response.ErrCategoryMissing
	case errors.Is(err, service.ErrAdNotFound):
		return http.StatusNotFound, response.ErrAdNotFound
	case errors.Is(err, service.ErrNotOwner):
		return http.StatusForbidden, response.ErrNotOwner
	case errors.Is(err, service.ErrNoActiveSession):
		return http.StatusConflict, response.ErrNoActiveSession
	case errors.Is(err, service.ErrNoQuestions):
		return http.StatusBadRequest, response.ErrNoQuestions
	case errors.Is(err, service.ErrExamInUse):
		return http.StatusConflict, response.ErrExamInUse
	case errors.Is(err, service.ErrImageRequired):
		return http.StatusBadRequest, response.ErrFileRequired
	case errors.Is(err, service.ErrUnsupportedFileType):
		return http.StatusBadRequest, response.ErrUnsupportedFile
	case errors.Is(err, service.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, response.ErrFileTooLarge
	case errors.Is(err, service.ErrCheckoutFailed):
		return http.StatusBadGateway, response.ErrCheckoutFailed
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}

// fail writes err as an API error. Validation errors carry field messages.
func fail(c *gin.Context, err error) {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, ve.Fields)
		return
	}

	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	response.Fail(c, status, code)
}

// paramID parses a uuid path parameter, writing a 400 on failure.
func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

// actingUser resolves the user a request acts for. An empty requested id
// means the caller; only admins may act for someone else.
func actingUser(c *gin.Context, requested string) (uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return uuid.Nil, false
	}
	if requested == "" {
		return claims.UserID, true
	}

	id, err := uuid.Parse(requested)
	if err != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
			map[string]string{"userId": "userId must be a valid UUID"})
		return uuid.Nil, false
	}
	if id != claims.UserID && claims.Role != model.RoleAdmin {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return uuid.Nil, false
	}
	return id, true
}

package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stemsi/examhall-backend/internal/response"
	"github.com/stemsi/examhall-backend/internal/service"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   response.ErrCode
	}{
		{service.ErrExamInUse, http.StatusConflict, response.ErrExamInUse},
		{service.ErrNoQuestions, http.StatusBadRequest, response.ErrNoQuestions},
		{fmt.Errorf("update exam: %w", service.ErrExamNotFound), http.StatusNotFound, response.ErrExamNotFound},
		{service.ErrNoActiveSession, http.StatusConflict, response.ErrNoActiveSession},
		{fmt.Errorf("boom"), http.StatusInternalServerError, response.ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			status, code := statusFor(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

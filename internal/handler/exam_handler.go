package handler

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/examhall-backend/internal/middleware"
	"github.com/stemsi/examhall-backend/internal/model"
	"github.com/stemsi/examhall-backend/internal/response"
	"github.com/stemsi/examhall-backend/internal/service"
	"github.com/stemsi/examhall-backend/internal/validator"
)

// questionImagePrefix names the multipart file field of question i: image_<i>.
const questionImagePrefix = "image_"

// ExamHandler handles exam catalog endpoints.
type ExamHandler struct {
	examService   *service.ExamService
	exportService *service.ExportService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService, exportService *service.ExportService) *ExamHandler {
	return &ExamHandler{examService: examService, exportService: exportService}
}

// ListExams godoc
// GET /api/exams
func (h *ExamHandler) ListExams(c *gin.Context) {
	exams, err := h.examService.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}

// GetExam godoc
// GET /api/exams/exam/:slug
// Returns the exam with its questions. Answer keys are only included for
// admins and teachers.
func (h *ExamHandler) GetExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	withKey := claims != nil && (claims.Role == model.RoleAdmin || claims.Role == model.RoleTeacher)

	exam, err := h.examService.GetBySlug(c.Request.Context(), c.Param("slug"), withKey)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// CreateExam godoc
// POST /api/exams/create-exam
// Multipart: title, category, duration, plan, questionsData (JSON array) and
// an optional image_<i> file per question.
func (h *ExamHandler) CreateExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var form model.CreateExamForm
	if err := c.ShouldBind(&form); err != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, validator.TranslateErrors(err))
		return
	}

	exam, err := h.examService.Create(c.Request.Context(), claims.UserID, form, questionFiles(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}

// UpdateExam godoc
// PUT /api/exams/exam/edit/:id
// Replacing questionsData is refused with 409 while attempts are open.
func (h *ExamHandler) UpdateExam(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var form model.UpdateExamForm
	if err := c.ShouldBind(&form); err != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, validator.TranslateErrors(err))
		return
	}

	exam, err := h.examService.Update(c.Request.Context(), id, form, questionFiles(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// DeleteExam godoc
// DELETE /api/exams/delete/:id
func (h *ExamHandler) DeleteExam(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.examService.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Exam deleted"})
}

// RefreshCache godoc
// POST /api/exams/:id/refresh-cache
// Reloads the cached exam from the database.
func (h *ExamHandler) RefreshCache(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	exam, err := h.examService.WarmExamCache(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"examId": exam.ID, "questions": len(exam.Questions)})
}

// ExportResults godoc
// GET /api/exams/:id/submissions/export
// Streams the exam's submissions as an XLSX workbook.
func (h *ExamHandler) ExportResults(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	data, name, err := h.exportService.ExportResults(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// questionFiles collects image_<i> uploads keyed by question index.
func questionFiles(c *gin.Context) map[int]*multipart.FileHeader {
	files := map[int]*multipart.FileHeader{}
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return files
	}
	for field, headers := range form.File {
		if !strings.HasPrefix(field, questionImagePrefix) || len(headers) == 0 {
			continue
		}
		i, err := strconv.Atoi(strings.TrimPrefix(field, questionImagePrefix))
		if err != nil || i < 0 {
			continue
		}
		files[i] = headers[0]
	}
	return files
}

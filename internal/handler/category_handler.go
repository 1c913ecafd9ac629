package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/examhall-backend/internal/model"
	"github.com/stemsi/examhall-backend/internal/response"
	"github.com/stemsi/examhall-backend/internal/service"
	"github.com/stemsi/examhall-backend/internal/validator"
)

// CategoryHandler handles category endpoints.
type CategoryHandler struct {
	categoryService *service.CategoryService
	examService     *service.ExamService
}

func NewCategoryHandler(categoryService *service.CategoryService, examService *service.ExamService) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService, examService: examService}
}

// ListCategories godoc
// GET /api/categories
func (h *CategoryHandler) ListCategories(c *gin.Context) {
	categories, err := h.categoryService.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"categories": categories})
}

// CreateCategory godoc
// POST /api/category/add
func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	var req model.CreateCategoryRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	category, err := h.categoryService.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"category": category})
}

// UpdateCategory godoc
// PUT /api/categories/update/:id
func (h *CategoryHandler) UpdateCategory(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req model.UpdateCategoryRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	category, err := h.categoryService.Update(c.Request.Context(), id, req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"category": category})
}

// DeleteCategory godoc
// DELETE /api/categories/delete/:id
// Removes the category with its exams, questions and question images.
func (h *CategoryHandler) DeleteCategory(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.categoryService.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Category deleted"})
}

// ListCategoryExams godoc
// GET /api/categories/:title
func (h *CategoryHandler) ListCategoryExams(c *gin.Context) {
	exams, err := h.examService.ListByCategoryTitle(c.Request.Context(), c.Param("title"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}

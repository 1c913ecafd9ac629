package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/examhall-backend/internal/middleware"
	"github.com/stemsi/examhall-backend/internal/model"
	"github.com/stemsi/examhall-backend/internal/response"
	"github.com/stemsi/examhall-backend/internal/service"
	"github.com/stemsi/examhall-backend/internal/validator"
)

// AdHandler handles classified ad endpoints.
type AdHandler struct {
	adService *service.AdService
}

func NewAdHandler(adService *service.AdService) *AdHandler {
	return &AdHandler{adService: adService}
}

// ListAds godoc
// GET /api/ads
func (h *AdHandler) ListAds(c *gin.Context) {
	ads, err := h.adService.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"ads": ads})
}

// GetAd godoc
// GET /api/ads/ad/:slug
func (h *AdHandler) GetAd(c *gin.Context) {
	ad, err := h.adService.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"ad": ad})
}

// ListRelated godoc
// GET /api/ads/related/:category
func (h *AdHandler) ListRelated(c *gin.Context) {
	ads, err := h.adService.ListRelated(c.Request.Context(), c.Param("category"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"ads": ads})
}

// ListByUser godoc
// GET /api/ads/user/:username
func (h *AdHandler) ListByUser(c *gin.Context) {
	ads, err := h.adService.ListByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"ads": ads})
}

// CreateAd godoc
// POST /api/ads
// Multipart: title, category, price, description and one or more images.
func (h *AdHandler) CreateAd(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var form model.CreateAdForm
	if err := c.ShouldBind(&form); err != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, validator.TranslateErrors(err))
		return
	}

	mf, err := c.MultipartForm()
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}

	ad, err := h.adService.Create(c.Request.Context(), claims.UserID, form, mf.File["images"])
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"ad": ad})
}

// ToggleSold godoc
// PATCH /api/ads/:id/sold
func (h *AdHandler) ToggleSold(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	claims := middleware.GetClaims(c)

	sold, err := h.adService.ToggleSold(c.Request.Context(), id, claims.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"id": id, "sold": sold})
}

// DeleteAd godoc
// DELETE /api/ads/:id
func (h *AdHandler) DeleteAd(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	claims := middleware.GetClaims(c)

	if err := h.adService.Delete(c.Request.Context(), id, claims.UserID, claims.Role == model.RoleAdmin); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Ad deleted"})
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/examhall-backend/internal/model"
	"github.com/stemsi/examhall-backend/internal/response"
	"github.com/stemsi/examhall-backend/internal/service"
	"github.com/stemsi/examhall-backend/internal/validator"
)

// CheckoutHandler creates payment checkouts.
type CheckoutHandler struct {
	checkoutService *service.CheckoutService
}

func NewCheckoutHandler(checkoutService *service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkoutService: checkoutService}
}

// CreateSession godoc
// POST /api/create-checkout-session
func (h *CheckoutHandler) CreateSession(c *gin.Context) {
	var req model.CheckoutRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	id, err := h.checkoutService.CreateSession(c.Request.Context(), req.Items)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, model.CheckoutResponse{SessionID: id})
}

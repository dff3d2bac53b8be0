package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/homeserve/marketplace-backend/internal/models"
	"github.com/homeserve/marketplace-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// InquiryHandler handles the contact form and its admin inbox
type InquiryHandler struct {
	inquiryService *services.InquiryService
	logger         *logrus.Logger
}

// NewInquiryHandler creates a new inquiry handler
func NewInquiryHandler(inquiryService *services.InquiryService, logger *logrus.Logger) *InquiryHandler {
	return &InquiryHandler{inquiryService: inquiryService, logger: logger}
}

// Submit handles POST /api/v1/inquiries
func (h *InquiryHandler) Submit(c *gin.Context) {
	var req models.CreateInquiryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	inquiry, err := h.inquiryService.Submit(c.Request.Context(), actorOf(c), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, inquiry)
}

// List handles GET /api/v1/admin/inquiries?status=
func (h *InquiryHandler) List(c *gin.Context) {
	var status *models.InquiryStatus
	if s := c.Query("status"); s != "" {
		st := models.InquiryStatus(s)
		status = &st
	}
	limit, offset := pagination(c)

	list, err := h.inquiryService.List(c.Request.Context(), actorOf(c), status, limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if list == nil {
		list = []models.Inquiry{}
	}
	c.JSON(http.StatusOK, gin.H{"inquiries": list, "limit": limit, "offset": offset})
}

// UpdateStatus handles PATCH /api/v1/admin/inquiries/:id/status
func (h *InquiryHandler) UpdateStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.UpdateInquiryStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	inquiry, err := h.inquiryService.UpdateStatus(c.Request.Context(), actorOf(c), id, req.Status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, inquiry)
}

package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/homeserve/marketplace-backend/internal/models"
	"github.com/homeserve/marketplace-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// ComplaintHandler handles complaint filing and the admin resolution workflow
type ComplaintHandler struct {
	complaintService *services.ComplaintService
	logger           *logrus.Logger
}

// NewComplaintHandler creates a new complaint handler
func NewComplaintHandler(complaintService *services.ComplaintService, logger *logrus.Logger) *ComplaintHandler {
	return &ComplaintHandler{complaintService: complaintService, logger: logger}
}

// FileComplaint handles POST /api/v1/complaints
func (h *ComplaintHandler) FileComplaint(c *gin.Context) {
	var req models.CreateComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	complaint, err := h.complaintService.FileComplaint(c.Request.Context(), actorOf(c), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, complaint)
}

// ListMyComplaints handles GET /api/v1/complaints/mine
func (h *ComplaintHandler) ListMyComplaints(c *gin.Context) {
	list, err := h.complaintService.ListCustomerComplaints(c.Request.Context(), actorOf(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if list == nil {
		list = []models.ComplaintDetails{}
	}
	c.JSON(http.StatusOK, gin.H{"complaints": list})
}

// GetComplaint handles GET /api/v1/complaints/:id
func (h *ComplaintHandler) GetComplaint(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	complaint, err := h.complaintService.GetComplaint(c.Request.Context(), actorOf(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

// ListComplaints handles GET /api/v1/admin/complaints?status=
func (h *ComplaintHandler) ListComplaints(c *gin.Context) {
	var status *models.ComplaintStatus
	if s := c.Query("status"); s != "" {
		st := models.ComplaintStatus(s)
		status = &st
	}

	list, err := h.complaintService.ListComplaints(c.Request.Context(), actorOf(c), status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if list == nil {
		list = []models.ComplaintDetails{}
	}
	c.JSON(http.StatusOK, gin.H{"complaints": list})
}

// Action handles PATCH /api/v1/admin/complaints/:id/:action where action is
// investigate, refund, warn or resolve
func (h *ComplaintHandler) Action(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	event, err := services.ParseComplaintEvent(c.Param("action"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var req models.ComplaintActionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondBindError(c, err)
		return
	}
	if req.Resolution == nil {
		if r, ok := c.GetQuery("resolution"); ok {
			req.Resolution = &r
		}
	}

	complaint, err := h.complaintService.TransitionComplaint(c.Request.Context(), actorOf(c), id, event, req.Resolution, req.ExpectedVersion)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/homeserve/marketplace-backend/internal/models"
	"github.com/homeserve/marketplace-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// DashboardHandler serves the role-specific dashboard, the public service
// catalog and the caller's wallet
type DashboardHandler struct {
	dashboardService *services.DashboardService
	catalogService   *services.CatalogService
	logger           *logrus.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(dashboardService *services.DashboardService, catalogService *services.CatalogService, logger *logrus.Logger) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService, catalogService: catalogService, logger: logger}
}

// Dashboard handles GET /api/v1/dashboard
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	dash, err := h.dashboardService.Dashboard(c.Request.Context(), actorOf(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}

// ListServices handles GET /api/v1/services
func (h *DashboardHandler) ListServices(c *gin.Context) {
	list, err := h.catalogService.ListServices(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if list == nil {
		list = []models.Service{}
	}
	c.JSON(http.StatusOK, gin.H{"services": list})
}

// Wallet handles GET /api/v1/wallet
func (h *DashboardHandler) Wallet(c *gin.Context) {
	wallet, err := h.catalogService.Wallet(c.Request.Context(), actorOf(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, wallet)
}

package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/homeserve/marketplace-backend/internal/models"
	"github.com/homeserve/marketplace-backend/internal/services"
	"github.com/sirupsen/logrus"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AdminHandler handles the admin console
type AdminHandler struct {
	adminService     *services.AdminService
	dashboardService *services.DashboardService
	exportService    *services.ExportService
	cronService      *services.CronService
	logger           *logrus.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(
	adminService *services.AdminService,
	dashboardService *services.DashboardService,
	exportService *services.ExportService,
	cronService *services.CronService,
	logger *logrus.Logger,
) *AdminHandler {
	return &AdminHandler{
		adminService:     adminService,
		dashboardService: dashboardService,
		exportService:    exportService,
		cronService:      cronService,
		logger:           logger,
	}
}

// Stats handles GET /api/v1/admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.dashboardService.AdminStats(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ListUsers handles GET /api/v1/admin/users?role=
func (h *AdminHandler) ListUsers(c *gin.Context) {
	var role *models.UserRole
	if r := c.Query("role"); r != "" {
		ur := models.UserRole(r)
		role = &ur
	}

	users, err := h.adminService.ListUsers(c.Request.Context(), actorOf(c), role)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// DeleteUser handles DELETE /api/v1/admin/users/:id
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.adminService.DeleteUser(c.Request.Context(), actorOf(c), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "User deleted successfully"})
}

// AuditLog handles GET /api/v1/admin/audit-logs
func (h *AdminHandler) AuditLog(c *gin.Context) {
	limit, offset := pagination(c)

	logs, err := h.adminService.AuditLog(c.Request.Context(), actorOf(c), limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	c.JSON(http.StatusOK, gin.H{"audit_logs": logs, "limit": limit, "offset": offset})
}

// ExportBookings handles GET /api/v1/admin/bookings/export?from=YYYY-MM-DD&to=YYYY-MM-DD
// and streams an .xlsx workbook
func (h *AdminHandler) ExportBookings(c *gin.Context) {
	export, err := h.exportService.ExportBookings(c.Request.Context(), actorOf(c), c.Query("from"), c.Query("to"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName))
	c.Header("X-Export-Rows", fmt.Sprint(export.Rows))
	c.Data(http.StatusOK, xlsxContentType, export.Data)
}

// CronStatus handles GET /api/v1/admin/cron
func (h *AdminHandler) CronStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.cronService.JobStatus())
}

// RunCronJob handles POST /api/v1/admin/cron/:job/run
func (h *AdminHandler) RunCronJob(c *gin.Context) {
	job := c.Param("job")
	if err := h.cronService.RunNow(job); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"job":      job,
		"admin_id": actorOf(c).UserID,
	}).Info("Cron job triggered manually")
	c.JSON(http.StatusOK, MessageResponse{Message: "Job " + job + " completed"})
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/homeserve/marketplace-backend/internal/models"
	"github.com/homeserve/marketplace-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// ProviderHandler serves provider listings and the provider's own profile
type ProviderHandler struct {
	providerService *services.ProviderService
	reviewService   *services.ReviewService
	logger          *logrus.Logger
}

// NewProviderHandler creates a new provider handler
func NewProviderHandler(providerService *services.ProviderService, reviewService *services.ReviewService, logger *logrus.Logger) *ProviderHandler {
	return &ProviderHandler{providerService: providerService, reviewService: reviewService, logger: logger}
}

// ListProviders handles GET /api/v1/providers
// Filters: service_type, location, min_rate, max_rate, min_rating,
// availability, sort_by (rating|price_low|price_high|experience).
// Admins may pass include_unverified=true.
func (h *ProviderHandler) ListProviders(c *gin.Context) {
	var f models.ProviderFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		respondBindError(c, err)
		return
	}
	f.Limit, f.Offset = pagination(c)
	f.Unverified = c.Query("include_unverified") == "true"

	list, err := h.providerService.ListProviders(c.Request.Context(), actorOf(c), f)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if list == nil {
		list = []models.ProviderWithUser{}
	}
	c.JSON(http.StatusOK, gin.H{"providers": list, "limit": f.Limit, "offset": f.Offset})
}

// GetProvider handles GET /api/v1/providers/:id
func (h *ProviderHandler) GetProvider(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	provider, err := h.providerService.GetProvider(c.Request.Context(), actorOf(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, provider)
}

// GetProviderReviews handles GET /api/v1/providers/:id/reviews
func (h *ProviderHandler) GetProviderReviews(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	// visibility follows the profile
	if _, err := h.providerService.GetProvider(c.Request.Context(), actorOf(c), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	reviews, err := h.reviewService.ListProviderReviews(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if reviews == nil {
		reviews = []models.ReviewWithCustomer{}
	}
	c.JSON(http.StatusOK, gin.H{"provider_id": id, "reviews": reviews})
}

// GetMyProfile handles GET /api/v1/providers/me
func (h *ProviderHandler) GetMyProfile(c *gin.Context) {
	provider, err := h.providerService.GetOwnProfile(c.Request.Context(), actorOf(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, provider)
}

// UpdateAvailability handles PATCH /api/v1/providers/me/availability
func (h *ProviderHandler) UpdateAvailability(c *gin.Context) {
	var req models.UpdateAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	provider, err := h.providerService.UpdateAvailability(c.Request.Context(), actorOf(c), req.AvailabilityStatus)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, provider)
}

// VerifyProvider handles PATCH /api/v1/admin/providers/:id/verify
func (h *ProviderHandler) VerifyProvider(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	provider, err := h.providerService.VerifyProvider(c.Request.Context(), actorOf(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, provider)
}

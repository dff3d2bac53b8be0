package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/homeserve/marketplace-backend/internal/database"
	"github.com/homeserve/marketplace-backend/internal/models"
	"github.com/homeserve/marketplace-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// ProviderIDKey holds the caller's provider profile id once verified. Handlers
// read it through the actor when the token predates the profile.
const ProviderIDKey = "provider_id"

// RequireVerifiedProvider checks that the calling provider passed background
// verification. Must be used after AuthMiddleware to have userCtx available.
func RequireVerifiedProvider(providers services.ProviderLookup, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userCtx, exists := GetUserContext(c)
		if !exists {
			abort(c, http.StatusUnauthorized, "unauthorized", "User context not found", "MISSING_USER_CONTEXT")
			return
		}

		provider, err := providers.GetProviderByUserID(c.Request.Context(), userCtx.UserID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				abort(c, http.StatusForbidden, "not_provider", "Provider account not found", "NOT_PROVIDER")
				return
			}
			logger.WithError(err).WithField("user_id", userCtx.UserID).
				Error("Failed to get provider for verification check")
			abort(c, http.StatusInternalServerError, "internal_error", "Something went wrong, please try again later", "INTERNAL_ERROR")
			return
		}

		if provider.BackgroundVerified != models.VerificationVerified {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":               "not_verified",
				"message":             "Your provider account is not verified yet. Please wait for admin approval.",
				"code":                "ACCOUNT_NOT_VERIFIED",
				"verification_status": provider.BackgroundVerified,
			})
			return
		}

		c.Set(ProviderIDKey, provider.ID)
		c.Next()
	}
}

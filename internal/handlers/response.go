package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/homeserve/marketplace-backend/internal/middleware"
	"github.com/homeserve/marketplace-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// MessageResponse is returned by endpoints that have nothing else to say
type MessageResponse struct {
	Message string `json:"message"`
}

// respondError maps service errors onto HTTP statuses. Anything outside the
// service taxonomy is logged and reported as a 500 without leaking the cause.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	var (
		validationErr *services.ValidationError
		transitionErr *services.InvalidTransitionError
		conflictErr   *services.ConflictError
		notFoundErr   *services.NotFoundError
		forbiddenErr  *services.ForbiddenError
		unauthErr     *services.UnauthorizedError
	)

	switch {
	case errors.As(err, &validationErr):
		resp := ErrorResponse{Error: "validation_error", Message: validationErr.Error(), Code: "VALIDATION_FAILED"}
		if validationErr.Field != "" {
			resp.Details = map[string]interface{}{"field": validationErr.Field}
		}
		c.JSON(http.StatusBadRequest, resp)

	case errors.As(err, &transitionErr):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "invalid_transition",
			Message: transitionErr.Error(),
			Code:    "INVALID_TRANSITION",
			Details: map[string]interface{}{
				"entity":         transitionErr.Entity,
				"id":             transitionErr.ID,
				"event":          transitionErr.Event,
				"current_status": transitionErr.CurrentStatus,
			},
		})

	case errors.As(err, &conflictErr):
		details := map[string]interface{}{
			"entity":           conflictErr.Entity,
			"id":               conflictErr.ID,
			"expected_version": conflictErr.Expected,
		}
		if conflictErr.Actual > 0 {
			details["actual_version"] = conflictErr.Actual
		}
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "conflict",
			Message: conflictErr.Error(),
			Code:    "STALE_VERSION",
			Details: details,
		})

	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: notFoundErr.Error(),
			Code:    "NOT_FOUND",
			Details: map[string]interface{}{"entity": notFoundErr.Entity, "id": notFoundErr.ID},
		})

	case errors.As(err, &forbiddenErr):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden", Message: forbiddenErr.Error(), Code: "FORBIDDEN"})

	case errors.As(err, &unauthErr):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: unauthErr.Error(), Code: "UNAUTHORIZED"})

	default:
		logger.WithError(err).WithFields(logrus.Fields{
			"path":       c.Request.URL.Path,
			"request_id": c.GetString(middleware.RequestIDKey),
		}).Error("Request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Something went wrong, please try again later",
			Code:    "INTERNAL_ERROR",
		})
	}
}

// respondBindError reports a body or query that failed gin binding
func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "validation_error",
		Message: "Invalid request body",
		Code:    "INVALID_REQUEST",
		Details: map[string]interface{}{"reason": err.Error()},
	})
}

// pathID parses a positive integer path parameter, writing a 400 when it is not one
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid " + name,
			Code:    "INVALID_ID",
			Details: map[string]interface{}{"field": name},
		})
		return 0, false
	}
	return id, true
}

// pagination reads limit/offset query parameters, clamping limit to [1, 100]
func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// actorOf returns the authenticated caller; anonymous callers on public
// routes get the zero Actor. A provider token issued before the profile
// existed picks up the profile id resolved by RequireVerifiedProvider.
func actorOf(c *gin.Context) services.Actor {
	userCtx, _ := middleware.GetUserContext(c)
	actor := userCtx.Actor()
	if actor.ProviderID == 0 {
		actor.ProviderID = c.GetInt64(middleware.ProviderIDKey)
	}
	return actor
}
